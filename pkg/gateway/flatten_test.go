package gateway

import (
	"strings"
	"testing"

	"github.com/rhuss/respgw/pkg/api"
)

func TestFlattenRequestMultiTurnEchoedAssistantOutput(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "hey"}}}},
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{{Type: "output_text", Text: "Hi!"}}}},
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "how are you"}}}},
		},
	}

	br := FlattenRequest(req, true)

	want := []struct {
		role    string
		content string
	}{
		{"user", "hey"},
		{"assistant", "Hi!"},
		{"user", "how are you"},
	}
	if len(br.Messages) != len(want) {
		t.Fatalf("got %d messages, want %d: %+v", len(br.Messages), len(want), br.Messages)
	}
	for i, w := range want {
		if br.Messages[i].Role != w.role {
			t.Errorf("message %d: role = %q, want %q", i, br.Messages[i].Role, w.role)
		}
		if br.Messages[i].Content != w.content {
			t.Errorf("message %d: content = %v, want %q", i, br.Messages[i].Content, w.content)
		}
	}
}

func TestFlattenRequestToolResultContinuationNewStyle(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "what time is it"}}}},
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{CallID: "c1", Name: "f", Arguments: "{}"}},
			{Type: api.ItemTypeMessage, Message: &api.MessageData{
				Role:       api.RoleTool,
				ToolCallID: "c1",
				Content:    []api.ContentPart{{Type: "tool_output", ContentType: "application/json", Body: `{"ok":true}`}},
			}},
		},
	}

	br := FlattenRequest(req, true)

	if len(br.Messages) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(br.Messages), br.Messages)
	}

	assistantMsg := br.Messages[1]
	if assistantMsg.Role != "assistant" {
		t.Fatalf("message 1: role = %q, want assistant", assistantMsg.Role)
	}
	if len(assistantMsg.ToolCalls) != 1 {
		t.Fatalf("message 1: tool_calls = %+v, want 1 entry", assistantMsg.ToolCalls)
	}
	tc := assistantMsg.ToolCalls[0]
	if tc.ID != "c1" || tc.Type != "function" || tc.Function.Name != "f" || tc.Function.Arguments != "{}" {
		t.Fatalf("message 1: tool call = %+v", tc)
	}

	toolMsg := br.Messages[2]
	if toolMsg.Role != "tool" {
		t.Fatalf("message 2: role = %q, want tool", toolMsg.Role)
	}
	if toolMsg.ToolCallID != "c1" {
		t.Fatalf("message 2: tool_call_id = %q, want c1", toolMsg.ToolCallID)
	}
	if toolMsg.Content != `{"ok":true}` {
		t.Fatalf("message 2: content = %v, want %q", toolMsg.Content, `{"ok":true}`)
	}
}

func TestFlattenRequestLegacyFunctionCallOutputMatchesNewStyleShape(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Input: []api.Item{
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{CallID: "c1", Name: "f", Arguments: "{}"}},
			{Type: api.ItemTypeFunctionCallOutput, FunctionCallOutput: &api.FunctionCallOutputData{CallID: "c1", Output: `{"ok":true}`}},
		},
	}

	br := FlattenRequest(req, true)
	if len(br.Messages) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(br.Messages), br.Messages)
	}
	toolMsg := br.Messages[1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "c1" || toolMsg.Content != `{"ok":true}` {
		t.Fatalf("legacy tool message = %+v", toolMsg)
	}
}

func TestFlattenRequestReasoningInlinedBeforeFollowingAssistantMessage(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Input: []api.Item{
			{Type: api.ItemTypeReasoning, Reasoning: &api.ReasoningData{Content: "thinking it over"}},
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{{Type: "output_text", Text: "done"}}}},
		},
	}

	br := FlattenRequest(req, true)
	if len(br.Messages) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(br.Messages), br.Messages)
	}
	want := "<think>thinking it over</think>done"
	if br.Messages[0].Content != want {
		t.Fatalf("content = %q, want %q", br.Messages[0].Content, want)
	}
}

func TestFlattenRequestTrailingReasoningAttachesToPreviousAssistantMessage(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{{Type: "output_text", Text: "done"}}}},
			{Type: api.ItemTypeReasoning, Reasoning: &api.ReasoningData{Content: "in hindsight"}},
		},
	}

	br := FlattenRequest(req, true)
	if len(br.Messages) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(br.Messages), br.Messages)
	}
	want := "done<think>in hindsight</think>"
	if br.Messages[0].Content != want {
		t.Fatalf("content = %q, want %q", br.Messages[0].Content, want)
	}
}

func TestFlattenRequestTrailingReasoningWithNoAssistantMessageBecomesStandalone(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "hi"}}}},
			{Type: api.ItemTypeReasoning, Reasoning: &api.ReasoningData{Content: "stray thought"}},
		},
	}

	br := FlattenRequest(req, true)
	if len(br.Messages) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(br.Messages), br.Messages)
	}
	if br.Messages[1].Role != "assistant" {
		t.Fatalf("message 1: role = %q, want assistant", br.Messages[1].Role)
	}
	want := "<think>stray thought</think>"
	if br.Messages[1].Content != want {
		t.Fatalf("content = %q, want %q", br.Messages[1].Content, want)
	}
}

func TestFlattenRequestEmitsToolUsePreambleWhenModelLacksFunctionCalling(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Tools: []api.ToolDefinition{{Type: "function", Name: "get_time", Description: "returns the current time"}},
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "hi"}}}},
		},
	}

	br := FlattenRequest(req, false)
	if len(br.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 (preamble + user): %+v", len(br.Messages), br.Messages)
	}
	preamble, ok := br.Messages[0].Content.(string)
	if br.Messages[0].Role != "system" || !ok {
		t.Fatalf("message 0 = %+v, want a system preamble", br.Messages[0])
	}
	for _, want := range []string{"<function=", "get_time", "returns the current time"} {
		if !strings.Contains(preamble, want) {
			t.Fatalf("preamble = %q, missing %q", preamble, want)
		}
	}
}

func TestFlattenRequestNoPreambleWhenModelSupportsFunctionCalling(t *testing.T) {
	req := &api.CreateResponseRequest{
		Model: "M",
		Tools: []api.ToolDefinition{{Type: "function", Name: "get_time"}},
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "hi"}}}},
		},
	}

	br := FlattenRequest(req, true)
	if len(br.Messages) != 1 {
		t.Fatalf("got %d messages, want 1 (no preamble): %+v", len(br.Messages), br.Messages)
	}
}

func TestExtractInputContentCollapsesRefusalToText(t *testing.T) {
	parts := []api.ContentPart{{Type: "refusal", Refusal: "can't help with that"}}
	got := extractInputContent(parts)
	want := "[refusal] can't help with that"
	if got != want {
		t.Fatalf("content = %v, want %q", got, want)
	}
}

func TestExtractInputContentMultimodalWithToolOutputMixedIn(t *testing.T) {
	parts := []api.ContentPart{
		{Type: "input_image", URL: "https://example.com/x.png"},
		{Type: "tool_output", Body: `{"ok":true}`},
	}
	got := extractInputContent(parts)
	arr, ok := got.([]map[string]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("content = %+v, want a 2-element multimodal array", got)
	}
	if arr[1]["type"] != "text" || arr[1]["text"] != `{"ok":true}` {
		t.Fatalf("second part = %+v", arr[1])
	}
}

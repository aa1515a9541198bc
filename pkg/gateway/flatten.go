package gateway

import (
	"strings"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/backend"
)

// FlattenRequest converts a validated CreateResponseRequest into the
// backend-facing Request: a flat Chat Completions-style message list plus
// sampling parameters and tool definitions. Unlike the teacher's translator,
// reasoning items are not dropped — they are inlined as a <think>...</think>
// block prepended to the following assistant message's content, since a
// backend replaying its own prior reasoning expects to see it there, not as
// a separate item type it has no native concept of.
//
// supportsFunctionCalling tells FlattenRequest whether the resolved model
// advertises native tool_calls. When it doesn't and the request carries
// tools, a system preamble describing the <function=NAME>{...}</function>
// convention is emitted so the extractor in pkg/xmltool has something to
// recognize on the return leg.
func FlattenRequest(req *api.CreateResponseRequest, supportsFunctionCalling bool) *backend.Request {
	br := &backend.Request{
		Model:            req.Model,
		Stream:           true, // the backend leg is always streamed; see orchestrator.go
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxTokens:        req.MaxOutputTokens,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		TopLogprobs:      req.TopLogprobs,
		User:             req.User,
		ToolChoice:       req.ToolChoice,
	}

	if req.Instructions != "" {
		br.Messages = append(br.Messages, backend.Message{Role: "system", Content: req.Instructions})
	}

	if !supportsFunctionCalling && len(req.Tools) > 0 {
		br.Messages = append(br.Messages, backend.Message{Role: "system", Content: toolUsePreamble(req.Tools)})
	}

	var pendingThink string
	for _, item := range req.Input {
		switch item.Type {
		case api.ItemTypeReasoning:
			if item.Reasoning != nil && item.Reasoning.Content != "" {
				pendingThink += "<think>" + item.Reasoning.Content + "</think>"
			}
			continue

		case api.ItemTypeMessage:
			msg := flattenMessageItem(item)
			if pendingThink != "" && msg.Role == "assistant" {
				msg.Content = prependThink(pendingThink, msg.Content)
				pendingThink = ""
			}
			br.Messages = append(br.Messages, msg)

		case api.ItemTypeFunctionCall:
			if item.FunctionCall == nil {
				continue
			}
			br.Messages = append(br.Messages, backend.Message{
				Role: "assistant",
				ToolCalls: []backend.ToolCall{{
					ID:   item.FunctionCall.CallID,
					Type: "function",
					Function: backend.FunctionCall{
						Name:      item.FunctionCall.Name,
						Arguments: item.FunctionCall.Arguments,
					},
				}},
			})

		case api.ItemTypeFunctionCallOutput:
			if item.FunctionCallOutput == nil {
				continue
			}
			br.Messages = append(br.Messages, backend.Message{
				Role:       "tool",
				Content:    item.FunctionCallOutput.Output,
				ToolCallID: item.FunctionCallOutput.CallID,
			})
		}
	}

	// A trailing reasoning item with nothing after it attaches to the last
	// assistant message seen so far (appended), not the next one — there
	// isn't one. With no assistant message at all to attach to, emit it as
	// its own standalone assistant message instead of dropping it.
	if pendingThink != "" {
		attached := false
		for i := len(br.Messages) - 1; i >= 0; i-- {
			if br.Messages[i].Role == "assistant" {
				br.Messages[i].Content = appendThink(br.Messages[i].Content, pendingThink)
				attached = true
				break
			}
		}
		if !attached {
			br.Messages = append(br.Messages, backend.Message{Role: "assistant", Content: pendingThink})
		}
	}

	for _, t := range req.Tools {
		br.Tools = append(br.Tools, backend.Tool{
			Type: t.Type,
			Function: backend.FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return br
}

// toolUsePreamble describes the inline XML calling convention that
// pkg/xmltool parses back out of assistant text for backends with no
// native tool_calls support.
func toolUsePreamble(tools []api.ToolDefinition) string {
	var sb strings.Builder
	sb.WriteString("You can call tools by writing a marker in your reply text, exactly in this form: <function=NAME>{\"arg\":\"value\"}</function>, where NAME is the tool name and the body is a single JSON object of arguments. Available tools:\n")
	for _, t := range tools {
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		if t.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(t.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func flattenMessageItem(item api.Item) backend.Message {
	if item.Message == nil {
		return backend.Message{Role: string(api.RoleUser)}
	}

	role := string(item.Message.Role)

	if item.Message.Role == api.RoleAssistant {
		return backend.Message{Role: role, Content: extractOutputText(item.Message.Output)}
	}

	msg := backend.Message{Role: role, Content: extractInputContent(item.Message.Content)}
	if item.Message.Role == api.RoleTool {
		// New-style tool result: message{role:"tool", tool_call_id, content:
		// [tool_output{...}]}. Carries the same linkage as the legacy
		// function_call_output.CallID branch above.
		msg.ToolCallID = item.Message.ToolCallID
	}
	return msg
}

// extractOutputText concatenates output_text parts from an assistant
// message's Output. A historical bug class in similarly-shaped translators
// accepts output_text on OUTPUT but silently drops it when the very same
// content reappears as conversation INPUT on a later turn; this function is
// that second leg and must accept output_text the same way the first leg
// produced it.
func extractOutputText(parts []api.OutputContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == "output_text" || p.Type == "summary_text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// extractInputContent builds either a plain string (text-only input) or a
// multimodal content array (when any non-text part is present), matching
// the Chat Completions content union. input_text, output_text (an echoed
// prior turn), tool_output, and refusal are all text-bearing and collapse
// to a bare string when that's all a message carries — this is what lets a
// role:"tool" message's content end up as the plain string the backend
// expects, rather than a single-element array.
func extractInputContent(parts []api.ContentPart) any {
	textOnly := true
	for _, p := range parts {
		switch p.Type {
		case "input_text", "output_text", "tool_output", "refusal":
		default:
			textOnly = false
		}
		if !textOnly {
			break
		}
	}

	if textOnly {
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(textOfPart(p))
		}
		return sb.String()
	}

	var out []map[string]any
	for _, p := range parts {
		switch p.Type {
		case "input_text", "output_text":
			out = append(out, map[string]any{"type": "text", "text": p.Text})
		case "tool_output":
			out = append(out, map[string]any{"type": "text", "text": p.Body})
		case "refusal":
			out = append(out, map[string]any{"type": "text", "text": "[refusal] " + p.Refusal})
		case "input_image":
			url := p.URL
			if url == "" && p.Data != "" {
				mediaType := p.MediaType
				if mediaType == "" {
					mediaType = "image/png"
				}
				url = "data:" + mediaType + ";base64," + p.Data
			}
			out = append(out, map[string]any{"type": "image_url", "image_url": map[string]string{"url": url}})
		default:
			// input_audio/input_video and any other future kind: forward the
			// text field, if any, rather than silently dropping the part.
			if p.Text != "" {
				out = append(out, map[string]any{"type": "text", "text": p.Text})
			}
		}
	}
	return out
}

// textOfPart returns the text-bearing payload of a content part, regardless
// of which field carries it for that part's type.
func textOfPart(p api.ContentPart) string {
	switch p.Type {
	case "tool_output":
		return p.Body
	case "refusal":
		return "[refusal] " + p.Refusal
	default:
		return p.Text
	}
}

func prependThink(think string, content any) any {
	switch c := content.(type) {
	case string:
		return think + c
	case []map[string]any:
		return append([]map[string]any{{"type": "text", "text": think}}, c...)
	default:
		return think
	}
}

// appendThink attaches trailing reasoning to an assistant message that
// already has content, rather than one still to come.
func appendThink(content any, think string) any {
	switch c := content.(type) {
	case string:
		return c + think
	case []map[string]any:
		return append(c, map[string]any{"type": "text", "text": think})
	default:
		return think
	}
}

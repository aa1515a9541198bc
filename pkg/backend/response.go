package backend

import "github.com/rhuss/respgw/pkg/api"

// FromChatResponse converts a non-streaming ChatCompletionResponse into a
// Response in the gateway's item vocabulary. Used when a client requests
// stream:false — the gateway itself always streams upstream and buffers
// when asked, but this path remains available for a buffered single call.
func FromChatResponse(resp *ChatCompletionResponse) *Response {
	r := &Response{
		Model:  resp.Model,
		Status: api.ResponseStatusCompleted,
	}

	if resp.Usage != nil {
		r.Usage = api.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		r.Status = api.ResponseStatusFailed
		return r
	}

	choice := resp.Choices[0]
	r.Status = MapFinishReasonToResponseStatus(choice.FinishReason)

	if contentStr := ExtractContentString(choice.Message.Content); contentStr != "" {
		r.Items = append(r.Items, api.Item{
			ID:     api.NewItemID(),
			Type:   api.ItemTypeMessage,
			Status: api.ItemStatusCompleted,
			Message: &api.MessageData{
				Role:   api.RoleAssistant,
				Output: []api.OutputContentPart{{Type: "output_text", Text: contentStr}},
			},
		})
	}

	if choice.Message.ReasoningContent != nil && *choice.Message.ReasoningContent != "" {
		r.Items = append(r.Items, api.Item{
			ID:        api.NewItemID(),
			Type:      api.ItemTypeReasoning,
			Status:    api.ItemStatusCompleted,
			Reasoning: &api.ReasoningData{Content: *choice.Message.ReasoningContent},
		})
	}

	for _, tc := range choice.Message.ToolCalls {
		r.Items = append(r.Items, api.Item{
			ID:     api.NewItemID(),
			Type:   api.ItemTypeFunctionCall,
			Status: api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{
				Name:      tc.Function.Name,
				CallID:    tc.ID,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	return r
}

// MapFinishReasonToResponseStatus converts a Chat Completions finish_reason
// string to a ResponseStatus.
func MapFinishReasonToResponseStatus(reason string) api.ResponseStatus {
	switch reason {
	case "stop", "tool_calls":
		return api.ResponseStatusCompleted
	case "length":
		return api.ResponseStatusIncomplete
	case "content_filter":
		return api.ResponseStatusIncomplete
	default:
		return api.ResponseStatusCompleted
	}
}

// ExtractContentString attempts to get a plain string from a Chat
// Completions message content field (string or nil; array-form multimodal
// content is never produced by backends on the assistant side).
func ExtractContentString(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	return ""
}

package backend

import (
	"encoding/json"

	"github.com/tidwall/sjson"
)

// ToChatRequest converts a gateway Request into the wire ChatCompletionRequest
// for POST /v1/chat/completions. Streaming requests always enable
// stream_options.include_usage so the final usage-only chunk is available to
// populate the completed event's usage.
func ToChatRequest(req *Request) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxTokens:        req.MaxTokens,
		Stop:             req.Stop,
		N:                1,
		Stream:           req.Stream,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		TopLogprobs:      req.TopLogprobs,
		User:             req.User,
	}

	if req.Stream {
		cr.StreamOptions = &ChatStreamOptions{IncludeUsage: true}
	}

	for _, m := range req.Messages {
		cm := ChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: ChatFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		cr.Messages = append(cr.Messages, cm)
	}

	for _, t := range req.Tools {
		cr.Tools = append(cr.Tools, ChatTool{
			Type: t.Type,
			Function: ChatFunctionDef{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}

	// ToolChoice is either the bare string form or the structured
	// {type:"function",function:{name}} form on the wire. The structured form
	// is assembled with sjson rather than a literal map, since it's built
	// straight into raw JSON and handed to the backend without ever round-
	// tripping through a Go struct.
	if req.ToolChoice != nil {
		if req.ToolChoice.String != "" {
			if b, err := json.Marshal(req.ToolChoice.String); err == nil {
				cr.ToolChoice = b
			}
		} else if req.ToolChoice.Function != nil {
			raw, err := sjson.SetBytes([]byte(`{}`), "type", "function")
			if err == nil {
				raw, err = sjson.SetBytes(raw, "function.name", req.ToolChoice.Function.Name)
			}
			if err == nil {
				cr.ToolChoice = raw
			}
		}
	}

	return cr
}

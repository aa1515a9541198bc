package backend

import (
	"encoding/json"

	"github.com/rhuss/respgw/pkg/api"
)

// Request is the gateway-facing request passed to the backend Client. It is
// already flattened and validated; Client only translates it to the wire
// ChatCompletionRequest and performs the HTTP exchange.
type Request struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       *api.ToolChoice `json:"tool_choice,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	TopLogprobs      *int            `json:"top_logprobs,omitempty"`
	Seed             *int            `json:"seed,omitempty"`
	LogitBias        map[string]int  `json:"logit_bias,omitempty"`
	Logprobs         *bool           `json:"logprobs,omitempty"`
	User             string          `json:"user,omitempty"`
}

// Message represents a message in the gateway's flattened conversation form.
type Message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall represents a tool call entry attached to an assistant message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and arguments for a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool represents a tool definition handed to the backend.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef holds a function definition for tool use.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Response is the backend's complete non-streaming response, already
// translated into the gateway's item vocabulary.
type Response struct {
	Items  []api.Item         `json:"items"`
	Usage  api.Usage          `json:"usage"`
	Model  string             `json:"model"`
	Status api.ResponseStatus `json:"status"`
}

// ModelInfo holds information about a model served by the backend, as
// returned by GET /v1/models. SupportedFeatures is an optional extension
// field; most OpenAI-compatible backends don't send it, in which case the
// catalog treats the model's feature support as unknown rather than empty.
type ModelInfo struct {
	ID                string   `json:"id"`
	Object            string   `json:"object,omitempty"`
	OwnedBy           string   `json:"owned_by,omitempty"`
	SupportedFeatures []string `json:"supported_features,omitempty"`
}

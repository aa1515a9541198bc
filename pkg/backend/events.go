package backend

import "github.com/rhuss/respgw/pkg/api"

// EventType classifies a streaming event forwarded from the backend to the
// gateway's stream translator.
type EventType int

const (
	EventTextDelta      EventType = iota // Incremental assistant text content
	EventToolCallDelta                   // Raw per-chunk tool call fragment (ungated)
	EventReasoningDelta                  // Incremental reasoning_content text
	EventDone                            // Stream finished (finish_reason observed, or usage-only tail chunk)
	EventError                           // Stream error (network/parse)
)

// Event is a single streaming event relayed from the backend client to the
// gateway. Tool call fragments are forwarded exactly as the backend sent
// them, one Event per upstream chunk — the gateway, not this package, is
// responsible for the name-gated begin/delta/end discipline (a tool call's
// name is not guaranteed to arrive on the chunk that first introduces its
// index).
type Event struct {
	Type EventType

	// Delta carries incremental text, reasoning, or argument-fragment data.
	Delta string

	// ToolCallIndex identifies which tool call slot this event concerns.
	// Always meaningful on EventToolCallDelta; it is the only field
	// guaranteed present on every fragment (id and name may both be
	// absent on any given chunk).
	ToolCallIndex int

	// ToolCallID carries this chunk's id fragment, if any.
	ToolCallID string

	// FunctionName carries this chunk's function name fragment, if any.
	FunctionName string

	// FinishReason is set on EventDone when the backend supplied one.
	FinishReason string

	// Usage is populated on EventDone when the backend supplied token counts.
	Usage *api.Usage

	// Err is populated on EventError.
	Err error
}

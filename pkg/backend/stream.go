package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/sse"
)

// relaySSEStream reads Chat Completions SSE chunks from body and sends
// translated Events on ch. It does not close ch; the caller does.
//
// This is a pure, ungated relay: every tool-call fragment the backend sends
// is forwarded immediately with whatever id/name/argument piece that chunk
// carried, even if the index was already seen or the name arrives on a
// later chunk than the first one. Accumulating those fragments into a
// complete, name-gated tool call is the stream translator's job, not this
// package's — a name is not guaranteed to ride the first chunk for its
// index.
func relaySSEStream(ctx context.Context, body io.Reader, ch chan<- Event, maxLine int) {
	reader := sse.NewReader(body, maxLine)

	for {
		if ctx.Err() != nil {
			return
		}

		ev, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, sse.ErrLineTooLong) {
				ch <- Event{Type: EventError, Err: api.NewUpstreamEventTooLargeError("upstream SSE event exceeded size limit")}
				return
			}
			ch <- Event{Type: EventError, Err: api.NewServerError("upstream SSE read error: " + err.Error())}
			return
		}

		if ev.Data == "" {
			continue
		}
		if ev.Data == "[DONE]" {
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			slog.Warn("skipping malformed backend SSE chunk", "error", err.Error(), "data", Truncate(ev.Data, 200))
			continue
		}

		translateChunk(&chunk, ch)
	}
}

// translateChunk converts a single ChatCompletionChunk into zero or more
// Events sent on ch.
func translateChunk(chunk *ChatCompletionChunk, ch chan<- Event) {
	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			ch <- Event{Type: EventDone, Usage: usageFromChat(chunk.Usage)}
		}
		return
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	if choice.FinishReason != nil {
		done := Event{Type: EventDone, FinishReason: *choice.FinishReason}
		if chunk.Usage != nil {
			done.Usage = usageFromChat(chunk.Usage)
		}
		ch <- done
		return
	}

	for _, tc := range delta.ToolCalls {
		ch <- Event{
			Type:          EventToolCallDelta,
			ToolCallIndex: tc.Index,
			ToolCallID:    tc.ID,
			FunctionName:  tc.Function.Name,
			Delta:         tc.Function.Arguments,
		}
	}

	if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
		ch <- Event{Type: EventReasoningDelta, Delta: *delta.ReasoningContent}
	}

	if delta.Content != nil && *delta.Content != "" {
		ch <- Event{Type: EventTextDelta, Delta: *delta.Content}
	}
}

func usageFromChat(u *ChatUsage) *api.Usage {
	return &api.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

// Truncate limits a string to maxLen characters, used for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

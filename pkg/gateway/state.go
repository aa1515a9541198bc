package gateway

import (
	"strings"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/xmltool"
)

// toolCallState accumulates one upstream tool call's fragments, keyed by
// the backend's per-chunk index. A tool call's name is not guaranteed to
// arrive on the chunk that first introduces its index (see
// pkg/backend/stream.go), so argument fragments are withheld in
// pendingArgs until the name shows up on some later chunk — only then does
// the item begin and get reported to the client. finished is set for a
// tool call synthesized in full from an inline XML marker (see
// emitXMLToolCall), so Finish doesn't try to close it a second time.
type toolCallState struct {
	itemID      string
	outputIndex int
	callID      string
	name        string
	began       bool
	finished    bool
	pendingArgs strings.Builder
	args        strings.Builder
}

// Translator is a per-request, single-use stream state machine: feed it
// backend.Events in order, collect the api.StreamEvents each produces, and
// call Finish once at stream end to close out every item still open.
type Translator struct {
	seq int

	textItem        *api.Item
	textStarted     bool
	textOutputIndex int
	text            strings.Builder

	reasoningItem        *api.Item
	reasoningStarted     bool
	reasoningOutputIndex int
	reasoning            strings.Builder

	toolCalls map[int]*toolCallState
	toolOrder []int

	// syntheticToolSeq mints negative, backend-index-disjoint keys for
	// toolCalls entries synthesized from xml markers rather than delivered
	// by the backend under a real chunk index.
	syntheticToolSeq int

	// xml recovers <function=NAME>{...}</function> markers some backends
	// emit inline in assistant text instead of native tool_calls.
	xml *xmltool.Extractor

	nextOutputIndex int
}

// NewTranslator returns a ready-to-use Translator for a single request.
// requestID seeds the synthetic call ids the XML tool-call extractor mints
// (call_<requestID>_<n>).
func NewTranslator(requestID string) *Translator {
	return &Translator{
		toolCalls: make(map[int]*toolCallState),
		xml:       xmltool.New(requestID),
	}
}

// syntheticToolIndex returns a fresh key for toolCalls/toolOrder disjoint
// from any real backend.Event.ToolCallIndex, which is always >= 0.
func (t *Translator) syntheticToolIndex() int {
	t.syntheticToolSeq--
	return t.syntheticToolSeq
}

func (t *Translator) nextSeq() int {
	t.seq++
	return t.seq
}

func (t *Translator) allocateOutputIndex() int {
	idx := t.nextOutputIndex
	t.nextOutputIndex++
	return idx
}

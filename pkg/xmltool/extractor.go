package xmltool

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	openPrefix = "<function="
	closeTag   = "</function>"
)

// Call is a tool call recovered from an inline pseudo-XML marker.
type Call struct {
	ID        string
	Name      string
	Arguments string // raw JSON text between the marker's '>' and its close tag
}

// Segment is either a plain-text passthrough chunk or a recovered Call.
// Exactly one of Text or Call is set.
type Segment struct {
	Text string
	Call *Call
}

// Extractor incrementally scans assistant text for
// <function=NAME>{...}</function> markers across chunk boundaries. It
// never emits a marker as text: a partial match at the end of a chunk is
// held back until the next Feed (or flushed verbatim at Flush if the
// stream ends mid-marker).
type Extractor struct {
	requestID string
	buf       strings.Builder
	counter   int
}

// New creates an Extractor that mints call ids as call_<requestID>_<k>.
func New(requestID string) *Extractor {
	return &Extractor{requestID: requestID}
}

// Feed appends delta to the pending buffer and returns any segments that
// can now be emitted with certainty.
func (e *Extractor) Feed(delta string) []Segment {
	e.buf.WriteString(delta)
	return e.drain(false)
}

// Flush must be called once the stream ends. Any remaining buffered text —
// prose with no marker, or a marker that was opened but never closed — is
// emitted verbatim as a final text segment.
func (e *Extractor) Flush() []Segment {
	segs := e.drain(true)
	if rest := e.takeBuf(); rest != "" {
		segs = append(segs, Segment{Text: rest})
	}
	return segs
}

func (e *Extractor) takeBuf() string {
	s := e.buf.String()
	e.buf.Reset()
	return s
}

// drain repeatedly extracts complete markers from the buffer. When final
// is false, it stops short of consuming a partial marker or a trailing
// fragment that could still become the start of one, holding it in the
// buffer for the next Feed.
func (e *Extractor) drain(final bool) []Segment {
	var segs []Segment

	for {
		s := e.buf.String()

		idx := strings.Index(s, openPrefix)
		if idx == -1 {
			if final {
				return segs
			}
			// Hold back a trailing fragment that could be the start of
			// openPrefix, so a marker split across chunks isn't emitted as
			// prose.
			keep := longestPrefixOverlap(s, openPrefix)
			emit := s[:len(s)-keep]
			if emit != "" {
				segs = append(segs, Segment{Text: emit})
			}
			e.buf.Reset()
			e.buf.WriteString(s[len(s)-keep:])
			return segs
		}

		if idx > 0 {
			segs = append(segs, Segment{Text: s[:idx]})
		}

		rest := s[idx+len(openPrefix):]
		gt := strings.IndexByte(rest, '>')
		if gt == -1 {
			// Name not fully arrived yet.
			if final {
				e.buf.Reset()
				return append(segs, Segment{Text: s[idx:]})
			}
			e.buf.Reset()
			e.buf.WriteString(s[idx:])
			return segs
		}

		name := rest[:gt]
		afterName := rest[gt+1:]
		args, consumedLen, ok := extractPlausibleArgs(afterName)
		if !ok {
			// Body not fully arrived yet.
			if final {
				e.buf.Reset()
				return append(segs, Segment{Text: s[idx:]})
			}
			e.buf.Reset()
			e.buf.WriteString(s[idx:])
			return segs
		}

		e.counter++
		segs = append(segs, Segment{Call: &Call{
			ID:        fmt.Sprintf("call_%s_%d", e.requestID, e.counter),
			Name:      name,
			Arguments: args,
		}})

		consumed := idx + len(openPrefix) + gt + 1 + consumedLen
		e.buf.Reset()
		e.buf.WriteString(s[consumed:])
	}
}

// extractPlausibleArgs scans afterName for a closeTag whose preceding text is
// a syntactically plausible JSON argument body, skipping past any earlier
// closeTag occurrence that turns out to sit inside a quoted string value
// rather than actually closing the marker. Returns the trimmed argument
// text, the number of bytes of afterName consumed through the close tag,
// and whether a plausible close was found at all.
func extractPlausibleArgs(afterName string) (args string, consumedLen int, ok bool) {
	searchFrom := 0
	for {
		rel := strings.Index(afterName[searchFrom:], closeTag)
		if rel == -1 {
			return "", 0, false
		}
		closeIdx := searchFrom + rel
		candidate := strings.TrimSpace(afterName[:closeIdx])
		if candidate == "" || gjson.Valid(candidate) {
			return candidate, closeIdx + len(closeTag), true
		}
		searchFrom = closeIdx + len(closeTag)
	}
}

// longestPrefixOverlap returns the length of the longest suffix of s that
// is also a proper (shorter-than-full) prefix of marker.
func longestPrefixOverlap(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

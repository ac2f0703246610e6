// Package stream decodes the backend's incremental chat response: a
// line-framed sequence of "data: "-prefixed JSON records carrying text
// chunks, tool calls, tool outputs and a terminal done/error marker.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind discriminates the closed set of stream event variants.
type Kind int

const (
	// KindTextDelta carries a text fragment to append to the reply.
	KindTextDelta Kind = iota
	// KindToolCall marks the start of a tool invocation.
	KindToolCall
	// KindToolResult carries the result of a started invocation.
	KindToolResult
	// KindDone terminates the stream and carries the server-assigned
	// conversation id (present even for a brand-new conversation).
	KindDone
	// KindFailed terminates the stream with a transport, parse or
	// server-side error.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindTextDelta:
		return "text"
	case KindToolCall:
		return "tool_call"
	case KindToolResult:
		return "tool_output"
	case KindDone:
		return "done"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one decoded unit of the response stream. Exactly the fields
// relevant to Kind are set.
type Event struct {
	Kind Kind

	Text string // KindTextDelta

	Name      string          // KindToolCall, KindToolResult
	Arguments json.RawMessage // KindToolCall
	Result    json.RawMessage // KindToolResult

	ConversationID string // KindDone

	Message string // KindFailed
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindFailed
}

const dataPrefix = "data: "

// maxRecordSize bounds a single stream record (1 MiB).
const maxRecordSize = 1 << 20

type wireToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type wireToolOutput struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

// record mirrors one wire payload. A single record may carry several
// keys at once and then yields several events, in field order.
type record struct {
	Chunk          string          `json:"chunk"`
	ToolCall       *wireToolCall   `json:"tool_call"`
	ToolOutput     *wireToolOutput `json:"tool_output"`
	Done           bool            `json:"done"`
	ConversationID string          `json:"conversation_id"`
	Error          string          `json:"error"`
}

func (r record) events() []Event {
	if r.Error != "" {
		return []Event{{Kind: KindFailed, Message: r.Error}}
	}
	var evs []Event
	if r.Chunk != "" {
		evs = append(evs, Event{Kind: KindTextDelta, Text: r.Chunk})
	}
	if r.ToolCall != nil {
		evs = append(evs, Event{Kind: KindToolCall, Name: r.ToolCall.Name, Arguments: r.ToolCall.Args})
	}
	if r.ToolOutput != nil {
		evs = append(evs, Event{Kind: KindToolResult, Name: r.ToolOutput.Name, Result: r.ToolOutput.Result})
	}
	if r.Done {
		evs = append(evs, Event{Kind: KindDone, ConversationID: r.ConversationID})
	}
	return evs
}

// Decoder turns a raw response body into a lazy, finite sequence of
// Events. It is not restartable: after a terminal event Next reports
// exhaustion, and any bytes past the terminal record are ignored.
type Decoder struct {
	scanner  *bufio.Scanner
	pending  []Event
	finished bool
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &Decoder{scanner: s}
}

// Next returns the next event. ok is false once the sequence is
// exhausted; the sequence always ends with a terminal event (a stream
// that closes without one yields an implicit KindFailed).
func (d *Decoder) Next() (ev Event, ok bool) {
	if len(d.pending) > 0 {
		return d.pop()
	}
	if d.finished {
		return Event{}, false
	}

	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			// Unrecognized framing (comments, keep-alives, future
			// record types) is ignored for forward compatibility.
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &rec); err != nil {
			// A malformed record is fatal for this stream only.
			d.finished = true
			return Event{Kind: KindFailed, Message: fmt.Sprintf("malformed stream record: %v", err)}, true
		}

		if evs := rec.events(); len(evs) > 0 {
			d.pending = evs
			return d.pop()
		}
	}

	d.finished = true
	if err := d.scanner.Err(); err != nil {
		return Event{Kind: KindFailed, Message: fmt.Sprintf("reading stream: %v", err)}, true
	}
	return Event{Kind: KindFailed, Message: "stream closed before completion"}, true
}

func (d *Decoder) pop() (Event, bool) {
	ev := d.pending[0]
	d.pending = d.pending[1:]
	if ev.Terminal() {
		d.finished = true
		d.pending = nil
	}
	return ev, true
}

// Package transcript holds the in-memory conversation transcript and
// the reducer that folds stream events into it.
package transcript

import (
	"encoding/json"
	"time"

	"agentx/internal/stream"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// FailureNotice replaces partially streamed content when a stream
// fails. The real error is logged, never shown in the transcript.
const FailureNotice = "Sorry, I encountered an error. Please try again."

// Invocation records one tool call made by the assistant during a turn.
// Result is set exactly once, when the invocation completes.
type Invocation struct {
	Name      string
	Arguments json.RawMessage
	Status    string
	Result    json.RawMessage
}

// Entry is one conversational turn. User entries are immutable once
// created; the single streaming assistant entry grows via Apply until
// a terminal event clears Streaming.
type Entry struct {
	Role           string
	Content        string
	CreatedAt      time.Time
	HasAttachments bool
	Streaming      bool
	Invocations    []Invocation
}

// NewUserEntry creates an immutable user turn.
func NewUserEntry(content string, hasAttachments bool, at time.Time) Entry {
	return Entry{Role: RoleUser, Content: content, HasAttachments: hasAttachments, CreatedAt: at}
}

// NewPendingEntry creates the empty streaming assistant placeholder
// appended right after a user turn.
func NewPendingEntry(at time.Time) Entry {
	return Entry{Role: RoleAssistant, CreatedAt: at, Streaming: true}
}

// Apply folds one stream event into the transcript and returns it.
// It is total: every event is either applied or a defined no-op, and
// only the trailing streaming assistant entry is ever mutated.
func Apply(entries []Entry, ev stream.Event) []Entry {
	i, ok := streamingIndex(entries)
	if !ok {
		// No active entry: deltas for finished or foreign turns are
		// dropped. Terminal events are idempotent by the same rule.
		return entries
	}

	switch ev.Kind {
	case stream.KindTextDelta:
		entries[i].Content += ev.Text

	case stream.KindToolCall:
		entries[i].Invocations = append(entries[i].Invocations, Invocation{
			Name:      ev.Name,
			Arguments: ev.Arguments,
			Status:    StatusRunning,
		})

	case stream.KindToolResult:
		// Results match the most recently started still-running
		// invocation of the same name; servers do not supply a stable
		// call id. Unmatched results are dropped.
		inv := entries[i].Invocations
		for j := len(inv) - 1; j >= 0; j-- {
			if inv[j].Name == ev.Name && inv[j].Status == StatusRunning {
				inv[j].Result = ev.Result
				inv[j].Status = StatusCompleted
				break
			}
		}

	case stream.KindDone:
		entries[i].Streaming = false

	case stream.KindFailed:
		entries[i].Streaming = false
		entries[i].Content = FailureNotice
	}

	return entries
}

// streamingIndex locates the active assistant entry: the last entry,
// when it is an assistant turn still streaming.
func streamingIndex(entries []Entry) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	i := len(entries) - 1
	if entries[i].Role == RoleAssistant && entries[i].Streaming {
		return i, true
	}
	return 0, false
}

// Clone returns a deep-enough copy for handing to the rendering layer:
// the entry slice and each invocation slice are copied, so later
// reducer mutations cannot race a render.
func Clone(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].Invocations != nil {
			inv := make([]Invocation, len(out[i].Invocations))
			copy(inv, out[i].Invocations)
			out[i].Invocations = inv
		}
	}
	return out
}

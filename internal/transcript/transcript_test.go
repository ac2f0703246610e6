package transcript

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentx/internal/stream"
)

func freshTurn(t *testing.T) []Entry {
	t.Helper()
	now := time.Now()
	return []Entry{
		NewUserEntry("hello", false, now),
		NewPendingEntry(now),
	}
}

func TestApply_DeltasConcatenateInOrder(t *testing.T) {
	entries := freshTurn(t)
	for _, text := range []string{"Hi", " ", "there", "!"} {
		entries = Apply(entries, stream.Event{Kind: stream.KindTextDelta, Text: text})
	}
	assert.Equal(t, "Hi there!", entries[1].Content)
	assert.True(t, entries[1].Streaming)
}

func TestApply_DeltaWithoutStreamingEntryIsNoOp(t *testing.T) {
	entries := []Entry{NewUserEntry("hello", false, time.Now())}
	got := Apply(entries, stream.Event{Kind: stream.KindTextDelta, Text: "orphan"})
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)

	got = Apply(nil, stream.Event{Kind: stream.KindTextDelta, Text: "orphan"})
	assert.Empty(t, got)
}

func TestApply_ToolCallAppendsRunningInvocation(t *testing.T) {
	entries := freshTurn(t)
	args := json.RawMessage(`{"q":"weather"}`)
	entries = Apply(entries, stream.Event{Kind: stream.KindToolCall, Name: "search", Arguments: args})

	require.Len(t, entries[1].Invocations, 1)
	inv := entries[1].Invocations[0]
	assert.Equal(t, "search", inv.Name)
	assert.Equal(t, StatusRunning, inv.Status)
	assert.Nil(t, inv.Result)
}

func TestApply_ToolResultMatchesLastRunning(t *testing.T) {
	// Two concurrent calls to the same tool; results arrive in reverse
	// start order. The last-running match policy completes B first and
	// leaves A running.
	entries := freshTurn(t)
	entries = Apply(entries, stream.Event{Kind: stream.KindToolCall, Name: "search", Arguments: json.RawMessage(`"A"`)})
	entries = Apply(entries, stream.Event{Kind: stream.KindToolCall, Name: "search", Arguments: json.RawMessage(`"B"`)})

	entries = Apply(entries, stream.Event{Kind: stream.KindToolResult, Name: "search", Result: json.RawMessage(`"for B"`)})
	inv := entries[1].Invocations
	assert.Equal(t, StatusRunning, inv[0].Status)
	assert.Equal(t, StatusCompleted, inv[1].Status)
	assert.Equal(t, `"for B"`, string(inv[1].Result))

	entries = Apply(entries, stream.Event{Kind: stream.KindToolResult, Name: "search", Result: json.RawMessage(`"for A"`)})
	inv = entries[1].Invocations
	assert.Equal(t, StatusCompleted, inv[0].Status)
	assert.Equal(t, `"for A"`, string(inv[0].Result))
}

func TestApply_UnmatchedToolResultIsNoOp(t *testing.T) {
	entries := freshTurn(t)
	entries = Apply(entries, stream.Event{Kind: stream.KindToolCall, Name: "search"})
	entries = Apply(entries, stream.Event{Kind: stream.KindToolResult, Name: "search", Result: json.RawMessage(`1`)})
	before := Clone(entries)

	// Already completed, and a name that never ran.
	entries = Apply(entries, stream.Event{Kind: stream.KindToolResult, Name: "search", Result: json.RawMessage(`2`)})
	entries = Apply(entries, stream.Event{Kind: stream.KindToolResult, Name: "unknown", Result: json.RawMessage(`3`)})

	assert.Equal(t, before, entries)
}

func TestApply_DoneClearsStreamingIdempotently(t *testing.T) {
	entries := freshTurn(t)
	entries = Apply(entries, stream.Event{Kind: stream.KindTextDelta, Text: "answer"})
	entries = Apply(entries, stream.Event{Kind: stream.KindDone, ConversationID: "c1"})
	assert.False(t, entries[1].Streaming)
	assert.Equal(t, "answer", entries[1].Content)

	again := Apply(Clone(entries), stream.Event{Kind: stream.KindDone, ConversationID: "c1"})
	assert.Equal(t, entries, again)
}

func TestApply_FailureReplacesContentOnce(t *testing.T) {
	entries := freshTurn(t)
	entries = Apply(entries, stream.Event{Kind: stream.KindTextDelta, Text: "partial answ"})
	entries = Apply(entries, stream.Event{Kind: stream.KindFailed, Message: "boom"})

	assert.False(t, entries[1].Streaming)
	assert.Equal(t, FailureNotice, entries[1].Content)

	// A second terminal event finds no streaming entry and changes
	// nothing; in particular a late failure cannot clobber a finished
	// answer.
	done := freshTurn(t)
	done = Apply(done, stream.Event{Kind: stream.KindTextDelta, Text: "final"})
	done = Apply(done, stream.Event{Kind: stream.KindDone, ConversationID: "c1"})
	done = Apply(done, stream.Event{Kind: stream.KindFailed, Message: "late"})
	assert.Equal(t, "final", done[1].Content)
}

func TestApply_FailureAfterToolCallKeepsInvocationRunning(t *testing.T) {
	// Stream emits a tool call and then closes without done or error.
	entries := freshTurn(t)
	entries = Apply(entries, stream.Event{Kind: stream.KindToolCall, Name: "search"})
	entries = Apply(entries, stream.Event{Kind: stream.KindFailed, Message: "stream closed before completion"})

	require.Len(t, entries[1].Invocations, 1)
	assert.Equal(t, StatusRunning, entries[1].Invocations[0].Status)
	assert.Equal(t, FailureNotice, entries[1].Content)
	assert.False(t, entries[1].Streaming)
}

func TestClone_IsolatesInvocations(t *testing.T) {
	entries := freshTurn(t)
	entries = Apply(entries, stream.Event{Kind: stream.KindToolCall, Name: "search"})

	snap := Clone(entries)
	entries = Apply(entries, stream.Event{Kind: stream.KindToolResult, Name: "search", Result: json.RawMessage(`1`)})

	assert.Equal(t, StatusRunning, snap[1].Invocations[0].Status)
	assert.Equal(t, StatusCompleted, entries[1].Invocations[0].Status)
}

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentx/internal/transcript"
)

type fakeLoader struct {
	entries map[string][]transcript.Entry
	err     error
	calls   int
}

func (f *fakeLoader) Messages(_ context.Context, id string) ([]transcript.Entry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[id], nil
}

func historyFor(id string) []transcript.Entry {
	now := time.Now()
	return []transcript.Entry{
		transcript.NewUserEntry("earlier question "+id, false, now),
		{Role: transcript.RoleAssistant, Content: "earlier answer", CreatedAt: now},
		transcript.NewUserEntry("followup", false, now),
	}
}

func TestSession_NavigateLoadsHistory(t *testing.T) {
	loader := &fakeLoader{entries: map[string][]transcript.Entry{"c7": historyFor("c7")}}
	s := NewSession(loader, nil)
	require.Equal(t, StateNone, s.State())

	err := s.Navigate(context.Background(), "c7")
	require.NoError(t, err)

	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "c7", s.ConversationID())
	assert.Len(t, s.Snapshot(), 3)
	assert.Equal(t, 1, loader.calls)
}

func TestSession_NavigateFailureShowsEmptyConversation(t *testing.T) {
	loader := &fakeLoader{err: errors.New("backend down")}
	s := NewSession(loader, nil)

	err := s.Navigate(context.Background(), "c8")
	require.Error(t, err)

	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "c8", s.ConversationID())
	assert.Empty(t, s.Snapshot())
}

func TestSession_NavigateToSameIDIsNoOp(t *testing.T) {
	loader := &fakeLoader{entries: map[string][]transcript.Entry{"c7": historyFor("c7")}}
	s := NewSession(loader, nil)
	require.NoError(t, s.Navigate(context.Background(), "c7"))

	require.NoError(t, s.Navigate(context.Background(), "c7"))
	assert.Equal(t, 1, loader.calls)

	// Blank to blank is equally a no-op.
	s.Clear()
	require.NoError(t, s.Navigate(context.Background(), ""))
	assert.Equal(t, 1, loader.calls)
}

func TestSession_NavigateToEmptyClears(t *testing.T) {
	loader := &fakeLoader{entries: map[string][]transcript.Entry{"c7": historyFor("c7")}}
	s := NewSession(loader, nil)
	require.NoError(t, s.Navigate(context.Background(), "c7"))

	require.NoError(t, s.Navigate(context.Background(), ""))
	assert.Equal(t, StateNone, s.State())
	assert.Empty(t, s.ConversationID())
	assert.Empty(t, s.Snapshot())
}

func TestSession_AdoptKeepsTranscript(t *testing.T) {
	loader := &fakeLoader{}
	s := NewSession(loader, nil)

	now := time.Now()
	s.mu.Lock()
	s.entries = append(s.entries, transcript.NewUserEntry("hi", false, now))
	s.mu.Unlock()

	s.Adopt("c9")
	assert.Equal(t, "c9", s.ConversationID())
	assert.Equal(t, StateActive, s.State())
	assert.Len(t, s.Snapshot(), 1)
	assert.Zero(t, loader.calls)

	// A second adoption cannot steal an already-identified session.
	s.Adopt("c10")
	assert.Equal(t, "c9", s.ConversationID())
}

func TestSession_ResetBumpsSlot(t *testing.T) {
	loader := &fakeLoader{entries: map[string][]transcript.Entry{"c7": historyFor("c7")}}
	s := NewSession(loader, nil)

	s.mu.Lock()
	before := s.slot
	s.mu.Unlock()

	require.NoError(t, s.Navigate(context.Background(), "c7"))

	s.mu.Lock()
	after := s.slot
	s.mu.Unlock()
	assert.NotEqual(t, before, after)

	s.Clear()
	s.mu.Lock()
	cleared := s.slot
	s.mu.Unlock()
	assert.NotEqual(t, after, cleared)
}

// Package chat owns the live conversation state: which conversation is
// open, its transcript, and the orchestration of a streaming exchange.
package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"agentx/internal/transcript"
)

// State describes where the session is in its load cycle.
type State int

const (
	// StateNone means no conversation is open; the transcript is empty
	// and the next send starts a fresh conversation.
	StateNone State = iota
	// StateLoading means a navigation is fetching history.
	StateLoading
	// StateActive means the transcript reflects the open conversation.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// HistoryLoader fetches the persisted transcript of a conversation.
type HistoryLoader interface {
	Messages(ctx context.Context, conversationID string) ([]transcript.Entry, error)
}

// Session tracks the open conversation and its transcript. Every reset
// mints a new slot id; in-flight work captures the slot at start and
// checks it before touching the session again, so events from an
// abandoned conversation can never land in the current one.
type Session struct {
	loader HistoryLoader
	logger *slog.Logger

	mu             sync.Mutex
	state          State
	conversationID string
	slot           string
	entries        []transcript.Entry
	inflight       bool
}

func NewSession(loader HistoryLoader, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		loader: loader,
		logger: logger,
		slot:   uuid.NewString(),
	}
}

// Navigate switches the session to the given conversation, or to a
// fresh empty one when id is empty. Re-navigating to the conversation
// already open is a no-op, which keeps adopted ids stable: after a
// first send assigns an id, the matching navigation must not wipe the
// transcript that was just streamed.
func (s *Session) Navigate(ctx context.Context, id string) error {
	s.mu.Lock()
	if id == s.conversationID && s.state != StateNone || id == "" && s.conversationID == "" {
		s.mu.Unlock()
		return nil
	}

	if id == "" {
		s.resetLocked("", StateNone)
		s.mu.Unlock()
		return nil
	}

	s.resetLocked(id, StateLoading)
	slot := s.slot
	s.mu.Unlock()

	entries, err := s.loader.Messages(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot != slot {
		// Superseded by a later navigation or clear.
		return nil
	}
	if err != nil {
		// Show an empty conversation rather than blocking the user.
		s.logger.Error("loading conversation history", "conversation_id", id, "error", err)
		s.entries = nil
	} else {
		s.entries = entries
	}
	s.state = StateActive
	return err
}

// Adopt records the server-assigned id of a conversation that started
// unsaved. The transcript already holds the streamed exchange, so no
// refetch happens and the slot is untouched.
func (s *Session) Adopt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.conversationID != "" {
		return
	}
	s.conversationID = id
	s.state = StateActive
}

// Clear drops the open conversation and returns to the blank state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked("", StateNone)
}

// resetLocked replaces all conversation-scoped state and invalidates
// every in-flight operation by minting a new slot.
func (s *Session) resetLocked(id string, state State) {
	s.conversationID = id
	s.state = state
	s.slot = uuid.NewString()
	s.entries = nil
	s.inflight = false
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Snapshot returns a copy of the transcript safe to render while the
// reducer keeps mutating the live slice.
func (s *Session) Snapshot() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcript.Clone(s.entries)
}

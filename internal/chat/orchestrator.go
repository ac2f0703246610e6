package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agentx/internal/api"
	"agentx/internal/models"
	"agentx/internal/stream"
	"agentx/internal/transcript"
)

var (
	// ErrEmptyPrompt rejects a send with neither prompt text nor
	// attachments. An attachment-only send is valid.
	ErrEmptyPrompt = errors.New("chat: empty prompt")
	// ErrBusy rejects a send while another exchange is still streaming.
	ErrBusy = errors.New("chat: a response is already streaming")
)

// EventStream is a finite sequence of decoded stream events plus the
// underlying connection to release.
type EventStream interface {
	Next() (stream.Event, bool)
	Close() error
}

// Opener starts a streaming exchange with the backend.
type Opener interface {
	OpenStream(ctx context.Context, req api.StreamRequest) (EventStream, error)
}

// Selection supplies the user's current tool, server and model choices
// at the moment a request is composed.
type Selection interface {
	EnabledTools() []string
	ServerURLs() []string
	Model() string
}

// Flusher receives a transcript snapshot after every applied event.
type Flusher func(entries []transcript.Entry)

// Result reports the outcome of a completed exchange.
type Result struct {
	// ConversationID is the id the server filed the exchange under,
	// newly assigned when the conversation started unsaved.
	ConversationID string
}

// Orchestrator runs one streaming exchange at a time against the open
// session: append the user turn, open the stream, fold every event into
// the transcript and flush each step to the renderer.
type Orchestrator struct {
	session   *Session
	opener    Opener
	selection Selection
	flush     Flusher
	logger    *slog.Logger
}

func NewOrchestrator(session *Session, opener Opener, selection Selection, flush Flusher, logger *slog.Logger) *Orchestrator {
	if flush == nil {
		flush = func([]transcript.Entry) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		session:   session,
		opener:    opener,
		selection: selection,
		flush:     flush,
		logger:    logger,
	}
}

// Send runs one full exchange and blocks until the stream terminates.
// It is meant to be called from a tea.Cmd goroutine; progress reaches
// the UI through the flusher, the return value only closes the loop.
func (o *Orchestrator) Send(ctx context.Context, prompt string, attachments []models.Attachment) (Result, error) {
	if strings.TrimSpace(prompt) == "" && len(attachments) == 0 {
		return Result{}, ErrEmptyPrompt
	}

	s := o.session
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	s.inflight = true
	slot := s.slot
	conversationID := s.conversationID

	now := time.Now()
	s.entries = append(s.entries,
		transcript.NewUserEntry(prompt, len(attachments) > 0, now),
		transcript.NewPendingEntry(now),
	)
	if s.state == StateNone {
		s.state = StateActive
	}
	snapshot := transcript.Clone(s.entries)
	s.mu.Unlock()

	// The user turn and its placeholder are visible before any network
	// round trip begins.
	o.flush(snapshot)

	req := api.StreamRequest{
		Message:        prompt,
		ConversationID: conversationID,
		MCPServerURLs:  o.selection.ServerURLs(),
		Model:          o.selection.Model(),
		EnabledTools:   o.selection.EnabledTools(),
		Attachments:    attachments,
	}

	es, err := o.opener.OpenStream(ctx, req)
	if err != nil {
		o.logger.Error("opening chat stream", "conversation_id", conversationID, "error", err)
		o.applyEvent(slot, stream.Event{Kind: stream.KindFailed, Message: err.Error()})
		o.finish(slot)
		return Result{}, fmt.Errorf("opening chat stream: %w", err)
	}
	defer es.Close()

	var res Result
	for {
		ev, ok := es.Next()
		if !ok {
			break
		}

		if !o.applyEvent(slot, ev) {
			// The session was reset mid-stream. The remaining events
			// belong to an abandoned conversation; drop them all.
			o.logger.Debug("discarding stale stream event", "kind", ev.Kind.String())
			return Result{}, nil
		}

		switch ev.Kind {
		case stream.KindDone:
			res.ConversationID = ev.ConversationID
			if conversationID == "" {
				s.Adopt(ev.ConversationID)
			}
		case stream.KindFailed:
			o.finish(slot)
			return Result{}, fmt.Errorf("chat stream failed: %s", ev.Message)
		}
	}

	o.finish(slot)
	return res, nil
}

// applyEvent folds one event into the transcript and flushes the result
// synchronously. Each event produces its own flush on purpose: batching
// would let a done or error marker coalesce with the deltas before it
// and the UI would skip straight to the final frame.
func (o *Orchestrator) applyEvent(slot string, ev stream.Event) bool {
	s := o.session
	s.mu.Lock()
	if s.slot != slot {
		s.mu.Unlock()
		return false
	}
	s.entries = transcript.Apply(s.entries, ev)
	snapshot := transcript.Clone(s.entries)
	s.mu.Unlock()

	o.flush(snapshot)
	return true
}

func (o *Orchestrator) finish(slot string) {
	s := o.session
	s.mu.Lock()
	if s.slot == slot {
		s.inflight = false
	}
	s.mu.Unlock()
}

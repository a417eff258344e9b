package handlers

import (
	"context"
	"fmt"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// SessionHandler invokes the chat service for session routes.
type SessionHandler struct {
	service    *chat.Service
	dispatcher chat.Dispatcher
}

// NewSessionHandler wires dependencies for session routes.
func NewSessionHandler(service *chat.Service, dispatcher chat.Dispatcher) *SessionHandler {
	return &SessionHandler{
		service:    service,
		dispatcher: dispatcher,
	}
}

// CreateSession opens a session.
func (h *SessionHandler) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	sess, err := h.service.Create(ctx, chat.CreateParams{
		Mode:       transcript.Mode(req.Mode),
		StreamMode: transcript.StreamMode(req.StreamMode),
		ThreadID:   req.ThreadID,
	})
	if err != nil {
		return nil, err
	}
	return NewSessionResponse(sess.Snapshot()), nil
}

// ListSessions returns the archived sessions, newest first.
func (h *SessionHandler) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	recs, err := h.service.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newSessionSummary(rec))
	}
	return out, nil
}

// GetSession returns the current view of a session.
func (h *SessionHandler) GetSession(ctx context.Context, id string) (*SessionResponse, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewSessionResponse(sess.Snapshot()), nil
}

// UpdateSession changes the mode, stream mode or thread of a session.
func (h *SessionHandler) UpdateSession(ctx context.Context, id string, req UpdateSessionRequest) (*SessionResponse, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Mode != nil {
		if err := sess.SetMode(transcript.Mode(*req.Mode)); err != nil {
			return nil, err
		}
	}
	if req.StreamMode != nil {
		if err := sess.SetStreamMode(transcript.StreamMode(*req.StreamMode)); err != nil {
			return nil, err
		}
	}
	if req.ThreadID != nil {
		sess.SetThreadID(*req.ThreadID)
	}
	return NewSessionResponse(sess.Snapshot()), nil
}

// DeleteSession drops a session and its archive.
func (h *SessionHandler) DeleteSession(ctx context.Context, id string) error {
	return h.service.Delete(ctx, id)
}

// ResetSession starts a new chat in the session.
func (h *SessionHandler) ResetSession(ctx context.Context, id string) (*SessionResponse, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Reset()
	return NewSessionResponse(sess.Snapshot()), nil
}

// SubmitMessage queues a turn on the worker pool.
func (h *SessionHandler) SubmitMessage(ctx context.Context, id, text string) (*SubmitResponse, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	run, err := h.service.SubmitAsync(sess, text, h.dispatcher)
	if err != nil {
		return nil, fmt.Errorf("submit message: %w", err)
	}
	return &SubmitResponse{SessionID: sess.ID(), PlaceholderID: run.PlaceholderID()}, nil
}

// Session resolves a live session for streaming routes.
func (h *SessionHandler) Session(ctx context.Context, id string) (*chat.Session, error) {
	return h.service.Get(ctx, id)
}

// RunTurn runs a started turn in the caller's goroutine.
func (h *SessionHandler) RunTurn(ctx context.Context, run *chat.PendingTurn) {
	h.service.RunTurn(ctx, run)
}

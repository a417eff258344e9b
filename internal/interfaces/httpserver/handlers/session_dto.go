package handlers

import (
	"time"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// CreateSessionRequest opens a session. Empty fields take the server defaults.
type CreateSessionRequest struct {
	Mode       string `json:"mode"`
	StreamMode string `json:"stream_mode"`
	ThreadID   string `json:"thread_id"`
}

// UpdateSessionRequest switches the mode of the next turn.
type UpdateSessionRequest struct {
	Mode       *string `json:"mode"`
	StreamMode *string `json:"stream_mode"`
	ThreadID   *string `json:"thread_id"`
}

// SubmitMessageRequest sends user text. Stream asks for the turn as SSE.
type SubmitMessageRequest struct {
	Text   string `json:"text"`
	Stream bool   `json:"stream"`
}

// SessionResponse is a session view with derived step states filled in.
type SessionResponse struct {
	ID         string                `json:"id"`
	Mode       transcript.Mode       `json:"mode"`
	StreamMode transcript.StreamMode `json:"stream_mode"`
	ThreadID   string                `json:"thread_id,omitempty"`
	Loading    bool                  `json:"loading"`
	Busy       bool                  `json:"busy"`
	Messages   []transcript.Message  `json:"messages"`
}

// SessionSummary is one entry of the session list.
type SessionSummary struct {
	ID           string                `json:"id"`
	Mode         transcript.Mode       `json:"mode"`
	StreamMode   transcript.StreamMode `json:"stream_mode"`
	MessageCount int                   `json:"message_count"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// SubmitResponse is returned for an accepted background turn.
type SubmitResponse struct {
	SessionID     string `json:"session_id"`
	PlaceholderID string `json:"placeholder_id"`
}

// NewSessionResponse converts a view for the wire.
func NewSessionResponse(v chat.View) *SessionResponse {
	messages := make([]transcript.Message, 0, len(v.Messages))
	for _, msg := range v.Messages {
		m := *msg
		m.Steps = msg.StepStates()
		messages = append(messages, m)
	}
	return &SessionResponse{
		ID:         v.SessionID,
		Mode:       v.Mode,
		StreamMode: v.StreamMode,
		ThreadID:   v.ThreadID,
		Loading:    v.Loading,
		Busy:       v.Busy,
		Messages:   messages,
	}
}

func newSessionSummary(rec *chat.Record) SessionSummary {
	return SessionSummary{
		ID:           rec.ID,
		Mode:         rec.Mode,
		StreamMode:   rec.StreamMode,
		MessageCount: len(rec.Messages),
		UpdatedAt:    rec.UpdatedAt,
	}
}

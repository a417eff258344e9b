package chat

import (
	"sync"
	"time"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// View is a point-in-time snapshot of a session. Messages must be treated as read-only.
type View struct {
	SessionID  string                `json:"id"`
	Mode       transcript.Mode       `json:"mode"`
	StreamMode transcript.StreamMode `json:"stream_mode"`
	ThreadID   string                `json:"thread_id,omitempty"`
	Loading    bool                  `json:"loading"`
	Busy       bool                  `json:"busy"`
	Messages   transcript.Transcript `json:"messages"`
}

// Observer receives every session change, in mutation order.
type Observer interface {
	OnChange(View)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(View)

func (f ObserverFunc) OnChange(v View) { f(v) }

// Recorder receives turn telemetry.
type Recorder interface {
	TurnFinished(mode transcript.Mode, streamMode transcript.StreamMode, outcome string, elapsed time.Duration)
	EventReceived(event string)
	PayloadRejected(reason string)
}

// Redactor scrubs user text before it is logged or traced.
type Redactor interface {
	SanitizePrompt(input string) string
}

type noopRecorder struct{}

func (noopRecorder) TurnFinished(transcript.Mode, transcript.StreamMode, string, time.Duration) {}
func (noopRecorder) EventReceived(string)                                                    {}
func (noopRecorder) PayloadRejected(string)                                                  {}

type passthroughRedactor struct{}

func (passthroughRedactor) SanitizePrompt(input string) string { return input }

// latestObserver keeps only the newest view for a slow consumer.
type latestObserver struct {
	mu     sync.Mutex
	ch     chan View
	closed bool
}

func newLatestObserver() *latestObserver {
	return &latestObserver{ch: make(chan View, 1)}
}

func (o *latestObserver) OnChange(v View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case <-o.ch:
	default:
	}
	o.ch <- v
}

func (o *latestObserver) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

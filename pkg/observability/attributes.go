package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys
const (
	AttrSessionID  = "session.id"
	AttrThreadID   = "chat.thread_id"
	AttrMode       = "chat.mode"
	AttrStreamMode = "chat.stream_mode"
	AttrPrompt     = "chat.prompt"
	AttrOutcome    = "chat.outcome"
	AttrModel      = "llm.model"
)

// Redactor scrubs free text before it is attached to a span.
type Redactor interface {
	SanitizePrompt(input string) string
}

// WithTurnAttrs returns the attributes every chat turn span carries. The prompt
// is only added when a redactor is given.
func WithTurnAttrs(sessionID, threadID, mode, streamMode, prompt string, redactor Redactor) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrMode, mode),
		attribute.String(AttrStreamMode, streamMode),
	}

	if threadID != "" {
		attrs = append(attrs, attribute.String(AttrThreadID, threadID))
	}

	if prompt != "" && redactor != nil {
		attrs = append(attrs, attribute.String(AttrPrompt, redactor.SanitizePrompt(prompt)))
	}

	return attrs
}

// WithModelAttrs returns model attributes, or none when model is empty.
func WithModelAttrs(model string) []attribute.KeyValue {
	if model == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String(AttrModel, model)}
}

// SetOutcome records how a turn ended on its span.
func SetOutcome(span trace.Span, outcome string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrOutcome, outcome))
}

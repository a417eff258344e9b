package chat

import (
	"time"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// Turn is the accumulator of one user submission. It is a value: Apply returns the
// next Turn and never mutates the receiver.
type Turn struct {
	State         State
	PlaceholderID string
	Mode          transcript.Mode
	StreamMode    transcript.StreamMode

	Steps    []transcript.Step
	Thinking string
	Content  string
}

// Effect is the transcript change produced by one fold step. Patch targets the
// placeholder; Append is added after the patch is applied.
type Effect struct {
	Patch  *transcript.Patch
	Append *transcript.Message
}

// Empty reports whether the effect changes nothing.
func (e Effect) Empty() bool {
	return e.Patch == nil && e.Append == nil
}

// Apply folds one event into the turn. It returns ErrInvalidTransition without
// changing anything when the current state does not accept the event. Updates that
// carry nothing for the turn's mode are ignored with an empty effect.
func (t Turn) Apply(u Update, newID func() string) (Turn, Effect, error) {
	var (
		next   Turn
		effect Effect
		sig    Signal
	)

	switch t.Mode {
	case transcript.ModeAgent:
		next, effect, sig = t.foldAgent(u, newID)
	default:
		next, effect, sig = t.foldChatbot(u)
	}

	if sig == "" {
		return t, Effect{}, nil
	}

	state, err := t.State.Next(sig)
	if err != nil {
		return t, Effect{}, err
	}
	next.State = state
	return next, effect, nil
}

// Transition moves the turn on a signal that carries no payload.
func (t Turn) Transition(sig Signal) (Turn, error) {
	state, err := t.State.Next(sig)
	if err != nil {
		return t, err
	}
	t.State = state
	return t, nil
}

// Fail records a transport or backend failure on the placeholder.
func (t Turn) Fail(sig Signal, message string) (Turn, Effect, error) {
	state, err := t.State.Next(sig)
	if err != nil {
		return t, Effect{}, err
	}
	t.State = state
	return t, Effect{Patch: t.errorPatch(message)}, nil
}

func (t Turn) foldAgent(u Update, newID func() string) (Turn, Effect, Signal) {
	switch v := u.(type) {
	case StepUpdate:
		t = t.withStep(v)
		return t, Effect{Patch: &transcript.Patch{
			Content:  t.Thinking,
			Thinking: true,
			Steps:    t.Steps,
			Mode:     t.Mode,
		}}, SignalStep

	case FinalUpdate:
		if v.FinalResult == nil || *v.FinalResult == "" {
			if v.Trailing == nil {
				return t, Effect{}, ""
			}
			return t.foldAgent(*v.Trailing, newID)
		}
		if v.Trailing != nil && !t.repeatsLastStep(*v.Trailing) {
			t = t.withStep(*v.Trailing)
		}
		return t, Effect{
			Patch: &transcript.Patch{
				Content:          t.Thinking,
				Thinking:         false,
				IsStepsCompleted: true,
				Steps:            t.Steps,
				Mode:             t.Mode,
			},
			Append: &transcript.Message{
				ID:        newID(),
				Role:      transcript.RoleAssistant,
				Content:   *v.FinalResult,
				Mode:      t.Mode,
				CreatedAt: time.Now().UTC(),
			},
		}, SignalFinal

	case ErrorUpdate:
		return t, Effect{Patch: t.errorPatch(v.Message)}, SignalBackendError
	}

	return t, Effect{}, ""
}

func (t Turn) foldChatbot(u Update) (Turn, Effect, Signal) {
	switch v := u.(type) {
	case StreamingChunk:
		if v.FullResponse != "" {
			t.Content = v.FullResponse
		} else {
			t.Content += v.Chunk
		}
		return t, Effect{Patch: &transcript.Patch{
			Content:  t.Content,
			Thinking: true,
			Mode:     t.Mode,
		}}, SignalChunk

	case FinalUpdate:
		if v.FullResponse != "" {
			t.Content = v.FullResponse
		}
		return t, Effect{Patch: &transcript.Patch{
			Content: t.Content,
			Mode:    t.Mode,
		}}, SignalFinal

	case ErrorUpdate:
		return t, Effect{Patch: t.errorPatch(v.Message)}, SignalBackendError
	}

	return t, Effect{}, ""
}

func (t Turn) withStep(s StepUpdate) Turn {
	content := transcript.FormatRawResult(s.Result)

	steps := make([]transcript.Step, len(t.Steps), len(t.Steps)+1)
	copy(steps, t.Steps)
	t.Steps = append(steps, transcript.Step{
		Title:   s.Step,
		Content: content,
		IsFinal: s.IsFinal,
	})
	t.Thinking = transcript.AppendThinking(t.Thinking, s.Step, content)
	return t
}

func (t Turn) repeatsLastStep(s StepUpdate) bool {
	if len(t.Steps) == 0 {
		return false
	}
	last := t.Steps[len(t.Steps)-1]
	return last.Title == s.Step && last.Content == transcript.FormatRawResult(s.Result)
}

func (t Turn) errorPatch(message string) *transcript.Patch {
	return &transcript.Patch{
		Content: ErrorText(message),
		Mode:    t.Mode,
	}
}

// ErrorText renders a failure the way it appears in the transcript.
func ErrorText(message string) string {
	return "Error: " + message
}

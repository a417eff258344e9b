// Package transcript holds the conversation model: messages, agent steps and the
// immutable transcript operations the turn controller drives.
package transcript

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode is the backend execution mode that produced a message.
type Mode string

const (
	ModeAgent   Mode = "agent"
	ModeChatbot Mode = "chatbot"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAgent || m == ModeChatbot
}

// StreamMode selects between incremental and single-shot delivery.
type StreamMode string

const (
	StreamModeStream StreamMode = "stream"
	StreamModeNormal StreamMode = "normal"
)

// Valid reports whether s is a known stream mode.
func (s StreamMode) Valid() bool {
	return s == StreamModeStream || s == StreamModeNormal
}

// Step is one unit of agent progress.
type Step struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	IsFinal bool   `json:"is_final"`

	// Derived by Message.StepStates; never stored.
	IsActive    bool `json:"is_active,omitempty"`
	IsCompleted bool `json:"is_completed,omitempty"`
}

// Message is one conversational turn entry.
type Message struct {
	ID               string    `json:"id"`
	Role             Role      `json:"role"`
	Content          string    `json:"content"`
	Thinking         bool      `json:"thinking"`
	IsStepsCompleted bool      `json:"is_steps_completed"`
	Steps            []Step    `json:"steps,omitempty"`
	Mode             Mode      `json:"mode,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// StepStates returns a copy of the steps with IsActive and IsCompleted filled in.
//
// A step is active iff it is the last step and the message is still thinking. Every
// other step is completed, so at most one step is active and a completed step never
// becomes active again while steps are only appended.
func (m *Message) StepStates() []Step {
	if len(m.Steps) == 0 {
		return nil
	}
	out := make([]Step, len(m.Steps))
	last := len(m.Steps) - 1
	for i, step := range m.Steps {
		step.IsActive = i == last && m.Thinking
		step.IsCompleted = !step.IsActive
		out[i] = step
	}
	return out
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

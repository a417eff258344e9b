package transcript

// Transcript is the ordered message list of a session, oldest first.
//
// Operations never mutate the receiver: they return a new slice in which untouched
// messages are the same pointers, so callers can compare entries by identity.
type Transcript []*Message

// Patch carries the replacement values for Update. It replaces rather than merges:
// a zero field clears the corresponding message field.
type Patch struct {
	Content          string
	Thinking         bool
	IsStepsCompleted bool
	Steps            []Step
	Mode             Mode
}

// Update returns a transcript in which the message with the given id has Content,
// Thinking, IsStepsCompleted, Steps and Mode replaced by p. An unknown id returns t.
func (t Transcript) Update(id string, p Patch) Transcript {
	idx := t.index(id)
	if idx < 0 {
		return t
	}

	updated := *t[idx]
	updated.Content = p.Content
	updated.Thinking = p.Thinking
	updated.IsStepsCompleted = p.IsStepsCompleted
	updated.Steps = cloneSteps(p.Steps)
	updated.Mode = p.Mode

	out := make(Transcript, len(t))
	copy(out, t)
	out[idx] = &updated
	return out
}

// Append returns a transcript with msgs added at the end.
func (t Transcript) Append(msgs ...*Message) Transcript {
	out := make(Transcript, 0, len(t)+len(msgs))
	out = append(out, t...)
	return append(out, msgs...)
}

// Find returns the message with the given id.
func (t Transcript) Find(id string) (*Message, bool) {
	idx := t.index(id)
	if idx < 0 {
		return nil, false
	}
	return t[idx], true
}

// ThinkingMessages returns the messages still receiving output.
func (t Transcript) ThinkingMessages() []*Message {
	var out []*Message
	for _, msg := range t {
		if msg.Thinking {
			out = append(out, msg)
		}
	}
	return out
}

// Last returns the newest message, or nil for an empty transcript.
func (t Transcript) Last() *Message {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, msg := range t {
		c := *msg
		c.Steps = cloneSteps(msg.Steps)
		out[i] = &c
	}
	return out
}

func (t Transcript) index(id string) int {
	for i, msg := range t {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

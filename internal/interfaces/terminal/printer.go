package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

type printState struct {
	skeleton bool
	steps    int
	streamed string
	done     bool
}

// Printer is a chat.Observer that writes transcript changes to a terminal as they
// happen. Steps and streamed text are printed incrementally, finished answers as
// bubbles. User messages are not echoed.
type Printer struct {
	out   io.Writer
	theme *theme

	mu      sync.Mutex
	printed map[string]*printState
}

// NewPrinter creates a printer for out. width <= 0 uses 80 columns.
func NewPrinter(out io.Writer, width int) *Printer {
	return &Printer{
		out:     out,
		theme:   newTheme(out, width),
		printed: make(map[string]*printState),
	}
}

// OnChange prints whatever changed since the previous view.
func (p *Printer) OnChange(v chat.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(v.Messages) == 0 {
		p.printed = make(map[string]*printState)
		return
	}
	for _, msg := range v.Messages {
		if msg.Role != transcript.RoleAssistant {
			continue
		}
		st, ok := p.printed[msg.ID]
		if !ok {
			st = &printState{}
			p.printed[msg.ID] = st
		}
		if !st.done {
			p.printMessage(msg, st)
		}
	}
}

// MarkPrinted records every message of v as already shown, e.g. for a restored
// transcript that was rendered in full.
func (p *Printer) MarkPrinted(v chat.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range v.Messages {
		p.printed[msg.ID] = &printState{done: !msg.Thinking, steps: len(msg.Steps)}
	}
}

// Println writes a line under the printer's lock so it never interleaves with
// session output.
func (p *Printer) Println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *Printer) printMessage(msg *transcript.Message, st *printState) {
	t := p.theme
	steps := msg.StepStates()

	if msg.Thinking && len(steps) == 0 && msg.Content == "" && !st.skeleton {
		fmt.Fprintln(p.out, t.renderSkeleton())
		st.skeleton = true
	}

	for i := st.steps; i < len(steps); i++ {
		fmt.Fprintln(p.out, t.renderStep(steps[i], true))
	}
	st.steps = len(steps)

	if msg.Thinking {
		if !hasSteps(msg) {
			p.printDelta(msg.Content, st)
		}
		return
	}

	switch {
	case msg.IsStepsCompleted:
		fmt.Fprintln(p.out, t.renderStepsDone(len(steps)))
	case hasSteps(msg):
	case st.streamed != "" && strings.HasPrefix(msg.Content, st.streamed):
		fmt.Fprintln(p.out, msg.Content[len(st.streamed):])
	case st.streamed != "":
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, t.renderMessage(msg))
	case msg.Content != "":
		fmt.Fprintln(p.out, t.renderMessage(msg))
	}
	st.done = true
}

// printDelta writes the part of a streaming answer not shown yet. When the
// backend replaces the text instead of extending it, the whole text is reprinted.
func (p *Printer) printDelta(content string, st *printState) {
	if content == "" || content == st.streamed {
		return
	}
	if strings.HasPrefix(content, st.streamed) {
		fmt.Fprint(p.out, content[len(st.streamed):])
	} else {
		fmt.Fprint(p.out, "\n"+content)
	}
	st.streamed = content
}

// Render draws a whole transcript, for restored sessions and one-shot output.
func (p *Printer) Render(v chat.View) string {
	t := p.theme
	parts := make([]string, 0, len(v.Messages))
	for _, msg := range v.Messages {
		if len(msg.Steps) > 0 {
			parts = append(parts, t.renderSteps(msg))
		}
		switch {
		case msg.IsStepsCompleted:
			parts = append(parts, t.renderStepsDone(len(msg.Steps)))
		case hasSteps(msg):
		case msg.Content != "":
			parts = append(parts, t.renderMessage(msg))
		case msg.Thinking && len(msg.Steps) == 0:
			parts = append(parts, t.renderSkeleton())
		}
	}
	return strings.Join(parts, "\n")
}

// hasSteps reports whether msg is an agent progress message. Its content is the
// markdown thinking log, which the step list already shows.
func hasSteps(msg *transcript.Message) bool {
	return len(msg.Steps) > 0
}

var _ chat.Observer = (*Printer)(nil)

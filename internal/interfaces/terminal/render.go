package terminal

import (
	"fmt"
	"strings"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

const (
	skeletonText  = "Thinking..."
	stepsComplete = "Steps completed"
)

// renderMessage draws a finished message as a labelled bubble.
func (t *theme) renderMessage(msg *transcript.Message) string {
	var b strings.Builder
	if msg.Role == transcript.RoleUser {
		b.WriteString(t.userLabel.Render("You"))
		b.WriteString("\n")
		b.WriteString(t.userBubble.Width(t.contentWidth()).Render(msg.Content))
		return b.String()
	}

	label := "Assistant"
	if msg.Mode != "" {
		label = fmt.Sprintf("Assistant (%s)", msg.Mode)
	}
	b.WriteString(t.agentLabel.Render(label))
	b.WriteString("\n")

	content := msg.Content
	if isErrorText(content) {
		content = t.errorText.Render(content)
	}
	b.WriteString(t.bubble.Width(t.contentWidth()).Render(content))
	return b.String()
}

// renderStep draws one step line, followed by its content when withContent is set.
func (t *theme) renderStep(step transcript.Step, withContent bool) string {
	var b strings.Builder
	switch {
	case step.IsActive:
		b.WriteString(t.stepActive.Render("● " + step.Title))
	case step.IsCompleted:
		b.WriteString(t.stepDone.Render("✓ " + step.Title))
	default:
		b.WriteString(t.muted.Render("○ " + step.Title))
	}
	if withContent && step.Content != "" {
		b.WriteString("\n")
		b.WriteString(t.stepBody.Width(t.contentWidth()).Render(step.Content))
	}
	return b.String()
}

// renderSteps draws a message's step list. Only the active step is expanded.
func (t *theme) renderSteps(msg *transcript.Message) string {
	steps := msg.StepStates()
	lines := make([]string, 0, len(steps))
	for _, step := range steps {
		lines = append(lines, t.renderStep(step, step.IsActive))
	}
	return strings.Join(lines, "\n")
}

func (t *theme) renderStepsDone(n int) string {
	return t.stepDone.Render(fmt.Sprintf("✓ %s (%d)", stepsComplete, n))
}

func (t *theme) renderSkeleton() string {
	return t.muted.Render(skeletonText)
}

func (t *theme) renderWelcome(mode transcript.Mode) string {
	var b strings.Builder
	b.WriteString(t.title.Render("How can I help you today?"))
	b.WriteString("\n")
	for i, s := range Suggestions(mode) {
		b.WriteString(t.suggestion.Render(fmt.Sprintf("  %d. %s", i+1, s)))
		b.WriteString("\n")
	}
	b.WriteString(t.muted.Render("Type a message, a suggestion number, or /help."))
	return b.String()
}

func (t *theme) renderHelp() string {
	lines := []string{
		"/new                 start a new chat",
		"/mode [agent|chatbot] switch mode (toggles without an argument)",
		"/stream [stream|normal] switch delivery (toggles without an argument)",
		"/quit                leave",
	}
	return t.muted.Render(strings.Join(lines, "\n"))
}

func isErrorText(content string) bool {
	return strings.HasPrefix(content, chat.ErrorText(""))
}

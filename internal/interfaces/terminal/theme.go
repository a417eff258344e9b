// Package terminal renders chat sessions as a line-oriented terminal UI.
package terminal

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

const defaultWidth = 80

type theme struct {
	width int

	title      lipgloss.Style
	muted      lipgloss.Style
	userLabel  lipgloss.Style
	agentLabel lipgloss.Style
	bubble     lipgloss.Style
	userBubble lipgloss.Style
	errorText  lipgloss.Style
	stepDone   lipgloss.Style
	stepActive lipgloss.Style
	stepBody   lipgloss.Style
	suggestion lipgloss.Style
}

func newTheme(out io.Writer, width int) *theme {
	if width <= 0 {
		width = defaultWidth
	}
	r := lipgloss.NewRenderer(out)

	return &theme{
		width: width,
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141")),
		muted: r.NewStyle().
			Foreground(lipgloss.Color("241")),
		userLabel: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		agentLabel: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141")),
		bubble: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("141")).
			Padding(0, 1),
		userBubble: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(0, 1),
		errorText: r.NewStyle().
			Foreground(lipgloss.Color("196")),
		stepDone: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		stepActive: r.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),
		stepBody: r.NewStyle().
			Foreground(lipgloss.Color("245")).
			PaddingLeft(4),
		suggestion: r.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// contentWidth is the text width inside a bordered, padded bubble.
func (t *theme) contentWidth() int {
	w := t.width - 4
	if w < 20 {
		return 20
	}
	return w
}

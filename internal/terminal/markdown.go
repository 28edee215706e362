package terminal

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders model replies for the terminal.
type Markdown struct {
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer wrapping at width. When plain is true, or
// the renderer cannot be built, Render returns text unchanged.
func NewMarkdown(width int, plain bool) *Markdown {
	if plain {
		return &Markdown{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Markdown{}
	}
	return &Markdown{renderer: r}
}

// Render formats text as terminal markdown.
func (m *Markdown) Render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// RenderMarkdown renders text at width when stdout is a terminal and
// returns it unchanged otherwise.
func RenderMarkdown(text string, width int) string {
	return NewMarkdown(width, !IsStdoutTTY()).Render(text)
}

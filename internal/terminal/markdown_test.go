package terminal

import (
	"strings"
	"testing"
)

func TestMarkdown_PlainPassesThrough(t *testing.T) {
	text := "# Title\n\n- item"
	if got := NewMarkdown(80, true).Render(text); got != text {
		t.Errorf("Render() = %q, want %q", got, text)
	}
}

func TestMarkdown_RenderKeepsContent(t *testing.T) {
	got := NewMarkdown(80, false).Render("# Code Review Summary\n\nAll good.")
	if !strings.Contains(got, "Code Review Summary") || !strings.Contains(got, "All good.") {
		t.Errorf("Render() lost content: %q", got)
	}
}

func TestRenderMarkdown_NonTTY(t *testing.T) {
	// Under go test stdout is not a terminal
	if got := RenderMarkdown("**bold**", 80); got != "**bold**" {
		t.Errorf("RenderMarkdown() = %q", got)
	}
}

package terminal

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxReportWidth caps the width of rendered replies.
const MaxReportWidth = 100

// FormatDuration formats d as "4.2s" or "1m 3.0s".
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	return fmt.Sprintf("%dm %.1fs", mins, secs-float64(mins*60))
}

// Ruler returns a dimmed horizontal rule.
func Ruler(width int, char string) string {
	return Color(Dim) + strings.Repeat(char, width) + Color(Reset)
}

// WrapText wraps text at width runes, prefixing every line with indent.
// Words longer than the line are kept whole.
func WrapText(text string, width int, indent string) string {
	indentLen := utf8.RuneCountInString(indent)
	if width <= indentLen {
		return indent + text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	var line strings.Builder
	line.WriteString(indent + words[0])
	lineLen := indentLen + utf8.RuneCountInString(words[0])

	for _, word := range words[1:] {
		n := utf8.RuneCountInString(word)
		if lineLen+1+n > width {
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(indent + word)
			lineLen = indentLen + n
			continue
		}
		line.WriteString(" " + word)
		lineLen += 1 + n
	}
	lines = append(lines, line.String())
	return strings.Join(lines, "\n")
}

// ReportWidth returns the terminal width capped at MaxReportWidth.
func ReportWidth() int {
	return min(GetTerminalWidth(), MaxReportWidth)
}

package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Style selects the color and symbol of a log line.
type Style string

const (
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleDim     Style = "dim"
	StylePhase   Style = "phase"
)

var styles = map[Style]struct {
	color  string
	symbol string
}{
	StyleInfo:    {Cyan, "I"},
	StyleSuccess: {Green, "✓"},
	StyleWarning: {Yellow, "W"},
	StyleError:   {Red, "!"},
	StyleDim:     {Dim, "·"},
	StylePhase:   {Magenta + Bold, "▸"},
}

// Tag is printed in front of every log line.
const Tag = "codi"

// Logger writes styled status lines, by default to stderr.
type Logger struct {
	mu    sync.Mutex
	w     io.Writer
	isTTY bool
}

// NewLogger creates a logger writing to stderr.
func NewLogger() *Logger {
	return &Logger{w: os.Stderr, isTTY: IsStderrTTY()}
}

// NewLoggerTo creates a logger writing to w. Line clearing is disabled.
func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Log prints msg in the given style.
func (l *Logger) Log(msg string, style Style) {
	s, ok := styles[style]
	if !ok {
		s = styles[StyleInfo]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// A spinner may be drawing on the same line
	if l.isTTY {
		fmt.Fprint(l.w, "\r"+strings.Repeat(" ", 100)+"\r")
	}
	fmt.Fprintf(l.w, "%s %s%s%s %s\n", tag(s.color), Color(s.color), s.symbol, Color(Reset), msg)
}

// Logf prints a formatted message in the given style.
func (l *Logger) Logf(style Style, format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...), style)
}

// Log prints a styled message to stderr.
func Log(msg string, style Style) {
	NewLogger().Log(msg, style)
}

// Logf prints a formatted styled message to stderr.
func Logf(style Style, format string, args ...any) {
	Log(fmt.Sprintf(format, args...), style)
}

func tag(color string) string {
	return fmt.Sprintf("%s[%s%s%s%s%s]%s",
		Color(Dim), Color(Reset), Color(color), Tag, Color(Reset), Color(Dim), Color(Reset))
}

// Package terminal formats CLI output: colors, styled log lines, workflow
// progress, spinners and markdown rendering.
package terminal

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// ANSI color codes.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Cyan    = "\033[36m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Red     = "\033[31m"
	Magenta = "\033[35m"
	Blue    = "\033[34m"
)

var (
	colorMu       sync.RWMutex
	colorsEnabled = true
)

// SetColorsEnabled turns color output on or off globally.
func SetColorsEnabled(enabled bool) {
	colorMu.Lock()
	defer colorMu.Unlock()
	colorsEnabled = enabled
}

// ColorsEnabled reports whether color output is on.
func ColorsEnabled() bool {
	colorMu.RLock()
	defer colorMu.RUnlock()
	return colorsEnabled
}

// ConfigureColors enables colors only when stderr is a terminal and NO_COLOR
// is unset, unless disabled explicitly.
func ConfigureColors(disable bool) {
	_, noColor := os.LookupEnv("NO_COLOR")
	SetColorsEnabled(!disable && !noColor && IsStderrTTY())
}

// WithColorsDisabled runs fn with colors off, then restores the previous state.
func WithColorsDisabled(fn func()) {
	colorMu.Lock()
	prev := colorsEnabled
	colorsEnabled = false
	colorMu.Unlock()

	defer SetColorsEnabled(prev)
	fn()
}

// Color returns c when colors are enabled, otherwise "".
func Color(c string) string {
	colorMu.RLock()
	defer colorMu.RUnlock()
	if colorsEnabled {
		return c
	}
	return ""
}

// IsTTY reports whether fd is a terminal.
func IsTTY(fd int) bool {
	return term.IsTerminal(fd)
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return IsTTY(int(os.Stdout.Fd()))
}

// IsStderrTTY reports whether stderr is a terminal.
func IsStderrTTY() bool {
	return IsTTY(int(os.Stderr.Fd()))
}

// GetTerminalWidth returns the stdout width, or 80 if it cannot be detected.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

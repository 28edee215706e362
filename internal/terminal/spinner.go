package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const spinnerInterval = 200 * time.Millisecond

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// PhaseSpinner animates a label on stderr while a single step runs.
type PhaseSpinner struct {
	w     io.Writer
	isTTY bool
	label string
}

// NewPhaseSpinner creates a spinner for label.
func NewPhaseSpinner(label string) *PhaseSpinner {
	return &PhaseSpinner{w: os.Stderr, isTTY: IsStderrTTY(), label: label}
}

// Run draws the spinner until ctx is cancelled, then prints a final line
// with the elapsed time.
// It does nothing when stderr is not a terminal.
func (s *PhaseSpinner) Run(ctx context.Context) {
	if !s.isTTY {
		<-ctx.Done()
		return
	}

	start := time.Now()
	idx := 0
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(s.w, "\r%s %s✓%s %s (%s)          \n", tag(Green), Color(Green), Color(Reset), s.label, FormatDuration(time.Since(start)))
			return
		case <-ticker.C:
			frame := string(spinnerFrames[idx%len(spinnerFrames)])
			fmt.Fprintf(s.w, "\r%s %s%s%s %s          ", tag(Cyan), Color(Cyan), frame, Color(Reset), s.label)
			idx++
		}
	}
}

// Start runs the spinner in the background. The returned func stops it and
// waits for the final line to be written.
func (s *PhaseSpinner) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

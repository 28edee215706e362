package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// WorkflowLogger prints the agent's numbered workflow steps. It satisfies
// agent.Progress and is safe for concurrent use.
type WorkflowLogger struct {
	mu     sync.Mutex
	w      io.Writer
	steps  int
	active []string
}

// NewWorkflowLogger creates a workflow logger writing to stderr.
func NewWorkflowLogger() *WorkflowLogger {
	return NewWorkflowLoggerTo(os.Stderr)
}

// NewWorkflowLoggerTo creates a workflow logger writing to w.
func NewWorkflowLoggerTo(w io.Writer) *WorkflowLogger {
	return &WorkflowLogger{w: w}
}

// Step prints a new numbered step and makes it the current one.
func (l *WorkflowLogger) Step(action, tool, details string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps++

	var b strings.Builder
	if tool != "" {
		fmt.Fprintf(&b, "🛠️  Step %d: %s using %s", l.steps, action, tool)
	} else {
		fmt.Fprintf(&b, "💭 Step %d: %s", l.steps, action)
	}
	if details != "" {
		fmt.Fprintf(&b, "\n   └─ %s", details)
	}
	fmt.Fprintf(l.w, "%s%s%s\n", Color(Blue), b.String(), Color(Reset))
	l.active = append(l.active, action)
}

// Working prints a heartbeat for the current step. It is silent when no
// step is active.
func (l *WorkflowLogger) Working(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.active) == 0 {
		return
	}
	fmt.Fprintf(l.w, "%s   ⏳ %s (on: %s)%s\n", Color(Yellow), msg, l.active[len(l.active)-1], Color(Reset))
}

// Result prints the outcome of the current step and pops it.
func (l *WorkflowLogger) Result(ok bool, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.active) > 0 {
		l.active = l.active[:len(l.active)-1]
	}
	if ok {
		fmt.Fprintf(l.w, "%s   ✅ %s%s\n", Color(Green), msg, Color(Reset))
	} else {
		fmt.Fprintf(l.w, "%s   ❌ %s%s\n", Color(Red), msg, Color(Reset))
	}
}

// Reset restarts step numbering.
func (l *WorkflowLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = 0
	l.active = nil
}

package agent

import (
	"fmt"
	"sync"
	"time"
)

// HeartbeatInterval is how often Working is reported while waiting on the model.
const HeartbeatInterval = 2 * time.Second

// Progress receives human-readable workflow updates.
type Progress interface {
	// Step reports a new workflow step. tool is empty for plain reasoning steps.
	Step(action, tool, details string)
	// Working reports that the current step is still running.
	Working(msg string)
	// Result reports the outcome of the current step.
	Result(ok bool, msg string)
	// Reset clears step numbering for a new conversation turn.
	Reset()
}

type nopProgress struct{}

func (nopProgress) Step(string, string, string) {}
func (nopProgress) Working(string)              {}
func (nopProgress) Result(bool, string)         {}
func (nopProgress) Reset()                      {}

// heartbeat reports Working every interval until the returned stop func is called.
// stop blocks until the reporting goroutine has exited.
func heartbeat(p Progress, interval time.Duration, label string) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	start := time.Now()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.Working(fmt.Sprintf("%s for %.1fs...", label, time.Since(start).Seconds()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

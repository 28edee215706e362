// Package domain provides core types shared by every codi front end.
package domain

// ExitCode represents the exit status of a codi command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed normally.
	ExitSuccess ExitCode = 0
	// ExitTaskFailed indicates the agent could not complete the task.
	ExitTaskFailed ExitCode = 1
	// ExitError indicates a usage or configuration error.
	ExitError ExitCode = 2
	// ExitInterrupted indicates the command was interrupted by a signal.
	ExitInterrupted ExitCode = 130
)

// Int returns the exit code as an int for use with os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}

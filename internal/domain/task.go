package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TaskType identifies the kind of work requested from the agent.
type TaskType string

const (
	TaskAnalyze  TaskType = "analyze"
	TaskGenerate TaskType = "generate"
	TaskReview   TaskType = "review"
)

// TaskTypes lists every supported task type in display order.
var TaskTypes = []TaskType{TaskAnalyze, TaskGenerate, TaskReview}

var (
	// ErrUnknownTaskType is returned for task types the agent does not implement.
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrEmptyDescription is returned when a task has no description.
	ErrEmptyDescription = errors.New("task description is required")
)

// ParseTaskType converts a string to a TaskType, ignoring case and surrounding space.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTaskType, s)
}

// Valid reports whether t is one of the supported task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskAnalyze, TaskGenerate, TaskReview:
		return true
	}
	return false
}

func (t TaskType) String() string {
	return string(t)
}

// CodeContext carries the source files a task operates on.
type CodeContext struct {
	Files       map[string]string `json:"files"`
	CurrentFile string            `json:"current_file,omitempty"`
	Language    string            `json:"language,omitempty"`
	ProjectRoot string            `json:"project_root,omitempty"`
}

// Paths returns the file paths in the context in lexical order.
func (c CodeContext) Paths() []string {
	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IsEmpty reports whether the context has no files.
func (c CodeContext) IsEmpty() bool {
	return len(c.Files) == 0
}

// Task is a unit of work submitted to the agent by any front end.
type Task struct {
	Type         TaskType    `json:"task_type"`
	Description  string      `json:"description"`
	Context      CodeContext `json:"context"`
	Requirements []string    `json:"requirements,omitempty"`
}

// Validate checks that the task has a supported type and a description.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTaskType, string(t.Type))
	}
	return nil
}

// CodeResponse is the agent's answer to a task.
type CodeResponse struct {
	Solution    string            `json:"solution"`
	Explanation string            `json:"explanation,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	CodeChanges map[string]string `json:"code_changes,omitempty"`
}

// ChangedPaths returns the paths of the code changes in lexical order.
func (r *CodeResponse) ChangedPaths() []string {
	paths := make([]string, 0, len(r.CodeChanges))
	for p := range r.CodeChanges {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

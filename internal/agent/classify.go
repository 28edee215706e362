package agent

import (
	"strings"

	"github.com/tognete/codi/internal/domain"
)

var (
	reviewKeywords   = []string{"review pr", "review pull request", "check pr"}
	analyzeKeywords  = []string{"analyze", "review", "check", "look at"}
	generateKeywords = []string{"generate", "create", "write", "implement"}

	fileOpKeywords = []string{"file", "directory", "folder", "repo", "repository", "count"}

	greetings = map[string]struct{}{"hi": {}, "hello": {}, "test": {}}
)

// IdentifyTaskType returns the task a chat message asks for, if any.
// Pull request reviews are matched before the broader analyze keywords,
// which would otherwise swallow them.
func IdentifyTaskType(message string) (domain.TaskType, bool) {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, reviewKeywords):
		return domain.TaskReview, true
	case containsAny(lower, analyzeKeywords):
		return domain.TaskAnalyze, true
	case containsAny(lower, generateKeywords):
		return domain.TaskGenerate, true
	}
	return "", false
}

// IsFileOperation reports whether a message asks about the repository layout.
func IsFileOperation(message string) bool {
	return containsAny(strings.ToLower(message), fileOpKeywords)
}

// IsGreeting reports whether a task description is a bare greeting.
func IsGreeting(description string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(description))]
	return ok
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

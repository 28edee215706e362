package agent

import "strings"

var (
	suggestionKeywords = []string{"suggest", "recommend", "consider", "should", "could"}
	criticalKeywords   = []string{"critical", "security", "vulnerability", "urgent", "bug", "error"}
)

// Suggestion markers used by PrioritizeSuggestions.
const (
	CriticalMarker = "🚨 "
	NormalMarker   = "💡 "
)

// ExtractSuggestions returns the trimmed lines of text that read as advice.
func ExtractSuggestions(text string) []string {
	var out []string
	for line := range strings.SplitSeq(text, "\n") {
		if containsAny(strings.ToLower(line), suggestionKeywords) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// PrioritizeSuggestions marks each suggestion and moves critical ones first,
// preserving relative order within each group.
func PrioritizeSuggestions(suggestions []string) []string {
	critical := make([]string, 0, len(suggestions))
	var normal []string
	for _, s := range suggestions {
		if containsAny(strings.ToLower(s), criticalKeywords) {
			critical = append(critical, CriticalMarker+s)
		} else {
			normal = append(normal, NormalMarker+s)
		}
	}
	return append(critical, normal...)
}

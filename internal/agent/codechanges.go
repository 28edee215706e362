package agent

import "strings"

const fence = "```"

// ParseCodeChanges extracts per-file contents from model output.
//
// A file starts at a fence whose info string contains a path separator or
// a dot, taking its first field as the name ("```cmd/main.go"), or at a
// "File: <path>" or "filename: <path>" line. It ends at a bare fence,
// at the start of the next file, or at the end of the text. Files with no
// content lines are dropped.
func ParseCodeChanges(text string) map[string]string {
	changes := make(map[string]string)
	var (
		current string
		content []string
	)
	flush := func() {
		if current != "" && len(content) > 0 {
			changes[current] = strings.Join(content, "\n")
			content = nil
		}
	}

	for line := range strings.SplitSeq(text, "\n") {
		switch {
		case strings.HasPrefix(line, fence) && len(line) > len(fence):
			flush()
			info := strings.TrimSpace(line[len(fence):])
			if strings.ContainsAny(info, "/.") {
				if fields := strings.Fields(info); len(fields) > 0 {
					current = fields[0]
				}
			}
		case strings.HasPrefix(line, "File: ") || strings.HasPrefix(line, "filename: "):
			flush()
			_, name, _ := strings.Cut(line, ": ")
			current = strings.TrimSpace(name)
		case line == fence:
			if current != "" && len(content) > 0 {
				flush()
				current = ""
			}
		case current != "":
			content = append(content, line)
		}
	}
	flush()
	return changes
}

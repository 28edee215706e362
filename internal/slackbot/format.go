package slackbot

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/slack-go/slack"
)

// Slack rejects section text above 3000 characters.
const (
	maxSectionRunes = 3000
	maxChangeRunes  = 1000
)

// StripMention returns the instruction following the leading user mention
// ("<@U123> analyze this" -> "analyze this"). Text without a mention is
// returned trimmed.
func StripMention(text string) string {
	if _, rest, ok := strings.Cut(text, ">"); ok && strings.HasPrefix(strings.TrimSpace(text), "<@") {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}

// FormatBlocks lays out a reply as Slack blocks: the text, an optional
// suggestion list, and one header plus fenced excerpt per changed file.
func FormatBlocks(text string, suggestions []string, changes map[string]string) []slack.Block {
	blocks := []slack.Block{section(truncate(text, maxSectionRunes))}

	if len(suggestions) > 0 {
		var b strings.Builder
		b.WriteString("*Suggestions:*")
		for _, s := range suggestions {
			b.WriteString("\n• " + s)
		}
		blocks = append(blocks, section(truncate(b.String(), maxSectionRunes)))
	}

	for _, file := range slices.Sorted(maps.Keys(changes)) {
		blocks = append(blocks,
			section(fmt.Sprintf("*Changes to %s:*", file)),
			section("```"+truncate(changes[file], maxChangeRunes)+"```"),
		)
	}
	return blocks
}

func section(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

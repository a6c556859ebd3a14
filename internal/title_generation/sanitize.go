package title_generation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/eternisai/session-titler/internal/conversation"
)

const (
	// UntitledPlaceholder replaces generated text without a usable line.
	UntitledPlaceholder = "Untitled"

	maxTitleLength       = 100
	truncatedTitleLength = maxTitleLength - len(conversation.Ellipsis)
)

// reasoningBlocks match paired reasoning blocks. RE2 has no backreferences, so each
// tag has its own expression.
var reasoningBlocks = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
}

// Sanitize turns raw model output into a title:
//   - paired reasoning blocks are removed, including multi-line ones
//   - the first non-empty trimmed line is kept, or "Untitled" if there is none
//   - matching surrounding quotes are stripped
//   - titles over 100 characters are cut to 97 characters plus "..."
//
// Example:
//
//	Sanitize("<think>reasoning</think>Fixing bug\nExtra line") == "Fixing bug"
func Sanitize(raw string) string {
	text := raw
	for _, re := range reasoningBlocks {
		text = re.ReplaceAllString(text, "")
	}

	title := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			title = line
			break
		}
	}

	title = trimQuotes(title)
	if title == "" {
		return UntitledPlaceholder
	}

	if utf8.RuneCountInString(title) > maxTitleLength {
		runes := []rune(title)
		title = string(runes[:truncatedTitleLength]) + conversation.Ellipsis
	}

	return title
}

func trimQuotes(s string) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first != last || (first != '"' && first != '\'' && first != '`') {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

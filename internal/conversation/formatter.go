package conversation

import "strings"

// Ellipsis is appended to text cut by Truncate.
const Ellipsis = "..."

// FormatTurns renders the last maxTurns turns as the text payload handed to the title
// model. Every message is truncated to maxCharsPerMessage characters.
func FormatTurns(turns []Turn, maxTurns, maxCharsPerMessage int) string {
	if maxTurns <= 0 || len(turns) == 0 {
		return ""
	}

	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	var sb strings.Builder

	for _, turn := range turns {
		sb.WriteString("User: ")
		sb.WriteString(Truncate(turn.UserText, maxCharsPerMessage))
		sb.WriteString("\n\n")

		if turn.Assistant == nil {
			continue
		}

		if turn.Assistant.FirstText == turn.Assistant.LastText {
			sb.WriteString("Assistant: ")
			sb.WriteString(Truncate(turn.Assistant.FirstText, maxCharsPerMessage))
			sb.WriteString("\n")
		} else {
			sb.WriteString("Assistant (initial): ")
			sb.WriteString(Truncate(turn.Assistant.FirstText, maxCharsPerMessage))
			sb.WriteString("\n")
			sb.WriteString("Assistant (final): ")
			sb.WriteString(Truncate(turn.Assistant.LastText, maxCharsPerMessage))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Truncate cuts text longer than n characters to exactly n characters and appends
// Ellipsis. Shorter text is returned unchanged.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	if n < 0 {
		n = 0
	}

	return string(runes[:n]) + Ellipsis
}

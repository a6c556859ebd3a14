package conversation

import (
	"sort"
	"strings"
	"time"
)

// ExtractTurns groups a session history into chronological conversational turns.
//
// System messages are discarded. Every user message opens a new turn; assistant text
// seen before the next user message is attached to the open turn. The last turn is
// always emitted, even when the assistant has not replied yet.
//
// Assistant messages that precede the first user message have no turn to belong to and
// are dropped.
func ExtractTurns(messages []Message) []Turn {
	ordered := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleUser || msg.Role == RoleAssistant {
			ordered = append(ordered, msg)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var (
		turns   []Turn
		current *Turn
		replies []reply
	)

	closeTurn := func() {
		if current == nil {
			return
		}
		if len(replies) > 0 {
			current.Assistant = &AssistantSummary{
				FirstText: replies[0].text,
				LastText:  replies[len(replies)-1].text,
				FirstTime: replies[0].at,
			}
		}
		turns = append(turns, *current)
		current = nil
		replies = nil
	}

	for _, msg := range ordered {
		switch msg.Role {
		case RoleUser:
			closeTurn()
			current = &Turn{
				UserText: MessageText(msg),
				UserTime: msg.CreatedAt,
			}
		case RoleAssistant:
			if current == nil {
				continue
			}
			if text := MessageText(msg); text != "" {
				replies = append(replies, reply{text: text, at: msg.CreatedAt})
			}
		}
	}

	closeTurn()

	return turns
}

type reply struct {
	text string
	at   time.Time
}

// MessageText joins the non-synthetic text parts of a message with newlines and trims
// the result.
func MessageText(msg Message) string {
	texts := make([]string, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		if part.Kind != PartKindText || part.Synthetic {
			continue
		}
		texts = append(texts, part.Text)
	}

	return strings.TrimSpace(strings.Join(texts, "\n"))
}

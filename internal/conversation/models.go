package conversation

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartKindText is the kind of parts that carry plain text.
const PartKindText = "text"

// Message is a single message of a session as returned by the message store.
type Message struct {
	ID              string
	Role            Role
	SessionID       string
	CreatedAt       time.Time
	CompletedAt     *time.Time // nil while the message is still being generated
	ParentMessageID string
	Parts           []Part
}

// Part is one ordered piece of a message.
type Part struct {
	Kind string
	Text string

	// Synthetic parts are injected by the host (reminders, tool scaffolding) and
	// never count as conversation text.
	Synthetic bool
}

// Turn is one user message plus the assistant text that followed it.
type Turn struct {
	UserText string
	UserTime time.Time

	// Assistant is nil when no non-empty assistant text was observed in the turn.
	Assistant *AssistantSummary
}

// AssistantSummary keeps the first and last assistant replies of a turn.
type AssistantSummary struct {
	FirstText string
	LastText  string
	FirstTime time.Time
}

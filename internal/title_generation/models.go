package title_generation

import (
	"context"

	"github.com/eternisai/session-titler/internal/conversation"
	"github.com/eternisai/session-titler/internal/notifications"
	"github.com/eternisai/session-titler/internal/routing"
)

// MessageSource returns the message history of a session.
type MessageSource interface {
	ListMessages(ctx context.Context, sessionID string) ([]conversation.Message, error)
}

// SessionLookup tells whether a session is a sub-session.
type SessionLookup interface {
	HasParent(ctx context.Context, sessionID string) (bool, error)
}

// TitleUpdater applies a new title to a session.
type TitleUpdater interface {
	UpdateTitle(ctx context.Context, sessionID, title string) error
}

// Notifier shows a transient notice to the user of a session.
type Notifier interface {
	Notify(ctx context.Context, notice notifications.Notice) error
}

// Store bundles the storage collaborators. Both storage backends implement it.
type Store interface {
	MessageSource
	SessionLookup
	TitleUpdater
}

// Result describes an applied title.
type Result struct {
	SessionID string                 `json:"session_id"`
	Title     string                 `json:"title"`
	Model     routing.ModelReference `json:"-"`
	Source    routing.Source         `json:"source"`
	Reason    string                 `json:"reason,omitempty"`

	// FailedModel is the configured model that could not be used, if any.
	FailedModel *routing.ModelReference `json:"-"`
}

// idleEvent is a queued idle notification.
type idleEvent struct {
	SessionID string
	RunID     string
}

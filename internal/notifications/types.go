package notifications

import (
	"encoding/json"
	"time"
)

// Severity of a user notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a transient message shown to the user of a session.
type Notice struct {
	SessionID string
	Title     string
	Message   string
	Severity  Severity
	Duration  time.Duration
}

// noticePayload is the wire representation of a Notice.
type noticePayload struct {
	SessionID  string   `json:"session_id"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	DurationMS int64    `json:"duration_ms"`
}

// MarshalJSON encodes the duration in milliseconds.
func (n Notice) MarshalJSON() ([]byte, error) {
	return json.Marshal(noticePayload{
		SessionID:  n.SessionID,
		Title:      n.Title,
		Message:    n.Message,
		Severity:   n.Severity,
		DurationMS: n.Duration.Milliseconds(),
	})
}

// UnmarshalJSON decodes the wire representation.
func (n *Notice) UnmarshalJSON(data []byte) error {
	var payload noticePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	*n = Notice{
		SessionID: payload.SessionID,
		Title:     payload.Title,
		Message:   payload.Message,
		Severity:  payload.Severity,
		Duration:  time.Duration(payload.DurationMS) * time.Millisecond,
	}

	return nil
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject notices are published on.
const DefaultSubject = "session.notice"

// NATSSender publishes notices as JSON on a NATS subject for the UI gateway.
type NATSSender struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSender creates a NATS sender. Returns nil if the connection is not available.
func NewNATSSender(nc *nats.Conn, subject string) *NATSSender {
	if nc == nil {
		return nil
	}

	if subject == "" {
		subject = DefaultSubject
	}

	return &NATSSender{
		nc:      nc,
		subject: subject,
	}
}

func (s *NATSSender) Name() string {
	return "nats"
}

func (s *NATSSender) Send(ctx context.Context, notice Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.nc.IsClosed() {
		return errors.New("nats connection closed")
	}

	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish notice to %s: %w", s.subject, err)
	}

	return nil
}

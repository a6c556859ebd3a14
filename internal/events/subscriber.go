// Package events connects the title service to idle notifications published on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/eternisai/session-titler/internal/logger"
)

// DefaultIdleSubject is the subject hosts publish idle notifications on.
const DefaultIdleSubject = "session.idle"

// IdleEvent is the payload of an idle notification.
type IdleEvent struct {
	SessionID string `json:"session_id"`
}

// IdleHandler receives idle notifications. title_generation.Service implements it.
type IdleHandler interface {
	OnIdle(ctx context.Context, sessionID string)
}

// IdleSubscriber forwards idle notifications from NATS to the handler.
//
// Subscriptions join a queue group, so with several replicas every notification is
// handled by exactly one of them and per-session counters stay consistent as long as
// a session's notifications are routed to one replica.
type IdleSubscriber struct {
	nc           *nats.Conn
	subject      string
	queue        string
	handler      IdleHandler
	logger       *logger.Logger
	subscription *nats.Subscription
}

// NewIdleSubscriber creates a subscriber. Returns nil if NATS connection is not available.
func NewIdleSubscriber(nc *nats.Conn, subject, queue string, handler IdleHandler, logger *logger.Logger) *IdleSubscriber {
	if nc == nil {
		return nil
	}

	if subject == "" {
		subject = DefaultIdleSubject
	}

	return &IdleSubscriber{
		nc:      nc,
		subject: subject,
		queue:   queue,
		handler: handler,
		logger:  logger.WithComponent("idle-subscriber"),
	}
}

// Start begins listening for idle notifications.
func (s *IdleSubscriber) Start() error {
	var (
		sub *nats.Subscription
		err error
	)

	if s.queue != "" {
		sub, err = s.nc.QueueSubscribe(s.subject, s.queue, s.handleMessage)
	} else {
		sub, err = s.nc.Subscribe(s.subject, s.handleMessage)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.subscription = sub
	s.logger.Info("idle subscriber started",
		slog.String("subject", s.subject),
		slog.String("queue", s.queue))

	return nil
}

// Stop drains the subscription.
func (s *IdleSubscriber) Stop() error {
	if s.subscription != nil {
		if err := s.subscription.Drain(); err != nil {
			return fmt.Errorf("failed to drain subscription: %w", err)
		}
	}
	s.logger.Info("idle subscriber stopped")
	return nil
}

func (s *IdleSubscriber) handleMessage(msg *nats.Msg) {
	HandleIdlePayload(context.Background(), msg.Data, s.handler, s.logger)
}

// HandleIdlePayload decodes an idle notification and passes it to the handler.
// Invalid payloads are logged and dropped.
func HandleIdlePayload(ctx context.Context, data []byte, handler IdleHandler, logger *logger.Logger) {
	var event IdleEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Warn("received invalid idle notification", slog.String("error", err.Error()))
		return
	}

	if event.SessionID == "" {
		logger.Warn("received idle notification without session id")
		return
	}

	logger.Debug("received idle notification", slog.String("session_id", event.SessionID))

	handler.OnIdle(ctx, event.SessionID)
}

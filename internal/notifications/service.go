package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eternisai/session-titler/internal/logger"
)

// Sender delivers a notice over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, notice Notice) error
}

// Service fans notices out to every configured sender.
type Service struct {
	senders []Sender
	logger  *logger.Logger
	enabled bool
}

// NewService creates a notice service. A disabled service accepts and drops notices.
func NewService(logger *logger.Logger, enabled bool, senders ...Sender) *Service {
	return &Service{
		senders: senders,
		logger:  logger.WithComponent("notifications"),
		enabled: enabled,
	}
}

// Notify sends the notice to all senders. It fails only if every sender failed.
func (s *Service) Notify(ctx context.Context, notice Notice) error {
	log := s.logger.WithContext(ctx)

	if !s.enabled || len(s.senders) == 0 {
		log.Debug("notices disabled, skipping",
			slog.String("session_id", notice.SessionID),
			slog.String("title", notice.Title))
		return nil
	}

	failureCount := 0
	var lastErr error

	for _, sender := range s.senders {
		if err := sender.Send(ctx, notice); err != nil {
			failureCount++
			lastErr = err
			log.Warn("failed to send notice",
				slog.String("sender", sender.Name()),
				slog.String("session_id", notice.SessionID),
				slog.String("error", err.Error()))
			continue
		}

		log.Debug("notice sent",
			slog.String("sender", sender.Name()),
			slog.String("session_id", notice.SessionID))
	}

	if failureCount == len(s.senders) {
		return fmt.Errorf("all %d notice sender(s) failed: %w", failureCount, lastErr)
	}

	return nil
}

// LogSender writes notices to the service log. Used when no broker is configured.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(logger *logger.Logger) *LogSender {
	return &LogSender{logger: logger.WithComponent("notice-log")}
}

func (s *LogSender) Name() string {
	return "log"
}

func (s *LogSender) Send(ctx context.Context, notice Notice) error {
	s.logger.WithContext(ctx).Info(notice.Message,
		slog.String("session_id", notice.SessionID),
		slog.String("title", notice.Title),
		slog.String("severity", string(notice.Severity)),
		slog.Duration("duration", notice.Duration))
	return nil
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/eternisai/session-titler/internal/logger"
)

type senderEmulator struct {
	name    string
	err     error
	notices []Notice
}

func (s *senderEmulator) Name() string {
	return s.name
}

func (s *senderEmulator) Send(ctx context.Context, notice Notice) error {
	s.notices = append(s.notices, notice)
	return s.err
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	if testing.Verbose() {
		return logger.New(logger.Config{Level: slog.LevelDebug})
	}
	return logger.New(logger.Config{Level: slog.LevelError})
}

func TestNotifyFanOut(t *testing.T) {
	notice := Notice{
		SessionID: "ses_1",
		Title:     "Title model unavailable",
		Message:   "Using anthropic/claude-haiku-4-5",
		Severity:  SeverityInfo,
		Duration:  5 * time.Second,
	}

	tests := []struct {
		name      string
		errs      []error
		expectErr bool
	}{
		{"all succeed", []error{nil, nil}, false},
		{"partial failure", []error{errors.New("broker down"), nil}, false},
		{"all fail", []error{errors.New("broker down"), errors.New("disk full")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var senders []Sender
			var emulators []*senderEmulator

			for i, err := range tt.errs {
				emu := &senderEmulator{name: string(rune('a' + i)), err: err}
				emulators = append(emulators, emu)
				senders = append(senders, emu)
			}

			s := NewService(newTestLogger(t), true, senders...)
			err := s.Notify(context.Background(), notice)

			if tt.expectErr != (err != nil) {
				t.Fatalf("expected error=%v, got %v", tt.expectErr, err)
			}

			for _, emu := range emulators {
				if len(emu.notices) != 1 || emu.notices[0] != notice {
					t.Errorf("sender %s received %v", emu.name, emu.notices)
				}
			}
		})
	}
}

func TestNotifyDisabled(t *testing.T) {
	emu := &senderEmulator{name: "a", err: errors.New("must not be called")}
	s := NewService(newTestLogger(t), false, emu)

	if err := s.Notify(context.Background(), Notice{SessionID: "ses_1"}); err != nil {
		t.Fatalf("disabled service returned error: %v", err)
	}
	if len(emu.notices) != 0 {
		t.Errorf("disabled service sent %d notices", len(emu.notices))
	}
}

func TestNoticeWireFormat(t *testing.T) {
	data, err := json.Marshal(Notice{
		SessionID: "ses_1",
		Title:     "t",
		Message:   "m",
		Severity:  SeverityWarning,
		Duration:  1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if raw["duration_ms"] != float64(1500) {
		t.Errorf("expected duration_ms 1500, got %v", raw["duration_ms"])
	}
	if raw["severity"] != "warning" {
		t.Errorf("expected severity warning, got %v", raw["severity"])
	}
}

func TestNewNATSSenderWithoutConnection(t *testing.T) {
	if NewNATSSender(nil, "") != nil {
		t.Error("expected nil sender without connection")
	}
}

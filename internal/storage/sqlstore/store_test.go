package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eternisai/session-titler/internal/conversation"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(context.Background(), DialectSQLite, dsn, PoolConfig{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRebind(t *testing.T) {
	query := `UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`

	if got := DialectPostgres.rebind(query); got != `UPDATE sessions SET title = $1, updated_at = $2 WHERE id = $3` {
		t.Errorf("unexpected postgres query %q", got)
	}
	if got := DialectSQLite.rebind(query); got != query {
		t.Errorf("sqlite query must be unchanged, got %q", got)
	}
}

func TestOpenUnsupportedDialect(t *testing.T) {
	if _, err := Open(context.Background(), Dialect("mysql"), "", PoolConfig{}); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}

func TestListMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateSession(ctx, "ses_1", ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	completed := base.Add(3 * time.Minute)

	// Inserted out of order; the store returns creation order.
	messages := []conversation.Message{
		{
			ID: "m2", Role: conversation.RoleAssistant, SessionID: "ses_1",
			CreatedAt: base.Add(2 * time.Minute), CompletedAt: &completed, ParentMessageID: "m1",
			Parts: []conversation.Part{
				{Kind: "reasoning", Text: "thinking", Synthetic: true},
				{Kind: conversation.PartKindText, Text: "Check the handler"},
			},
		},
		{
			ID: "m1", Role: conversation.RoleUser, SessionID: "ses_1", CreatedAt: base,
			Parts: []conversation.Part{{Kind: conversation.PartKindText, Text: "login fails"}},
		},
		{
			ID: "m3", Role: conversation.RoleUser, SessionID: "ses_1", CreatedAt: base.Add(5 * time.Minute),
		},
	}

	for _, msg := range messages {
		if err := store.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage(%s) failed: %v", msg.ID, err)
		}
	}

	got, err := store.ListMessages(ctx, "ses_1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}

	for i, id := range []string{"m1", "m2", "m3"} {
		if got[i].ID != id {
			t.Errorf("message %d: expected %s, got %s", i, id, got[i].ID)
		}
	}

	assistant := got[1]
	if assistant.Role != conversation.RoleAssistant || assistant.ParentMessageID != "m1" {
		t.Errorf("unexpected assistant message %+v", assistant)
	}
	if assistant.CompletedAt == nil || !assistant.CompletedAt.Equal(completed) {
		t.Errorf("unexpected completion time %v", assistant.CompletedAt)
	}
	if len(assistant.Parts) != 2 || !assistant.Parts[0].Synthetic || assistant.Parts[1].Text != "Check the handler" {
		t.Errorf("unexpected parts %+v", assistant.Parts)
	}
	if len(got[2].Parts) != 0 {
		t.Errorf("message without parts returned %+v", got[2].Parts)
	}

	turns := conversation.ExtractTurns(got)
	if len(turns) != 2 || turns[0].Assistant == nil || turns[0].Assistant.FirstText != "Check the handler" {
		t.Errorf("unexpected turns %+v", turns)
	}

	empty, err := store.ListMessages(ctx, "unknown")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no messages for unknown session, got %v, %v", empty, err)
	}
}

func TestHasParent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateSession(ctx, "root", ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateSession(ctx, "child", "root"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if hasParent, err := store.HasParent(ctx, "root"); err != nil || hasParent {
		t.Errorf("root: expected no parent, got %v, %v", hasParent, err)
	}
	if hasParent, err := store.HasParent(ctx, "child"); err != nil || !hasParent {
		t.Errorf("child: expected parent, got %v, %v", hasParent, err)
	}
	if _, err := store.HasParent(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUpdateTitle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateSession(ctx, "ses_1", ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := store.UpdateTitle(ctx, "ses_1", "Fixing login bug"); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}

	title, err := store.GetTitle(ctx, "ses_1")
	if err != nil {
		t.Fatalf("GetTitle failed: %v", err)
	}
	if title != "Fixing login bug" {
		t.Errorf("unexpected title %q", title)
	}

	if err := store.UpdateTitle(ctx, "missing", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

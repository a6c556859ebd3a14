package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/eternisai/session-titler/internal/conversation"
)

func TestMessageDocumentConversion(t *testing.T) {
	completed := time.Date(2026, 3, 1, 9, 1, 0, 0, time.UTC)
	msg := conversation.Message{
		ID:              "m2",
		Role:            conversation.RoleAssistant,
		SessionID:       "ses_1",
		CreatedAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		CompletedAt:     &completed,
		ParentMessageID: "m1",
		Parts: []conversation.Part{
			{Kind: "reasoning", Text: "thinking", Synthetic: true},
			{Kind: conversation.PartKindText, Text: "Check the handler"},
		},
	}

	got := fromMessage(msg).toMessage("m2", "ses_1")

	if got.ID != msg.ID || got.Role != msg.Role || got.SessionID != msg.SessionID || got.ParentMessageID != msg.ParentMessageID {
		t.Errorf("unexpected message %+v", got)
	}
	if !got.CreatedAt.Equal(msg.CreatedAt) || got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("unexpected timestamps %v / %v", got.CreatedAt, got.CompletedAt)
	}
	if len(got.Parts) != 2 || got.Parts[0] != msg.Parts[0] || got.Parts[1] != msg.Parts[1] {
		t.Errorf("unexpected parts %+v", got.Parts)
	}
}

// TestStoreWithEmulator runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST
// is set.
func TestStoreWithEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()

	client, err := NewClient(ctx, "session-titler-test", "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	store := New(client)
	defer store.Close()

	suffix := fmt.Sprint(time.Now().UnixNano())
	root, child := "root-"+suffix, "child-"+suffix

	if err := store.CreateSession(ctx, root, ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateSession(ctx, child, root); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, role := range []conversation.Role{conversation.RoleUser, conversation.RoleAssistant} {
		msg := conversation.Message{
			ID:        fmt.Sprintf("m%d", i),
			Role:      role,
			SessionID: root,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Parts:     []conversation.Part{{Kind: conversation.PartKindText, Text: string(role)}},
		}
		if err := store.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	messages, err := store.ListMessages(ctx, root)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != conversation.RoleUser {
		t.Errorf("unexpected messages %+v", messages)
	}

	if hasParent, err := store.HasParent(ctx, child); err != nil || !hasParent {
		t.Errorf("child: expected parent, got %v, %v", hasParent, err)
	}
	if _, err := store.HasParent(ctx, "missing-"+suffix); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if err := store.UpdateTitle(ctx, root, "Title"); err != nil {
		t.Errorf("UpdateTitle failed: %v", err)
	}
	if err := store.UpdateTitle(ctx, "missing-"+suffix, "Title"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

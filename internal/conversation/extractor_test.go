package conversation

import (
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func textMessage(id string, role Role, minute int, texts ...string) Message {
	msg := Message{
		ID:        id,
		Role:      role,
		SessionID: "ses-1",
		CreatedAt: at(minute),
	}
	for _, text := range texts {
		msg.Parts = append(msg.Parts, Part{Kind: PartKindText, Text: text})
	}
	return msg
}

func TestExtractTurnsSingleUserMessage(t *testing.T) {
	turns := ExtractTurns([]Message{
		textMessage("m1", RoleUser, 0, "Fix the login bug"),
	})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].UserText != "Fix the login bug" {
		t.Errorf("unexpected user text %q", turns[0].UserText)
	}
	if turns[0].Assistant != nil {
		t.Errorf("expected no assistant summary, got %+v", turns[0].Assistant)
	}
}

func TestExtractTurnsInterleaved(t *testing.T) {
	turns := ExtractTurns([]Message{
		textMessage("m1", RoleUser, 0, "first question"),
		textMessage("m2", RoleAssistant, 1, "first answer"),
		textMessage("m3", RoleUser, 2, "second question"),
	})

	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}

	first := turns[0].Assistant
	if first == nil {
		t.Fatal("expected assistant summary on the first turn")
	}
	if first.FirstText != "first answer" || first.LastText != "first answer" {
		t.Errorf("unexpected summary %+v", first)
	}
	if !first.FirstTime.Equal(at(1)) {
		t.Errorf("expected first time %v, got %v", at(1), first.FirstTime)
	}

	if turns[1].Assistant != nil {
		t.Errorf("expected trailing turn without summary, got %+v", turns[1].Assistant)
	}
}

func TestExtractTurnsFirstAndLastReplies(t *testing.T) {
	turns := ExtractTurns([]Message{
		textMessage("m1", RoleUser, 0, "refactor the parser"),
		textMessage("m2", RoleAssistant, 1, "looking at the parser"),
		textMessage("m3", RoleAssistant, 2, "   "),
		textMessage("m4", RoleAssistant, 3, "done, parser refactored"),
	})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}

	summary := turns[0].Assistant
	if summary == nil {
		t.Fatal("expected assistant summary")
	}
	if summary.FirstText != "looking at the parser" {
		t.Errorf("unexpected first text %q", summary.FirstText)
	}
	if summary.LastText != "done, parser refactored" {
		t.Errorf("unexpected last text %q", summary.LastText)
	}
	if !summary.FirstTime.Equal(at(1)) {
		t.Errorf("unexpected first time %v", summary.FirstTime)
	}
}

func TestExtractTurnsSkipsSystemAndSyntheticParts(t *testing.T) {
	assistant := textMessage("m3", RoleAssistant, 2, "visible")
	assistant.Parts = append(assistant.Parts,
		Part{Kind: PartKindText, Text: "injected reminder", Synthetic: true},
		Part{Kind: "tool", Text: "tool output"},
	)

	turns := ExtractTurns([]Message{
		textMessage("m1", RoleSystem, 0, "you are a helpful assistant"),
		textMessage("m2", RoleUser, 1, "hello", "world"),
		assistant,
	})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].UserText != "hello\nworld" {
		t.Errorf("unexpected user text %q", turns[0].UserText)
	}
	if turns[0].Assistant == nil || turns[0].Assistant.FirstText != "visible" {
		t.Errorf("unexpected summary %+v", turns[0].Assistant)
	}
}

func TestExtractTurnsOrdersByCreationTime(t *testing.T) {
	turns := ExtractTurns([]Message{
		textMessage("m3", RoleUser, 5, "later"),
		textMessage("m1", RoleUser, 0, "earlier"),
		textMessage("m2", RoleAssistant, 1, "reply to earlier"),
	})

	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].UserTime.Before(turns[i-1].UserTime) {
			t.Fatalf("turns are not in chronological order: %+v", turns)
		}
	}
	if turns[0].UserText != "earlier" || turns[0].Assistant == nil {
		t.Errorf("unexpected first turn %+v", turns[0])
	}
}

func TestExtractTurnsDropsLeadingAssistant(t *testing.T) {
	turns := ExtractTurns([]Message{
		textMessage("m1", RoleAssistant, 0, "welcome"),
		textMessage("m2", RoleUser, 1, "hi"),
	})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Assistant != nil {
		t.Errorf("expected no summary, got %+v", turns[0].Assistant)
	}
}

func TestExtractTurnsEmpty(t *testing.T) {
	if turns := ExtractTurns(nil); len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
}

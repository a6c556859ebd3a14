package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eternisai/session-titler/internal/conversation"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Store implements the message, parent and title collaborators of the title service.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

const listMessages = `
SELECT m.id, m.role, m.session_id, m.parent_message_id, m.created_at, m.completed_at,
       p.kind, p.text, p.synthetic
FROM messages m
LEFT JOIN message_parts p ON p.message_id = m.id
WHERE m.session_id = ?
ORDER BY m.created_at, m.id, p.position`

// ListMessages returns the session's messages in creation order with their parts.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(listMessages), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages of session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []conversation.Message

	for rows.Next() {
		var (
			msg             conversation.Message
			role            string
			parentMessageID sql.NullString
			completedAt     sql.NullTime
			kind            sql.NullString
			text            sql.NullString
			synthetic       sql.NullBool
		)

		if err := rows.Scan(
			&msg.ID, &role, &msg.SessionID, &parentMessageID, &msg.CreatedAt, &completedAt,
			&kind, &text, &synthetic,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}

		// Rows of one message are adjacent; start a new message when the ID changes.
		if len(messages) == 0 || messages[len(messages)-1].ID != msg.ID {
			msg.Role = conversation.Role(role)
			msg.ParentMessageID = parentMessageID.String
			if completedAt.Valid {
				t := completedAt.Time
				msg.CompletedAt = &t
			}
			messages = append(messages, msg)
		}

		if kind.Valid {
			last := &messages[len(messages)-1]
			last.Parts = append(last.Parts, conversation.Part{
				Kind:      kind.String,
				Text:      text.String,
				Synthetic: synthetic.Bool,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages of session %s: %w", sessionID, err)
	}

	return messages, nil
}

const getParentID = `SELECT parent_id FROM sessions WHERE id = ?`

// HasParent reports whether the session is a sub-session.
func (s *Store) HasParent(ctx context.Context, sessionID string) (bool, error) {
	var parentID sql.NullString

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(getParentID), sessionID).Scan(&parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return false, fmt.Errorf("failed to look up session %s: %w", sessionID, err)
	}

	return parentID.Valid && parentID.String != "", nil
}

const updateTitle = `UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`

// UpdateTitle stores the new title of the session.
func (s *Store) UpdateTitle(ctx context.Context, sessionID, title string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(updateTitle), title, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update title of session %s: %w", sessionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update title of session %s: %w", sessionID, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	return nil
}

const getTitle = `SELECT title FROM sessions WHERE id = ?`

// GetTitle returns the current title of the session.
func (s *Store) GetTitle(ctx context.Context, sessionID string) (string, error) {
	var title string

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(getTitle), sessionID).Scan(&title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return "", fmt.Errorf("failed to get title of session %s: %w", sessionID, err)
	}

	return title, nil
}

const insertSession = `INSERT INTO sessions (id, parent_id) VALUES (?, ?)`

// CreateSession registers a session. parentID is empty for top-level sessions.
func (s *Store) CreateSession(ctx context.Context, sessionID, parentID string) error {
	parent := sql.NullString{String: parentID, Valid: parentID != ""}

	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(insertSession), sessionID, parent); err != nil {
		return fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}

	return nil
}

const (
	insertMessage = `INSERT INTO messages (id, session_id, role, parent_message_id, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?)`
	insertPart = `INSERT INTO message_parts (message_id, position, kind, text, synthetic) VALUES (?, ?, ?, ?, ?)`
)

// AddMessage stores a message and its parts in one transaction.
func (s *Store) AddMessage(ctx context.Context, msg conversation.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	parentMessageID := sql.NullString{String: msg.ParentMessageID, Valid: msg.ParentMessageID != ""}

	var completedAt sql.NullTime
	if msg.CompletedAt != nil {
		completedAt = sql.NullTime{Time: msg.CompletedAt.UTC(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, s.dialect.rebind(insertMessage),
		msg.ID, msg.SessionID, string(msg.Role), parentMessageID, msg.CreatedAt.UTC(), completedAt,
	); err != nil {
		return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
	}

	for i, part := range msg.Parts {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(insertPart),
			msg.ID, i, part.Kind, part.Text, part.Synthetic,
		); err != nil {
			return fmt.Errorf("failed to insert part %d of message %s: %w", i, msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message %s: %w", msg.ID, err)
	}

	return nil
}

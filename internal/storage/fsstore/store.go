// Package fsstore keeps sessions and their messages in Cloud Firestore.
//
// Layout:
//
//	/sessions/{sessionId}                      parentId, title, updatedAt
//	/sessions/{sessionId}/messages/{messageId} role, createdAt, completedAt, parentMessageId, parts
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eternisai/session-titler/internal/conversation"
)

const (
	sessionsCollection = "sessions"
	messagesCollection = "messages"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

type sessionDoc struct {
	ParentID  string    `firestore:"parentId,omitempty"`
	Title     string    `firestore:"title"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type partDoc struct {
	Kind      string `firestore:"kind"`
	Text      string `firestore:"text,omitempty"`
	Synthetic bool   `firestore:"synthetic,omitempty"`
}

type messageDoc struct {
	Role            string     `firestore:"role"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	CompletedAt     *time.Time `firestore:"completedAt,omitempty"`
	ParentMessageID string     `firestore:"parentMessageId,omitempty"`
	Parts           []partDoc  `firestore:"parts"`
}

func (d *messageDoc) toMessage(id, sessionID string) conversation.Message {
	msg := conversation.Message{
		ID:              id,
		Role:            conversation.Role(d.Role),
		SessionID:       sessionID,
		CreatedAt:       d.CreatedAt,
		CompletedAt:     d.CompletedAt,
		ParentMessageID: d.ParentMessageID,
		Parts:           make([]conversation.Part, 0, len(d.Parts)),
	}

	for _, part := range d.Parts {
		msg.Parts = append(msg.Parts, conversation.Part{
			Kind:      part.Kind,
			Text:      part.Text,
			Synthetic: part.Synthetic,
		})
	}

	return msg
}

func fromMessage(msg conversation.Message) *messageDoc {
	doc := &messageDoc{
		Role:            string(msg.Role),
		CreatedAt:       msg.CreatedAt,
		CompletedAt:     msg.CompletedAt,
		ParentMessageID: msg.ParentMessageID,
		Parts:           make([]partDoc, 0, len(msg.Parts)),
	}

	for _, part := range msg.Parts {
		doc.Parts = append(doc.Parts, partDoc{
			Kind:      part.Kind,
			Text:      part.Text,
			Synthetic: part.Synthetic,
		})
	}

	return doc
}

// Store implements the message, parent and title collaborators of the title service.
type Store struct {
	client *firestore.Client
}

// NewClient creates a Firestore client through the Firebase app. Empty credentials
// fall back to application default credentials.
func NewClient(ctx context.Context, projectID, credJSON string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}

	return client, nil
}

// New wraps a Firestore client. Returns nil if the client is nil.
func New(client *firestore.Client) *Store {
	if client == nil {
		return nil
	}
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) session(sessionID string) *firestore.DocumentRef {
	return s.client.Collection(sessionsCollection).Doc(sessionID)
}

// ListMessages returns the session's messages ordered by creation time.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionID must be non-empty")
	}

	docs, err := s.session(sessionID).
		Collection(messagesCollection).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query messages of session %s: %w", sessionID, err)
	}

	messages := make([]conversation.Message, 0, len(docs))
	for _, doc := range docs {
		var data messageDoc
		if err := doc.DataTo(&data); err != nil {
			return nil, fmt.Errorf("failed to parse message %s of session %s: %w", doc.Ref.ID, sessionID, err)
		}
		messages = append(messages, data.toMessage(doc.Ref.ID, sessionID))
	}

	return messages, nil
}

// HasParent reports whether the session is a sub-session.
func (s *Store) HasParent(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, status.Error(codes.InvalidArgument, "sessionID must be non-empty")
	}

	doc, err := s.session(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return false, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	var data sessionDoc
	if err := doc.DataTo(&data); err != nil {
		return false, fmt.Errorf("failed to parse session %s: %w", sessionID, err)
	}

	return data.ParentID != "", nil
}

// UpdateTitle stores the new title of an existing session.
func (s *Store) UpdateTitle(ctx context.Context, sessionID, title string) error {
	if sessionID == "" {
		return status.Error(codes.InvalidArgument, "sessionID must be non-empty")
	}

	_, err := s.session(sessionID).Update(ctx, []firestore.Update{
		{Path: "title", Value: title},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("failed to update title of session %s: %w", sessionID, err)
	}

	return nil
}

// CreateSession registers a session. parentID is empty for top-level sessions.
func (s *Store) CreateSession(ctx context.Context, sessionID, parentID string) error {
	_, err := s.session(sessionID).Create(ctx, &sessionDoc{
		ParentID:  parentID,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}

	return nil
}

// AddMessage stores a message. Saving the same message twice is not an error.
func (s *Store) AddMessage(ctx context.Context, msg conversation.Message) error {
	if msg.SessionID == "" || msg.ID == "" {
		return status.Error(codes.InvalidArgument, "sessionID and messageID must be non-empty")
	}

	_, err := s.session(msg.SessionID).Collection(messagesCollection).Doc(msg.ID).Create(ctx, fromMessage(msg))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to save message %s of session %s: %w", msg.ID, msg.SessionID, err)
	}

	return nil
}

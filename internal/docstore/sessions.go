package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentsql/bridge/pkg/models"
)

type sessionDocument struct {
	ID        string    `bson:"session_id"`
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d sessionDocument) toSession() *models.Session {
	return &models.Session{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CreateSession inserts a new conversation session.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := sessionDocument{
		ID:        session.ID,
		UserID:    session.UserID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("docstore: create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc sessionDocument
	err := s.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get session: %w", err)
	}
	return doc.toSession(), nil
}

// ListSessions returns userID's sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.sessions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []*models.Session{}
	for cursor.Next(ctx) {
		var doc sessionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("docstore: decode session: %w", err)
		}
		sessions = append(sessions, doc.toSession())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list sessions cursor: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and cascades to its messages.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.messages.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("docstore: delete session messages: %w", err)
	}
	res, err := s.sessions.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("docstore: delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSessionTitle updates a session's title, used for the agent's first-turn
// title synthesis.
func (s *Store) SetSessionTitle(ctx context.Context, sessionID, title string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("docstore: set session title: %w", err)
	}
	return nil
}

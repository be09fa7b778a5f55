package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentsql/bridge/pkg/models"
)

type authSessionDocument struct {
	Token      string    `bson:"token"`
	UserID     string    `bson:"user_id"`
	Email      string    `bson:"email"`
	Name       string    `bson:"name,omitempty"`
	PictureURL string    `bson:"picture_url,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d authSessionDocument) toAuthSession() *models.AuthSession {
	return &models.AuthSession{
		Token:      d.Token,
		UserID:     d.UserID,
		Email:      d.Email,
		Name:       d.Name,
		PictureURL: d.PictureURL,
		CreatedAt:  d.CreatedAt,
	}
}

// UpsertAuthSessionByEmail creates an auth session for email if none exists,
// or refreshes its profile fields while preserving the existing token.
// Split into $setOnInsert/$set so a concurrent login for the same email
// never mints two tokens.
func (s *Store) UpsertAuthSessionByEmail(ctx context.Context, email string, newToken string, session *models.AuthSession) (*models.AuthSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.auth.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{
			"$setOnInsert": bson.M{
				"token":      newToken,
				"user_id":    session.UserID,
				"email":      email,
				"created_at": session.CreatedAt,
			},
			"$set": bson.M{
				"name":        session.Name,
				"picture_url": session.PictureURL,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("docstore: upsert auth session: %w", err)
	}

	return s.GetAuthSessionByEmail(ctx, email)
}

// GetAuthSessionByEmail looks up the current auth session for email.
func (s *Store) GetAuthSessionByEmail(ctx context.Context, email string) (*models.AuthSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc authSessionDocument
	err := s.auth.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get auth session by email: %w", err)
	}
	return doc.toAuthSession(), nil
}

// GetAuthSessionByToken validates a bearer token, the hot path hit on every
// authenticated request.
func (s *Store) GetAuthSessionByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc authSessionDocument
	err := s.auth.FindOne(ctx, bson.M{"token": token}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get auth session by token: %w", err)
	}
	return doc.toAuthSession(), nil
}

// DeleteAuthSessionByToken revokes a session, used by logout.
func (s *Store) DeleteAuthSessionByToken(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.auth.DeleteOne(ctx, bson.M{"token": token})
	if err != nil {
		return fmt.Errorf("docstore: delete auth session: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

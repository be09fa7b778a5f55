// Package docstore is the document-store adapter for conversation sessions,
// messages, and auth sessions, grounded on goa-ai's mongo client wrapper:
// one collection handle per logical collection, startup index creation, and
// private BSON documents that convert to/from pkg/models.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/agentsql/bridge/pkg/models"
)

// ErrNotFound is returned when a lookup by id, token, or email matches no
// document.
var ErrNotFound = errors.New("docstore: not found")

// Config configures the Mongo connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store is the document store adapter. It is safe for concurrent use; the
// underlying driver pools connections internally.
type Store struct {
	client   *mongo.Client
	sessions *mongo.Collection
	messages *mongo.Collection
	auth     *mongo.Collection
	timeout  time.Duration
}

// Connect dials Mongo, pings it, and ensures the collections named in §4.B
// carry their required indexes.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}

	db := client.Database(cfg.Database)
	store := &Store{
		client:   client,
		sessions: db.Collection("sessions"),
		messages: db.Collection("messages"),
		auth:     db.Collection("auth_sessions"),
		timeout:  cfg.Timeout,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.sessions.Indexes().CreateMany(indexCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("docstore: ensure session indexes: %w", err)
	}

	if _, err := s.messages.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("docstore: ensure message indexes: %w", err)
	}

	if _, err := s.auth.Indexes().CreateMany(indexCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("docstore: ensure auth session indexes: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the Mongo connection is reachable, for liveness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentsql/bridge/pkg/models"
)

type messageDocument struct {
	ID        string          `bson:"message_id"`
	SessionID string          `bson:"session_id"`
	Role      models.Role     `bson:"role"`
	Content   string          `bson:"content"`
	ToolName  string          `bson:"tool_name,omitempty"`
	ToolInput []byte          `bson:"tool_input,omitempty"`
	ToolUseID string          `bson:"tool_use_id,omitempty"`
	CreatedAt time.Time       `bson:"created_at"`
}

func (d messageDocument) toMessage() *models.Message {
	return &models.Message{
		ID:        d.ID,
		SessionID: d.SessionID,
		Role:      d.Role,
		Content:   d.Content,
		ToolName:  d.ToolName,
		ToolInput: d.ToolInput,
		ToolUseID: d.ToolUseID,
		CreatedAt: d.CreatedAt,
	}
}

// AppendMessage inserts a message and bumps its session's updated_at in the
// same logical step, so a session's ordering reflects the latest activity.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := messageDocument{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		ToolName:  msg.ToolName,
		ToolInput: msg.ToolInput,
		ToolUseID: msg.ToolUseID,
		CreatedAt: msg.CreatedAt,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("docstore: append message: %w", err)
	}

	if _, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": msg.SessionID},
		bson.M{"$set": bson.M{"updated_at": msg.CreatedAt}},
	); err != nil {
		return fmt.Errorf("docstore: touch session: %w", err)
	}
	return nil
}

// ListMessages returns a session's transcript in chronological order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: list messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []*models.Message{}
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("docstore: decode message: %w", err)
		}
		messages = append(messages, doc.toMessage())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list messages cursor: %w", err)
	}
	return messages, nil
}

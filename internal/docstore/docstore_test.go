package docstore

import (
	"testing"
	"time"

	"github.com/agentsql/bridge/pkg/models"
)

func TestSessionDocumentRoundTrip(t *testing.T) {
	now := time.Now()
	doc := sessionDocument{ID: "s1", UserID: "u1", Title: "hello", CreatedAt: now, UpdatedAt: now}

	session := doc.toSession()
	if session.ID != "s1" || session.UserID != "u1" || session.Title != "hello" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestMessageDocumentRoundTrip(t *testing.T) {
	doc := messageDocument{ID: "m1", SessionID: "s1", Role: models.RoleUser, Content: "hi"}
	msg := doc.toMessage()
	if msg.ID != "m1" || msg.Role != models.RoleUser || msg.Content != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestAuthSessionDocumentRoundTrip(t *testing.T) {
	doc := authSessionDocument{Token: "tok", UserID: "u1", Email: "a@x"}
	session := doc.toAuthSession()
	if session.Token != "tok" || session.Email != "a@x" {
		t.Fatalf("unexpected auth session: %+v", session)
	}
}

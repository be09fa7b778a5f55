package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agentsql/bridge/pkg/models"
)

type fakeSessionStore struct {
	byEmail map[string]*models.AuthSession
	byToken map[string]*models.AuthSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{byEmail: map[string]*models.AuthSession{}, byToken: map[string]*models.AuthSession{}}
}

func (f *fakeSessionStore) UpsertAuthSessionByEmail(_ context.Context, email, newToken string, session *models.AuthSession) (*models.AuthSession, error) {
	existing, ok := f.byEmail[email]
	if !ok {
		session.Token = newToken
		f.byEmail[email] = session
		f.byToken[newToken] = session
		return session, nil
	}
	existing.Name = session.Name
	existing.PictureURL = session.PictureURL
	return existing, nil
}

func (f *fakeSessionStore) GetAuthSessionByToken(_ context.Context, token string) (*models.AuthSession, error) {
	session, ok := f.byToken[token]
	if !ok {
		return nil, errors.New("not found")
	}
	return session, nil
}

func (f *fakeSessionStore) DeleteAuthSessionByToken(_ context.Context, token string) error {
	session, ok := f.byToken[token]
	if !ok {
		return errors.New("not found")
	}
	delete(f.byToken, token)
	delete(f.byEmail, session.Email)
	return nil
}

type fakeStaff struct {
	records map[string]*models.StaffRecord
}

func (f *fakeStaff) LookupStaff(_ context.Context, email string) (*models.StaffRecord, error) {
	return f.records[email], nil
}

func TestServiceLogin(t *testing.T) {
	store := newFakeSessionStore()
	staff := &fakeStaff{records: map[string]*models.StaffRecord{
		"a@x": {Email: "a@x", Active: true},
	}}
	service := NewService(store, staff)
	ctx := context.Background()

	t.Run("rejects unknown identity", func(t *testing.T) {
		if _, err := service.Login(ctx, Identity{Email: "nobody@x"}); err == nil {
			t.Fatal("expected rejection")
		}
	})

	t.Run("mints a session for active staff", func(t *testing.T) {
		session, err := service.Login(ctx, Identity{Email: "A@X", Name: "Alice"})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if session.Email != "a@x" || session.Token == "" {
			t.Fatalf("unexpected session: %+v", session)
		}
	})

	t.Run("re-login preserves the existing token", func(t *testing.T) {
		first, err := service.Login(ctx, Identity{Email: "a@x", Name: "Alice"})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		second, err := service.Login(ctx, Identity{Email: "a@x", Name: "Alice Updated"})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if first.Token != second.Token {
			t.Errorf("expected stable token, got %q then %q", first.Token, second.Token)
		}
	})
}

func TestServiceValidateAndLogout(t *testing.T) {
	store := newFakeSessionStore()
	staff := &fakeStaff{records: map[string]*models.StaffRecord{"a@x": {Email: "a@x", Active: true}}}
	service := NewService(store, staff)
	ctx := context.Background()

	session, err := service.Login(ctx, Identity{Email: "a@x"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	t.Run("validates a live token", func(t *testing.T) {
		got, err := service.Validate(ctx, session.Token)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if got.Email != "a@x" {
			t.Errorf("unexpected session: %+v", got)
		}
	})

	t.Run("rejects an empty token", func(t *testing.T) {
		if _, err := service.Validate(ctx, ""); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		if err := service.Logout(ctx, session.Token); err != nil {
			t.Fatalf("Logout: %v", err)
		}
		if _, err := service.Validate(ctx, session.Token); err == nil {
			t.Fatal("expected revoked token to fail validation")
		}
	})
}

func encodeIdentityToken(t *testing.T, email, name string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"email": email, "name": name, "picture": "https://example.com/a.png"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecodeIdentityToken(t *testing.T) {
	t.Run("decodes and normalizes the email", func(t *testing.T) {
		token := encodeIdentityToken(t, "A@X", "Alice")
		identity, err := DecodeIdentityToken(token)
		if err != nil {
			t.Fatalf("DecodeIdentityToken: %v", err)
		}
		if identity.Email != "a@x" || identity.Name != "Alice" {
			t.Fatalf("unexpected identity: %+v", identity)
		}
	})

	t.Run("rejects malformed base64", func(t *testing.T) {
		if _, err := DecodeIdentityToken("not-base64!!!"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("rejects a payload missing an email", func(t *testing.T) {
		token := base64.StdEncoding.EncodeToString([]byte(`{"name":"Alice"}`))
		if _, err := DecodeIdentityToken(token); err == nil {
			t.Fatal("expected error for missing email")
		}
	})
}

func TestServiceLoginFromToken(t *testing.T) {
	store := newFakeSessionStore()
	staff := &fakeStaff{records: map[string]*models.StaffRecord{"a@x": {Email: "a@x", Active: true}}}
	service := NewService(store, staff)
	ctx := context.Background()

	t.Run("logs in an active staff identity from a token", func(t *testing.T) {
		token := encodeIdentityToken(t, "a@x", "Alice")
		session, err := service.LoginFromToken(ctx, token)
		if err != nil {
			t.Fatalf("LoginFromToken: %v", err)
		}
		if session.Email != "a@x" || session.Token == "" {
			t.Fatalf("unexpected session: %+v", session)
		}
	})

	t.Run("rejects an identity token for an unknown staff member", func(t *testing.T) {
		token := encodeIdentityToken(t, "nobody@x", "Nobody")
		if _, err := service.LoginFromToken(ctx, token); err == nil {
			t.Fatal("expected rejection")
		}
	})
}

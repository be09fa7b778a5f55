// Package auth implements component G: opaque bearer-token sessions for the
// primary login flow, plus an optional JWT path for service-to-service
// calls, grounded on the teacher's auth.Service and auth/jwt.go.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentsql/bridge/pkg/models"
)

var (
	ErrAuthDisabled    = errors.New("auth: disabled")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrSessionNotFound = errors.New("auth: session not found")
)

// SessionStore is the subset of the document store the auth service needs.
// Satisfied by *docstore.Store.
type SessionStore interface {
	UpsertAuthSessionByEmail(ctx context.Context, email string, newToken string, session *models.AuthSession) (*models.AuthSession, error)
	GetAuthSessionByToken(ctx context.Context, token string) (*models.AuthSession, error)
	DeleteAuthSessionByToken(ctx context.Context, token string) error
}

// StaffLookup resolves whether an email is an active staff identity. The
// same interface the ACL engine uses; login rejects unknown or inactive
// identities before a session is ever minted.
type StaffLookup interface {
	LookupStaff(ctx context.Context, email string) (*models.StaffRecord, error)
}

// Identity is the decoded caller identity presented at login (from an
// upstream OIDC provider or a trusted reverse proxy header).
type Identity struct {
	Email      string
	Name       string
	PictureURL string
}

// Service issues and validates opaque auth-session tokens.
type Service struct {
	store SessionStore
	staff StaffLookup
}

// NewService constructs a Service.
func NewService(store SessionStore, staff StaffLookup) *Service {
	return &Service{store: store, staff: staff}
}

// Login validates identity against the staff allow-list, then creates or
// refreshes the email's auth session. Re-login preserves the existing
// token so a previously-issued bearer credential keeps working.
func (s *Service) Login(ctx context.Context, identity Identity) (*models.AuthSession, error) {
	email := models.NormalizeEmail(identity.Email)
	if email == "" {
		return nil, fmt.Errorf("auth: email is required")
	}

	record, err := s.staff.LookupStaff(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("auth: staff lookup: %w", err)
	}
	if record == nil || !record.Active {
		return nil, fmt.Errorf("auth: %s is not an active staff identity", email)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}

	session := &models.AuthSession{
		UserID:     email,
		Email:      email,
		Name:       identity.Name,
		PictureURL: identity.PictureURL,
		CreatedAt:  time.Now(),
	}
	return s.store.UpsertAuthSessionByEmail(ctx, email, token, session)
}

// identityTokenPayload is the wire shape of the opaque login token: a
// base64-encoded JSON blob carrying at minimum the caller's email, issued by
// whatever trusted front door sits in front of this service.
type identityTokenPayload struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"picture"`
}

// DecodeIdentityToken decodes the opaque login token into an Identity:
// base64-decode, parse as JSON, extract the email, lowercase and trim it.
func DecodeIdentityToken(token string) (Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(token); err != nil {
			return Identity{}, fmt.Errorf("auth: decode identity token: %w", err)
		}
	}

	var payload identityTokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Identity{}, fmt.Errorf("auth: parse identity token: %w", err)
	}

	email := models.NormalizeEmail(payload.Email)
	if email == "" {
		return Identity{}, fmt.Errorf("auth: identity token is missing an email")
	}

	return Identity{Email: email, Name: payload.Name, PictureURL: payload.PictureURL}, nil
}

// LoginFromToken decodes an opaque identity token and logs it in, per the
// login steps: decode, look up staff, then create or refresh the email's
// auth session. This is the primary login path; HandleCallback's OAuth
// exchange is a supplemental front door that ends up calling Login the same
// way.
func (s *Service) LoginFromToken(ctx context.Context, token string) (*models.AuthSession, error) {
	identity, err := DecodeIdentityToken(token)
	if err != nil {
		return nil, err
	}
	return s.Login(ctx, identity)
}

// Validate resolves a bearer token to its session.
func (s *Service) Validate(ctx context.Context, token string) (*models.AuthSession, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	session, err := s.store.GetAuthSessionByToken(ctx, token)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteAuthSessionByToken(ctx, token)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentsql/bridge/internal/auth"
	"github.com/agentsql/bridge/pkg/models"
)

// fakeAuthStore is an in-memory auth.SessionStore.
type fakeAuthStore struct {
	byToken map[string]*models.AuthSession
	byEmail map[string]*models.AuthSession
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{byToken: map[string]*models.AuthSession{}, byEmail: map[string]*models.AuthSession{}}
}

func (s *fakeAuthStore) UpsertAuthSessionByEmail(ctx context.Context, email, newToken string, session *models.AuthSession) (*models.AuthSession, error) {
	if existing, ok := s.byEmail[email]; ok {
		delete(s.byToken, existing.Token)
		session.Token = existing.Token
	} else {
		session.Token = newToken
	}
	s.byEmail[email] = session
	s.byToken[session.Token] = session
	return session, nil
}

func (s *fakeAuthStore) GetAuthSessionByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	session, ok := s.byToken[token]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeAuthStore) DeleteAuthSessionByToken(ctx context.Context, token string) error {
	if session, ok := s.byToken[token]; ok {
		delete(s.byEmail, session.Email)
		delete(s.byToken, token)
	}
	return nil
}

// fakeStaffLookup allows exactly the emails in active.
type fakeStaffLookup struct {
	active map[string]bool
}

func (f *fakeStaffLookup) LookupStaff(ctx context.Context, email string) (*models.StaffRecord, error) {
	if !f.active[email] {
		return nil, nil
	}
	return &models.StaffRecord{Email: email, Active: true}, nil
}

// fakeSessionStore is an in-memory httpapi.SessionStore.
type fakeSessionStore struct {
	sessions map[string]*models.Session
	messages map[string][]*models.Message
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.Session{}, messages: map[string][]*models.Message{}}
}

func (s *fakeSessionStore) CreateSession(ctx context.Context, session *models.Session) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, errNotFoundForTest
	}
	return session, nil
}

func (s *fakeSessionStore) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}

func (s *fakeSessionStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *fakeSessionStore) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	return s.messages[sessionID], nil
}

func (s *fakeSessionStore) SetSessionTitle(ctx context.Context, sessionID, title string) error {
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Title = title
	}
	return nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var errNotFoundForTest = notFoundError{}

func identityToken(t *testing.T, email string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		t.Fatalf("marshal identity: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func newTestServer(t *testing.T) (*Server, *auth.Service, *fakeSessionStore) {
	t.Helper()
	authStore := newFakeAuthStore()
	staff := &fakeStaffLookup{active: map[string]bool{"staff@agentsql.test": true}}
	authService := auth.NewService(authStore, staff)
	sessions := newFakeSessionStore()
	server := NewServer(authService, sessions, nil, nil, nil, nil)
	return server, authService, sessions
}

func TestHandleLogin_ActiveStaffSucceeds(t *testing.T) {
	server, _, _ := newTestServer(t)

	body := strings.NewReader(`{"token":"` + identityToken(t, "staff@agentsql.test") + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/google", body)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" || resp.User.Email != "staff@agentsql.test" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleLogin_InactiveStaffDenied(t *testing.T) {
	server, _, _ := newTestServer(t)

	body := strings.NewReader(`{"token":"` + identityToken(t, "nobody@agentsql.test") + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/google", body)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRoutes_RequireBearerToken(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSessionLifecycle_CreateGetDelete(t *testing.T) {
	server, authService, _ := newTestServer(t)

	session, err := authService.Login(context.Background(), auth.Identity{Email: "staff@agentsql.test"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	authHeader := "Bearer " + session.Token

	createReq := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"title":"hello"}`))
	createReq.Header.Set("Authorization", authHeader)
	createRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", createRec.Code, createRec.Body.String())
	}
	var created models.Session
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created session: %v", err)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, nil)
	getReq.Header.Set("Authorization", authHeader)
	getRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", getRec.Code, getRec.Body.String())
	}

	deleteReq := httptest.NewRequest(http.MethodDelete, "/sessions/"+created.ID, nil)
	deleteReq.Header.Set("Authorization", authHeader)
	deleteRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(deleteRec, deleteReq)
	if deleteRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", deleteRec.Code)
	}

	getAfterDeleteReq := httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, nil)
	getAfterDeleteReq.Header.Set("Authorization", authHeader)
	getAfterDeleteRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(getAfterDeleteRec, getAfterDeleteReq)
	if getAfterDeleteRec.Code != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", getAfterDeleteRec.Code)
	}
}

func TestHealthAndLogin_AreExemptFromAuth(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/pkg/models"
)

type loginRequest struct {
	Token string `json:"token"`
}

type userResponse struct {
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	PictureURL string `json:"pictureUrl,omitempty"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// handleLogin decodes the opaque base64-JSON identity payload and mints or
// refreshes the caller's auth session. Generalized from the teacher's
// multi-provider OAuth callback down to the spec's single trusted-front-door
// identity token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		writeJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	session, err := s.auth.LoginFromToken(r.Context(), req.Token)
	if err != nil {
		writeJSONError(w, http.StatusForbidden, "not an active staff identity")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: session.Token,
		User:  userResponse{Email: session.Email, Name: session.Name, PictureURL: session.PictureURL},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	session, err := s.auth.Validate(r.Context(), token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Email: session.Email, Name: session.Name, PictureURL: session.PictureURL})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	email, ok := userEmailFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	sessions, err := s.sessions.ListSessions(r.Context(), email)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Title string `json:"title,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	email, ok := userEmailFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createSessionRequest
	_ = decodeJSON(r, &req)

	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    email,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.CreateSession(r.Context(), session); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type sessionDetailResponse struct {
	Session  *models.Session   `json:"session"`
	Messages []*models.Message `json:"messages"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	email, ok := userEmailFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	session, err := s.loadOwnedSession(r, email)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	messages, err := s.sessions.ListMessages(r.Context(), session.ID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionDetailResponse{Session: session, Messages: messages})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	email, ok := userEmailFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	session, err := s.loadOwnedSession(r, email)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if err := s.sessions.DeleteSession(r.Context(), session.ID); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type postMessageRequest struct {
	Message string `json:"message"`
}

type postMessageResponse struct {
	AssistantText string            `json:"assistantText"`
	ToolCalls     []toolCallSummary `json:"toolCalls"`
}

type toolCallSummary struct {
	ToolName  string `json:"toolName"`
	ToolUseID string `json:"toolUseId"`
}

// handlePostMessage runs one full agent turn: persist the user's message,
// drive the orchestrator loop, and return the assistant's final text plus a
// summary of any tool calls it made along the way.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	email, ok := userEmailFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	session, err := s.loadOwnedSession(r, email)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "missing message")
		return
	}

	before, err := s.sessions.ListMessages(r.Context(), session.ID)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	text, err := s.loop.Run(r.Context(), session, email, req.Message)
	if err != nil {
		writeAPIError(w, apierror.Wrap(apierror.KindBackendFailure, "agent run failed", err))
		return
	}

	after, err := s.sessions.ListMessages(r.Context(), session.ID)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var toolCalls []toolCallSummary
	for _, msg := range after[len(before):] {
		if msg.Role == models.RoleToolUse {
			toolCalls = append(toolCalls, toolCallSummary{ToolName: msg.ToolName, ToolUseID: msg.ToolUseID})
		}
	}

	writeJSON(w, http.StatusOK, postMessageResponse{AssistantText: text, ToolCalls: toolCalls})
}

// loadOwnedSession fetches the {id} path session and enforces that email
// owns it, returning a not-found apierror either way so ownership never
// leaks through a distinguishable 403 vs 404.
func (s *Server) loadOwnedSession(r *http.Request, email string) (*models.Session, error) {
	id := r.PathValue("id")
	session, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNotFound, "session not found", err)
	}
	if session.UserID != email {
		return nil, apierror.New(apierror.KindNotFound, "session not found")
	}
	return session, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agentsql/bridge/internal/agent"
	"github.com/agentsql/bridge/internal/auth"
	"github.com/agentsql/bridge/pkg/models"
)

// SessionStore is the subset of docstore.Store the HTTP API needs for
// session and message CRUD, beyond what agent.SessionStore already covers.
type SessionStore interface {
	agent.SessionStore
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	ListSessions(ctx context.Context, userID string) ([]*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Pinger reports whether a backing store is reachable, for the health
// route. *docstore.Store satisfies this.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the auth service, session store, and
// agent loop.
type Server struct {
	auth           *auth.Service
	sessions       SessionStore
	loop           *agent.AgenticLoop
	logger         *slog.Logger
	mux            *http.ServeMux
	allowedOrigins []string
	pinger         Pinger
}

// NewServer builds the route table and middleware chain. allowedOrigins
// configures CORSMiddleware; pass nil to disable cross-origin access
// entirely. pinger backs the health route's dependency check; pass nil to
// skip it and always report "ok".
func NewServer(authService *auth.Service, sessions SessionStore, loop *agent.AgenticLoop, logger *slog.Logger, allowedOrigins []string, pinger Pinger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{auth: authService, sessions: sessions, loop: loop, logger: logger, allowedOrigins: allowedOrigins, pinger: pinger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/google", s.handleLogin)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handlePostMessage)
	mux.HandleFunc("GET /health", s.handleHealth)
	s.mux = mux
	return s
}

// Handler returns the fully wrapped http.Handler: correlation id, logging,
// CORS, then the bearer-auth gate (skipped for the public login and health
// routes), then routing.
func (s *Server) Handler() http.Handler {
	publicPaths := map[string]bool{"/auth/google": true, "/health": true}
	return chain(s.mux,
		CorrelationMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.allowedOrigins),
		AuthMiddleware(s.auth, s.logger, publicPaths),
	)
}

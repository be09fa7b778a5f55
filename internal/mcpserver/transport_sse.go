package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/agentsql/bridge/internal/mcpwire"
)

// sseSession is one long-lived SSE connection. Its email is the identity
// resolved at connect time (e.g. from a signed handshake token); every
// subsequent POST /messages call for this session id is dispatched under
// that same identity, carried through context rather than a field the SSE
// loop and the POST handler would otherwise race on.
type sseSession struct {
	id     string
	email  string
	events chan *mcpwire.Response
	done   chan struct{}
}

// SSEServer serves many concurrent MCP sessions over HTTP: GET /sse opens an
// event stream and mints a session id; POST /messages delivers one JSON-RPC
// request for a previously-opened session.
type SSEServer struct {
	handler     *Handler
	basePath    string
	logger      *slog.Logger
	resolveAuth func(r *http.Request) (string, error)

	mu       sync.Mutex
	sessions map[string]*sseSession
}

// NewSSEServer builds an SSE transport. resolveAuth extracts the caller's
// email from the upgrade request (e.g. its bearer token) once, at connect
// time.
func NewSSEServer(handler *Handler, basePath string, logger *slog.Logger, resolveAuth func(r *http.Request) (string, error)) *SSEServer {
	return &SSEServer{
		handler:     handler,
		basePath:    basePath,
		logger:      logger,
		resolveAuth: resolveAuth,
		sessions:    make(map[string]*sseSession),
	}
}

// RegisterRoutes mounts the SSE endpoints on mux.
func (s *SSEServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.basePath+"/sse", s.handleSSE)
	mux.HandleFunc(s.basePath+"/messages", s.handleMessage)
}

func (s *SSEServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	email, err := s.resolveAuth(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session := &sseSession{
		id:     uuid.NewString(),
		email:  email,
		events: make(chan *mcpwire.Response, 32),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, session.id)
		s.mu.Unlock()
		close(session.done)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: %s/messages?sessionId=%s\n\n", s.basePath, session.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case resp := <-session.events:
			data, err := json.Marshal(resp)
			if err != nil {
				s.logger.Error("marshal sse response", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var req mcpwire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed JSON-RPC request", http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	resp := s.handler.Dispatch(ctx, session.email, &req)

	select {
	case session.events <- resp:
		w.WriteHeader(http.StatusAccepted)
	case <-session.done:
		http.Error(w, "session closed", http.StatusGone)
	}
}

package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/agentsql/bridge/internal/mcpwire"
)

// StdioServer serves one MCP session per process over stdin/stdout,
// line-delimited JSON-RPC, inverted from the teacher's stdio client
// transport: instead of writing requests and scanning for responses, it
// scans for requests and writes responses.
type StdioServer struct {
	handler *Handler
	logger  *slog.Logger
	email   string

	in  *bufio.Scanner
	out io.Writer
	mu  sync.Mutex
}

// NewStdioServer builds a server bound to in/out, attributing every call in
// this process to email (the identity the pipe was launched under).
func NewStdioServer(handler *Handler, in io.Reader, out io.Writer, logger *slog.Logger, email string) *StdioServer {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	return &StdioServer{handler: handler, logger: logger, email: email, in: scanner, out: out}
}

// Serve reads one JSON-RPC request per line until ctx is cancelled or the
// input is exhausted.
func (s *StdioServer) Serve(ctx context.Context) error {
	for s.in.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := s.in.Text()
		if line == "" {
			continue
		}

		var req mcpwire.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.write(mcpwire.NewErrorResponse(nil, mcpwire.ErrCodeParseError, "malformed JSON-RPC request"))
			continue
		}

		resp := s.handler.Dispatch(ctx, s.email, &req)
		s.write(resp)
	}
	return s.in.Err()
}

func (s *StdioServer) write(resp *mcpwire.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s\n", data); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

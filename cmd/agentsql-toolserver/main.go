// Command agentsql-toolserver runs the MCP tool server: the relational pool,
// the ACL engine, the tool catalog, and the SSE/stdio transports (components
// A-E). Grounded on the teacher's cmd/nexus cobra CLI, trimmed to the one
// "serve" entry point this binary needs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentsql/bridge/internal/acl"
	"github.com/agentsql/bridge/internal/biclient"
	"github.com/agentsql/bridge/internal/config"
	"github.com/agentsql/bridge/internal/dbpool"
	"github.com/agentsql/bridge/internal/funnel"
	"github.com/agentsql/bridge/internal/mcpserver"
	"github.com/agentsql/bridge/internal/observability"
	"github.com/agentsql/bridge/internal/toolcatalog"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:     "agentsql-toolserver",
		Short:   "MCP tool server exposing read-only SQL access over SSE and stdio",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	root.AddCommand(buildServeCmd(), buildStdioCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("agentsql-toolserver exited with error", "error", err)
		os.Exit(1)
	}
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SSE-transport tool server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentsql.yaml", "Path to YAML configuration file")
	return cmd
}

func buildStdioCmd() *cobra.Command {
	var configPath string
	var userEmail string
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start the stdio-transport tool server for a single local caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd.Context(), configPath, userEmail)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentsql.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&userEmail, "user-email", "", "Staff email to attribute stdio calls to")
	return cmd
}

func newComponents(ctx context.Context, configPath string) (*config.Config, *toolcatalog.Catalog, *acl.Engine, *dbpool.Pool, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	observability.NewDefaultLogger(cfg.Logging.Level, cfg.Logging.Format)

	pool, err := dbpool.Open(ctx, dbpool.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open database pool: %w", err)
	}

	aclConfig, err := acl.LoadConfig(cfg.ACL.Path)
	if err != nil {
		_ = pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("load acl config: %w", err)
	}
	aclEngine, err := acl.New(aclConfig, pool, int(cfg.ACL.TTL.Seconds()), int(cfg.ACL.NegativeTTL.Seconds()))
	if err != nil {
		_ = pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("build acl engine: %w", err)
	}

	catalog := toolcatalog.NewCatalog()
	if err := toolcatalog.RegisterSQLTools(catalog, pool, nil); err != nil {
		_ = pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("register sql tools: %w", err)
	}
	if err := toolcatalog.RegisterAnalyzerTools(catalog, nil); err != nil {
		_ = pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("register analyzer tools: %w", err)
	}
	if err := toolcatalog.RegisterFunnelTools(catalog, funnel.Default(), nil); err != nil {
		_ = pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("register funnel tools: %w", err)
	}
	if cfg.BI.BaseURL != "" {
		biClient := biclient.NewClient(cfg.BI.BaseURL, cfg.BI.APIKey, cfg.BI.Timeout)
		if err := toolcatalog.RegisterRedashTools(catalog, biClient, nil); err != nil {
			_ = pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("register redash tools: %w", err)
		}
	}

	return cfg, catalog, aclEngine, pool, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, catalog, aclEngine, pool, err := newComponents(ctx, configPath)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, shutdownTracing := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer shutdownTracing(context.Background())

	handler := mcpserver.NewHandler(catalog, aclEngine)
	defer handler.Close()
	sseServer := mcpserver.NewSSEServer(handler, "", slog.Default(), resolveBearerEmail)

	mux := http.NewServeMux()
	sseServer.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"degraded"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agentsql-toolserver listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutdown signal received, stopping tool server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runStdio(ctx context.Context, configPath, userEmail string) error {
	_, catalog, aclEngine, pool, err := newComponents(ctx, configPath)
	if err != nil {
		return err
	}
	defer pool.Close()

	handler := mcpserver.NewHandler(catalog, aclEngine)
	defer handler.Close()
	stdio := mcpserver.NewStdioServer(handler, os.Stdin, os.Stdout, slog.Default(), userEmail)
	return stdio.Serve(ctx)
}

// resolveBearerEmail authenticates an SSE caller from an X-User-Email
// header. The gateway has already validated the caller's bearer session by
// the time it connects here; it forwards the resolved email so the ACL
// engine can attribute tool calls without re-deriving identity from a raw
// token at this layer.
func resolveBearerEmail(r *http.Request) (string, error) {
	email := r.Header.Get("X-User-Email")
	if email == "" {
		return "", fmt.Errorf("missing X-User-Email header")
	}
	return email, nil
}

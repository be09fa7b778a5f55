// Command agentsql-gateway runs the authenticated session layer and HTTP API
// in front of the agent orchestrator: auth, session/message storage, the MCP
// client bridge, and the LLM-driven agentic loop (components F-I). Grounded
// on the teacher's cmd/nexus cobra CLI and handlers_serve.go shutdown
// sequence, trimmed to this binary's single responsibility.
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

	"github.com/agentsql/bridge/internal/agent"
	"github.com/agentsql/bridge/internal/agent/providers"
	"github.com/agentsql/bridge/internal/auth"
	"github.com/agentsql/bridge/internal/config"
	"github.com/agentsql/bridge/internal/dbpool"
	"github.com/agentsql/bridge/internal/docstore"
	"github.com/agentsql/bridge/internal/httpapi"
	"github.com/agentsql/bridge/internal/mcpclient"
	"github.com/agentsql/bridge/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:     "agentsql-gateway",
		Short:   "Authenticated HTTP gateway fronting the SQL agent orchestrator",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "agentsql.yaml", "Path to YAML configuration file")

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("agentsql-gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	observability.NewDefaultLogger(cfg.Logging.Level, cfg.Logging.Format)
	_, shutdownTracing := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer shutdownTracing(context.Background())

	store, err := docstore.Connect(ctx, docstore.Config{
		URI:      cfg.DocStore.URI,
		Database: cfg.DocStore.Database,
		Timeout:  cfg.DocStore.Timeout,
	})
	if err != nil {
		return fmt.Errorf("connect docstore: %w", err)
	}
	defer store.Close(ctx)

	staffPool, err := dbpool.Open(ctx, dbpool.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
	})
	if err != nil {
		return fmt.Errorf("open staff lookup pool: %w", err)
	}
	defer staffPool.Close()

	authService := auth.NewService(store, staffPool)

	mcpClient := mcpclient.NewClient(cfg.MCP.ServerURL, slog.Default(), 30*time.Second)
	if err := mcpClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to tool server: %w", err)
	}
	defer mcpClient.Close()

	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       cfg.LLM.APIKey,
		DefaultModel: cfg.LLM.Model,
	})
	if err != nil {
		return fmt.Errorf("construct llm provider: %w", err)
	}

	loop := agent.NewAgenticLoop(provider, mcpClient, store, agent.LoopConfig{
		MaxIterations: cfg.LLM.MaxIterations,
		Model:         cfg.LLM.Model,
		System:        cfg.LLM.SystemPrompt,
	}, slog.Default())

	server := httpapi.NewServer(authService, store, loop, slog.Default(), nil, store)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agentsql-gateway listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutdown signal received, stopping gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

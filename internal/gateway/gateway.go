// ABOUTME: Gateway orchestrator that wires the registry, sessions, and HTTP server
// ABOUTME: Manages server lifecycle: serve until context cancellation, then graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/crew-gateway/internal/agent"
	"github.com/2389/crew-gateway/internal/config"
	"github.com/2389/crew-gateway/internal/session"
	"github.com/2389/crew-gateway/internal/trace"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// Gateway composes the agent registry, session manager, and HTTP surface.
type Gateway struct {
	config     *config.Config
	registry   *agent.Registry
	sessions   *session.Manager
	trace      *trace.Logger
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway around an already-populated registry and session
// manager.
func New(cfg *config.Config, registry *agent.Registry, sessions *session.Manager, tr *trace.Logger, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if tr == nil {
		tr = trace.New(false)
	}
	g := &Gateway{
		config:   cfg,
		registry: registry,
		sessions: sessions,
		trace:    tr,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	g.registerRoutes(mux)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", g.handleRoot)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /agents", g.handleListAgents)
	mux.HandleFunc("GET /agents/{agent_id}", g.handleGetAgent)
	mux.HandleFunc("POST /agents/{agent_id}/sessions", g.handleCreateSession)
	mux.HandleFunc("POST /agents/{agent_id}/chat", g.handleChat)
	mux.HandleFunc("POST /agents/{agent_id}/chat/stream", g.handleChatStream)
	mux.HandleFunc("POST /chat", g.handleQuickChat)
}

// Handler exposes the HTTP handler, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	g.logger.Info("gateway stopped")
	return nil
}

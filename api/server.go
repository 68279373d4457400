// Package api provides the HTTP REST API for Revisio.
//
// Endpoints:
//
//	GET  /health              →  liveness probe
//	GET  /ready               →  readiness probe (pings the database)
//	POST /api/search          →  similarity search over chunks
//	POST /api/query/stream    →  multi-hop query, streamed over SSE
//	POST /api/documents       →  ingest a document (chunk + embed + store)
//	DELETE /api/documents     →  remove a document's chunks
//	POST /api/reembed         →  run an embedding migration pass
//	GET  /api/history         →  recent query sessions for an owner
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: Health check endpoints (/health, /ready)
//   - search.go: Similarity search endpoint
//   - query.go: SSE streaming query endpoint
//   - documents.go: Document ingest/delete endpoints
//   - reembed.go: Embedding migration endpoint
//   - history.go: Session history endpoint
//   - response.go: JSON response helpers
//   - sse.go: Server-Sent Events writer
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revisio/revisio/internal/history"
	"github.com/revisio/revisio/internal/ingest"
	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/query"
	"github.com/revisio/revisio/internal/reembed"
	"github.com/revisio/revisio/internal/search"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Streaming queries run multi-step retrieval plus synthesis, so this
	// must comfortably exceed the query session timeout.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for Revisio's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	// Handlers
	health    *HealthHandler
	search    *SearchHandler
	query     *QueryHandler
	documents *DocumentHandler
	reembed   *ReembedHandler
	history   *HistoryHandler
}

// NewServer creates a new HTTP server with all routes registered.
// pool may be nil (readiness then reports unavailable); hist may be nil
// (history endpoint then returns 404).
func NewServer(
	pool *pgxpool.Pool,
	engine *search.Engine,
	executor *query.Executor,
	ingester *ingest.Ingester,
	migrator *reembed.Migrator,
	hist *history.Store,
	logger log.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		logger:    logger,
		health:    NewHealthHandler(pool, logger),
		search:    NewSearchHandler(engine, logger),
		query:     NewQueryHandler(executor, logger),
		documents: NewDocumentHandler(ingester, logger),
		reembed:   NewReembedHandler(migrator, logger),
		history:   NewHistoryHandler(hist, logger),
	}

	s.health.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)
	s.query.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	s.reembed.RegisterRoutes(mux)
	s.history.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: the database
// pool, the embedder and generator, the chunk store, and the query pipeline
// built on top of them.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/config"
	"github.com/revisio/revisio/internal/embed"
	"github.com/revisio/revisio/internal/gen"
	"github.com/revisio/revisio/internal/history"
	"github.com/revisio/revisio/internal/ingest"
	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/query"
	"github.com/revisio/revisio/internal/reembed"
	"github.com/revisio/revisio/internal/search"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit    *genkit.Genkit
	DBPool    *pgxpool.Pool
	Store     chunk.Store
	Embedder  embed.Embedder
	Generator gen.Generator

	// Pipelines
	Engine   *search.Engine
	Planner  *query.Planner
	Executor *query.Executor
	Ingester *ingest.Ingester
	Migrator *reembed.Migrator
	History  *history.Store

	// Lifecycle management
	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Warn("closing history store", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

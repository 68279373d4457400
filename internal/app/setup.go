package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	openaiplugin "github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	openaisdk "github.com/openai/openai-go"
	"golang.org/x/time/rate"

	"github.com/revisio/revisio/db"
	"github.com/revisio/revisio/internal/config"
	"github.com/revisio/revisio/internal/embed"
	"github.com/revisio/revisio/internal/gen"
	"github.com/revisio/revisio/internal/history"
	"github.com/revisio/revisio/internal/ingest"
	"github.com/revisio/revisio/internal/log"
	"github.com/revisio/revisio/internal/observability"
	"github.com/revisio/revisio/internal/postgres"
	"github.com/revisio/revisio/internal/query"
	"github.com/revisio/revisio/internal/reembed"
	"github.com/revisio/revisio/internal/search"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit spans start flowing.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.Store = postgres.NewStore(pool, cfg.EmbedderDimension, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder, err := provideEmbedder(g, cfg)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	a.Generator = provideGenerator(g, cfg, logger)

	a.Engine = search.New(a.Store, a.Embedder, logger)
	a.Ingester = ingest.New(a.Store, a.Embedder, ingest.NewChunker(0), logger)
	a.Migrator = reembed.New(a.Store, a.Embedder, logger)

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	a.History = hist

	classifier := query.NewLLMClassifier(a.Generator, logger)
	plannerCfg := query.DefaultConfig()
	plannerCfg.K = cfg.TopK
	plannerCfg.MinSimilarity = cfg.Thresholds.Chat
	a.Planner = query.NewPlanner(a.Engine, a.Generator, classifier, plannerCfg, logger)
	a.Executor = query.NewExecutor(a.Planner, hist, logger)

	return a, nil
}

// provideOtelShutdown sets up trace export before Genkit initialization.
// Must be called before provideGenkit to ensure the TracerProvider is ready.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: "revisio",
	})
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default) and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openaiplugin.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder builds the embedder for the configured provider.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName), wrapped for dimension checks
//   - openai: direct SDK client (supports the dimensions request parameter)
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) (embed.Embedder, error) {
	embedCfg := embed.Config{Model: cfg.EmbedderModel, Dimension: cfg.EmbedderDimension}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		client := openaisdk.NewClient() // reads OPENAI_API_KEY
		return embed.NewOpenAIEmbedder(client, embedCfg), nil
	default: // "gemini"
		e := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		if e == nil {
			return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
		}
		return embed.NewGenkitEmbedder(e, embedCfg), nil
	}
}

// provideGenerator builds the resilient text generator on the configured model.
func provideGenerator(g *genkit.Genkit, cfg *config.Config, logger log.Logger) gen.Generator {
	provider := "googleai"
	if cfg.Provider == config.ProviderOpenAI {
		provider = "openai"
	}
	modelName := api.NewName(provider, cfg.ModelName)

	return gen.NewGenkitGenerator(gen.GenkitConfig{
		Genkit: g,
		Model:  ai.NewModelRef(string(modelName), nil),
		// One request at a time with short bursts keeps interactive
		// latency predictable under provider-side quotas.
		RateLimiter: rate.NewLimiter(rate.Limit(2), 4),
		Logger:      logger,
	})
}

// Package reembed implements the embedding migration controller: a batch
// process that brings every chunk's embedding to the active embedder
// generation after a model swap, without touching any other chunk field.
//
// A chunk needs migration iff its embedding is absent or its length
// differs from the active dimension. Processing is batched; embedding
// calls within a batch run with bounded parallelism, per-chunk writes are
// independent, and a single chunk's failure never aborts the batch or the
// run. Runs are interruptible between batches: the batch boundary is the
// safe resume point.
package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/revisio/revisio/internal/chunk"
	"github.com/revisio/revisio/internal/embed"
)

// DefaultBatchSize is the number of chunks re-embedded per batch.
const DefaultBatchSize = 50

// Options selects which chunks a run considers and how it processes them.
type Options struct {
	// OwnerID / NotebookID narrow the run; empty = all tenants/notebooks.
	OwnerID    string
	NotebookID string

	// BatchSize is the migration batch size (default 50).
	BatchSize int

	// DryRun performs selection and reporting only; no writes occur.
	DryRun bool
}

// Failure records a single chunk that could not be migrated.
type Failure struct {
	ChunkID string `json:"chunk_id"`
	Message string `json:"message"`
}

// Report summarizes a migration run.
type Report struct {
	Scanned        int64     `json:"scanned"`
	NeedsMigration int       `json:"needs_migration"`
	Migrated       int       `json:"migrated"`
	Failed         []Failure `json:"failed,omitempty"`
}

// Migrator re-embeds chunks whose stored vector is absent or has the
// wrong dimensionality for the active embedder generation.
type Migrator struct {
	store    chunk.Store
	embedder embed.Embedder
	logger   *slog.Logger
}

// New creates a migration controller.
func New(store chunk.Store, embedder embed.Embedder, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: store, embedder: embedder, logger: logger}
}

// Run executes one migration pass and returns its report.
//
// Running twice in a row with no intervening ingests is a no-op on the
// second run: the report shows needs_migration = 0.
func (m *Migrator) Run(ctx context.Context, opts Options) (Report, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	scope := chunk.Scope{OwnerID: opts.OwnerID, NotebookID: opts.NotebookID}
	dimension := m.embedder.Config().Dimension

	scanned, err := m.store.CountByScope(ctx, scope)
	if err != nil {
		return Report{}, fmt.Errorf("count chunks: %w", err)
	}

	stale, err := m.store.NeedingMigration(ctx, scope, dimension)
	if err != nil {
		return Report{}, fmt.Errorf("select stale chunks: %w", err)
	}

	report := Report{Scanned: scanned, NeedsMigration: len(stale)}

	m.logger.Info("migration pass starting",
		"scanned", scanned,
		"needs_migration", len(stale),
		"dimension", dimension,
		"batch_size", batchSize,
		"dry_run", opts.DryRun,
	)

	if opts.DryRun || len(stale) == 0 {
		return report, nil
	}

	for start := 0; start < len(stale); start += batchSize {
		// Batch boundary is the interruption point; a canceled run can
		// simply be re-run and picks up the remaining stale chunks.
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("migration interrupted: %w", err)
		}

		end := min(start+batchSize, len(stale))
		m.migrateBatch(ctx, stale[start:end], &report)

		m.logger.Debug("batch complete",
			"migrated", report.Migrated,
			"failed", len(report.Failed),
			"remaining", len(stale)-end,
		)
	}

	m.logger.Info("migration pass complete",
		"migrated", report.Migrated,
		"failed", len(report.Failed),
	)
	return report, nil
}

// migrateBatch re-embeds one batch with batch-wide parallelism. Each
// member's embedding call and write are independent; failures are recorded
// in the report and the batch continues.
func (m *Migrator) migrateBatch(ctx context.Context, batch []chunk.Chunk, report *Report) {
	type outcome struct {
		id      string
		failure *Failure
	}

	var wg sync.WaitGroup
	outcomes := make([]outcome, len(batch))

	for i, c := range batch {
		wg.Add(1)
		go func(i int, c chunk.Chunk) {
			defer wg.Done()
			outcomes[i] = outcome{id: c.ID, failure: m.migrateOne(ctx, c)}
		}(i, c)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.failure != nil {
			report.Failed = append(report.Failed, *o.failure)
			m.logger.Warn("chunk migration failed", "id", o.failure.ChunkID, "error", o.failure.Message)
			continue
		}
		report.Migrated++
	}
}

// migrateOne re-embeds a single chunk and writes only its embedding.
func (m *Migrator) migrateOne(ctx context.Context, c chunk.Chunk) *Failure {
	vec, err := m.embedder.Embed(ctx, c.Content)
	if err != nil {
		return &Failure{ChunkID: c.ID, Message: fmt.Sprintf("embed: %v", err)}
	}
	if err := m.store.UpdateEmbedding(ctx, c.ID, vec); err != nil {
		return &Failure{ChunkID: c.ID, Message: fmt.Sprintf("update: %v", err)}
	}
	return nil
}

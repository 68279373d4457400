// Package history persists a log of completed query sessions in a local
// SQLite database. The log is an operational convenience (inspection,
// notebook activity listings); losing it never affects retrieval.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/revisio/revisio/internal/query"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store records completed query sessions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at dbPath and
// applies pending migrations.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// migrateSchema applies embedded migrations.
func migrateSchema(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Record implements query.Recorder.
func (s *Store) Record(ctx context.Context, rec query.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (owner_id, notebook_id, question, answer, kind, steps, chunks, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.NotebookID, rec.Question, rec.Answer, rec.Kind.String(),
		rec.Steps, rec.Chunks, rec.Duration.Milliseconds(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Entry is one logged session.
type Entry struct {
	ID         int64
	OwnerID    string
	NotebookID string
	Question   string
	Answer     string
	Kind       string
	Steps      int
	Chunks     int
	DurationMS int64
	CreatedAt  time.Time
}

// Recent returns the owner's latest sessions, newest first.
func (s *Store) Recent(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, notebook_id, question, answer, kind, steps, chunks, duration_ms, created_at
		FROM sessions WHERE owner_id = ? ORDER BY id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.NotebookID, &e.Question, &e.Answer,
			&e.Kind, &e.Steps, &e.Chunks, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

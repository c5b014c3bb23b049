// Package relation tracks relationships between documents in a local SQLite
// database: merge lineage written by the dedup engine and the consolidator,
// and chunk adjacency written by the ingestion chunker. Lineage survives the
// deletion of merged documents, so provenance stays queryable after the
// vector store has forgotten the losers.
package relation

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/strata-ai/strata/internal/memory"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens the relationship database, creating parent directories as
// needed.
func Open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// Migrate applies pending schema migrations.
func Migrate(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	// No m.Close(): the sqlite driver shares the caller's connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// Adjacency is the recorded chunk neighborhood. A zero UUID means no
// neighbor on that side.
type Adjacency struct {
	Prev uuid.UUID
	Next uuid.UUID
}

// Tracker implements memory.RelationRecorder plus the read-side queries.
//
// Tracker is safe for concurrent use by multiple goroutines.
type Tracker struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Tracker over an opened, migrated database.
func New(db *sql.DB, logger *slog.Logger) (*Tracker, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{db: db, logger: logger}, nil
}

// RecordMerge writes one lineage edge per absorbed source. Recording the
// same edge twice overwrites it, so retried sweeps are harmless.
func (t *Tracker) RecordMerge(ctx context.Context, survivor uuid.UUID, sources []uuid.UUID, similarity float64, at time.Time) error {
	if len(sources) == 0 {
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, source := range sources {
		if source == survivor || source == uuid.Nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO merges (survivor_id, source_id, similarity, merged_at)
			 VALUES (?, ?, ?, ?)`,
			survivor.String(), source.String(), similarity, at.UTC(),
		)
		if err != nil {
			return fmt.Errorf("recording merge %s <- %s: %w", survivor, source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing merge: %w", err)
	}
	return nil
}

// RecordAdjacency stores a chunk's neighbors in its original document.
// uuid.Nil marks a missing neighbor (first or last chunk).
func (t *Tracker) RecordAdjacency(ctx context.Context, chunk, prev, next uuid.UUID) error {
	if chunk == uuid.Nil {
		return fmt.Errorf("chunk id is required")
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO adjacencies (chunk_id, prev_id, next_id)
		 VALUES (?, ?, ?)`,
		chunk.String(), idOrEmpty(prev), idOrEmpty(next),
	)
	if err != nil {
		return fmt.Errorf("recording adjacency for %s: %w", chunk, err)
	}
	return nil
}

// Lineage returns all transitive ancestors of a document: every id that was
// ever absorbed, directly or through earlier merges, into it.
func (t *Tracker) Lineage(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.db.QueryContext(ctx,
		`WITH RECURSIVE ancestors(id) AS (
		    SELECT source_id FROM merges WHERE survivor_id = ?
		    UNION
		    SELECT m.source_id FROM merges m JOIN ancestors a ON m.survivor_id = a.id
		 )
		 SELECT id FROM ancestors ORDER BY id`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying lineage for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var ancestors []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning lineage row: %w", err)
		}
		ancestor, err := uuid.Parse(raw)
		if err != nil {
			t.logger.Warn("skipping malformed lineage id", "id", raw, "error", err)
			continue
		}
		ancestors = append(ancestors, ancestor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lineage: %w", err)
	}
	return ancestors, nil
}

// Neighbors returns the recorded adjacency for a chunk, or
// memory.ErrNotFound for chunks that were never part of a split document.
func (t *Tracker) Neighbors(ctx context.Context, chunk uuid.UUID) (Adjacency, error) {
	var prevRaw, nextRaw string
	err := t.db.QueryRowContext(ctx,
		`SELECT prev_id, next_id FROM adjacencies WHERE chunk_id = ?`,
		chunk.String(),
	).Scan(&prevRaw, &nextRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return Adjacency{}, memory.ErrNotFound
	}
	if err != nil {
		return Adjacency{}, fmt.Errorf("querying adjacency for %s: %w", chunk, err)
	}

	adj := Adjacency{
		Prev: parseOrNil(prevRaw),
		Next: parseOrNil(nextRaw),
	}
	return adj, nil
}

func idOrEmpty(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func parseOrNil(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

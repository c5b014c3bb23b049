// Package store persists documents in PostgreSQL with pgvector embeddings.
//
// The store is the shared, mutable state between the foreground ingestion
// path and the background maintainer. Metadata updates are optimistic: every
// row carries a version, UpdateMeta checks it, and a mismatch surfaces as
// memory.ErrConflict for the caller to retry. No whole-collection locking.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/strata-ai/strata/internal/memory"
)

// VectorDimension is the embedding dimensionality for the documents table.
// Must match the vector(N) column in the schema migration. Typed int32 to
// pass directly as the embedder's output dimensionality.
const VectorDimension int32 = 768

// docCols is the standard SELECT column list for scanDocuments.
const docCols = `id, collection, content, content_type, embedding,
	importance, explicit_importance, access_count,
	created_at, last_accessed_at, last_aged_at,
	tier, ttl_expiry, permanent, merge_sources, consolidation_group, version`

// Store implements memory.Store on PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a document Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// NewPool creates a pgx pool with the pgvector type codecs registered on
// every connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing pool config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	return pool, nil
}

// Upsert writes a full document, embedding included. An existing row is
// replaced and its version bumped.
func (s *Store) Upsert(ctx context.Context, doc *memory.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, content, content_type, embedding,
		    importance, explicit_importance, access_count,
		    created_at, last_accessed_at, last_aged_at,
		    tier, ttl_expiry, permanent, merge_sources, consolidation_group, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
		 ON CONFLICT (id) DO UPDATE SET
		    collection = EXCLUDED.collection,
		    content = EXCLUDED.content,
		    content_type = EXCLUDED.content_type,
		    embedding = EXCLUDED.embedding,
		    importance = EXCLUDED.importance,
		    explicit_importance = EXCLUDED.explicit_importance,
		    access_count = EXCLUDED.access_count,
		    created_at = EXCLUDED.created_at,
		    last_accessed_at = EXCLUDED.last_accessed_at,
		    last_aged_at = EXCLUDED.last_aged_at,
		    tier = EXCLUDED.tier,
		    ttl_expiry = EXCLUDED.ttl_expiry,
		    permanent = EXCLUDED.permanent,
		    merge_sources = EXCLUDED.merge_sources,
		    consolidation_group = EXCLUDED.consolidation_group,
		    version = documents.version + 1`,
		doc.ID, doc.Collection, doc.Content, doc.ContentType, embeddingValue(doc.Embedding),
		doc.Importance, doc.Explicit, doc.AccessCount,
		doc.CreatedAt, doc.LastAccessedAt, doc.LastAgedAt,
		string(doc.Tier), doc.TTLExpiry, doc.Permanent, mergeSourcesValue(doc.MergeSources), doc.ConsolidationGroup,
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a document by id, or memory.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*memory.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+docCols+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// List snapshots a collection, embeddings included. The maintainer calls
// this at sweep start; documents ingested afterwards are picked up in the
// next interval.
func (s *Store) List(ctx context.Context, collection string) ([]*memory.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+docCols+` FROM documents WHERE collection = $1 ORDER BY created_at`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collection %s: %w", collection, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// QueryByVector returns up to k nearest documents by cosine similarity.
func (s *Store) QueryByVector(ctx context.Context, collection string, vec []float32, k int) ([]memory.Neighbor, error) {
	if len(vec) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity
		 FROM documents
		 WHERE collection = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vec), collection, k,
	)
	if err != nil {
		return nil, fmt.Errorf("querying by vector: %w", err)
	}
	defer rows.Close()

	var neighbors []memory.Neighbor
	for rows.Next() {
		var n memory.Neighbor
		if err := rows.Scan(&n.ID, &n.Similarity); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating neighbors: %w", err)
	}
	return neighbors, nil
}

// UpdateMeta writes retention metadata guarded by the document's version.
// On success the version in doc is advanced to match the stored row.
// Returns memory.ErrConflict when the stored version moved on, and
// memory.ErrNotFound when the row is gone.
func (s *Store) UpdateMeta(ctx context.Context, doc *memory.Document) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET
		    importance = $1,
		    access_count = $2,
		    created_at = $3,
		    last_accessed_at = $4,
		    last_aged_at = $5,
		    tier = $6,
		    ttl_expiry = $7,
		    permanent = $8,
		    merge_sources = $9,
		    consolidation_group = $10,
		    version = version + 1
		 WHERE id = $11 AND version = $12`,
		doc.Importance, doc.AccessCount, doc.CreatedAt, doc.LastAccessedAt,
		doc.LastAgedAt, string(doc.Tier), doc.TTLExpiry, doc.Permanent,
		mergeSourcesValue(doc.MergeSources), doc.ConsolidationGroup,
		doc.ID, doc.Version,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a moved version from a deleted row.
		var exists bool
		lookupErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, doc.ID,
		).Scan(&exists)
		if lookupErr != nil {
			return fmt.Errorf("looking up document %s: %w", doc.ID, lookupErr)
		}
		if !exists {
			return memory.ErrNotFound
		}
		return memory.ErrConflict
	}
	doc.Version++
	return nil
}

// Touch bumps access counters and timestamps for ids in one statement.
// Advisory tracking: runs outside a transaction, partial updates are fine.
func (s *Store) Touch(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET access_count = access_count + 1,
		     last_accessed_at = now(),
		     version = version + 1
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("touching %d documents: %w", len(ids), err)
	}
	return nil
}

// CountByTier returns per-tier document counts for a collection.
func (s *Store) CountByTier(ctx context.Context, collection string) (map[memory.Tier]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tier, COUNT(*) FROM documents WHERE collection = $1 GROUP BY tier`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("counting tiers: %w", err)
	}
	defer rows.Close()

	counts := make(map[memory.Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("scanning tier count: %w", err)
		}
		counts[memory.Tier(tier)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tier counts: %w", err)
	}
	return counts, nil
}

// embeddingValue maps an empty embedding to NULL.
func embeddingValue(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	return pgvector.NewVector(vec)
}

// mergeSourcesValue normalizes a nil slice to an empty array so the NOT
// NULL column never sees a SQL NULL.
func mergeSourcesValue(sources []uuid.UUID) []uuid.UUID {
	if sources == nil {
		return []uuid.UUID{}
	}
	return sources
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one document row (standard column set).
func scanDocument(row rowScanner) (*memory.Document, error) {
	doc := &memory.Document{}
	var (
		embedding *pgvector.Vector
		tier      string
		ttlExpiry *time.Time
	)
	if err := row.Scan(
		&doc.ID, &doc.Collection, &doc.Content, &doc.ContentType, &embedding,
		&doc.Importance, &doc.Explicit, &doc.AccessCount,
		&doc.CreatedAt, &doc.LastAccessedAt, &doc.LastAgedAt,
		&tier, &ttlExpiry, &doc.Permanent, &doc.MergeSources, &doc.ConsolidationGroup, &doc.Version,
	); err != nil {
		return nil, err
	}
	if embedding != nil {
		doc.Embedding = embedding.Slice()
	}
	doc.Tier = memory.Tier(tier)
	doc.TTLExpiry = ttlExpiry
	return doc, nil
}

// scanDocuments reads document rows (standard column set).
func scanDocuments(rows pgx.Rows) ([]*memory.Document, error) {
	var docs []*memory.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence collaborator. The production implementation is
// internal/store (PostgreSQL + pgvector); tests use an in-memory fake.
//
// Updates race with the foreground ingestion path, so UpdateMeta performs an
// optimistic version check and returns ErrConflict on mismatch. There is no
// whole-collection locking; collections are independent.
type Store interface {
	// Upsert writes a full document, embedding included.
	Upsert(ctx context.Context, doc *Document) error

	// Get returns a document by id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Document, error)

	// Delete removes a document. Deleting an absent id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// List snapshots a collection, embeddings included. Used at sweep start.
	List(ctx context.Context, collection string) ([]*Document, error)

	// QueryByVector returns up to k nearest documents by cosine similarity.
	QueryByVector(ctx context.Context, collection string, vec []float32, k int) ([]Neighbor, error)

	// UpdateMeta writes retention metadata guarded by the document's
	// Version. Returns ErrConflict when the stored version moved on.
	UpdateMeta(ctx context.Context, doc *Document) error

	// Touch bumps access counters and access timestamps for ids.
	Touch(ctx context.Context, ids []uuid.UUID) error
}

// Neighbor is one ranked result of a vector query.
type Neighbor struct {
	ID         uuid.UUID
	Similarity float64
}

// RelationRecorder records merge lineage and chunk adjacency. The write
// paths are the dedup engine, the consolidator, and the ingestion chunker;
// everything else reads. Implemented by internal/relation.
type RelationRecorder interface {
	RecordMerge(ctx context.Context, survivor uuid.UUID, sources []uuid.UUID, similarity float64, at time.Time) error
	RecordAdjacency(ctx context.Context, chunk, prev, next uuid.UUID) error
}

// Embedder turns text into a vector. Failures degrade gracefully: the
// caller zeroes the semantic term and continues. Implemented by
// internal/embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

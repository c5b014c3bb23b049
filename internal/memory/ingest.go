package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxChunkBytes bounds a single stored chunk. Longer content is split on
// paragraph boundaries and the chunks linked through the relation tracker.
const maxChunkBytes = 4096

// IngestOptions tune a single ingestion.
type IngestOptions struct {
	// ID assigns the document id; a zero value generates one.
	ID uuid.UUID

	// ContentType is one of prose, code, data, doc. Defaults to prose.
	ContentType string

	// Importance is the explicit importance term in [0,1].
	Importance float64

	// Permanent pins the document to the Permanent tier.
	Permanent bool
}

// Ingestor is the foreground path: validate, embed, chunk, score, classify,
// compute TTL, persist. Synchronous errors carry a kind checkable with
// errors.Is; provider failures degrade instead of failing the ingestion.
type Ingestor struct {
	store      Store
	embedder   Embedder
	relations  RelationRecorder
	scorer     *Scorer
	classifier *Classifier
	calc       *Calculator
	logger     *slog.Logger
}

// NewIngestor wires the ingestion path.
func NewIngestor(store Store, embedder Embedder, relations RelationRecorder,
	scorer *Scorer, classifier *Classifier, calc *Calculator, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:      store,
		embedder:   embedder,
		relations:  relations,
		scorer:     scorer,
		classifier: classifier,
		calc:       calc,
		logger:     logger,
	}
}

// Ingest stores content into the collection and returns the created
// documents (one per chunk). Validation failures return ErrValidation and
// persist nothing. Embedding failures zero the semantic term and continue;
// store failures return ErrProvider.
func (in *Ingestor) Ingest(ctx context.Context, collection, content string, opts IngestOptions) ([]*Document, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrValidation)
	}
	if len(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content length %d exceeds maximum %d",
			ErrValidation, len(content), MaxContentLength)
	}
	if opts.Importance < 0 || opts.Importance > 1 {
		return nil, fmt.Errorf("%w: importance %v outside [0,1]", ErrValidation, opts.Importance)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentProse
	}
	switch contentType {
	case ContentProse, ContentCode, ContentData, ContentDoc:
	default:
		return nil, fmt.Errorf("%w: unknown content type %q", ErrValidation, contentType)
	}

	chunks := splitChunks(content, maxChunkBytes)
	now := time.Now()

	docs := make([]*Document, 0, len(chunks))
	for _, chunk := range chunks {
		id := uuid.New()
		if opts.ID != uuid.Nil && len(chunks) == 1 {
			id = opts.ID
		}

		doc := &Document{
			ID:             id,
			Collection:     collection,
			Content:        chunk,
			ContentType:    contentType,
			Explicit:       opts.Importance,
			CreatedAt:      now,
			LastAccessedAt: now,
			LastAgedAt:     now,
			Tier:           TierShortTerm,
			Permanent:      opts.Permanent,
		}

		in.embedAndScore(ctx, doc, now)

		if err := in.store.Upsert(ctx, doc); err != nil {
			return nil, fmt.Errorf("%w: upserting document %s: %v", ErrProvider, doc.ID, err)
		}
		docs = append(docs, doc)
	}

	// Link chunk neighbors for same-document ordering.
	if len(docs) > 1 {
		for i, doc := range docs {
			prev, next := uuid.Nil, uuid.Nil
			if i > 0 {
				prev = docs[i-1].ID
			}
			if i < len(docs)-1 {
				next = docs[i+1].ID
			}
			if err := in.relations.RecordAdjacency(ctx, doc.ID, prev, next); err != nil {
				in.logger.WarnContext(ctx, "recording chunk adjacency failed",
					"chunk", doc.ID, "error", err)
			}
		}
	}

	return docs, nil
}

// embedAndScore fills in the embedding and retention metadata for doc.
// Both provider calls degrade to a zero semantic term on failure.
func (in *Ingestor) embedAndScore(ctx context.Context, doc *Document, now time.Time) {
	vec, err := in.embedder.Embed(ctx, doc.Content)
	if err != nil {
		in.logger.WarnContext(ctx, "embedding failed, semantic term zeroed",
			"document", doc.ID, "error", err)
	} else {
		doc.Embedding = vec
	}

	// Semantic relatedness is the similarity to the nearest stored
	// neighbor. No embedding or no neighbors means 0.
	var semantic float64
	if len(doc.Embedding) > 0 {
		neighbors, qErr := in.store.QueryByVector(ctx, doc.Collection, doc.Embedding, 1)
		if qErr != nil {
			in.logger.WarnContext(ctx, "neighbor query failed, semantic term zeroed",
				"document", doc.ID, "error", qErr)
		} else if len(neighbors) > 0 {
			semantic = neighbors[0].Similarity
		}
	}

	b := in.scorer.Score(doc, semantic, now)
	doc.Importance = b.Combined
	doc.Tier = in.classifier.Classify(doc, b)
	doc.TTLExpiry = in.calc.Expiry(doc, now)
}

// Touch applies access events to ids: bump the count, slide the TTL. Each
// update is an optimistic read-modify-write retried once on a version
// conflict, then skipped and logged.
func (in *Ingestor) Touch(ctx context.Context, ids []uuid.UUID) error {
	now := time.Now()
	for _, id := range ids {
		if err := in.touchOne(ctx, id, now); err != nil {
			if errors.Is(err, ErrNotFound) {
				in.logger.DebugContext(ctx, "touch skipped missing document", "document", id)
				continue
			}
			return err
		}
	}
	return nil
}

func (in *Ingestor) touchOne(ctx context.Context, id uuid.UUID, now time.Time) error {
	for attempt := 0; attempt < 2; attempt++ {
		doc, err := in.store.Get(ctx, id)
		if err != nil {
			return err
		}

		doc.AccessCount++
		doc.LastAccessedAt = now
		doc.TTLExpiry = in.calc.Expiry(doc, now)

		err = in.store.UpdateMeta(ctx, doc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return fmt.Errorf("%w: touching document %s: %v", ErrProvider, id, err)
		}
		// Version moved underneath us; retry once against a fresh read.
	}

	in.logger.WarnContext(ctx, "touch abandoned after version conflicts", "document", id)
	return nil
}

// splitChunks splits content into pieces of at most limit bytes, preferring
// paragraph then line boundaries so chunks stay readable.
func splitChunks(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var chunks []string
	rest := content
	for len(rest) > limit {
		cut := limit
		if idx := strings.LastIndex(rest[:limit], "\n\n"); idx > 0 {
			cut = idx + 2
		} else if idx := strings.LastIndex(rest[:limit], "\n"); idx > 0 {
			cut = idx + 1
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

package memory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors. Callers discriminate with errors.Is.
var (
	// ErrValidation rejects malformed ingestion input before anything is
	// scored or persisted.
	ErrValidation = errors.New("validation failed")

	// ErrProvider marks a recoverable embedding or store failure. The
	// affected term is zeroed or the document skipped, never fatal.
	ErrProvider = errors.New("provider failure")

	// ErrConflict reports an optimistic version check failure on update.
	// Callers retry once against a fresh read, then skip and log.
	ErrConflict = errors.New("version conflict")

	// ErrNotFound reports a missing document.
	ErrNotFound = errors.New("document not found")
)

// Tier is the retention category of a document. Permanent and Consolidated
// are terminal; no scoring event transitions out of them.
type Tier string

const (
	TierShortTerm    Tier = "short_term"
	TierLongTerm     Tier = "long_term"
	TierPermanent    Tier = "permanent"
	TierConsolidated Tier = "consolidated"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierShortTerm, TierLongTerm, TierPermanent, TierConsolidated:
		return true
	}
	return false
}

// Terminal reports whether t admits no further automatic transitions.
func (t Tier) Terminal() bool {
	return t == TierPermanent || t == TierConsolidated
}

// Content types recognized by the dedup threshold table.
const (
	ContentProse = "prose"
	ContentCode  = "code"
	ContentData  = "data"
	ContentDoc   = "doc"
)

// MaxContentLength bounds ingested content size (64 KB).
const MaxContentLength = 64 * 1024

// Document is the unit of stored memory. Content and Embedding are owned by
// the store; the core reads them and mutates only the retention metadata.
type Document struct {
	ID          uuid.UUID
	Collection  string
	Content     string
	ContentType string
	Embedding   []float32

	// Importance is the raw combined score, conceptually unbounded before
	// capping. Display and long-term threshold comparisons use the capped
	// value; the permanent threshold uses the uncapped one.
	Importance float64

	// Explicit is the user-supplied importance term, 0 when absent.
	Explicit float64

	AccessCount    int64
	CreatedAt      time.Time
	LastAccessedAt time.Time
	LastAgedAt     time.Time

	Tier      Tier
	TTLExpiry *time.Time
	Permanent bool

	// MergeSources only grows across repeated merges (union, never reset).
	MergeSources []uuid.UUID

	ConsolidationGroup *uuid.UUID

	// Version is the optimistic concurrency token, owned by the store.
	Version int64
}

// CappedImportance returns the importance clamped to [0,1] for display and
// long-term threshold comparison.
func (d *Document) CappedImportance() float64 {
	if d.Importance > 1 {
		return 1
	}
	if d.Importance < 0 {
		return 0
	}
	return d.Importance
}

// Expired reports whether the document's TTL has passed at now.
// Documents without a TTL never expire.
func (d *Document) Expired(now time.Time) bool {
	return d.TTLExpiry != nil && d.TTLExpiry.Before(now)
}

// hasSource reports whether id is already recorded in MergeSources.
func (d *Document) hasSource(id uuid.UUID) bool {
	for _, s := range d.MergeSources {
		if s == id {
			return true
		}
	}
	return false
}

// AddSources unions ids into MergeSources, preserving insertion order.
func (d *Document) AddSources(ids ...uuid.UUID) {
	for _, id := range ids {
		if id == d.ID || d.hasSource(id) {
			continue
		}
		d.MergeSources = append(d.MergeSources, id)
	}
}

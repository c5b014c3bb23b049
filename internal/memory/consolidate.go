package memory

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/strata-ai/strata/internal/config"
)

// Consolidation is one planned consolidation: a new summary document
// replaces its sources, which are deleted after the summary is stored.
type Consolidation struct {
	Summary *Document
	Sources []uuid.UUID
}

// Consolidator compacts a crowded collection by merging groups of related
// ShortTerm and LongTerm documents into single Consolidated summaries.
// Like the Deduper it only plans; the maintainer applies the plan.
type Consolidator struct {
	cfg config.ConsolidationConfig
}

// NewConsolidator creates a Consolidator over validated configuration.
func NewConsolidator(cfg config.ConsolidationConfig) *Consolidator {
	return &Consolidator{cfg: cfg}
}

// Plan groups related documents once the collection's ShortTerm plus
// LongTerm population exceeds the size threshold. Grouping uses the same
// connected-components pass as dedup but at the looser group similarity,
// so documents that are related rather than duplicated end up together.
// Groups are capped at the configured maximum size; singletons are left
// alone.
func (c *Consolidator) Plan(docs []*Document, now time.Time) []Consolidation {
	if !c.cfg.Enabled {
		return nil
	}

	eligible := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Tier != TierShortTerm && doc.Tier != TierLongTerm {
			continue
		}
		if len(doc.Embedding) == 0 {
			continue
		}
		eligible = append(eligible, doc)
	}
	if len(eligible) <= c.cfg.SizeThreshold {
		return nil
	}

	uf := newUnionFind(len(eligible))
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			if cosineSimilarity(eligible[i].Embedding, eligible[j].Embedding) >= c.cfg.GroupSimilarity {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]*Document)
	for i, doc := range eligible {
		root := uf.find(i)
		groups[root] = append(groups[root], doc)
	}

	var plans []Consolidation
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		// Oldest first so the summary reads chronologically; also makes
		// the max-group cut deterministic.
		sort.Slice(members, func(i, j int) bool {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		})
		if len(members) > c.cfg.MaxGroupSize {
			members = members[:c.cfg.MaxGroupSize]
		}
		plans = append(plans, c.buildSummary(members, now))
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Summary.CreatedAt.Before(plans[j].Summary.CreatedAt)
	})
	return plans
}

// buildSummary folds a group into one Consolidated document. The summary
// aggregates the group's counters under the same conservation rules as a
// merge and carries the centroid embedding so it stays searchable.
func (c *Consolidator) buildSummary(members []*Document, now time.Time) Consolidation {
	first := members[0]
	summaryID := uuid.New()

	summary := &Document{
		ID:             summaryID,
		Collection:     first.Collection,
		ContentType:    first.ContentType,
		Tier:           TierConsolidated,
		CreatedAt:      first.CreatedAt,
		LastAccessedAt: first.LastAccessedAt,
		LastAgedAt:     now,
	}
	summary.ConsolidationGroup = &summaryID

	var parts []string
	sources := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		parts = append(parts, m.Content)
		sources = append(sources, m.ID)

		summary.Importance = math.Max(summary.Importance, m.Importance)
		summary.AccessCount += m.AccessCount
		if m.CreatedAt.Before(summary.CreatedAt) {
			summary.CreatedAt = m.CreatedAt
		}
		if m.LastAccessedAt.After(summary.LastAccessedAt) {
			summary.LastAccessedAt = m.LastAccessedAt
		}
		summary.AddSources(m.MergeSources...)
		summary.AddSources(m.ID)
	}

	content := strings.Join(parts, "\n\n")
	if len(content) > c.cfg.MaxSummaryBytes {
		content = content[:c.cfg.MaxSummaryBytes]
	}
	summary.Content = content
	summary.Embedding = centroid(members)

	return Consolidation{Summary: summary, Sources: sources}
}

// centroid averages the members' embeddings.
func centroid(members []*Document) []float32 {
	if len(members) == 0 {
		return nil
	}
	dim := len(members[0].Embedding)
	sum := make([]float64, dim)
	for _, m := range members {
		if len(m.Embedding) != dim {
			continue
		}
		for i, v := range m.Embedding {
			sum[i] += float64(v)
		}
	}
	out := make([]float32, dim)
	for i, v := range sum {
		out[i] = float32(v / float64(len(members)))
	}
	return out
}

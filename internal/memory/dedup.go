package memory

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/strata-ai/strata/internal/config"
)

// Merge is one planned merge action: the survivor absorbs the losers'
// metadata and the losers are deleted from the store.
type Merge struct {
	// Survivor carries the absorbed metadata, ready for store.UpdateMeta.
	Survivor *Document

	// Losers are deleted after the survivor update succeeds.
	Losers []uuid.UUID

	// Similarity is the strongest edge inside the cluster, recorded with
	// the merge lineage.
	Similarity float64
}

// Deduper plans near-duplicate merges over a collection snapshot. It has no
// side effects: the maintainer applies the returned plan against the store
// and the relation tracker.
type Deduper struct {
	cfg config.DedupConfig
}

// NewDeduper creates a Deduper over validated configuration.
func NewDeduper(cfg config.DedupConfig) *Deduper {
	return &Deduper{cfg: cfg}
}

// Plan computes merge actions for the snapshot.
//
// Pairwise cosine similarity over all embeddings is O(n²) in the snapshot
// size; acceptable at the intended per-collection scale. A pair is a merge
// candidate when both documents share a content type, their similarity
// meets the content type's threshold, and their importance difference is
// within the configured bound (a hard precondition). Candidate pairs form
// edges of an undirected graph and connected components determine the
// clusters, so multi-way duplicates resolve in one pass instead of through
// order-dependent pairwise chains.
//
// Running Plan twice with no ingestion in between yields an empty second
// plan: every cluster collapses to its survivor on the first pass.
func (d *Deduper) Plan(docs []*Document) []Merge {
	if !d.cfg.Enabled || len(docs) < 2 {
		return nil
	}

	// Consolidated summaries never participate; documents without an
	// embedding cannot be compared.
	eligible := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Tier == TierConsolidated || len(doc.Embedding) == 0 {
			continue
		}
		eligible = append(eligible, doc)
	}
	if len(eligible) < 2 {
		return nil
	}

	uf := newUnionFind(len(eligible))
	// edgeSim tracks the strongest edge seen per component root.
	edgeSim := make(map[int]float64)

	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			a, b := eligible[i], eligible[j]
			if a.ContentType != b.ContentType {
				continue
			}
			if math.Abs(a.Importance-b.Importance) > d.cfg.MinImportanceDiff {
				continue
			}
			sim := cosineSimilarity(a.Embedding, b.Embedding)
			if sim < d.cfg.ThresholdFor(a.ContentType) {
				continue
			}

			ra, rb := uf.find(i), uf.find(j)
			best := math.Max(edgeSim[ra], edgeSim[rb])
			best = math.Max(best, sim)
			root := uf.union(i, j)
			edgeSim[root] = best
		}
	}

	// Collect clusters of size >= 2.
	clusters := make(map[int][]*Document)
	for i, doc := range eligible {
		root := uf.find(i)
		clusters[root] = append(clusters[root], doc)
	}

	var merges []Merge
	for root, members := range clusters {
		if len(members) < 2 {
			continue
		}
		merges = append(merges, buildMerge(members, edgeSim[root]))
	}

	// Deterministic plan order for stable application and logging.
	sort.Slice(merges, func(i, j int) bool {
		return merges[i].Survivor.ID.String() < merges[j].Survivor.ID.String()
	})
	return merges
}

// buildMerge picks the cluster survivor and absorbs the losers into it.
// Survivor tie-break: highest importance, then highest access count, then
// earliest creation.
func buildMerge(members []*Document, similarity float64) Merge {
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if a.AccessCount != b.AccessCount {
			return a.AccessCount > b.AccessCount
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	// Copy so the snapshot is not mutated; the store write can still fail.
	survivor := *members[0]
	survivor.MergeSources = append([]uuid.UUID(nil), members[0].MergeSources...)

	losers := make([]uuid.UUID, 0, len(members)-1)
	for _, m := range members[1:] {
		// Conservation: importance is the max, access counts sum, the
		// earliest creation and latest access win.
		survivor.Importance = math.Max(survivor.Importance, m.Importance)
		survivor.AccessCount += m.AccessCount
		if m.CreatedAt.Before(survivor.CreatedAt) {
			survivor.CreatedAt = m.CreatedAt
		}
		if m.LastAccessedAt.After(survivor.LastAccessedAt) {
			survivor.LastAccessedAt = m.LastAccessedAt
		}
		// Union the loser's own lineage before the loser itself.
		survivor.AddSources(m.MergeSources...)
		survivor.AddSources(m.ID)
		losers = append(losers, m.ID)
	}

	return Merge{Survivor: &survivor, Losers: losers, Similarity: similarity}
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// unionFind is a disjoint-set forest with path compression and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union merges the sets containing a and b and returns the new root.
func (uf *unionFind) union(a, b int) int {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return ra
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	return ra
}

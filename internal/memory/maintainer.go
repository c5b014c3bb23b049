package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/strata-ai/strata/internal/config"
)

// Sweep kinds, one per maintenance timer.
const (
	SweepCleanup       = "cleanup"       // expire + age
	SweepConsolidation = "consolidation" // dedup + consolidate
	SweepStatistics    = "statistics"    // publish counts only
	SweepDeep          = "deep"          // all phases
)

// Maintainer runs background lifecycle sweeps per collection on independent
// timers. A sweep snapshots the collection and runs its phases sequentially
// so expiry and dedup never interleave on the same document. Per-document
// failures are logged and skipped; a snapshot failure aborts the sweep and
// the next tick retries it.
//
// The caller owns the goroutine: Run blocks until ctx is canceled.
type Maintainer struct {
	store        Store
	relations    RelationRecorder
	scorer       *Scorer
	classifier   *Classifier
	calc         *Calculator
	deduper      *Deduper
	consolidator *Consolidator
	sink         Sink

	cfg         config.MaintenanceConfig
	collections []string

	// limiter bounds store write pressure during sweeps so foreground
	// ingestion latency stays predictable.
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewMaintainer wires a Maintainer for the given collections.
func NewMaintainer(store Store, relations RelationRecorder, scorer *Scorer,
	classifier *Classifier, calc *Calculator, deduper *Deduper,
	consolidator *Consolidator, sink Sink, cfg config.MaintenanceConfig,
	collections []string, logger *slog.Logger) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = NewLogSink(logger)
	}
	return &Maintainer{
		store:        store,
		relations:    relations,
		scorer:       scorer,
		classifier:   classifier,
		calc:         calc,
		deduper:      deduper,
		consolidator: consolidator,
		sink:         sink,
		cfg:          cfg,
		collections:  collections,
		limiter:      rate.NewLimiter(rate.Limit(cfg.DocsPerSecond), 1),
		logger:       logger,
	}
}

// Run blocks until ctx is canceled, firing sweeps on the four independent
// timers. Callers track the goroutine with a WaitGroup.
func (m *Maintainer) Run(ctx context.Context) {
	if !m.cfg.Enabled {
		m.logger.Info("maintenance disabled")
		<-ctx.Done()
		return
	}

	cleanup := time.NewTicker(m.cfg.CleanupInterval)
	defer cleanup.Stop()
	consolidation := time.NewTicker(m.cfg.ConsolidationInterval)
	defer consolidation.Stop()
	statistics := time.NewTicker(m.cfg.StatisticsInterval)
	defer statistics.Stop()
	deep := time.NewTicker(m.cfg.DeepInterval)
	defer deep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			m.SweepAll(ctx, SweepCleanup)
		case <-consolidation.C:
			m.SweepAll(ctx, SweepConsolidation)
		case <-statistics.C:
			m.SweepAll(ctx, SweepStatistics)
		case <-deep.C:
			m.SweepAll(ctx, SweepDeep)
		}
	}
}

// SweepAll runs one sweep of the given kind over every collection.
// Collections are independent; a failure in one never blocks the others.
func (m *Maintainer) SweepAll(ctx context.Context, kind string) {
	for _, collection := range m.collections {
		if ctx.Err() != nil {
			return
		}
		if err := m.Sweep(ctx, collection, kind); err != nil {
			m.logger.WarnContext(ctx, "sweep aborted",
				"collection", collection, "kind", kind, "error", err)
		}
	}
}

// Sweep runs one sweep of the given kind over one collection. Returns an
// error only for sweep-level failures (snapshot unavailable, canceled);
// per-document errors are counted and logged inside the phases.
func (m *Maintainer) Sweep(ctx context.Context, collection, kind string) error {
	tracer := otel.Tracer("strata/maintainer")
	ctx, span := tracer.Start(ctx, "maintenance.sweep")
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("kind", kind),
	)
	defer span.End()

	started := time.Now()

	snapshot, err := m.store.List(ctx, collection)
	if err != nil {
		return fmt.Errorf("snapshotting collection %s: %w", collection, err)
	}

	stats := SweepStats{Collection: collection, Kind: kind}

	switch kind {
	case SweepCleanup:
		err = m.runPhases(ctx, snapshot, &stats, m.expirePhase, m.agePhase)
	case SweepConsolidation:
		err = m.runPhases(ctx, snapshot, &stats, m.dedupPhase, m.consolidatePhase)
	case SweepStatistics:
		// Counts only; snapshot already taken.
	case SweepDeep:
		err = m.runPhases(ctx, snapshot, &stats,
			m.expirePhase, m.agePhase, m.dedupPhase, m.consolidatePhase)
	default:
		return fmt.Errorf("unknown sweep kind %q", kind)
	}
	if err != nil {
		return err
	}

	stats.TierCounts = tierCounts(snapshot)
	stats.Duration = time.Since(started)
	m.sink.Publish(ctx, stats)
	return nil
}

// phase is one sequential sweep step over the snapshot.
type phase func(ctx context.Context, snapshot []*Document, stats *SweepStats) error

func (m *Maintainer) runPhases(ctx context.Context, snapshot []*Document, stats *SweepStats, phases ...phase) error {
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p(ctx, snapshot, stats); err != nil {
			return err
		}
	}
	return nil
}

// expirePhase deletes documents past their TTL. Checkpoint granularity is
// one document: cancellation between deletions leaves the rest for the next
// sweep.
func (m *Maintainer) expirePhase(ctx context.Context, snapshot []*Document, stats *SweepStats) error {
	now := time.Now()
	for _, doc := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !doc.Expired(now) {
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := m.store.Delete(ctx, doc.ID); err != nil {
			stats.Skipped++
			m.logger.WarnContext(ctx, "expiry delete failed",
				"document", doc.ID, "error", err)
			continue
		}
		stats.Expired++
	}
	return nil
}

// agePhase applies lazy aging and re-evaluates tiers from the stored
// importance. Aging itself never demotes; the classifier only promotes.
// Each write is optimistic with one retry against a fresh read.
func (m *Maintainer) agePhase(ctx context.Context, snapshot []*Document, stats *SweepStats) error {
	now := time.Now()
	for _, doc := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if doc.Tier.Terminal() || doc.Expired(now) {
			continue
		}

		aged := m.calc.Age(doc, now)
		newTier := m.classifier.Classify(doc, Breakdown{Combined: doc.Importance})
		promoted := newTier != doc.Tier
		if !aged && !promoted {
			continue
		}

		doc.Tier = newTier
		doc.TTLExpiry = m.calc.Expiry(doc, now)

		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := m.updateWithRetry(ctx, doc); err != nil {
			stats.Skipped++
			m.logger.WarnContext(ctx, "aging update failed",
				"document", doc.ID, "error", err)
			continue
		}
		if aged {
			stats.Aged++
		}
		if promoted {
			stats.Promoted++
		}
	}
	return nil
}

// dedupPhase plans merges over the snapshot and applies them: update the
// survivor, delete the losers, record lineage. A failed survivor update
// skips the whole cluster so losers are never deleted without their
// metadata being absorbed.
func (m *Maintainer) dedupPhase(ctx context.Context, snapshot []*Document, stats *SweepStats) error {
	now := time.Now()
	for _, merge := range m.deduper.Plan(snapshot) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := m.updateWithRetry(ctx, merge.Survivor); err != nil {
			stats.Skipped++
			m.logger.WarnContext(ctx, "merge survivor update failed",
				"survivor", merge.Survivor.ID, "error", err)
			continue
		}

		for _, loser := range merge.Losers {
			if err := m.store.Delete(ctx, loser); err != nil {
				stats.Skipped++
				m.logger.WarnContext(ctx, "merge loser delete failed",
					"document", loser, "error", err)
				continue
			}
			stats.Merged++
		}

		if err := m.relations.RecordMerge(ctx, merge.Survivor.ID, merge.Losers, merge.Similarity, now); err != nil {
			m.logger.WarnContext(ctx, "recording merge lineage failed",
				"survivor", merge.Survivor.ID, "error", err)
		}
	}
	return nil
}

// consolidatePhase folds groups of related documents into Consolidated
// summaries once the collection is over its size threshold.
func (m *Maintainer) consolidatePhase(ctx context.Context, snapshot []*Document, stats *SweepStats) error {
	now := time.Now()
	for _, plan := range m.consolidator.Plan(snapshot, now) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := m.store.Upsert(ctx, plan.Summary); err != nil {
			stats.Skipped++
			m.logger.WarnContext(ctx, "consolidation summary upsert failed",
				"summary", plan.Summary.ID, "error", err)
			continue
		}

		for _, src := range plan.Sources {
			if err := m.store.Delete(ctx, src); err != nil {
				stats.Skipped++
				m.logger.WarnContext(ctx, "consolidation source delete failed",
					"document", src, "error", err)
				continue
			}
		}
		stats.Consolidated++

		if err := m.relations.RecordMerge(ctx, plan.Summary.ID, plan.Sources, 0, now); err != nil {
			m.logger.WarnContext(ctx, "recording consolidation lineage failed",
				"summary", plan.Summary.ID, "error", err)
		}
	}
	return nil
}

// updateWithRetry writes metadata optimistically, retrying once on a
// version conflict. On retry, the fresh document's version carries the
// caller's metadata forward.
func (m *Maintainer) updateWithRetry(ctx context.Context, doc *Document) error {
	err := m.store.UpdateMeta(ctx, doc)
	if err == nil || !errors.Is(err, ErrConflict) {
		return err
	}

	fresh, getErr := m.store.Get(ctx, doc.ID)
	if getErr != nil {
		return getErr
	}
	doc.Version = fresh.Version
	// Access metadata may have advanced underneath; keep the larger values
	// so a concurrent Touch is never lost.
	if fresh.AccessCount > doc.AccessCount {
		doc.AccessCount = fresh.AccessCount
	}
	if fresh.LastAccessedAt.After(doc.LastAccessedAt) {
		doc.LastAccessedAt = fresh.LastAccessedAt
	}
	return m.store.UpdateMeta(ctx, doc)
}

// tierCounts tallies the snapshot per tier.
func tierCounts(snapshot []*Document) map[Tier]int {
	counts := make(map[Tier]int, 4)
	for _, doc := range snapshot {
		counts[doc.Tier]++
	}
	return counts
}

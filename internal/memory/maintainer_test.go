package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/strata-ai/strata/internal/config"
	"github.com/strata-ai/strata/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*Document

	failDelete     map[uuid.UUID]bool
	failList       bool
	conflictOnce   map[uuid.UUID]bool
	upsertErr      error
	queryNeighbors []Neighbor
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:         make(map[uuid.UUID]*Document),
		failDelete:   make(map[uuid.UUID]bool),
		conflictOnce: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) put(doc *Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
}

func (f *fakeStore) Upsert(_ context.Context, doc *Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.put(doc)
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[id] {
		return fmt.Errorf("%w: injected delete failure", ErrProvider)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, collection string) ([]*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, fmt.Errorf("%w: injected list failure", ErrProvider)
	}
	var out []*Document
	for _, doc := range f.docs {
		if doc.Collection == collection {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) QueryByVector(_ context.Context, _ string, _ []float32, _ int) ([]Neighbor, error) {
	return f.queryNeighbors, nil
}

func (f *fakeStore) UpdateMeta(_ context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if f.conflictOnce[doc.ID] {
		delete(f.conflictOnce, doc.ID)
		stored.Version++
		return ErrConflict
	}
	if stored.Version != doc.Version {
		return ErrConflict
	}
	cp := *doc
	cp.Version++
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeStore) Touch(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			doc.AccessCount++
			doc.LastAccessedAt = now
		}
	}
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

// fakeRelations records calls.
type fakeRelations struct {
	mu          sync.Mutex
	merges      [][]uuid.UUID
	adjacencies [][3]uuid.UUID
}

func (f *fakeRelations) RecordMerge(_ context.Context, survivor uuid.UUID, sources []uuid.UUID, _ float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, append([]uuid.UUID{survivor}, sources...))
	return nil
}

func (f *fakeRelations) RecordAdjacency(_ context.Context, chunk, prev, next uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjacencies = append(f.adjacencies, [3]uuid.UUID{chunk, prev, next})
	return nil
}

// captureSink keeps every published stats record.
type captureSink struct {
	mu    sync.Mutex
	stats []SweepStats
}

func (c *captureSink) Publish(_ context.Context, stats SweepStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = append(c.stats, stats)
}

func (c *captureSink) last(t *testing.T) SweepStats {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stats) == 0 {
		t.Fatal("no stats published")
	}
	return c.stats[len(c.stats)-1]
}

func testMaintenanceConfig() config.MaintenanceConfig {
	return config.MaintenanceConfig{
		Enabled:               true,
		CleanupInterval:       time.Hour,
		ConsolidationInterval: time.Hour,
		StatisticsInterval:    time.Hour,
		DeepInterval:          time.Hour,
		DocsPerSecond:         1000,
	}
}

func newTestMaintainer(t *testing.T, store Store, relations RelationRecorder, sink Sink) *Maintainer {
	t.Helper()
	matcher := newTestMatcher(t, &config.Config{})
	return NewMaintainer(
		store, relations,
		NewScorer(testScoringConfig(), matcher),
		testClassifier(),
		newTestCalculator(),
		NewDeduper(testDedupConfig()),
		NewConsolidator(testConsolidationConfig()),
		sink,
		testMaintenanceConfig(),
		[]string{"default"},
		log.NewNop(),
	)
}

func sweepDoc(tier Tier, importance float64, vec []float32) *Document {
	now := time.Now()
	return &Document{
		ID:             uuid.New(),
		Collection:     "default",
		ContentType:    ContentProse,
		Content:        "note",
		Importance:     importance,
		Tier:           tier,
		CreatedAt:      now,
		LastAccessedAt: now,
		LastAgedAt:     now,
		Embedding:      vec,
	}
}

func TestSweep_ExpiresPastTTL(t *testing.T) {
	store := newFakeStore()
	sink := &captureSink{}
	m := newTestMaintainer(t, store, &fakeRelations{}, sink)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	expired := sweepDoc(TierShortTerm, 0.5, nil)
	expired.TTLExpiry = &past
	alive := sweepDoc(TierShortTerm, 0.5, nil)
	alive.TTLExpiry = &future

	store.put(expired)
	store.put(alive)

	if err := m.Sweep(context.Background(), "default", SweepCleanup); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}

	if _, err := store.Get(context.Background(), expired.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expired document still present after cleanup sweep")
	}
	if _, err := store.Get(context.Background(), alive.ID); err != nil {
		t.Errorf("live document missing after cleanup sweep: %v", err)
	}
	if got := sink.last(t).Expired; got != 1 {
		t.Errorf("stats.Expired = %d, want 1", got)
	}
}

func TestSweep_PerDocumentFailureIsolation(t *testing.T) {
	store := newFakeStore()
	sink := &captureSink{}
	m := newTestMaintainer(t, store, &fakeRelations{}, sink)

	past := time.Now().Add(-time.Minute)
	bad := sweepDoc(TierShortTerm, 0.5, nil)
	bad.TTLExpiry = &past
	good := sweepDoc(TierShortTerm, 0.5, nil)
	good.TTLExpiry = &past

	store.put(bad)
	store.put(good)
	store.failDelete[bad.ID] = true

	// The sweep must not abort: the other document is still expired.
	if err := m.Sweep(context.Background(), "default", SweepCleanup); err != nil {
		t.Fatalf("Sweep() = %v, want nil despite per-document failure", err)
	}

	stats := sink.last(t)
	if stats.Expired != 1 {
		t.Errorf("stats.Expired = %d, want 1", stats.Expired)
	}
	if stats.Skipped != 1 {
		t.Errorf("stats.Skipped = %d, want 1", stats.Skipped)
	}
}

func TestSweep_SnapshotFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.failList = true
	sink := &captureSink{}
	m := newTestMaintainer(t, store, &fakeRelations{}, sink)

	if err := m.Sweep(context.Background(), "default", SweepCleanup); err == nil {
		t.Error("Sweep() = nil, want error when the snapshot fails")
	}
	if len(sink.stats) != 0 {
		t.Error("stats published for an aborted sweep")
	}
}

func TestSweep_Cancellation(t *testing.T) {
	store := newFakeStore()
	for range 20 {
		past := time.Now().Add(-time.Minute)
		doc := sweepDoc(TierShortTerm, 0.5, nil)
		doc.TTLExpiry = &past
		store.put(doc)
	}

	m := newTestMaintainer(t, store, &fakeRelations{}, &captureSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Sweep(ctx, "default", SweepCleanup); !errors.Is(err, context.Canceled) {
		t.Errorf("Sweep() = %v, want context.Canceled", err)
	}
	if store.count() != 20 {
		t.Errorf("documents deleted after cancellation: %d remain, want 20", store.count())
	}
}

func TestSweep_DedupMergesAndRecordsLineage(t *testing.T) {
	store := newFakeStore()
	relations := &fakeRelations{}
	sink := &captureSink{}
	m := newTestMaintainer(t, store, relations, sink)

	a := sweepDoc(TierShortTerm, 0.6, []float32{1, 0, 0})
	a.AccessCount = 1
	b := sweepDoc(TierShortTerm, 0.6, []float32{1, 0, 0.01})
	b.AccessCount = 2

	store.put(a)
	store.put(b)

	if err := m.Sweep(context.Background(), "default", SweepConsolidation); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}

	if store.count() != 1 {
		t.Fatalf("store has %d documents after dedup, want 1", store.count())
	}
	survivor, err := store.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("survivor missing: %v", err)
	}
	if survivor.AccessCount != 3 {
		t.Errorf("survivor access count = %d, want 3", survivor.AccessCount)
	}
	if len(relations.merges) != 1 {
		t.Errorf("recorded merges = %d, want 1", len(relations.merges))
	}
	if got := sink.last(t).Merged; got != 1 {
		t.Errorf("stats.Merged = %d, want 1", got)
	}
}

func TestSweep_ConflictRetriesOnce(t *testing.T) {
	store := newFakeStore()
	sink := &captureSink{}
	m := newTestMaintainer(t, store, &fakeRelations{}, sink)

	doc := sweepDoc(TierShortTerm, 0.8, nil)
	// Past the aging threshold so the age phase writes.
	doc.LastAgedAt = time.Now().Add(-10 * 24 * time.Hour)
	doc.CreatedAt = doc.LastAgedAt
	store.put(doc)
	store.conflictOnce[doc.ID] = true

	if err := m.Sweep(context.Background(), "default", SweepCleanup); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}

	stats := sink.last(t)
	if stats.Aged != 1 {
		t.Errorf("stats.Aged = %d, want 1 (retried after conflict)", stats.Aged)
	}
	if stats.Skipped != 0 {
		t.Errorf("stats.Skipped = %d, want 0", stats.Skipped)
	}
}

func TestSweep_AgePromotesFromStoredImportance(t *testing.T) {
	store := newFakeStore()
	sink := &captureSink{}
	m := newTestMaintainer(t, store, &fakeRelations{}, sink)

	doc := sweepDoc(TierShortTerm, 0.85, nil)
	store.put(doc)

	if err := m.Sweep(context.Background(), "default", SweepCleanup); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}

	got, err := store.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.Tier != TierLongTerm {
		t.Errorf("tier = %v, want LongTerm (stored importance 0.85 >= 0.7)", got.Tier)
	}
	if got.TTLExpiry == nil {
		t.Error("promoted document has no TTL")
	}
	if sink.last(t).Promoted != 1 {
		t.Errorf("stats.Promoted = %d, want 1", sink.last(t).Promoted)
	}
}

func TestSweep_StatisticsPublishesTierCounts(t *testing.T) {
	store := newFakeStore()
	sink := &captureSink{}
	m := newTestMaintainer(t, store, &fakeRelations{}, sink)

	store.put(sweepDoc(TierShortTerm, 0.2, nil))
	store.put(sweepDoc(TierShortTerm, 0.3, nil))
	store.put(sweepDoc(TierLongTerm, 0.8, nil))
	store.put(sweepDoc(TierPermanent, 1.0, nil))

	if err := m.Sweep(context.Background(), "default", SweepStatistics); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}

	stats := sink.last(t)
	if stats.TierCounts[TierShortTerm] != 2 || stats.TierCounts[TierLongTerm] != 1 || stats.TierCounts[TierPermanent] != 1 {
		t.Errorf("tier counts = %v, want 2/1/1", stats.TierCounts)
	}
	// A statistics sweep never mutates.
	if store.count() != 4 {
		t.Errorf("store has %d documents after statistics sweep, want 4", store.count())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newFakeStore()
	cfg := testMaintenanceConfig()
	cfg.CleanupInterval = 10 * time.Millisecond

	matcher := newTestMatcher(t, &config.Config{})
	m := NewMaintainer(
		store, &fakeRelations{},
		NewScorer(testScoringConfig(), matcher),
		testClassifier(),
		newTestCalculator(),
		NewDeduper(testDedupConfig()),
		NewConsolidator(testConsolidationConfig()),
		&captureSink{},
		cfg,
		[]string{"default"},
		log.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

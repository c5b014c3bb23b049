package memory

import (
	"math"
	"testing"
	"time"

	"github.com/strata-ai/strata/internal/config"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Weights:        config.Weights{Semantic: 0.4, Recency: 0.3, Frequency: 0.2, Importance: 0.1},
		DecayConstant:  24 * time.Hour,
		MaxAccessCount: 100,
	}
}

func newTestScorer(t *testing.T, patterns []config.Pattern, triggers []config.Trigger) *Scorer {
	t.Helper()
	m := newTestMatcher(t, &config.Config{Patterns: patterns, Triggers: triggers})
	return NewScorer(testScoringConfig(), m)
}

func TestScorer_WeightedSum(t *testing.T) {
	s := newTestScorer(t, nil, nil)
	now := time.Now()

	doc := &Document{
		Content:     "plain note",
		Explicit:    0.5,
		AccessCount: 50,
		CreatedAt:   now, // recency = 1
	}

	b := s.Score(doc, 0.8, now)

	// 0.4*0.8 + 0.3*1.0 + 0.2*0.5 + 0.1*0.5 = 0.77
	want := 0.77
	if math.Abs(b.Raw-want) > 1e-9 {
		t.Errorf("Raw = %v, want %v", b.Raw, want)
	}
	if b.Combined != b.Raw {
		t.Errorf("Combined = %v, want Raw %v when nothing fires", b.Combined, b.Raw)
	}
}

func TestScorer_RecencyDecay(t *testing.T) {
	s := newTestScorer(t, nil, nil)
	now := time.Now()

	tests := []struct {
		name    string
		created time.Time
		want    float64
	}{
		{"just created", now, 1},
		{"one decay constant", now.Add(-24 * time.Hour), math.Exp(-1)},
		{"two decay constants", now.Add(-48 * time.Hour), math.Exp(-2)},
		{"created in the future", now.Add(time.Hour), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := s.Score(&Document{CreatedAt: tt.created}, 0, now)
			if math.Abs(b.Recency-tt.want) > 1e-9 {
				t.Errorf("Recency = %v, want %v", b.Recency, tt.want)
			}
		})
	}
}

func TestScorer_FrequencySaturates(t *testing.T) {
	s := newTestScorer(t, nil, nil)
	now := time.Now()

	tests := []struct {
		name   string
		access int64
		want   float64
	}{
		{"never accessed", 0, 0},
		{"half of max", 50, 0.5},
		{"at max", 100, 1},
		{"beyond max saturates", 5000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := s.Score(&Document{AccessCount: tt.access, CreatedAt: now}, 0, now)
			if b.Frequency != tt.want {
				t.Errorf("Frequency = %v, want %v", b.Frequency, tt.want)
			}
		})
	}
}

func TestScorer_CappedVsUncapped(t *testing.T) {
	s := newTestScorer(t,
		[]config.Pattern{{Name: "hot", Keywords: []string{"hot"}, Bonus: 0.6}},
		[]config.Trigger{{Name: "break", Keywords: []string{"breakthrough"}, Boost: 0.4}},
	)
	now := time.Now()

	doc := &Document{
		Content:   "hot breakthrough result",
		Explicit:  1,
		CreatedAt: now,
	}

	b := s.Score(doc, 1, now)

	// Raw = 0.4 + 0.3 + 0 + 0.1 = 0.8; Combined = 0.8 + 0.6 + 0.4 = 1.8.
	if math.Abs(b.Combined-1.8) > 1e-9 {
		t.Errorf("Combined = %v, want 1.8 (uncapped)", b.Combined)
	}
	if b.Capped() != 1 {
		t.Errorf("Capped() = %v, want 1", b.Capped())
	}
	if !b.TriggerFired {
		t.Error("TriggerFired = false, want true")
	}
}

func TestScorer_EmptyContent(t *testing.T) {
	s := newTestScorer(t,
		[]config.Pattern{{Name: "any", Keywords: []string{"x"}, Bonus: 0.5}},
		nil,
	)
	now := time.Now()

	// Degenerate input must not fail; semantic and domain terms are 0.
	b := s.Score(&Document{Content: "", CreatedAt: now}, 0, now)
	if b.DomainBonus != 0 || b.PermanenceBoost != 0 {
		t.Errorf("empty content fired patterns: bonus=%v boost=%v", b.DomainBonus, b.PermanenceBoost)
	}
	// Only recency contributes.
	if math.Abs(b.Combined-0.3) > 1e-9 {
		t.Errorf("Combined = %v, want 0.3", b.Combined)
	}
}

func TestScorer_SemanticClamped(t *testing.T) {
	s := newTestScorer(t, nil, nil)
	now := time.Now()

	b := s.Score(&Document{CreatedAt: now}, 1.7, now)
	if b.Semantic != 1 {
		t.Errorf("Semantic = %v, want clamped to 1", b.Semantic)
	}
	b = s.Score(&Document{CreatedAt: now}, -0.2, now)
	if b.Semantic != 0 {
		t.Errorf("Semantic = %v, want clamped to 0", b.Semantic)
	}
}

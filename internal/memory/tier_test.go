package memory

import (
	"testing"

	"github.com/strata-ai/strata/internal/config"
)

func testClassifier() *Classifier {
	return NewClassifier(config.ThresholdConfig{LongTerm: 0.7, Permanent: 0.95})
}

func TestClassify(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name string
		doc  Document
		b    Breakdown
		want Tier
	}{
		{
			name: "low score stays short term",
			doc:  Document{Tier: TierShortTerm},
			b:    Breakdown{Combined: 0.4},
			want: TierShortTerm,
		},
		{
			name: "long term threshold met",
			doc:  Document{Tier: TierShortTerm},
			b:    Breakdown{Combined: 0.7},
			want: TierLongTerm,
		},
		{
			name: "permanent threshold met",
			doc:  Document{Tier: TierShortTerm},
			b:    Breakdown{Combined: 0.95},
			want: TierPermanent,
		},
		{
			name: "permanent flag forces promotion",
			doc:  Document{Tier: TierShortTerm, Permanent: true},
			b:    Breakdown{Combined: 0.1},
			want: TierPermanent,
		},
		{
			name: "trigger fired forces promotion",
			doc:  Document{Tier: TierShortTerm},
			b:    Breakdown{Combined: 0.5, TriggerFired: true},
			want: TierPermanent,
		},
		{
			name: "uncapped combined crosses permanent threshold",
			// Base 0.6 plus a 0.4 trigger boost: uncapped 1.0 >= 0.95.
			doc:  Document{Tier: TierShortTerm},
			b:    Breakdown{Combined: 1.0, PermanenceBoost: 0.4, TriggerFired: true},
			want: TierPermanent,
		},
		{
			name: "long term never demoted by low score",
			doc:  Document{Tier: TierLongTerm},
			b:    Breakdown{Combined: 0.1},
			want: TierLongTerm,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(&tt.doc, tt.b); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_TerminalTiers(t *testing.T) {
	c := testClassifier()

	// Permanent and Consolidated never re-enter scoring transitions, even
	// with a zero score.
	for _, tier := range []Tier{TierPermanent, TierConsolidated} {
		doc := Document{Tier: tier}
		if got := c.Classify(&doc, Breakdown{Combined: 0}); got != tier {
			t.Errorf("Classify(%v doc) = %v, want unchanged", tier, got)
		}
	}
}

func TestClassify_CapAppliedToLongTermCheck(t *testing.T) {
	// Combined above 1 but below the permanent threshold cannot happen for
	// the capped comparison; verify the capped value is what gates LongTerm.
	c := NewClassifier(config.ThresholdConfig{LongTerm: 0.99, Permanent: 3.0})
	doc := Document{Tier: TierShortTerm}
	got := c.Classify(&doc, Breakdown{Combined: 2.5})
	if got != TierLongTerm {
		t.Errorf("Classify() = %v, want LongTerm (capped 1.0 >= 0.99)", got)
	}
}

package memory

import (
	"github.com/strata-ai/strata/internal/config"
)

// Classifier maps a scoring breakdown to a retention tier. It is a small
// promotion-biased state machine: documents move up, never down. Permanent
// and Consolidated are terminal and skip scoring transitions entirely.
type Classifier struct {
	thresholds config.ThresholdConfig
}

// NewClassifier creates a Classifier over validated thresholds.
func NewClassifier(thresholds config.ThresholdConfig) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify returns the tier for doc after a scoring event.
//
// Order of evaluation:
//  1. Terminal tiers are returned unchanged.
//  2. Permanent flag, uncapped combined score at or above the permanent
//     threshold, or a fired permanence trigger promote to Permanent. The
//     uncapped value is used here so a strong trigger can push a moderate
//     base score over the threshold in one step.
//  3. Capped combined score at or above the long-term threshold promotes
//     to LongTerm. A document already LongTerm stays LongTerm regardless
//     of the new score.
//  4. Otherwise the document remains ShortTerm.
func (c *Classifier) Classify(doc *Document, b Breakdown) Tier {
	if doc.Tier.Terminal() {
		return doc.Tier
	}

	if doc.Permanent || b.Combined >= c.thresholds.Permanent || b.TriggerFired {
		return TierPermanent
	}

	if b.Capped() >= c.thresholds.LongTerm || doc.Tier == TierLongTerm {
		return TierLongTerm
	}

	return TierShortTerm
}

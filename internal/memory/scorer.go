package memory

import (
	"math"
	"time"

	"github.com/strata-ai/strata/internal/config"
)

// Breakdown is the result of one scoring pass over a document.
type Breakdown struct {
	// Weighted input terms, each in [0,1].
	Semantic  float64
	Recency   float64
	Frequency float64
	Explicit  float64

	// Raw is the weighted sum of the four terms.
	Raw float64

	// DomainBonus and PermanenceBoost come from the pattern matcher and are
	// added on top of Raw.
	DomainBonus     float64
	PermanenceBoost float64

	// Combined is Raw + DomainBonus + PermanenceBoost, uncapped. The
	// permanent-threshold check reads this directly so a strong trigger can
	// promote a moderate base score in one step.
	Combined float64

	// TriggerFired records whether a permanence trigger matched.
	TriggerFired bool
}

// Capped returns the combined score clamped to [0,1], used for display and
// the long-term threshold comparison.
func (b Breakdown) Capped() float64 {
	if b.Combined > 1 {
		return 1
	}
	if b.Combined < 0 {
		return 0
	}
	return b.Combined
}

// Scorer combines semantic similarity, recency, access frequency, explicit
// importance, and domain pattern bonuses into a single score. The weights
// are assumed valid (the config loader enforces they sum to 1.0); the
// scorer never rechecks them.
type Scorer struct {
	cfg     config.ScoringConfig
	matcher *Matcher
}

// NewScorer creates a Scorer over validated configuration.
func NewScorer(cfg config.ScoringConfig, matcher *Matcher) *Scorer {
	return &Scorer{cfg: cfg, matcher: matcher}
}

// Score computes the full breakdown for doc at now. The semantic term comes
// from the embedding collaborator; callers pass 0 when it is unavailable.
// Empty content contributes nothing to the domain terms and never errors.
func (s *Scorer) Score(doc *Document, semantic float64, now time.Time) Breakdown {
	b := Breakdown{
		Semantic:  clamp01(semantic),
		Recency:   s.recency(doc.CreatedAt, now),
		Frequency: s.frequency(doc.AccessCount),
		Explicit:  clamp01(doc.Explicit),
	}

	w := s.cfg.Weights
	b.Raw = w.Semantic*b.Semantic +
		w.Recency*b.Recency +
		w.Frequency*b.Frequency +
		w.Importance*b.Explicit

	match := s.matcher.Match(doc.Content)
	b.DomainBonus = match.DomainBonus
	b.PermanenceBoost = match.PermanenceBoost
	b.TriggerFired = match.TriggerFired()

	b.Combined = b.Raw + b.DomainBonus + b.PermanenceBoost
	return b
}

// recency decays exponentially with time since creation.
func (s *Scorer) recency(createdAt, now time.Time) float64 {
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 1
	}
	return math.Exp(-float64(elapsed) / float64(s.cfg.DecayConstant))
}

// frequency is the access count normalized against the configured maximum,
// saturating at 1.
func (s *Scorer) frequency(accessCount int64) float64 {
	if accessCount <= 0 {
		return 0
	}
	f := float64(accessCount) / float64(s.cfg.MaxAccessCount)
	if f > 1 {
		return 1
	}
	return f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

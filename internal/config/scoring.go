package config

import "time"

// Weights are the multi-factor importance weights. The loader guarantees
// they are each in [0,1] and sum to 1.0 within WeightEpsilon; the scoring
// core assumes this invariant and does not re-check it.
type Weights struct {
	Semantic   float64 `mapstructure:"semantic"`
	Recency    float64 `mapstructure:"recency"`
	Frequency  float64 `mapstructure:"frequency"`
	Importance float64 `mapstructure:"importance"`
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Semantic + w.Recency + w.Frequency + w.Importance
}

// ScoringConfig tunes the importance scorer.
type ScoringConfig struct {
	Weights Weights `mapstructure:"weights"`

	// DecayConstant is the time constant of the recency term:
	// recency = exp(-elapsed/DecayConstant).
	DecayConstant time.Duration `mapstructure:"decay_constant"`

	// MaxAccessCount saturates the frequency term:
	// frequency = min(access_count/MaxAccessCount, 1).
	MaxAccessCount int64 `mapstructure:"max_access_count"`
}

// ThresholdConfig holds the tier promotion thresholds.
//
// LongTerm is compared against the capped combined score; Permanent is
// compared against the UNCAPPED combined score so a strong permanence
// trigger can promote a moderate base score in one step.
type ThresholdConfig struct {
	LongTerm  float64 `mapstructure:"long_term"`
	Permanent float64 `mapstructure:"permanent"`
}

// TTLBucket is the base expiry and jitter for one access-frequency bucket.
type TTLBucket struct {
	Base   time.Duration `mapstructure:"base"`
	Jitter time.Duration `mapstructure:"jitter"`
}

// TTLConfig maps access-frequency buckets to expiry windows.
//
// The bucket is chosen from time since last access: under HighMaxIdle a
// document is "high" (hot content slides its short TTL on every access),
// under MediumMaxIdle "medium", under LowMaxIdle "low", otherwise "static".
type TTLConfig struct {
	High   TTLBucket `mapstructure:"high"`
	Medium TTLBucket `mapstructure:"medium"`
	Low    TTLBucket `mapstructure:"low"`
	Static TTLBucket `mapstructure:"static"`

	HighMaxIdle   time.Duration `mapstructure:"high_max_idle"`
	MediumMaxIdle time.Duration `mapstructure:"medium_max_idle"`
	LowMaxIdle    time.Duration `mapstructure:"low_max_idle"`

	// LongTermMultiplier scales base+jitter for long-term documents, which
	// earn a wider expiry window than short-term ones in the same bucket.
	LongTermMultiplier float64 `mapstructure:"long_term_multiplier"`
}

// AgingConfig tunes lazy score decay during maintenance.
type AgingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// DecayRate is the per-day decay applied to stored scores:
	// score' = max(MinScore, score*(1-DecayRate)^elapsedDays).
	DecayRate float64 `mapstructure:"decay_rate"`

	// MinScore is the floor an aged score never drops below.
	MinScore float64 `mapstructure:"min_score"`

	// RefreshThresholdDays is how stale last_aged_at must be before a
	// document is re-aged. Aging is lazy: applied during sweeps only.
	RefreshThresholdDays float64 `mapstructure:"refresh_threshold_days"`
}

// DedupConfig tunes the deduplication engine.
type DedupConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// DefaultThreshold applies to content types without an explicit entry.
	DefaultThreshold float64 `mapstructure:"default_threshold"`

	// Thresholds maps content type (prose, code, data, doc) to the cosine
	// similarity required for a merge candidate. Code varies more than
	// prose, so it gets a lower threshold.
	Thresholds map[string]float64 `mapstructure:"thresholds"`

	// MinImportanceDiff is a hard precondition: documents whose importance
	// differs by more than this are never merge candidates.
	MinImportanceDiff float64 `mapstructure:"min_importance_diff"`
}

// ThresholdFor returns the similarity threshold for a content type.
func (d DedupConfig) ThresholdFor(contentType string) float64 {
	if t, ok := d.Thresholds[contentType]; ok {
		return t
	}
	return d.DefaultThreshold
}

// ConsolidationConfig tunes grouping of related documents into one
// consolidated summary.
type ConsolidationConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// SizeThreshold is the ShortTerm+LongTerm population a collection must
	// exceed before consolidation runs.
	SizeThreshold int `mapstructure:"size_threshold"`

	// GroupSimilarity is the cosine similarity for grouping related
	// documents, deliberately looser than dedup thresholds.
	GroupSimilarity float64 `mapstructure:"group_similarity"`

	// MaxGroupSize bounds how many documents collapse into one summary.
	MaxGroupSize int `mapstructure:"max_group_size"`

	// MaxSummaryBytes caps the concatenated summary content.
	MaxSummaryBytes int `mapstructure:"max_summary_bytes"`
}

// MaintenanceConfig holds the sweep schedule.
type MaintenanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// CleanupInterval schedules expire + age sweeps.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// ConsolidationInterval schedules dedup + consolidation sweeps.
	ConsolidationInterval time.Duration `mapstructure:"consolidation_interval"`

	// StatisticsInterval schedules statistics publication.
	StatisticsInterval time.Duration `mapstructure:"statistics_interval"`

	// DeepInterval schedules full sweeps (all phases).
	DeepInterval time.Duration `mapstructure:"deep_interval"`

	// DocsPerSecond throttles per-document store operations during sweeps
	// so background maintenance cannot starve foreground ingestion.
	DocsPerSecond float64 `mapstructure:"docs_per_second"`
}

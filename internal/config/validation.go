package config

import (
	"fmt"
	"math"
	"regexp"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// 2. Embedder configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Scoring weights: each in [0,1], sum to 1.0 within WeightEpsilon.
	// The scoring core assumes this and never rechecks it.
	w := c.Scoring.Weights
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"semantic", w.Semantic},
		{"recency", w.Recency},
		{"frequency", w.Frequency},
		{"importance", w.Importance},
	} {
		if v.value < 0 || v.value > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalidWeights, v.name, v.value)
		}
	}
	if diff := math.Abs(w.Sum() - 1.0); diff > WeightEpsilon {
		return fmt.Errorf("%w: weights must sum to 1.0, got %v", ErrInvalidWeights, w.Sum())
	}
	if c.Scoring.DecayConstant <= 0 {
		return fmt.Errorf("%w: decay_constant must be positive, got %v", ErrInvalidWeights, c.Scoring.DecayConstant)
	}
	if c.Scoring.MaxAccessCount <= 0 {
		return fmt.Errorf("%w: max_access_count must be positive, got %d", ErrInvalidWeights, c.Scoring.MaxAccessCount)
	}

	// 4. Tier thresholds: both in (0,1], long_term strictly below permanent.
	if c.Thresholds.LongTerm <= 0 || c.Thresholds.LongTerm > 1 {
		return fmt.Errorf("%w: long_term must be in (0,1], got %v", ErrInvalidThreshold, c.Thresholds.LongTerm)
	}
	if c.Thresholds.Permanent <= 0 || c.Thresholds.Permanent > 1 {
		return fmt.Errorf("%w: permanent must be in (0,1], got %v", ErrInvalidThreshold, c.Thresholds.Permanent)
	}
	if c.Thresholds.LongTerm >= c.Thresholds.Permanent {
		return fmt.Errorf("%w: long_term (%v) must be below permanent (%v)",
			ErrInvalidThreshold, c.Thresholds.LongTerm, c.Thresholds.Permanent)
	}

	// 5. TTL buckets
	for _, b := range []struct {
		name   string
		bucket TTLBucket
	}{
		{"high", c.TTL.High},
		{"medium", c.TTL.Medium},
		{"low", c.TTL.Low},
		{"static", c.TTL.Static},
	} {
		if b.bucket.Base <= 0 {
			return fmt.Errorf("%w: %s base must be positive, got %v", ErrInvalidTTL, b.name, b.bucket.Base)
		}
		if b.bucket.Jitter < 0 || b.bucket.Jitter >= b.bucket.Base {
			return fmt.Errorf("%w: %s jitter must be in [0, base), got %v", ErrInvalidTTL, b.name, b.bucket.Jitter)
		}
	}
	if c.TTL.HighMaxIdle <= 0 || c.TTL.MediumMaxIdle <= c.TTL.HighMaxIdle || c.TTL.LowMaxIdle <= c.TTL.MediumMaxIdle {
		return fmt.Errorf("%w: idle thresholds must be positive and strictly increasing", ErrInvalidTTL)
	}
	if c.TTL.LongTermMultiplier < 1 {
		return fmt.Errorf("%w: long_term_multiplier must be >= 1, got %v", ErrInvalidTTL, c.TTL.LongTermMultiplier)
	}

	// 6. Aging
	if c.Aging.DecayRate < 0 || c.Aging.DecayRate >= 1 {
		return fmt.Errorf("%w: decay_rate must be in [0,1), got %v", ErrInvalidAging, c.Aging.DecayRate)
	}
	if c.Aging.MinScore < 0 || c.Aging.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0,1], got %v", ErrInvalidAging, c.Aging.MinScore)
	}
	if c.Aging.RefreshThresholdDays <= 0 {
		return fmt.Errorf("%w: refresh_threshold_days must be positive, got %v", ErrInvalidAging, c.Aging.RefreshThresholdDays)
	}

	// 7. Dedup
	if c.Dedup.DefaultThreshold <= 0 || c.Dedup.DefaultThreshold > 1 {
		return fmt.Errorf("%w: default_threshold must be in (0,1], got %v", ErrInvalidDedup, c.Dedup.DefaultThreshold)
	}
	for ct, t := range c.Dedup.Thresholds {
		if t <= 0 || t > 1 {
			return fmt.Errorf("%w: threshold for %q must be in (0,1], got %v", ErrInvalidDedup, ct, t)
		}
	}
	if c.Dedup.MinImportanceDiff < 0 || c.Dedup.MinImportanceDiff > 1 {
		return fmt.Errorf("%w: min_importance_diff must be in [0,1], got %v", ErrInvalidDedup, c.Dedup.MinImportanceDiff)
	}

	// 8. Consolidation
	if c.Consolidation.SizeThreshold < 1 {
		return fmt.Errorf("%w: size_threshold must be >= 1, got %d", ErrInvalidConsolidation, c.Consolidation.SizeThreshold)
	}
	if c.Consolidation.GroupSimilarity <= 0 || c.Consolidation.GroupSimilarity > 1 {
		return fmt.Errorf("%w: group_similarity must be in (0,1], got %v", ErrInvalidConsolidation, c.Consolidation.GroupSimilarity)
	}
	if c.Consolidation.MaxGroupSize < 2 {
		return fmt.Errorf("%w: max_group_size must be >= 2, got %d", ErrInvalidConsolidation, c.Consolidation.MaxGroupSize)
	}
	if c.Consolidation.MaxSummaryBytes < 1 {
		return fmt.Errorf("%w: max_summary_bytes must be >= 1, got %d", ErrInvalidConsolidation, c.Consolidation.MaxSummaryBytes)
	}

	// 9. Maintenance intervals
	if c.Maintenance.CleanupInterval <= 0 {
		return fmt.Errorf("%w: cleanup_interval must be positive", ErrInvalidInterval)
	}
	if c.Maintenance.ConsolidationInterval <= 0 {
		return fmt.Errorf("%w: consolidation_interval must be positive", ErrInvalidInterval)
	}
	if c.Maintenance.StatisticsInterval <= 0 {
		return fmt.Errorf("%w: statistics_interval must be positive", ErrInvalidInterval)
	}
	if c.Maintenance.DeepInterval <= 0 {
		return fmt.Errorf("%w: deep_interval must be positive", ErrInvalidInterval)
	}
	if c.Maintenance.DocsPerSecond <= 0 {
		return fmt.Errorf("%w: docs_per_second must be positive, got %v", ErrInvalidInterval, c.Maintenance.DocsPerSecond)
	}

	// 10. Patterns and triggers: explicit tagged records, validated once
	// here so the matcher never sees an invalid regexp or mode.
	validModes := []string{MatchAny, MatchAll, MatchWeighted}
	for _, p := range c.Patterns {
		if p.Name == "" {
			return fmt.Errorf("%w: pattern name cannot be empty", ErrInvalidPattern)
		}
		if len(p.Keywords) == 0 && len(p.Regexps) == 0 {
			return fmt.Errorf("%w: pattern %q has no keywords or regexps", ErrInvalidPattern, p.Name)
		}
		if p.Bonus < 0 || p.Bonus > 1 {
			return fmt.Errorf("%w: pattern %q bonus must be in [0,1], got %v", ErrInvalidPattern, p.Name, p.Bonus)
		}
		mode := p.Mode
		if mode == "" {
			mode = MatchAny
		}
		if !slices.Contains(validModes, mode) {
			return fmt.Errorf("%w: pattern %q has unknown mode %q", ErrInvalidPattern, p.Name, p.Mode)
		}
		if mode == MatchWeighted && len(p.Weights) == 0 {
			return fmt.Errorf("%w: pattern %q is weighted but has no weights", ErrInvalidPattern, p.Name)
		}
		for _, expr := range p.Regexps {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("%w: pattern %q regexp %q: %v", ErrInvalidPattern, p.Name, expr, err)
			}
		}
	}
	for _, t := range c.Triggers {
		if t.Name == "" {
			return fmt.Errorf("%w: trigger name cannot be empty", ErrInvalidPattern)
		}
		if len(t.Keywords) == 0 && len(t.Regexps) == 0 {
			return fmt.Errorf("%w: trigger %q has no keywords or regexps", ErrInvalidPattern, t.Name)
		}
		if t.Boost < 0 || t.Boost > 1 {
			return fmt.Errorf("%w: trigger %q boost must be in [0,1], got %v", ErrInvalidPattern, t.Name, t.Boost)
		}
		for _, expr := range t.Regexps {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("%w: trigger %q regexp %q: %v", ErrInvalidPattern, t.Name, expr, err)
			}
		}
	}

	return nil
}

package memory

import (
	"context"
	"log/slog"
	"time"
)

// SweepStats are the counters published after each maintenance sweep.
type SweepStats struct {
	Collection string
	Kind       string

	Expired      int
	Aged         int
	Merged       int
	Promoted     int
	Consolidated int
	Skipped      int

	TierCounts map[Tier]int
	Duration   time.Duration
}

// Sink receives per-sweep statistics for external reporting. Maintenance
// errors are never user-visible; the sink is how they are observed.
type Sink interface {
	Publish(ctx context.Context, stats SweepStats)
}

// LogSink publishes sweep statistics as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a Sink backed by the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish logs one sweep's counters.
func (s *LogSink) Publish(ctx context.Context, stats SweepStats) {
	s.logger.InfoContext(ctx, "sweep completed",
		"collection", stats.Collection,
		"kind", stats.Kind,
		"expired", stats.Expired,
		"aged", stats.Aged,
		"merged", stats.Merged,
		"promoted", stats.Promoted,
		"consolidated", stats.Consolidated,
		"skipped", stats.Skipped,
		"short_term", stats.TierCounts[TierShortTerm],
		"long_term", stats.TierCounts[TierLongTerm],
		"permanent", stats.TierCounts[TierPermanent],
		"consolidated_tier", stats.TierCounts[TierConsolidated],
		"duration", stats.Duration,
	)
}

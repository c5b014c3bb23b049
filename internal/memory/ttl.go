package memory

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/strata-ai/strata/internal/config"
)

// Frequency buckets, chosen by time since last access.
type bucket int

const (
	bucketHigh bucket = iota
	bucketMedium
	bucketLow
	bucketStatic
)

// Calculator computes jittered TTL expiry and applies lazy score aging.
// Jitter desynchronizes mass expiry of documents ingested together.
type Calculator struct {
	ttl   config.TTLConfig
	aging config.AgingConfig

	// randFn returns a uniform value in [0,1). Replaced in tests.
	randFn func() float64
}

// NewCalculator creates a Calculator over validated configuration.
func NewCalculator(ttl config.TTLConfig, aging config.AgingConfig) *Calculator {
	return &Calculator{ttl: ttl, aging: aging, randFn: rand.Float64}
}

// bucketFor picks the frequency bucket from the document's idle time.
// Recently accessed documents land in the high bucket and get short sliding
// TTLs; untouched documents drift toward static.
func (c *Calculator) bucketFor(doc *Document, now time.Time) bucket {
	last := doc.LastAccessedAt
	if last.IsZero() {
		last = doc.CreatedAt
	}
	idle := now.Sub(last)

	switch {
	case idle < c.ttl.HighMaxIdle:
		return bucketHigh
	case idle < c.ttl.MediumMaxIdle:
		return bucketMedium
	case idle < c.ttl.LowMaxIdle:
		return bucketLow
	default:
		return bucketStatic
	}
}

func (c *Calculator) bucketConfig(b bucket) config.TTLBucket {
	switch b {
	case bucketHigh:
		return c.ttl.High
	case bucketMedium:
		return c.ttl.Medium
	case bucketLow:
		return c.ttl.Low
	default:
		return c.ttl.Static
	}
}

// Expiry computes the TTL expiry for doc at now:
//
//	expiry = now + base(bucket) + uniform(-jitter, +jitter)
//
// LongTerm documents get the base scaled by the configured multiplier.
// Permanent and Consolidated documents never receive a TTL; Expiry returns
// nil for them. Recomputed on every access and every rescore, so the
// expiration window slides.
func (c *Calculator) Expiry(doc *Document, now time.Time) *time.Time {
	if doc.Tier.Terminal() || doc.Permanent {
		return nil
	}

	bc := c.bucketConfig(c.bucketFor(doc, now))
	base := bc.Base
	if doc.Tier == TierLongTerm {
		base = time.Duration(float64(base) * c.ttl.LongTermMultiplier)
	}

	// uniform in (-jitter, +jitter)
	jitter := time.Duration((c.randFn()*2 - 1) * float64(bc.Jitter))
	expiry := now.Add(base + jitter)
	return &expiry
}

// Age applies lazy aging to doc at now and reports whether it changed
// anything. Aging runs during maintenance sweeps, not continuously: when
// enough days have passed since the last pass, the stored importance decays
// exponentially toward the configured floor and LastAgedAt advances.
// Terminal tiers never age, and aging never changes a tier on its own.
func (c *Calculator) Age(doc *Document, now time.Time) bool {
	if !c.aging.Enabled || doc.Tier.Terminal() || doc.Permanent {
		return false
	}

	last := doc.LastAgedAt
	if last.IsZero() {
		last = doc.CreatedAt
	}

	elapsed := now.Sub(last)
	threshold := time.Duration(c.aging.RefreshThresholdDays) * 24 * time.Hour
	if elapsed < threshold {
		return false
	}

	days := elapsed.Hours() / 24
	aged := doc.Importance * math.Pow(1-c.aging.DecayRate, days)
	if aged < c.aging.MinScore {
		aged = c.aging.MinScore
	}

	doc.Importance = aged
	doc.LastAgedAt = now
	return true
}

// Package memory implements the retention-tiering core: domain pattern
// matching, multi-factor importance scoring, tier classification, jittered
// TTL with lazy aging, connected-components deduplication, consolidation,
// and the background lifecycle maintainer that orchestrates them.
//
// Data flow on ingestion:
//
//	content → Matcher + Scorer → Classify → TTL → store.Upsert
//
// Independently, the Maintainer wakes on per-category timers, snapshots a
// collection from the store, and runs expire → age → dedup → consolidate →
// publish statistics, recording merge lineage through the relation tracker.
//
// All components take their configuration as an immutable value at
// construction time. No package-level state; multiple collections can run
// with different configurations in the same process.
package memory

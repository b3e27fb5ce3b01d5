// Package store provides SQLite-backed durable storage for split runs and
// the segments they produce.
//
// The store holds:
//   - Runs: one row per split or compaction run, with its outcome
//   - Segments: one row per persisted sub-stream, keyed by body digest
//
// # Critical Patterns
//
// Content-Addressed Segments
//   - A segment's ID is the BLAKE3 digest of its uncompressed body
//   - Writes use ON CONFLICT(id) DO NOTHING, so rewriting identical
//     content is a no-op
//
// Logical Time
//   - Segments carry the arrival seq range of their fragments, never
//     timestamps
//   - A new run continues seq numbering from MaxSeq, so merged segments
//     can always be re-sorted into arrival order
//
// Deterministic Query Results
//   - Listings order by component, key, min_seq, then id COLLATE BINARY
//
// Atomic Compaction
//   - ReplaceSegments writes merged output and deletes its inputs in one
//     transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - A single connection: consumer goroutines queue for it
package store

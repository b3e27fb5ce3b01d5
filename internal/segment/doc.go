// Package segment turns one key's sub-stream into a persisted unit.
//
// A Segment holds every fragment the splitter routed to a single routing
// value, encoded as a CBOR sequence (Core Deterministic Encoding, so equal
// fragments always produce equal bytes) and then compressed. The BLAKE3
// digest of the uncompressed body is the segment's identity; Decode
// verifies it before returning any fragment.
//
// Segments also carry the metadata compaction needs without decoding the
// body: first and last partition key, partition, fragment and tombstone
// counts, and the arrival seq range.
package segment

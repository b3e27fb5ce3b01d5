// Package ir provides the record model shared by every pksplit package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Key components and cell values are opaque byte sequences; ir never
//     interprets them
//   - Schema component names are compared after NFC normalisation
//   - Ordering uses the logical arrival seq stamped on fragments, never
//     wall-clock time
//   - Canonical JSON (RFC 8785) is the only serialisation used for
//     identity and golden traces
package ir

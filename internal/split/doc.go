// Package split implements the partition-key stream demultiplexer.
//
// A Splitter consumes one ordered stream of partition fragments and fans it
// out into one sub-stream per value of a designated partition-key component.
// Each sub-stream is drained by its own consumer goroutine.
//
// ARCHITECTURE:
//
// Single-Owner Router:
// One goroutine pulls fragments from the Source and routes them. It alone
// touches the key-to-sub-stream map and the active-key cursor, so neither
// needs a lock. Consumers only ever see the read side of their own stream.
//
// Fragment Flow:
// 1. Source.Next yields the next fragment (io.EOF at the end)
// 2. The router stamps it with a logical seq
// 3. partition_start: extract the routing value, move the cursor, create
//    the sub-stream on first sight
// 4. every other kind: route via the cursor
// 5. push blocks while the sub-stream's bounded buffer is full
//
// Completion:
// At end of input every sub-stream ever created is finished and awaited in
// parallel. All consumers are awaited even when some fail; the first
// observed failure is reported. On source failure, protocol violation or
// cancellation the sub-streams are aborted instead of finished, still
// awaited, and the original failure is returned.
//
// INVARIANTS:
//   - exactly one sub-stream per distinct routing value per run
//   - per-key order equals arrival order; no order across keys
//   - no consumer goroutine outlives Run
//   - every permit lease is released when its consumer returns
package split

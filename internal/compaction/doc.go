// Package compaction groups persisted segments by one partition-key
// component and rewrites them.
//
// The splitter guarantees one routing value per segment. Strategy.Plan
// checks that guarantee on stored data: a segment whose first and last
// partitions carry different values is resplit. Segments of the same value
// are merged once any of them holds a range tombstone (rows it shadows are
// dropped) or once there are enough of them.
//
// Every job replaces its inputs in a single store transaction.
package compaction

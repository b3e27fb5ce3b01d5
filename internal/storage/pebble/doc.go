// Package pebblestore is an alternative sink that stores sub-streams
// fragment by fragment in Pebble instead of packing them into segments.
//
// Each sub-stream is staged in one batch and committed when the stream ends,
// so a key's fragments become visible all at once or not at all. Fragments
// are keyed by routing value and arrival seq, so ReadFragments returns them
// in arrival order.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	err = split.SplitByKeyComponent(ctx, src, db.FragmentSink(), "object_id")
//	frags, _ := db.ReadFragments([]byte("obj-1"))
package pebblestore

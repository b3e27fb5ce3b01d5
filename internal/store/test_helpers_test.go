package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun records a running split run.
func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.BeginRun(context.Background(), id, RunKindSplit, testutil.ObjectSchema(), "object_id"); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
}

// createTestSegment encodes one partition per object with stamped seqs
// starting at seq. All partitions share the routing value key.
func createTestSegment(t *testing.T, key string, seq int64, partitions int) *segment.Segment {
	t.Helper()
	var frags []ir.Fragment
	for i := 0; i < partitions; i++ {
		frags = append(frags, testutil.ObjectPartition("bkt", key, 2)...)
	}
	for i := range frags {
		frags[i].Seq = seq + int64(i)
	}
	seg, err := segment.Encode("object_id", []byte(key), frags, segment.CompressionZstd)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	return seg
}

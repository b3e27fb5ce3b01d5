package compaction

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/roach88/pksplit/internal/ir"
)

// mergeFragments orders the fragments of several segments by arrival seq
// and drops clustered rows shadowed by a later range tombstone of the same
// partition. Partitions stay contiguous because every partition arrived
// contiguously. Returns the merged fragments and the number of rows dropped.
func mergeFragments(inputs ...[]ir.Fragment) ([]ir.Fragment, int) {
	var all []ir.Fragment
	for _, in := range inputs {
		all = append(all, in...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })

	type tombstone struct {
		r   *ir.Range
		seq int64
	}
	tombstones := make(map[string][]tombstone)
	var pk string
	for _, f := range all {
		switch f.Kind {
		case ir.KindPartitionStart:
			pk = partitionID(f.Key)
		case ir.KindRangeTombstone:
			tombstones[pk] = append(tombstones[pk], tombstone{r: f.Range, seq: f.Seq})
		}
	}
	if len(tombstones) == 0 {
		return all, 0
	}

	out := all[:0]
	dropped := 0
	for _, f := range all {
		if f.Kind == ir.KindPartitionStart {
			pk = partitionID(f.Key)
		}
		if f.Kind == ir.KindClusteringRow {
			shadowed := false
			for _, t := range tombstones[pk] {
				if t.seq > f.Seq && covers(t.r, f.Clustering) {
					shadowed = true
					break
				}
			}
			if shadowed {
				dropped++
				continue
			}
		}
		out = append(out, f)
	}
	return out, dropped
}

// partitionID is a collision-free map key for a full partition key.
func partitionID(key ir.PartitionKey) string {
	var b []byte
	for _, c := range key {
		b = binary.BigEndian.AppendUint32(b, uint32(len(c)))
		b = append(b, c...)
	}
	return string(b)
}

// covers reports whether clustering lies in [r.Start, r.End]. Bounds are
// prefixes: a shorter bound matches every clustering that extends it.
func covers(r *ir.Range, clustering [][]byte) bool {
	if r == nil {
		return false
	}
	return compareClustering(clustering, r.Start) >= 0 && compareClustering(clustering, r.End) <= 0
}

// compareClustering compares c against bound component by component,
// looking at no more components than bound has.
func compareClustering(c, bound [][]byte) int {
	for i := range bound {
		if i >= len(c) {
			return -1
		}
		if n := bytes.Compare(c[i], bound[i]); n != 0 {
			return n
		}
	}
	return 0
}

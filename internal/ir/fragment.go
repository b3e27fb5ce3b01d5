package ir

import (
	"bytes"
	"fmt"
)

// FragmentKind distinguishes the fragment variants of a partition stream.
type FragmentKind uint8

const (
	// KindPartitionStart opens a partition and carries its full key.
	KindPartitionStart FragmentKind = iota + 1
	// KindStaticRow carries the partition's static cells.
	KindStaticRow
	// KindClusteringRow carries one clustered row.
	KindClusteringRow
	// KindRangeTombstone marks a deleted clustering range.
	KindRangeTombstone
	// KindPartitionEnd closes the partition opened by the last start.
	KindPartitionEnd
)

// String returns the snake_case name used in traces and CLI output.
func (k FragmentKind) String() string {
	switch k {
	case KindPartitionStart:
		return "partition_start"
	case KindStaticRow:
		return "static_row"
	case KindClusteringRow:
		return "clustering_row"
	case KindRangeTombstone:
		return "range_tombstone"
	case KindPartitionEnd:
		return "partition_end"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the defined kinds.
func (k FragmentKind) Valid() bool {
	return k >= KindPartitionStart && k <= KindPartitionEnd
}

// PartitionKey is the ordered tuple of key component values, one per
// schema partition-key column.
type PartitionKey [][]byte

// NewPartitionKey builds a key from string components.
func NewPartitionKey(components ...string) PartitionKey {
	pk := make(PartitionKey, len(components))
	for i, c := range components {
		pk[i] = []byte(c)
	}
	return pk
}

// Component returns the value at index i, or false if the key is too short.
func (pk PartitionKey) Component(i int) ([]byte, bool) {
	if i < 0 || i >= len(pk) {
		return nil, false
	}
	return pk[i], true
}

// Equal reports whether both keys have identical components.
func (pk PartitionKey) Equal(other PartitionKey) bool {
	if len(pk) != len(other) {
		return false
	}
	for i := range pk {
		if !bytes.Equal(pk[i], other[i]) {
			return false
		}
	}
	return true
}

// Strings renders each component as a string (for traces and output).
func (pk PartitionKey) Strings() []string {
	out := make([]string, len(pk))
	for i, c := range pk {
		out[i] = string(c)
	}
	return out
}

// Cell is one named cell value of a row.
type Cell struct {
	Name  string `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// Range is a clustering range [Start, End] covered by a tombstone.
type Range struct {
	Start [][]byte `cbor:"1,keyasint"`
	End   [][]byte `cbor:"2,keyasint"`
}

// Fragment is one element of a partition stream.
//
// Only the fields relevant to Kind are populated:
//   - KindPartitionStart: Key
//   - KindStaticRow: Cells
//   - KindClusteringRow: Clustering, Cells
//   - KindRangeTombstone: Range
//   - KindPartitionEnd: nothing
//
// Seq is the logical arrival position assigned when the fragment enters the
// splitter. It is zero until then.
type Fragment struct {
	Kind       FragmentKind `cbor:"1,keyasint"`
	Seq        int64        `cbor:"2,keyasint,omitempty"`
	Key        PartitionKey `cbor:"3,keyasint,omitempty"`
	Clustering [][]byte     `cbor:"4,keyasint,omitempty"`
	Cells      []Cell       `cbor:"5,keyasint,omitempty"`
	Range      *Range       `cbor:"6,keyasint,omitempty"`
}

// PartitionStart builds a partition-start fragment.
func PartitionStart(key PartitionKey) Fragment {
	return Fragment{Kind: KindPartitionStart, Key: key}
}

// StaticRow builds a static-row fragment.
func StaticRow(cells ...Cell) Fragment {
	return Fragment{Kind: KindStaticRow, Cells: cells}
}

// ClusteringRow builds a clustered-row fragment.
func ClusteringRow(clustering [][]byte, cells ...Cell) Fragment {
	return Fragment{Kind: KindClusteringRow, Clustering: clustering, Cells: cells}
}

// RangeTombstone builds a range-tombstone fragment.
func RangeTombstone(start, end [][]byte) Fragment {
	return Fragment{Kind: KindRangeTombstone, Range: &Range{Start: start, End: end}}
}

// PartitionEnd builds a partition-end fragment.
func PartitionEnd() Fragment {
	return Fragment{Kind: KindPartitionEnd}
}

// Validate checks that the populated fields match Kind.
func (f Fragment) Validate() error {
	switch f.Kind {
	case KindPartitionStart:
		if len(f.Key) == 0 {
			return fmt.Errorf("partition_start without key")
		}
	case KindRangeTombstone:
		if f.Range == nil {
			return fmt.Errorf("range_tombstone without range")
		}
	case KindStaticRow, KindClusteringRow, KindPartitionEnd:
	default:
		return fmt.Errorf("unknown fragment kind %d", uint8(f.Kind))
	}
	return nil
}

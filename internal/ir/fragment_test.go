package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentKind_String(t *testing.T) {
	tests := []struct {
		kind FragmentKind
		want string
	}{
		{KindPartitionStart, "partition_start"},
		{KindStaticRow, "static_row"},
		{KindClusteringRow, "clustering_row"},
		{KindRangeTombstone, "range_tombstone"},
		{KindPartitionEnd, "partition_end"},
		{FragmentKind(0), "unknown(0)"},
		{FragmentKind(42), "unknown(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestPartitionKey_Component(t *testing.T) {
	pk := NewPartitionKey("bucket-a", "obj-1")

	c, ok := pk.Component(1)
	require.True(t, ok)
	assert.Equal(t, []byte("obj-1"), c)

	_, ok = pk.Component(2)
	assert.False(t, ok)
	_, ok = pk.Component(-1)
	assert.False(t, ok)
}

func TestPartitionKey_Equal(t *testing.T) {
	assert.True(t, NewPartitionKey("a", "b").Equal(NewPartitionKey("a", "b")))
	assert.False(t, NewPartitionKey("a", "b").Equal(NewPartitionKey("a", "c")))
	assert.False(t, NewPartitionKey("a").Equal(NewPartitionKey("a", "b")))
}

func TestFragment_Validate(t *testing.T) {
	valid := []Fragment{
		PartitionStart(NewPartitionKey("a")),
		StaticRow(Cell{Name: "owner", Value: []byte("x")}),
		ClusteringRow([][]byte{[]byte("0")}, Cell{Name: "data", Value: []byte("d")}),
		RangeTombstone([][]byte{[]byte("0")}, [][]byte{[]byte("9")}),
		PartitionEnd(),
	}
	for _, f := range valid {
		assert.NoError(t, f.Validate(), f.Kind.String())
	}

	assert.Error(t, Fragment{Kind: KindPartitionStart}.Validate())
	assert.Error(t, Fragment{Kind: KindRangeTombstone}.Validate())
	assert.Error(t, Fragment{Kind: FragmentKind(9)}.Validate())
}

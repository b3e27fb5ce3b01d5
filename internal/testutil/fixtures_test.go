package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

func TestObjectPartition_Shape(t *testing.T) {
	fs := ObjectPartition("b", "o", 2)
	require.Len(t, fs, 5)
	assert.Equal(t, ir.KindPartitionStart, fs[0].Kind)
	assert.Equal(t, ir.KindStaticRow, fs[1].Kind)
	assert.Equal(t, ir.KindClusteringRow, fs[2].Kind)
	assert.Equal(t, ir.KindPartitionEnd, fs[4].Kind)
	assert.Equal(t, []byte("0001"), fs[3].Clustering[0])
	require.NoError(t, ObjectSchema().Validate())
}

func TestCollector_RecordsPerKey(t *testing.T) {
	c := NewCollector()
	src := split.NewSliceSource(ObjectSchema(), nil, Objects("b", 1, "x", "y", "x")...)
	require.NoError(t, split.SplitByKeyComponent(context.Background(), src, c.Consume, "object_id",
		split.WithLogger(QuietLogger())))

	assert.Equal(t, []string{"x", "y"}, c.Keys())
	assert.Len(t, c.Fragments("x"), 8)
	assert.Len(t, c.Fragments("y"), 4)
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/split"
	"github.com/roach88/pksplit/internal/testutil"
)

func newTestBuilder(t *testing.T) *segment.Builder {
	t.Helper()
	b, err := segment.NewBuilder(testutil.ObjectSchema(), "object_id")
	require.NoError(t, err)
	return b
}

func TestSplit_WritesOneSegmentPerKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	src := split.NewSliceSource(testutil.ObjectSchema(), nil, testutil.Objects("bkt", 2, "A", "B", "A", "C")...)
	stats, err := s.Split(ctx, "run-1", src, newTestBuilder(t), split.WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Streams)
	assert.EqualValues(t, 20, stats.Fragments)

	segs, err := s.ListSegments(ctx, SegmentFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, []byte("A"), segs[0].Key)
	assert.Equal(t, 2, segs[0].Partitions)
	assert.EqualValues(t, 1, segs[0].MinSeq)
	assert.EqualValues(t, 15, segs[0].MaxSeq)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFinished, run.Status)
	assert.Equal(t, 3, run.Streams)
}

func TestSplit_SeqContinuesAcrossRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	src1 := split.NewSliceSource(testutil.ObjectSchema(), nil, testutil.Objects("bkt", 1, "A")...)
	_, err := s.Split(ctx, "run-1", src1, newTestBuilder(t), split.WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)

	src2 := split.NewSliceSource(testutil.ObjectSchema(), nil, testutil.Objects("bkt", 1, "A")...)
	_, err = s.Split(ctx, "run-2", src2, newTestBuilder(t), split.WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)

	second, err := s.ListSegments(ctx, SegmentFilter{RunID: "run-2"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.EqualValues(t, 5, second[0].MinSeq, "run-2 starts after run-1's last seq")
}

func TestSplit_UpstreamFailure_WritesNothingForAbortedStreams(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	q := split.NewQueueSource(testutil.ObjectSchema(), nil)
	q.Enqueue(testutil.ObjectPartition("bkt", "A", 2)...)
	q.Fail(errors.New("connection reset"))

	_, err := s.Split(ctx, "run-1", q, newTestBuilder(t), split.WithLogger(testutil.QuietLogger()))
	require.Error(t, err)
	assert.True(t, split.IsUpstreamError(err))

	segs, err := s.ListSegments(ctx, SegmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, segs)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, split.ErrCodeUpstream, run.ErrorCode)
}

func TestSplit_ConfigErrorStartsNoRun(t *testing.T) {
	s := createTestStore(t)

	b, err := segment.NewBuilder(testutil.ObjectSchema(), "bucket")
	require.NoError(t, err)
	schema := testutil.ObjectSchema()
	schema.PartitionKey = schema.PartitionKey[1:]
	bad := split.NewSliceSource(schema, nil)

	_, err = s.Split(context.Background(), "run-1", bad, b)
	require.Error(t, err)
	assert.True(t, split.IsConfigError(err))

	runs, err := s.ReadRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSegmentSink_ForeignPartitionFailsConsumer(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	// The builder checks object_id but the split routes by bucket, so the
	// stream for "bkt" holds partitions of two objects
	src := split.NewSliceSource(testutil.ObjectSchema(), nil, testutil.Objects("bkt", 1, "A", "B")...)
	err := split.SplitByKeyComponent(ctx, src, s.SegmentSink("run-1", newTestBuilder(t)), "bucket",
		split.WithLogger(testutil.QuietLogger()))
	require.Error(t, err)
	assert.True(t, split.IsConsumerError(err))

	var se *split.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []byte("bkt"), se.Key)
}

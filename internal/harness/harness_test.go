package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pksplit/internal/fragfile"
	"github.com/roach88/pksplit/internal/split"
	"github.com/roach88/pksplit/internal/testutil"
)

func objects(keys ...string) []fragfile.Partition {
	parts := make([]fragfile.Partition, len(keys))
	for i, k := range keys {
		parts[i] = fragfile.Partition{
			Key:  []string{"bkt", k},
			Rows: []fragfile.Row{{Clustering: []string{"0000"}}},
		}
	}
	return parts
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Partitions:  objects("A"),
		Assertions: []Assertion{
			{Type: AssertStreamCount, Count: 1},
			{Type: AssertErrorCode, Code: CodeNone},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err)

	require.Len(t, result.Streams, 1)
	s := result.Streams[0]
	assert.Equal(t, "A", s.Key)
	assert.Equal(t, OutcomeComplete, s.Outcome)
	assert.Equal(t, []FragmentTrace{
		{Seq: 1, Kind: "partition_start", Key: []string{"bkt", "A"}},
		{Seq: 2, Kind: "clustering_row", Clustering: []string{"0000"}},
		{Seq: 3, Kind: "partition_end"},
	}, s.Fragments)
	assert.Equal(t, split.Stats{Streams: 1, Fragments: 3}, result.Stats)
}

func TestRun_StreamsInCreationOrder(t *testing.T) {
	scenario := &Scenario{
		Name:        "order",
		Description: "Creation order",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Partitions:  objects("C", "A", "B", "A"),
		Assertions:  []Assertion{{Type: AssertStreamOrder, Keys: []string{"C", "A", "B"}}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"C", "A", "B"}, result.Keys())

	a, ok := result.Stream("A")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"bkt", "A"}, {"bkt", "A"}}, a.Partitions())
}

func TestRun_ConsumerFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "failure",
		Description: "Consumer failure",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Partitions:  objects("A", "B"),
		Failures:    []ConsumerFailure{{Key: "B", After: 0, Message: "disk full"}},
		Assertions:  []Assertion{{Type: AssertErrorCode, Code: string(split.ErrCodeConsumer)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.ErrorContains(t, result.Err, "disk full")

	a, _ := result.Stream("A")
	assert.Equal(t, OutcomeComplete, a.Outcome)
	b, _ := result.Stream("B")
	assert.Equal(t, OutcomeFailed, b.Outcome)
	assert.Empty(t, b.Fragments)
	// Fragments pushed to a failed consumer still count as routed
	assert.Equal(t, int64(6), result.Stats.Fragments)
}

func TestRun_SourceError(t *testing.T) {
	scenario := &Scenario{
		Name:        "source",
		Description: "Source failure",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Partitions:  objects("A", "B"),
		SourceError: &SourceError{After: 2, Message: "connection reset"},
		Assertions:  []Assertion{{Type: AssertErrorCode, Code: string(split.ErrCodeUpstream)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.ErrorContains(t, result.Err, "connection reset")

	require.Len(t, result.Streams, 1)
	assert.Equal(t, OutcomeAborted, result.Streams[0].Outcome)
	assert.Len(t, result.Streams[0].Fragments, 2)
}

func TestRun_ConfigErrorIsAnOutcome(t *testing.T) {
	scenario := &Scenario{
		Name:        "config",
		Description: "Unknown component",
		Schema:      testutil.ObjectSchema(),
		Component:   "region",
		Partitions:  objects("A"),
		Assertions:  []Assertion{{Type: AssertErrorCode, Code: string(split.ErrCodeConfig)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Streams)
	assert.Zero(t, result.Stats)
}

func TestRun_FailingAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "Expects the wrong count",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Partitions:  objects("A", "B"),
		Assertions:  []Assertion{{Type: AssertStreamCount, Count: 3}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: 3 stream(s)")
	assert.Contains(t, result.Errors[0], "Actual: 2 stream(s)")
}

func TestRun_BoundedBudget(t *testing.T) {
	scenario := &Scenario{
		Name:        "budget",
		Description: "Tiny budget",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Capacity:    1,
		Budget:      1,
		Partitions:  objects("A", "B", "C", "A", "B"),
		Assertions:  []Assertion{{Type: AssertFragmentsTotal, Count: 15}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	for _, s := range result.Streams {
		assert.Equal(t, OutcomeComplete, s.Outcome)
	}
}

func TestFailingSource_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "repeat",
		Description: "Same trace every time",
		Schema:      testutil.ObjectSchema(),
		Component:   "object_id",
		Partitions:  objects("A", "B", "C"),
		SourceError: &SourceError{After: 5, Message: "eof"},
		Failures:    []ConsumerFailure{{Key: "A", After: 1, Message: "boom"}},
		Assertions:  []Assertion{{Type: AssertErrorCode, Code: string(split.ErrCodeUpstream)}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Run(scenario)
		require.NoError(t, err)
		assert.Equal(t, first.Streams, again.Streams)
		assert.Equal(t, first.Stats.Fragments, again.Stats.Fragments)
	}
}

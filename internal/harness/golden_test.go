package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with testdata/golden/<name>.golden.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	result := NewResult()
	result.Streams = []StreamTrace{{
		Key:     "A",
		Outcome: OutcomeFailed,
		Fragments: []FragmentTrace{
			{Seq: 1, Kind: "partition_start", Key: []string{"bkt", "A"}},
			{Seq: 2, Kind: "clustering_row", Clustering: []string{"0000"}},
		},
	}}
	result.Stats.Fragments = 4
	result.Stats.Dropped = 2
	result.ErrorCode = "CONSUMER_FAILED"

	snapshot := NewTraceSnapshot("one", result)
	data, err := snapshot.Marshal()
	require.NoError(t, err)

	// Keys sorted, no whitespace, Dropped absent
	want := `{"error_code":"CONSUMER_FAILED","fragments":4,"scenario_name":"one","streams":[` +
		`{"fragments":[{"key":["bkt","A"],"kind":"partition_start","seq":1},` +
		`{"clustering":["0000"],"kind":"clustering_row","seq":2}],"key":"A","outcome":"failed"}]}`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshot_SuccessIsNone(t *testing.T) {
	snapshot := NewTraceSnapshot("empty", NewResult())
	data, err := snapshot.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"error_code":"none","fragments":0,"scenario_name":"empty","streams":[]}`, string(data))
}

func TestAssertGolden_ReusesResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/interleaved.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "interleaved", result))
}

package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pksplit/internal/store"
)

// splitFixture splits the fixture input into its database as run split-1.
func splitFixture(t *testing.T, fx fixture) {
	t.Helper()
	cmd, _, _ := testCommand()
	require.NoError(t, runSplit(splitOptions(fx, "json"), fx.input, cmd))
}

func TestSegments_ListsInKeyOrder(t *testing.T) {
	fx := newFixture(t)
	splitFixture(t, fx)

	out, err := execute(t, "--format", "json", "segments", "--db", fx.db)
	require.NoError(t, err)

	var views []SegmentView
	decodeData(t, out, &views)
	require.Len(t, views, 2)

	a, b := views[0], views[1]
	assert.Equal(t, "A", a.Key)
	assert.Equal(t, "split-1", a.RunID)
	assert.Equal(t, "object_id", a.Component)
	assert.Equal(t, []string{"bkt", "A"}, a.FirstKey)
	assert.Equal(t, int64(1), a.MinSeq)
	assert.Equal(t, int64(11), a.MaxSeq)
	assert.Positive(t, a.StoredSize)

	assert.Equal(t, "B", b.Key)
	assert.Equal(t, 1, b.Tombstones)
	assert.Equal(t, int64(5), b.MinSeq)
	assert.Equal(t, int64(8), b.MaxSeq)
	assert.Len(t, b.ID, len(a.ID))
}

func TestSegments_Filters(t *testing.T) {
	fx := newFixture(t)
	splitFixture(t, fx)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"by value", []string{"--component-value", "B"}, 1},
		{"by run", []string{"--run", "split-1"}, 2},
		{"by other run", []string{"--run", "split-2"}, 0},
		{"by component", []string{"--component", "bucket"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "segments", "--db", fx.db}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)

			var views []SegmentView
			decodeData(t, out, &views)
			assert.Len(t, views, tt.want)
		})
	}
}

func TestSegments_Text(t *testing.T) {
	fx := newFixture(t)
	splitFixture(t, fx)

	out, err := execute(t, "segments", "--db", fx.db)
	require.NoError(t, err)
	assert.Contains(t, out, `object_id="A"  partitions=2 fragments=7 tombstones=0 seq=1..11`)
	assert.Contains(t, out, `object_id="B"  partitions=1 fragments=4 tombstones=1 seq=5..8`)
}

func TestSegments_EmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "segments", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No segments\n", out)
}

func TestSegments_DatabaseNotFound(t *testing.T) {
	out, err := execute(t, "segments", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestRuns_ListsSplitRun(t *testing.T) {
	fx := newFixture(t)
	splitFixture(t, fx)

	out, err := execute(t, "--format", "json", "runs", "--db", fx.db)
	require.NoError(t, err)

	var runs []store.Run
	decodeData(t, out, &runs)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, "split-1", r.ID)
	assert.Equal(t, store.RunKindSplit, r.Kind)
	assert.Equal(t, store.RunFinished, r.Status)
	assert.Equal(t, "s3", r.Keyspace)
	assert.Equal(t, "chunk", r.Table)
	assert.Equal(t, "object_id", r.Component)
	assert.Equal(t, 2, r.Streams)
	assert.Equal(t, int64(11), r.Fragments)

	text, err := execute(t, "runs", "--db", fx.db)
	require.NoError(t, err)
	assert.Contains(t, text, "split-1  split   finished s3.chunk by object_id  streams=2 fragments=11 dropped=0")
}

func TestRuns_DatabaseNotFound(t *testing.T) {
	_, err := execute(t, "runs", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

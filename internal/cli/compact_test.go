package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pksplit/internal/compaction"
	"github.com/roach88/pksplit/internal/store"
)

// shadowedInputYAML writes a row of B that a later tombstone of B covers.
const shadowedInputYAML = `key: [bkt, B]
rows:
  - clustering: ["0001"]
    cells: {data: b1}
---
key: [bkt, B]
tombstones:
  - {start: ["0000"], end: ["0009"]}
---
key: [bkt, A]
rows:
  - clustering: ["0000"]
    cells: {data: a0}
`

func compactOptions(fx fixture, format string, runID string) *CompactOptions {
	return &CompactOptions{
		RootOptions: &RootOptions{Format: format},
		Database:    fx.db,
		Schema:      fx.schema,
		Component:   "object_id",
		Threshold:   compaction.DefaultMinThreshold,
		Compression: "zstd",
		RunIDs:      store.NewFixedGenerator(runID),
	}
}

// shadowedFixture splits shadowedInputYAML into a fresh database.
func shadowedFixture(t *testing.T) fixture {
	t.Helper()
	fx := newFixture(t)
	fx.input = writeFile(t, fx.dir, "shadowed.yaml", shadowedInputYAML)
	splitFixture(t, fx)
	return fx
}

func TestCompact_PurgesShadowedRows(t *testing.T) {
	fx := shadowedFixture(t)
	cmd, out, _ := testCommand()

	require.NoError(t, runCompact(compactOptions(fx, "json", "compact-1"), cmd))

	var summary CompactSummary
	decodeData(t, out.String(), &summary)
	assert.Equal(t, "compact-1", summary.RunID)
	assert.False(t, summary.DryRun)
	require.Len(t, summary.Jobs, 1)
	assert.Equal(t, "merge", summary.Jobs[0].Kind)
	assert.Equal(t, "B", summary.Jobs[0].Key)

	require.Len(t, summary.Results, 1)
	r := summary.Results[0]
	assert.Equal(t, 1, r.Purged)
	assert.False(t, r.Unchanged)
	require.Len(t, r.Written, 1)

	st, err := store.Open(fx.db)
	require.NoError(t, err)
	defer st.Close()

	segs, err := st.ListSegments(cmd.Context(), store.SegmentFilter{Component: "object_id"})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, r.Written[0], segs[1].Digest)
	assert.Equal(t, "compact-1", segs[1].RunID)
	assert.Equal(t, 1, segs[1].Tombstones)

	runs, err := st.ReadRuns(cmd.Context())
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestCompact_Text(t *testing.T) {
	fx := shadowedFixture(t)

	out, err := execute(t, "compact", "--db", fx.db, "--schema", fx.schema, "--component", "object_id")
	require.NoError(t, err)
	assert.Contains(t, out, "finished 1 job(s):")
	assert.Contains(t, out, `"B"  1 -> 1 segment(s), 1 row(s) purged`)
}

func TestCompact_SecondRunIsUnchanged(t *testing.T) {
	fx := shadowedFixture(t)
	cmd, _, _ := testCommand()
	require.NoError(t, runCompact(compactOptions(fx, "json", "compact-1"), cmd))

	cmd, out, _ := testCommand()
	require.NoError(t, runCompact(compactOptions(fx, "json", "compact-2"), cmd))

	var summary CompactSummary
	decodeData(t, out.String(), &summary)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Unchanged)
	assert.Zero(t, summary.Results[0].Purged)
	assert.Empty(t, summary.Results[0].Written)
}

func TestCompact_DryRun(t *testing.T) {
	fx := shadowedFixture(t)
	cmd, out, _ := testCommand()
	opts := compactOptions(fx, "text", "compact-1")
	opts.DryRun = true

	require.NoError(t, runCompact(opts, cmd))
	assert.Contains(t, out.String(), "Planned 1 job(s):")
	assert.Contains(t, out.String(), `"B"  1 segment(s)`)

	cmd, out, _ = testCommand()
	opts = compactOptions(fx, "json", "compact-1")
	opts.DryRun = true
	require.NoError(t, runCompact(opts, cmd))

	var summary CompactSummary
	decodeData(t, out.String(), &summary)
	assert.True(t, summary.DryRun)
	assert.Empty(t, summary.RunID)
	assert.Len(t, summary.Jobs, 1)
	assert.Empty(t, summary.Results)
}

func TestCompact_NothingToCompact(t *testing.T) {
	fx := newFixture(t)
	fx.input = writeFile(t, fx.dir, "plain.yaml", "key: [bkt, A]\nrows:\n  - clustering: [\"0000\"]\n    cells: {data: a0}\n")
	splitFixture(t, fx)
	cmd, out, _ := testCommand()

	require.NoError(t, runCompact(compactOptions(fx, "text", "compact-1"), cmd))
	assert.Equal(t, "Nothing to compact\n", out.String())
}

func TestCompact_FlagErrors(t *testing.T) {
	fx := shadowedFixture(t)

	tests := []struct {
		name    string
		mutate  func(*CompactOptions)
		wantMsg string
	}{
		{"zero threshold", func(o *CompactOptions) { o.Threshold = 0 }, "--threshold must be at least 1"},
		{"bad compression", func(o *CompactOptions) { o.Compression = "brotli" }, "invalid --compression"},
		{"unknown component", func(o *CompactOptions) { o.Component = "region" }, "Error [E007]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, out, _ := testCommand()
			opts := compactOptions(fx, "text", "compact-1")
			tt.mutate(opts)

			err := runCompact(opts, cmd)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out.String(), tt.wantMsg)
		})
	}
}

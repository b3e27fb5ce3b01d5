package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pksplit/internal/compaction"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/store"
)

// CompactOptions holds flags for the compact command.
type CompactOptions struct {
	*RootOptions
	Database    string
	Schema      string
	Component   string
	Threshold   int
	DryRun      bool
	Compression string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs store.RunIDGenerator
}

// JobView is the printable form of a compaction job.
type JobView struct {
	Kind     string   `json:"kind"`
	Key      string   `json:"key,omitempty"`
	Segments []string `json:"segments"`
	Reason   string   `json:"reason"`
}

// ResultView is the printable form of an executed job.
type ResultView struct {
	JobView
	Written   []string `json:"written"`
	Purged    int      `json:"purged"`
	Unchanged bool     `json:"unchanged,omitempty"`
}

// CompactSummary is the outcome of one compact command.
type CompactSummary struct {
	RunID   string       `json:"run_id,omitempty"`
	DryRun  bool         `json:"dry_run"`
	Jobs    []JobView    `json:"jobs"`
	Results []ResultView `json:"results,omitempty"`
}

func newJobView(j compaction.Job) JobView {
	return JobView{Kind: j.Kind.String(), Key: string(j.Key), Segments: j.IDs(), Reason: j.Reason}
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Merge and resplit stored segments",
		Long: `Plan and execute compaction of the segments split by one component.

Segments holding more than one routing value are resplit into one segment
per value. The segments of a value are merged into one when any of them
holds a range tombstone or when there are at least --threshold of them;
merging drops rows shadowed by later tombstones.

Example:
  pksplit compact --db ./chunks.db --schema ./schema.cue --component object_id
  pksplit compact --db ./chunks.db --schema ./schema.cue --component object_id --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE file or directory declaring the schema (required)")
	cmd.Flags().StringVar(&opts.Component, "component", "", "partition-key component segments are split by (required)")
	cmd.Flags().IntVar(&opts.Threshold, "threshold", compaction.DefaultMinThreshold, "segments of one value that trigger a merge")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the plan without changing anything")
	cmd.Flags().StringVar(&opts.Compression, "compression", segment.DefaultCompression.String(), "compression of rewritten segments (none|lz4|zstd)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("component")

	return cmd
}

func runCompact(opts *CompactOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Threshold < 1 {
		return usageError(f, "--threshold must be at least 1")
	}
	compression, err := segment.ParseCompression(opts.Compression)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --compression", err)
	}
	schema, err := loadSchemaOrFail(f, opts.Schema)
	if err != nil {
		return err
	}

	strategy, err := compaction.NewStrategy(schema, opts.Component, opts.Threshold)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, "invalid --component", err)
	}
	b, err := segment.NewBuilder(schema, opts.Component, segment.WithCompression(compression))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, "invalid --component", err)
	}

	st, err := openExistingStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	gen := opts.RunIDs
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}
	c, err := compaction.New(st, schema, strategy, b,
		compaction.WithLogger(newLogger(opts.RootOptions, f.GetErrWriter())),
		compaction.WithRunIDGenerator(gen))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to create compactor", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	report, err := c.Run(ctx, opts.DryRun)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeCompactFailed, "compaction failed", err)
	}

	summary := CompactSummary{RunID: report.RunID, DryRun: report.DryRun, Jobs: []JobView{}}
	for _, j := range report.Jobs {
		summary.Jobs = append(summary.Jobs, newJobView(j))
	}
	for _, r := range report.Results {
		summary.Results = append(summary.Results, ResultView{
			JobView:   newJobView(r.Job),
			Written:   r.Written,
			Purged:    r.Purged,
			Unchanged: r.Unchanged,
		})
	}

	return f.Result(summary, func(w io.Writer) {
		if len(summary.Jobs) == 0 {
			fmt.Fprintln(w, "Nothing to compact")
			return
		}
		if summary.DryRun {
			fmt.Fprintf(w, "Planned %d job(s):\n", len(summary.Jobs))
			for _, j := range summary.Jobs {
				fmt.Fprintf(w, "  %-7s %q  %d segment(s)  %s\n", j.Kind, j.Key, len(j.Segments), j.Reason)
			}
			return
		}
		fmt.Fprintf(w, "Compaction run %s finished %d job(s):\n", summary.RunID, len(summary.Results))
		for _, r := range summary.Results {
			if r.Unchanged {
				fmt.Fprintf(w, "  %-7s %q  unchanged\n", r.Kind, r.Key)
				continue
			}
			fmt.Fprintf(w, "  %-7s %q  %d -> %d segment(s), %d row(s) purged\n",
				r.Kind, r.Key, len(r.Segments), len(r.Written), r.Purged)
		}
	})
}

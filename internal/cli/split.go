package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pksplit/internal/fragfile"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/split"
	pebblestore "github.com/roach88/pksplit/internal/storage/pebble"
	"github.com/roach88/pksplit/internal/store"
)

// Sink names accepted by --sink.
const (
	SinkSQLite = "sqlite"
	SinkPebble = "pebble"
)

// SplitOptions holds flags for the split command.
type SplitOptions struct {
	*RootOptions
	Database    string
	Schema      string
	Component   string
	Capacity    int
	Budget      int64
	Compression string
	Sink        string
	PebbleDir   string
	Fsync       string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs store.RunIDGenerator
}

// SplitSummary is the outcome of one split command.
type SplitSummary struct {
	RunID     string   `json:"run_id,omitempty"`
	Sink      string   `json:"sink"`
	Documents int      `json:"documents"`
	Streams   int      `json:"streams"`
	Fragments int64    `json:"fragments"`
	Dropped   int64    `json:"dropped"`
	Keys      []string `json:"keys"`
}

// NewSplitCommand creates the split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SplitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "split <input.yaml>",
		Short: "Split a fragment file into one segment per key",
		Long: `Split a YAML fragment file by one partition-key component.

Every distinct value of the component gets its own sub-stream, drained
concurrently into the chosen sink: one segment per value in the SQLite
database (default), or one key range per value in a Pebble directory.
Use "-" to read the fragment file from stdin.

Example:
  pksplit split --db ./chunks.db --schema ./schema.cue --component object_id input.yaml
  pksplit split --sink pebble --pebble-dir ./frags --schema ./schema --component bucket input.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (sqlite sink)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE file or directory declaring the schema (required)")
	cmd.Flags().StringVar(&opts.Component, "component", "", "partition-key component to split by (required)")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", split.DefaultChannelCapacity, "per-stream channel capacity")
	cmd.Flags().Int64Var(&opts.Budget, "budget", 0, "max fragments buffered across all streams (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Compression, "compression", segment.DefaultCompression.String(), "segment compression (none|lz4|zstd)")
	cmd.Flags().StringVar(&opts.Sink, "sink", SinkSQLite, "where sub-streams go (sqlite|pebble)")
	cmd.Flags().StringVar(&opts.PebbleDir, "pebble-dir", "", "Pebble data directory (pebble sink)")
	cmd.Flags().StringVar(&opts.Fsync, "fsync", "interval", "Pebble WAL sync mode (always|interval|never)")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("component")

	return cmd
}

func runSplit(opts *SplitOptions, input string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	switch opts.Sink {
	case SinkSQLite:
		if opts.Database == "" {
			return usageError(f, "--db is required for the sqlite sink")
		}
	case SinkPebble:
		if opts.PebbleDir == "" {
			return usageError(f, "--pebble-dir is required for the pebble sink")
		}
	default:
		return usageError(f, fmt.Sprintf("invalid sink %q: must be %s or %s", opts.Sink, SinkSQLite, SinkPebble))
	}
	if opts.Capacity < 1 {
		return usageError(f, "--capacity must be at least 1")
	}
	compression, err := segment.ParseCompression(opts.Compression)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --compression", err)
	}

	schema, err := loadSchemaOrFail(f, opts.Schema)
	if err != nil {
		return err
	}

	r, closeInput, err := openInput(input, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to open input", err)
	}
	defer closeInput()

	logger := newLogger(opts.RootOptions, f.GetErrWriter())
	var permit *split.Permit
	if opts.Budget > 0 {
		permit = split.NewPermit(filepath.Base(input), opts.Budget)
	}
	src := fragfile.NewSource(r, schema, permit)
	splitOpts := []split.Option{
		split.WithLogger(logger),
		split.WithChannelCapacity(opts.Capacity),
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	summary := SplitSummary{Sink: opts.Sink}
	var (
		stats  split.Stats
		runErr error
	)
	switch opts.Sink {
	case SinkSQLite:
		st, err := store.Open(opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()

		b, err := segment.NewBuilder(schema, opts.Component, segment.WithCompression(compression))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeSchema, "invalid --component", err)
		}
		gen := opts.RunIDs
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		summary.RunID = gen.Generate()
		f.VerboseLog("Split run %s writing to %s", summary.RunID, opts.Database)

		stats, runErr = st.Split(ctx, summary.RunID, src, b, splitOpts...)
		if runErr == nil {
			segs, err := st.ListSegments(ctx, store.SegmentFilter{RunID: summary.RunID})
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to list written segments", err)
			}
			for _, seg := range segs {
				summary.Keys = append(summary.Keys, string(seg.Key))
			}
		}

	case SinkPebble:
		fsync, err := pebblestore.ParseFsyncMode(opts.Fsync)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --fsync", err)
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir: opts.PebbleDir,
			Fsync:   fsync,
			Metrics: pebblestore.LogMetrics{Logger: logger},
		})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open pebble directory", err)
		}
		defer db.Close()

		sp, err := split.New(schema, permit, db.FragmentSink(), opts.Component, splitOpts...)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeSchema, "invalid --component", err)
		}
		runErr = sp.Run(ctx, src)
		stats = sp.Stats()
		for _, k := range sp.Keys() {
			summary.Keys = append(summary.Keys, string(k))
		}
	}

	if runErr != nil {
		exitCode := ExitFailure
		if split.IsConfigError(runErr) {
			exitCode = ExitCommandError
		}
		return f.Fail(exitCode, ErrCodeSplitFailed, "split failed", runErr)
	}

	summary.Documents = src.Documents()
	summary.Streams = stats.Streams
	summary.Fragments = stats.Fragments
	summary.Dropped = stats.Dropped
	return f.Result(summary, func(w io.Writer) {
		if summary.RunID != "" {
			fmt.Fprintf(w, "Split run %s finished\n", summary.RunID)
		} else {
			fmt.Fprintln(w, "Split finished")
		}
		fmt.Fprintf(w, "  partitions: %d\n  streams:    %d\n  fragments:  %d\n  dropped:    %d\n",
			summary.Documents, summary.Streams, summary.Fragments, summary.Dropped)
		for _, k := range summary.Keys {
			fmt.Fprintf(w, "  %q\n", k)
		}
	})
}

// openInput opens path for reading; "-" is stdin.
func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

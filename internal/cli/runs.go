package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List split and compaction runs",
		Long: `List every split and compaction run recorded in a SQLite database,
oldest first, with its outcome and counters.

Example:
  pksplit runs --db ./chunks.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ReadRuns(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read runs", err)
	}
	return f.Result(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs")
			return
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %-7s %-8s %s.%s by %s  streams=%d fragments=%d dropped=%d\n",
				r.ID, r.Kind, r.Status, r.Keyspace, r.Table, r.Component, r.Streams, r.Fragments, r.Dropped)
			if r.Error != "" {
				fmt.Fprintf(w, "    %s: %s\n", r.ErrorCode, r.Error)
			}
		}
	})
}

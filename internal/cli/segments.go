package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/store"
)

// SegmentsOptions holds flags for the segments command.
type SegmentsOptions struct {
	*RootOptions
	Database       string
	Component      string
	ComponentValue string
	RunID          string
}

// SegmentView is the printable form of segment metadata. Key bytes are
// rendered as strings.
type SegmentView struct {
	ID          string   `json:"id"`
	RunID       string   `json:"run_id"`
	Component   string   `json:"component"`
	Key         string   `json:"key"`
	FirstKey    []string `json:"first_key"`
	LastKey     []string `json:"last_key"`
	Partitions  int      `json:"partitions"`
	Fragments   int      `json:"fragments"`
	Tombstones  int      `json:"tombstones"`
	MinSeq      int64    `json:"min_seq"`
	MaxSeq      int64    `json:"max_seq"`
	Compression string   `json:"compression"`
	RawSize     int      `json:"raw_size"`
	StoredSize  int      `json:"stored_size,omitempty"`
}

func newSegmentView(seg *segment.Segment) SegmentView {
	return SegmentView{
		ID:          seg.Digest,
		RunID:       seg.RunID,
		Component:   seg.Component,
		Key:         string(seg.Key),
		FirstKey:    seg.FirstKey.Strings(),
		LastKey:     seg.LastKey.Strings(),
		Partitions:  seg.Partitions,
		Fragments:   seg.Fragments,
		Tombstones:  seg.Tombstones,
		MinSeq:      seg.MinSeq,
		MaxSeq:      seg.MaxSeq,
		Compression: seg.Compression.String(),
		RawSize:     seg.RawSize,
		StoredSize:  len(seg.Body),
	}
}

// NewSegmentsCommand creates the segments command.
func NewSegmentsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SegmentsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "segments",
		Short: "List stored segments",
		Long: `List the segments stored in a SQLite database, ordered by component,
key and first arrival sequence.

Example:
  pksplit segments --db ./chunks.db
  pksplit segments --db ./chunks.db --component-value object-a --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegments(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Component, "component", "", "only segments split by this component")
	cmd.Flags().StringVar(&opts.ComponentValue, "component-value", "", "only segments of this routing value")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only segments written by this run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSegments(opts *SegmentsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.SegmentFilter{RunID: opts.RunID, Component: opts.Component}
	if opts.ComponentValue != "" {
		filter.Key = []byte(opts.ComponentValue)
	}
	segs, err := st.ListSegments(cmd.Context(), filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list segments", err)
	}

	views := make([]SegmentView, 0, len(segs))
	for _, seg := range segs {
		views = append(views, newSegmentView(seg))
	}
	return f.Result(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No segments")
			return
		}
		for _, v := range views {
			fmt.Fprintf(w, "%s  %s=%q  partitions=%d fragments=%d tombstones=%d seq=%d..%d %s\n",
				v.ID, v.Component, v.Key, v.Partitions, v.Fragments, v.Tombstones,
				v.MinSeq, v.MaxSeq, v.Compression)
		}
	})
}

// openExistingStore opens a database that must already exist. Read-only
// commands never create one.
func openExistingStore(f *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

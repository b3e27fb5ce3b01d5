package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	Diag     bool
}

// CellView is the printable form of a cell.
type CellView struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FragmentView is the printable form of a fragment.
type FragmentView struct {
	Seq        int64      `json:"seq"`
	Kind       string     `json:"kind"`
	Key        []string   `json:"key,omitempty"`
	Clustering []string   `json:"clustering,omitempty"`
	Cells      []CellView `json:"cells,omitempty"`
	Start      []string   `json:"start,omitempty"`
	End        []string   `json:"end,omitempty"`
}

// InspectResult is the outcome of the inspect command.
type InspectResult struct {
	Segment   SegmentView    `json:"segment"`
	Fragments []FragmentView `json:"fragments"`
	Diag      string         `json:"diag,omitempty"`
}

func newFragmentView(f ir.Fragment) FragmentView {
	v := FragmentView{
		Seq:        f.Seq,
		Kind:       f.Kind.String(),
		Key:        f.Key.Strings(),
		Clustering: ir.PartitionKey(f.Clustering).Strings(),
	}
	for _, c := range f.Cells {
		v.Cells = append(v.Cells, CellView{Name: c.Name, Value: string(c.Value)})
	}
	if f.Range != nil {
		v.Start = ir.PartitionKey(f.Range.Start).Strings()
		v.End = ir.PartitionKey(f.Range.End).Strings()
	}
	return v
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <segment-id>",
		Short: "Decode a segment and print its fragments",
		Long: `Decode one stored segment, verify its digest and print its fragments in
arrival order.

Example:
  pksplit inspect --db ./chunks.db 5c1e...
  pksplit inspect --db ./chunks.db --diag 5c1e...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Diag, "diag", false, "also print the body in CBOR diagnostic notation")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runInspect(opts *InspectOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	seg, err := st.ReadSegment(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "no such segment", err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read segment", err)
	}

	frags, err := segment.Decode(seg)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStore, "failed to decode segment", err)
	}

	res := InspectResult{Segment: newSegmentView(seg), Fragments: make([]FragmentView, 0, len(frags))}
	for _, fr := range frags {
		res.Fragments = append(res.Fragments, newFragmentView(fr))
	}
	if opts.Diag {
		raw, err := segment.Raw(seg)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeStore, "failed to read segment body", err)
		}
		if res.Diag, err = segment.Diagnose(raw); err != nil {
			return f.Fail(ExitFailure, ErrCodeStore, "failed to render segment body", err)
		}
	}

	return f.Result(res, func(w io.Writer) {
		s := res.Segment
		fmt.Fprintf(w, "Segment %s\n", s.ID)
		fmt.Fprintf(w, "  run:        %s\n  %s: %q\n  partitions: %d\n  seq:        %d..%d\n  size:       %d raw, %d stored (%s)\n",
			s.RunID, s.Component, s.Key, s.Partitions, s.MinSeq, s.MaxSeq, s.RawSize, s.StoredSize, s.Compression)
		for _, fv := range res.Fragments {
			fmt.Fprintf(w, "%6d  %s\n", fv.Seq, describeFragment(fv))
		}
		if res.Diag != "" {
			fmt.Fprintln(w, res.Diag)
		}
	})
}

func describeFragment(v FragmentView) string {
	var b strings.Builder
	b.WriteString(v.Kind)
	if len(v.Key) > 0 {
		fmt.Fprintf(&b, " key=%q", v.Key)
	}
	if len(v.Clustering) > 0 {
		fmt.Fprintf(&b, " clustering=%q", v.Clustering)
	}
	if len(v.Start) > 0 || len(v.End) > 0 {
		fmt.Fprintf(&b, " range=[%q, %q]", v.Start, v.End)
	}
	for _, c := range v.Cells {
		fmt.Fprintf(&b, " %s=%q", c.Name, c.Value)
	}
	return b.String()
}

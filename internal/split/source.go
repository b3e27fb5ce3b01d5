package split

import (
	"context"
	"io"

	"github.com/roach88/pksplit/internal/ir"
)

// Source is an ordered, forward-only producer of partition fragments.
//
// Fragments of one partition must be contiguous: a partition_start is
// followed by that partition's fragments and exactly one partition_end
// before the next partition_start. The splitter relies on this and does not
// check it.
type Source interface {
	// Schema returns the record schema descriptor. Called once, before Next.
	Schema() ir.Schema

	// Permit returns the resource permit sub-streams draw from. May be nil.
	Permit() *Permit

	// Next returns the next fragment, io.EOF when exhausted, or any other
	// error if the source failed.
	Next(ctx context.Context) (ir.Fragment, error)
}

// SliceSource serves fragments from memory.
type SliceSource struct {
	schema    ir.Schema
	permit    *Permit
	fragments []ir.Fragment
	pos       int
}

// NewSliceSource creates a source that yields fragments in order.
func NewSliceSource(schema ir.Schema, permit *Permit, fragments ...ir.Fragment) *SliceSource {
	return &SliceSource{schema: schema, permit: permit, fragments: fragments}
}

// Schema implements Source.
func (s *SliceSource) Schema() ir.Schema { return s.schema }

// Permit implements Source.
func (s *SliceSource) Permit() *Permit { return s.permit }

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (ir.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return ir.Fragment{}, err
	}
	if s.pos >= len(s.fragments) {
		return ir.Fragment{}, io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

// Partition expands one partition into its fragments: start, optional
// static row, rows, tombstones, end.
func Partition(key ir.PartitionKey, body ...ir.Fragment) []ir.Fragment {
	out := make([]ir.Fragment, 0, len(body)+2)
	out = append(out, ir.PartitionStart(key))
	out = append(out, body...)
	out = append(out, ir.PartitionEnd())
	return out
}

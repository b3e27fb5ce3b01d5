package store

import (
	"context"
	"fmt"

	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/split"
)

// SegmentSink returns a consumer that builds one segment per sub-stream and
// writes it under runID. An aborted stream writes nothing.
func (s *Store) SegmentSink(runID string, b *segment.Builder) split.ConsumerFunc {
	return func(ctx context.Context, st *split.Stream) error {
		seg, err := b.Build(ctx, st)
		if err != nil {
			return err
		}
		// The split context may already be winding down; the segment is
		// complete, so it is written regardless.
		return s.WriteSegment(context.WithoutCancel(ctx), runID, seg)
	}
}

// Split runs one split of src into segments, recording the run under
// runID. Arrival seq continues from the highest seq already stored; pass
// split.WithClock to override.
//
// The run row is written before any fragment is read and updated with the
// outcome afterwards, whether or not the split succeeded.
func (s *Store) Split(ctx context.Context, runID string, src split.Source, b *segment.Builder, opts ...split.Option) (split.Stats, error) {
	schema := src.Schema()
	maxSeq, err := s.MaxSeq(ctx)
	if err != nil {
		return split.Stats{}, err
	}

	opts = append([]split.Option{split.WithClock(split.NewClockAt(maxSeq))}, opts...)
	sp, err := split.New(schema, src.Permit(), s.SegmentSink(runID, b), b.Component(), opts...)
	if err != nil {
		return split.Stats{}, err
	}

	if err := s.BeginRun(ctx, runID, RunKindSplit, schema, b.Component()); err != nil {
		return split.Stats{}, err
	}
	runErr := sp.Run(ctx, src)
	stats := sp.Stats()
	if err := s.FinishRun(context.WithoutCancel(ctx), runID, stats, runErr); err != nil {
		if runErr != nil {
			return stats, fmt.Errorf("%w (and recording the failure: %v)", runErr, err)
		}
		return stats, err
	}
	return stats, runErr
}

package split

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pksplit/internal/ir"
)

// router maps routing values to sub-streams and forwards each fragment.
//
// CRITICAL: router state is only touched from the goroutine driving Run.
// finalize fans work out to other goroutines but blocks until they finish.
type router struct {
	schema      ir.Schema
	extractor   *KeyExtractor
	permit      *Permit
	consume     ConsumerFunc
	capacity    int
	clock       *Clock
	preserveSeq bool
	logger      *slog.Logger

	streams map[string]*substream
	order   []*substream // creation order
	active  *substream   // cursor: stream of the most recent partition_start
}

// route stamps f and forwards it to its sub-stream.
func (r *router) route(ctx context.Context, f ir.Fragment) error {
	if !r.preserveSeq || f.Seq == 0 {
		f.Seq = r.clock.Next()
	}

	switch f.Kind {
	case ir.KindPartitionStart:
		k, err := r.extractor.Extract(f.Key)
		if err != nil {
			var se *Error
			if errors.As(err, &se) {
				se.Seq = f.Seq
			}
			return err
		}
		r.active = r.streamFor(ctx, k)

	case ir.KindStaticRow, ir.KindClusteringRow, ir.KindRangeTombstone, ir.KindPartitionEnd:
		if r.active == nil {
			return newProtocolError(r.extractor.Component(),
				fmt.Sprintf("%s at seq %d before any partition_start", f.Kind, f.Seq), f.Seq)
		}

	default:
		return newProtocolError(r.extractor.Component(),
			fmt.Sprintf("unknown fragment kind %d at seq %d", uint8(f.Kind), f.Seq), f.Seq)
	}

	return r.active.push(ctx, f)
}

// streamFor returns the sub-stream for k, creating it on first sight.
func (r *router) streamFor(ctx context.Context, k []byte) *substream {
	if h, ok := r.streams[string(k)]; ok {
		return h
	}
	h := newSubstream(ctx, bytes.Clone(k), r.schema, r.capacity, r.permit, r.consume)
	r.streams[string(k)] = h
	r.order = append(r.order, h)
	r.logger.Debug("sub-stream created",
		"component", r.extractor.Component(),
		"key", formatKey(k),
		"streams", len(r.order))
	return h
}

// finalize finishes (cause == nil) or aborts (cause != nil) every
// sub-stream and awaits all consumers in parallel. Returns the first
// consumer failure observed, wrapped with the failing key.
func (r *router) finalize(cause error) error {
	var g errgroup.Group
	for _, h := range r.order {
		h := h
		g.Go(func() error {
			h.finish(cause)
			if err := h.wait(); err != nil {
				return newConsumerError(r.extractor.Component(), h.key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

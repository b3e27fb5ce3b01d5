package split

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/pksplit/internal/ir"
)

// ConsumerFunc drains one key's sub-stream, e.g. writing it to storage.
//
// The splitter runs each ConsumerFunc in its own goroutine, started the
// moment the key is first seen, so the call never blocks the router. The
// consumer should read until Next returns io.EOF and then return nil, or
// return an error to fail the run. A consumer may stop reading early;
// fragments pushed after it returns are discarded.
type ConsumerFunc func(ctx context.Context, s *Stream) error

// Stream is the read side of one key's sub-stream.
//
// Fragments are observed in exactly the order they arrived from the source.
// Stream is owned by a single consumer goroutine and is not safe for
// concurrent use.
type Stream struct {
	h      *substream
	schema ir.Schema
}

// Key returns the routing key value this stream carries. Callers must not
// modify the returned slice.
func (s *Stream) Key() []byte { return s.h.key }

// Schema returns the record schema descriptor of the run.
func (s *Stream) Schema() ir.Schema { return s.schema }

// Next returns the next fragment. It returns io.EOF after the producer
// finished the stream normally, and an error wrapping ErrAborted if the
// producer gave up early.
func (s *Stream) Next(ctx context.Context) (ir.Fragment, error) {
	select {
	case f, ok := <-s.h.ch:
		if !ok {
			if cause := s.h.abortCause; cause != nil {
				return ir.Fragment{}, fmt.Errorf("%w: %w", ErrAborted, cause)
			}
			return ir.Fragment{}, io.EOF
		}
		s.h.permit.releaseUnit()
		return f, nil
	case <-ctx.Done():
		return ir.Fragment{}, ctx.Err()
	}
}

// substream is the producer-side handle for one key: a bounded channel
// paired with the consumer goroutine draining it.
//
// Thread-safety model:
//   - push, finish: router goroutine only (single producer)
//   - wait: any goroutine, after finish
//   - the consumer goroutine reads ch and writes err before closing done
type substream struct {
	key    []byte
	ch     chan ir.Fragment
	done   chan struct{} // closed when the consumer returns
	err    error         // consumer outcome; valid after done is closed
	permit *Permit
	lease  *lease

	finished   bool  // producer side closed
	abortCause error // set before ch is closed when aborting

	pushed  int64
	dropped int64
}

// newSubstream allocates the channel, takes a permit lease and starts the
// consumer. The consumer runs concurrently from this point.
func newSubstream(ctx context.Context, key []byte, schema ir.Schema, capacity int, permit *Permit, consume ConsumerFunc) *substream {
	h := &substream{
		key:    key,
		ch:     make(chan ir.Fragment, capacity),
		done:   make(chan struct{}),
		permit: permit,
		lease:  permit.takeLease(),
	}
	go h.run(ctx, consume, &Stream{h: h, schema: schema})
	return h
}

func (h *substream) run(ctx context.Context, consume ConsumerFunc, s *Stream) {
	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("consumer panic: %v", r)
		}
		h.lease.release()
		close(h.done)
		h.discard()
	}()
	h.err = consume(ctx, s)
}

// discard drains whatever the router still pushes after the consumer
// returned, returning permit units, until finish closes the channel.
func (h *substream) discard() {
	for range h.ch {
		h.permit.releaseUnit()
	}
}

// terminated reports whether the consumer already returned.
func (h *substream) terminated() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// push hands f to the consumer, blocking while the buffer is full. Pushing
// to a stream whose consumer already returned discards f and succeeds; the
// consumer's outcome is reported by wait.
func (h *substream) push(ctx context.Context, f ir.Fragment) error {
	if h.terminated() {
		h.dropped++
		return nil
	}
	if err := h.permit.acquireUnit(ctx); err != nil {
		return err
	}
	select {
	case h.ch <- f:
		h.pushed++
		return nil
	case <-h.done:
		h.permit.releaseUnit()
		h.dropped++
		return nil
	case <-ctx.Done():
		h.permit.releaseUnit()
		return ctx.Err()
	}
}

// finish closes the producer side exactly once. A nil cause signals a
// normal end of stream; a non-nil cause makes the consumer's Next return
// ErrAborted. Finishing a stream whose consumer already terminated raises
// nothing and delivers nothing.
func (h *substream) finish(cause error) {
	if h.finished {
		return
	}
	h.finished = true
	h.abortCause = cause
	close(h.ch)
}

// wait blocks until the consumer goroutine returns and yields its outcome.
func (h *substream) wait() error {
	<-h.done
	return h.err
}

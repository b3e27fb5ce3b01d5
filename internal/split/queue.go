package split

import (
	"context"
	"io"
	"sync"

	"github.com/roach88/pksplit/internal/ir"
)

// QueueSource is a goroutine-safe FIFO Source fed by producers.
//
// Producers Enqueue fragments from any goroutine and then Close (clean end)
// or Fail (source error). The splitter's Run loop consumes with Next.
//
// The queue is unbounded so producers never block on a slow splitter;
// backpressure toward consumers is applied downstream by the sub-stream
// buffers and the permit budget.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in Next (prevents goroutine hangs on context cancellation).
type QueueSource struct {
	schema ir.Schema
	permit *Permit

	mu        sync.Mutex
	fragments []ir.Fragment
	closed    bool
	err       error
	signal    chan struct{} // Signals fragment availability (buffered, size 1)
}

// NewQueueSource creates an empty queue source.
func NewQueueSource(schema ir.Schema, permit *Permit) *QueueSource {
	return &QueueSource{
		schema:    schema,
		permit:    permit,
		fragments: make([]ir.Fragment, 0, 64),
		signal:    make(chan struct{}, 1),
	}
}

// Schema implements Source.
func (q *QueueSource) Schema() ir.Schema { return q.schema }

// Permit implements Source.
func (q *QueueSource) Permit() *Permit { return q.permit }

// Enqueue adds fragments to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *QueueSource) Enqueue(fragments ...ir.Fragment) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.fragments = append(q.fragments, fragments...)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Close signals a clean end of input. Fragments already enqueued are still
// delivered, then Next returns io.EOF.
func (q *QueueSource) Close() {
	q.terminate(nil)
}

// Fail terminates the source with err. Fragments enqueued before the
// failure are still delivered, then Next returns err.
func (q *QueueSource) Fail(err error) {
	q.terminate(err)
}

func (q *QueueSource) terminate(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return // Already closed
	}
	q.closed = true
	q.err = err
	close(q.signal) // Wakes all waiters
}

// Next implements Source. Blocks until a fragment is available, the queue
// is terminated, or ctx is done.
func (q *QueueSource) Next(ctx context.Context) (ir.Fragment, error) {
	for {
		if f, ok, err := q.tryDequeue(); ok || err != nil {
			return f, err
		}
		select {
		case <-ctx.Done():
			return ir.Fragment{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// tryDequeue removes the front fragment without blocking. Reports the
// terminal error (io.EOF or the failure) once the queue is closed and empty.
func (q *QueueSource) tryDequeue() (ir.Fragment, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.fragments) == 0 {
		if !q.closed {
			return ir.Fragment{}, false, nil
		}
		if q.err != nil {
			return ir.Fragment{}, false, q.err
		}
		return ir.Fragment{}, false, io.EOF
	}

	f := q.fragments[0]
	// Release the slot so the backing array does not pin fragment payloads
	q.fragments[0] = ir.Fragment{}
	if len(q.fragments) == 1 {
		q.fragments = q.fragments[:0]
	} else {
		q.fragments = q.fragments[1:]
	}
	return f, true, nil
}

// Len returns the number of fragments waiting.
func (q *QueueSource) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fragments)
}

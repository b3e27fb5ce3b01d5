package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/pksplit/internal/ir"
)

// objectSchema is the two-component schema used throughout the tests.
func objectSchema() ir.Schema {
	return ir.Schema{
		Keyspace:      "s3",
		Table:         "chunk",
		PartitionKey:  []ir.Column{{Name: "bucket", Type: "text"}, {Name: "object_id", Type: "blob"}},
		ClusteringKey: []ir.Column{{Name: "ix", Type: "int"}},
	}
}

// objectPartition builds one partition of object obj with n clustered rows.
func objectPartition(bucket, obj string, n int) []ir.Fragment {
	body := []ir.Fragment{ir.StaticRow(ir.Cell{Name: "owner", Value: []byte(bucket)})}
	for i := 0; i < n; i++ {
		body = append(body, ir.ClusteringRow(
			[][]byte{[]byte(fmt.Sprintf("%d", i))},
			ir.Cell{Name: "data", Value: []byte(fmt.Sprintf("%s/%s/%d", bucket, obj, i))},
		))
	}
	return Partition(ir.NewPartitionKey(bucket, obj), body...)
}

func concat(parts ...[]ir.Fragment) []ir.Fragment {
	var out []ir.Fragment
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects what every consumer observed.
type recorder struct {
	mu       sync.Mutex
	streams  map[string][]ir.Fragment
	order    []string // keys in consumer start order
	started  atomic.Int32
	aborted  map[string]error
	failKeys map[string]error
}

func newRecorder() *recorder {
	return &recorder{
		streams:  make(map[string][]ir.Fragment),
		aborted:  make(map[string]error),
		failKeys: make(map[string]error),
	}
}

// failOn makes the consumer for key return err after reading its first fragment.
func (r *recorder) failOn(key string, err error) *recorder {
	r.failKeys[key] = err
	return r
}

func (r *recorder) consume(ctx context.Context, s *Stream) error {
	key := string(s.Key())
	r.started.Add(1)
	r.mu.Lock()
	r.order = append(r.order, key)
	failErr := r.failKeys[key]
	r.mu.Unlock()

	for {
		f, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			r.mu.Lock()
			r.aborted[key] = err
			r.mu.Unlock()
			return err
		}
		r.mu.Lock()
		r.streams[key] = append(r.streams[key], f)
		r.mu.Unlock()
		if failErr != nil {
			return failErr
		}
	}
}

func (r *recorder) fragments(key string) []ir.Fragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Fragment(nil), r.streams[key]...)
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.streams))
	for k := range r.streams {
		keys = append(keys, k)
	}
	return keys
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, fs := range r.streams {
		n += len(fs)
	}
	return n
}

// partitionKeysOf returns the object component of every partition_start in fs.
func partitionKeysOf(fs []ir.Fragment) []string {
	var out []string
	for _, f := range fs {
		if f.Kind == ir.KindPartitionStart {
			out = append(out, string(f.Key[1]))
		}
	}
	return out
}

// strictSource fails the test (via a flag) if it is ever read.
type strictSource struct {
	SliceSource
	reads atomic.Int32
}

func (s *strictSource) Next(ctx context.Context) (ir.Fragment, error) {
	s.reads.Add(1)
	return s.SliceSource.Next(ctx)
}

// Package testutil holds fixtures shared by package tests: a two-component
// object schema, partition builders and a recording consumer.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// ObjectSchema returns s3.chunk, partitioned by (bucket, object_id) and
// clustered by ix.
func ObjectSchema() ir.Schema {
	return ir.Schema{
		Keyspace: "s3",
		Table:    "chunk",
		PartitionKey: []ir.Column{
			{Name: "bucket", Type: "text"},
			{Name: "object_id", Type: "blob"},
		},
		ClusteringKey: []ir.Column{{Name: "ix", Type: "int"}},
	}
}

// ObjectPartition builds one unstamped partition of object obj with a static
// row and n clustered rows.
func ObjectPartition(bucket, obj string, n int) []ir.Fragment {
	body := []ir.Fragment{ir.StaticRow(ir.Cell{Name: "owner", Value: []byte(bucket)})}
	for i := 0; i < n; i++ {
		body = append(body, ir.ClusteringRow(
			[][]byte{[]byte(fmt.Sprintf("%04d", i))},
			ir.Cell{Name: "data", Value: []byte(fmt.Sprintf("%s/%s/%d", bucket, obj, i))},
		))
	}
	return split.Partition(ir.NewPartitionKey(bucket, obj), body...)
}

// Objects concatenates one partition per object name, n rows each.
func Objects(bucket string, n int, objs ...string) []ir.Fragment {
	var out []ir.Fragment
	for _, o := range objs {
		out = append(out, ObjectPartition(bucket, o, n)...)
	}
	return out
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Collector is a consumer that records every stream it drains.
type Collector struct {
	mu      sync.Mutex
	streams map[string][]ir.Fragment
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{streams: make(map[string][]ir.Fragment)}
}

// Consume implements split.ConsumerFunc.
func (c *Collector) Consume(ctx context.Context, s *split.Stream) error {
	key := string(s.Key())
	for {
		f, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.streams[key] = append(c.streams[key], f)
		c.mu.Unlock()
	}
}

// Keys returns the recorded keys, sorted.
func (c *Collector) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.streams))
	for k := range c.streams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fragments returns a copy of what key's stream delivered.
func (c *Collector) Fragments(key string) []ir.Fragment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ir.Fragment(nil), c.streams[key]...)
}

package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// Builder drains sub-streams into segments and checks that every partition
// it packs belongs to the stream's routing value.
//
// A Builder holds no per-stream state and may be shared by all consumer
// goroutines of a run.
type Builder struct {
	extractor   *split.KeyExtractor
	compression Compression
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCompression sets the body compression. Default: DefaultCompression.
func WithCompression(c Compression) BuilderOption {
	return func(b *Builder) {
		b.compression = c
	}
}

// NewBuilder returns a builder for segments of schema split by component.
func NewBuilder(schema ir.Schema, component string, opts ...BuilderOption) (*Builder, error) {
	x, err := split.NewKeyExtractor(schema, component)
	if err != nil {
		return nil, err
	}
	b := &Builder{extractor: x, compression: DefaultCompression}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Component returns the routing component segments are built for.
func (b *Builder) Component() string { return b.extractor.Component() }

// Compression returns the configured body compression.
func (b *Builder) Compression() Compression { return b.compression }

// Build reads s to the end and packs everything into one segment. If the
// stream is aborted the abort error is returned and no segment is built.
func (b *Builder) Build(ctx context.Context, s *split.Stream) (*Segment, error) {
	var fragments []ir.Fragment
	for {
		f, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	return b.BuildFragments(s.Key(), fragments)
}

// BuildFragments packs fragments already in memory. Every partition_start
// must carry key at the routing component.
func (b *Builder) BuildFragments(key []byte, fragments []ir.Fragment) (*Segment, error) {
	for _, f := range fragments {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("fragment seq %d: %w", f.Seq, err)
		}
		if f.Kind != ir.KindPartitionStart {
			continue
		}
		v, err := b.extractor.Extract(f.Key)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(v, key) {
			return nil, fmt.Errorf("partition %v at seq %d has %s %q, segment key is %q",
				f.Key.Strings(), f.Seq, b.extractor.Component(), v, key)
		}
	}
	return Encode(b.extractor.Component(), bytes.Clone(key), fragments, b.compression)
}

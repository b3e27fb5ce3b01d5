// Package fragfile reads partition fragments from YAML files.
//
// A fragment file is a YAML stream with one document per partition:
//
//	key: [bucket-1, object-a]
//	static: {owner: alice}
//	tombstones:
//	  - {start: ["0000"], end: ["0009"]}
//	rows:
//	  - clustering: ["0010"]
//	    cells: {data: hello}
//	---
//	key: [bucket-1, object-b]
//	...
//
// A document expands to partition_start, the static row (if any cells),
// the range tombstones, the clustering rows and partition_end, in that
// order. Values are strings; use !!binary for raw bytes.
package fragfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// Partition is one partition as written in a fragment file.
type Partition struct {
	Key        []string    `yaml:"key"`
	Static     Cells       `yaml:"static"`
	Tombstones []Tombstone `yaml:"tombstones"`
	Rows       []Row       `yaml:"rows"`
}

// Row is one clustering row.
type Row struct {
	Clustering []string `yaml:"clustering"`
	Cells      Cells    `yaml:"cells"`
}

// Tombstone is a range tombstone over [Start, End].
type Tombstone struct {
	Start []string `yaml:"start"`
	End   []string `yaml:"end"`
}

// Cells decodes a YAML mapping of name to value into cells, keeping
// document order.
type Cells []ir.Cell

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Cells) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: cells must be a mapping of name to value", value.Line)
	}
	cells := make(Cells, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name, v string
		if err := value.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("cell %q: %w", name, err)
		}
		cells = append(cells, ir.Cell{Name: name, Value: []byte(v)})
	}
	*c = cells
	return nil
}

// Fragments expands the partition into its fragment sequence.
func (d Partition) Fragments() []ir.Fragment {
	body := make([]ir.Fragment, 0, 1+len(d.Tombstones)+len(d.Rows))
	if len(d.Static) > 0 {
		body = append(body, ir.StaticRow(d.Static...))
	}
	for _, t := range d.Tombstones {
		body = append(body, ir.RangeTombstone(byteComponents(t.Start), byteComponents(t.End)))
	}
	for _, r := range d.Rows {
		body = append(body, ir.ClusteringRow(byteComponents(r.Clustering), r.Cells...))
	}
	return split.Partition(ir.NewPartitionKey(d.Key...), body...)
}

func byteComponents(ss []string) [][]byte {
	if len(ss) == 0 {
		return nil
	}
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// Source reads a fragment file lazily, one document at a time. It
// implements split.Source. Unknown fields are rejected.
type Source struct {
	schema  ir.Schema
	permit  *split.Permit
	dec     *yaml.Decoder
	pending []ir.Fragment
	doc     int
	done    bool
}

// NewSource creates a source reading partition documents from r.
func NewSource(r io.Reader, schema ir.Schema, permit *split.Permit) *Source {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return &Source{schema: schema, permit: permit, dec: dec}
}

// Schema implements split.Source.
func (s *Source) Schema() ir.Schema { return s.schema }

// Permit implements split.Source.
func (s *Source) Permit() *split.Permit { return s.permit }

// Documents returns how many documents have been decoded so far.
func (s *Source) Documents() int { return s.doc }

// Next implements split.Source.
func (s *Source) Next(ctx context.Context) (ir.Fragment, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return ir.Fragment{}, err
		}
		if s.done {
			return ir.Fragment{}, io.EOF
		}

		var doc Partition
		err := s.dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			s.done = true
			continue
		}
		s.doc++
		if err != nil {
			return ir.Fragment{}, fmt.Errorf("document %d: %w", s.doc, err)
		}
		if len(doc.Key) == 0 {
			return ir.Fragment{}, fmt.Errorf("document %d: key is required", s.doc)
		}
		s.pending = doc.Fragments()
	}

	f := s.pending[0]
	s.pending = s.pending[1:]
	return f, nil
}

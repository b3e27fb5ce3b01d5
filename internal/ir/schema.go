package ir

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Column describes one named key component.
type Column struct {
	Name string `json:"name" yaml:"name" cbor:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty" cbor:"type,omitempty"`
}

// Schema is the record schema descriptor shared by every partition of one
// split run. It is immutable once handed to the splitter.
//
// INVARIANTS:
//   - PartitionKey is non-empty
//   - component names are unique within PartitionKey and within ClusteringKey
type Schema struct {
	Keyspace      string   `json:"keyspace" yaml:"keyspace" cbor:"keyspace"`
	Table         string   `json:"table" yaml:"table" cbor:"table"`
	PartitionKey  []Column `json:"partition_key" yaml:"partition_key" cbor:"partition_key"`
	ClusteringKey []Column `json:"clustering_key,omitempty" yaml:"clustering_key,omitempty" cbor:"clustering_key,omitempty"`
}

// QualifiedName returns "keyspace.table".
func (s Schema) QualifiedName() string {
	return s.Keyspace + "." + s.Table
}

// Validate checks the schema invariants.
func (s Schema) Validate() error {
	if len(s.PartitionKey) == 0 {
		return fmt.Errorf("schema %s: partition key must have at least one component", s.QualifiedName())
	}
	if err := checkUniqueNames("partition key", s.PartitionKey); err != nil {
		return fmt.Errorf("schema %s: %w", s.QualifiedName(), err)
	}
	if err := checkUniqueNames("clustering key", s.ClusteringKey); err != nil {
		return fmt.Errorf("schema %s: %w", s.QualifiedName(), err)
	}
	return nil
}

// PartitionKeyIndex returns the position of the named partition-key
// component, or false if the schema has no such component.
func (s Schema) PartitionKeyIndex(name string) (int, bool) {
	want := normalizeName(name)
	for i, col := range s.PartitionKey {
		if normalizeName(col.Name) == want {
			return i, true
		}
	}
	return -1, false
}

// PartitionKeyNames returns the component names in declaration order.
func (s Schema) PartitionKeyNames() []string {
	names := make([]string, len(s.PartitionKey))
	for i, col := range s.PartitionKey {
		names[i] = col.Name
	}
	return names
}

func checkUniqueNames(what string, cols []Column) error {
	seen := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		if col.Name == "" {
			return fmt.Errorf("%s component has empty name", what)
		}
		n := normalizeName(col.Name)
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate %s component %q", what, col.Name)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// normalizeName puts a component name in NFC so that visually identical
// names written with different code point sequences compare equal.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

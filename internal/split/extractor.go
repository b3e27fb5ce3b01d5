package split

import (
	"fmt"

	"github.com/roach88/pksplit/internal/ir"
)

// KeyExtractor pulls the routing component out of a full partition key.
//
// The component index is resolved once against the schema at construction;
// Extract never looks names up again.
type KeyExtractor struct {
	component string
	index     int
	width     int
}

// NewKeyExtractor resolves component against the schema's partition key.
// Returns a configuration error if the schema is invalid or has no such
// component. This is a setup-time failure: no input has been read yet.
func NewKeyExtractor(schema ir.Schema, component string) (*KeyExtractor, error) {
	if err := schema.Validate(); err != nil {
		return nil, newConfigError(component, "invalid schema", err)
	}
	idx, ok := schema.PartitionKeyIndex(component)
	if !ok {
		return nil, newConfigError(component,
			fmt.Sprintf("no partition key component %q in %s (have %v)",
				component, schema.QualifiedName(), schema.PartitionKeyNames()), nil)
	}
	return &KeyExtractor{
		component: component,
		index:     idx,
		width:     len(schema.PartitionKey),
	}, nil
}

// Component returns the routing component name.
func (x *KeyExtractor) Component() string { return x.component }

// Index returns the resolved component position.
func (x *KeyExtractor) Index() int { return x.index }

// Extract returns the routing value of key. The returned slice aliases key.
func (x *KeyExtractor) Extract(key ir.PartitionKey) ([]byte, error) {
	if len(key) != x.width {
		return nil, newProtocolError(x.component,
			fmt.Sprintf("partition key has %d components, schema declares %d", len(key), x.width), 0)
	}
	v, _ := key.Component(x.index)
	return v, nil
}

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectSchema() Schema {
	return Schema{
		Keyspace:      "s3",
		Table:         "chunk",
		PartitionKey:  []Column{{Name: "bucket", Type: "text"}, {Name: "object_id", Type: "blob"}},
		ClusteringKey: []Column{{Name: "ix", Type: "int"}},
	}
}

func TestSchema_Validate(t *testing.T) {
	require.NoError(t, objectSchema().Validate())
}

func TestSchema_Validate_EmptyPartitionKey(t *testing.T) {
	s := Schema{Keyspace: "ks", Table: "t"}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one component")
}

func TestSchema_Validate_DuplicateComponent(t *testing.T) {
	s := objectSchema()
	s.PartitionKey = append(s.PartitionKey, Column{Name: "bucket"})

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate partition key component "bucket"`)
}

func TestSchema_Validate_DuplicateAfterNormalization(t *testing.T) {
	// precomposed e-acute vs "e" + combining acute accent
	s := Schema{
		Keyspace:     "ks",
		Table:        "t",
		PartitionKey: []Column{{Name: "caf\u00e9"}, {Name: "cafe\u0301"}},
	}
	require.Error(t, s.Validate())
}

func TestSchema_PartitionKeyIndex(t *testing.T) {
	s := objectSchema()

	idx, ok := s.PartitionKeyIndex("object_id")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = s.PartitionKeyIndex("bucket")
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = s.PartitionKeyIndex("missing")
	assert.False(t, ok)

	// Clustering columns are not routing candidates
	_, ok = s.PartitionKeyIndex("ix")
	assert.False(t, ok)
}

func TestSchema_QualifiedName(t *testing.T) {
	assert.Equal(t, "s3.chunk", objectSchema().QualifiedName())
	assert.Equal(t, []string{"bucket", "object_id"}, objectSchema().PartitionKeyNames())
}

package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pksplit/internal/ir"
)

func TestLoadSchema_File(t *testing.T) {
	fx := newFixture(t)

	res, err := LoadSchema(fx.schema)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, ir.Schema{
		Keyspace:      "s3",
		Table:         "chunk",
		PartitionKey:  []ir.Column{{Name: "bucket"}, {Name: "object_id", Type: "blob"}},
		ClusteringKey: []ir.Column{{Name: "ix", Type: "int"}},
	}, res.Schema)
	assert.True(t, res.CUEValue.Exists())
}

func TestLoadSchema_DirectoryUnifiesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "table.cue", "package schema\n\nschema: keyspace: \"s3\"\nschema: table: \"chunk\"\n")
	writeFile(t, dir, "keys.cue", "package schema\n\nschema: partition_key: [\"bucket\", \"object_id\"]\n")

	res, err := LoadSchema(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FileCount)
	assert.Equal(t, "s3.chunk", res.Schema.QualifiedName())
	assert.Equal(t, []string{"bucket", "object_id"}, res.Schema.PartitionKeyNames())
	assert.Empty(t, res.Schema.ClusteringKey)
}

func TestLoadSchema_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "not a cue file",
			file:     "schema.yaml",
			content:  "schema: {}\n",
			wantCode: ErrCodeNoFiles,
			wantMsg:  "not a CUE file",
		},
		{
			name:     "no schema struct",
			file:     "schema.cue",
			content:  "package schema\n\nother: 1\n",
			wantCode: ErrCodeSchema,
			wantMsg:  "no schema struct found",
		},
		{
			name:     "column without name",
			file:     "schema.cue",
			content:  "package schema\n\nschema: {\n\tkeyspace: \"s3\"\n\ttable: \"chunk\"\n\tpartition_key: [{type: \"int\"}]\n}\n",
			wantCode: ErrCodeSchema,
			wantMsg:  "must be a string or a struct with a name field",
		},
		{
			name:     "duplicate component",
			file:     "schema.cue",
			content:  "package schema\n\nschema: {\n\tkeyspace: \"s3\"\n\ttable: \"chunk\"\n\tpartition_key: [\"a\", \"a\"]\n}\n",
			wantCode: ErrCodeSchema,
			wantMsg:  "partition key",
		},
		{
			name:     "cue syntax error",
			file:     "schema.cue",
			content:  "package schema\n\nschema: {\n",
			wantCode: ErrCodeLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			_, err := LoadSchema(path)
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.wantCode, loadErr.Code)
			assert.Contains(t, loadErr.Message, tt.wantMsg)
		})
	}
}

func TestLoadError_Error(t *testing.T) {
	err := &LoadError{Code: ErrCodeSchema, Message: "table is required"}
	assert.Equal(t, "E007: table is required", err.Error())
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package schema\n")
	writeFile(t, dir, "nested/b.cue", "package schema\n")
	writeFile(t, dir, "notes.txt", "ignored\n")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

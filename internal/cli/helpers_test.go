package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testSchemaCUE = `package schema

schema: {
	keyspace: "s3"
	table:    "chunk"
	partition_key: ["bucket", {name: "object_id", type: "blob"}]
	clustering_key: [{name: "ix", type: "int"}]
}
`

const testInputYAML = `key: [bkt, A]
static: {owner: alice}
rows:
  - clustering: ["0000"]
    cells: {data: a0}
---
key: [bkt, B]
tombstones:
  - {start: ["0000"], end: ["0009"]}
rows:
  - clustering: ["0010"]
    cells: {data: b10}
---
key: [bkt, A]
rows:
  - clustering: ["0001"]
    cells: {data: a1}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fixture is a temp dir holding a schema, an input file and a database path.
type fixture struct {
	dir    string
	schema string
	input  string
	db     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		dir:    dir,
		schema: writeFile(t, dir, "schema/schema.cue", testSchemaCUE),
		input:  writeFile(t, dir, "input.yaml", testInputYAML),
		db:     filepath.Join(dir, "chunks.db"),
	}
}

// testCommand returns a bare command with captured output, for calling the
// run* functions directly.
func testCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	return cmd, out, errOut
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals the data of a JSON envelope into v.
func decodeData(t *testing.T, raw string, v any) CLIResponse {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &resp), raw)
	if v != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return CLIResponse{Status: resp.Status, Error: resp.Error}
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pksplit/internal/split"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Component string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Table         string   `json:"table"`
	PartitionKey  []string `json:"partition_key"`
	ClusteringKey []string `json:"clustering_key"`
	Component     string   `json:"component,omitempty"`
	Index         int      `json:"index"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate a schema descriptor",
		Long: `Load and validate the CUE schema descriptor in a file or directory
without reading any data. With --component, also check that the component
exists and report its position in the partition key.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Component, "component", "", "partition-key component to resolve")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	schema, err := loadSchemaOrFail(f, path)
	if err != nil {
		return err
	}

	res := ValidationResult{
		Table:         schema.QualifiedName(),
		PartitionKey:  schema.PartitionKeyNames(),
		ClusteringKey: []string{},
	}
	for _, c := range schema.ClusteringKey {
		res.ClusteringKey = append(res.ClusteringKey, c.Name)
	}
	if opts.Component != "" {
		x, err := split.NewKeyExtractor(schema, opts.Component)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeSchema, "invalid component", err)
		}
		res.Component = x.Component()
		res.Index = x.Index()
	}

	return f.Result(res, func(w io.Writer) {
		fmt.Fprintf(w, "Schema %s is valid\n", res.Table)
		fmt.Fprintf(w, "  partition key:  (%s)\n", strings.Join(res.PartitionKey, ", "))
		fmt.Fprintf(w, "  clustering key: (%s)\n", strings.Join(res.ClusteringKey, ", "))
		if res.Component != "" {
			fmt.Fprintf(w, "  routing by %s at index %d\n", res.Component, res.Index)
		}
	})
}

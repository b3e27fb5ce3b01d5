package harness

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pksplit/internal/fragfile"
	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// Scenario defines a conformance test scenario: an input stream, the
// consumers that misbehave, and what the split must look like afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the record schema of the input.
	Schema ir.Schema `yaml:"schema"`

	// Component is the partition-key component to split by.
	Component string `yaml:"component"`

	// Capacity overrides the per-stream channel capacity. Zero keeps the
	// default.
	Capacity int `yaml:"capacity,omitempty"`

	// Budget bounds buffered fragments across all streams. Zero means
	// unlimited.
	Budget int64 `yaml:"budget,omitempty"`

	// Partitions is the input, in arrival order.
	Partitions []fragfile.Partition `yaml:"partitions"`

	// Failures makes the consumers of chosen keys fail.
	Failures []ConsumerFailure `yaml:"failures,omitempty"`

	// SourceError makes the input fail part way through.
	SourceError *SourceError `yaml:"source_error,omitempty"`

	// Assertions validate the outcome.
	// Supported types: stream_count, stream_order, partition_order,
	// error_code, fragments_total
	Assertions []Assertion `yaml:"assertions"`
}

// ConsumerFailure makes the consumer of one routing value return an error
// after reading After fragments.
type ConsumerFailure struct {
	Key     string `yaml:"key"`
	After   int    `yaml:"after"`
	Message string `yaml:"message"`
}

// SourceError makes the source fail after delivering After fragments.
type SourceError struct {
	After   int64  `yaml:"after"`
	Message string `yaml:"message"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stream_count": exactly Count sub-streams were created
	// - "stream_order": sub-streams were created in the order of Keys
	// - "partition_order": the stream of Key saw Partitions, in order
	// - "error_code": the run failed with Code ("none" for success)
	// - "fragments_total": Count fragments were routed
	Type string `yaml:"type"`

	// Count is the expected number (stream_count, fragments_total).
	Count int64 `yaml:"count,omitempty"`

	// Keys is the expected stream creation order (stream_order).
	Keys []string `yaml:"keys,omitempty"`

	// Key is the routing value of the stream checked (partition_order).
	Key string `yaml:"key,omitempty"`

	// Partitions are the expected partition keys (partition_order).
	Partitions [][]string `yaml:"partitions,omitempty"`

	// Code is the expected error code (error_code).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertStreamCount    = "stream_count"
	AssertStreamOrder    = "stream_order"
	AssertPartitionOrder = "partition_order"
	AssertErrorCode      = "error_code"
	AssertFragmentsTotal = "fragments_total"
)

// CodeNone is the error_code value of a successful run.
const CodeNone = "none"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(bytes.NewReader(data))
}

// ParseScenario parses and validates a scenario.
func ParseScenario(r io.Reader) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if err := s.Schema.Validate(); err != nil {
		return err
	}
	if s.Component == "" {
		return fmt.Errorf("component is required")
	}
	if s.Capacity < 0 {
		return fmt.Errorf("capacity must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, p := range s.Partitions {
		if len(p.Key) == 0 {
			return fmt.Errorf("partitions[%d]: key is required", i)
		}
	}

	seen := make(map[string]bool)
	for i, f := range s.Failures {
		if f.Key == "" {
			return fmt.Errorf("failures[%d]: key is required", i)
		}
		if seen[f.Key] {
			return fmt.Errorf("failures[%d]: duplicate key %q", i, f.Key)
		}
		seen[f.Key] = true
		if f.After < 0 {
			return fmt.Errorf("failures[%d]: after must be non-negative", i)
		}
		if f.Message == "" {
			return fmt.Errorf("failures[%d]: message is required", i)
		}
	}

	if se := s.SourceError; se != nil {
		if se.After < 0 {
			return fmt.Errorf("source_error: after must be non-negative")
		}
		if se.Message == "" {
			return fmt.Errorf("source_error: message is required")
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStreamCount, AssertFragmentsTotal:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStreamOrder:
		if len(a.Keys) == 0 {
			return fmt.Errorf("assertions[%d]: keys list is required for stream_order", index)
		}
	case AssertPartitionOrder:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for partition_order", index)
		}
		if len(a.Partitions) == 0 {
			return fmt.Errorf("assertions[%d]: partitions list is required for partition_order", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
		if !validCode(a.Code) {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validCode(code string) bool {
	switch split.ErrorCode(code) {
	case split.ErrCodeConfig, split.ErrCodeProtocol, split.ErrCodeConsumer, split.ErrCodeUpstream:
		return true
	}
	return code == CodeNone
}

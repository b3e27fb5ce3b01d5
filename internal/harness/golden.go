package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pksplit/internal/ir"
)

// TraceSnapshot captures what every consumer of a scenario execution saw.
// All fields use canonical JSON serialization for deterministic comparison.
//
// Dropped is left out: how many fragments reach a consumer after it
// returned depends on scheduling.
type TraceSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	ErrorCode    string        `json:"error_code"`
	Fragments    int64         `json:"fragments"`
	Streams      []StreamTrace `json:"streams"`
}

// NewTraceSnapshot builds the snapshot of result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	code := string(result.ErrorCode)
	if code == "" {
		code = CodeNone
	}
	return TraceSnapshot{
		ScenarioName: scenarioName,
		ErrorCode:    code,
		Fragments:    result.Stats.Fragments,
		Streams:      result.Streams,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	streams := make([]any, len(s.Streams))
	for i, st := range s.Streams {
		frags := make([]any, len(st.Fragments))
		for j, f := range st.Fragments {
			m := map[string]any{
				"seq":  f.Seq,
				"kind": f.Kind,
			}
			if f.Key != nil {
				m["key"] = f.Key
			}
			if f.Clustering != nil {
				m["clustering"] = f.Clustering
			}
			frags[j] = m
		}
		streams[i] = map[string]any{
			"key":       st.Key,
			"outcome":   st.Outcome,
			"fragments": frags,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"error_code":    s.ErrorCode,
		"fragments":     s.Fragments,
		"streams":       streams,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

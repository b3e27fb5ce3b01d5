package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// Harness is the test execution engine. It drives the real splitter with
// recording consumers, so every scenario exercises the same code path as
// production.
type Harness struct {
	failures map[string]ConsumerFailure
	logger   *slog.Logger

	mu      sync.Mutex
	streams map[string]StreamTrace
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Expand the scenario's partitions into fragments
// 2. Split them by the scenario's component with recording consumers
// 3. Collect one trace per stream in creation order
// 4. Evaluate assertions
//
// A configuration error (unknown component) is a scenario outcome, not a
// harness error: the result carries its code and no streams.
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		failures: make(map[string]ConsumerFailure, len(scenario.Failures)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		streams:  make(map[string]StreamTrace),
	}
	for _, f := range scenario.Failures {
		h.failures[f.Key] = f
	}

	var frags []ir.Fragment
	for _, p := range scenario.Partitions {
		frags = append(frags, p.Fragments()...)
	}
	var permit *split.Permit
	if scenario.Budget > 0 {
		permit = split.NewPermit(scenario.Name, scenario.Budget)
	}
	var src split.Source = split.NewSliceSource(scenario.Schema, permit, frags...)
	if se := scenario.SourceError; se != nil {
		src = &failingSource{Source: src, after: se.After, err: errors.New(se.Message)}
	}

	opts := []split.Option{split.WithLogger(h.logger)}
	if scenario.Capacity > 0 {
		opts = append(opts, split.WithChannelCapacity(scenario.Capacity))
	}

	result := NewResult()
	sp, err := split.New(scenario.Schema, permit, h.consume, scenario.Component, opts...)
	if err != nil {
		if !split.IsConfigError(err) {
			return nil, fmt.Errorf("failed to create splitter: %w", err)
		}
		result.Err = err
		result.ErrorCode = split.CodeOf(err)
	} else {
		result.Err = sp.Run(context.Background(), src)
		result.ErrorCode = split.CodeOf(result.Err)
		if result.Err != nil && result.ErrorCode == "" {
			return nil, fmt.Errorf("split failed without a code: %w", result.Err)
		}
		result.Stats = sp.Stats()
		for _, k := range sp.Keys() {
			result.Streams = append(result.Streams, h.streams[string(k)])
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// consume records every fragment of a stream, failing where the scenario
// says so.
func (h *Harness) consume(ctx context.Context, s *split.Stream) error {
	key := string(s.Key())
	trace := StreamTrace{Key: key, Outcome: OutcomeComplete, Fragments: []FragmentTrace{}}
	defer func() {
		h.mu.Lock()
		h.streams[key] = trace
		h.mu.Unlock()
	}()

	failure, failing := h.failures[key]
	for {
		if failing && len(trace.Fragments) == failure.After {
			trace.Outcome = OutcomeFailed
			return errors.New(failure.Message)
		}
		f, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			trace.Outcome = OutcomeAborted
			return err
		}
		trace.Fragments = append(trace.Fragments, traceFragment(f))
	}
}

// failingSource delivers after fragments of the wrapped source, then fails.
type failingSource struct {
	split.Source
	after     int64
	delivered int64
	err       error
}

func (s *failingSource) Next(ctx context.Context) (ir.Fragment, error) {
	if s.delivered >= s.after {
		return ir.Fragment{}, s.err
	}
	f, err := s.Source.Next(ctx)
	if err == nil {
		s.delivered++
	}
	return f, err
}

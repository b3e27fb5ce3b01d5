package harness

import (
	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// Stream outcomes as seen by the recording consumer.
const (
	OutcomeComplete = "complete" // reached end of stream
	OutcomeFailed   = "failed"   // returned an injected error
	OutcomeAborted  = "aborted"  // the producer gave up
)

// FragmentTrace is one fragment as a consumer received it.
type FragmentTrace struct {
	Seq        int64    `json:"seq"`
	Kind       string   `json:"kind"`
	Key        []string `json:"key,omitempty"`
	Clustering []string `json:"clustering,omitempty"`
}

func traceFragment(f ir.Fragment) FragmentTrace {
	t := FragmentTrace{Seq: f.Seq, Kind: f.Kind.String()}
	if f.Kind == ir.KindPartitionStart {
		t.Key = f.Key.Strings()
	}
	if len(f.Clustering) > 0 {
		t.Clustering = ir.PartitionKey(f.Clustering).Strings()
	}
	return t
}

// StreamTrace records everything one consumer received.
type StreamTrace struct {
	Key       string          `json:"key"`
	Outcome   string          `json:"outcome"`
	Fragments []FragmentTrace `json:"fragments"`
}

// Partitions returns the partition keys the stream saw, in arrival order.
func (s StreamTrace) Partitions() [][]string {
	var out [][]string
	for _, f := range s.Fragments {
		if f.Kind == ir.KindPartitionStart.String() {
			out = append(out, f.Key)
		}
	}
	return out
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every assertion held.
	Pass bool `json:"pass"`

	// Streams holds one trace per sub-stream, in creation order.
	Streams []StreamTrace `json:"streams"`

	// Stats are the splitter's counters.
	Stats split.Stats `json:"stats"`

	// ErrorCode is the code of the run's error, "" on success.
	ErrorCode split.ErrorCode `json:"error_code,omitempty"`

	// Err is the run's error, nil on success.
	Err error `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Streams: []StreamTrace{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Stream returns the trace of the stream for key.
func (r *Result) Stream(key string) (StreamTrace, bool) {
	for _, s := range r.Streams {
		if s.Key == key {
			return s, true
		}
	}
	return StreamTrace{}, false
}

// Keys returns the routing values in stream creation order.
func (r *Result) Keys() []string {
	keys := make([]string, len(r.Streams))
	for i, s := range r.Streams {
		keys[i] = s.Key
	}
	return keys
}

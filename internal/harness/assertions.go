package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Streams  []StreamTrace // Streams for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Streams) > 0 {
		fmt.Fprintf(&buf, "\nStreams:\n")
		for i, s := range e.Streams {
			fmt.Fprintf(&buf, "  [%d] %q %s, %d fragment(s)\n", i+1, s.Key, s.Outcome, len(s.Fragments))
		}
	}

	return buf.String()
}

// assertStreamCount checks that exactly Count sub-streams were created.
func assertStreamCount(result *Result, assertion Assertion) error {
	if int64(len(result.Streams)) != assertion.Count {
		return &AssertionError{
			Type:     AssertStreamCount,
			Expected: fmt.Sprintf("%d stream(s)", assertion.Count),
			Actual:   fmt.Sprintf("%d stream(s)", len(result.Streams)),
			Streams:  result.Streams,
		}
	}
	return nil
}

// assertStreamOrder checks the creation order of sub-streams. The match is
// exact: every stream must be listed.
func assertStreamOrder(result *Result, assertion Assertion) error {
	actual := result.Keys()
	if !slices.Equal(actual, assertion.Keys) {
		return &AssertionError{
			Type:     AssertStreamOrder,
			Expected: fmt.Sprintf("streams in order %q", assertion.Keys),
			Actual:   fmt.Sprintf("streams in order %q", actual),
			Streams:  result.Streams,
		}
	}
	return nil
}

// assertPartitionOrder checks the partitions one stream received, in
// arrival order.
func assertPartitionOrder(result *Result, assertion Assertion) error {
	s, ok := result.Stream(assertion.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertPartitionOrder,
			Expected: fmt.Sprintf("stream %q", assertion.Key),
			Actual:   "no such stream",
			Streams:  result.Streams,
		}
	}

	actual := s.Partitions()
	if !slices.EqualFunc(actual, assertion.Partitions, func(a, b []string) bool { return slices.Equal(a, b) }) {
		return &AssertionError{
			Type:     AssertPartitionOrder,
			Expected: fmt.Sprintf("stream %q saw partitions %q", assertion.Key, assertion.Partitions),
			Actual:   fmt.Sprintf("stream %q saw partitions %q", assertion.Key, actual),
			Streams:  result.Streams,
		}
	}
	return nil
}

// assertErrorCode checks the run's error code, "none" meaning success.
func assertErrorCode(result *Result, assertion Assertion) error {
	actual := string(result.ErrorCode)
	if actual == "" {
		actual = CodeNone
	}
	if actual != assertion.Code {
		detail := actual
		if result.Err != nil {
			detail = fmt.Sprintf("%s (%v)", actual, result.Err)
		}
		return &AssertionError{
			Type:     AssertErrorCode,
			Expected: assertion.Code,
			Actual:   detail,
		}
	}
	return nil
}

// assertFragmentsTotal checks how many fragments the splitter routed.
func assertFragmentsTotal(result *Result, assertion Assertion) error {
	if result.Stats.Fragments != assertion.Count {
		return &AssertionError{
			Type:     AssertFragmentsTotal,
			Expected: fmt.Sprintf("%d fragment(s) routed", assertion.Count),
			Actual:   fmt.Sprintf("%d fragment(s) routed", result.Stats.Fragments),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStreamCount:
			err = assertStreamCount(result, assertion)
		case AssertStreamOrder:
			err = assertStreamOrder(result, assertion)
		case AssertPartitionOrder:
			err = assertPartitionOrder(result, assertion)
		case AssertErrorCode:
			err = assertErrorCode(result, assertion)
		case AssertFragmentsTotal:
			err = assertFragmentsTotal(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

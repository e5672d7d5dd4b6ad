package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/framesched/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Trace    []ir.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] frame=%d %s %s %s\n",
				event.Seq, event.Frame, event.Segment, event.Kind, event.Process)
		}
	}
	return buf.String()
}

// eventPattern selects events by kind and process. Empty fields match
// anything.
type eventPattern struct {
	kind    string
	process string
}

// parsePattern splits "kind:process" or a bare "kind".
func parsePattern(s string) eventPattern {
	kind, process, _ := strings.Cut(s, ":")
	return eventPattern{kind: kind, process: process}
}

func (p eventPattern) matches(e ir.Event) bool {
	if p.kind != "" && e.Kind != p.kind {
		return false
	}
	return matchProcess(p.process, e.Process)
}

func (p eventPattern) String() string {
	switch {
	case p.process == "":
		return p.kind
	case p.kind == "":
		return "*:" + p.process
	default:
		return p.kind + ":" + p.process
	}
}

// assertTraceContains checks that at least one event matches kind and
// process, and the frame when one is given.
func assertTraceContains(trace []ir.Event, assertion Assertion) error {
	p := eventPattern{kind: assertion.Kind, process: assertion.Process}
	for _, event := range trace {
		if !p.matches(event) {
			continue
		}
		if assertion.Frame != nil && event.Frame != *assertion.Frame {
			continue
		}
		return nil
	}

	expected := p.String()
	if assertion.Frame != nil {
		expected = fmt.Sprintf("%s at frame %d", expected, *assertion.Frame)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the patterns match events in the given
// order. Intervening events are allowed.
func assertTraceOrder(trace []ir.Event, assertion Assertion) error {
	next := 0
	var lastSeq int64
	for i, raw := range assertion.Events {
		p := parsePattern(raw)
		found := false
		for next < len(trace) {
			event := trace[next]
			next++
			if p.matches(event) {
				found = true
				lastSeq = event.Seq
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("%s not found", raw)
			if i > 0 {
				actual = fmt.Sprintf("%s not found after %s (seq %d)", raw, assertion.Events[i-1], lastSeq)
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []ir.Event, assertion Assertion) error {
	p := eventPattern{kind: assertion.Kind, process: assertion.Process}
	count := 0
	for _, event := range trace {
		if p.matches(event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, p),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the state a process instance ended in.
func assertFinalState(final map[string]string, assertion Assertion) error {
	actual, ok := final[assertion.Process]
	if !ok {
		actual = "unknown process"
	}
	if actual != assertion.State {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s is %s", assertion.Process, assertion.State),
			Actual:   actual,
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
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Final, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

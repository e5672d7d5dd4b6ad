package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/ir"
)

func sampleTrace() []ir.Event {
	return []ir.Event{
		{Seq: 1, Frame: 0, Kind: "started", Process: "a"},
		{Seq: 2, Frame: 0, Kind: "started", Process: "b"},
		{Seq: 3, Frame: 1, Kind: "log", Process: "a"},
		{Seq: 4, Frame: 2, Kind: "completed", Process: "a"},
		{Seq: 5, Frame: 2, Kind: "started", Process: "a#2"},
		{Seq: 6, Frame: 3, Kind: "killed", Process: "b"},
	}
}

func frame(n int64) *int64 { return &n }

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "log", Process: "a"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "completed", Frame: frame(2)}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Process: "b"}))

	err := assertTraceContains(trace, Assertion{Kind: "log", Process: "b"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "log:b", ae.Expected)

	err = assertTraceContains(trace, Assertion{Kind: "log", Frame: frame(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log at frame 2")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"started:b", "log:a", "killed:b"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"started", "started", "started"}}))

	err := assertTraceOrder(trace, Assertion{Events: []string{"killed:b", "log:a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log:a not found after killed:b (seq 6)")

	err = assertTraceOrder(trace, Assertion{Events: []string{"faulted", "log"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "faulted not found")
}

func TestAssertTraceCount_MatchesInstances(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "started", Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "started", Process: "a", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "started", Process: "a#2", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "faulted", Count: 0}))

	err := assertTraceCount(trace, Assertion{Process: "b", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	final := map[string]string{"a": StateFinished}

	assert.NoError(t, assertFinalState(final, Assertion{Process: "a", State: StateFinished}))

	err := assertFinalState(final, Assertion{Process: "ghost", State: StateRunning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown process")
}

func TestMatchProcess(t *testing.T) {
	assert.True(t, matchProcess("", "anything"))
	assert.True(t, matchProcess("worker", "worker"))
	assert.True(t, matchProcess("worker", "worker#3"))
	assert.False(t, matchProcess("worker", "workers"))
	assert.False(t, matchProcess("worker#2", "worker"))
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Final["a"] = StateFinished

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Kind: "log"},
		{Type: AssertTraceCount, Kind: "log", Count: 5},
		{Type: AssertFinalState, Process: "a", State: StatePaused},
		{Type: "bogus"},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], "final_state")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

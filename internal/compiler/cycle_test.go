package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/harness"
)

func waits(targets ...string) []harness.Step {
	steps := make([]harness.Step, len(targets))
	for i, t := range targets {
		steps[i] = harness.Step{Op: harness.OpWaitFor, Target: t}
	}
	return steps
}

func TestAnalyzeWaits_DAG(t *testing.T) {
	sc := &harness.Scenario{Processes: []harness.ProcessDef{
		{Name: "a", Steps: waits("b", "c")},
		{Name: "b", Steps: waits("c")},
		{Name: "c", Steps: []harness.Step{{Op: harness.OpNextFrame}}},
	}}
	assert.Empty(t, AnalyzeWaits(sc))
}

func TestAnalyzeWaits_TwoCycle(t *testing.T) {
	sc := &harness.Scenario{Processes: []harness.ProcessDef{
		{Name: "a", Steps: waits("b")},
		{Name: "b", Steps: waits("a")},
	}}

	warnings := AnalyzeWaits(sc)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnWaitCycle, warnings[0].Code)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, "wait cycle: a → b → a; the closing wait is refused", warnings[0].Message)
}

func TestAnalyzeWaits_ThreeCycleWithTail(t *testing.T) {
	sc := &harness.Scenario{Processes: []harness.ProcessDef{
		{Name: "head", Steps: waits("x")},
		{Name: "x", Steps: waits("y")},
		{Name: "y", Steps: waits("z")},
		{Name: "z", Steps: waits("x")},
	}}

	warnings := AnalyzeWaits(sc)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"x", "y", "z", "x"}, warnings[0].Path)
}

func TestAnalyzeWaits_SelfWaitSkipped(t *testing.T) {
	sc := &harness.Scenario{Processes: []harness.ProcessDef{
		{Name: "a", Steps: waits("a")},
	}}
	assert.Empty(t, AnalyzeWaits(sc))
}

func TestAnalyzeWaits_Deterministic(t *testing.T) {
	sc := &harness.Scenario{Processes: []harness.ProcessDef{
		{Name: "p", Steps: waits("q")},
		{Name: "q", Steps: waits("p")},
		{Name: "r", Steps: waits("s")},
		{Name: "s", Steps: waits("r")},
	}}

	first := AnalyzeWaits(sc)
	for range 10 {
		assert.Equal(t, first, AnalyzeWaits(sc))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "p", first[0].Path[0])
	assert.Equal(t, "r", first[1].Path[0])
}

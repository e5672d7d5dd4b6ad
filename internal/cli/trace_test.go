package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/ir"
)

func journalSamples(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")
	journalRun(t, db, filepath.Join(scenariosDir, "wait_for_loader.yaml"), "run-a")
	journalRun(t, db, filepath.Join(scenariosDir, "pause_and_fault.yaml"), "run-b")
	return db
}

func TestTrace_ListRuns(t *testing.T) {
	db := journalSamples(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "wait_for_loader")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "complete")

	out, err = execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)
	resp := decodeResponse[[]RunInfo](t, out)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "run-a", resp.Data[0].ID)
	assert.True(t, resp.Data[0].Complete)
}

func TestTrace_ShowRun(t *testing.T) {
	db := journalSamples(t)

	out, err := execute(t, "trace", "--db", db, "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-a")
	assert.Contains(t, out, "Scenario: wait_for_loader (yaml)")
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "message=loaded")
}

func TestTrace_FilterByKind(t *testing.T) {
	db := journalSamples(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--run", "run-b", "--kind", "faulted")
	require.NoError(t, err)

	resp := decodeResponse[TraceResult](t, out)
	require.Len(t, resp.Data.Events, 1)
	assert.Equal(t, "bomb", resp.Data.Events[0].Process)
	assert.Equal(t, 1, resp.Data.Stats.Shown)
	assert.Greater(t, resp.Data.Stats.TotalEvents, 1)
	assert.Equal(t, 1, resp.Data.Stats.ByKind["faulted"])
}

func TestTrace_FilterByProcess(t *testing.T) {
	db := journalSamples(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--run", "run-a", "--process", "ui")
	require.NoError(t, err)

	resp := decodeResponse[TraceResult](t, out)
	require.NotEmpty(t, resp.Data.Events)
	for _, e := range resp.Data.Events {
		assert.Equal(t, "ui", e.Process)
	}
}

func TestTrace_RunNotFound(t *testing.T) {
	db := journalSamples(t)

	_, err := execute(t, "trace", "--db", db, "--run", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_NoJournal(t *testing.T) {
	out, err := execute(t, "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "FRAMESCHED_DB")
}

func TestTrace_EmptyJournal(t *testing.T) {
	out, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs journaled.")
}

func TestFormatEvent(t *testing.T) {
	e := ir.Event{
		Seq:        7,
		Frame:      3,
		Segment:    "update",
		Kind:       "log",
		Process:    "ticker",
		Tag:        "blink",
		TimeMillis: 300,
		Detail:     ir.Object{"message": ir.String("tick"), "n": ir.Int(2)},
	}
	assert.Equal(t, "  [7] f3 update       log        ticker #blink @300ms message=tick n=2", formatEvent(e))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0123456789ab", truncateID("0123456789abcdef"))
	assert.Equal(t, "short", truncateID("short"))
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/ir"
)

func TestWriteRun_FillsDefaults(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "yaml", run.Format)
	assert.Equal(t, ir.TraceVersion, run.TraceVersion)
	assert.Equal(t, ir.SourceHash([]byte("name: demo\n")), run.SourceHash)
	assert.Empty(t, run.Digest)
}

func TestWriteRun_HostRates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, ir.Run{
		ID:           "run-1",
		Scenario:     "demo",
		Source:       "name: demo\n",
		FrameRate:    30,
		FixedRate:    50,
		SlowInterval: 0.25,
	}))
	createTestRun(t, s, "run-2")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, run.FrameRate)
	assert.Equal(t, 50.0, run.FixedRate)
	assert.Equal(t, 0.25, run.SlowInterval)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 30.0, runs[0].FrameRate)
	assert.Zero(t, runs[1].FrameRate, "no rates journaled")
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	require.NoError(t, s.WriteRun(ctx, ir.Run{ID: "run-1", Scenario: "other", Source: "x"}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", run.Scenario, "first write wins")
}

func TestFinishRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	require.NoError(t, s.FinishRun(ctx, "run-1", 12, 30, "abc"))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), run.Frames)
	assert.Equal(t, int64(30), run.Events)
	assert.Equal(t, "abc", run.Digest)
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := setupTestStore(t)

	err := s.FinishRun(context.Background(), "missing", 1, 1, "x")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestWriteEvent_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")
	e := testEvent(1, "started", "spinner")

	id1, err := s.WriteEvent(ctx, "run-1", e)
	require.NoError(t, err)
	id2, err := s.WriteEvent(ctx, "run-1", e)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, ir.MustEventID("run-1", e), id1)

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWriteEvent_ConflictingSeqRejected(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	_, err := s.WriteEvent(ctx, "run-1", testEvent(1, "started", "a"))
	require.NoError(t, err)
	_, err = s.WriteEvent(ctx, "run-1", testEvent(1, "started", "b"))
	assert.Error(t, err)
}

func TestWriteEvent_UnknownRunRejected(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.WriteEvent(context.Background(), "missing", testEvent(1, "started", "a"))
	assert.Error(t, err, "foreign key must reject events of unknown runs")
}

func TestWriteEvents_Batch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	batch := []ir.Event{
		testEvent(1, "started", "a"),
		testEvent(2, "waiting", "a"),
		testEvent(3, "completed", "a"),
	}
	require.NoError(t, s.WriteEvents(ctx, "run-1", batch))

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, batch, events)
}

func TestWriteEvents_RollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	batch := []ir.Event{
		testEvent(1, "started", "a"),
		testEvent(1, "started", "b"),
	}
	require.Error(t, s.WriteEvents(ctx, "run-1", batch))

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

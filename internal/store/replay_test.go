package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/ir"
)

func writeFinishedRun(t *testing.T, s *Store, id string) []ir.Event {
	t.Helper()
	ctx := context.Background()
	createTestRun(t, s, id)

	trace := []ir.Event{
		testEvent(1, "started", "a"),
		testEvent(2, "completed", "a"),
	}
	require.NoError(t, s.WriteEvents(ctx, id, trace))

	digest, err := ir.Digest(trace)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, 2, int64(len(trace)), digest))
	return trace
}

func TestGetRunState(t *testing.T) {
	s := setupTestStore(t)
	trace := writeFinishedRun(t, s, "run-1")

	state, err := s.GetRunState(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, trace, state.Events)
	assert.Equal(t, int64(2), state.LastSeq)
	assert.True(t, state.Complete)
}

func TestGetRunState_Unfinished(t *testing.T) {
	s := setupTestStore(t)
	createTestRun(t, s, "run-1")

	state, err := s.GetRunState(context.Background(), "run-1")
	require.NoError(t, err)
	assert.False(t, state.Complete)
	assert.Equal(t, int64(0), state.LastSeq)
}

func TestGetRunState_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRunState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestVerifyRun(t *testing.T) {
	s := setupTestStore(t)
	trace := writeFinishedRun(t, s, "run-1")

	digest, err := s.VerifyRun(context.Background(), "run-1")
	require.NoError(t, err)

	want, err := ir.Digest(trace)
	require.NoError(t, err)
	assert.Equal(t, want, digest)
}

func TestVerifyRun_DetectsTamperedTrace(t *testing.T) {
	s := setupTestStore(t)
	writeFinishedRun(t, s, "run-1")

	_, err := s.DB().Exec(`UPDATE events SET kind = 'killed' WHERE seq = 2`)
	require.NoError(t, err)

	_, err = s.VerifyRun(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

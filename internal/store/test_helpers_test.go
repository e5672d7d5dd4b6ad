package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/ir"
)

// setupTestStore opens a fresh journal in a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a minimal run header and returns it.
func createTestRun(t *testing.T, s *Store, id string) ir.Run {
	t.Helper()
	run := ir.Run{
		ID:       id,
		Scenario: "demo",
		Source:   "name: demo\n",
	}
	require.NoError(t, s.WriteRun(context.Background(), run))
	return run
}

// testEvent builds an event with the fields most tests care about.
func testEvent(seq int64, kind, process string) ir.Event {
	return ir.Event{
		Seq:        seq,
		Frame:      seq,
		Segment:    "update",
		Kind:       kind,
		Process:    process,
		TimeMillis: seq * 1000,
	}
}

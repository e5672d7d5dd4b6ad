package cli

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/store"
	"github.com/roach88/framesched/internal/testutil"
	"github.com/roach88/framesched/internal/tui"
)

func newWatch(t *testing.T, db, path string) *watchRun {
	t.Helper()
	opts := &WatchOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    db,
		Interval:    tui.DefaultInterval,
		RunIDs:      testutil.NewFixedTokenGenerator("watch-1"),
	}
	f := &OutputFormatter{Format: "text", Writer: io.Discard}

	w, err := prepareWatch(context.Background(), opts, path, f)
	require.NoError(t, err)
	t.Cleanup(w.close)
	return w
}

func TestWatch_JournalsCompleteRun(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "runs.db")
	path := filepath.Join(scenariosDir, "pause_and_fault.yaml")
	w := newWatch(t, db, path)

	for !w.session.Done() {
		require.True(t, w.model.StepFrame())
	}
	summary, err := w.finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "watch-1", summary.RunID)
	assert.True(t, summary.Pass, "errors: %v", summary.Errors)

	state, err := w.store.GetRunState(ctx, "watch-1")
	require.NoError(t, err)
	assert.True(t, state.Complete)
	assert.Equal(t, summary.Digest, state.Run.Digest)

	// the streamed journal is the same trace a batch run produces
	rr, err := replayRun(ctx, w.store, "watch-1", nil)
	require.NoError(t, err)
	assert.True(t, rr.OK(), "replay: %+v", rr)

	loaded, err := loadScenario(path)
	require.NoError(t, err)
	result, err := harness.Run(loaded.Scenario)
	require.NoError(t, err)
	assert.Equal(t, result.Digest, summary.Digest)
}

func TestWatch_QuitEarlyLeavesRunIncomplete(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "runs.db")
	w := newWatch(t, db, filepath.Join(scenariosDir, "wait_for_loader.yaml"))

	require.True(t, w.model.StepFrame())
	summary, err := w.finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Frames)

	state, err := w.store.GetRunState(ctx, "watch-1")
	require.NoError(t, err)
	assert.False(t, state.Complete)
	assert.NotEmpty(t, state.Events)

	rr, err := replayRun(ctx, w.store, "watch-1", nil)
	require.NoError(t, err)
	assert.False(t, rr.OK())
	assert.Equal(t, "run never finished", rr.Error)
}

func TestWatch_WithoutJournal(t *testing.T) {
	w := newWatch(t, "", filepath.Join(scenariosDir, "blink.cue"))
	assert.Nil(t, w.store)

	for !w.session.Done() {
		require.True(t, w.model.StepFrame())
	}
	summary, err := w.finish(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.RunID)
	assert.True(t, summary.Pass, "errors: %v", summary.Errors)
}

func TestWatch_LoadFailure(t *testing.T) {
	opts := &WatchOptions{RootOptions: &RootOptions{Format: "text"}}
	f := &OutputFormatter{Format: "text", Writer: io.Discard}

	_, err := prepareWatch(context.Background(), opts, filepath.Join(t.TempDir(), "nope.yaml"), f)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWatch_JournalMatchesStore(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "runs.db")
	w := newWatch(t, db, filepath.Join(scenariosDir, "wait_for_loader.yaml"))

	for !w.session.Done() {
		require.True(t, w.model.StepFrame())
	}
	_, err := w.finish(ctx)
	require.NoError(t, err)

	events, err := w.store.ReadEvents(ctx, "watch-1", store.EventFilter{Process: "ui"})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Seq, events[i].Seq)
	}
}

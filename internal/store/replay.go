package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/framesched/internal/ir"
)

// ErrDigestMismatch reports a journaled trace that no longer hashes to the
// digest recorded for its run.
var ErrDigestMismatch = errors.New("digest mismatch")

// RunState is a run header together with its journaled trace.
type RunState struct {
	Run    ir.Run
	Events []ir.Event
	// LastSeq is the highest seq in the trace, zero when empty.
	LastSeq int64
	// Complete reports whether FinishRun was called and the stored event
	// count matches the trace.
	Complete bool
}

// GetRunState loads a run and its trace for replay or inspection.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	state := RunState{Run: run, Events: events}
	if n := len(events); n > 0 {
		state.LastSeq = events[n-1].Seq
	}
	state.Complete = run.Digest != "" && run.Events == int64(len(events))
	return state, nil
}

// VerifyRun recomputes the digest of the journaled trace and compares it
// with the one recorded by FinishRun. It returns the recomputed digest.
func (s *Store) VerifyRun(ctx context.Context, runID string) (string, error) {
	state, err := s.GetRunState(ctx, runID)
	if err != nil {
		return "", err
	}
	digest, err := ir.Digest(state.Events)
	if err != nil {
		return "", fmt.Errorf("verify run %s: %w", runID, err)
	}
	if digest != state.Run.Digest {
		return digest, fmt.Errorf("verify run %s: %w: journal %s, recorded %s",
			runID, ErrDigestMismatch, short(digest), short(state.Run.Digest))
	}
	return digest, nil
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	if digest == "" {
		return "<none>"
	}
	return digest
}

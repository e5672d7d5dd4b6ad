package store

import (
	"context"
	"log/slog"

	"github.com/roach88/framesched/internal/ir"
)

// Recorder journals trace events of one run as they are produced, for
// callers that stream a session instead of writing the trace at the end.
// It is not safe for concurrent use.
//
// The first write failure is kept and reported by Err, and later events
// are dropped.
type Recorder struct {
	ctx    context.Context
	store  *Store
	runID  string
	logger *slog.Logger
	seq    int64
	err    error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used to report write failures.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder returns a Recorder appending to the trace of runID. The run
// header must already exist.
func NewRecorder(ctx context.Context, st *Store, runID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ctx:    ctx,
		store:  st,
		runID:  runID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append journals e. A zero Seq is replaced with the next sequence number.
func (r *Recorder) Append(e ir.Event) error {
	if r.err != nil {
		return r.err
	}
	if e.Seq == 0 {
		e.Seq = r.seq + 1
	}
	if _, err := r.store.WriteEvent(r.ctx, r.runID, e); err != nil {
		r.err = err
		r.logger.Error("journal write failed",
			"run", r.runID,
			"seq", e.Seq,
			"error", err,
		)
		return err
	}
	r.seq = max(r.seq, e.Seq)
	return nil
}

// Seq returns the highest sequence number written so far.
func (r *Recorder) Seq() int64 {
	return r.seq
}

// Err returns the first write failure.
func (r *Recorder) Err() error {
	return r.err
}

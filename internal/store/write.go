package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/framesched/internal/ir"
)

// WriteRun inserts a run header. Uses ON CONFLICT(id) DO NOTHING, so
// rewriting an existing run leaves the first row in place.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	if run.TraceVersion == "" {
		run.TraceVersion = ir.TraceVersion
	}
	if run.Format == "" {
		run.Format = "yaml"
	}
	if run.SourceHash == "" {
		run.SourceHash = ir.SourceHash([]byte(run.Source))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, format, source, source_hash, frames, events, digest, trace_version,
		 frame_rate, fixed_rate, slow_interval)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		run.Format,
		run.Source,
		run.SourceHash,
		run.Frames,
		run.Events,
		run.Digest,
		run.TraceVersion,
		run.FrameRate,
		run.FixedRate,
		run.SlowInterval,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run once its trace is complete.
func (s *Store) FinishRun(ctx context.Context, runID string, frames, events int64, digest string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET frames = ?, events = ?, digest = ?
		WHERE id = ?
	`, frames, events, digest, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// WriteEvent appends e to the trace of runID and returns its event id.
// Writing the same event twice is a no-op. A different event at an
// occupied seq is an error.
func (s *Store) WriteEvent(ctx context.Context, runID string, e ir.Event) (string, error) {
	return writeEvent(ctx, s.db, runID, e)
}

// WriteEvents appends a batch of events in one transaction.
func (s *Store) WriteEvents(ctx context.Context, runID string, events []ir.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range events {
		if _, err := writeEvent(ctx, tx, runID, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeEvent(ctx context.Context, db execer, runID string, e ir.Event) (string, error) {
	id, err := ir.EventID(runID, e)
	if err != nil {
		return "", fmt.Errorf("write event: %w", err)
	}
	detail, err := marshalDetail(e.Detail)
	if err != nil {
		return "", fmt.Errorf("write event: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO events
		(id, run_id, seq, frame, segment, kind, process, tag, time_ms, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		runID,
		e.Seq,
		e.Frame,
		e.Segment,
		e.Kind,
		e.Process,
		e.Tag,
		e.TimeMillis,
		detail,
	)
	if err != nil {
		return "", fmt.Errorf("write event seq %d: %w", e.Seq, err)
	}
	return id, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/framesched/internal/ir"
)

// ReadRun returns the run header for id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, format, source, source_hash, frames, events, digest, trace_version,
		       frame_rate, fixed_rate, slow_interval
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id. Run ids are UUIDv7, so this is
// creation order.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, format, source, source_hash, frames, events, digest, trace_version,
		       frame_rate, fixed_rate, slow_interval
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// EventFilter narrows ReadEvents. Zero fields match everything.
type EventFilter struct {
	Kind    string
	Process string
}

// ReadEvents returns the trace of runID ordered by seq ASC, id ASC COLLATE
// BINARY. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadEvents(ctx context.Context, runID string, filter ...EventFilter) ([]ir.Event, error) {
	var f EventFilter
	if len(filter) > 0 {
		f = filter[0]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, frame, segment, kind, process, tag, time_ms, detail
		FROM events
		WHERE run_id = ?
		  AND (? = '' OR kind = ?)
		  AND (? = '' OR process = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID, f.Kind, f.Kind, f.Process, f.Process)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			e      ir.Event
			detail string
		)
		if err := rows.Scan(&e.Seq, &e.Frame, &e.Segment, &e.Kind, &e.Process, &e.Tag, &e.TimeMillis, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, fmt.Errorf("event seq %d: %w", e.Seq, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var run ir.Run
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.Format,
		&run.Source,
		&run.SourceHash,
		&run.Frames,
		&run.Events,
		&run.Digest,
		&run.TraceVersion,
		&run.FrameRate,
		&run.FixedRate,
		&run.SlowInterval,
	)
	return run, err
}

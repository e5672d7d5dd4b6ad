// Package store provides the SQLite journal of simulation runs.
//
// The journal is append-only:
//   - Runs: one row per simulation, holding the scenario source for replay
//   - Events: the trace of a run, keyed by content-addressed event id
//
// # Invariants
//
// Idempotent writes
//   - events.id is ir.EventID(run, event); rewriting an event is a no-op
//   - UNIQUE(run_id, seq) rejects two different events at one position
//
// Logical ordering
//   - Reads order by seq ASC, id ASC COLLATE BINARY, never by insertion time
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store

// Package ir provides the trace record types shared by the scheduler, the
// journal store and the scenario harness.
//
// ir imports nothing internal. All other internal packages may import it.
//
// Key design constraints:
//   - NO float types in canonical records; time is integer milliseconds
//   - All JSON tags use snake_case
//   - Ordering comes from Seq (a per-run logical counter), never wall-clock time
//   - Identity is content-addressed: EventID and Digest hash canonical JSON
package ir

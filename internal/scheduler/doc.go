// Package scheduler implements a frame-segmented cooperative task scheduler.
//
// A Scheduler owns four segment stores (Update, FixedUpdate, LateUpdate,
// SlowUpdate). Each store holds in-flight processes: lazy sequences of Yield
// values advanced through iter.Pull. The host calls the driver for every
// segment once per occurrence of that segment in its frame loop, and the
// driver steps every runnable process whose resumption time has arrived.
//
// ARCHITECTURE:
//
// Single-Threaded Cooperative Model:
// There is no parallel execution of processes. A process only suspends by
// yielding, and every yield returns control to the driver. All scheduler
// state is mutated from the one goroutine driving the instance.
//
// Components:
//   - Segment stores: one growable array-of-structs per segment (store.go)
//   - Handle table: generation-counted arena mapping handles to slots (handle.go)
//   - Tag index: tag -> set of handles for bulk control (tags.go)
//   - Wait graph: blockers -> dependents, with pause offsets (waits.go)
//   - Driver: per-segment step loop, faults, compaction (driver.go)
//
// Suspension:
//
//	NextFrame()              resume on the next occurrence of the segment
//	Until(t)                 resume once the segment clock reaches t
//	s.WaitForSeconds(d)      Until(LocalTime()+d)
//	s.WaitUntilDone(h)       block until process h completes or is killed
//	s.WaitUntilDoneExternal  block until an external Pollable reports done
//	Done()                   finish immediately
//
// Faults:
// A panic inside a process is recovered by the driver and attributed to that
// process only. The slot is cleared and the segment pass continues. The fault
// goes to the configured error handler, or is queued and returned from the
// next driver call. Queued faults are surfaced one per driver call so that
// failures are never dropped silently.
//
// Ordering:
// Within one pass processes are stepped in slot order, which is submission
// order. Compaction preserves the relative order of live processes.
package scheduler

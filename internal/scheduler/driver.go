package scheduler

import (
	"errors"
	"math"
	"slices"
)

// ErrReentrantDrive is returned when a driver entry point is called while a
// segment pass of the same instance is in progress.
var ErrReentrantDrive = errors.New("scheduler: driver called during a segment pass")

// Update drives the Update segment for the current host frame.
//
// It runs the pre-execute hook, then the SlowUpdate pass when the slow
// interval has elapsed in realtime and SlowUpdate holds processes, then the
// Update pass, then periodic compaction. Returns the oldest queued fault, if
// any.
func (s *Scheduler) Update() error {
	if s.passing > 0 {
		return ErrReentrantDrive
	}

	if s.preExecute != nil {
		s.preExecute()
	}

	if s.slowClock.last+s.slowInterval < s.frames.Realtime() && s.stores[SlowUpdate].next > 0 {
		s.pass(SlowUpdate)
	}

	s.pass(Update)

	s.sinceMaintenance++
	if s.sinceMaintenance > s.maintenanceInterval {
		s.sinceMaintenance = 0
		s.compact()
	}

	return s.surface()
}

// FixedUpdate drives the FixedUpdate segment.
func (s *Scheduler) FixedUpdate() error {
	return s.Step(FixedUpdate)
}

// LateUpdate drives the LateUpdate segment.
func (s *Scheduler) LateUpdate() error {
	return s.Step(LateUpdate)
}

// Step runs a single pass of seg without the Update extras (hook, SlowUpdate
// gating, compaction). Returns the oldest queued fault, if any.
func (s *Scheduler) Step(seg Segment) error {
	if !seg.Valid() {
		return nil
	}
	if s.passing > 0 {
		return ErrReentrantDrive
	}
	s.pass(seg)
	return s.surface()
}

// pass steps every runnable slot of seg whose resumption time has arrived,
// in slot order. The bound is re-read every iteration so that processes
// submitted during the pass are stepped in it too.
func (s *Scheduler) pass(seg Segment) {
	s.passing++
	s.running[seg] = true
	s.updateTimeValues(seg)
	now := s.localTime

	for i := 0; i < s.stores[seg].next; i++ {
		sl := &s.stores[seg].slots[i]
		if !sl.runnable() || now < sl.nextAt {
			continue
		}
		s.advance(seg, i)
	}

	s.running[seg] = false
	s.passing--
}

// advance steps the process in (seg, i) until it suspends, finishes or
// faults. Swaps and refused waits reprocess the same slot, bounded by the
// swap quota.
//
// The slot array may be reallocated by any step, so the slot is re-indexed
// after every call into process code.
func (s *Scheduler) advance(seg Segment, i int) {
	h := s.stores[seg].slots[i].handle
	quota := swapQuota{max: s.maxSwaps}

	for {
		cont := s.stores[seg].slots[i].cont
		y, ok, recovered, panicked := s.step(cont)

		_, _, live := s.handles.resolve(h)
		if panicked {
			f := &Fault{Code: FaultPanic, Handle: h, Segment: seg, Value: recovered}
			if live {
				f.Tag = s.stores[seg].slots[i].tag
				s.finish(seg, i, EventFaulted, f)
			}
			s.raise(f)
			return
		}
		if !live {
			return
		}
		if !ok {
			s.finish(seg, i, EventCompleted, nil)
			return
		}

		sl := &s.stores[seg].slots[i]
		switch y.kind {
		case KindNextFrame:
			sl.nextAt = math.Inf(-1)
			return

		case KindUntil:
			sl.nextAt = y.at
			return

		case KindDone:
			s.finish(seg, i, EventCompleted, nil)
			return

		case KindWaitOn:
			if s.waitOn(seg, i, y.target) {
				return
			}

		case KindWaitFor:
			sl.cont = &externalWait{poll: y.pollable, inner: cont}

		case kindSwap:
			sl.cont = y.swap
		}

		if err := quota.check(h); err != nil {
			f := &Fault{Code: FaultSwapQuota, Handle: h, Segment: seg, Tag: s.stores[seg].slots[i].tag, Value: err}
			s.finish(seg, i, EventFaulted, f)
			s.raise(f)
			return
		}
	}
}

// step calls into the continuation, recovering a panic raised by the
// process. Continuations killed while on the active stack are stopped once
// the stack is empty.
func (s *Scheduler) step(c continuation) (y Yield, ok bool, recovered any, panicked bool) {
	s.active = append(s.active, c)
	func() {
		defer func() {
			if r := recover(); r != nil {
				recovered, panicked = r, true
			}
		}()
		y, ok = c.next()
	}()
	s.active = s.active[:len(s.active)-1]

	if len(s.active) == 0 && len(s.orphans) > 0 {
		orphans := s.orphans
		s.orphans = nil
		for _, o := range orphans {
			s.stop(o)
		}
	}
	return y, ok, recovered, panicked
}

// waitOn handles a WaitOn yield. It returns false when the wait is refused
// and the process should continue immediately.
func (s *Scheduler) waitOn(seg Segment, i int, target Handle) bool {
	sl := &s.stores[seg].slots[i]
	h := sl.handle

	switch {
	case !target.IsValid():
		s.logger.Warn("wait refused: invalid handle", "handle", h.String())
		sl.nextAt = math.Inf(-1)
		return true

	case target == h:
		s.logger.Warn("wait refused: process waited on itself", "handle", h.String())
		return false

	case target.key != s.key:
		s.logger.Warn("wait refused: target runs on another instance",
			"handle", h.String(),
			"target", target.String(),
		)
		return false
	}

	if _, _, live := s.handles.resolve(target); !live {
		sl.nextAt = math.Inf(-1)
		return true
	}

	if s.waits.wouldCycle(h, target) {
		s.logger.Warn("wait refused: would deadlock",
			"handle", h.String(),
			"target", target.String(),
		)
		return false
	}

	s.block(seg, i, blocker{handle: target})
	sl = &s.stores[seg].slots[i]
	sl.nextAt = math.Inf(-1)
	s.emit(Event{Kind: EventWaiting, Handle: h, Segment: seg, Tag: sl.tag, Target: target})
	return true
}

// finish clears a slot whose process completed, was killed or faulted, and
// wakes its dependents.
func (s *Scheduler) finish(seg Segment, i int, kind EventKind, f *Fault) {
	st := s.stores[seg]
	sl := st.slots[i]
	st.slots[i] = slot{}

	s.handles.release(sl.handle)
	s.tags.remove(sl.tag, sl.handle)
	s.waits.forget(sl.handle)

	e := Event{Kind: kind, Handle: sl.handle, Segment: seg, Tag: sl.tag}
	if f != nil {
		e.Err = f
	}
	s.emit(e)

	s.wake(sl.handle)
	s.stopOrDefer(sl.cont)
}

func (s *Scheduler) stopOrDefer(c continuation) {
	if c == nil {
		return
	}
	if slices.Contains(s.active, c) {
		s.orphans = append(s.orphans, c)
		return
	}
	s.stop(c)
}

// stop unwinds a suspended continuation. Deferred calls in the process run
// here; a panic among them is logged and dropped since the process is
// already gone.
func (s *Scheduler) stop(c continuation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("process panicked while stopping", "panic", r)
		}
	}()
	c.stop()
}

// raise routes a fault to the error handler or the fault queue.
func (s *Scheduler) raise(f *Fault) {
	s.logger.Error("process faulted",
		"handle", f.Handle.String(),
		"segment", f.Segment.String(),
		"tag", f.Tag,
		"code", string(f.Code),
		"error", f.Error(),
	)
	if s.onError != nil {
		s.onError(f)
		return
	}
	s.faults.push(f)
}

// surface returns the oldest queued fault.
func (s *Scheduler) surface() error {
	if f := s.faults.pop(); f != nil {
		return f
	}
	return nil
}

// compact packs every idle segment store and repoints the moved handles.
func (s *Scheduler) compact() {
	for _, seg := range Segments {
		if s.running[seg] {
			continue
		}
		reclaimed := s.stores[seg].compact(func(h Handle, to int) {
			s.handles.move(h, to)
		})
		if reclaimed > 0 {
			s.logger.Debug("segment compacted", "segment", seg.String(), "reclaimed", reclaimed)
			s.emit(Event{Kind: EventCompacted, Segment: seg, Reclaimed: reclaimed})
		}
	}
}

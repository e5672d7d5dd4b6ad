package scheduler

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
)

// Scheduler is one cooperative scheduler instance.
//
// CRITICAL: A Scheduler is not safe for concurrent use. Run, Kill, the
// driver entry points and every other method must be called from the
// goroutine that drives the host frame loop, or from processes running on
// it.
type Scheduler struct {
	key      uint8
	registry *Registry
	frames   FrameSource
	logger   *slog.Logger

	onError    func(error)
	observers  []Observer
	preExecute func()

	capacity            [segmentCount]int
	chunkSize           int
	expansions          int
	maintenanceInterval int
	sinceMaintenance    int
	slowInterval        float64
	maxSwaps            int

	stores  [segmentCount]*segmentStore
	handles *handleTable
	tags    *tagIndex
	waits   *waitGraph
	faults  *faultQueue

	updateClock segmentClock
	fixedClock  segmentClock
	slowClock   slowClock
	localTime   float64
	deltaTime   float64

	// running marks segments with a pass or eager step in progress; passing
	// counts driver passes on the stack.
	running [segmentCount]bool
	passing int

	// active holds the continuations currently inside next(). A continuation
	// killed while active is parked in orphans and stopped once the stack
	// unwinds.
	active  []continuation
	orphans []continuation

	lastLock LockKey
	closed   bool
}

// DefaultMaintenanceInterval is the number of Update calls between
// compactions.
const DefaultMaintenanceInterval = 64

// New creates a scheduler instance driven by frames and registers it.
//
// Returns ErrInstancesExhausted when the registry has no free key.
func New(frames FrameSource, opts ...Option) (*Scheduler, error) {
	if frames == nil {
		return nil, ErrNilFrameSource
	}

	s := &Scheduler{
		registry:            defaultRegistry,
		frames:              frames,
		logger:              slog.Default(),
		capacity:            defaultCapacity,
		chunkSize:           DefaultChunkSize,
		expansions:          1,
		maintenanceInterval: DefaultMaintenanceInterval,
		slowInterval:        DefaultSlowUpdateInterval,
		maxSwaps:            DefaultMaxSwaps,
		tags:                newTagIndex(),
		waits:               newWaitGraph(),
		faults:              newFaultQueue(),
		updateClock:         newSegmentClock(),
		fixedClock:          newSegmentClock(),
		slowClock:           slowClock{frame: -1},
	}

	for _, opt := range opts {
		opt(s)
	}

	key, err := s.registry.register(s)
	if err != nil {
		return nil, err
	}
	s.key = key
	s.handles = newHandleTable(key)
	for _, seg := range Segments {
		s.stores[seg] = newSegmentStore(s.capacity[seg])
	}

	s.logger.Debug("scheduler created", "key", key)
	return s, nil
}

// Close kills every process and returns the instance key to the registry.
// A closed scheduler rejects new processes.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	s.KillAll()
	s.closed = true
	s.registry.release(s.key, s)
	s.logger.Debug("scheduler closed", "key", s.key)
}

// Key returns the registry key of this instance.
func (s *Scheduler) Key() uint8 {
	return s.key
}

// Run submits p to seg and returns its handle.
//
// A nil process, an invalid segment or a closed scheduler yields the zero
// Handle and registers nothing. Unless Deferred is given, or seg is itself
// mid-pass, p is advanced once before Run returns. A fault during that step
// is handled like any other fault and is not returned from Run.
func (s *Scheduler) Run(p Process, seg Segment, opts ...RunOption) Handle {
	if p == nil || !seg.Valid() || s.closed {
		return Handle{}
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	st := s.stores[seg]
	i, grew := st.append(s.chunkSize, s.expansions)
	if grew {
		s.expansions++
		s.logger.Debug("segment store grew",
			"segment", seg.String(),
			"capacity", len(st.slots),
		)
	}

	h := s.handles.alloc(seg, i)
	sl := &st.slots[i]
	sl.cont = newPulled(p)
	sl.handle = h
	sl.tag = cfg.tag
	s.tags.add(cfg.tag, h)

	s.emit(Event{Kind: EventStarted, Handle: h, Segment: seg, Tag: cfg.tag})

	if !cfg.deferred && !s.running[seg] {
		local, delta := s.localTime, s.deltaTime
		s.running[seg] = true
		s.updateTimeValues(seg)
		s.advance(seg, i)
		s.running[seg] = false
		s.localTime, s.deltaTime = local, delta
	}

	return h
}

// Kill removes the process h refers to and wakes anything waiting on it.
// Returns false when h is not live on this instance. A process that kills
// itself finishes its current step first.
func (s *Scheduler) Kill(h Handle) bool {
	seg, i, ok := s.handles.resolve(h)
	if !ok {
		return false
	}
	s.finish(seg, i, EventKilled, nil)
	return true
}

// KillTag kills every process carrying tag and returns how many were removed.
func (s *Scheduler) KillTag(tag string) int {
	n := 0
	for _, h := range s.tagged(tag) {
		if s.Kill(h) {
			n++
		}
	}
	return n
}

// KillAll removes every process, resets the segment stores to their initial
// capacity and resets the segment clocks. Returns the number of processes
// removed.
func (s *Scheduler) KillAll() int {
	var (
		dead  []continuation
		count int
	)
	for _, seg := range Segments {
		st := s.stores[seg]
		for i := 0; i < st.next; i++ {
			sl := st.slots[i]
			if sl.cont == nil {
				continue
			}
			count++
			dead = append(dead, sl.cont)
			s.handles.release(sl.handle)
			s.emit(Event{Kind: EventKilled, Handle: sl.handle, Segment: seg, Tag: sl.tag})
		}
		st.reset()
	}

	s.tags.reset()
	s.waits.reset()
	s.expansions = s.expansions/2 + 1
	s.ResetTime()

	for _, c := range dead {
		s.stopOrDefer(c)
	}

	if count > 0 {
		s.logger.Info("killed all processes", "key", s.key, "count", count)
	}
	return count
}

// Pause marks h paused. Returns false when h is not live or already paused.
func (s *Scheduler) Pause(h Handle) bool {
	seg, i, ok := s.handles.resolve(h)
	if !ok {
		return false
	}
	return s.setPaused(seg, i, true)
}

// Resume clears the paused mark of h. Returns false when h is not live or
// not paused. A resumed process that is still held by a wait or lock stays
// suspended until released.
func (s *Scheduler) Resume(h Handle) bool {
	seg, i, ok := s.handles.resolve(h)
	if !ok {
		return false
	}
	return s.setPaused(seg, i, false)
}

// PauseTag pauses every process carrying tag and returns how many changed.
func (s *Scheduler) PauseTag(tag string) int {
	n := 0
	for _, h := range s.tagged(tag) {
		if s.Pause(h) {
			n++
		}
	}
	return n
}

// ResumeTag resumes every process carrying tag. The count only includes
// processes that became runnable.
func (s *Scheduler) ResumeTag(tag string) int {
	n := 0
	for _, h := range s.tagged(tag) {
		seg, i, ok := s.handles.resolve(h)
		if ok && s.setPaused(seg, i, false) && s.stores[seg].slots[i].blocked == 0 {
			n++
		}
	}
	return n
}

// PauseAll pauses every live process and returns how many changed.
func (s *Scheduler) PauseAll() int {
	n := 0
	for _, seg := range Segments {
		for i := 0; i < s.stores[seg].next; i++ {
			if s.stores[seg].slots[i].cont != nil && s.setPaused(seg, i, true) {
				n++
			}
		}
	}
	return n
}

// ResumeAll resumes every paused process. The count only includes processes
// that became runnable.
func (s *Scheduler) ResumeAll() int {
	n := 0
	for _, seg := range Segments {
		for i := 0; i < s.stores[seg].next; i++ {
			if s.stores[seg].slots[i].cont != nil && s.setPaused(seg, i, false) && s.stores[seg].slots[i].blocked == 0 {
				n++
			}
		}
	}
	return n
}

func (s *Scheduler) setPaused(seg Segment, i int, paused bool) bool {
	sl := &s.stores[seg].slots[i]
	if sl.paused == paused {
		return false
	}
	sl.paused = paused
	kind := EventResumed
	if paused {
		kind = EventPaused
	}
	s.emit(Event{Kind: kind, Handle: sl.handle, Segment: seg, Tag: sl.tag})
	return true
}

// NewLockKey returns a key that no other NewLockKey call on this instance
// returns.
func (s *Scheduler) NewLockKey() LockKey {
	s.lastLock++
	return s.lastLock
}

// Lock holds h until Unlock is called with the same key. Time the process
// still had to wait when it was locked is replayed after the last release.
// Returns false for the zero key, a handle that is not live here, or a key
// that already holds h.
func (s *Scheduler) Lock(h Handle, key LockKey) bool {
	if key == 0 {
		return false
	}
	seg, i, ok := s.handles.resolve(h)
	if !ok {
		return false
	}
	if !s.block(seg, i, blocker{lock: key}) {
		return false
	}
	s.emit(Event{Kind: EventLocked, Handle: h, Segment: seg, Tag: s.stores[seg].slots[i].tag, Lock: key})
	return true
}

// Unlock releases a lock taken with Lock. Returns false when key does not
// hold h.
func (s *Scheduler) Unlock(h Handle, key LockKey) bool {
	seg, i, ok := s.handles.resolve(h)
	if !ok {
		return false
	}
	offset, held := s.waits.release(blocker{lock: key}, h)
	if !held {
		return false
	}
	s.unblock(seg, i, offset)
	s.emit(Event{Kind: EventUnlocked, Handle: h, Segment: seg, Tag: s.stores[seg].slots[i].tag, Lock: key})
	return true
}

// block registers the slot as held by b, capturing the delay it still had
// outstanding.
func (s *Scheduler) block(seg Segment, i int, b blocker) bool {
	sl := &s.stores[seg].slots[i]
	offset := math.Max(0, sl.nextAt-s.segmentTime(seg))
	if !s.waits.hold(b, sl.handle, offset) {
		return false
	}
	sl.blocked++
	return true
}

// unblock drops one hold from the slot and replays its outstanding delay.
func (s *Scheduler) unblock(seg Segment, i int, offset float64) {
	sl := &s.stores[seg].slots[i]
	if sl.blocked > 0 {
		sl.blocked--
	}
	if offset > 0 {
		sl.nextAt = s.segmentTime(seg) + offset
	}
}

// wake releases the dependents of a process that just died.
func (s *Scheduler) wake(dead Handle) {
	for _, d := range s.waits.close(blocker{handle: dead}) {
		seg, i, ok := s.handles.resolve(d.handle)
		if !ok {
			continue
		}
		s.unblock(seg, i, d.offset)
		s.emit(Event{Kind: EventWoken, Handle: d.handle, Segment: seg, Tag: s.stores[seg].slots[i].tag, Target: dead})
	}
}

// WaitForSeconds returns a yield that resumes the process d seconds after
// the current segment time.
func (s *Scheduler) WaitForSeconds(d float64) Yield {
	if math.IsNaN(d) {
		d = 0
	}
	return Until(s.localTime + d)
}

// WaitUntilDone returns a yield that holds the process until h completes,
// is killed or faults. Waiting on a dead process resumes on the next pass.
// Waiting on itself, on another instance or on a process that is already
// waiting on the caller is refused with a warning and the caller continues
// immediately.
func (s *Scheduler) WaitUntilDone(h Handle) Yield {
	return Yield{kind: KindWaitOn, target: h}
}

// WaitUntilDoneExternal returns a yield that holds the process until p
// reports done, polling once per pass. A nil or finished operation resumes
// on the next pass.
func (s *Scheduler) WaitUntilDoneExternal(p Pollable) Yield {
	if p == nil || p.Done() {
		return NextFrame()
	}
	return Yield{kind: KindWaitFor, pollable: p}
}

// tagged returns the live handles carrying tag in (segment, slot) order.
func (s *Scheduler) tagged(tag string) []Handle {
	hs := s.tags.handles(tag)
	type located struct {
		h    Handle
		seg  Segment
		slot int
	}
	locs := make([]located, 0, len(hs))
	for _, h := range hs {
		if seg, i, ok := s.handles.resolve(h); ok {
			locs = append(locs, located{h: h, seg: seg, slot: i})
		}
	}
	slices.SortFunc(locs, func(a, b located) int {
		if c := cmp.Compare(a.seg, b.seg); c != 0 {
			return c
		}
		return cmp.Compare(a.slot, b.slot)
	})
	out := make([]Handle, len(locs))
	for i, l := range locs {
		out[i] = l.h
	}
	return out
}

// IsRunning reports whether h refers to a live process on this instance.
func (s *Scheduler) IsRunning(h Handle) bool {
	_, _, ok := s.handles.resolve(h)
	return ok
}

// IsPaused reports whether h is live and paused.
func (s *Scheduler) IsPaused(h Handle) bool {
	seg, i, ok := s.handles.resolve(h)
	return ok && s.stores[seg].slots[i].paused
}

// IsBlocked reports whether h is live and held by a wait or lock.
func (s *Scheduler) IsBlocked(h Handle) bool {
	seg, i, ok := s.handles.resolve(h)
	return ok && s.stores[seg].slots[i].blocked > 0
}

// TagOf returns the tag of h, or "" when h is untagged or not live.
func (s *Scheduler) TagOf(h Handle) string {
	seg, i, ok := s.handles.resolve(h)
	if !ok {
		return ""
	}
	return s.stores[seg].slots[i].tag
}

// Count returns the number of live processes in seg.
func (s *Scheduler) Count(seg Segment) int {
	if !seg.Valid() {
		return 0
	}
	return s.stores[seg].count()
}

// Capacity returns the current slot capacity of seg.
func (s *Scheduler) Capacity(seg Segment) int {
	if !seg.Valid() {
		return 0
	}
	return len(s.stores[seg].slots)
}

// TagCount returns the number of live processes carrying tag.
func (s *Scheduler) TagCount(tag string) int {
	return s.tags.count(tag)
}

// PendingFaults returns the number of queued faults not yet surfaced.
func (s *Scheduler) PendingFaults() int {
	return s.faults.len()
}

// DrainFaults removes and returns every queued fault, oldest first. Hosts
// call it when no further driver call will surface them.
func (s *Scheduler) DrainFaults() []error {
	var errs []error
	for f := s.faults.pop(); f != nil; f = s.faults.pop() {
		errs = append(errs, f)
	}
	return errs
}

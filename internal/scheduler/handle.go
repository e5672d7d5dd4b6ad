package scheduler

import "fmt"

// Handle identifies a submitted process for its lifetime.
//
// A handle carries the owning instance key, an index into the instance's
// handle table and the generation of that table entry. Entries are recycled
// through a free list; bumping the generation on every allocation makes
// stale handles fail lookups instead of aliasing a newer process.
//
// The zero Handle is invalid.
type Handle struct {
	key   uint8
	index uint32
	gen   uint32
}

// Key returns the key of the scheduler instance that issued the handle.
func (h Handle) Key() uint8 {
	return h.key
}

// IsValid reports whether the handle was issued by some instance. A valid
// handle may still refer to a process that is no longer running.
func (h Handle) IsValid() bool {
	return h.key != 0
}

// String formats the handle as key:index.gen.
func (h Handle) String() string {
	if !h.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d.%d", h.key, h.index, h.gen)
}

// LockKey is an unbound key used with Lock and Unlock. It never identifies a
// process.
type LockKey uint64

// handleEntry records where a live handle's process currently lives.
type handleEntry struct {
	gen  uint32
	seg  Segment
	slot int
	live bool
}

// handleTable is the handle registry: an arena of entries with a free list.
// It replaces a pair of handle->index / index->handle maps. The reverse
// direction is the handle stored in each slot.
type handleTable struct {
	key     uint8
	entries []handleEntry
	free    []uint32
}

func newHandleTable(key uint8) *handleTable {
	return &handleTable{
		key:     key,
		entries: make([]handleEntry, 0, 64),
	}
}

// alloc issues a new handle pointing at (seg, slot).
func (t *handleTable) alloc(seg Segment, slot int) Handle {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.entries))
		t.entries = append(t.entries, handleEntry{})
	}

	e := &t.entries[idx]
	e.gen++
	e.seg = seg
	e.slot = slot
	e.live = true

	return Handle{key: t.key, index: idx, gen: e.gen}
}

// resolve returns the location of a live handle.
func (t *handleTable) resolve(h Handle) (Segment, int, bool) {
	if h.key != t.key || int(h.index) >= len(t.entries) {
		return Invalid, 0, false
	}
	e := t.entries[h.index]
	if !e.live || e.gen != h.gen {
		return Invalid, 0, false
	}
	return e.seg, e.slot, true
}

// move repoints a live handle at a new slot in the same segment.
func (t *handleTable) move(h Handle, slot int) {
	if _, _, ok := t.resolve(h); ok {
		t.entries[h.index].slot = slot
	}
}

// release retires a handle. Releasing a stale handle is a no-op.
func (t *handleTable) release(h Handle) {
	if _, _, ok := t.resolve(h); !ok {
		return
	}
	t.entries[h.index].live = false
	t.free = append(t.free, h.index)
}

// liveCount returns the number of live handles.
func (t *handleTable) liveCount() int {
	return len(t.entries) - len(t.free)
}

package scheduler

import "math"

// DefaultChunkSize is the growth unit of a segment store.
const DefaultChunkSize = 64

// defaultCapacity holds the initial slot capacity of each segment.
var defaultCapacity = [segmentCount]int{
	Update:      256,
	FixedUpdate: 64,
	LateUpdate:  8,
	SlowUpdate:  64,
}

// slot is one entry of a segment store. A slot with a nil cont is empty.
//
// nextAt is the segment time at which the process may next be advanced;
// -Inf means "on the next pass". paused and blocked are independent: a
// process runs only when it is neither paused nor blocked by any lock or
// wait record.
type slot struct {
	cont    continuation
	handle  Handle
	tag     string
	paused  bool
	blocked int
	nextAt  float64
}

func (sl *slot) runnable() bool {
	return sl.cont != nil && !sl.paused && sl.blocked == 0
}

// segmentStore is the ordered, growable slot array of one segment.
//
// Slots in [0, next) have been handed out. Finished slots are cleared in
// place and reclaimed by compaction, so slot order equals submission order
// for live processes.
type segmentStore struct {
	slots   []slot
	next    int
	initial int
}

func newSegmentStore(initial int) *segmentStore {
	return &segmentStore{
		slots:   make([]slot, initial),
		initial: initial,
	}
}

// append claims the next free slot, growing the array when full. The grown
// capacity is len + chunk*expansions; the caller bumps expansions after a
// growth.
func (st *segmentStore) append(chunk, expansions int) (int, bool) {
	grew := false
	if st.next >= len(st.slots) {
		grown := make([]slot, len(st.slots)+chunk*expansions)
		copy(grown, st.slots)
		st.slots = grown
		grew = true
	}
	i := st.next
	st.next++
	st.slots[i] = slot{nextAt: math.Inf(-1)}
	return i, grew
}

// count returns the number of live processes.
func (st *segmentStore) count() int {
	n := 0
	for i := 0; i < st.next; i++ {
		if st.slots[i].cont != nil {
			n++
		}
	}
	return n
}

// compact moves live slots down over empty ones, preserving order. moved is
// called for every slot that changed index.
func (st *segmentStore) compact(moved func(h Handle, to int)) int {
	w := 0
	for r := 0; r < st.next; r++ {
		if st.slots[r].cont == nil {
			continue
		}
		if r != w {
			st.slots[w] = st.slots[r]
			moved(st.slots[w].handle, w)
		}
		w++
	}
	reclaimed := st.next - w
	clear(st.slots[w:st.next])
	st.next = w
	return reclaimed
}

// reset drops every slot and returns to the initial capacity.
func (st *segmentStore) reset() {
	st.slots = make([]slot, st.initial)
	st.next = 0
}

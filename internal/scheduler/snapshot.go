package scheduler

// Snapshot is a point-in-time summary of an instance, used by hosts and
// tooling to render occupancy.
type Snapshot struct {
	Key       uint8
	LocalTime float64
	Segments  []SegmentSnapshot
	Handles   int
	Waits     int
	Faults    int
}

// SegmentSnapshot summarizes one segment store.
type SegmentSnapshot struct {
	Segment  Segment
	Live     int
	Paused   int
	Blocked  int
	Used     int
	Capacity int
}

// Snapshot captures the current occupancy of every segment.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Key:       s.key,
		LocalTime: s.localTime,
		Segments:  make([]SegmentSnapshot, 0, segmentCount),
		Handles:   s.handles.liveCount(),
		Waits:     s.waits.size(),
		Faults:    s.faults.len(),
	}
	for _, seg := range Segments {
		st := s.stores[seg]
		ss := SegmentSnapshot{Segment: seg, Used: st.next, Capacity: len(st.slots)}
		for i := 0; i < st.next; i++ {
			sl := &st.slots[i]
			if sl.cont == nil {
				continue
			}
			ss.Live++
			if sl.paused {
				ss.Paused++
			}
			if sl.blocked > 0 {
				ss.Blocked++
			}
		}
		snap.Segments = append(snap.Segments, ss)
	}
	return snap
}

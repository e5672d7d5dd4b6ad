package scheduler

// EventKind names a lifecycle transition of a process.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventKilled    EventKind = "killed"
	EventFaulted   EventKind = "faulted"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventWaiting   EventKind = "waiting"
	EventWoken     EventKind = "woken"
	EventLocked    EventKind = "locked"
	EventUnlocked  EventKind = "unlocked"
	EventCompacted EventKind = "compacted"
)

// Event describes one lifecycle transition.
//
// Target is set for waiting (the awaited process) and woken (the process
// whose death released the dependent). Lock is set for locked and unlocked.
// Reclaimed is the number of slots freed by a compacted event, which has no
// Handle.
type Event struct {
	Kind      EventKind
	Handle    Handle
	Segment   Segment
	Tag       string
	Frame     int64
	Time      float64
	Target    Handle
	Lock      LockKey
	Reclaimed int
	Err       error
}

// Observer receives lifecycle events synchronously from the driving
// goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

func (s *Scheduler) emit(e Event) {
	if len(s.observers) == 0 {
		return
	}
	e.Frame = s.frames.FrameCount()
	if e.Segment.Valid() {
		e.Time = s.segmentTime(e.Segment)
	}
	for _, o := range s.observers {
		o.Observe(e)
	}
}

package scheduler

// DefaultSlowUpdateInterval is the minimum realtime between SlowUpdate passes.
const DefaultSlowUpdateInterval = 1.0 / 7.0

// FrameSource is the host's view of time.
//
// FrameCount identifies the current host frame. DeltaTime is the length of
// that frame and clocks Update and LateUpdate. FixedDeltaTime is the fixed
// step and clocks FixedUpdate, whichever segment is being driven when the
// fixed clock first ticks in a frame. Realtime is seconds since host start
// and clocks SlowUpdate.
type FrameSource interface {
	FrameCount() int64
	DeltaTime() float64
	FixedDeltaTime() float64
	Realtime() float64
}

// segmentClock accumulates host deltas at most once per host frame.
type segmentClock struct {
	frame int64
	last  float64
	delta float64
}

func newSegmentClock() segmentClock {
	return segmentClock{frame: -1}
}

// tick advances the clock if the host frame changed since the last tick.
func (c *segmentClock) tick(frame int64, delta float64) {
	if c.frame != frame {
		c.last += delta
		c.frame = frame
	}
	c.delta = delta
}

// slowClock follows host realtime directly.
type slowClock struct {
	frame int64
	last  float64
	delta float64
}

func (c *slowClock) tick(frame int64, realtime float64) {
	if c.frame != frame {
		c.delta = realtime - c.last
		c.last = realtime
		c.frame = frame
	}
}

// updateTimeValues advances the clock of seg for the current host frame and
// exposes it through LocalTime and DeltaTime.
func (s *Scheduler) updateTimeValues(seg Segment) {
	frame := s.frames.FrameCount()
	switch seg {
	case Update, LateUpdate:
		s.updateClock.tick(frame, s.frames.DeltaTime())
		s.localTime, s.deltaTime = s.updateClock.last, s.updateClock.delta
	case FixedUpdate:
		s.fixedClock.tick(frame, s.frames.FixedDeltaTime())
		s.localTime, s.deltaTime = s.fixedClock.last, s.fixedClock.delta
	case SlowUpdate:
		s.slowClock.tick(frame, s.frames.Realtime())
		s.localTime, s.deltaTime = s.slowClock.last, s.slowClock.delta
	}
}

// segmentTime returns the time seg will report on its next pass, without
// advancing anything.
func (s *Scheduler) segmentTime(seg Segment) float64 {
	frame := s.frames.FrameCount()
	switch seg {
	case Update, LateUpdate:
		if s.updateClock.frame == frame {
			return s.updateClock.last
		}
		return s.updateClock.last + s.frames.DeltaTime()
	case FixedUpdate:
		if s.fixedClock.frame == frame {
			return s.fixedClock.last
		}
		return s.fixedClock.last + s.frames.FixedDeltaTime()
	case SlowUpdate:
		return s.frames.Realtime()
	default:
		return 0
	}
}

// ResetTime zeroes the Update and FixedUpdate clocks. SlowUpdate follows
// host realtime and cannot be reset.
func (s *Scheduler) ResetTime() {
	s.localTime = 0
	s.updateClock.last = 0
	s.fixedClock.last = 0
}

// LocalTime returns the time of the segment most recently driven.
func (s *Scheduler) LocalTime() float64 {
	return s.localTime
}

// DeltaTime returns the delta of the segment most recently driven.
func (s *Scheduler) DeltaTime() float64 {
	return s.deltaTime
}

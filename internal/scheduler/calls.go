package scheduler

// CallDelayed runs fn once, delay seconds from now, in the Update segment.
// A nil fn yields the zero Handle.
func (s *Scheduler) CallDelayed(delay float64, fn func(), opts ...RunOption) Handle {
	if fn == nil {
		return Handle{}
	}
	return s.Run(func(yield func(Yield) bool) {
		if !yield(s.WaitForSeconds(delay)) {
			return
		}
		fn()
	}, Update, opts...)
}

// CallPeriodically calls fn every period seconds for timeframe seconds in
// seg, then calls onDone if it is not nil.
func (s *Scheduler) CallPeriodically(timeframe, period float64, fn, onDone func(), seg Segment, opts ...RunOption) Handle {
	if fn == nil {
		return Handle{}
	}
	return s.Run(s.callContinuously(timeframe, period, fn, onDone), seg, opts...)
}

// CallContinuously calls fn on every pass of seg for timeframe seconds, then
// calls onDone if it is not nil.
func (s *Scheduler) CallContinuously(timeframe float64, fn, onDone func(), seg Segment, opts ...RunOption) Handle {
	if fn == nil {
		return Handle{}
	}
	return s.Run(s.callContinuously(timeframe, 0, fn, onDone), seg, opts...)
}

func (s *Scheduler) callContinuously(timeframe, period float64, fn, onDone func()) Process {
	return func(yield func(Yield) bool) {
		start := s.localTime
		for s.localTime <= start+timeframe {
			if !yield(s.WaitForSeconds(period)) {
				return
			}
			fn()
		}
		if onDone != nil {
			onDone()
		}
	}
}

// CallPeriodicallyWith is CallPeriodically with a value handed to every call.
func CallPeriodicallyWith[T any](s *Scheduler, ref T, timeframe, period float64, fn, onDone func(T), seg Segment, opts ...RunOption) Handle {
	if fn == nil {
		return Handle{}
	}
	return s.Run(s.callContinuously(timeframe, period, bind(fn, ref), bind(onDone, ref)), seg, opts...)
}

// CallContinuouslyWith is CallContinuously with a value handed to every call.
func CallContinuouslyWith[T any](s *Scheduler, ref T, timeframe float64, fn, onDone func(T), seg Segment, opts ...RunOption) Handle {
	if fn == nil {
		return Handle{}
	}
	return s.Run(s.callContinuously(timeframe, 0, bind(fn, ref), bind(onDone, ref)), seg, opts...)
}

func bind[T any](fn func(T), ref T) func() {
	if fn == nil {
		return nil
	}
	return func() { fn(ref) }
}

// CancelWith wraps p so that it ends as soon as alive reports false. alive
// is checked before every advance of p.
func CancelWith(p Process, alive func() bool) Process {
	if p == nil || alive == nil {
		return p
	}
	return func(yield func(Yield) bool) {
		if !alive() {
			return
		}
		for y := range p {
			if !yield(y) || !alive() {
				return
			}
		}
	}
}

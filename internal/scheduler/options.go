package scheduler

import "log/slog"

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRegistry registers the instance in r instead of the default registry.
func WithRegistry(r *Registry) Option {
	return func(s *Scheduler) {
		s.registry = r
	}
}

// WithErrorHandler installs a sink for process faults. Without one, faults
// are queued and returned from the next driver call.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// WithObserver adds a lifecycle observer. Observers are called in the order
// they were added.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithLogger sets the logger used for warnings and faults.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInitialCapacity sets the starting slot count of one segment.
func WithInitialCapacity(seg Segment, n int) Option {
	return func(s *Scheduler) {
		if seg.Valid() && n > 0 {
			s.capacity[seg] = n
		}
	}
}

// WithChunkSize sets the growth unit of the segment stores.
//
// Default: 64 (DefaultChunkSize)
func WithChunkSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithMaintenanceInterval sets how many Update calls pass between compactions.
//
// Default: 64 (DefaultMaintenanceInterval)
func WithMaintenanceInterval(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maintenanceInterval = n
		}
	}
}

// WithSlowUpdateInterval sets the minimum realtime between SlowUpdate passes.
func WithSlowUpdateInterval(seconds float64) Option {
	return func(s *Scheduler) {
		if seconds >= 0 {
			s.slowInterval = seconds
		}
	}
}

// WithPreExecute installs a hook run at the start of every Update call.
func WithPreExecute(fn func()) Option {
	return func(s *Scheduler) {
		s.preExecute = fn
	}
}

// WithMaxSwaps sets the per-slot continuation swap quota of one pass.
//
// Default: 1000 (DefaultMaxSwaps)
// Use WithMaxSwaps(5) for testing quota enforcement.
func WithMaxSwaps(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxSwaps = n
		}
	}
}

// RunOption configures a single submission.
type RunOption func(*runConfig)

type runConfig struct {
	tag      string
	deferred bool
}

// Tagged attaches tag to the submitted process.
func Tagged(tag string) RunOption {
	return func(c *runConfig) {
		c.tag = tag
	}
}

// Deferred suppresses the eager first step; the process is first advanced
// on the next pass of its segment.
func Deferred() RunOption {
	return func(c *runConfig) {
		c.deferred = true
	}
}

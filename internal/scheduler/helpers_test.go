package scheduler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/testutil"
)

// newTestScheduler builds an instance on a private registry with a one
// second frame delta and a silent logger.
func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *testutil.ManualFrames) {
	t.Helper()
	frames := testutil.NewManualFrames(1)
	base := []Option{
		WithRegistry(NewRegistry()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	s, err := New(frames, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, frames
}

// tick moves the host to the next frame and drives Update.
func tick(t *testing.T, s *Scheduler, frames *testutil.ManualFrames) {
	t.Helper()
	frames.Advance()
	require.NoError(t, s.Update())
}

// ticks calls tick n times.
func ticks(t *testing.T, s *Scheduler, frames *testutil.ManualFrames, n int) {
	t.Helper()
	for range n {
		tick(t, s, frames)
	}
}

// counting returns a process that increments *n on every step and never
// finishes on its own.
func counting(n *int) Process {
	return func(yield func(Yield) bool) {
		for {
			*n++
			if !yield(NextFrame()) {
				return
			}
		}
	}
}

// recording returns a process that appends name to *log on each of its
// steps and finishes after steps steps.
func recording(log *[]string, name string, steps int) Process {
	return func(yield func(Yield) bool) {
		for range steps {
			*log = append(*log, name)
			if !yield(NextFrame()) {
				return
			}
		}
	}
}

// recorder collects observer events.
type recorder struct {
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) kinds(h Handle) []EventKind {
	var out []EventKind
	for _, e := range r.events {
		if e.Handle == h {
			out = append(out, e.Kind)
		}
	}
	return out
}

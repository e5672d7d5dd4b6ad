package harness

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/scheduler"
)

// ErrSessionDone is returned by Step once every scenario frame has run.
var ErrSessionDone = errors.New("harness: session finished")

// Session executes a scenario one frame at a time. Run drives a session to
// the end in one call; interactive callers step it themselves and read the
// trace as it grows.
//
// A Session is not safe for concurrent use.
type Session struct {
	r       *runner
	result  *Result
	frame   int64
	flushed int
	events  []ir.Event
	done    bool
}

// NewSession builds the host for scenario and starts its non-manual
// processes at frame 0.
func NewSession(scenario *Scenario, opts ...Option) (*Session, error) {
	r, err := newRunner(scenario, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	result := NewResult()
	result.Frames = scenario.Frames
	return &Session{r: r, result: result, events: []ir.Event{}}, nil
}

// Scenario returns the scenario being executed.
func (s *Session) Scenario() *Scenario {
	return s.r.scenario
}

// Scheduler returns the scheduler driven by the session's host.
func (s *Session) Scheduler() *scheduler.Scheduler {
	return s.r.sched
}

// Frame returns the last frame stepped, 0 before the first Step.
func (s *Session) Frame() int64 {
	return s.frame
}

// Done reports whether every scenario frame has run.
func (s *Session) Done() bool {
	return s.frame >= s.r.scenario.Frames
}

// Step posts the next frame's actions and advances the host one frame.
// Faults surfaced during the frame are recorded in the result and returned.
func (s *Session) Step(ctx context.Context) error {
	if s.Done() {
		return ErrSessionDone
	}
	s.frame++
	frame := s.frame

	if acts := s.r.actions[frame]; len(acts) > 0 {
		s.r.host.Post(func(*scheduler.Scheduler) {
			for _, a := range acts {
				s.r.apply(a)
			}
		})
	}

	err := s.r.host.Step(ctx)
	if err != nil {
		s.recordFaults(frame, splitErrors(err))
	}
	return err
}

func (s *Session) recordFaults(frame int64, errs []error) {
	for _, f := range errs {
		s.result.Faults = append(s.result.Faults, fmt.Sprintf("frame %d: %v", frame, f))
	}
}

// Flush returns the trace events produced since the previous Flush, with
// seq continuing across calls.
func (s *Session) Flush() []ir.Event {
	fresh := s.r.convert(s.r.entries[s.flushed:], int64(len(s.events)))
	s.flushed = len(s.r.entries)
	s.events = append(s.events, fresh...)
	return fresh
}

// Faults returns the faults recorded so far.
func (s *Session) Faults() []string {
	return s.result.Faults
}

// States returns the current state of every instance, keyed by instance
// name.
func (s *Session) States() map[string]string {
	states := make(map[string]string)
	s.r.finalStates(states)
	return states
}

// Finish records faults still queued in the scheduler, converts the rest
// of the trace, records final states and evaluates assertions. It may be called before Done to cut a session
// short; Result.Frames then reports the frames actually run. Calling Finish
// again returns the same result.
func (s *Session) Finish() (*Result, error) {
	if s.done {
		return s.result, nil
	}
	s.recordFaults(s.frame, s.r.sched.DrainFaults())
	s.Flush()

	result := s.result
	result.Frames = s.frame
	result.Trace = s.events
	maps.Copy(result.Final, s.States())

	digest, err := ir.Digest(result.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to compute digest: %w", err)
	}
	result.Digest = digest

	for _, msg := range EvaluateAssertions(result, s.r.scenario.Assertions) {
		result.AddError(msg)
	}
	s.done = true

	s.r.logger.Info("scenario finished",
		"scenario", s.r.scenario.Name,
		"frames", result.Frames,
		"events", len(result.Trace),
		"faults", len(result.Faults),
		"pass", result.Pass,
	)
	return result, nil
}

// Close kills every process and releases the host.
func (s *Session) Close() {
	s.r.host.Close()
}

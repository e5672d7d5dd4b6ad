package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/framesched/internal/host"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/scheduler"
)

// Scenario defaults. A harness frame is 100ms so that scripted waits read
// naturally in milliseconds.
const (
	DefaultFrameRate = 10.0
	DefaultFixedRate = 20.0

	// EventLog is the trace kind of a log step.
	EventLog = "log"
)

// Option configures a harness run.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	hostOpts []host.Option
}

// WithLogger sets the logger passed to the host and scheduler. Runs are
// silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHostOptions passes extra options to host.New, after the scenario's
// own settings.
func WithHostOptions(opts ...host.Option) Option {
	return func(o *options) {
		o.hostOpts = append(o.hostOpts, opts...)
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// instance is one started copy of a ProcessDef.
type instance struct {
	name   string
	def    *ProcessDef
	handle scheduler.Handle
}

// entry is a buffered trace entry. Lifecycle events are converted once the
// run ends so that every handle has a name, including the started event
// emitted before Run returns the handle.
type entry struct {
	event   scheduler.Event
	inst    *instance
	message string
	segment scheduler.Segment
	frame   int64
	time    float64
}

// runner executes one scenario on a deterministic host.
type runner struct {
	scenario *Scenario
	host     *host.Host
	sched    *scheduler.Scheduler
	logger   *slog.Logger

	defs      map[string]*ProcessDef
	instances []*instance
	names     map[scheduler.Handle]string
	latest    map[string]scheduler.Handle
	counts    map[string]int
	flags     map[string]bool
	locks     map[string]scheduler.LockKey
	actions   map[int64][]Action
	entries   []entry
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh host with a private registry so runs never
// share instance keys. Steps are fixed length, which makes the trace and its
// digest a pure function of the scenario.
//
// Execution flow:
//  1. Start every non-manual process in declaration order (frame 0)
//  2. For each frame, post that frame's actions and step the host
//  3. Convert the buffered events into a trace
//  4. Evaluate assertions against the trace and the final states
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	s, err := NewSession(scenario, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	ctx := context.Background()
	for !s.Done() {
		// faults are collected in the result
		_ = s.Step(ctx)
	}
	return s.Finish()
}

func newRunner(scenario *Scenario, o options) (*runner, error) {
	r := &runner{
		scenario: scenario,
		logger:   o.logger,
		defs:     make(map[string]*ProcessDef, len(scenario.Processes)),
		names:    make(map[scheduler.Handle]string),
		latest:   make(map[string]scheduler.Handle),
		counts:   make(map[string]int),
		flags:    make(map[string]bool),
		locks:    make(map[string]scheduler.LockKey),
		actions:  make(map[int64][]Action),
	}
	for i := range scenario.Processes {
		def := &scenario.Processes[i]
		r.defs[def.Name] = def
	}
	for _, a := range scenario.Actions {
		r.actions[a.Frame] = append(r.actions[a.Frame], a)
	}

	h, err := host.New(append(r.hostOptions(o), o.hostOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}
	r.host = h
	r.sched = h.Scheduler()

	for i := range scenario.Processes {
		if def := &scenario.Processes[i]; !def.Manual {
			r.start(def)
		}
	}
	return r, nil
}

func (r *runner) hostOptions(o options) []host.Option {
	sc := r.scenario
	frameRate, fixedRate, slowInterval := sc.HostRates()

	schedOpts := []scheduler.Option{
		scheduler.WithRegistry(scheduler.NewRegistry()),
		scheduler.WithLogger(o.logger),
		scheduler.WithObserver(scheduler.ObserverFunc(r.observe)),
		scheduler.WithSlowUpdateInterval(slowInterval),
	}
	if sc.MaxSwaps > 0 {
		schedOpts = append(schedOpts, scheduler.WithMaxSwaps(sc.MaxSwaps))
	}

	return []host.Option{
		host.WithFrameRate(frameRate),
		host.WithFixedRate(fixedRate),
		host.WithLogger(o.logger),
		host.WithSchedulerOptions(schedOpts...),
	}
}

func (r *runner) observe(e scheduler.Event) {
	r.entries = append(r.entries, entry{event: e})
}

// start submits a new instance of def. The first instance carries the
// definition name; later ones are suffixed "#2", "#3" and so on.
func (r *runner) start(def *ProcessDef) scheduler.Handle {
	r.counts[def.Name]++
	name := def.Name
	if n := r.counts[def.Name]; n > 1 {
		name = fmt.Sprintf("%s#%d", def.Name, n)
	}
	inst := &instance{name: name, def: def}
	r.instances = append(r.instances, inst)

	var opts []scheduler.RunOption
	if def.Tag != "" {
		opts = append(opts, scheduler.Tagged(def.Tag))
	}
	if def.Deferred {
		opts = append(opts, scheduler.Deferred())
	}

	h := r.sched.Run(r.script(inst), def.segment(), opts...)
	inst.handle = h
	if h.IsValid() {
		r.names[h] = name
		r.latest[def.Name] = h
	}
	return h
}

// script builds the process body for inst.
func (r *runner) script(inst *instance) scheduler.Process {
	def := inst.def
	return func(yield func(scheduler.Yield) bool) {
		for {
			for _, st := range def.Steps {
				for range max(st.Repeat, 1) {
					y, suspends := r.exec(inst, st)
					if !suspends {
						continue
					}
					if !yield(y) || y.Kind() == scheduler.KindDone {
						return
					}
				}
			}
			if !def.Loop {
				return
			}
		}
	}
}

// exec performs one step and reports whether it suspends the process.
func (r *runner) exec(inst *instance, st Step) (scheduler.Yield, bool) {
	s := r.sched
	switch st.Op {
	case OpNextFrame:
		return scheduler.NextFrame(), true
	case OpWaitSeconds:
		return s.WaitForSeconds(st.Seconds), true
	case OpWaitFor:
		return s.WaitUntilDone(r.latest[st.Target]), true
	case OpWaitFlag:
		flag := st.Flag
		return s.WaitUntilDoneExternal(scheduler.PollFunc(func() bool {
			return r.flags[flag]
		})), true
	case OpFinish:
		return scheduler.Done(), true
	case OpPanic:
		msg := st.Message
		if msg == "" {
			msg = "scripted panic"
		}
		panic(msg)
	case OpLog:
		r.log(inst, st.Message)
	case OpSpawn:
		r.start(r.defs[st.Target])
	case OpKill:
		s.Kill(r.latest[st.Target])
	case OpKillTag:
		s.KillTag(st.Tag)
	}
	return scheduler.Yield{}, false
}

func (r *runner) log(inst *instance, msg string) {
	r.entries = append(r.entries, entry{
		inst:    inst,
		message: msg,
		segment: inst.def.segment(),
		frame:   r.host.FrameCount(),
		time:    r.sched.LocalTime(),
	})
}

// apply performs a host action. Actions on a target that is not running are
// no-ops, as they are on the scheduler.
func (r *runner) apply(a Action) {
	s := r.sched
	switch a.Op {
	case ActKill:
		s.Kill(r.latest[a.Target])
	case ActKillTag:
		s.KillTag(a.Tag)
	case ActPause:
		s.Pause(r.latest[a.Target])
	case ActResume:
		s.Resume(r.latest[a.Target])
	case ActPauseTag:
		s.PauseTag(a.Tag)
	case ActResumeTag:
		s.ResumeTag(a.Tag)
	case ActPauseAll:
		s.PauseAll()
	case ActResumeAll:
		s.ResumeAll()
	case ActSetFlag:
		r.flags[a.Flag] = true
	case ActRun:
		r.start(r.defs[a.Target])
	case ActLock:
		s.Lock(r.latest[a.Target], r.lockKey(a.Lock))
	case ActUnlock:
		s.Unlock(r.latest[a.Target], r.lockKey(a.Lock))
	}
	r.logger.Debug("action applied", "frame", a.Frame, "op", a.Op, "target", a.Target, "tag", a.Tag)
}

// lockKey maps a scenario lock name to a scheduler key, allocating on first
// use.
func (r *runner) lockKey(name string) scheduler.LockKey {
	key, ok := r.locks[name]
	if !ok {
		key = r.sched.NewLockKey()
		r.locks[name] = key
	}
	return key
}

func (r *runner) name(h scheduler.Handle) string {
	if n, ok := r.names[h]; ok {
		return n
	}
	return h.String()
}

// convert turns buffered entries into trace events, numbering them from
// seq+1.
func (r *runner) convert(entries []entry, seq int64) []ir.Event {
	events := make([]ir.Event, 0, len(entries))
	for _, en := range entries {
		seq++
		if en.inst == nil {
			events = append(events, en.event.Record(seq, r.name))
			continue
		}
		events = append(events, ir.Event{
			Seq:        seq,
			Frame:      en.frame,
			Segment:    en.segment.String(),
			Kind:       EventLog,
			Process:    en.inst.name,
			Tag:        en.inst.def.Tag,
			TimeMillis: ir.Millis(en.time),
			Detail:     ir.Object{"message": ir.String(en.message)},
		})
	}
	return events
}

// finalStates records the state of every instance, and not_started for
// definitions that never ran.
func (r *runner) finalStates(final map[string]string) {
	for _, inst := range r.instances {
		h := inst.handle
		switch {
		case !r.sched.IsRunning(h):
			final[inst.name] = StateFinished
		case r.sched.IsPaused(h):
			final[inst.name] = StatePaused
		case r.sched.IsBlocked(h):
			final[inst.name] = StateBlocked
		default:
			final[inst.name] = StateRunning
		}
	}
	for _, def := range r.scenario.Processes {
		if r.counts[def.Name] == 0 {
			final[def.Name] = StateNotStarted
		}
	}
}

// splitErrors unpacks an errors.Join result.
func splitErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// matchProcess reports whether an event process name satisfies pattern. A
// definition name also matches its numbered instances.
func matchProcess(pattern, name string) bool {
	return pattern == "" || name == pattern || strings.HasPrefix(name, pattern+"#")
}

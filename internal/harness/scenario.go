package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/framesched/internal/scheduler"
)

// Scenario is a scripted simulation: a set of processes, host actions at
// given frames and assertions over the resulting trace.
//
// Struct tags carry both yaml and json names so the CUE compiler can decode
// into the same type.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Frames is the number of host frames to simulate.
	Frames int64 `yaml:"frames" json:"frames"`

	// FrameRate and FixedRate default to DefaultFrameRate and
	// DefaultFixedRate.
	FrameRate float64 `yaml:"frame_rate,omitempty" json:"frame_rate,omitempty"`
	FixedRate float64 `yaml:"fixed_rate,omitempty" json:"fixed_rate,omitempty"`

	// SlowInterval overrides the SlowUpdate interval when set.
	SlowInterval *float64 `yaml:"slow_interval,omitempty" json:"slow_interval,omitempty"`

	// MaxSwaps overrides the per-advance swap quota when positive.
	MaxSwaps int `yaml:"max_swaps,omitempty" json:"max_swaps,omitempty"`

	// Processes are the scripted processes. Unless Manual, each is started
	// before the first frame in declaration order.
	Processes []ProcessDef `yaml:"processes" json:"processes"`

	// Actions are host-side operations applied at the start of a frame.
	Actions []Action `yaml:"actions,omitempty" json:"actions,omitempty"`

	// Assertions validate the trace and final process states.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// ProcessDef describes one scripted process.
type ProcessDef struct {
	Name    string `yaml:"name" json:"name"`
	Segment string `yaml:"segment,omitempty" json:"segment,omitempty"`
	Tag     string `yaml:"tag,omitempty" json:"tag,omitempty"`

	// Deferred skips the eager first step on submission.
	Deferred bool `yaml:"deferred,omitempty" json:"deferred,omitempty"`

	// Manual processes are only started by a run action or a spawn step.
	Manual bool `yaml:"manual,omitempty" json:"manual,omitempty"`

	// Loop restarts the steps after the last one instead of finishing.
	Loop bool `yaml:"loop,omitempty" json:"loop,omitempty"`

	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one instruction of a scripted process.
type Step struct {
	Op string `yaml:"op" json:"op"`

	Seconds float64 `yaml:"seconds,omitempty" json:"seconds,omitempty"`
	Target  string  `yaml:"target,omitempty" json:"target,omitempty"`
	Tag     string  `yaml:"tag,omitempty" json:"tag,omitempty"`
	Flag    string  `yaml:"flag,omitempty" json:"flag,omitempty"`
	Message string  `yaml:"message,omitempty" json:"message,omitempty"`

	// Repeat runs the step this many times. Zero means once.
	Repeat int `yaml:"repeat,omitempty" json:"repeat,omitempty"`
}

// Step operations.
const (
	OpNextFrame   = "next_frame"
	OpWaitSeconds = "wait_seconds"
	OpWaitFor     = "wait_for"
	OpWaitFlag    = "wait_flag"
	OpLog         = "log"
	OpPanic       = "panic"
	OpSpawn       = "spawn"
	OpKill        = "kill"
	OpKillTag     = "kill_tag"
	OpFinish      = "finish"
)

// Action is a host-side operation applied at the start of Frame, before
// any segment runs.
type Action struct {
	Frame  int64  `yaml:"frame" json:"frame"`
	Op     string `yaml:"op" json:"op"`
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
	Tag    string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Flag   string `yaml:"flag,omitempty" json:"flag,omitempty"`
	Lock   string `yaml:"lock,omitempty" json:"lock,omitempty"`
}

// Action operations.
const (
	ActKill      = "kill"
	ActKillTag   = "kill_tag"
	ActPause     = "pause"
	ActResume    = "resume"
	ActPauseTag  = "pause_tag"
	ActResumeTag = "resume_tag"
	ActPauseAll  = "pause_all"
	ActResumeAll = "resume_all"
	ActSetFlag   = "set_flag"
	ActRun       = "run"
	ActLock      = "lock"
	ActUnlock    = "unlock"
)

// Assertion validates the trace or the final state of a process.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type" json:"type"`

	// Kind and Process select events for trace_contains and trace_count.
	// Empty fields match anything. Process matches an instance name, and a
	// definition name also matches its "name#k" instances.
	Kind    string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Process string `yaml:"process,omitempty" json:"process,omitempty"`

	// Frame, when set, additionally pins trace_contains to one frame.
	Frame *int64 `yaml:"frame,omitempty" json:"frame,omitempty"`

	// Count is the expected number of matches for trace_count.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Events lists "kind:process" (or bare "kind") patterns that must occur
	// in this order for trace_order.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// State is the expected final state of Process for final_state: one of
	// running, paused, blocked, finished, not_started.
	State string `yaml:"state,omitempty" json:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Final process states reported in Result.Final.
const (
	StateRunning    = "running"
	StatePaused     = "paused"
	StateBlocked    = "blocked"
	StateFinished   = "finished"
	StateNotStarted = "not_started"
)

var (
	stepOps = map[string]bool{
		OpNextFrame: true, OpWaitSeconds: true, OpWaitFor: true, OpWaitFlag: true,
		OpLog: true, OpPanic: true, OpSpawn: true, OpKill: true, OpKillTag: true,
		OpFinish: true,
	}
	actionOps = map[string]bool{
		ActKill: true, ActKillTag: true, ActPause: true, ActResume: true,
		ActPauseTag: true, ActResumeTag: true, ActPauseAll: true, ActResumeAll: true,
		ActSetFlag: true, ActRun: true, ActLock: true, ActUnlock: true,
	}
	finalStates = map[string]bool{
		StateRunning: true, StatePaused: true, StateBlocked: true,
		StateFinished: true, StateNotStarted: true,
	}
)

// HostRates returns the frame rate, fixed rate and SlowUpdate interval the
// scenario runs at, with unset values resolved to their defaults.
func (s *Scenario) HostRates() (frameRate, fixedRate, slowInterval float64) {
	frameRate, fixedRate = s.FrameRate, s.FixedRate
	if frameRate == 0 {
		frameRate = DefaultFrameRate
	}
	if fixedRate == 0 {
		fixedRate = DefaultFixedRate
	}
	slowInterval = scheduler.DefaultSlowUpdateInterval
	if s.SlowInterval != nil {
		slowInterval = *s.SlowInterval
	}
	return frameRate, fixedRate, slowInterval
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a YAML scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario, err := DecodeScenario(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// DecodeScenario parses a YAML scenario document without validating it.
// Unknown fields are still rejected.
func DecodeScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// Validate checks that required fields are present and that every
// reference resolves.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Frames <= 0 {
		return fmt.Errorf("frames must be positive")
	}
	if s.FrameRate < 0 || s.FixedRate < 0 {
		return fmt.Errorf("rates must not be negative")
	}
	if s.SlowInterval != nil && *s.SlowInterval < 0 {
		return fmt.Errorf("slow_interval must not be negative")
	}
	if len(s.Processes) == 0 {
		return fmt.Errorf("processes list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Processes))
	for i, p := range s.Processes {
		if p.Name == "" {
			return fmt.Errorf("processes[%d]: name is required", i)
		}
		if names[p.Name] {
			return fmt.Errorf("processes[%d]: duplicate name %q", i, p.Name)
		}
		names[p.Name] = true
	}

	for i, p := range s.Processes {
		if err := validateProcess(i, &p, names); err != nil {
			return err
		}
	}

	for i, a := range s.Actions {
		if err := validateAction(i, &a, s.Frames, names); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateProcess(index int, p *ProcessDef, names map[string]bool) error {
	if p.Segment != "" {
		if _, err := scheduler.ParseSegment(p.Segment); err != nil {
			return fmt.Errorf("processes[%d]: %w", index, err)
		}
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("processes[%d]: steps list is required and must be non-empty", index)
	}
	if p.Loop && !yields(p.Steps) {
		return fmt.Errorf("processes[%d]: a loop needs at least one suspending step", index)
	}

	for j, st := range p.Steps {
		where := fmt.Sprintf("processes[%d].steps[%d]", index, j)
		if !stepOps[st.Op] {
			return fmt.Errorf("%s: unknown op %q", where, st.Op)
		}
		if st.Repeat < 0 {
			return fmt.Errorf("%s: repeat must not be negative", where)
		}
		switch st.Op {
		case OpWaitSeconds:
			if st.Seconds < 0 {
				return fmt.Errorf("%s: seconds must not be negative", where)
			}
		case OpWaitFor, OpSpawn, OpKill:
			if !names[st.Target] {
				return fmt.Errorf("%s: unknown target %q", where, st.Target)
			}
		case OpWaitFlag:
			if st.Flag == "" {
				return fmt.Errorf("%s: flag is required for wait_flag", where)
			}
		case OpKillTag:
			if st.Tag == "" {
				return fmt.Errorf("%s: tag is required for kill_tag", where)
			}
		}
	}
	return nil
}

// yields reports whether steps contain a suspension point.
func yields(steps []Step) bool {
	for _, st := range steps {
		switch st.Op {
		case OpNextFrame, OpWaitSeconds, OpWaitFor, OpWaitFlag, OpFinish, OpPanic:
			return true
		}
	}
	return false
}

func validateAction(index int, a *Action, frames int64, names map[string]bool) error {
	where := fmt.Sprintf("actions[%d]", index)
	if !actionOps[a.Op] {
		return fmt.Errorf("%s: unknown op %q", where, a.Op)
	}
	if a.Frame < 1 || a.Frame > frames {
		return fmt.Errorf("%s: frame %d outside 1..%d", where, a.Frame, frames)
	}
	switch a.Op {
	case ActKill, ActPause, ActResume, ActRun:
		if !names[a.Target] {
			return fmt.Errorf("%s: unknown target %q", where, a.Target)
		}
	case ActLock, ActUnlock:
		if !names[a.Target] {
			return fmt.Errorf("%s: unknown target %q", where, a.Target)
		}
		if a.Lock == "" {
			return fmt.Errorf("%s: lock is required for %s", where, a.Op)
		}
	case ActKillTag, ActPauseTag, ActResumeTag:
		if a.Tag == "" {
			return fmt.Errorf("%s: tag is required for %s", where, a.Op)
		}
	case ActSetFlag:
		if a.Flag == "" {
			return fmt.Errorf("%s: flag is required for set_flag", where)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Kind == "" && a.Process == "" {
			return fmt.Errorf("assertions[%d]: kind or process is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: at least two events are required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" && a.Process == "" {
			return fmt.Errorf("assertions[%d]: kind or process is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Process == "" {
			return fmt.Errorf("assertions[%d]: process is required for final_state", index)
		}
		if !finalStates[a.State] {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// segment resolves the process segment, defaulting to Update.
func (p *ProcessDef) segment() scheduler.Segment {
	if p.Segment == "" {
		return scheduler.Update
	}
	seg, err := scheduler.ParseSegment(p.Segment)
	if err != nil {
		return scheduler.Update
	}
	return seg
}

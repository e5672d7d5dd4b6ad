package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/scheduler"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateProcess  = "E101" // two processes share a name
	ErrUnknownTarget     = "E102" // step or action names an undefined process
	ErrInvalidSegment    = "E103" // unknown segment name
	ErrMissingField      = "E104" // op requires a field that is empty
	ErrActionOutOfRange  = "E105" // action frame outside 1..frames
	ErrBusyLoop          = "E106" // loop without a suspending step
	ErrUnknownAssertProc = "E107" // assertion names an undefined process
)

// Lint warning codes (W200-W299)
const (
	WarnSelfWait        = "W201" // process waits for itself; refused at runtime
	WarnFlagNeverSet    = "W202" // wait_flag on a flag no action sets
	WarnUnreachableStep = "W203" // steps after finish or panic
	WarnUnlockWithout   = "W204" // unlock with no earlier lock of the same name
	WarnWaitCycle       = "W205" // processes wait for each other
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a scenario and returns every problem found, unlike
// harness.Validate which stops at the first.
func Validate(sc *harness.Scenario) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	names := make(map[string]bool, len(sc.Processes))
	for i, p := range sc.Processes {
		if names[p.Name] {
			add(ErrDuplicateProcess, fmt.Sprintf("processes[%d].name", i), "duplicate process name %q", p.Name)
		}
		names[p.Name] = true
	}

	for i, p := range sc.Processes {
		field := fmt.Sprintf("processes[%d]", i)
		if p.Segment != "" {
			if _, err := scheduler.ParseSegment(p.Segment); err != nil {
				add(ErrInvalidSegment, field+".segment", "%v", err)
			}
		}
		if p.Loop && !suspends(p.Steps) {
			add(ErrBusyLoop, field, "loop %q never suspends", p.Name)
		}
		for j, st := range p.Steps {
			sf := fmt.Sprintf("%s.steps[%d]", field, j)
			switch st.Op {
			case harness.OpWaitFor, harness.OpSpawn, harness.OpKill:
				if !names[st.Target] {
					add(ErrUnknownTarget, sf+".target", "unknown process %q", st.Target)
				}
			case harness.OpWaitFlag:
				if st.Flag == "" {
					add(ErrMissingField, sf+".flag", "flag is required for wait_flag")
				}
			case harness.OpKillTag:
				if st.Tag == "" {
					add(ErrMissingField, sf+".tag", "tag is required for kill_tag")
				}
			}
		}
	}

	for i, a := range sc.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		if a.Frame < 1 || a.Frame > sc.Frames {
			add(ErrActionOutOfRange, field+".frame", "frame %d outside 1..%d", a.Frame, sc.Frames)
		}
		switch a.Op {
		case harness.ActKill, harness.ActPause, harness.ActResume, harness.ActRun,
			harness.ActLock, harness.ActUnlock:
			if !names[a.Target] {
				add(ErrUnknownTarget, field+".target", "unknown process %q", a.Target)
			}
		case harness.ActKillTag, harness.ActPauseTag, harness.ActResumeTag:
			if a.Tag == "" {
				add(ErrMissingField, field+".tag", "tag is required for %s", a.Op)
			}
		case harness.ActSetFlag:
			if a.Flag == "" {
				add(ErrMissingField, field+".flag", "flag is required for set_flag")
			}
		}
		if (a.Op == harness.ActLock || a.Op == harness.ActUnlock) && a.Lock == "" {
			add(ErrMissingField, field+".lock", "lock is required for %s", a.Op)
		}
	}

	for i, a := range sc.Assertions {
		if a.Type == harness.AssertFinalState && !names[baseName(a.Process)] {
			add(ErrUnknownAssertProc, fmt.Sprintf("assertions[%d].process", i), "unknown process %q", a.Process)
		}
	}

	return errs
}

// suspends reports whether steps contain a suspension point.
func suspends(steps []harness.Step) bool {
	for _, st := range steps {
		switch st.Op {
		case harness.OpNextFrame, harness.OpWaitSeconds, harness.OpWaitFor,
			harness.OpWaitFlag, harness.OpFinish, harness.OpPanic:
			return true
		}
	}
	return false
}

// baseName strips an instance suffix: "worker#2" -> "worker".
func baseName(name string) string {
	if i := strings.LastIndexByte(name, '#'); i >= 0 {
		return name[:i]
	}
	return name
}

// Warning is a lint finding that does not stop a scenario from running.
type Warning struct {
	Code    string   `json:"code"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

// Lint reports scenario shapes that run but are probably mistakes.
func Lint(sc *harness.Scenario) []Warning {
	var warnings []Warning

	flags := make(map[string]bool)
	for _, a := range sc.Actions {
		if a.Op == harness.ActSetFlag {
			flags[a.Flag] = true
		}
	}

	for i, p := range sc.Processes {
		for j, st := range p.Steps {
			field := fmt.Sprintf("processes[%d].steps[%d]", i, j)
			switch st.Op {
			case harness.OpWaitFor:
				if st.Target == p.Name {
					warnings = append(warnings, Warning{
						Code:    WarnSelfWait,
						Field:   field,
						Message: fmt.Sprintf("%s waits for itself; the wait is refused", p.Name),
					})
				}
			case harness.OpWaitFlag:
				if !flags[st.Flag] {
					warnings = append(warnings, Warning{
						Code:    WarnFlagNeverSet,
						Field:   field,
						Message: fmt.Sprintf("flag %q is never set; %s stays blocked", st.Flag, p.Name),
					})
				}
			case harness.OpFinish, harness.OpPanic:
				if j < len(p.Steps)-1 {
					warnings = append(warnings, Warning{
						Code:    WarnUnreachableStep,
						Field:   fmt.Sprintf("processes[%d].steps[%d]", i, j+1),
						Message: fmt.Sprintf("steps after %s never run", st.Op),
					})
				}
			}
		}
	}

	for i, a := range sc.Actions {
		if a.Op == harness.ActUnlock && !lockedEarlier(sc.Actions, a) {
			warnings = append(warnings, Warning{
				Code:    WarnUnlockWithout,
				Field:   fmt.Sprintf("actions[%d]", i),
				Message: fmt.Sprintf("unlock of %q on %s without an earlier lock", a.Lock, a.Target),
			})
		}
	}

	return append(warnings, AnalyzeWaits(sc)...)
}

// lockedEarlier reports whether some lock action for the same target and
// key happens on an earlier frame, regardless of declaration order.
func lockedEarlier(actions []harness.Action, unlock harness.Action) bool {
	for _, a := range actions {
		if a.Op == harness.ActLock && a.Target == unlock.Target && a.Lock == unlock.Lock && a.Frame <= unlock.Frame {
			return true
		}
	}
	return false
}

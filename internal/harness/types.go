package harness

import "github.com/roach88/framesched/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every lifecycle and log event in seq order.
	Trace []ir.Event `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Faults lists faults surfaced by the host, in frame order. A fault is
	// not an assertion failure; assert on "faulted" events to require or
	// forbid them.
	Faults []string `json:"faults,omitempty"`

	// Final maps each process instance name to its state after the last
	// frame.
	Final map[string]string `json:"final"`

	// Frames is the number of frames simulated.
	Frames int64 `json:"frames"`

	// Digest is ir.Digest of Trace.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ir.Event{},
		Errors: []string{},
		Final:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package ir

import "math"

// Event is one line of a run trace.
//
// Seq is assigned by the recorder and is strictly increasing within a run.
// Process is the display name of the process the event concerns: the
// scheduler handle string, or a scenario process name when the harness
// knows it. TimeMillis is the segment clock rounded to milliseconds.
type Event struct {
	Seq        int64  `json:"seq"`
	Frame      int64  `json:"frame"`
	Segment    string `json:"segment,omitempty"`
	Kind       string `json:"kind"`
	Process    string `json:"process,omitempty"`
	Tag        string `json:"tag,omitempty"`
	TimeMillis int64  `json:"time_ms"`
	Detail     Object `json:"detail,omitempty"`
}

// Millis converts a clock reading in seconds to whole milliseconds.
// Non-finite readings map to zero.
func Millis(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

// Object returns the canonical object form of e.
func (e Event) Object() Object {
	detail := e.Detail
	if detail == nil {
		detail = Object{}
	}
	return Object{
		"seq":     Int(e.Seq),
		"frame":   Int(e.Frame),
		"segment": String(e.Segment),
		"kind":    String(e.Kind),
		"process": String(e.Process),
		"tag":     String(e.Tag),
		"time_ms": Int(e.TimeMillis),
		"detail":  detail,
	}
}

// Run describes one recorded simulation.
//
// Source holds the scenario document so a run can be replayed from the
// journal alone. Digest covers the full trace; two runs of the same source
// must agree on it.
type Run struct {
	ID           string `json:"id"`
	Scenario     string `json:"scenario"`
	Format       string `json:"format"`
	Source       string `json:"source"`
	SourceHash   string `json:"source_hash"`
	Frames       int64  `json:"frames"`
	Events       int64  `json:"events"`
	Digest       string `json:"digest"`
	TraceVersion string `json:"trace_version"`

	// Host rates the run was simulated at. A zero FrameRate marks a run
	// journaled without them.
	FrameRate    float64 `json:"frame_rate,omitempty"`
	FixedRate    float64 `json:"fixed_rate,omitempty"`
	SlowInterval float64 `json:"slow_interval,omitempty"`
}

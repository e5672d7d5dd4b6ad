package scheduler

import (
	"fmt"
	"strings"
)

// Segment identifies the point in the host frame loop at which a process is
// resumed.
type Segment int

const (
	// Invalid is returned by ParseSegment on failure and never holds processes.
	Invalid Segment = iota - 1
	// Update runs once per rendered frame.
	Update
	// FixedUpdate runs on the host's fixed physics step.
	FixedUpdate
	// LateUpdate runs after Update and shares its clock.
	LateUpdate
	// SlowUpdate runs from within Update at most once per slow interval and
	// is clocked by host realtime.
	SlowUpdate
)

// segmentCount is the number of valid segments.
const segmentCount = 4

// Segments lists the valid segments in declaration order.
var Segments = []Segment{Update, FixedUpdate, LateUpdate, SlowUpdate}

var segmentNames = map[Segment]string{
	Update:      "update",
	FixedUpdate: "fixed_update",
	LateUpdate:  "late_update",
	SlowUpdate:  "slow_update",
}

// String returns the snake_case segment name.
func (s Segment) String() string {
	if name, ok := segmentNames[s]; ok {
		return name
	}
	return fmt.Sprintf("invalid(%d)", int(s))
}

// Valid reports whether s is one of the four segments.
func (s Segment) Valid() bool {
	return s >= Update && s <= SlowUpdate
}

// ParseSegment accepts "update", "fixed_update", "late_update" and
// "slow_update" (case-insensitive, '-' or '_' separators, or no separator).
func ParseSegment(name string) (Segment, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	for seg, n := range segmentNames {
		if key == n || key == strings.ReplaceAll(n, "_", "") {
			return seg, nil
		}
	}
	return Invalid, fmt.Errorf("unknown segment %q", name)
}

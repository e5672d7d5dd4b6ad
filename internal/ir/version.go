package ir

// Version constants for the trace format and the tool.
const (
	// TraceVersion is bumped whenever Event's canonical form changes.
	TraceVersion = "1"

	// ToolVersion is the framesched release.
	ToolVersion = "0.1.0"
)

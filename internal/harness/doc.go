// Package harness runs scripted scheduler scenarios and checks their traces.
//
// A scenario declares processes as step lists, host actions applied at the
// start of given frames, and assertions over the resulting trace. The
// harness drives a host.Host at a fixed frame length, records every
// lifecycle event and log step, and returns the trace with its digest.
//
// # Scenario Format
//
//	name: wait_for_loader
//	description: "ui waits until the loader finishes"
//	frames: 6
//	processes:
//	  - name: loader
//	    steps:
//	      - op: wait_seconds
//	        seconds: 0.2
//	  - name: ui
//	    steps:
//	      - op: wait_for
//	        target: loader
//	      - op: log
//	        message: ready
//	actions:
//	  - frame: 2
//	    op: pause
//	    target: loader
//	assertions:
//	  - type: trace_order
//	    events: ["completed:loader", "log:ui"]
//	  - type: final_state
//	    process: ui
//	    state: finished
//
// # Assertion Types
//
//   - trace_contains: at least one event matches kind/process (and frame)
//   - trace_order: "kind:process" patterns occur in order, gaps allowed
//   - trace_count: exactly N events match kind/process
//   - final_state: a process instance ended running, paused, blocked,
//     finished or not_started
//
// # Deterministic Testing
//
// Every run uses a fresh host with a private registry, a fixed frame length
// (100ms unless frame_rate says otherwise) and a silent logger. The same
// scenario therefore always yields the same trace and digest, which is what
// golden files and replay rely on.
package harness

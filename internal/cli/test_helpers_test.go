package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/testutil"
)

const helloScenario = `name: hello
description: "logs once and finishes"
frames: 2
processes:
  - name: greeter
    steps:
      - op: log
        message: hi
assertions:
  - type: trace_count
    kind: log
    process: greeter
    count: 1
  - type: final_state
    process: greeter
    state: finished
`

const failingScenario = `name: expects_two
description: "asserts a second log that never happens"
frames: 2
processes:
  - name: greeter
    steps:
      - op: log
        message: hi
assertions:
  - type: trace_count
    kind: log
    process: greeter
    count: 2
`

// scenariosDir is the repository's sample scenario directory.
var scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")

// cleanEnv pins every FRAMESCHED_* variable so the host environment cannot
// leak a journal path or an exporter into a test.
func cleanEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FRAMESCHED_DB", "")
	t.Setenv("FRAMESCHED_VERBOSE", "false")
	t.Setenv("FRAMESCHED_FRAME_RATE", "0")
	t.Setenv("FRAMESCHED_FIXED_RATE", "0")
	t.Setenv("FRAMESCHED_SLOW_INTERVAL", "0")
	t.Setenv("FRAMESCHED_OTEL_ENDPOINT", "")
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cleanEnv(t)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeScenario writes src to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// journalRun simulates path into db under a fixed run id.
func journalRun(t *testing.T, db, path, runID string) {
	t.Helper()
	journalRunWith(t, &RootOptions{Format: "text"}, db, path, runID)
}

// journalRunWith is journalRun under the configuration in root.
func journalRunWith(t *testing.T, root *RootOptions, db, path, runID string) {
	t.Helper()
	opts := &RunOptions{
		RootOptions: root,
		Database:    db,
		RunIDs:      testutil.NewFixedTokenGenerator(runID),
	}
	cmd := NewRunCommand(opts.RootOptions)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())

	require.NoError(t, runScenarioCommand(opts, path, cmd))
}

// response is a CLIResponse with a typed payload.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeResponse[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

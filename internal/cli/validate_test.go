package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framesched/internal/compiler"
)

const brokenScenario = `name: broken
description: "three independent mistakes"
frames: 2
processes:
  - name: a
    steps: [{op: wait_for, target: ghost}]
  - name: a
    steps: [{op: next_frame}]
actions:
  - frame: 9
    op: pause
    target: a
assertions:
  - type: trace_contains
    kind: started
`

const lintScenario = `name: lonely
description: "waits on a flag nobody sets"
frames: 2
processes:
  - name: waiter
    steps: [{op: wait_flag, flag: go}]
assertions:
  - type: trace_contains
    kind: started
`

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, "validate",
		filepath.Join(scenariosDir, "wait_for_loader.yaml"),
		filepath.Join(scenariosDir, "blink.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+filepath.Join(scenariosDir, "wait_for_loader.yaml"))
	assert.Contains(t, out, "✓ "+filepath.Join(scenariosDir, "blink.cue"))
}

func TestValidate_ReportsEveryError(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "broken.yaml", brokenScenario)

	out, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse[ValidationResult](t, out)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 1)

	var got []string
	for _, e := range resp.Data.Files[0].Errors {
		got = append(got, e.Code)
	}
	assert.ElementsMatch(t, []string{
		compiler.ErrDuplicateProcess,
		compiler.ErrUnknownTarget,
		compiler.ErrActionOutOfRange,
	}, got)
	assert.Empty(t, resp.Data.Files[0].Warnings)
	assert.Equal(t, compiler.ErrDuplicateProcess, resp.Error.Code)
}

func TestValidate_WarningsPassUnlessStrict(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "lonely.yaml", lintScenario)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ")
	assert.Contains(t, out, "warning [W202]")

	out, err = execute(t, "--format", "json", "validate", "--strict", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse[ValidationResult](t, out)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, compiler.WarnFlagNeverSet, resp.Error.Code)
}

func TestValidate_MixedFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "hello.yaml", helloScenario)
	bad := writeScenario(t, dir, "broken.yaml", brokenScenario)

	out, err := execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
	assert.Contains(t, out, "[E101] processes[1].name")
}

func TestValidate_CUEPosition(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typed.cue", `name: "typed"
description: "frames has the wrong type"
frames: "many"
processes: [{name: "p", steps: [{op: "next_frame"}]}]
assertions: [{type: "trace_contains", kind: "started"}]
`)

	out, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)

	resp := decodeResponse[ValidationResult](t, out)
	require.Len(t, resp.Data.Files[0].Errors, 1)
	e := resp.Data.Files[0].Errors[0]
	assert.Equal(t, ErrCodeLoadFailed, e.Code)
	assert.Positive(t, e.Line)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, ErrCodeNotFound, resp.Data.Files[0].Errors[0].Code)
}

func TestValidate_RequiresArgs(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Trace    bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs RunIDGenerator
}

// RunSummary is the result of one simulated scenario.
type RunSummary struct {
	RunID    string     `json:"run_id,omitempty"`
	Scenario string     `json:"scenario"`
	Pass     bool       `json:"pass"`
	Frames   int64      `json:"frames"`
	Events   int        `json:"events"`
	Digest   string     `json:"digest"`
	Faults   []string   `json:"faults,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
	Trace    []ir.Event `json:"trace,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Simulate a scenario",
		Long: `Simulate a scenario on a deterministic host and report the outcome.

The scenario may be YAML or CUE. With --db (or FRAMESCHED_DB) the run is
journaled under a new UUIDv7 run id together with its source, so it can be
inspected with trace and re-checked with replay.

Exit codes:
  0 - All assertions held
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, journal error)

Examples:
  framesched run testdata/scenarios/wait_for_loader.yaml
  framesched run --db ./runs.db testdata/scenarios/blink.cue --trace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $FRAMESCHED_DB)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the full trace")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := loadScenario(path)
	if err != nil {
		return f.fail(ExitCommandError, loadErrorCode(err), "failed to load scenario", err)
	}

	opts.withHostDefaults(loaded.Scenario)
	slog.Debug("simulating scenario", "scenario", loaded.Scenario.Name, "frames", loaded.Scenario.Frames)
	result, err := harness.Run(loaded.Scenario, harness.WithLogger(slog.Default()))
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeRunFailed, "failed to run scenario", err)
	}

	summary := summarize(loaded.Scenario.Name, result, opts.Trace)

	if db := opts.database(opts.Database); db != "" {
		gen := opts.RunIDs
		if gen == nil {
			gen = UUIDv7Generator{}
		}
		summary.RunID = gen.Generate()

		st, err := store.Open(db)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to open journal", err)
		}
		defer st.Close()

		if err := journalResult(ctx, st, summary.RunID, loaded, result); err != nil {
			return f.fail(ExitCommandError, ErrCodeWriteFailed, "failed to journal run", err)
		}
		slog.Info("run journaled", "run", summary.RunID, "db", db, "events", summary.Events)
	}

	if f.JSON() {
		if !result.Pass {
			if err := f.Failure(ErrCodeAssertFailed, "assertions failed", summary); err != nil {
				return err
			}
		} else if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		writeSummaryText(f.Writer, summary)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func summarize(name string, result *harness.Result, withTrace bool) RunSummary {
	s := RunSummary{
		Scenario: name,
		Pass:     result.Pass,
		Frames:   result.Frames,
		Events:   len(result.Trace),
		Digest:   result.Digest,
		Faults:   result.Faults,
		Errors:   result.Errors,
	}
	if withTrace {
		s.Trace = result.Trace
	}
	return s
}

func writeSummaryText(w io.Writer, s RunSummary) {
	mark := "✓"
	if !s.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%d frames, %d events)\n", mark, s.Scenario, s.Frames, s.Events)
	fmt.Fprintf(w, "  digest: %s\n", s.Digest)
	if s.RunID != "" {
		fmt.Fprintf(w, "  run:    %s\n", s.RunID)
	}
	for _, fault := range s.Faults {
		fmt.Fprintf(w, "  fault:  %s\n", fault)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s\n", briefError(e))
	}
	if len(s.Trace) > 0 {
		fmt.Fprintln(w)
		for _, e := range s.Trace {
			fmt.Fprintln(w, formatEvent(e))
		}
	}
}

// loadErrorCode picks the JSON error code for a scenario load failure.
func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeLoadFailed
}

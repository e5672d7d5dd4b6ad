package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// Divergence is the first position where a replay differs from the
// journal. A nil side means that trace ended first.
type Divergence struct {
	Seq      int64     `json:"seq"`
	Recorded *ir.Event `json:"recorded,omitempty"`
	Replayed *ir.Event `json:"replayed,omitempty"`
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Complete bool   `json:"complete"`
	// Intact reports whether the journaled trace still hashes to the
	// recorded digest.
	Intact bool `json:"intact"`
	// Deterministic reports whether re-simulating the journaled source
	// reproduced the recorded digest.
	Deterministic  bool        `json:"deterministic"`
	RecordedDigest string      `json:"recorded_digest"`
	ReplayDigest   string      `json:"replay_digest,omitempty"`
	Divergence     *Divergence `json:"divergence,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// OK reports whether the run verified.
func (r ReplayRunResult) OK() bool {
	return r.Complete && r.Intact && r.Deterministic
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-simulate journaled runs and verify determinism",
		Long: `Re-simulate journaled runs from their stored source and verify that
each reproduces its recorded trace.

For every run this checks that the journaled trace still hashes to the
recorded digest, then simulates the stored scenario again and compares
digests. On a mismatch the first diverging event is reported.

Exit codes:
  0 - All runs are deterministic
  1 - A run diverged, was tampered with or never finished
  2 - Command error (journal not found, etc.)

Examples:
  framesched replay --db ./runs.db
  framesched replay --db ./runs.db --run 0190c0de-...
  framesched replay --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $FRAMESCHED_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openJournal(f, opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	var ids []string
	if opts.RunID != "" {
		ids = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
		}
		for _, run := range runs {
			ids = append(ids, run.ID)
		}
	}

	result := ReplayResult{Runs: make([]ReplayRunResult, 0, len(ids)), AllDeterministic: true}
	for _, id := range ids {
		rr, err := replayRun(ctx, st, id, opts.RootOptions)
		if errors.Is(err, store.ErrRunNotFound) {
			return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
		}
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
		}
		f.VerboseLog("replayed %s: %+v", id, rr)
		if !rr.OK() {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, rr)
	}
	result.TotalRuns = len(result.Runs)

	if f.JSON() {
		var err error
		if result.AllDeterministic {
			err = f.Success(result)
		} else {
			err = f.Failure(ErrCodeDiverged, "replay did not reproduce the journal", result)
		}
		if err != nil {
			return err
		}
	} else {
		writeReplayText(f.Writer, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay did not reproduce the journal")
	}
	return nil
}

// replayRun verifies one run. Journal read errors are returned; problems
// with the run itself are reported in the result. Host defaults from root
// apply as they did when the run was recorded.
func replayRun(ctx context.Context, st *store.Store, id string, root *RootOptions) (ReplayRunResult, error) {
	state, err := st.GetRunState(ctx, id)
	if err != nil {
		return ReplayRunResult{}, err
	}
	rr := ReplayRunResult{
		RunID:          id,
		Scenario:       state.Run.Scenario,
		Complete:       state.Complete,
		RecordedDigest: state.Run.Digest,
	}
	if !rr.Complete {
		rr.Error = "run never finished"
		return rr, nil
	}

	if _, err := st.VerifyRun(ctx, id); err != nil {
		if !errors.Is(err, store.ErrDigestMismatch) {
			return ReplayRunResult{}, err
		}
		rr.Error = err.Error()
	} else {
		rr.Intact = true
	}

	sc, err := parseScenario(state.Run.Format, state.Run.Scenario+"."+state.Run.Format, []byte(state.Run.Source))
	if err != nil {
		rr.Error = fmt.Sprintf("journaled source no longer parses: %v", err)
		return rr, nil
	}
	withJournaledRates(sc, state.Run, root)
	result, err := harness.Run(sc)
	if err != nil {
		rr.Error = fmt.Sprintf("replay failed: %v", err)
		return rr, nil
	}

	rr.ReplayDigest = result.Digest
	rr.Deterministic = result.Digest == state.Run.Digest
	if !rr.Deterministic || !rr.Intact {
		rr.Divergence = firstDivergence(state.Events, result.Trace)
	}
	return rr, nil
}

// firstDivergence compares two traces event by event.
func firstDivergence(recorded, replayed []ir.Event) *Divergence {
	n := max(len(recorded), len(replayed))
	for i := range n {
		var a, b *ir.Event
		if i < len(recorded) {
			a = &recorded[i]
		}
		if i < len(replayed) {
			b = &replayed[i]
		}
		if a == nil || b == nil || !sameEvent(*a, *b) {
			return &Divergence{Seq: int64(i + 1), Recorded: a, Replayed: b}
		}
	}
	return nil
}

func sameEvent(a, b ir.Event) bool {
	if len(a.Detail) == 0 && len(b.Detail) == 0 {
		a.Detail, b.Detail = nil, nil
	}
	return reflect.DeepEqual(a, b)
}

func writeReplayText(w io.Writer, result ReplayResult) {
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return
	}
	for _, rr := range result.Runs {
		if rr.OK() {
			fmt.Fprintf(w, "✓ %s %s (digest %s)\n", rr.RunID, rr.Scenario, truncateID(rr.RecordedDigest))
			continue
		}
		fmt.Fprintf(w, "✗ %s %s\n", rr.RunID, rr.Scenario)
		if rr.Error != "" {
			fmt.Fprintf(w, "  %s\n", rr.Error)
		}
		if rr.ReplayDigest != "" && !rr.Deterministic {
			fmt.Fprintf(w, "  recorded %s, replayed %s\n", truncateID(rr.RecordedDigest), truncateID(rr.ReplayDigest))
		}
		if d := rr.Divergence; d != nil {
			fmt.Fprintf(w, "  first divergence at seq %d\n", d.Seq)
			if d.Recorded != nil {
				fmt.Fprintf(w, "    recorded:%s\n", formatEvent(*d.Recorded))
			}
			if d.Replayed != nil {
				fmt.Fprintf(w, "    replayed:%s\n", formatEvent(*d.Replayed))
			}
		}
	}
	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "✓ All %d run(s) deterministic\n", result.TotalRuns)
	} else {
		fmt.Fprintln(w, "✗ Replay did not reproduce the journal")
	}
}

package cli

import (
	"context"
	"fmt"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/store"
)

// newRun builds the journal header for a scenario run, including the host
// rates it is simulated at.
func newRun(id string, loaded *loadedScenario) ir.Run {
	frameRate, fixedRate, slowInterval := loaded.Scenario.HostRates()
	return ir.Run{
		ID:           id,
		Scenario:     loaded.Scenario.Name,
		Format:       loaded.Format,
		Source:       string(loaded.Source),
		FrameRate:    frameRate,
		FixedRate:    fixedRate,
		SlowInterval: slowInterval,
	}
}

// withJournaledRates pins sc to the rates run was recorded at. Runs
// journaled without rates fall back to the environment defaults.
func withJournaledRates(sc *harness.Scenario, run ir.Run, root *RootOptions) {
	if run.FrameRate == 0 {
		root.withHostDefaults(sc)
		return
	}
	slowInterval := run.SlowInterval
	sc.FrameRate = run.FrameRate
	sc.FixedRate = run.FixedRate
	sc.SlowInterval = &slowInterval
}

// journalResult writes a finished result: header, trace, then the digest
// that marks the run complete.
func journalResult(ctx context.Context, st *store.Store, id string, loaded *loadedScenario, result *harness.Result) error {
	if err := st.WriteRun(ctx, newRun(id, loaded)); err != nil {
		return err
	}
	if err := st.WriteEvents(ctx, id, result.Trace); err != nil {
		return fmt.Errorf("journal run %s: %w", id, err)
	}
	return st.FinishRun(ctx, id, result.Frames, int64(len(result.Trace)), result.Digest)
}

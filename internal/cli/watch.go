package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/store"
	"github.com/roach88/framesched/internal/tui"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	Interval time.Duration
	Paused   bool

	// RunIDs allows overriding the run id generator (for testing).
	RunIDs RunIDGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <scenario>",
		Short: "Step through a scenario in a terminal view",
		Long: `Run a scenario frame by frame in a terminal view showing per-segment
occupancy, process states and the tail of the trace.

With --db the trace is journaled live as frames run. A session watched to
the last frame is finished like a run and can be replayed; one quit early
stays incomplete.

Keys: space pause, n step, +/- speed, q quit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $FRAMESCHED_DB)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", tui.DefaultInterval, "wall time between frames")
	cmd.Flags().BoolVar(&opts.Paused, "paused", false, "start paused")

	return cmd
}

// watchRun is a watch session with its optional live journal.
type watchRun struct {
	loaded  *loadedScenario
	session *harness.Session
	model   *tui.Model
	store   *store.Store
	runID   string
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	w, err := prepareWatch(ctx, opts, path, f)
	if err != nil {
		return err
	}
	defer w.close()

	p := tea.NewProgram(w.model,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "watch view failed", err)
	}

	summary, err := w.finish(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeWriteFailed, "failed to journal run", err)
	}
	if f.JSON() {
		return f.Success(summary)
	}
	writeSummaryText(f.Writer, summary)
	return nil
}

// prepareWatch loads the scenario, opens the journal and builds the view.
// Logs are discarded unless verbose since they would tear the terminal
// view.
func prepareWatch(ctx context.Context, opts *WatchOptions, path string, f *OutputFormatter) (*watchRun, error) {
	loaded, err := loadScenario(path)
	if err != nil {
		return nil, f.fail(ExitCommandError, loadErrorCode(err), "failed to load scenario", err)
	}

	opts.withHostDefaults(loaded.Scenario)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(f.GetErrWriter(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	session, err := harness.NewSession(loaded.Scenario, harness.WithLogger(logger))
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeRunFailed, "failed to start scenario", err)
	}
	w := &watchRun{loaded: loaded, session: session}

	modelOpts := []tui.Option{tui.WithInterval(opts.Interval)}
	if db := opts.database(opts.Database); db != "" {
		if err := w.openJournal(ctx, db, opts.RunIDs, logger); err != nil {
			w.close()
			return nil, f.fail(ExitCommandError, ErrCodeWriteFailed, "failed to open journal", err)
		}
		rec := store.NewRecorder(ctx, w.store, w.runID, store.WithRecorderLogger(logger))
		modelOpts = append(modelOpts, tui.WithSink(func(events []ir.Event) error {
			for _, e := range events {
				if err := rec.Append(e); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	w.model = tui.New(session, modelOpts...)
	if err := w.model.Err(); err != nil {
		w.close()
		return nil, f.fail(ExitCommandError, ErrCodeWriteFailed, "failed to journal run", err)
	}
	if opts.Paused {
		w.model.Update(tea.KeyMsg{Type: tea.KeySpace})
	}
	return w, nil
}

func (w *watchRun) openJournal(ctx context.Context, db string, gen RunIDGenerator, logger *slog.Logger) error {
	st, err := store.Open(db)
	if err != nil {
		return err
	}
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	w.store = st
	w.runID = gen.Generate()
	if err := st.WriteRun(ctx, newRun(w.runID, w.loaded)); err != nil {
		return err
	}
	logger.Info("journaling watch session", "run", w.runID, "db", db)
	return nil
}

// finish evaluates the session. A journaled session that reached its last
// frame is marked complete.
func (w *watchRun) finish(ctx context.Context) (RunSummary, error) {
	done := w.session.Done()
	result, err := w.session.Finish()
	if err != nil {
		return RunSummary{}, err
	}
	summary := summarize(w.loaded.Scenario.Name, result, false)
	summary.RunID = w.runID

	if w.store == nil {
		return summary, nil
	}
	if err := w.model.Err(); err != nil {
		return summary, err
	}
	if !done {
		return summary, nil
	}
	if err := w.store.FinishRun(ctx, w.runID, result.Frames, int64(len(result.Trace)), result.Digest); err != nil {
		return summary, fmt.Errorf("finish run %s: %w", w.runID, err)
	}
	return summary, nil
}

func (w *watchRun) close() {
	w.session.Close()
	if w.store != nil {
		_ = w.store.Close()
	}
}

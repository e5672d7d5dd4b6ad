package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Kind     string // optional - filter to one event kind
	Process  string // optional - filter to one process
}

// RunInfo is a journaled run header without its source.
type RunInfo struct {
	ID         string `json:"id"`
	Scenario   string `json:"scenario"`
	Format     string `json:"format"`
	SourceHash string `json:"source_hash"`
	Frames     int64  `json:"frames"`
	Events     int64  `json:"events"`
	Digest     string `json:"digest,omitempty"`
	Complete   bool   `json:"complete"`
}

// TraceResult holds a run and the matching slice of its trace.
type TraceResult struct {
	Run    RunInfo    `json:"run"`
	Events []ir.Event `json:"events"`
	Stats  TraceStats `json:"stats"`
}

// TraceStats counts events by kind across the whole trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Shown       int            `json:"shown"`
	ByKind      map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled runs and their traces",
		Long: `Show the trace of a journaled run.

Without --run, lists every run in the journal, oldest first. With --run,
prints the run header and its events in seq order, optionally narrowed to
one event kind or one process.

Examples:
  framesched trace --db ./runs.db
  framesched trace --db ./runs.db --run 0190c0de-...
  framesched trace --db ./runs.db --run 0190c0de-... --kind faulted
  framesched trace --db ./runs.db --run 0190c0de-... --process loader --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $FRAMESCHED_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show (lists runs when empty)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show events of this kind")
	cmd.Flags().StringVar(&opts.Process, "process", "", "only show events of this process")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openJournal(f, opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
		}
		infos := make([]RunInfo, len(runs))
		for i, run := range runs {
			infos[i] = runInfo(run, run.Digest != "")
		}
		if f.JSON() {
			return f.Success(infos)
		}
		writeRunList(f.Writer, infos)
		return nil
	}

	state, err := st.GetRunState(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	events := state.Events
	if opts.Kind != "" || opts.Process != "" {
		events, err = st.ReadEvents(ctx, opts.RunID, store.EventFilter{Kind: opts.Kind, Process: opts.Process})
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to read events", err)
		}
	}

	result := TraceResult{
		Run:    runInfo(state.Run, state.Complete),
		Events: events,
		Stats: TraceStats{
			TotalEvents: len(state.Events),
			Shown:       len(events),
			ByKind:      make(map[string]int),
		},
	}
	for _, e := range state.Events {
		result.Stats.ByKind[e.Kind]++
	}

	if f.JSON() {
		return f.Success(result)
	}
	writeTraceText(f.Writer, result)
	return nil
}

// openJournal opens the journal at path, reporting a missing --db.
func openJournal(f *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, f.fail(ExitCommandError, ErrCodeNotFound, "no journal: pass --db or set FRAMESCHED_DB", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeStore, "failed to open journal", err)
	}
	return st, nil
}

func runInfo(run ir.Run, complete bool) RunInfo {
	return RunInfo{
		ID:         run.ID,
		Scenario:   run.Scenario,
		Format:     run.Format,
		SourceHash: run.SourceHash,
		Frames:     run.Frames,
		Events:     run.Events,
		Digest:     run.Digest,
		Complete:   complete,
	}
}

func writeRunList(w io.Writer, runs []RunInfo) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return
	}
	for _, run := range runs {
		status := "complete"
		if !run.Complete {
			status = "incomplete"
		}
		fmt.Fprintf(w, "%s  %-24s %4d frames %5d events  %s\n", run.ID, run.Scenario, run.Frames, run.Events, status)
	}
}

func writeTraceText(w io.Writer, result TraceResult) {
	run := result.Run
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s (%s)\n", run.Scenario, run.Format)
	if run.Complete {
		fmt.Fprintf(w, "Status: complete, %d frames, digest %s\n", run.Frames, truncateID(run.Digest))
	} else {
		fmt.Fprintln(w, "Status: incomplete")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Events {
		fmt.Fprintln(w, formatEvent(e))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	if result.Stats.Shown != result.Stats.TotalEvents {
		fmt.Fprintf(w, "  Shown:        %d\n", result.Stats.Shown)
	}
	for _, kind := range sortedKeys(result.Stats.ByKind) {
		fmt.Fprintf(w, "  %-13s %d\n", kind+":", result.Stats.ByKind[kind])
	}
}

// formatEvent renders one trace line: seq, frame, segment, kind, process
// and detail as sorted key=value pairs.
func formatEvent(e ir.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%d] f%d %-12s %-10s %s", e.Seq, e.Frame, e.Segment, e.Kind, e.Process)
	if e.Tag != "" {
		fmt.Fprintf(&b, " #%s", e.Tag)
	}
	fmt.Fprintf(&b, " @%dms", e.TimeMillis)
	for _, k := range e.Detail.SortedKeys() {
		fmt.Fprintf(&b, " %s=%s", k, formatValue(e.Detail[k]))
	}
	return b.String()
}

func formatValue(v ir.Value) string {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Int:
		return fmt.Sprint(int64(val))
	case ir.Bool:
		return fmt.Sprint(bool(val))
	default:
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// truncateID shortens a digest or id for display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

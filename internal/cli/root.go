package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/framesched/internal/config"
	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the environment configuration, loaded before any command
	// runs. Flags override it.
	Config config.Config

	shutdown func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the framesched CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "framesched",
		Short:   "framesched - frame-segmented process scheduler",
		Long:    "Simulate, test and inspect scenarios for a cooperative, frame-segmented process scheduler.",
		Version: ir.ToolVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// setup loads the environment, installs the default logger and starts
// tracing.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	if cfg.Verbose && !cmd.Flags().Changed("verbose") {
		o.Verbose = true
	}

	setupLogging(cmd.ErrOrStderr(), o.Verbose)

	shutdown, err := telemetry.Setup(cmd.Context(), cfg.OTel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start tracing", err)
	}
	o.shutdown = shutdown
	return nil
}

func (o *RootOptions) close() error {
	if o.shutdown == nil {
		return nil
	}
	err := o.shutdown(context.Background())
	o.shutdown = nil
	return err
}

// database returns the --db flag value, falling back to FRAMESCHED_DB.
func (o *RootOptions) database(flag string) string {
	if flag != "" {
		return flag
	}
	return o.Config.DB
}

// withHostDefaults fills the rates a scenario leaves unset from the
// environment configuration.
func (o *RootOptions) withHostDefaults(sc *harness.Scenario) {
	if o == nil {
		return
	}
	if sc.FrameRate == 0 {
		sc.FrameRate = o.Config.FrameRate
	}
	if sc.FixedRate == 0 {
		sc.FixedRate = o.Config.FixedRate
	}
	if sc.SlowInterval == nil && o.Config.SlowInterval > 0 {
		interval := o.Config.SlowInterval
		sc.SlowInterval = &interval
	}
}

// setupLogging installs a text handler on w as the default logger, at
// Debug level when verbose.
func setupLogging(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

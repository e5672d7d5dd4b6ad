package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/framesched/internal/compiler"
	"github.com/roach88/framesched/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // warnings fail validation
}

// FileValidation holds the findings for one scenario file.
type FileValidation struct {
	File     string                     `json:"file"`
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.Warning         `json:"warnings,omitempty"`
}

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Check scenarios without running them",
		Long: `Check scenario files without simulating them.

Reports every error in a file rather than stopping at the first, then lints
for shapes that run but are probably mistakes: self-waits, flags nobody
sets, unreachable steps, unlocks with no lock, and wait cycles.

Examples:
  framesched validate scenarios/*.yaml
  framesched validate --strict scenarios/blink.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat lint warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	errCount := 0
	for _, file := range files {
		f.VerboseLog("Validating %s", file)
		fv := validateFile(file)
		if opts.Strict && len(fv.Warnings) > 0 {
			fv.Valid = false
		}
		if !fv.Valid {
			result.Valid = false
			errCount += len(fv.Errors)
		}
		result.Files = append(result.Files, fv)
	}

	if f.JSON() {
		var err error
		if result.Valid {
			err = f.Success(result)
		} else {
			err = f.Failure(firstCode(result), "validation failed", result)
		}
		if err != nil {
			return err
		}
	} else {
		for _, fv := range result.Files {
			writeValidationText(f, fv)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", errCount))
	}
	return nil
}

// validateFile decodes a scenario and collects every error and warning.
func validateFile(path string) FileValidation {
	fv := FileValidation{File: path}

	loaded, err := decodeScenarioFile(path)
	if err != nil {
		ve := compiler.ValidationError{Field: "file", Message: err.Error(), Code: ErrCodeLoadFailed}
		var le *LoadError
		if errors.As(err, &le) {
			ve.Message, ve.Code, ve.Line = le.Message, le.Code, le.Line
		}
		fv.Errors = []compiler.ValidationError{ve}
		return fv
	}

	sc := loaded.Scenario
	fv.Errors = compiler.Validate(sc)
	if len(fv.Errors) == 0 {
		// shape checks the reference pass does not cover
		if err := harness.Validate(sc); err != nil {
			fv.Errors = append(fv.Errors, compiler.ValidationError{
				Field:   "scenario",
				Message: err.Error(),
				Code:    ErrCodeGeneric,
			})
		}
	}
	fv.Valid = len(fv.Errors) == 0
	if fv.Valid {
		fv.Warnings = compiler.Lint(sc)
	}
	return fv
}

func firstCode(result ValidationResult) string {
	for _, fv := range result.Files {
		if len(fv.Errors) > 0 {
			return fv.Errors[0].Code
		}
		if len(fv.Warnings) > 0 {
			return fv.Warnings[0].Code
		}
	}
	return ErrCodeGeneric
}

func writeValidationText(f *OutputFormatter, fv FileValidation) {
	w := f.Writer
	if fv.Valid {
		fmt.Fprintf(w, "✓ %s\n", fv.File)
	} else {
		fmt.Fprintf(w, "✗ %s\n", fv.File)
	}
	for _, e := range fv.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	for _, warn := range fv.Warnings {
		if warn.Field != "" {
			fmt.Fprintf(w, "  warning [%s] %s: %s\n", warn.Code, warn.Field, warn.Message)
		} else {
			fmt.Fprintf(w, "  warning [%s] %s\n", warn.Code, warn.Message)
		}
	}
}

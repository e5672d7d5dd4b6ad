package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/framesched/internal/compiler"
	"github.com/roach88/framesched/internal/harness"
)

// Scenario source formats, as recorded in the journal.
const (
	FormatYAML = "yaml"
	FormatCUE  = "cue"
)

// loadedScenario is a parsed scenario together with the bytes it came
// from, so runs can journal their source for replay.
type loadedScenario struct {
	Path     string
	Format   string
	Source   []byte
	Scenario *harness.Scenario
}

// LoadError is a scenario that could not be read or parsed. Line is set
// when the parser knows it.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Line    int
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// scenarioFormat maps a file extension to a source format.
func scenarioFormat(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".cue":
		return FormatCUE, true
	}
	return "", false
}

// loadScenario reads, parses and validates a scenario file.
func loadScenario(path string) (*loadedScenario, error) {
	return readScenario(path, true)
}

// decodeScenarioFile reads and parses a scenario file without reference
// checks, so validate can report every problem at once.
func decodeScenarioFile(path string) (*loadedScenario, error) {
	return readScenario(path, false)
}

func readScenario(path string, check bool) (*loadedScenario, error) {
	format, ok := scenarioFormat(path)
	if !ok {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "unsupported scenario extension (want .yaml, .yml or .cue)"}
	}
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "scenario file not found"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}

	sc, err := decodeSource(format, path, src, check)
	if err != nil {
		return nil, toLoadError(path, err)
	}
	return &loadedScenario{Path: path, Format: format, Source: src, Scenario: sc}, nil
}

// parseScenario parses journaled source in the given format.
func parseScenario(format, filename string, src []byte) (*harness.Scenario, error) {
	return decodeSource(format, filename, src, true)
}

func decodeSource(format, filename string, src []byte, check bool) (*harness.Scenario, error) {
	switch format {
	case FormatYAML:
		if check {
			return harness.ParseScenario(src)
		}
		return harness.DecodeScenario(src)
	case FormatCUE:
		if check {
			return compiler.CompileSource(filename, src)
		}
		return compiler.DecodeSource(filename, src)
	}
	return nil, fmt.Errorf("unknown scenario format %q", format)
}

func toLoadError(path string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		le.Message = fmt.Sprintf("%s: %s", ce.Field, ce.Message)
		if ce.Pos.IsValid() {
			le.Line = ce.Pos.Line()
		}
	}
	return le
}

// findScenarioFiles walks dir for scenario files in lexical order. filter
// is a glob matched against the file name without extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := scenarioFormat(path); !ok {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	slices.Sort(files)
	return files, err
}

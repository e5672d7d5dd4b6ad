package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/framesched/internal/harness"
)

//go:embed schema.cue
var schemaSource []byte

// schema holds the compiled #Scenario definition. CUE values are tied to
// the context that built them, so one context serves every compilation.
var schema struct {
	once sync.Once
	mu   sync.Mutex
	ctx  *cue.Context
	def  cue.Value
	err  error
}

func loadSchema() (*cue.Context, cue.Value, error) {
	schema.once.Do(func() {
		schema.ctx = cuecontext.New()
		v := schema.ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schema.err = fmt.Errorf("compile schema: %w", err)
			return
		}
		schema.def = v.LookupPath(cue.ParsePath("#Scenario"))
	})
	return schema.ctx, schema.def, schema.err
}

// CompileFile reads and compiles a CUE scenario file.
func CompileFile(path string) (*harness.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return CompileSource(path, data)
}

// CompileSource compiles CUE scenario source. filename is used in error
// positions only.
//
// The scenario is the top-level "scenario" field when the file has one, so
// that helper values can live beside it. Otherwise the whole file is the
// scenario.
func CompileSource(filename string, src []byte) (*harness.Scenario, error) {
	return compileSource(filename, src, true)
}

// DecodeSource is CompileSource without the harness reference checks, for
// callers that report every problem through Validate.
func DecodeSource(filename string, src []byte) (*harness.Scenario, error) {
	return compileSource(filename, src, false)
}

func compileSource(filename string, src []byte, check bool) (*harness.Scenario, error) {
	ctx, def, err := loadSchema()
	if err != nil {
		return nil, err
	}

	// cue.Context is not safe for concurrent use.
	schema.mu.Lock()
	defer schema.mu.Unlock()

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compile(def.Unify(scenarioRoot(v)), check)
}

// Compile decodes an already built CUE value into a scenario after
// unifying it with the schema. v must come from a context other callers
// are not using concurrently.
func Compile(v cue.Value) (*harness.Scenario, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	schemaVal := v.Context().CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compile(schemaVal.LookupPath(cue.ParsePath("#Scenario")).Unify(scenarioRoot(v)), true)
}

// ScenarioField is the optional top-level field holding the scenario.
const ScenarioField = "scenario"

func scenarioRoot(v cue.Value) cue.Value {
	if sv := v.LookupPath(cue.ParsePath(ScenarioField)); sv.Exists() {
		return sv
	}
	return v
}

func compile(v cue.Value, check bool) (*harness.Scenario, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var sc harness.Scenario
	if err := v.Decode(&sc); err != nil {
		return nil, formatCUEError(err)
	}

	if !check {
		return &sc, nil
	}
	if err := harness.Validate(&sc); err != nil {
		return nil, &CompileError{
			Field:   "scenario",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return &sc, nil
}

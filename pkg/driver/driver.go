// Package driver implements the compiler driver: it owns a mutable list of
// (module, output-path) pairs, supports the four file-emission modes plus
// JIT execution, and aggregates per-translation-unit failures into one
// process exit code.
//
// Generalized from the Jack compiler's Handler (walk the input paths for
// source files, parse each into a translation unit, run the compilation
// passes, fan the result out to one output per input): that walk/parse/
// lower/emit loop, lifted out of main() and generalized from Jack's single
// fixed VM-text emission to four emission modes (plus JIT), and from Jack's
// single shared program map to per-translation-unit pkg/backend.Target
// values sharing one pkg/sema.Registries set.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrel-lang/kestrelc/pkg/backend"
	"github.com/kestrel-lang/kestrelc/pkg/codegen"
	"github.com/kestrel-lang/kestrelc/pkg/parser"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
)

// EmitMode mirrors backend.EmitMode plus the JIT mode, which never produces
// an output file.
type EmitMode int

const (
	EmitObject EmitMode = iota
	EmitTempObject
	EmitAssembly
	EmitTextualIR
	EmitJIT
)

// Options carries the CLI surface a driver run is configured through:
// emission selector, optimization level, target triple, relocation model,
// output path template.
type Options struct {
	Mode        EmitMode
	OptLevel    int
	Triple      string
	Reloc       backend.Relocation
	OutTemplate string // "%s" replaced with the input's basename sans extension; empty uses the input path sans extension
	JITArgs     []int64
}

// Unit is one (module, output-path) pair the driver owns for the lifetime
// of one compile call.
type Unit struct {
	Input      string
	OutputPath string
	Target     *backend.Target
	Errors     []error
}

// Driver walks a set of input files, compiles each into its own
// pkg/backend.Target against one shared pkg/sema.Registries,
// and emits or JIT-executes the result per Options.
type Driver struct {
	opts  Options
	reg   *sema.Registries
	units []*Unit
}

// New allocates a driver over one shared symbol/class/union registry set,
// the way pkg/codegen.NewContext expects to share it across translation
// units linked into the same program.
func New(opts Options) *Driver {
	return &Driver{opts: opts, reg: sema.NewRegistries()}
}

// Discover walks 'inputs' (files or directories) collecting every file with
// a '.ke' extension, mirroring filepath.Walk loop in
// cmd/jack_compiler/main.go (generalized from Jack's fixed '.jack'
// extension to this language's source extension, ).
func Discover(inputs []string) ([]string, error) {
	var files []string
	for _, input := range inputs {
		err := filepath.Walk(input, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(path) != ".ke" {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, &backend.IOError{Op: "walk", Path: input, Err: err}
		}
	}
	return files, nil
}

// Compile runs the parse -> (typecheck via lowering) -> codegen pipeline for
// every discovered input, batching per-unit failures instead of aborting on
// the first one.
func (d *Driver) Compile(inputs []string) error {
	var firstErr error
	for _, input := range inputs {
		unit, err := d.compileOne(input)
		d.units = append(d.units, unit)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Driver) compileOne(input string) (*Unit, error) {
	unit := &Unit{Input: input, OutputPath: d.outputPath(input)}

	f, err := os.Open(input)
	if err != nil {
		ioErr := &backend.IOError{Op: "open", Path: input, Err: err}
		unit.Errors = append(unit.Errors, ioErr)
		return unit, ioErr
	}
	defer f.Close()

	p := parser.NewParser(input, f)
	tu, cache, parseErrs, err := p.Parse()
	if err != nil {
		unit.Errors = append(unit.Errors, err)
		return unit, err
	}
	if len(parseErrs) > 0 {
		// A parse succeeds only if the recoverable-error count is zero and
		// the input was fully consumed — batch and report every one, but the
		// unit as a whole fails.
		for _, pe := range parseErrs {
			unit.Errors = append(unit.Errors, pe)
		}
		return unit, parseErrs[0]
	}

	target := backend.NewTarget(d.opts.Triple, d.opts.OptLevel, d.opts.Reloc)
	ctx := codegen.NewContext(input, cache, target, d.reg)
	if err := ctx.LowerTranslationUnit(tu); err != nil {
		unit.Errors = append(unit.Errors, err)
		return unit, err
	}

	if err := target.Verify(); err != nil {
		unit.Errors = append(unit.Errors, err)
		return unit, err
	}

	unit.Target = target
	return unit, d.emit(unit)
}

func (d *Driver) outputPath(input string) string {
	if d.opts.OutTemplate == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return fmt.Sprintf(d.opts.OutTemplate, base)
}

// emit produces this unit's on-disk artifact per the driver's selected
// mode; JIT mode is handled
// separately by Run, since it never produces a file here.
func (d *Driver) emit(unit *Unit) error {
	switch d.opts.Mode {
	case EmitJIT:
		return nil
	case EmitTextualIR:
		return unit.Target.WriteTextualIR(unit.OutputPath + ".ll")
	case EmitAssembly:
		return unit.Target.EmitNative(unit.OutputPath+".s", backend.EmitAssembly)
	case EmitTempObject:
		tmp, err := os.CreateTemp("", "kestrelc-*.o")
		if err != nil {
			return &backend.IOError{Op: "create-temp", Path: unit.OutputPath, Err: err}
		}
		tmp.Close()
		unit.OutputPath = tmp.Name()
		return unit.Target.EmitNative(unit.OutputPath, backend.EmitObject)
	default: // EmitObject
		return unit.Target.EmitNative(unit.OutputPath+".o", backend.EmitObject)
	}
}

// Run JIT-executes 'symbol' (ordinarily "main") in the last successfully
// compiled unit's module, returning its integer result. Moving the module
// into the JIT invalidates further lowering against it, so this is only
// called after every unit has finished compiling.
func (d *Driver) Run(symbol string) (int64, error) {
	var target *backend.Target
	for _, u := range d.units {
		if u.Target != nil {
			target = u.Target
		}
	}
	if target == nil {
		return 0, fmt.Errorf("no successfully compiled module to run")
	}
	jit := backend.NewJIT(target.Module)
	return jit.Run(symbol, d.opts.JITArgs)
}

// Units exposes the per-translation-unit results for a caller that wants to
// report errors/output paths itself (cmd/kestrelc does).
func (d *Driver) Units() []*Unit { return d.units }

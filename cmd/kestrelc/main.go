package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/teris-io/cli"

	"github.com/kestrel-lang/kestrelc/pkg/backend"
	"github.com/kestrel-lang/kestrelc/pkg/driver"
)

// Description, the Kestrelc CLI, and Handler mirror // cmd/jack_compiler/main.go wiring (cli.New/WithArg/WithOption/WithAction),
// generalized from Jack's fixed VM-text output to CLI surface:
// an emission-mode selector, optimization level, target triple override,
// relocation model, and output path template.
var Description = strings.ReplaceAll(`
The Kestrel Compiler (kestrelc) compiles one or more Kestrel source files into
native object code, assembly, textual LLVM IR, or runs the compiled program
directly through a tree-walking JIT.
`, "\n", " ")

var Kestrelc = cli.New(Description).
	WithArg(cli.NewArg("inputs", "The source (.ke) files or directories to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("emit", "Emission mode: object, asm, ir, or jit (default object)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("opt", "Optimization level 0-3 (default 0)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("triple", "Target triple override (default x86_64-unknown-linux-gnu)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("pic", "Use a position-independent relocation model").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("out", "Output path template, '%s' replaced by the input's basename").
		WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	opts := driver.Options{
		Mode:     driver.EmitObject,
		Triple:   "x86_64-unknown-linux-gnu",
		OptLevel: 0,
	}

	if mode, ok := options["emit"]; ok {
		switch mode {
		case "object":
			opts.Mode = driver.EmitObject
		case "asm":
			opts.Mode = driver.EmitAssembly
		case "ir":
			opts.Mode = driver.EmitTextualIR
		case "jit":
			opts.Mode = driver.EmitJIT
		default:
			fmt.Printf("ERROR: Unknown emission mode %q\n", mode)
			return -1
		}
	}
	if lvl, ok := options["opt"]; ok {
		n, err := strconv.Atoi(lvl)
		if err != nil {
			fmt.Printf("ERROR: Invalid optimization level %q\n", lvl)
			return -1
		}
		opts.OptLevel = n
	}
	if triple, ok := options["triple"]; ok {
		opts.Triple = triple
	}
	if _, ok := options["pic"]; ok {
		opts.Reloc = backend.RelocPIC
	}
	if out, ok := options["out"]; ok {
		opts.OutTemplate = out
	}

	inputs, err := driver.Discover(args)
	if err != nil {
		fmt.Printf("ERROR: Unable to walk input paths: %s\n", err)
		return -1
	}
	if len(inputs) == 0 {
		fmt.Printf("ERROR: No .ke source files found under the given inputs\n")
		return -1
	}

	d := driver.New(opts)
	compileErr := d.Compile(inputs)

	failed := false
	for _, unit := range d.Units() {
		for _, uerr := range unit.Errors {
			fmt.Printf("ERROR: %s: %s\n", unit.Input, uerr)
			failed = true
		}
	}
	if compileErr != nil || failed {
		return -1
	}

	if opts.Mode == driver.EmitJIT {
		code, err := d.Run("main")
		if err != nil {
			fmt.Printf("ERROR: JIT execution failed: %s\n", err)
			return -1
		}
		return int(code)
	}

	return 0
}

func main() { os.Exit(Kestrelc.Run(os.Args, os.Stdout)) }

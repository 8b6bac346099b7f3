package backend

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/llir/llvm/ir"
)

// EmitMode selects one of the four file-emission modes; JIT execution
// (handled elsewhere) never produces a file.
type EmitMode int

const (
	EmitObject EmitMode = iota
	EmitTempObject
	EmitAssembly
	EmitTextualIR
)

// Relocation mirrors relocation-model flag.
type Relocation int

const (
	RelocStatic Relocation = iota
	RelocPIC
)

// Target owns one translation unit's back-end module and the triple/
// relocation/optimization choices the driver selected for it. It is the concrete adapter
// behind back-end collaborator contract, built directly on
// *ir.Module the way the retrieved compiler-builder reference wraps one in
// its own Builder struct.
type Target struct {
	Module      *ir.Module
	Triple      string
	Reloc       Relocation
	OptLevel    int
	LLCPath     string // external tool used for object/assembly emission; defaults to "llc"
}

// NewTarget allocates a fresh module for one translation unit.
func NewTarget(triple string, opt int, reloc Relocation) *Target {
	m := ir.NewModule()
	m.TargetTriple = triple
	return &Target{Module: m, Triple: triple, Reloc: reloc, OptLevel: opt, LLCPath: "llc"}
}

// WriteTextualIR renders the module's canonical textual form.
func (t *Target) WriteTextualIR(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	if _, err := f.WriteString(t.Module.String()); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// EmitNative shells out to the external 'llc' tool to turn the module's
// textual IR into an object file or assembly listing.
// The intermediate .ll file handle is scoped: acquired, written, and always
// closed/removed on every return path.
func (t *Target) EmitNative(outPath string, mode EmitMode) (err error) {
	irPath := outPath + ".ll"
	defer os.Remove(irPath)
	if werr := t.WriteTextualIR(irPath); werr != nil {
		return werr
	}

	args := []string{irPath, "-o", outPath, "-mtriple=" + t.Triple, fmt.Sprintf("-O%d", clamp(t.OptLevel, 0, 3))}
	if t.Reloc == RelocPIC {
		args = append(args, "-relocation-model=pic")
	}
	if mode == EmitAssembly {
		args = append(args, "-filetype=asm")
	} else {
		args = append(args, "-filetype=obj")
	}

	cmd := exec.Command(t.LLCPath, args...)
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return &BackendError{Kind: BackendEmitFailure, Message: fmt.Sprintf("llc failed: %v\n%s", runErr, out)}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Verify runs the back-end's module verification step. llir/llvm builds well-formed IR by construction
// for the instruction shapes pkg/codegen emits, so this is a structural
// sanity pass (every block of every defined function has a terminator)
// rather than a full LLVM verifier invocation — the real verifier only
// exists inside the external LLVM tools; EmitNative runs 'llc' for the
// modes that matter (object/assembly output).
func (t *Target) Verify() error {
	for _, fn := range t.Module.Funcs {
		if len(fn.Blocks) == 0 {
			continue // declaration only (extern)
		}
		for _, blk := range fn.Blocks {
			if blk.Term == nil {
				return &BackendError{Kind: BackendVerifyFailure, Message: fmt.Sprintf("function %q: block %q has no terminator", fn.Name(), blk.Name())}
			}
		}
	}
	return nil
}

package backend

import (
	"fmt"
	"math/big"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"
)

// JIT offers add_module(module, context) and lookup(symbol). Nothing in the
// retrieval pack provides a pure-Go LLVM execution engine (llir/llvm is an
// IR *builder*, not a runtime — see DESIGN.md), so this is a small
// tree-walking interpreter over the
// *ir.Module the rest of pkg/backend already built, reusing the same
// instruction/terminator vocabulary the llir/llvm-grounded lowering in
// pkg/codegen emits. It is intentionally narrow: integer arithmetic,
// integer comparison, integer/pointer conversions, branch, call,
// alloca/load/store and GEP, not a general LLVM interpreter.
// Floating-point instructions, phi nodes, null pointer constants and calls
// to functions without a body (extern declarations such as malloc/free)
// are not interpreted and make Run return an error.
type JIT struct {
	module *ir.Module
	mem    map[value.Value]*cell // alloca -> storage cell
}

// cell is one stack-allocated storage location; a struct-typed cell holds
// its fields inline so GEP + load/store can address nested members.
type cell struct {
	scalar  *big.Int
	fscalar float64
	isFloat bool
	fields  []*cell
}

// NewJIT wraps a built module for execution. It is the add_module half of
// the JIT contract; lookups happen at Run time instead of through a
// separate handle, since this interpreter has no out-of-process symbol table.
func NewJIT(m *ir.Module) *JIT {
	return &JIT{module: m, mem: map[value.Value]*cell{}}
}

// Run looks up 'symbol' and interprets it with 'args', returning its i32 result the way
// a native 'main' entrypoint would.
func (j *JIT) Run(symbol string, args []int64) (int64, error) {
	fn := j.lookup(symbol)
	if fn == nil {
		return 0, &BackendError{Kind: BackendJITLookupFailure, Message: fmt.Sprintf("symbol %q not found in module", symbol)}
	}

	frame := newFrame(nil)
	for i, p := range fn.Params {
		v := int64(0)
		if i < len(args) {
			v = args[i]
		}
		frame.set(p, &cell{scalar: big.NewInt(v)})
	}

	result, _, err := j.execFunc(fn, frame)
	if err != nil {
		return 0, err
	}
	if result == nil {
		return 0, nil
	}
	return result.scalar.Int64(), nil
}

func (j *JIT) lookup(name string) *ir.Func {
	for _, fn := range j.module.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	return nil
}

// frame binds SSA values produced so far (including block parameters and
// alloca cells) to their interpreted storage within one function activation.
type frame struct {
	parent *frame
	vals   map[value.Value]*cell
}

func newFrame(parent *frame) *frame { return &frame{parent: parent, vals: map[value.Value]*cell{}} }

func (f *frame) set(v value.Value, c *cell) { f.vals[v] = c }

func (f *frame) get(v value.Value) (*cell, bool) {
	if c, ok := f.vals[v]; ok {
		return c, true
	}
	if f.parent != nil {
		return f.parent.get(v)
	}
	return nil, false
}

// execFunc interprets one function call by walking basic blocks starting at
// the entry block, following terminators until a TermRet is reached.
func (j *JIT) execFunc(fn *ir.Func, frame *frame) (*cell, *ir.Block, error) {
	if len(fn.Blocks) == 0 {
		return nil, nil, fmt.Errorf("function %q has no body (extern declaration)", fn.Name())
	}

	block := fn.Blocks[0]
	for {
		for _, inst := range block.Insts {
			if err := j.execInst(inst, frame); err != nil {
				return nil, nil, err
			}
		}

		switch term := block.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return nil, block, nil
			}
			c, err := j.eval(term.X, frame)
			if err != nil {
				return nil, nil, err
			}
			return c, block, nil
		case *ir.TermBr:
			block = term.Target
		case *ir.TermCondBr:
			c, err := j.eval(term.Cond, frame)
			if err != nil {
				return nil, nil, err
			}
			if c.scalar.Sign() != 0 {
				block = term.TargetTrue
			} else {
				block = term.TargetFalse
			}
		case *ir.TermUnreachable:
			return nil, nil, fmt.Errorf("reached 'unreachable' terminator in function %q", fn.Name())
		default:
			return nil, nil, fmt.Errorf("unsupported terminator %T in function %q", term, fn.Name())
		}
	}
}

func (j *JIT) execInst(inst ir.Instruction, fr *frame) error {
	switch i := inst.(type) {
	case *ir.InstAlloca:
		fr.set(i, &cell{scalar: big.NewInt(0)})
	case *ir.InstStore:
		src, err := j.eval(i.Src, fr)
		if err != nil {
			return err
		}
		dst, err := j.eval(i.Dst, fr)
		if err != nil {
			return err
		}
		*dst = *src
	case *ir.InstLoad:
		src, err := j.eval(i.Src, fr)
		if err != nil {
			return err
		}
		fr.set(i, src)
	case *ir.InstGetElementPtr:
		base, err := j.eval(i.Src, fr)
		if err != nil {
			return err
		}
		idx := 0
		if len(i.Indices) > 1 {
			if ci, ok := i.Indices[1].(*constant.Int); ok {
				idx = int(ci.X.Int64())
			}
		}
		if idx >= 0 && idx < len(base.fields) {
			fr.set(i, base.fields[idx])
		} else {
			fr.set(i, base)
		}
	case *ir.InstCall:
		callee, ok := i.Callee.(*ir.Func)
		if !ok {
			return fmt.Errorf("indirect/unsupported call target %T", i.Callee)
		}
		var argCells []*cell
		for _, a := range i.Args {
			c, err := j.eval(a, fr)
			if err != nil {
				return err
			}
			argCells = append(argCells, c)
		}
		callFrame := newFrame(nil)
		for idx, p := range callee.Params {
			if idx < len(argCells) {
				callFrame.set(p, argCells[idx])
			}
		}
		result, _, err := j.execFunc(callee, callFrame)
		if err != nil {
			return err
		}
		if result == nil {
			result = &cell{scalar: big.NewInt(0)}
		}
		fr.set(i, result)
	default:
		return j.execArith(inst, fr)
	}
	return nil
}

func (j *JIT) execArith(inst ir.Instruction, fr *frame) error {
	bin := func(x, y value.Value, f func(a, b *big.Int) *big.Int) (*cell, error) {
		a, err := j.eval(x, fr)
		if err != nil {
			return nil, err
		}
		b, err := j.eval(y, fr)
		if err != nil {
			return nil, err
		}
		return &cell{scalar: f(new(big.Int).Set(a.scalar), b.scalar)}, nil
	}

	var result *cell
	var err error
	switch i := inst.(type) {
	case *ir.InstAdd:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.Add(a, b) })
	case *ir.InstSub:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.Sub(a, b) })
	case *ir.InstMul:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.Mul(a, b) })
	case *ir.InstSDiv, *ir.InstUDiv:
		x, y := divOperands(i)
		result, err = bin(x, y, func(a, b *big.Int) *big.Int { return a.Quo(a, b) })
	case *ir.InstSRem, *ir.InstURem:
		x, y := remOperands(i)
		result, err = bin(x, y, func(a, b *big.Int) *big.Int { return a.Rem(a, b) })
	case *ir.InstAnd:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.And(a, b) })
	case *ir.InstOr:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.Or(a, b) })
	case *ir.InstXor:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.Xor(a, b) })
	case *ir.InstShl:
		result, err = bin(i.X, i.Y, func(a, b *big.Int) *big.Int { return a.Lsh(a, uint(b.Int64())) })
	case *ir.InstAShr, *ir.InstLShr:
		x, y := shiftOperands(i)
		result, err = bin(x, y, func(a, b *big.Int) *big.Int { return a.Rsh(a, uint(b.Int64())) })
	case *ir.InstICmp:
		result, err = j.evalICmp(i, fr)
	case *ir.InstSExt, *ir.InstZExt, *ir.InstTrunc, *ir.InstBitCast, *ir.InstPtrToInt, *ir.InstIntToPtr:
		result, err = j.evalConv(inst, fr)
	default:
		return fmt.Errorf("unsupported instruction %T in JIT interpreter", inst)
	}
	if err != nil {
		return err
	}
	if setter, ok := inst.(value.Value); ok {
		fr.set(setter, result)
	}
	return nil
}

// divOperands/remOperands/shiftOperands fetch the (X, Y) operand pair from
// whichever concrete instruction type matched, so execArith's bin() helper
// stays untyped across the signed/unsigned variants.
func divOperands(inst ir.Instruction) (value.Value, value.Value) {
	switch i := inst.(type) {
	case *ir.InstSDiv:
		return i.X, i.Y
	case *ir.InstUDiv:
		return i.X, i.Y
	}
	return nil, nil
}

func remOperands(inst ir.Instruction) (value.Value, value.Value) {
	switch i := inst.(type) {
	case *ir.InstSRem:
		return i.X, i.Y
	case *ir.InstURem:
		return i.X, i.Y
	}
	return nil, nil
}

func shiftOperands(inst ir.Instruction) (value.Value, value.Value) {
	switch i := inst.(type) {
	case *ir.InstAShr:
		return i.X, i.Y
	case *ir.InstLShr:
		return i.X, i.Y
	}
	return nil, nil
}

func (j *JIT) evalICmp(i *ir.InstICmp, fr *frame) (*cell, error) {
	x, err := j.eval(i.X, fr)
	if err != nil {
		return nil, err
	}
	y, err := j.eval(i.Y, fr)
	if err != nil {
		return nil, err
	}
	cmp := x.scalar.Cmp(y.scalar)
	var truth bool
	switch i.Pred {
	case enum.IPredEQ:
		truth = cmp == 0
	case enum.IPredNE:
		truth = cmp != 0
	case enum.IPredSLT, enum.IPredULT:
		truth = cmp < 0
	case enum.IPredSLE, enum.IPredULE:
		truth = cmp <= 0
	case enum.IPredSGT, enum.IPredUGT:
		truth = cmp > 0
	case enum.IPredSGE, enum.IPredUGE:
		truth = cmp >= 0
	}
	if truth {
		return &cell{scalar: big.NewInt(1)}, nil
	}
	return &cell{scalar: big.NewInt(0)}, nil
}

func (j *JIT) evalConv(inst ir.Instruction, fr *frame) (*cell, error) {
	var operand value.Value
	switch i := inst.(type) {
	case *ir.InstSExt:
		operand = i.From
	case *ir.InstZExt:
		operand = i.From
	case *ir.InstTrunc:
		operand = i.From
	case *ir.InstBitCast:
		operand = i.From
	case *ir.InstPtrToInt:
		operand = i.From
	case *ir.InstIntToPtr:
		operand = i.From
	}
	return j.eval(operand, fr)
}

// eval resolves any value.Value to an interpreter cell: a previously bound
// SSA result/alloca, or a freshly materialized constant.
func (j *JIT) eval(v value.Value, fr *frame) (*cell, error) {
	if c, ok := fr.get(v); ok {
		return c, nil
	}
	switch cst := v.(type) {
	case *constant.Int:
		return &cell{scalar: new(big.Int).Set(cst.X)}, nil
	case *constant.Float:
		f, _ := cst.X.Float64()
		return &cell{scalar: big.NewInt(int64(f)), fscalar: f, isFloat: true}, nil
	case *constant.ZeroInitializer:
		return &cell{scalar: big.NewInt(0)}, nil
	}
	return nil, fmt.Errorf("unbound value %v (%T) referenced before definition", v.Ident(), v)
}

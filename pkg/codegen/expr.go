package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	llvmtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/backend"
	"github.com/kestrel-lang/kestrelc/pkg/mangle"
	"github.com/kestrel-lang/kestrelc/pkg/token"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// codegenValue is the payload wrapped in an ast.BackendValueExpr.Value by
// this package, letting a helper re-enter expression handling uniformly
// once it has already produced an IR value.
type codegenValue struct {
	V value.Value
	T types.Type
}

func (c *Context) wrap(v value.Value, t types.Type) ast.Expression {
	return ast.BackendValueExpr{Value: codegenValue{V: v, T: t}}
}

// LowerExpr lowers one expression to its rvalue IR value and language-level
// type, dispatching by type switch over the language's ~22 expression
// variants and producing SSA values/terminators as it goes.
func (c *Context) LowerExpr(e ast.Expression) (value.Value, types.Type, error) {
	switch expr := e.(type) {
	case ast.IntLiteral:
		return c.lowerIntLiteral(expr)
	case ast.FloatLiteral:
		return c.lowerFloatLiteral(expr)
	case ast.BoolLiteral:
		v := int64(0)
		if expr.Value {
			v = 1
		}
		return constant.NewInt(llvmtypes.I8, v), types.Builtin{Kind: types.Bool}, nil
	case ast.StringLiteral:
		return c.lowerStringLiteral(expr)
	case ast.CharLiteral:
		return constant.NewInt(llvmtypes.I32, int64(expr.Value)), types.Builtin{Kind: types.Char}, nil
	case ast.NullLiteral:
		return constant.NewNull(llvmtypes.NewPointer(llvmtypes.I8)), types.Pointer{Pointee: types.Builtin{Kind: types.Void}, Depth: 1}, nil

	case ast.IdentExpr, ast.MemberExpr, ast.SubscriptExpr:
		addr, t, err := c.lowerLValue(e)
		if err != nil {
			return nil, nil, err
		}
		llvmT, err := c.lowerTypeAllowingClasses(t)
		if err != nil {
			return nil, nil, err
		}
		return c.Block.NewLoad(llvmT, addr), t, nil

	case ast.UnaryExpr:
		return c.lowerUnary(expr)
	case ast.BinaryExpr:
		return c.lowerBinary(expr)

	case ast.DerefExpr:
		ptrVal, ptrType, err := c.LowerExpr(expr.Operand)
		if err != nil {
			return nil, nil, err
		}
		ptr, ok := types.Decay(ptrType).(types.Pointer)
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "cannot dereference non-pointer type %s", typeString(ptrType))
		}
		elemType := reduceDepth(ptr)
		llvmElem, err := c.lowerTypeAllowingClasses(elemType)
		if err != nil {
			return nil, nil, err
		}
		return c.Block.NewLoad(llvmElem, ptrVal), elemType, nil

	case ast.AddrOfExpr:
		addr, t, err := c.lowerLValue(expr.Operand)
		if err != nil {
			return nil, nil, err
		}
		return addr, types.Pointer{Pointee: t, Depth: 1}, nil

	case ast.RefExpr:
		addr, t, err := c.lowerLValue(expr.Operand)
		if err != nil {
			return nil, nil, err
		}
		return addr, types.Reference{Referent: t}, nil

	case ast.NewExpr:
		return c.lowerNew(expr)
	case ast.DeleteExpr:
		return c.lowerDelete(expr)

	case ast.CastExpr:
		return c.lowerCast(expr)

	case ast.PipelineExpr:
		return c.lowerPipeline(expr)

	case ast.CallExpr:
		return c.lowerCall(expr)
	case ast.TemplateCallExpr:
		return c.lowerTemplateCall(expr)

	case ast.ArrayLiteralExpr:
		return c.lowerArrayLiteral(expr)
	case ast.ClassLiteralExpr:
		return c.lowerClassLiteral(expr)

	case ast.SizeofExpr:
		t, err := c.ResolveType(expr.Type)
		if err != nil {
			return nil, nil, err
		}
		// sizeof a class name reports the instance's layout size, not the
		// pointer ResolveType normalizes bare class references to.
		sizeTarget := t
		if ud, ok := classNameOf(t); ok {
			sizeTarget = ud
		}
		llvmT, err := c.lowerTypeAllowingClasses(sizeTarget)
		if err != nil {
			return nil, nil, err
		}
		return constant.NewInt(llvmtypes.I64, int64(byteSizeOf(llvmT))), types.Builtin{Kind: types.U64}, nil

	case ast.BuiltinMacroExpr:
		return c.lowerBuiltinMacro(expr)

	case ast.ScopeExpr:
		return c.lowerScope(expr)

	case ast.RootIdentExpr:
		return nil, nil, c.errorf(expr.Pos.ID, "root-qualified name %q is only supported as a call target", expr.Name)

	case ast.BackendValueExpr:
		cv := expr.Value.(codegenValue)
		return cv.V, cv.T, nil

	default:
		return nil, nil, fmt.Errorf("unrecognized expression: %T", e)
	}
}

func typeString(t types.Type) string {
	if t == nil {
		return "<unknown>"
	}
	return t.Key()
}

func (c *Context) lowerIntLiteral(e ast.IntLiteral) (value.Value, types.Type, error) {
	kind := types.I32
	if e.Suffix != "" {
		k, ok := builtinKindByName(e.Suffix)
		if !ok || !k.IsInteger() {
			return nil, nil, c.errorf(e.Pos.ID, "invalid integer literal suffix %q", e.Suffix)
		}
		kind = k
	}
	n, err := strconv.ParseUint(e.Value, 10, 64)
	if err != nil {
		return nil, nil, c.errorf(e.Pos.ID, "invalid integer literal %q: %v", e.Value, err)
	}
	bt := types.Builtin{Kind: kind}
	llvmT, err := c.lowerTypeAllowingClasses(bt)
	if err != nil {
		return nil, nil, err
	}
	return constant.NewInt(llvmT.(*llvmtypes.IntType), int64(n)), bt, nil
}

func (c *Context) lowerFloatLiteral(e ast.FloatLiteral) (value.Value, types.Type, error) {
	kind := types.F64
	if e.Suffix == "f32" {
		kind = types.F32
	}
	n, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		return nil, nil, c.errorf(e.Pos.ID, "invalid float literal %q: %v", e.Value, err)
	}
	bt := types.Builtin{Kind: kind}
	llvmT, err := c.lowerTypeAllowingClasses(bt)
	if err != nil {
		return nil, nil, err
	}
	return constant.NewFloat(llvmT.(*llvmtypes.FloatType), n), bt, nil
}

func (c *Context) lowerStringLiteral(e ast.StringLiteral) (value.Value, types.Type, error) {
	c.stringLits++
	raw := string(e.Value) + "\x00"
	arrType := llvmtypes.NewArray(uint64(len(raw)), llvmtypes.I8)
	init := constant.NewCharArray([]byte(raw))
	g := c.Target.Module.NewGlobalDef(fmt.Sprintf("kestrel.str.%d", c.stringLits), init)
	zero := constant.NewInt(llvmtypes.I32, 0)
	ptr := c.Block.NewGetElementPtr(arrType, g, zero, zero)
	return ptr, types.Pointer{Pointee: types.Builtin{Kind: types.U8}, Depth: 1}, nil
}

// lowerLValue resolves an expression to its addressable storage location
// (an address-typed IR value) plus the language-level type stored there,
// used by assignment, increment/decrement, and address-of.
func (c *Context) lowerLValue(e ast.Expression) (value.Value, types.Type, error) {
	switch expr := e.(type) {
	case ast.IdentExpr:
		v, ok := c.Scopes.Resolve(expr.Name)
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "undefined identifier %q", expr.Name)
		}
		slot, ok := v.Handle.(value.Value)
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "identifier %q has no addressable storage", expr.Name)
		}
		return slot, v.Type, nil

	case ast.MemberExpr:
		baseAddr, baseType, err := c.lowerLValue(expr.Base)
		if err != nil {
			// The base may be an rvalue (e.g. a function call returning a
			// pointer); fall back to evaluating it directly.
			var baseVal value.Value
			baseVal, baseType, err = c.LowerExpr(expr.Base)
			if err != nil {
				return nil, nil, err
			}
			baseAddr = baseVal
		} else if _, isPtr := types.Decay(baseType).(types.Pointer); isPtr {
			// baseAddr is the address of storage whose value is itself the
			// class pointer (every class-typed location holds one, per the
			// 'new'-returns-a-pointer convention), so load through once to
			// reach the pointer value the field GEP needs as its base.
			llvmT, lerr := c.lowerTypeAllowingClasses(baseType)
			if lerr != nil {
				return nil, nil, lerr
			}
			baseAddr = c.Block.NewLoad(llvmT, baseAddr)
		}

		var className string
		if ptr, ok := types.Decay(baseType).(types.Pointer); ok {
			if u, isUD := types.Decay(ptr.Pointee).(types.UserDefined); isUD {
				className = u.Name
			}
		}
		if className == "" {
			if u, isUD := types.Decay(baseType).(types.UserDefined); isUD {
				className = u.Name
			}
		}
		if className == "" {
			return nil, nil, c.errorf(expr.Pos.ID, "member access on non-class type %s", typeString(baseType))
		}

		class, ok := c.Reg.Classes.Get(className)
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "unknown class %q", className)
		}
		idx, ok := class.FieldIndex(expr.Member)
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "class %q has no field %q", className, expr.Member)
		}
		st, ok := c.StructTypes[className]
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "class %q has no lowered layout yet", className)
		}
		fieldAddr := c.Block.NewGetElementPtr(st, baseAddr,
			constant.NewInt(llvmtypes.I32, 0), constant.NewInt(llvmtypes.I32, int64(idx)))

		var fieldType types.Type
		for _, m := range class.Members {
			if m.Name == expr.Member && !m.Static {
				fieldType = m.Type
			}
		}
		return fieldAddr, fieldType, nil

	case ast.SubscriptExpr:
		baseVal, baseType, err := c.LowerExpr(expr.Base)
		if err != nil {
			return nil, nil, err
		}
		idxVal, _, err := c.LowerExpr(expr.Index)
		if err != nil {
			return nil, nil, err
		}

		switch bt := types.Decay(baseType).(type) {
		case types.Array:
			llvmArr, lerr := c.lowerTypeAllowingClasses(bt)
			if lerr != nil {
				return nil, nil, lerr
			}
			addr := c.Block.NewGetElementPtr(llvmArr, baseVal, constant.NewInt(llvmtypes.I32, 0), idxVal)
			return addr, bt.Element, nil
		case types.Pointer:
			elem := reduceDepth(bt)
			llvmElem, lerr := c.lowerTypeAllowingClasses(elem)
			if lerr != nil {
				return nil, nil, lerr
			}
			addr := c.Block.NewGetElementPtr(llvmElem, baseVal, idxVal)
			return addr, elem, nil
		default:
			return nil, nil, c.errorf(expr.Pos.ID, "cannot subscript non-array/pointer type %s", typeString(baseType))
		}

	case ast.DerefExpr:
		ptrVal, ptrType, err := c.LowerExpr(expr.Operand)
		if err != nil {
			return nil, nil, err
		}
		ptr, ok := types.Decay(ptrType).(types.Pointer)
		if !ok {
			return nil, nil, c.errorf(expr.Pos.ID, "cannot dereference non-pointer type %s", typeString(ptrType))
		}
		return ptrVal, reduceDepth(ptr), nil

	case ast.BackendValueExpr:
		cv := expr.Value.(codegenValue)
		return cv.V, cv.T, nil

	default:
		return nil, nil, fmt.Errorf("expression %T is not addressable", e)
	}
}

// classNameOf accepts either a bare class type (as ResolveType returns it)
// or a pointer to one (as ResolveStorageType normalizes declared storage to,
// self-allocating constructor convention) and returns the
// class name either way.
func classNameOf(t types.Type) (types.UserDefined, bool) {
	if ptr, ok := t.(types.Pointer); ok {
		if ud, ok := ptr.Pointee.(types.UserDefined); ok {
			return ud, true
		}
	}
	if ud, ok := t.(types.UserDefined); ok {
		return ud, true
	}
	return types.UserDefined{}, false
}

func reduceDepth(p types.Pointer) types.Type {
	if p.Depth <= 1 {
		return p.Pointee
	}
	return types.Pointer{Pointee: p.Pointee, Depth: p.Depth - 1}
}

func (c *Context) lowerUnary(e ast.UnaryExpr) (value.Value, types.Type, error) {
	val, t, err := c.LowerExpr(e.Operand)
	if err != nil {
		return nil, nil, err
	}
	bt, ok := types.Decay(t).(types.Builtin)
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "unary operator %q requires a builtin operand, got %s", e.Op, typeString(t))
	}

	switch e.Op {
	case "+":
		return val, t, nil
	case "-":
		if bt.Kind.IsFloat() {
			return c.Block.NewFSub(zeroOf(val.Type()), val), t, nil
		}
		return c.Block.NewSub(zeroOf(val.Type()), val), t, nil
	case "!":
		truthy := c.truthy(val)
		return c.toBool8(c.Block.NewXor(truthy, constant.NewInt(llvmtypes.I1, 1))), types.Builtin{Kind: types.Bool}, nil
	default:
		return nil, nil, c.errorf(e.Pos.ID, "unrecognized unary operator %q", e.Op)
	}
}

// truthy converts any integer-typed value to an i1 by comparing against zero.
func (c *Context) truthy(v value.Value) value.Value {
	it, ok := v.Type().(*llvmtypes.IntType)
	if !ok {
		return v
	}
	if it.BitSize == 1 {
		return v
	}
	return c.Block.NewICmp(enum.IPredNE, v, constant.NewInt(it, 0))
}

func (c *Context) toBool8(i1 value.Value) value.Value {
	return c.Block.NewZExt(i1, llvmtypes.I8)
}

func (c *Context) lowerBinary(e ast.BinaryExpr) (value.Value, types.Type, error) {
	if e.Op == "&&" || e.Op == "||" {
		return c.lowerShortCircuit(e)
	}

	lhsVal, lhsType, err := c.LowerExpr(e.Lhs)
	if err != nil {
		return nil, nil, err
	}
	rhsVal, rhsType, err := c.LowerExpr(e.Rhs)
	if err != nil {
		return nil, nil, err
	}
	return c.applyBinaryOp(e.Pos.ID, e.Op, lhsVal, lhsType, rhsVal, rhsType)
}

func (c *Context) lowerShortCircuit(e ast.BinaryExpr) (value.Value, types.Type, error) {
	lhsVal, _, err := c.LowerExpr(e.Lhs)
	if err != nil {
		return nil, nil, err
	}
	lhsTruthy := c.truthy(lhsVal)
	startBlk := c.Block

	rhsBlk := c.newBlock("logic.rhs")
	mergeBlk := c.newBlock("logic.end")

	if e.Op == "&&" {
		startBlk.NewCondBr(lhsTruthy, rhsBlk, mergeBlk)
	} else {
		startBlk.NewCondBr(lhsTruthy, mergeBlk, rhsBlk)
	}

	c.Block = rhsBlk
	rhsVal, _, err := c.LowerExpr(e.Rhs)
	if err != nil {
		return nil, nil, err
	}
	rhsTruthy := c.toBool8(c.truthy(rhsVal))
	endRhsBlk := c.Block
	c.branchTo(c.Block, mergeBlk)

	shortCircuitValue := int64(0)
	if e.Op == "||" {
		shortCircuitValue = 1
	}

	c.Block = mergeBlk
	phi := mergeBlk.NewPhi(
		ir.NewIncoming(constant.NewInt(llvmtypes.I8, shortCircuitValue), startBlk),
		ir.NewIncoming(rhsTruthy, endRhsBlk),
	)
	return phi, types.Builtin{Kind: types.Bool}, nil
}

// applyBinaryOp evaluates a non-short-circuit binary operator over two
// already-lowered operands; used both by BinaryExpr and compound-assignment
// (+=, -=, ...) statement lowering, which eagerly evaluate both sides.
func (c *Context) applyBinaryOp(node token.NodeID, op string, lhsVal value.Value, lhsType types.Type, rhsVal value.Value, rhsType types.Type) (value.Value, types.Type, error) {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return c.lowerComparison(node, op, lhsVal, lhsType, rhsVal, rhsType)
	}

	lb, lok := types.Decay(lhsType).(types.Builtin)
	rb, rok := types.Decay(rhsType).(types.Builtin)
	if !lok || !rok {
		return nil, nil, c.errorf(node, "binary operator %q requires builtin operand types, got %s and %s", op, typeString(lhsType), typeString(rhsType))
	}

	if lb.Kind.IsFloat() || rb.Kind.IsFloat() {
		widest := lb
		if rb.Kind.BitWidth() > lb.Kind.BitWidth() {
			widest = rb
		}
		lv := c.coerceBuiltin(lhsVal, lb, widest)
		rv := c.coerceBuiltin(rhsVal, rb, widest)
		return c.lowerFloatArith(node, op, lv, rv, widest)
	}

	promoted, perr := types.Promote(lb, rb)
	if perr != nil {
		return nil, nil, c.errorf(node, "%v", perr)
	}
	lv := c.coerceBuiltin(lhsVal, lb, promoted)
	rv := c.coerceBuiltin(rhsVal, rb, promoted)
	return c.lowerIntArith(node, op, lv, rv, promoted)
}

func (c *Context) lowerIntArith(node token.NodeID, op string, l, r value.Value, t types.Builtin) (value.Value, types.Type, error) {
	signed := t.Kind.IsSigned()
	switch op {
	case "+":
		return c.Block.NewAdd(l, r), t, nil
	case "-":
		return c.Block.NewSub(l, r), t, nil
	case "*":
		return c.Block.NewMul(l, r), t, nil
	case "/":
		if signed {
			return c.Block.NewSDiv(l, r), t, nil
		}
		return c.Block.NewUDiv(l, r), t, nil
	case "%":
		if signed {
			return c.Block.NewSRem(l, r), t, nil
		}
		return c.Block.NewURem(l, r), t, nil
	case "&":
		return c.Block.NewAnd(l, r), t, nil
	case "|":
		return c.Block.NewOr(l, r), t, nil
	case "^":
		return c.Block.NewXor(l, r), t, nil
	case "<<":
		return c.Block.NewShl(l, r), t, nil
	case ">>":
		if signed {
			return c.Block.NewAShr(l, r), t, nil
		}
		return c.Block.NewLShr(l, r), t, nil
	default:
		return nil, nil, c.errorf(node, "unrecognized integer operator %q", op)
	}
}

func (c *Context) lowerFloatArith(node token.NodeID, op string, l, r value.Value, t types.Builtin) (value.Value, types.Type, error) {
	switch op {
	case "+":
		return c.Block.NewFAdd(l, r), t, nil
	case "-":
		return c.Block.NewFSub(l, r), t, nil
	case "*":
		return c.Block.NewFMul(l, r), t, nil
	case "/":
		return c.Block.NewFDiv(l, r), t, nil
	default:
		return nil, nil, c.errorf(node, "operator %q is not defined on floating point operands", op)
	}
}

func (c *Context) lowerComparison(node token.NodeID, op string, lhsVal value.Value, lhsType types.Type, rhsVal value.Value, rhsType types.Type) (value.Value, types.Type, error) {
	lb, lIsBuiltin := types.Decay(lhsType).(types.Builtin)
	rb, rIsBuiltin := types.Decay(rhsType).(types.Builtin)

	var result value.Value
	switch {
	case lIsBuiltin && rIsBuiltin && (lb.Kind.IsFloat() || rb.Kind.IsFloat()):
		widest := lb
		if rb.Kind.BitWidth() > lb.Kind.BitWidth() {
			widest = rb
		}
		lv := c.coerceBuiltin(lhsVal, lb, widest)
		rv := c.coerceBuiltin(rhsVal, rb, widest)
		pred, err := floatPredFor(op)
		if err != nil {
			return nil, nil, c.errorf(node, "%v", err)
		}
		result = c.Block.NewFCmp(pred, lv, rv)

	case lIsBuiltin && rIsBuiltin:
		promoted, err := types.Promote(lb, rb)
		if err != nil {
			return nil, nil, c.errorf(node, "%v", err)
		}
		lv := c.coerceBuiltin(lhsVal, lb, promoted)
		rv := c.coerceBuiltin(rhsVal, rb, promoted)
		pred, err := intPredFor(op, promoted.Kind.IsSigned())
		if err != nil {
			return nil, nil, c.errorf(node, "%v", err)
		}
		result = c.Block.NewICmp(pred, lv, rv)

	default:
		// Pointer/reference equality: compare the raw addresses.
		pred, err := intPredFor(op, false)
		if err != nil {
			return nil, nil, c.errorf(node, "%v", err)
		}
		result = c.Block.NewICmp(pred, lhsVal, rhsVal)
	}

	return c.toBool8(result), types.Builtin{Kind: types.Bool}, nil
}

func intPredFor(op string, signed bool) (enum.IPred, error) {
	switch op {
	case "==":
		return enum.IPredEQ, nil
	case "!=":
		return enum.IPredNE, nil
	case "<":
		if signed {
			return enum.IPredSLT, nil
		}
		return enum.IPredULT, nil
	case "<=":
		if signed {
			return enum.IPredSLE, nil
		}
		return enum.IPredULE, nil
	case ">":
		if signed {
			return enum.IPredSGT, nil
		}
		return enum.IPredUGT, nil
	case ">=":
		if signed {
			return enum.IPredSGE, nil
		}
		return enum.IPredUGE, nil
	default:
		return 0, fmt.Errorf("unrecognized comparison operator %q", op)
	}
}

func floatPredFor(op string) (enum.FPred, error) {
	switch op {
	case "==":
		return enum.FPredOEQ, nil
	case "!=":
		return enum.FPredONE, nil
	case "<":
		return enum.FPredOLT, nil
	case "<=":
		return enum.FPredOLE, nil
	case ">":
		return enum.FPredOGT, nil
	case ">=":
		return enum.FPredOGE, nil
	default:
		return 0, fmt.Errorf("unrecognized comparison operator %q", op)
	}
}

// coerceBuiltin widens/narrows an already-lowered value from 'from' to 'to'.
func (c *Context) coerceBuiltin(v value.Value, from, to types.Builtin) value.Value {
	if from.Kind == to.Kind {
		return v
	}
	toLLVM, err := c.lowerTypeAllowingClasses(to)
	if err != nil {
		return v
	}

	if from.Kind.IsFloat() && to.Kind.IsFloat() {
		if from.Kind.BitWidth() < to.Kind.BitWidth() {
			return c.Block.NewFPExt(v, toLLVM)
		}
		return c.Block.NewFPTrunc(v, toLLVM)
	}
	if from.Kind.IsInteger() && to.Kind.IsFloat() {
		if from.Kind.IsSigned() {
			return c.Block.NewSIToFP(v, toLLVM)
		}
		return c.Block.NewUIToFP(v, toLLVM)
	}
	if from.Kind.IsFloat() && to.Kind.IsInteger() {
		if to.Kind.IsSigned() {
			return c.Block.NewFPToSI(v, toLLVM)
		}
		return c.Block.NewFPToUI(v, toLLVM)
	}

	if from.Kind.BitWidth() < to.Kind.BitWidth() {
		if from.Kind.IsSigned() {
			return c.Block.NewSExt(v, toLLVM)
		}
		return c.Block.NewZExt(v, toLLVM)
	}
	if from.Kind.BitWidth() > to.Kind.BitWidth() {
		return c.Block.NewTrunc(v, toLLVM)
	}
	return v
}

// coerce applies coerceBuiltin plus the pointer/null conversions needed at
// assignment and call-argument boundaries.
func (c *Context) coerce(v value.Value, from, to types.Type, node token.NodeID) (value.Value, error) {
	if types.Equal(from, to) {
		return v, nil
	}
	fb, fIsBuiltin := types.Decay(from).(types.Builtin)
	tb, tIsBuiltin := types.Decay(to).(types.Builtin)
	if fIsBuiltin && tIsBuiltin {
		return c.coerceBuiltin(v, fb, tb), nil
	}
	if _, toPtr := types.Decay(to).(types.Pointer); toPtr {
		llvmTo, err := c.lowerTypeAllowingClasses(to)
		if err != nil {
			return nil, err
		}
		if _, isNull := v.(*constant.Null); isNull {
			return constant.NewNull(llvmTo.(*llvmtypes.PointerType)), nil
		}
		if _, fromPtr := types.Decay(from).(types.Pointer); fromPtr {
			return c.Block.NewBitCast(v, llvmTo), nil
		}
	}
	return v, nil
}

func (c *Context) lowerCast(e ast.CastExpr) (value.Value, types.Type, error) {
	val, fromType, err := c.LowerExpr(e.Operand)
	if err != nil {
		return nil, nil, err
	}
	toType, err := c.ResolveType(e.Target)
	if err != nil {
		return nil, nil, err
	}

	switch types.ClassifyCast(types.Decay(fromType), toType) {
	case types.CastNoop:
		return val, toType, nil
	case types.CastIntToInt:
		fb := types.Decay(fromType).(types.Builtin)
		tb := toType.(types.Builtin)
		return c.coerceBuiltin(val, fb, tb), toType, nil
	case types.CastPointerToPointer:
		llvmTo, lerr := c.lowerTypeAllowingClasses(toType)
		if lerr != nil {
			return nil, nil, lerr
		}
		return c.Block.NewBitCast(val, llvmTo), toType, nil
	default:
		return nil, nil, c.errorf(e.Pos.ID, "illegal cast from %s to %s", typeString(fromType), typeString(toType))
	}
}

func (c *Context) lowerPipeline(e ast.PipelineExpr) (value.Value, types.Type, error) {
	if call, ok := e.Rhs.(ast.CallExpr); ok {
		piped := call
		piped.Args = append([]ast.Expression{e.Lhs}, call.Args...)
		return c.LowerExpr(piped)
	}
	synthetic := ast.CallExpr{Pos: e.Pos, Callee: e.Rhs, Args: []ast.Expression{e.Lhs}}
	return c.LowerExpr(synthetic)
}

func (c *Context) lowerNew(e ast.NewExpr) (value.Value, types.Type, error) {
	t, err := c.ResolveType(e.Type)
	if err != nil {
		return nil, nil, err
	}
	ud, ok := classNameOf(t)
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "'new' requires a class type, got %s", typeString(t))
	}

	args := make([]value.Value, len(e.Args))
	argTypes := make([]types.Type, len(e.Args))
	for i, a := range e.Args {
		v, at, aerr := c.LowerExpr(a)
		if aerr != nil {
			return nil, nil, aerr
		}
		args[i] = v
		argTypes[i] = at
	}

	mangled := mangle.Mangle(classFrames(ud.Name), "", 0, mangle.KindConstructor, argTypes)
	fn, ok := c.Funcs[mangled]
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "no constructor of class %q accepting %d argument(s)", ud.Name, len(args))
	}

	paramTypes, _ := c.Reg.FunctionParamTypes.Get(mangled)
	for i := range args {
		if i < len(paramTypes) {
			args[i], err = c.coerce(args[i], argTypes[i], paramTypes[i], e.Pos.ID)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	call := c.Block.NewCall(fn, args...)
	return call, types.Pointer{Pointee: ud, Depth: 1}, nil
}

func (c *Context) lowerDelete(e ast.DeleteExpr) (value.Value, types.Type, error) {
	val, t, err := c.LowerExpr(e.Operand)
	if err != nil {
		return nil, nil, err
	}
	ptr, ok := types.Decay(t).(types.Pointer)
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "'delete' requires a pointer operand, got %s", typeString(t))
	}
	if ud, isClass := types.Decay(ptr.Pointee).(types.UserDefined); isClass {
		mangled := mangle.Mangle(classFrames(ud.Name), "", 0, mangle.KindDestructor, nil)
		if fn, ok := c.Funcs[mangled]; ok {
			c.Block.NewCall(fn, val)
		}
	}
	freeFn := c.ensureFree()
	opaque := c.Block.NewBitCast(val, llvmtypes.NewPointer(llvmtypes.I8))
	c.Block.NewCall(freeFn, opaque)
	return constant.NewInt(llvmtypes.I8, 0), types.Builtin{Kind: types.Void}, nil
}

func (c *Context) lowerArrayLiteral(e ast.ArrayLiteralExpr) (value.Value, types.Type, error) {
	if len(e.Elements) == 0 {
		return nil, nil, c.errorf(e.Pos.ID, "array literal must have at least one element to infer its element type")
	}
	first, elemType, err := c.LowerExpr(e.Elements[0])
	if err != nil {
		return nil, nil, err
	}
	llvmElem, err := c.lowerTypeAllowingClasses(elemType)
	if err != nil {
		return nil, nil, err
	}
	arrType := llvmtypes.NewArray(uint64(len(e.Elements)), llvmElem)
	slot := c.Func.Blocks[0].NewAlloca(arrType)

	store := func(idx int, v value.Value) {
		addr := c.Block.NewGetElementPtr(arrType, slot, constant.NewInt(llvmtypes.I32, 0), constant.NewInt(llvmtypes.I32, int64(idx)))
		c.Block.NewStore(v, addr)
	}
	store(0, first)
	for i := 1; i < len(e.Elements); i++ {
		v, vt, eerr := c.LowerExpr(e.Elements[i])
		if eerr != nil {
			return nil, nil, eerr
		}
		coerced, cerr := c.coerce(v, vt, elemType, e.Pos.ID)
		if cerr != nil {
			return nil, nil, cerr
		}
		store(i, coerced)
	}

	return slot, types.Array{Element: elemType, Size: uint64(len(e.Elements))}, nil
}

func (c *Context) lowerClassLiteral(e ast.ClassLiteralExpr) (value.Value, types.Type, error) {
	t, err := c.ResolveType(e.Type)
	if err != nil {
		return nil, nil, err
	}
	ud, ok := classNameOf(t)
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "class literal requires a class type, got %s", typeString(t))
	}
	class, ok := c.Reg.Classes.Get(ud.Name)
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "unknown class %q", ud.Name)
	}
	st, ok := c.StructTypes[ud.Name]
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "class %q has no lowered layout yet", ud.Name)
	}

	slot := c.Func.Blocks[0].NewAlloca(st)
	for _, fv := range e.Fields {
		idx, ok := class.FieldIndex(fv.Name)
		if !ok {
			return nil, nil, c.errorf(e.Pos.ID, "class %q has no field %q", ud.Name, fv.Name)
		}
		val, vt, verr := c.LowerExpr(fv.Value)
		if verr != nil {
			return nil, nil, verr
		}
		var ft types.Type
		for _, m := range class.Members {
			if m.Name == fv.Name {
				ft = m.Type
			}
		}
		coerced, cerr := c.coerce(val, vt, ft, e.Pos.ID)
		if cerr != nil {
			return nil, nil, cerr
		}
		addr := c.Block.NewGetElementPtr(st, slot, constant.NewInt(llvmtypes.I32, 0), constant.NewInt(llvmtypes.I32, int64(idx)))
		c.Block.NewStore(coerced, addr)
	}
	return slot, ud, nil
}

func (c *Context) lowerBuiltinMacro(e ast.BuiltinMacroExpr) (value.Value, types.Type, error) {
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, _, err := c.LowerExpr(a)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	name := "kestrel_builtin_" + strings.TrimPrefix(e.Name, "@")
	fn, ok := c.Funcs[name]
	if !ok {
		params := make([]*ir.Param, len(args))
		for i := range args {
			params[i] = ir.NewParam(fmt.Sprintf("a%d", i), args[i].Type())
		}
		fn = c.Target.Module.NewFunc(name, llvmtypes.I32, params...)
		c.Funcs[name] = fn
	}
	return c.Block.NewCall(fn, args...), types.Builtin{Kind: types.I32}, nil
}

// lowerScope supports the limited scope-resolution case this implementation
// covers: qualifying a bare call target is handled directly in lowerCall.
// Anything beyond that (static data member access through '::') is out of
// scope for this pass; see DESIGN.md.
func (c *Context) lowerScope(e ast.ScopeExpr) (value.Value, types.Type, error) {
	return nil, nil, c.errorf(e.Pos.ID, "scope-resolution expression %q is only supported as a call target", e.Member)
}

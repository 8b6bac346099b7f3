package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/backend"
	"github.com/kestrel-lang/kestrelc/pkg/mangle"
	"github.com/kestrel-lang/kestrelc/pkg/token"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// lowerCall lowers a plain call expression: a bare
// identifier call, a namespace-qualified call ('a::b::f(...)'), or a method
// call ('obj.method(...)'), each resolving to one mangled symbol in c.Funcs.
func (c *Context) lowerCall(e ast.CallExpr) (value.Value, types.Type, error) {
	switch callee := e.Callee.(type) {
	case ast.IdentExpr:
		return c.lowerPlainCall(e.Pos.ID, callee.Name, e.Args)

	case ast.RootIdentExpr:
		// '::f(...)' forces lookup at the root namespace, bypassing the
		// enclosing-namespace prefix walk lowerPlainCall would otherwise do.
		return c.lowerQualifiedCall(e.Pos.ID, "", callee.Name, e.Args)

	case ast.ScopeExpr:
		path, ok := flattenScopePath(callee)
		if !ok {
			return nil, nil, c.errorf(e.Pos.ID, "unsupported call target")
		}
		qualified := token.Join(path[:len(path)-1])
		name := path[len(path)-1]
		return c.lowerQualifiedCall(e.Pos.ID, qualified, name, e.Args)

	case ast.MemberExpr:
		return c.lowerMethodCall(e.Pos.ID, callee, e.Args)

	default:
		return nil, nil, c.errorf(e.Pos.ID, "expression is not callable")
	}
}

func (c *Context) lowerPlainCall(node token.NodeID, name string, argExprs []ast.Expression) (value.Value, types.Type, error) {
	args, argTypes, err := c.lowerArgs(argExprs)
	if err != nil {
		return nil, nil, err
	}
	mangled, ret, params, variadic, ok := c.resolveFunctionCall(name, len(args))
	if !ok {
		if fn, ok := c.Funcs[name]; ok {
			// extern / nomangle function kept under its verbatim name.
			return c.emitCall(node, fn, args, argTypes, params, variadic, ret)
		}
		return nil, nil, c.errorf(node, "call to undefined function %q", name)
	}
	fn, ok := c.Funcs[mangled]
	if !ok {
		return nil, nil, c.errorf(node, "function %q declared but never lowered", name)
	}
	return c.emitCall(node, fn, args, argTypes, params, variadic, ret)
}

func (c *Context) lowerQualifiedCall(node token.NodeID, namespace, name string, argExprs []ast.Expression) (value.Value, types.Type, error) {
	args, argTypes, err := c.lowerArgs(argExprs)
	if err != nil {
		return nil, nil, err
	}
	for _, cand := range c.FuncIndex[name] {
		if cand.Namespace != namespace {
			continue
		}
		if cand.Arity == len(args) || (cand.Variadic && len(args) >= cand.Arity) {
			fn, ok := c.Funcs[cand.Mangled]
			if !ok {
				continue
			}
			ret, _ := c.Reg.FunctionReturnType.Get(cand.Mangled)
			params, _ := c.Reg.FunctionParamTypes.Get(cand.Mangled)
			return c.emitCall(node, fn, args, argTypes, params, cand.Variadic, ret)
		}
	}
	return nil, nil, c.errorf(node, "no function %q visible in namespace %q accepting %d argument(s)", name, namespace, len(args))
}

func (c *Context) lowerMethodCall(node token.NodeID, callee ast.MemberExpr, argExprs []ast.Expression) (value.Value, types.Type, error) {
	selfAddr, selfType, err := c.lowerLValue(callee.Base)
	if err != nil {
		var selfVal value.Value
		selfVal, selfType, err = c.LowerExpr(callee.Base)
		if err != nil {
			return nil, nil, err
		}
		selfAddr = selfVal
	} else if _, isPtr := types.Decay(selfType).(types.Pointer); isPtr {
		// selfAddr is the address of storage whose value is itself the
		// class pointer; load through once to reach the pointer value the
		// call's 'this' argument needs (mirrors lowerLValue's MemberExpr case).
		llvmT, lerr := c.lowerTypeAllowingClasses(selfType)
		if lerr != nil {
			return nil, nil, lerr
		}
		selfAddr = c.Block.NewLoad(llvmT, selfAddr)
	}

	var className string
	if ptr, ok := types.Decay(selfType).(types.Pointer); ok {
		if u, isUD := types.Decay(ptr.Pointee).(types.UserDefined); isUD {
			className = u.Name
		}
	}
	if className == "" {
		if u, isUD := types.Decay(selfType).(types.UserDefined); isUD {
			className = u.Name
		}
	}
	if className == "" {
		return nil, nil, c.errorf(node, "method call on non-class type %s", typeString(selfType))
	}

	args, argTypes, err := c.lowerArgs(argExprs)
	if err != nil {
		return nil, nil, err
	}

	mangled := mangle.Mangle(classFrames(className), callee.Member, 0, mangle.KindFunction, argTypes)
	fn, ok := c.Funcs[mangled]
	if !ok {
		return nil, nil, c.errorf(node, "class %q has no method %q accepting %d argument(s)", className, callee.Member, len(args))
	}
	params, _ := c.Reg.FunctionParamTypes.Get(mangled)
	ret, _ := c.Reg.FunctionReturnType.Get(mangled)

	fullArgs := append([]value.Value{selfAddr}, args...)
	fullTypes := append([]types.Type{types.Pointer{Pointee: types.UserDefined{Name: className}, Depth: 1}}, argTypes...)
	return c.emitCall(node, fn, fullArgs, fullTypes, params, false, ret)
}

func (c *Context) lowerTemplateCall(e ast.TemplateCallExpr) (value.Value, types.Type, error) {
	ident, ok := e.Callee.(ast.IdentExpr)
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "template-call target must be a plain function name")
	}
	typeArgs := make([]types.Type, len(e.TypeArgs))
	for i, ta := range e.TypeArgs {
		t, err := c.ResolveType(ta)
		if err != nil {
			return nil, nil, err
		}
		typeArgs[i] = t
	}

	mangled, ret, params, variadic, err := c.instantiateFunctionTemplate(e.Pos.ID, ident.Name, typeArgs)
	if err != nil {
		return nil, nil, err
	}
	fn, ok := c.Funcs[mangled]
	if !ok {
		return nil, nil, c.errorf(e.Pos.ID, "template instantiation of %q produced no function body", ident.Name)
	}
	args, argTypes, err := c.lowerArgs(e.Args)
	if err != nil {
		return nil, nil, err
	}
	return c.emitCall(e.Pos.ID, fn, args, argTypes, params, variadic, ret)
}

func (c *Context) lowerArgs(argExprs []ast.Expression) ([]value.Value, []types.Type, error) {
	args := make([]value.Value, len(argExprs))
	argTypes := make([]types.Type, len(argExprs))
	for i, a := range argExprs {
		v, t, err := c.LowerExpr(a)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
		argTypes[i] = t
	}
	return args, argTypes, nil
}

func (c *Context) emitCall(node token.NodeID, fn *ir.Func, args []value.Value, argTypes []types.Type, params []types.Type, variadic bool, ret types.Type) (value.Value, types.Type, error) {
	coerced := make([]value.Value, len(args))
	for i, a := range args {
		if i < len(params) {
			v, err := c.coerce(a, argTypes[i], params[i], node)
			if err != nil {
				return nil, nil, err
			}
			coerced[i] = v
		} else {
			coerced[i] = a
		}
	}
	call := c.Block.NewCall(fn, coerced...)
	if ret == nil || isVoid(ret) {
		return call, types.Builtin{Kind: types.Void}, nil
	}
	return call, ret, nil
}

// flattenScopePath collects the dotted identifier chain of a ScopeExpr
// ('a::b::c') into its component names, innermost last.
func flattenScopePath(e ast.ScopeExpr) ([]string, bool) {
	var segs []string
	var walk func(ex ast.Expression) bool
	walk = func(ex ast.Expression) bool {
		switch v := ex.(type) {
		case ast.IdentExpr:
			segs = append(segs, v.Name)
			return true
		case ast.RootIdentExpr:
			segs = append(segs, v.Name)
			return true
		case ast.ScopeExpr:
			if !walk(v.Base) {
				return false
			}
			segs = append(segs, v.Member)
			return true
		default:
			return false
		}
	}
	if !walk(e.Base) {
		return nil, false
	}
	segs = append(segs, e.Member)
	return segs, true
}

package codegen

import (
	"fmt"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/mangle"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/token"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// ResolveType turns a parsed, unresolved ast.TypeRef into a concrete
// types.Type, walking the namespace stack outward to find named types
// and lazily instantiating class templates on first use.
func (c *Context) ResolveType(tr ast.TypeRef) (types.Type, error) {
	switch t := tr.(type) {
	case ast.BuiltinTypeRef:
		k, ok := builtinKindByName(t.Name)
		if !ok {
			return nil, c.errorf(t.Pos.ID, "unrecognized builtin type %q", t.Name)
		}
		return types.Builtin{Kind: k}, nil

	case ast.NamedTypeRef:
		name := token.Join(t.Path)
		if rt, ok := c.Reg.ResolveTemplateParam(name); ok {
			return rt, nil
		}
		for _, prefix := range c.NS.Prefixes() {
			qualified := name
			if prefix != "" {
				qualified = prefix + "::" + name
			}
			if _, ok := c.Reg.Classes.Get(qualified); ok {
				return types.UserDefined{Name: qualified}, nil
			}
			if _, ok := c.Reg.Unions.Get(qualified); ok {
				return types.UserDefined{Name: qualified}, nil
			}
			if alias, ok := c.Reg.Aliases.Get(qualified); ok {
				return alias, nil
			}
		}
		return nil, c.errorf(t.Pos.ID, "undefined type %q", name)

	case ast.TemplateTypeRef:
		args := make([]types.Type, len(t.Args))
		for i, a := range t.Args {
			rt, err := c.ResolveType(a)
			if err != nil {
				return nil, err
			}
			args[i] = rt
		}
		return c.instantiateClassTemplate(t.Pos.ID, t.Base, args)

	case ast.ArrayTypeRef:
		elem, err := c.ResolveType(t.Element)
		if err != nil {
			return nil, err
		}
		return types.Array{Element: elem, Size: t.Size}, nil

	case ast.PointerTypeRef:
		pointee, err := c.ResolveType(t.Pointee)
		if err != nil {
			return nil, err
		}
		return types.Pointer{Pointee: pointee, Depth: t.Depth}, nil

	case ast.ReferenceTypeRef:
		referent, err := c.ResolveType(t.Referent)
		if err != nil {
			return nil, err
		}
		return types.Reference{Referent: referent}, nil

	default:
		return nil, fmt.Errorf("unrecognized type reference: %T", tr)
	}
}

// ResolveStorageType resolves a TypeRef the way ResolveType does, then
// normalizes a bare class name at the top level to a pointer-to-class
//. Explicit pointer/array/reference
// syntax around a class name is left exactly as written; the normalization
// only fires on the unadorned case, which is why it lives here rather than
// inside ResolveType itself (which recurses into those explicit forms and
// would otherwise double the indirection, e.g. 'Widget*' becoming a pointer
// to a pointer).
func (c *Context) ResolveStorageType(tr ast.TypeRef) (types.Type, error) {
	t, err := c.ResolveType(tr)
	if err != nil {
		return nil, err
	}
	if ud, ok := t.(types.UserDefined); ok {
		if _, isClass := c.Reg.Classes.Get(ud.Name); isClass {
			return types.Pointer{Pointee: ud, Depth: 1}, nil
		}
	}
	return t, nil
}

func builtinKindByName(name string) (types.Kind, bool) {
	switch name {
	case "void":
		return types.Void, true
	case "bool":
		return types.Bool, true
	case "i8":
		return types.I8, true
	case "u8":
		return types.U8, true
	case "i16":
		return types.I16, true
	case "u16":
		return types.U16, true
	case "i32":
		return types.I32, true
	case "u32":
		return types.U32, true
	case "i64":
		return types.I64, true
	case "u64":
		return types.U64, true
	case "f32":
		return types.F32, true
	case "f64":
		return types.F64, true
	case "char":
		return types.Char, true
	default:
		return 0, false
	}
}

// instantiateClassTemplate lazily monomorphizes a class template the first
// time it is applied to a concrete argument list, memoizing the result so
// repeated instantiation with identical (name, args, namespace) always
// yields the same mangled symbol.
func (c *Context) instantiateClassTemplate(node token.NodeID, base string, args []types.Type) (types.Type, error) {
	namespace := c.NS.Path()
	if t, ok := c.Reg.MemoizeInstantiation(base, namespace, args); ok {
		return t, nil
	}

	def, ok := c.Reg.LookupClassTemplate(base, len(args), namespace)
	if !ok {
		return nil, c.errorf(node, "no class template %q with %d type argument(s) visible here", base, len(args))
	}

	mangledName := mangle.MangleTemplateInstantiation(c.NS.Qualify(base), args)
	result := types.UserDefined{Name: mangledName}
	// Record the memoization entry before lowering the body so a template
	// that refers to itself (a node, a list) resolves without recursing.
	c.Reg.RecordInstantiation(base, namespace, args, result)

	c.Reg.PushTemplateArgs(def.TemplateParams, args)
	defer c.Reg.PopTemplateArgs()

	instantiated := def
	instantiated.Name = mangledName
	instantiated.TemplateParams = nil // already bound via the template-argument stack; don't re-register as a template
	if err := c.lowerClassDef(instantiated); err != nil {
		return nil, err
	}
	return result, nil
}

// instantiateFunctionTemplate mirrors instantiateClassTemplate for a
// function template applied at a TemplateCallExpr.
func (c *Context) instantiateFunctionTemplate(node token.NodeID, base string, args []types.Type) (string, types.Type, []types.Type, bool, error) {
	namespace := c.NS.Path()
	def, ok := c.Reg.LookupFunctionTemplate(base, len(args), namespace)
	if !ok {
		return "", nil, nil, false, c.errorf(node, "no function template %q with %d type argument(s) visible here", base, len(args))
	}

	mangledBase := mangle.Mangle(c.NS.Frames(), base, def.Decl.Access, mangle.KindFunction, nil)
	mangledName := mangle.MangleTemplateInstantiation(mangledBase, args)
	if fn, ok := c.Funcs[mangledName]; ok {
		ret, _ := c.Reg.FunctionReturnType.Get(mangledName)
		params, _ := c.Reg.FunctionParamTypes.Get(mangledName)
		return mangledName, ret, params, fn.Sig.Variadic, nil
	}

	c.Reg.PushTemplateArgs(def.Decl.TemplateParams, args)
	defer c.Reg.PopTemplateArgs()

	instantiated := def
	instantiated.Decl.Name = mangledName
	instantiated.Decl.TemplateParams = nil
	// Declare the instance under mangledName verbatim so the c.Funcs lookups
	// above and in lowerTemplateCall find it.
	instantiated.Decl.Attrs = append(ast.AttributeSet{"nomangle"}, def.Decl.Attrs...)
	// The caller is mid-way through its own body; lowering the instance
	// replaces the function-local cursor, so restore it afterwards.
	outer := *c
	err := c.lowerFuncDef(instantiated)
	c.Func, c.Block, c.Scopes, c.loops, c.counter = outer.Func, outer.Block, outer.Scopes, outer.loops, outer.counter
	c.ReturnSlot, c.ReturnType, c.ReturnBlock = outer.ReturnSlot, outer.ReturnType, outer.ReturnBlock
	if err != nil {
		return "", nil, nil, false, err
	}
	ret, _ := c.Reg.FunctionReturnType.Get(mangledName)
	params, _ := c.Reg.FunctionParamTypes.Get(mangledName)
	return mangledName, ret, params, false, nil
}

// classFrames rebuilds the NamespaceEntry chain for an already-qualified
// class name (e.g. "a::b::Widget"), used to re-derive a mangled destructor
// symbol for a variable whose static type we only know by qualified name.
func classFrames(qualifiedName string) []sema.NamespaceEntry {
	segs := token.Segments(qualifiedName)
	frames := make([]sema.NamespaceEntry, len(segs))
	for i, s := range segs {
		kind := sema.KindNamespace
		if i == len(segs)-1 {
			kind = sema.KindClass
		}
		frames[i] = sema.NamespaceEntry{Name: s, Kind: kind}
	}
	return frames
}

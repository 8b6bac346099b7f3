package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	llvmtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/mangle"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// LowerTranslationUnit lowers every top-level item of one parsed file
// into c.Target.Module, in source order. A class
// template or function template is registered for lazy instantiation rather
// than lowered directly.
func (c *Context) LowerTranslationUnit(tu ast.TranslationUnit) error {
	c.File = tu.File
	for _, item := range tu.Items {
		if err := c.lowerTopLevel(item); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) lowerTopLevel(item ast.TopLevel) error {
	switch t := item.(type) {
	case ast.FuncDecl:
		_, _, _, err := c.ensureFuncDeclared(t)
		return err

	case ast.FuncDef:
		if len(t.Decl.TemplateParams) > 0 {
			c.Reg.RegisterFunctionTemplate(t.Decl.Name, c.NS.Path(), t)
			return nil
		}
		return c.lowerFuncDef(t)

	case ast.ClassDecl:
		// Forward declaration only; the matching ClassDef carries the
		// members/constructors/destructor this package actually lowers.
		return nil

	case ast.ClassDef:
		if len(t.TemplateParams) > 0 {
			c.Reg.RegisterClassTemplate(t.Name, c.NS.Path(), t)
			return nil
		}
		qualified := t
		qualified.Name = c.NS.Qualify(t.Name)
		return c.lowerClassDef(qualified)

	case ast.UnionDef:
		return c.lowerUnionDef(t)

	case ast.TypedefDecl:
		return c.lowerTypedef(t)

	case ast.ImportDecl:
		// This package only ever lowers one translation unit at a time
		//; there is no separate module graph to thread an import
		// into here, so the declaration is a no-op.
		return nil

	case ast.NamespaceDecl:
		return c.lowerNamespace(t)

	default:
		return fmt.Errorf("unrecognized top-level item: %T", item)
	}
}

func (c *Context) lowerNamespace(decl ast.NamespaceDecl) error {
	c.NS.Push(decl.Name, sema.KindNamespace)
	defer c.NS.Pop()
	for _, item := range decl.Items {
		if err := c.lowerTopLevel(item); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) lowerTypedef(decl ast.TypedefDecl) error {
	t, err := c.ResolveType(decl.Target)
	if err != nil {
		return err
	}
	c.Reg.Aliases.Set(c.NS.Qualify(decl.Name), t)
	return nil
}

// lowerUnionDef computes a tagged union's layout but
// emits no code of its own: nothing in this implementation constructs or
// matches a union value except through the ordinary expression/match-
// statement lowering already in expr.go/stmt.go, so a union-def is a pure
// registry entry.
func (c *Context) lowerUnionDef(def ast.UnionDef) error {
	qualifiedName := c.NS.Qualify(def.Name)
	union := sema.UnionType{Name: qualifiedName, TemplateParams: def.TemplateParams, TagField: "tag"}

	var maxSize uint64
	for _, v := range def.Variants {
		vt, err := c.ResolveType(v.Type)
		if err != nil {
			return err
		}
		union.Variants = append(union.Variants, sema.UnionVariant{Tag: v.Tag, Type: vt})

		llvmT, err := c.lowerTypeAllowingClasses(vt)
		if err != nil {
			return err
		}
		if sz := byteSizeOf(llvmT); sz > maxSize {
			maxSize = sz
		}
	}
	union.MaxSize = maxSize
	union.Align = 8 // simplified: every variant is assumed naturally aligned to a machine word

	c.Reg.Unions.Set(qualifiedName, union)
	return nil
}

// resolveParams resolves and lowers an ordered parameter list once, reused
// by plain functions, methods, and constructors.
func (c *Context) resolveParams(params []ast.Param) ([]types.Type, []*ir.Param, error) {
	paramTypes := make([]types.Type, len(params))
	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		t, err := c.ResolveStorageType(p.Type)
		if err != nil {
			return nil, nil, err
		}
		lt, err := c.lowerTypeAllowingClasses(t)
		if err != nil {
			return nil, nil, err
		}
		paramTypes[i] = t
		irParams[i] = ir.NewParam(p.Name, lt)
	}
	return paramTypes, irParams, nil
}

func (c *Context) funcReturnType(tr ast.TypeRef) (types.Type, error) {
	if tr == nil {
		return types.Builtin{Kind: types.Void}, nil
	}
	return c.ResolveStorageType(tr)
}

// ensureFuncDeclared declares (but does not lower the body of) a plain
// function, registering its signature the first time it is seen so a
// forward FuncDecl and its later FuncDef agree on one mangled symbol
//. An extern function or one tagged 'nomangle' keeps its source
// name verbatim.
func (c *Context) ensureFuncDeclared(decl ast.FuncDecl) (mangled string, paramTypes []types.Type, retType types.Type, err error) {
	paramTypes, irParams, err := c.resolveParams(decl.Params)
	if err != nil {
		return "", nil, nil, err
	}
	retType, err = c.funcReturnType(decl.Return)
	if err != nil {
		return "", nil, nil, err
	}
	llvmRet, err := c.lowerTypeAllowingClasses(retType)
	if err != nil {
		return "", nil, nil, err
	}

	isEntrypoint := decl.Name == "main" && len(c.NS.Frames()) == 0
	if decl.Extern || decl.Attrs.Has("nomangle") || isEntrypoint {
		// the language's worked examples expect the object file to define the
		// literal symbol 'main' and the JIT to look it up by that name, so
		// the global entrypoint keeps its source name the same way an
		// extern/nomangle declaration does.
		mangled = mangle.External(decl.Name)
	} else {
		mangled = mangle.Mangle(c.NS.Frames(), decl.Name, decl.Access, mangle.KindFunction, paramTypes)
	}

	if _, exists := c.Funcs[mangled]; exists {
		return mangled, paramTypes, retType, nil
	}

	fn := c.Target.Module.NewFunc(mangled, llvmRet, irParams...)
	fn.Sig.Variadic = decl.Variadic
	c.Funcs[mangled] = fn
	if rerr := c.Reg.RegisterFunction(mangled, retType, paramTypes, decl.Variadic); rerr != nil {
		return "", nil, nil, c.errorf(decl.Pos.ID, "%v", rerr)
	}
	c.registerFuncIndex(decl.Name, c.NS.Path(), mangled, len(decl.Params), decl.Variadic)
	return mangled, paramTypes, retType, nil
}

func (c *Context) lowerFuncDef(def ast.FuncDef) error {
	mangled, paramTypes, retType, err := c.ensureFuncDeclared(def.Decl)
	if err != nil {
		return err
	}
	fn := c.Funcs[mangled]
	return c.lowerFunctionBody(fn, def.Decl.Params, paramTypes, retType, def.Body, nil)
}

// lowerFunctionBody is the shared core of function/method/constructor/
// destructor lowering: it opens the entry block, hoists the return slot and
// parameter storage into it,
// runs an optional prelude (constructors use this to self-allocate and bind
// 'this' before the user-written body runs, ), then lowers the
// body and closes with a single shared return block every 'return'
// statement's destructor chain branches into.
//
// A parameter literally named "this" (the synthesized receiver methods and
// destructors bind here, or the self pointer a constructor's prelude binds
// instead) is excluded from destructor draining — see sema.Variable.NoDestruct.
func (c *Context) lowerFunctionBody(fn *ir.Func, params []ast.Param, paramTypes []types.Type, retType types.Type, body ast.CompoundStmt, prelude func() error) error {
	entry := fn.NewBlock("entry")
	c.Func = fn
	c.Block = entry
	c.counter = 0
	c.loops = nil
	c.Scopes = sema.ScopeStack{}
	c.Scopes.Push("params")

	var retSlot *ir.InstAlloca
	if !isVoid(retType) {
		llvmRet, err := c.lowerTypeAllowingClasses(retType)
		if err != nil {
			return err
		}
		retSlot = entry.NewAlloca(llvmRet)
		retSlot.SetName("retval")
		entry.NewStore(zeroOf(llvmRet), retSlot)
	}
	c.ReturnSlot = retSlot
	c.ReturnType = retType

	for i, p := range params {
		llvmT, err := c.lowerTypeAllowingClasses(paramTypes[i])
		if err != nil {
			return err
		}
		slot := entry.NewAlloca(llvmT)
		slot.SetName(p.Name + ".addr")
		entry.NewStore(fn.Params[i], slot)
		bt, _ := types.Decay(paramTypes[i]).(types.Builtin)
		c.Scopes.Insert(sema.Variable{
			Name:       p.Name,
			Type:       paramTypes[i],
			Mutable:    true,
			Signed:     bt.Kind.IsSigned(),
			Handle:     value.Value(slot),
			NoDestruct: p.Name == "this",
		})
	}

	returnBlk := c.newBlock("return")
	c.ReturnBlock = returnBlk

	if prelude != nil {
		if err := prelude(); err != nil {
			return err
		}
	}

	bodyBlk := c.newBlock("body")
	c.branchTo(c.Block, bodyBlk)
	c.Block = bodyBlk

	if err := c.LowerStmt(body); err != nil {
		return err
	}
	c.branchTo(c.Block, returnBlk)

	c.Block = returnBlk
	if retSlot != nil {
		returnBlk.NewRet(returnBlk.NewLoad(retSlot.ElemType, retSlot))
	} else {
		returnBlk.NewRet(nil)
	}

	c.Scopes.Pop()
	return nil
}

// lowerClassDef lowers a non-template class definition: the member layout,
// every constructor (synthesizing a trivial no-arg one if none is
// declared), every method, and the destructor (synthesizing an empty one if
// none is declared) — mirroring per-class lowering in
// pkg/jack/lowering.go, generalized from Jack's single implicit constructor
// to this language's overloaded constructor list.
func (c *Context) lowerClassDef(def ast.ClassDef) error {
	class := sema.ClassType{Name: def.Name, TemplateParams: def.TemplateParams}
	var names []string
	var fieldTypes []types.Type
	for _, f := range def.Fields {
		ft, err := c.ResolveStorageType(f.Type)
		if err != nil {
			return err
		}
		class.Members = append(class.Members, sema.ClassMember{Name: f.Name, Type: ft, Access: f.Access, Static: f.Static})
		if !f.Static {
			names = append(names, f.Name)
			fieldTypes = append(fieldTypes, ft)
		}
	}

	st, err := c.lowerClassFields(fieldTypes)
	if err != nil {
		return err
	}
	c.StructTypes[def.Name] = st
	c.Reg.Classes.Set(def.Name, class)

	ctors := def.Ctors
	if len(ctors) == 0 {
		ctors = []ast.FuncDef{c.synthesizeDefaultConstructor(def)}
	}
	for _, ctor := range ctors {
		if err := c.lowerConstructor(def.Name, ctor); err != nil {
			return err
		}
	}

	for _, m := range def.Methods {
		if err := c.lowerMethod(def.Name, m); err != nil {
			return err
		}
	}

	dtor := def.Dtor
	if dtor == nil {
		synthesized := c.synthesizeDefaultDestructor(def)
		dtor = &synthesized
	}
	if err := c.lowerDestructor(def.Name, *dtor); err != nil {
		return err
	}

	class.Constructors = ctors
	class.Destructor = dtor
	c.Reg.Classes.Set(def.Name, class)
	return nil
}

// lowerClassFields mirrors backend.LowerFields's shape but goes through
// c.lowerTypeAllowingClasses per field instead of backend.LowerType, since
// a field referring to another class (always as a pointer, per the
// self-allocating constructor convention ResolveStorageType establishes)
// would otherwise hit LowerType's deliberate
// refusal to resolve types.UserDefined on its own.
func (c *Context) lowerClassFields(fieldTypes []types.Type) (*llvmtypes.StructType, error) {
	fields := make([]llvmtypes.Type, len(fieldTypes))
	for i, ft := range fieldTypes {
		lt, err := c.lowerTypeAllowingClasses(ft)
		if err != nil {
			return nil, err
		}
		fields[i] = lt
	}
	return llvmtypes.NewStruct(fields...), nil
}

// lowerConstructor lowers one overload of a class's constructor list. It
// never receives a pre-allocated 'this': the prelude malloc's storage sized
// for the class's lowered layout, bit-casts it to a pointer of that struct
// type, stores it as the function's implicit return value up front, and
// binds it as the 'this' local the constructor body (including any
// compiler-synthesized MemberInitStmt assignments) runs against — mirroring
// Jack constructors, which call Memory.alloc themselves
// rather than being handed storage (pkg/jack/lowering.go HandleSubroutineDec
// constructor case).
func (c *Context) lowerConstructor(className string, def ast.FuncDef) error {
	paramTypes, irParams, err := c.resolveParams(def.Decl.Params)
	if err != nil {
		return err
	}
	retType := types.Pointer{Pointee: types.UserDefined{Name: className}, Depth: 1}
	llvmRet, err := c.lowerTypeAllowingClasses(retType)
	if err != nil {
		return err
	}
	// Constructors/methods/destructors always mangle under AccessDefault
	// (matching the access-agnostic resolution call.go/expr.go already use
	// at the call site, where the declared access isn't known) rather than
	// the constructor's own declared access; see DESIGN.md.
	mangled := mangle.Mangle(classFrames(className), "", ast.AccessDefault, mangle.KindConstructor, paramTypes)

	fn, exists := c.Funcs[mangled]
	if !exists {
		fn = c.Target.Module.NewFunc(mangled, llvmRet, irParams...)
		c.Funcs[mangled] = fn
		if rerr := c.Reg.RegisterFunction(mangled, retType, paramTypes, false); rerr != nil {
			return c.errorf(def.Pos.ID, "%v", rerr)
		}
	}

	st, ok := c.StructTypes[className]
	if !ok {
		return c.errorf(def.Pos.ID, "class %q has no lowered layout yet", className)
	}

	return c.lowerFunctionBody(fn, def.Decl.Params, paramTypes, retType, def.Body, func() error {
		mallocFn := c.ensureMalloc()
		size := constant.NewInt(llvmtypes.I64, int64(byteSizeOf(st)))
		raw := c.Block.NewCall(mallocFn, size)
		self := c.Block.NewBitCast(raw, llvmtypes.NewPointer(st))
		c.Block.NewStore(self, c.ReturnSlot)

		selfSlot := c.Func.Blocks[0].NewAlloca(llvmtypes.NewPointer(st))
		selfSlot.SetName("this")
		c.Block.NewStore(self, selfSlot)
		c.Scopes.Insert(sema.Variable{
			Name: "this", Type: retType, Mutable: false,
			Handle: value.Value(selfSlot), NoDestruct: true,
		})
		return nil
	})
}

// lowerMethod lowers one method, prepending a synthesized 'this' parameter
// (a real IR parameter here, unlike a constructor's self-allocated one)
// ahead of the declared parameter list.
func (c *Context) lowerMethod(className string, def ast.FuncDef) error {
	selfType := types.Pointer{Pointee: types.UserDefined{Name: className}, Depth: 1}
	paramTypes, irParams, err := c.resolveParams(def.Decl.Params)
	if err != nil {
		return err
	}

	llvmSelf, err := c.lowerTypeAllowingClasses(selfType)
	if err != nil {
		return err
	}
	selfParam := ir.NewParam("this", llvmSelf)
	allIRParams := append([]*ir.Param{selfParam}, irParams...)
	allParamTypes := append([]types.Type{selfType}, paramTypes...)
	allParams := append([]ast.Param{{Name: "this"}}, def.Decl.Params...)

	retType, err := c.funcReturnType(def.Decl.Return)
	if err != nil {
		return err
	}
	llvmRet, err := c.lowerTypeAllowingClasses(retType)
	if err != nil {
		return err
	}

	mangled := mangle.Mangle(classFrames(className), def.Decl.Name, ast.AccessDefault, mangle.KindFunction, paramTypes)
	fn, exists := c.Funcs[mangled]
	if !exists {
		fn = c.Target.Module.NewFunc(mangled, llvmRet, allIRParams...)
		c.Funcs[mangled] = fn
		// Registered with 'this' included as params[0] so call.go's
		// lowerMethodCall (which prepends the receiver to its argument list
		// the same way) can coerce argument i against params[i] positionally.
		if rerr := c.Reg.RegisterFunction(mangled, retType, allParamTypes, false); rerr != nil {
			return c.errorf(def.Pos.ID, "%v", rerr)
		}
	}
	return c.lowerFunctionBody(fn, allParams, allParamTypes, retType, def.Body, nil)
}

// lowerDestructor lowers a class's (possibly synthesized empty) destructor.
// It always takes exactly one parameter, 'this', and returns void.
func (c *Context) lowerDestructor(className string, def ast.FuncDef) error {
	selfType := types.Pointer{Pointee: types.UserDefined{Name: className}, Depth: 1}
	llvmSelf, err := c.lowerTypeAllowingClasses(selfType)
	if err != nil {
		return err
	}
	mangled := mangle.Mangle(classFrames(className), "", ast.AccessDefault, mangle.KindDestructor, nil)

	fn, exists := c.Funcs[mangled]
	if !exists {
		fn = c.Target.Module.NewFunc(mangled, llvmtypes.Void, ir.NewParam("this", llvmSelf))
		c.Funcs[mangled] = fn
	}

	params := []ast.Param{{Name: "this"}}
	paramTypes := []types.Type{selfType}
	return c.lowerFunctionBody(fn, params, paramTypes, types.Builtin{Kind: types.Void}, def.Body, nil)
}

// synthesizeDefaultConstructor/synthesizeDefaultDestructor stand in for a
// class that declares no constructor or no destructor at all: a trivial,
// empty-bodied no-arg member. Field-level destructor cascading beyond the
// class's own body is not attempted.
func (c *Context) synthesizeDefaultConstructor(def ast.ClassDef) ast.FuncDef {
	return ast.FuncDef{
		Pos:  def.Pos,
		Decl: ast.FuncDecl{Pos: def.Pos, Name: "new", Access: ast.AccessPublic},
		Body: ast.CompoundStmt{Pos: def.Pos},
	}
}

func (c *Context) synthesizeDefaultDestructor(def ast.ClassDef) ast.FuncDef {
	return ast.FuncDef{
		Pos:  def.Pos,
		Decl: ast.FuncDecl{Pos: def.Pos, Name: "delete", Access: ast.AccessPublic},
		Body: ast.CompoundStmt{Pos: def.Pos},
	}
}

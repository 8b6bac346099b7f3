package sema

import (
	"fmt"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/types"
	"github.com/kestrel-lang/kestrelc/pkg/utils"
)

// ClassMember is one entry of ClassType.Members.
type ClassMember struct {
	Name   string
	Type   types.Type
	Access ast.Access
	Static bool
}

// ClassType is a class definition: an ordered list of members (each with
// accessibility), an optional constructor list, an optional destructor, and
// template parameters.
type ClassType struct {
	Name           string
	Members        []ClassMember
	Constructors   []ast.FuncDef
	Destructor     *ast.FuncDef
	TemplateParams []string
}

// FieldIndex returns the storage index of a named field, used by member
// access lowering to emit a GEP-like address computation.
func (c ClassType) FieldIndex(name string) (int, bool) {
	idx := 0
	for _, m := range c.Members {
		if m.Static {
			continue
		}
		if m.Name == name {
			return idx, true
		}
		idx++
	}
	return 0, false
}

// UnionVariant is one (tag, type) arm of a tagged union.
type UnionVariant struct {
	Tag  string
	Type types.Type
}

// UnionType is a tagged union, plus the tag-discriminant layout computed
// at union-def lowering time.
type UnionType struct {
	Name           string
	Variants       []UnionVariant
	TemplateParams []string
	TagField       string // reserved discriminant field name
	MaxSize        uint64 // byte size of the largest variant payload
	Align          uint64
}

// templateKey uniquely identifies a function/class template or a memoized
// instantiation by (name, arity-or-args, namespace path).
type templateKey struct {
	name      string
	arity     int
	namespace string
}

// instantiationKey additionally folds in the concrete type arguments, used
// by CreatedClassTemplates to memoize instantiation.
type instantiationKey struct {
	name      string
	args      string // types.Type.Key() of each arg, joined
	namespace string
}

// Registries holds every process-lifetime-per-translation-unit table the
// code generator consults: function signatures, classes, unions, aliases,
// templates and their memoized instantiations.
//
// Grounded on jack.Lowerer.program (an OrderedMap of classes), generalized to
// the full registry set a class/union/alias/template system needs; the
// reference implementation has no templates, unions or aliases so those
// tables are modeled fresh.
type Registries struct {
	FunctionReturnType utils.OrderedMap[string, types.Type]
	FunctionParamTypes utils.OrderedMap[string, []types.Type]
	FunctionVariadic   map[string]bool

	Classes utils.OrderedMap[string, ClassType]
	Unions  utils.OrderedMap[string, UnionType]
	Aliases utils.OrderedMap[string, types.Type]

	FunctionTemplates   map[templateKey]ast.FuncDef
	ClassTemplates      map[templateKey]ast.ClassDef
	CreatedClassTemplates map[instantiationKey]types.Type

	TemplateArgStack []map[string]types.Type
}

// NewRegistries returns an empty, ready-to-use Registries set for one
// translation unit's codegen pass.
func NewRegistries() *Registries {
	return &Registries{
		FunctionReturnType:    utils.NewOrderedMap[string, types.Type](),
		FunctionParamTypes:    utils.NewOrderedMap[string, []types.Type](),
		FunctionVariadic:      map[string]bool{},
		Classes:               utils.NewOrderedMap[string, ClassType](),
		Unions:                utils.NewOrderedMap[string, UnionType](),
		Aliases:               utils.NewOrderedMap[string, types.Type](),
		FunctionTemplates:     map[templateKey]ast.FuncDef{},
		ClassTemplates:        map[templateKey]ast.ClassDef{},
		CreatedClassTemplates: map[instantiationKey]types.Type{},
	}
}

// RegisterFunction records a function's signature, erroring on a duplicate
// mangled name.
func (r *Registries) RegisterFunction(mangled string, ret types.Type, params []types.Type, variadic bool) error {
	if _, exists := r.FunctionReturnType.Get(mangled); exists {
		return fmt.Errorf("function %q already registered with a different signature", mangled)
	}
	r.FunctionReturnType.Set(mangled, ret)
	r.FunctionParamTypes.Set(mangled, params)
	r.FunctionVariadic[mangled] = variadic
	return nil
}

// PushTemplateArgs binds template parameter names to concrete types for the
// duration of one instantiation.
func (r *Registries) PushTemplateArgs(params []string, args []types.Type) {
	scope := map[string]types.Type{}
	for i, p := range params {
		if i < len(args) {
			scope[p] = args[i]
		}
	}
	r.TemplateArgStack = append(r.TemplateArgStack, scope)
}

// PopTemplateArgs discards the innermost template-argument scope.
func (r *Registries) PopTemplateArgs() {
	if len(r.TemplateArgStack) > 0 {
		r.TemplateArgStack = r.TemplateArgStack[:len(r.TemplateArgStack)-1]
	}
}

// ResolveTemplateParam looks up a template parameter name against the
// innermost-to-outermost template-argument scopes currently pushed.
func (r *Registries) ResolveTemplateParam(name string) (types.Type, bool) {
	for i := len(r.TemplateArgStack) - 1; i >= 0; i-- {
		if t, ok := r.TemplateArgStack[i][name]; ok {
			return t, true
		}
	}
	return nil, false
}

// RegisterFunctionTemplate records a function-template AST fragment keyed by
// (name, arity, namespace), arity being the number of template parameters;
// the registry owns the AST by value.
func (r *Registries) RegisterFunctionTemplate(name string, namespace string, def ast.FuncDef) {
	key := templateKey{name: name, arity: len(def.Decl.TemplateParams), namespace: namespace}
	r.FunctionTemplates[key] = def
}

// LookupFunctionTemplate finds a previously registered function template.
func (r *Registries) LookupFunctionTemplate(name string, arity int, namespace string) (ast.FuncDef, bool) {
	def, ok := r.FunctionTemplates[templateKey{name: name, arity: arity, namespace: namespace}]
	return def, ok
}

// RegisterClassTemplate records a class-template AST fragment.
func (r *Registries) RegisterClassTemplate(name string, namespace string, def ast.ClassDef) {
	key := templateKey{name: name, arity: len(def.TemplateParams), namespace: namespace}
	r.ClassTemplates[key] = def
}

// LookupClassTemplate finds a previously registered class template.
func (r *Registries) LookupClassTemplate(name string, arity int, namespace string) (ast.ClassDef, bool) {
	def, ok := r.ClassTemplates[templateKey{name: name, arity: arity, namespace: namespace}]
	return def, ok
}

// MemoizeInstantiation recalls the concrete Type that RecordInstantiation
// stored for instantiating a class template over 'args', so identical
// (name, args, namespace) tuples always produce the same mangled symbol.
func (r *Registries) MemoizeInstantiation(name, namespace string, args []types.Type) (types.Type, bool) {
	key := instantiationKey{name: name, namespace: namespace, args: argsKey(args)}
	t, ok := r.CreatedClassTemplates[key]
	return t, ok
}

// RecordInstantiation stores a fresh memoization entry for (name, args, namespace).
func (r *Registries) RecordInstantiation(name, namespace string, args []types.Type, result types.Type) {
	key := instantiationKey{name: name, namespace: namespace, args: argsKey(args)}
	r.CreatedClassTemplates[key] = result
}

func argsKey(args []types.Type) string {
	key := ""
	for i, a := range args {
		if i > 0 {
			key += ","
		}
		key += a.Key()
	}
	return key
}

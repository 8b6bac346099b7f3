// Package sema implements the lexically scoped symbol table, the
// namespace-hierarchy stack, and the registries owned by the
// code-generation context (classes, unions, aliases, templates).
//
// Generalized from Jack's ScopeTable and its four fixed segment kinds
// (local/field/static/parameter) to this language's lexically nested block
// scopes plus a namespace/class stack, built on pkg/utils.Stack/OrderedMap
// for the underlying containers.
package sema

import (
	"fmt"

	"github.com/kestrel-lang/kestrelc/pkg/types"
	"github.com/kestrel-lang/kestrelc/pkg/utils"
)

// Variable is the compile-time record of a binding: its back-end allocation
// handle, language-level type, mutability, and signedness tag. Handle is
// opaque here (any) to keep pkg/sema independent of pkg/backend; pkg/codegen
// is the only reader that type-asserts it back.
type Variable struct {
	Name    string
	Type    types.Type
	Mutable bool
	Signed  bool
	Handle  any

	// NoDestruct excludes this binding from end-of-scope destructor draining.
	// It is set on every binding named 'this': the self pointer a constructor
	// binds to the object it just allocated (draining it when the
	// constructor's own body scope closes would destroy the object before it
	// is ever handed back to the caller), and the receiver a method or
	// destructor is called on, which the caller owns.
	NoDestruct bool
}

// SymbolTable maps identifier -> owned Variable.
// It supports insert, insert-or-overwrite (shadowing) and lookup; iteration
// preserves insertion order via the underlying OrderedMap.
type SymbolTable struct {
	entries utils.OrderedMap[string, Variable]
}

// NewSymbolTable returns an empty, ready-to-use SymbolTable.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{entries: utils.NewOrderedMap[string, Variable]()}
}

// Insert adds 'v' under its own Name, shadowing any prior entry with the
// same name.
func (st *SymbolTable) Insert(v Variable) { st.entries.Set(v.Name, v) }

// Lookup finds a variable by name in this table only (no parent chasing;
// callers compose scopes with Merge for that).
func (st *SymbolTable) Lookup(name string) (Variable, bool) { return st.entries.Get(name) }

// Entries returns the declared variables in declaration order, used by
// destructor scheduling to walk them in reverse.
func (st *SymbolTable) Entries() []Variable { return st.entries.Entries() }

// Merge composes parent ⊕ child into a fresh table where child shadows
// parent on name collision.
func Merge(parent, child *SymbolTable) *SymbolTable {
	merged := NewSymbolTable()
	for _, v := range parent.Entries() {
		merged.Insert(v)
	}
	for _, v := range child.Entries() {
		merged.Insert(v)
	}
	return merged
}

// NamespaceKind distinguishes a plain namespace entry from a class pushed
// as a namespace of kind 'class' for method resolution.
type NamespaceKind int

const (
	KindNamespace NamespaceKind = iota
	KindClass
)

// NamespaceEntry is one frame of the NamespaceStack.
type NamespaceEntry struct {
	Name string
	Kind NamespaceKind
}

// NamespaceStack is the ordered sequence of namespace/class frames used
// both for resolution and mangling, built on pkg/utils.Stack the same way
// ScopeStack layers SymbolTables over it.
type NamespaceStack struct{ frames utils.Stack[NamespaceEntry] }

// Push appends a new frame.
func (ns *NamespaceStack) Push(name string, kind NamespaceKind) {
	ns.frames.Push(NamespaceEntry{Name: name, Kind: kind})
}

// Pop removes the innermost frame.
func (ns *NamespaceStack) Pop() {
	ns.frames.Pop()
}

// Frames returns the current stack, outermost first.
func (ns *NamespaceStack) Frames() []NamespaceEntry {
	return ns.frames.Slice()
}

// Path renders the current namespace stack as "a::b::c", the qualified
// prefix under which lookups and mangling operate.
func (ns *NamespaceStack) Path() string {
	path := ""
	for i, f := range ns.Frames() {
		if i > 0 {
			path += "::"
		}
		path += f.Name
	}
	return path
}

// Qualify prefixes 'name' with the current namespace path.
func (ns *NamespaceStack) Qualify(name string) string {
	if ns.frames.Count() == 0 {
		return name
	}
	return fmt.Sprintf("%s::%s", ns.Path(), name)
}

// Prefixes returns every prefix of the current namespace path from
// innermost to outermost (including the empty/root prefix last), for
// `a::b::c` resolution: walks the namespace stack from innermost outward,
// trying each prefix.
func (ns *NamespaceStack) Prefixes() []string {
	all := ns.Frames()
	prefixes := make([]string, 0, len(all)+1)
	for i := len(all); i >= 0; i-- {
		path := ""
		for j := 0; j < i; j++ {
			if j > 0 {
				path += "::"
			}
			path += all[j].Name
		}
		prefixes = append(prefixes, path)
	}
	return prefixes
}

// InClass reports whether the innermost frame is a class scope, and if so
// returns its name — used to resolve unqualified method/field access and to
// look up 'this'.
func (ns *NamespaceStack) InClass() (string, bool) {
	top, err := ns.frames.Top()
	if err != nil {
		return "", false
	}
	return top.Name, top.Kind == KindClass
}

package sema

import "github.com/kestrel-lang/kestrelc/pkg/utils"

// scopeFrame is one nested lexical scope: its SymbolTable plus the
// diagnostic/scope-path label it was opened under.
type scopeFrame struct {
	name  string
	table *SymbolTable
}

// ScopeStack is the runtime stack of lexically nested SymbolTables a
// function body lowers through: one per CompoundStmt. Lookup scans from
// innermost to outermost, which is observationally equivalent to repeatedly
// merge(parent, local) without reallocating a merged table on every nested
// block. Built on pkg/utils.Stack the same way the reference implementation's
// ScopeTable layers its local/field/static/parameter segments over it.
type ScopeStack struct {
	frames utils.Stack[scopeFrame]
}

// Push opens a new nested scope, named for diagnostics/scope-path purposes.
func (ss *ScopeStack) Push(name string) *SymbolTable {
	table := NewSymbolTable()
	ss.frames.Push(scopeFrame{name: name, table: table})
	return table
}

// Pop closes the innermost scope and returns its SymbolTable so the caller
// (pkg/codegen) can read its Entries() for destructor scheduling
// before discarding it.
func (ss *ScopeStack) Pop() *SymbolTable {
	frame, err := ss.frames.Pop()
	if err != nil {
		return NewSymbolTable()
	}
	return frame.table
}

// Insert declares 'v' in the innermost open scope.
func (ss *ScopeStack) Insert(v Variable) {
	if ss.frames.Count() == 0 {
		ss.Push("")
	}
	top, _ := ss.frames.Top()
	top.table.Insert(v)
}

// Resolve looks up 'name' starting from the innermost scope outward,
// implementing the parent⊕local merge/shadowing rule without rebuilding a
// merged table.
func (ss *ScopeStack) Resolve(name string) (Variable, bool) {
	found := Variable{}
	ok := false
	ss.frames.Iterator()(func(frame scopeFrame) bool {
		if v, hit := frame.table.Lookup(name); hit {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// Depth reports how many nested scopes are currently open.
func (ss *ScopeStack) Depth() int { return ss.frames.Count() }

// EntriesFrom returns the declared locals of every open scope from the
// given depth (inclusive) to the innermost, ordered outermost-scope-first
// then declaration order within each scope — the order break/continue
// destructor draining needs when unwinding up to a loop's body scope.
// frames.Slice() already returns bottom-to-top (declaration) order, so this
// is a plain sub-slice rather than a second reversal.
func (ss *ScopeStack) EntriesFrom(depth int) []Variable {
	var out []Variable
	for _, frame := range ss.frames.Slice()[depth:] {
		out = append(out, frame.table.Entries()...)
	}
	return out
}

package sema_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

func TestScopeStackShadowsInnerOverOuter(t *testing.T) {
	var ss sema.ScopeStack
	ss.Push("outer")
	ss.Insert(sema.Variable{Name: "x", Type: types.Builtin{Kind: types.I32}})

	ss.Push("inner")
	ss.Insert(sema.Variable{Name: "x", Type: types.Builtin{Kind: types.F64}})

	v, ok := ss.Resolve("x")
	if !ok {
		t.Fatalf("expected to resolve 'x'")
	}
	if _, isFloat := v.Type.(types.Builtin); !isFloat || v.Type.(types.Builtin).Kind != types.F64 {
		t.Errorf("expected the inner scope's 'x' to shadow the outer, got %v", v.Type)
	}

	ss.Pop()
	v, ok = ss.Resolve("x")
	if !ok || v.Type.(types.Builtin).Kind != types.I32 {
		t.Errorf("expected the outer 'x' to be visible again after popping the inner scope, got %v", v.Type)
	}
}

func TestScopeStackResolveMissing(t *testing.T) {
	var ss sema.ScopeStack
	ss.Push("root")
	if _, ok := ss.Resolve("nowhere"); ok {
		t.Errorf("did not expect to resolve an undeclared name")
	}
}

func TestScopeStackDepthAndEntriesFrom(t *testing.T) {
	var ss sema.ScopeStack
	ss.Push("a")
	ss.Insert(sema.Variable{Name: "a1", Type: types.Builtin{Kind: types.I32}})
	depth := ss.Depth()

	ss.Push("b")
	ss.Insert(sema.Variable{Name: "b1", Type: types.Builtin{Kind: types.I32}})
	ss.Push("c")
	ss.Insert(sema.Variable{Name: "c1", Type: types.Builtin{Kind: types.I32}})

	entries := ss.EntriesFrom(depth)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries from depth %d, got %d", depth, len(entries))
	}
	if entries[0].Name != "b1" || entries[1].Name != "c1" {
		t.Errorf("expected outermost-scope-first order [b1, c1], got [%s, %s]", entries[0].Name, entries[1].Name)
	}
}

func TestScopeStackPopEmptyIsSafe(t *testing.T) {
	var ss sema.ScopeStack
	table := ss.Pop() // popping an empty stack must not panic
	if table == nil {
		t.Errorf("expected Pop() on an empty stack to return a usable empty table")
	}
}

func TestEntriesFromKeepsNoDestructBindings(t *testing.T) {
	var ss sema.ScopeStack
	ss.Push("ctor")
	ss.Insert(sema.Variable{Name: "this", Type: types.Pointer{Pointee: types.UserDefined{Name: "Box"}, Depth: 1}, NoDestruct: true})
	ss.Insert(sema.Variable{Name: "local", Type: types.Builtin{Kind: types.I32}})

	entries := ss.EntriesFrom(0)
	var sawThis, sawLocal bool
	for _, e := range entries {
		if e.Name == "this" {
			sawThis = true
			if !e.NoDestruct {
				t.Errorf("expected 'this' to carry NoDestruct")
			}
		}
		if e.Name == "local" {
			sawLocal = true
		}
	}
	if !sawThis || !sawLocal {
		t.Errorf("expected both entries present; draining logic (not Entries itself) is responsible for skipping NoDestruct")
	}
}

package sema_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/sema"
)

func TestSymbolTableShadowing(t *testing.T) {
	st := sema.NewSymbolTable()
	st.Insert(sema.Variable{Name: "x", Mutable: false})
	st.Insert(sema.Variable{Name: "x", Mutable: true}) // overwrite

	v, ok := st.Lookup("x")
	if !ok || !v.Mutable {
		t.Errorf("expected the later Insert to shadow the earlier one")
	}
}

func TestMergeChildShadowsParent(t *testing.T) {
	parent := sema.NewSymbolTable()
	parent.Insert(sema.Variable{Name: "a", Signed: false})
	parent.Insert(sema.Variable{Name: "b", Signed: false})

	child := sema.NewSymbolTable()
	child.Insert(sema.Variable{Name: "a", Signed: true})

	merged := sema.Merge(parent, child)
	a, _ := merged.Lookup("a")
	b, _ := merged.Lookup("b")
	if !a.Signed {
		t.Errorf("expected child's 'a' to shadow parent's")
	}
	if b.Signed {
		t.Errorf("expected parent's 'b' to survive the merge unshadowed")
	}
}

func TestNamespaceStackPathAndQualify(t *testing.T) {
	var ns sema.NamespaceStack
	ns.Push("geometry", sema.KindNamespace)
	ns.Push("Box", sema.KindClass)

	if got := ns.Path(); got != "geometry::Box" {
		t.Errorf("expected path \"geometry::Box\", got %q", got)
	}
	if got := ns.Qualify("area"); got != "geometry::Box::area" {
		t.Errorf("expected \"geometry::Box::area\", got %q", got)
	}

	name, isClass := ns.InClass()
	if !isClass || name != "Box" {
		t.Errorf("expected innermost frame to report class 'Box', got (%q, %v)", name, isClass)
	}

	ns.Pop()
	if _, isClass := ns.InClass(); isClass {
		t.Errorf("expected InClass to be false once the class frame is popped")
	}
}

func TestNamespaceStackQualifyAtRoot(t *testing.T) {
	var ns sema.NamespaceStack
	if got := ns.Qualify("main"); got != "main" {
		t.Errorf("expected an empty namespace stack to qualify to the bare name, got %q", got)
	}
}

func TestNamespaceStackPrefixes(t *testing.T) {
	var ns sema.NamespaceStack
	ns.Push("a", sema.KindNamespace)
	ns.Push("b", sema.KindNamespace)
	ns.Push("c", sema.KindNamespace)

	prefixes := ns.Prefixes()
	want := []string{"a::b::c", "a::b", "a", ""}
	if len(prefixes) != len(want) {
		t.Fatalf("expected %d prefixes, got %d: %v", len(want), len(prefixes), prefixes)
	}
	for i := range want {
		if prefixes[i] != want[i] {
			t.Errorf("prefix %d: expected %q, got %q", i, want[i], prefixes[i])
		}
	}
}

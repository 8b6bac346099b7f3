package mangle_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/mangle"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

func TestMangleIsDeterministic(t *testing.T) {
	frames := []sema.NamespaceEntry{{Name: "geometry", Kind: sema.KindNamespace}}
	params := []types.Type{types.Builtin{Kind: types.I32}, types.Builtin{Kind: types.F64}}

	a := mangle.Mangle(frames, "area", ast.AccessPublic, mangle.KindFunction, params)
	b := mangle.Mangle(frames, "area", ast.AccessPublic, mangle.KindFunction, params)
	if a != b {
		t.Errorf("expected repeated mangling of identical inputs to match: %q != %q", a, b)
	}
}

func TestMangleDistinguishesOverloadsByParamTypes(t *testing.T) {
	frames := []sema.NamespaceEntry{}
	intParam := []types.Type{types.Builtin{Kind: types.I32}}
	floatParam := []types.Type{types.Builtin{Kind: types.F64}}

	a := mangle.Mangle(frames, "scale", ast.AccessPublic, mangle.KindFunction, intParam)
	b := mangle.Mangle(frames, "scale", ast.AccessPublic, mangle.KindFunction, floatParam)
	if a == b {
		t.Errorf("expected distinct parameter types to produce distinct mangled names, both were %q", a)
	}
}

func TestMangleConstructorAndDestructorUseReservedNames(t *testing.T) {
	frames := []sema.NamespaceEntry{{Name: "Box", Kind: sema.KindClass}}

	ctor := mangle.Mangle(frames, "Box", ast.AccessDefault, mangle.KindConstructor, nil)
	dtor := mangle.Mangle(frames, "Box", ast.AccessDefault, mangle.KindDestructor, nil)
	plain := mangle.Mangle(frames, "Box", ast.AccessDefault, mangle.KindFunction, nil)

	if ctor == dtor || ctor == plain || dtor == plain {
		t.Errorf("expected constructor/destructor/plain-function mangling to be mutually distinct")
	}
}

func TestMangleClassFramesDifferFromNamespaceFrames(t *testing.T) {
	asNamespace := []sema.NamespaceEntry{{Name: "Box", Kind: sema.KindNamespace}}
	asClass := []sema.NamespaceEntry{{Name: "Box", Kind: sema.KindClass}}

	a := mangle.Mangle(asNamespace, "unwrap", ast.AccessPublic, mangle.KindFunction, nil)
	b := mangle.Mangle(asClass, "unwrap", ast.AccessPublic, mangle.KindFunction, nil)
	if a == b {
		t.Errorf("expected namespace-tagged and class-tagged frames to mangle differently")
	}
}

func TestMangleTemplateInstantiationIsDeterministicAndDistinct(t *testing.T) {
	base := "_KF4Pair"
	intArgs := []types.Type{types.Builtin{Kind: types.I32}, types.Builtin{Kind: types.I32}}
	mixedArgs := []types.Type{types.Builtin{Kind: types.I32}, types.Builtin{Kind: types.F64}}

	a := mangle.MangleTemplateInstantiation(base, intArgs)
	b := mangle.MangleTemplateInstantiation(base, intArgs)
	if a != b {
		t.Errorf("expected identical instantiation args to produce the same mangled symbol")
	}

	c := mangle.MangleTemplateInstantiation(base, mixedArgs)
	if a == c {
		t.Errorf("expected different template arguments to mangle differently")
	}
}

func TestExternalReturnsVerbatimName(t *testing.T) {
	if got := mangle.External("main"); got != "main" {
		t.Errorf("expected External(\"main\") to return \"main\" verbatim, got %q", got)
	}
}

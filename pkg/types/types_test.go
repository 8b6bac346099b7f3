package types_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/types"
)

func TestKindBitWidth(t *testing.T) {
	test := func(k types.Kind, expected int) {
		if got := k.BitWidth(); got != expected {
			t.Errorf("%s: expected %d bits, got %d", k, expected, got)
		}
	}

	test(types.Bool, 8) // bool is 8-bit, not a packed 1-bit encoding
	test(types.I8, 8)
	test(types.U8, 8)
	test(types.I16, 16)
	test(types.I32, 32)
	test(types.Char, 32) // char is a u32 codepoint
	test(types.I64, 64)
	test(types.F32, 32)
	test(types.F64, 64)
	test(types.Void, 0)
}

func TestKindIsIntegerAndSigned(t *testing.T) {
	if !types.I32.IsInteger() {
		t.Errorf("expected I32 to be an integer kind")
	}
	if types.F32.IsInteger() {
		t.Errorf("did not expect F32 to be an integer kind")
	}
	if !types.Char.IsInteger() {
		t.Errorf("expected Char to be an integer kind")
	}
	if types.Char.IsSigned() {
		t.Errorf("Char must be unsigned")
	}
	if !types.I32.IsSigned() {
		t.Errorf("expected I32 to be signed")
	}
	if types.U32.IsSigned() {
		t.Errorf("expected U32 to be unsigned")
	}
}

func TestEqualStructural(t *testing.T) {
	a := types.Pointer{Pointee: types.UserDefined{Name: "Box"}, Depth: 1}
	b := types.Pointer{Pointee: types.UserDefined{Name: "Box"}, Depth: 1}
	c := types.Pointer{Pointee: types.UserDefined{Name: "Box"}, Depth: 2}

	if !types.Equal(a, b) {
		t.Errorf("expected structurally identical pointers to be equal")
	}
	if types.Equal(a, c) {
		t.Errorf("did not expect pointers of different depth to be equal")
	}
	if types.Equal(nil, a) || types.Equal(a, nil) {
		t.Errorf("nil must never equal a non-nil type")
	}
	if !types.Equal(nil, nil) {
		t.Errorf("nil must equal nil")
	}
}

func TestDecayStripsReference(t *testing.T) {
	inner := types.Builtin{Kind: types.I32}
	ref := types.Reference{Referent: inner}

	decayed := types.Decay(ref)
	if !types.Equal(decayed, inner) {
		t.Errorf("expected Decay(Reference) to return the referent")
	}

	// A non-reference type passes through unchanged.
	if !types.Equal(types.Decay(inner), inner) {
		t.Errorf("expected Decay(non-reference) to return the type unchanged")
	}
}

func TestReferenceKeyStaysDistinctFromReferent(t *testing.T) {
	inner := types.Builtin{Kind: types.I32}
	ref := types.Reference{Referent: inner}

	// Key() is deliberately NOT decay-transparent: only Decay() is.
	if types.Equal(ref, inner) {
		t.Errorf("Reference.Key() must stay structurally distinct from its referent")
	}
}

func TestUserDefinedTemplateKeyIsOrderSensitive(t *testing.T) {
	t1 := types.UserDefinedTemplate{Base: "Pair", Args: []types.Type{
		types.Builtin{Kind: types.I32}, types.Builtin{Kind: types.F64},
	}}
	t2 := types.UserDefinedTemplate{Base: "Pair", Args: []types.Type{
		types.Builtin{Kind: types.F64}, types.Builtin{Kind: types.I32},
	}}
	if types.Equal(t1, t2) {
		t.Errorf("expected argument order to distinguish template instantiations")
	}
}

func TestIsAssignableShape(t *testing.T) {
	if types.IsAssignableShape(types.Builtin{Kind: types.Void}) {
		t.Errorf("void must not be an assignable shape")
	}
	if !types.IsAssignableShape(types.Builtin{Kind: types.I32}) {
		t.Errorf("i32 must be an assignable shape")
	}
	if !types.IsAssignableShape(types.Pointer{Pointee: types.UserDefined{Name: "Box"}, Depth: 1}) {
		t.Errorf("a class pointer must be an assignable shape")
	}
}

func TestArrayKeyIncludesSize(t *testing.T) {
	a := types.Array{Element: types.Builtin{Kind: types.I8}, Size: 4}
	b := types.Array{Element: types.Builtin{Kind: types.I8}, Size: 8}
	if types.Equal(a, b) {
		t.Errorf("arrays of different size must not be equal")
	}
}

package types

import "fmt"

// Promote returns the wider of the two integer types, preserving the
// signedness of the wider operand (unsigned wins on ties). Both inputs must
// be integer Builtin kinds (including Char); it is a CodegenError (reported
// by the caller) to call this with anything else.
func Promote(a, b Builtin) (Builtin, error) {
	if !a.Kind.IsInteger() || !b.Kind.IsInteger() {
		return Builtin{}, fmt.Errorf("promotion requires two integer types, got %s and %s", a, b)
	}

	aw, bw := a.Kind.BitWidth(), b.Kind.BitWidth()
	switch {
	case aw > bw:
		return a, nil
	case bw > aw:
		return b, nil
	default: // same width: unsigned wins on ties
		if !a.Kind.IsSigned() {
			return a, nil
		}
		if !b.Kind.IsSigned() {
			return b, nil
		}
		return a, nil // both signed, same width: either works, keep 'a'
	}
}

// CastKind classifies what an explicit 'as' cast expression is allowed to do.
type CastKind int

const (
	CastInvalid CastKind = iota
	CastIntToInt
	CastPointerToPointer
	CastNoop // source and target types are already structurally equal
)

// ClassifyCast determines whether 'as' casting 'from' to 'to' is legal.
// Casts are explicit (as) for integer<->integer and pointer<->pointer; any
// other cast is an error.
func ClassifyCast(from, to Type) CastKind {
	if Equal(from, to) {
		return CastNoop
	}

	fb, fIsBuiltin := from.(Builtin)
	tb, tIsBuiltin := to.(Builtin)
	if fIsBuiltin && tIsBuiltin && fb.Kind.IsInteger() && tb.Kind.IsInteger() {
		return CastIntToInt
	}

	_, fIsPtr := from.(Pointer)
	_, tIsPtr := to.(Pointer)
	if fIsPtr && tIsPtr {
		return CastPointerToPointer
	}

	return CastInvalid
}

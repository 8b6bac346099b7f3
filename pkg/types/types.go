// Package types implements the structural type model: builtin, user-defined,
// user-defined-template, array, pointer and reference types, their
// structural equality, an ordering usable as a memoization key, integer
// promotion and cast legality.
//
// Generalized from Jack's closed 7-kind enum into this language's full type
// sum type; Jack represents types as a flat string enum with no pointers,
// arrays, templates or references, so those arms are modeled fresh.
package types

import "fmt"

// Kind enumerates the builtin scalar kinds.
type Kind uint8

const (
	Void Kind = iota
	Bool
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	Char // semantically u32 codepoint, kept distinct for diagnostics/overloading
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Char:
		return "char"
	default:
		return "<unknown-kind>"
	}
}

// IsInteger reports whether the kind is one of the fixed-width integer kinds.
func (k Kind) IsInteger() bool {
	switch k {
	case I8, U8, I16, U16, I32, U32, I64, U64, Char:
		return true
	default:
		return false
	}
}

// IsSigned reports whether the integer kind is signed. Char is treated as
// unsigned (it is a u32 codepoint).
func (k Kind) IsSigned() bool {
	switch k {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the kind is one of the floating point kinds.
func (k Kind) IsFloat() bool { return k == F32 || k == F64 }

// BitWidth returns the storage width in bits. Bool is reported as 8 bits
// throughout rather than the 1-bit encoding the source material sometimes
// used.
func (k Kind) BitWidth() int {
	switch k {
	case Bool, I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32, F32, Char:
		return 32
	case I64, U64, F64:
		return 64
	default:
		return 0
	}
}

// Type is the sum type of every structural type: Builtin, UserDefined,
// UserDefinedTemplate, Array, Pointer, Reference. Every arm implements
// structural equality and a canonical string used both for diagnostics and
// as a memoization/ordering key.
type Type interface {
	isType()
	// Key returns a canonical, order-comparable string uniquely identifying
	// this type structurally; used for template-instantiation and back-end
	// type-mapping memoization.
	Key() string
}

// Equal reports structural equality between two types.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// Builtin is one of the fixed-width scalar kinds.
type Builtin struct{ Kind Kind }

func (Builtin) isType()         {}
func (b Builtin) Key() string   { return b.Kind.String() }
func (b Builtin) String() string { return b.Kind.String() }

// UserDefined names a class, union or typedef alias target by qualified name.
type UserDefined struct{ Name string }

func (UserDefined) isType()          {}
func (u UserDefined) Key() string    { return "U:" + u.Name }
func (u UserDefined) String() string { return u.Name }

// UserDefinedTemplate is an uninstantiated/instantiated reference to a
// class template applied to concrete type arguments.
type UserDefinedTemplate struct {
	Base string
	Args []Type
}

func (UserDefinedTemplate) isType() {}
func (t UserDefinedTemplate) Key() string {
	key := "T:" + t.Base + "<"
	for i, a := range t.Args {
		if i > 0 {
			key += ","
		}
		key += a.Key()
	}
	return key + ">"
}
func (t UserDefinedTemplate) String() string { return t.Key() }

// Array is a fixed-size array of Element, with compile-time known Size.
type Array struct {
	Element Type
	Size    uint64
}

func (Array) isType() {}
func (a Array) Key() string {
	return fmt.Sprintf("[%d]%s", a.Size, a.Element.Key())
}
func (a Array) String() string { return a.Key() }

// Pointer is a pointer to Pointee with indirection Depth >= 1.
type Pointer struct {
	Pointee Type
	Depth   int
}

func (Pointer) isType() {}
func (p Pointer) Key() string {
	stars := ""
	for i := 0; i < p.Depth; i++ {
		stars += "*"
	}
	return stars + p.Pointee.Key()
}
func (p Pointer) String() string { return p.Key() }

// Reference is a reference to Referent: transparent against its referent
// when used as an operand but distinct when used as a declared type.
// Callers that need operand-position
// transparency should call Decay before comparing/using the type, rather
// than relying on Key() (which stays structurally distinct by design).
type Reference struct{ Referent Type }

func (Reference) isType()          {}
func (r Reference) Key() string    { return "&" + r.Referent.Key() }
func (r Reference) String() string { return r.Key() }

// Decay strips a single layer of Reference, implementing the rule that a
// reference is transparent against its referent when used as an operand.
// Non-reference types are returned unchanged.
func Decay(t Type) Type {
	if ref, ok := t.(Reference); ok {
		return ref.Referent
	}
	return t
}

// IsAssignableShape reports whether a type can back an addressable
// (assignable) binding. It is purely a shape check; actual addressability is
// a property of the expression lowering it (see pkg/codegen), not of the
// type alone.
func IsAssignableShape(t Type) bool {
	_, isVoid := t.(Builtin)
	if isVoid {
		return t.(Builtin).Kind != Void
	}
	return true
}

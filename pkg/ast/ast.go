// Package ast defines the position-annotated, variant Abstract Syntax Tree
// produced by pkg/parser for one translation unit.
//
// Grounded on the Jack AST: every sum type there (Variable, Statement,
// Expression, ...) is expressed as a Go interface{} plus one struct per
// variant, matched with a type switch at each visitor site (its lowering
// pass's HandleStatement/HandleExpression). This package keeps that shape,
// generalizes the variant sets to the language's full grammar, and
// additionally carries a token.NodeID on every node — the Jack AST carries
// no position info at all.
package ast

import "github.com/kestrel-lang/kestrelc/pkg/token"

// Pos is embedded in every node and is the node's key into a
// token.PositionCache.
type Pos struct{ ID token.NodeID }

// Node is implemented by every AST node (top-level, statement, expression,
// type reference); it only exists so visitors can require "some AST node"
// without caring which sum type it belongs to.
type Node interface{ nodeID() token.NodeID }

func (p Pos) nodeID() token.NodeID { return p.ID }

// Access controls the visibility of a class member or function.
type Access int

const (
	AccessDefault Access = iota // unspecified; resolved contextually (e.g. extern => external linkage)
	AccessPublic
	AccessPrivate
)

// AttributeSet is the bracketed attribute list `[[a, b]]` that may precede
// any top-level item.
type AttributeSet []string

// Has reports whether the named attribute is present.
func (a AttributeSet) Has(name string) bool {
	for _, attr := range a {
		if attr == name {
			return true
		}
	}
	return false
}

// TranslationUnit is the parser's top-level output: an ordered sequence of
// attributed top-level items for one source file.
type TranslationUnit struct {
	File  string
	Items []TopLevel
}

// ----------------------------------------------------------------------------
// Type references (unresolved, as written in source)

// TypeRef is the sum of type syntax the parser can produce; pkg/sema/pkg/codegen
// resolve a TypeRef into a concrete types.Type once namespaces are known.
type TypeRef interface {
	Node
	isTypeRef()
}

type BuiltinTypeRef struct {
	Pos
	Name string // one of the builtin kind keywords
}

type NamedTypeRef struct {
	Pos
	Path []string // namespace-qualified name, e.g. ["a", "b", "Widget"]
}

type TemplateTypeRef struct {
	Pos
	Base string
	Args []TypeRef
}

type ArrayTypeRef struct {
	Pos
	Element TypeRef
	Size    uint64
}

type PointerTypeRef struct {
	Pos
	Pointee TypeRef
	Depth   int
}

type ReferenceTypeRef struct {
	Pos
	Referent TypeRef
}

func (BuiltinTypeRef) isTypeRef()   {}
func (NamedTypeRef) isTypeRef()     {}
func (TemplateTypeRef) isTypeRef()  {}
func (ArrayTypeRef) isTypeRef()     {}
func (PointerTypeRef) isTypeRef()   {}
func (ReferenceTypeRef) isTypeRef() {}

// ----------------------------------------------------------------------------
// Declarations shared by functions/classes/unions

// Param is one function/method parameter.
type Param struct {
	Name string
	Type TypeRef
}

// FieldDecl is one class member declaration.
type FieldDecl struct {
	Pos
	Name   string
	Type   TypeRef
	Access Access
	Static bool
}

// UnionVariant is one tagged-union arm.
type UnionVariant struct {
	Tag  string
	Type TypeRef
}

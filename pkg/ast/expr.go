package ast

import "github.com/kestrel-lang/kestrelc/pkg/token"

// Expression is the sum type of  (~22 variants): literals,
// identifier, unary/binary op, dereference, address-of, new/delete,
// reference, subscript, member-access, scope-resolution, cast, pipeline,
// call, template-call, array literal, class literal, sizeof, builtin macro,
// plus the lowering-only embedded back-end value.
type Expression interface {
	Node
	isExpression()
}

// ---- literals ----

type IntLiteral struct {
	Pos
	Value  string // raw digits, parsed by pkg/codegen against the inferred/declared width
	Suffix string // e.g. "u8", "i64"; "" means default i32
}

type FloatLiteral struct {
	Pos
	Value  string
	Suffix string // "f32" or "f64" ("" defaults to f64)
}

type BoolLiteral struct {
	Pos
	Value bool
}

type StringLiteral struct {
	Pos
	Value []rune // decoded escapes, stored UTF-32
}

type CharLiteral struct {
	Pos
	Value rune
}

type NullLiteral struct{ Pos }

// ---- names ----

type IdentExpr struct {
	Pos
	Name string
}

// RootIdentExpr is a leading '::name' reference: it forces resolution to
// start at the root namespace instead of walking the enclosing namespace
// stack outward, the way ScopeExpr qualifies relative to a base expression.
type RootIdentExpr struct {
	Pos
	Name string
}

// ---- operators ----

type UnaryExpr struct {
	Pos
	Op      string // "+", "-", "!"
	Operand Expression
}

type BinaryExpr struct {
	Pos
	Op       string
	Lhs, Rhs Expression
}

type DerefExpr struct { // unary '*'
	Pos
	Operand Expression
}

type AddrOfExpr struct { // unary '&'
	Pos
	Operand Expression
}

type RefExpr struct { // explicit reference-binding construct
	Pos
	Operand Expression
}

// ---- allocation ----

type NewExpr struct {
	Pos
	Type TypeRef
	Args []Expression
}

type DeleteExpr struct {
	Pos
	Operand Expression
}

// ---- postfix family ----

type SubscriptExpr struct {
	Pos
	Base, Index Expression
}

type MemberExpr struct {
	Pos
	Base   Expression
	Member string
}

type ScopeExpr struct { // a::b
	Pos
	Base   Expression
	Member string
}

type CastExpr struct { // 'x as T'
	Pos
	Operand Expression
	Target  TypeRef
}

type PipelineExpr struct { // 'x |> f'
	Pos
	Lhs, Rhs Expression
}

type CallExpr struct {
	Pos
	Callee Expression
	Args   []Expression
}

type TemplateCallExpr struct { // 'f<T, U>(args)'
	Pos
	Callee   Expression
	TypeArgs []TypeRef
	Args     []Expression
}

type ArrayLiteralExpr struct {
	Pos
	Elements []Expression
}

type ClassLiteralExpr struct { // 'Widget{ field: expr, ... }'
	Pos
	Type   TypeRef
	Fields []ClassLiteralField
}

type ClassLiteralField struct {
	Name  string
	Value Expression
}

type SizeofExpr struct {
	Pos
	Type TypeRef
}

type BuiltinMacroExpr struct {
	Pos
	Name string
	Args []Expression
}

// BackendValueExpr wraps an already-lowered back-end value so that helper
// lowering routines can re-enter expression handling uniformly. 'Value' is
// opaque here (any) to avoid pkg/ast depending on pkg/backend; pkg/codegen
// type-asserts it back to the concrete backend.Value it produced.
type BackendValueExpr struct {
	Pos
	Value any
}

func (IntLiteral) isExpression()        {}
func (FloatLiteral) isExpression()      {}
func (BoolLiteral) isExpression()       {}
func (StringLiteral) isExpression()     {}
func (CharLiteral) isExpression()       {}
func (NullLiteral) isExpression()       {}
func (IdentExpr) isExpression()         {}
func (RootIdentExpr) isExpression()     {}
func (UnaryExpr) isExpression()         {}
func (BinaryExpr) isExpression()        {}
func (DerefExpr) isExpression()         {}
func (AddrOfExpr) isExpression()        {}
func (RefExpr) isExpression()           {}
func (NewExpr) isExpression()           {}
func (DeleteExpr) isExpression()        {}
func (SubscriptExpr) isExpression()     {}
func (MemberExpr) isExpression()        {}
func (ScopeExpr) isExpression()         {}
func (CastExpr) isExpression()          {}
func (PipelineExpr) isExpression()      {}
func (CallExpr) isExpression()          {}
func (TemplateCallExpr) isExpression()  {}
func (ArrayLiteralExpr) isExpression()  {}
func (ClassLiteralExpr) isExpression()  {}
func (SizeofExpr) isExpression()        {}
func (BuiltinMacroExpr) isExpression()  {}
func (BackendValueExpr) isExpression()  {}

// NewPosNode is a tiny helper constructor used throughout pkg/parser so call
// sites read "ast.NewPosNode(cache, start, end)" instead of repeating the
// PositionCache plumbing at every production.
func NewPosNode(cache *token.PositionCache, start, end int) Pos {
	return Pos{ID: cache.NewNode(start, end)}
}

package ast

// TopLevel is the sum type of : function decl, function def,
// class decl, class def, union def, typedef, import, namespace. Each may
// carry an AttributeSet (e.g. nodiscard, nomangle).
type TopLevel interface {
	Node
	isTopLevel()
}

type FuncDecl struct {
	Pos
	Attrs          AttributeSet
	Access         Access
	Extern         bool
	Name           string
	TemplateParams []string
	Params         []Param
	Variadic       bool
	Return         TypeRef
}

type FuncDef struct {
	Pos
	Decl FuncDecl
	Body CompoundStmt
}

type ClassDecl struct {
	Pos
	Attrs          AttributeSet
	Name           string
	TemplateParams []string
}

type ClassDef struct {
	Pos
	Attrs          AttributeSet
	Name           string
	TemplateParams []string
	Fields         []FieldDecl
	Ctors          []FuncDef // subroutines named 'new'
	Dtor           *FuncDef  // nil when undeclared; pkg/codegen may synthesize a default
	Methods        []FuncDef
}

type UnionDef struct {
	Pos
	Attrs          AttributeSet
	Name           string
	TemplateParams []string
	Variants       []UnionVariant
}

type TypedefDecl struct {
	Pos
	Attrs  AttributeSet
	Name   string
	Target TypeRef
}

type ImportDecl struct {
	Pos
	Attrs AttributeSet
	Path  string
}

type NamespaceDecl struct {
	Pos
	Attrs AttributeSet
	Name  string
	Items []TopLevel
}

func (FuncDecl) isTopLevel()      {}
func (FuncDef) isTopLevel()       {}
func (ClassDecl) isTopLevel()     {}
func (ClassDef) isTopLevel()      {}
func (UnionDef) isTopLevel()      {}
func (TypedefDecl) isTopLevel()   {}
func (ImportDecl) isTopLevel()    {}
func (NamespaceDecl) isTopLevel() {}

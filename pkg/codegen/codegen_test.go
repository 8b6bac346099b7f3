package codegen_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/backend"
	"github.com/kestrel-lang/kestrelc/pkg/codegen"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
)

// run lowers a hand-built translation unit and JIT-executes 'main', mirroring
// worked examples. Building the AST by hand (rather than going
// through pkg/parser) keeps these tests focused on pkg/codegen's own
// semantics, the way pkg/vm/codegen_test.go exercises its
// lowering pass directly against hand-built vm.Module values.
func run(t *testing.T, tu ast.TranslationUnit) int64 {
	t.Helper()
	target := backend.NewTarget("x86_64-unknown-linux-gnu", 0, backend.RelocStatic)
	reg := sema.NewRegistries()
	ctx := codegen.NewContext("test.ke", nil, target, reg)

	if err := ctx.LowerTranslationUnit(tu); err != nil {
		t.Fatalf("LowerTranslationUnit: %v", err)
	}
	if err := target.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	jit := backend.NewJIT(target.Module)
	result, err := jit.Run("main", nil)
	if err != nil {
		t.Fatalf("JIT run: %v", err)
	}
	return result
}

func i32() ast.TypeRef { return ast.BuiltinTypeRef{Name: "i32"} }

func mainReturning(body []ast.Statement) ast.FuncDef {
	return ast.FuncDef{
		Decl: ast.FuncDecl{Name: "main", Return: i32()},
		Body: ast.CompoundStmt{Statements: body},
	}
}

// Example 1: func main() -> i32 { ret 42; } — JIT returns 42.
func TestMainReturnsConstant(t *testing.T) {
	tu := ast.TranslationUnit{
		File: "test.ke",
		Items: []ast.TopLevel{
			mainReturning([]ast.Statement{
				ast.ReturnStmt{Expr: ast.IntLiteral{Value: "42"}},
			}),
		},
	}
	if got := run(t, tu); got != 42 {
		t.Errorf("main() = %d, want 42", got)
	}
}

// Example 2: func add(a, b: i32) -> i32 { ret a + b; } func main() -> i32 { ret add(20, 22); } — JIT returns 42.
func TestCallBetweenFunctions(t *testing.T) {
	add := ast.FuncDef{
		Decl: ast.FuncDecl{
			Name:   "add",
			Params: []ast.Param{{Name: "a", Type: i32()}, {Name: "b", Type: i32()}},
			Return: i32(),
		},
		Body: ast.CompoundStmt{Statements: []ast.Statement{
			ast.ReturnStmt{Expr: ast.BinaryExpr{Op: "+", Lhs: ast.IdentExpr{Name: "a"}, Rhs: ast.IdentExpr{Name: "b"}}},
		}},
	}
	tu := ast.TranslationUnit{
		File: "test.ke",
		Items: []ast.TopLevel{
			add,
			mainReturning([]ast.Statement{
				ast.ReturnStmt{Expr: ast.CallExpr{
					Callee: ast.IdentExpr{Name: "add"},
					Args:   []ast.Expression{ast.IntLiteral{Value: "20"}, ast.IntLiteral{Value: "22"}},
				}},
			}),
		},
	}
	if got := run(t, tu); got != 42 {
		t.Errorf("main() = %d, want 42", got)
	}
}

// Example 3: func main() -> i32 { var mutable i = 0; for (; i < 10; ++i) {} ret i; } — JIT returns 10.
func TestForLoopCounts(t *testing.T) {
	tu := ast.TranslationUnit{
		File: "test.ke",
		Items: []ast.TopLevel{
			mainReturning([]ast.Statement{
				ast.VarDeclStmt{Name: "i", Mutable: true, Init: ast.IntLiteral{Value: "0"}},
				ast.ForStmt{
					Cond: ast.BinaryExpr{Op: "<", Lhs: ast.IdentExpr{Name: "i"}, Rhs: ast.IntLiteral{Value: "10"}},
					Post: ast.IncDecStmt{Op: "++", Operand: ast.IdentExpr{Name: "i"}},
					Body: ast.CompoundStmt{},
				},
				ast.ReturnStmt{Expr: ast.IdentExpr{Name: "i"}},
			}),
		},
	}
	if got := run(t, tu); got != 10 {
		t.Errorf("main() = %d, want 10", got)
	}
}

// Example 4: a class with a self-allocating constructor and a default
// (no-op) destructor, read back through a field access — JIT returns 42.
func TestClassConstructorAndFieldAccess(t *testing.T) {
	box := ast.ClassDef{
		Name:   "Box",
		Fields: []ast.FieldDecl{{Name: "x", Type: i32()}},
		Ctors: []ast.FuncDef{{
			Decl: ast.FuncDecl{Name: "new", Params: []ast.Param{{Name: "v", Type: i32()}}},
			Body: ast.CompoundStmt{Statements: []ast.Statement{
				ast.MemberInitStmt{Field: "x", Value: ast.IdentExpr{Name: "v"}},
			}},
		}},
	}
	tu := ast.TranslationUnit{
		File: "test.ke",
		Items: []ast.TopLevel{
			box,
			mainReturning([]ast.Statement{
				ast.VarDeclStmt{Name: "b", Init: ast.NewExpr{
					Type: ast.NamedTypeRef{Path: []string{"Box"}},
					Args: []ast.Expression{ast.IntLiteral{Value: "42"}},
				}},
				ast.ReturnStmt{Expr: ast.MemberExpr{Base: ast.IdentExpr{Name: "b"}, Member: "x"}},
			}),
		},
	}
	if got := run(t, tu); got != 42 {
		t.Errorf("main() = %d, want 42", got)
	}
}

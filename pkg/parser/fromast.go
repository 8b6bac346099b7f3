package parser

import (
	"fmt"
	"strconv"
	"strings"

	pc "github.com/prataprc/goparsec"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/token"
)

// converter walks the pc.Queryable tree goparsec hands back and rebuilds the
// typed pkg/ast the rest of the compiler consumes, the same two-phase split
// as pkg/vm/parsing.go FromAST (dispatch on GetName(), recurse
// into GetChildren(), read leaves with GetValue()). Every HandleX method
// below mirrors one of HandleMemoryOp/HandleFuncDecl/... but
// generalized from the VM's flat operation list to the full expression/
// statement/top-level grammar.
type converter struct {
	file   string
	source []byte
	cache  *token.PositionCache
	cursor int
	errs   []ParseError
}

// posOf reconstructs an approximate byte Range for 'node' by forward-
// scanning for its first leaf token's text starting at the converter's
// cursor, then advancing the cursor past it. goparsec's Queryable (as used
// by the reference implementation throughout pkg/vm and pkg/jack) exposes GetName/
// GetChildren/GetValue but no byte offsets, so this is a pragmatic
// approximation rather than an exact reconstruction: it is monotonic and consistent with source order because the
// grammar itself is a left-to-right PEG derivation, but does not locate
// nodes that were entirely skipped by error recovery.
func (c *converter) posOf(node pc.Queryable) ast.Pos {
	text := firstLeafValue(node)
	start := c.cursor
	if text != "" {
		if idx := strings.Index(string(c.source[c.cursor:]), text); idx >= 0 {
			start = c.cursor + idx
			c.cursor = start + len(text)
		}
	}
	end := start + len(text)
	if end < start {
		end = start
	}
	return ast.Pos{ID: c.cache.NewNode(start, end)}
}

// isCommentNode reports whether 'name' is one of the two node names pComment
// can produce (goparsec's OrdChoice is transparent: the matched alternative's
// own name, not "comment", surfaces in the tree). Every item list pComment
// is threaded into must skip these rather than feed them to handleTopLevel/
// handleStatement, which don't know what a comment node is.
func isCommentNode(name string) bool {
	return name == "sl_comment" || name == "ml_comment"
}

func firstLeafValue(node pc.Queryable) string {
	if v := node.GetValue(); v != "" {
		return v
	}
	for _, child := range node.GetChildren() {
		if v := firstLeafValue(child); v != "" {
			return v
		}
	}
	return ""
}

func (c *converter) fail(node pc.Queryable, format string, args ...any) {
	p := c.posOf(node)
	r, _ := c.cache.Range(p.ID)
	line, col := c.cache.LineCol(r.Start)
	c.errs = append(c.errs, ParseError{
		File:    c.file,
		Line:    line,
		Col:     col,
		Excerpt: c.cache.Excerpt(p.ID),
		Message: fmt.Sprintf(format, args...),
	})
}

// ConvertTranslationUnit turns the root "program" Kleene node produced by
// pProgram into a pkg/ast.TranslationUnit, collecting one ParseError per
// "recover_junk" node the grammar's recovery arm matched.
func ConvertTranslationUnit(root pc.Queryable, file string, source []byte, cache *token.PositionCache) (ast.TranslationUnit, []ParseError) {
	c := &converter{file: file, source: source, cache: cache}
	tu := ast.TranslationUnit{File: file}

	for _, child := range root.GetChildren() {
		if isCommentNode(child.GetName()) {
			continue
		}
		if child.GetName() == "recover_junk" {
			c.fail(child, "unexpected input, skipping to next synchronization point")
			continue
		}
		item, ok := c.handleTopLevel(child)
		if !ok {
			continue
		}
		tu.Items = append(tu.Items, item)
	}
	return tu, c.errs
}

// ---- top level ----

func (c *converter) handleTopLevel(node pc.Queryable) (ast.TopLevel, bool) {
	switch node.GetName() {
	case "import_decl":
		return c.handleImport(node), true
	case "namespace_decl":
		return c.handleNamespace(node), true
	case "union_def":
		return c.handleUnion(node), true
	case "typedef_decl":
		return c.handleTypedef(node), true
	case "class_def":
		return c.handleClass(node), true
	case "func_def":
		return c.handleFuncDef(node), true
	case "func_decl":
		return c.handleFuncDecl(node), true
	default:
		c.fail(node, "unexpected top-level node %q", node.GetName())
		return nil, false
	}
}

func (c *converter) attrsAndRest(node pc.Queryable) (ast.AttributeSet, []pc.Queryable) {
	children := node.GetChildren()
	if len(children) > 0 && children[0].GetName() == "attr_list" {
		var attrs ast.AttributeSet
		for _, a := range children[0].GetChildren() {
			if a.GetName() == "attrs" {
				attrs = append(attrs, a.GetValue())
			}
		}
		return attrs, children[1:]
	}
	return nil, children
}

func (c *converter) handleImport(node pc.Queryable) ast.ImportDecl {
	attrs, rest := c.attrsAndRest(node)
	path := ""
	for _, ch := range rest {
		if ch.GetName() == "STRING" {
			path = unquote(ch.GetValue())
		}
	}
	return ast.ImportDecl{Pos: c.posOf(node), Attrs: attrs, Path: path}
}

func (c *converter) handleNamespace(node pc.Queryable) ast.NamespaceDecl {
	attrs, rest := c.attrsAndRest(node)
	decl := ast.NamespaceDecl{Pos: c.posOf(node), Attrs: attrs}
	for _, ch := range rest {
		switch ch.GetName() {
		case "IDENT":
			if decl.Name == "" {
				decl.Name = ch.GetValue()
			}
		case "items":
			for _, item := range ch.GetChildren() {
				if isCommentNode(item.GetName()) {
					continue
				}
				if top, ok := c.handleTopLevel(item); ok {
					decl.Items = append(decl.Items, top)
				}
			}
		}
	}
	return decl
}

func (c *converter) handleUnion(node pc.Queryable) ast.UnionDef {
	attrs, rest := c.attrsAndRest(node)
	def := ast.UnionDef{Pos: c.posOf(node), Attrs: attrs}
	for _, ch := range rest {
		switch ch.GetName() {
		case "IDENT":
			if def.Name == "" {
				def.Name = ch.GetValue()
			}
		case "template_params":
			def.TemplateParams = identList(ch)
		case "variants":
			for _, v := range ch.GetChildren() {
				if v.GetName() == "union_variant" {
					vc := v.GetChildren()
					def.Variants = append(def.Variants, ast.UnionVariant{
						Tag:  vc[0].GetValue(),
						Type: c.handleType(vc[2]),
					})
				}
			}
		}
	}
	return def
}

func (c *converter) handleTypedef(node pc.Queryable) ast.TypedefDecl {
	attrs, rest := c.attrsAndRest(node)
	def := ast.TypedefDecl{Pos: c.posOf(node), Attrs: attrs}
	for i, ch := range rest {
		if ch.GetName() == "IDENT" && def.Name == "" {
			def.Name = ch.GetValue()
		}
		if i == len(rest)-2 {
			def.Target = c.handleType(ch)
		}
	}
	return def
}

func (c *converter) handleClass(node pc.Queryable) ast.ClassDef {
	attrs, rest := c.attrsAndRest(node)
	def := ast.ClassDef{Pos: c.posOf(node), Attrs: attrs}
	currentAccess := ast.AccessPrivate
	for _, ch := range rest {
		switch ch.GetName() {
		case "IDENT":
			if def.Name == "" {
				def.Name = ch.GetValue()
			}
		case "template_params":
			def.TemplateParams = identList(ch)
		case "class_body":
			for _, member := range ch.GetChildren() {
				switch member.GetName() {
				case "sl_comment", "ml_comment":
				case "access_label":
					kids := member.GetChildren()
					if len(kids) > 0 && kids[0].GetValue() == "public" {
						currentAccess = ast.AccessPublic
					} else {
						currentAccess = ast.AccessPrivate
					}
				case "field_decl":
					fd := c.handleField(member, currentAccess)
					def.Fields = append(def.Fields, fd)
				case "func_def":
					fn := c.handleFuncDef(member)
					fn.Decl.Access = currentAccess
					switch fn.Decl.Name {
					case "new":
						def.Ctors = append(def.Ctors, fn)
					case "delete":
						cp := fn
						def.Dtor = &cp
					default:
						def.Methods = append(def.Methods, fn)
					}
				}
			}
		}
	}
	return def
}

func (c *converter) handleField(node pc.Queryable, access ast.Access) ast.FieldDecl {
	children := node.GetChildren()
	name := children[1].GetValue()
	typ := c.handleType(children[3])
	return ast.FieldDecl{Pos: c.posOf(node), Name: name, Type: typ, Access: access}
}

func (c *converter) handleFuncDecl(node pc.Queryable) ast.FuncDecl {
	attrs, rest := c.attrsAndRest(node)
	decl := ast.FuncDecl{Pos: c.posOf(node), Attrs: attrs}
	for _, ch := range rest {
		if ch.GetName() == "func_sig" {
			c.fillFuncSig(ch, &decl)
		}
	}
	return decl
}

func (c *converter) handleFuncDef(node pc.Queryable) ast.FuncDef {
	attrs, rest := c.attrsAndRest(node)
	def := ast.FuncDef{Pos: c.posOf(node)}
	def.Decl.Attrs = attrs
	for _, ch := range rest {
		switch ch.GetName() {
		case "func_sig":
			c.fillFuncSig(ch, &def.Decl)
		case "compound_stmt":
			def.Body = c.handleCompound(ch)
		}
	}
	return def
}

func (c *converter) fillFuncSig(node pc.Queryable, decl *ast.FuncDecl) {
	decl.Pos = c.posOf(node)
	for _, ch := range node.GetChildren() {
		switch ch.GetName() {
		case "EXTERN":
			decl.Extern = true
		case "IDENT":
			if decl.Name == "" {
				decl.Name = ch.GetValue()
			}
		case "template_params":
			decl.TemplateParams = identList(ch)
		case "params":
			for _, p := range ch.GetChildren() {
				if p.GetName() == "param" {
					pc := p.GetChildren()
					decl.Params = append(decl.Params, ast.Param{Name: pc[0].GetValue(), Type: c.handleType(pc[2])})
				}
			}
		case "ret_type":
			rc := ch.GetChildren()
			decl.Return = c.handleType(rc[len(rc)-1])
		}
	}
	if decl.Return == nil {
		decl.Return = ast.BuiltinTypeRef{Pos: decl.Pos, Name: "void"}
	}
}

func identList(node pc.Queryable) []string {
	var out []string
	for _, ch := range node.GetChildren() {
		if ch.GetName() == "names" || ch.GetName() == "IDENT" {
			out = append(out, ch.GetValue())
		}
	}
	return out
}

// ---- types ----

func (c *converter) handleType(node pc.Queryable) ast.TypeRef {
	pos := c.posOf(node)
	switch node.GetName() {
	case "builtin_type":
		kids := node.GetChildren()
		name := node.GetValue()
		if len(kids) > 0 {
			name = kids[0].GetValue()
		}
		return ast.BuiltinTypeRef{Pos: pos, Name: name}
	case "named_type":
		kids := node.GetChildren()
		path := []string{kids[0].GetValue()}
		for _, q := range kids[1:] {
			if q.GetName() == "qseg" {
				qc := q.GetChildren()
				path = append(path, qc[len(qc)-1].GetValue())
			}
		}
		return ast.NamedTypeRef{Pos: pos, Path: path}
	case "template_type":
		kids := node.GetChildren()
		base := kids[0].GetValue()
		var args []ast.TypeRef
		for _, a := range kids[1:] {
			if a.GetName() == "type_args" {
				for _, t := range a.GetChildren() {
					args = append(args, c.handleType(t))
				}
			}
		}
		return ast.TemplateTypeRef{Pos: pos, Base: base, Args: args}
	case "pointer_type":
		kids := node.GetChildren()
		depth := 0
		var inner pc.Queryable
		for _, k := range kids {
			if k.GetName() == "stars" {
				depth = len(k.GetChildren())
			} else {
				inner = k
			}
		}
		return ast.PointerTypeRef{Pos: pos, Pointee: c.handleType(inner), Depth: depth}
	case "reference_type":
		kids := node.GetChildren()
		return ast.ReferenceTypeRef{Pos: pos, Referent: c.handleType(kids[len(kids)-1])}
	case "array_type":
		kids := node.GetChildren()
		size, _ := strconv.ParseUint(kids[1].GetValue(), 10, 64)
		return ast.ArrayTypeRef{Pos: pos, Element: c.handleType(kids[3]), Size: size}
	default:
		c.fail(node, "unrecognized type node %q", node.GetName())
		return ast.BuiltinTypeRef{Pos: pos, Name: "void"}
	}
}

// ---- statements ----

func (c *converter) handleStatementList(node pc.Queryable) []ast.Statement {
	var out []ast.Statement
	for _, ch := range node.GetChildren() {
		if isCommentNode(ch.GetName()) {
			continue
		}
		out = append(out, c.handleStatement(ch))
	}
	return out
}

func (c *converter) handleCompound(node pc.Queryable) ast.CompoundStmt {
	pos := c.posOf(node)
	var stmts []ast.Statement
	for _, ch := range node.GetChildren() {
		if ch.GetName() == "stmts" {
			stmts = c.handleStatementList(ch)
		}
	}
	return ast.CompoundStmt{Pos: pos, Statements: stmts}
}

func (c *converter) handleStatement(node pc.Queryable) ast.Statement {
	pos := c.posOf(node)
	switch node.GetName() {
	case "empty_stmt":
		return ast.EmptyStmt{Pos: pos}
	case "compound_stmt":
		return c.handleCompound(node)
	case "var_decl_stmt":
		return c.handleVarDecl(node)
	case "return_stmt":
		kids := node.GetChildren()
		var expr ast.Expression
		if len(kids) > 1 && kids[1].GetName() != "SEMI" {
			expr = c.handleExpr(kids[1])
		}
		return ast.ReturnStmt{Pos: pos, Expr: expr}
	case "if_stmt":
		return c.handleIf(node)
	case "while_stmt":
		kids := node.GetChildren()
		return ast.WhileStmt{Pos: pos, Cond: c.handleExpr(kids[2]), Body: c.handleStatement(kids[4])}
	case "loop_stmt":
		kids := node.GetChildren()
		return ast.LoopStmt{Pos: pos, Body: c.handleStatement(kids[1])}
	case "for_stmt":
		return c.handleFor(node)
	case "match_stmt":
		return c.handleMatch(node)
	case "break_stmt":
		return ast.BreakStmt{Pos: pos}
	case "continue_stmt":
		return ast.ContinueStmt{Pos: pos}
	case "incdec_stmt":
		return c.handleIncDec(node.GetChildren()[0], pos)
	case "assign_stmt":
		return c.handleAssign(node.GetChildren()[0], pos)
	case "expr_stmt":
		kids := node.GetChildren()
		return ast.ExprStmt{Pos: pos, Expr: c.handleExpr(kids[0])}
	default:
		c.fail(node, "unrecognized statement node %q", node.GetName())
		return ast.EmptyStmt{Pos: pos}
	}
}

func (c *converter) handleVarDecl(node pc.Queryable) ast.VarDeclStmt {
	pos := c.posOf(node)
	v := ast.VarDeclStmt{Pos: pos}
	for _, ch := range node.GetChildren() {
		switch ch.GetName() {
		case "MUTABLE":
			v.Mutable = true
		case "IDENT":
			if v.Name == "" {
				v.Name = ch.GetValue()
			}
		case "type_ann":
			tc := ch.GetChildren()
			v.Type = c.handleType(tc[1])
		case "init":
			ic := ch.GetChildren()
			v.Init = c.handleExpr(ic[1])
		}
	}
	return v
}

func (c *converter) handleIf(node pc.Queryable) ast.IfStmt {
	pos := c.posOf(node)
	kids := node.GetChildren()
	stmt := ast.IfStmt{Pos: pos, Cond: c.handleExpr(kids[2]), Then: c.handleStatement(kids[4])}
	for _, ch := range kids[5:] {
		if ch.GetName() == "else_branch" {
			ec := ch.GetChildren()
			stmt.Else = c.handleStatement(ec[len(ec)-1])
		}
	}
	return stmt
}

func (c *converter) handleFor(node pc.Queryable) ast.ForStmt {
	pos := c.posOf(node)
	f := ast.ForStmt{Pos: pos}
	kids := node.GetChildren()
	idx := 2 // after FOR, LPAREN
	init := kids[idx]
	switch init.GetName() {
	case "var_decl_stmt":
		f.Init = c.handleVarDecl(init)
	case "assign":
		f.Init = c.handleAssign(init, c.posOf(init))
	default:
		f.Init = ast.EmptyStmt{Pos: c.posOf(init)}
	}
	idx++
	for idx < len(kids) && kids[idx].GetName() != "SEMI" {
		f.Cond = c.handleExpr(kids[idx])
		idx++
	}
	idx++ // consume SEMI
	for idx < len(kids) && kids[idx].GetName() != "RPAREN" {
		switch kids[idx].GetName() {
		case "incdec":
			f.Post = c.handleIncDec(kids[idx], c.posOf(kids[idx]))
		case "assign":
			f.Post = c.handleAssign(kids[idx], c.posOf(kids[idx]))
		}
		idx++
	}
	idx++ // RPAREN
	f.Body = c.handleStatement(kids[idx])
	return f
}

func (c *converter) handleMatch(node pc.Queryable) ast.MatchStmt {
	pos := c.posOf(node)
	m := ast.MatchStmt{Pos: pos}
	for _, ch := range node.GetChildren() {
		switch ch.GetName() {
		case "LPAREN", "RPAREN", "LBRACE", "RBRACE", "MATCH":
		case "arms":
			for _, arm := range ch.GetChildren() {
				if arm.GetName() == "match_arm" {
					m.Arms = append(m.Arms, c.handleMatchArm(arm))
				}
			}
		default:
			if m.Subject == nil {
				m.Subject = c.handleExpr(ch)
			}
		}
	}
	return m
}

func (c *converter) handleMatchArm(node pc.Queryable) ast.MatchArm {
	kids := node.GetChildren()
	var value ast.Expression
	if kids[0].GetName() != "ELSEARM" {
		value = c.handleExpr(kids[0])
	}
	body := c.handleStatement(kids[len(kids)-1])
	return ast.MatchArm{Value: value, Body: body}
}

func (c *converter) handleIncDec(node pc.Queryable, pos ast.Pos) ast.IncDecStmt {
	kids := node.GetChildren()
	op := kids[0].GetValue()
	return ast.IncDecStmt{Pos: pos, Op: op, Operand: c.handleExpr(kids[1])}
}

func (c *converter) handleAssign(node pc.Queryable, pos ast.Pos) ast.AssignStmt {
	kids := node.GetChildren()
	return ast.AssignStmt{Pos: pos, Lhs: c.handleExpr(kids[0]), Op: kids[1].GetValue(), Rhs: c.handleExpr(kids[2])}
}

// ---- expressions ----

// binaryChainLevels is the set of the nine grammar.And-built binary
// precedence productions (pkg/parser/grammar.go), so handleExpr can fold
// all of them with one routine instead of one per level.
var binaryChainLevels = map[string]bool{
	"logical_or": true, "logical_and": true, "bit_or": true, "bit_and": true,
	"shift": true, "equality": true, "relational": true, "additive": true, "multiplicative": true,
}

func (c *converter) handleExpr(node pc.Queryable) ast.Expression {
	if binaryChainLevels[node.GetName()] {
		return c.handleBinaryChain(node)
	}
	pos := c.posOf(node)
	switch node.GetName() {
	case "unary_op":
		kids := node.GetChildren()
		return ast.UnaryExpr{Pos: pos, Op: kids[0].GetValue(), Operand: c.handleExpr(kids[1])}
	case "sizeof_expr":
		kids := node.GetChildren()
		return ast.SizeofExpr{Pos: pos, Type: c.handleType(kids[2])}
	case "postfix":
		return c.handlePostfix(node)
	case "paren_expr":
		kids := node.GetChildren()
		return c.handleExpr(kids[1])
	case "new_expr":
		return c.handleNew(node)
	case "delete_expr":
		kids := node.GetChildren()
		return ast.DeleteExpr{Pos: pos, Operand: c.handleExpr(kids[1])}
	case "ref_expr":
		kids := node.GetChildren()
		return ast.RefExpr{Pos: pos, Operand: c.handleExpr(kids[1])}
	case "builtin_macro":
		return c.handleBuiltinMacro(node)
	case "array_literal":
		var elems []ast.Expression
		for _, ch := range node.GetChildren() {
			if ch.GetName() == "elems" {
				for _, e := range ch.GetChildren() {
					elems = append(elems, c.handleExpr(e))
				}
			}
		}
		return ast.ArrayLiteralExpr{Pos: pos, Elements: elems}
	case "class_literal":
		return c.handleClassLiteral(node)
	case "float_lit":
		kids := node.GetChildren()
		val, suffix := splitNumericSuffix(kids[0].GetValue())
		return ast.FloatLiteral{Pos: pos, Value: val, Suffix: suffix}
	case "int_lit":
		kids := node.GetChildren()
		val, suffix := splitNumericSuffix(kids[0].GetValue())
		return ast.IntLiteral{Pos: pos, Value: val, Suffix: suffix}
	case "string_lit":
		kids := node.GetChildren()
		return ast.StringLiteral{Pos: pos, Value: []rune(unquote(kids[0].GetValue()))}
	case "char_lit":
		kids := node.GetChildren()
		r := []rune(unquoteChar(kids[0].GetValue()))
		var v rune
		if len(r) > 0 {
			v = r[0]
		}
		return ast.CharLiteral{Pos: pos, Value: v}
	case "true_lit":
		return ast.BoolLiteral{Pos: pos, Value: true}
	case "false_lit":
		return ast.BoolLiteral{Pos: pos, Value: false}
	case "null_lit":
		return ast.NullLiteral{Pos: pos}
	case "ident_expr":
		kids := node.GetChildren()
		return ast.IdentExpr{Pos: pos, Name: kids[0].GetValue()}
	case "root_ident_expr":
		kids := node.GetChildren()
		return ast.RootIdentExpr{Pos: pos, Name: kids[1].GetValue()}
	default:
		c.fail(node, "unrecognized expression node %q", node.GetName())
		return ast.NullLiteral{Pos: pos}
	}
}

func (c *converter) handleBinaryChain(node pc.Queryable) ast.Expression {
	kids := node.GetChildren()
	expr := c.handleExpr(kids[0])
	if len(kids) < 2 {
		return expr
	}
	for _, restGroup := range kids[1:] {
		if restGroup.GetName() != "rest" {
			continue
		}
		for _, rhs := range restGroup.GetChildren() {
			rc := rhs.GetChildren()
			op := firstLeafValue(rc[0])
			rhsExpr := c.handleExpr(rc[1])
			expr = ast.BinaryExpr{Pos: c.posOf(rhs), Op: op, Lhs: expr, Rhs: rhsExpr}
		}
	}
	return expr
}

func (c *converter) handlePostfix(node pc.Queryable) ast.Expression {
	kids := node.GetChildren()
	expr := c.handleExpr(kids[0])
	for _, group := range kids[1:] {
		if group.GetName() != "postfix_ops" {
			continue
		}
		for _, op := range group.GetChildren() {
			expr = c.applyPostfixOp(expr, op)
		}
	}
	return expr
}

func (c *converter) applyPostfixOp(base ast.Expression, op pc.Queryable) ast.Expression {
	pos := c.posOf(op)
	kids := op.GetChildren()
	switch op.GetName() {
	case "member_op":
		return ast.MemberExpr{Pos: pos, Base: base, Member: kids[1].GetValue()}
	case "scope_op":
		return ast.ScopeExpr{Pos: pos, Base: base, Member: kids[1].GetValue()}
	case "index_op":
		return ast.SubscriptExpr{Pos: pos, Base: base, Index: c.handleExpr(kids[1])}
	case "call_op":
		return ast.CallExpr{Pos: pos, Callee: base, Args: c.handleArgList(kids, "args")}
	case "template_call_op":
		var typeArgs []ast.TypeRef
		for _, k := range kids {
			if k.GetName() == "type_args" {
				for _, t := range k.GetChildren() {
					typeArgs = append(typeArgs, c.handleType(t))
				}
			}
		}
		return ast.TemplateCallExpr{Pos: pos, Callee: base, TypeArgs: typeArgs, Args: c.handleArgList(kids, "args")}
	case "pipeline_op":
		return ast.PipelineExpr{Pos: pos, Lhs: base, Rhs: c.handleExpr(kids[1])}
	case "cast_op":
		return ast.CastExpr{Pos: pos, Operand: base, Target: c.handleType(kids[1])}
	default:
		c.fail(op, "unrecognized postfix operator %q", op.GetName())
		return base
	}
}

func (c *converter) handleArgList(kids []pc.Queryable, groupName string) []ast.Expression {
	var args []ast.Expression
	for _, k := range kids {
		if k.GetName() == groupName {
			for _, a := range k.GetChildren() {
				args = append(args, c.handleExpr(a))
			}
		}
	}
	return args
}

func (c *converter) handleNew(node pc.Queryable) ast.NewExpr {
	pos := c.posOf(node)
	kids := node.GetChildren()
	n := ast.NewExpr{Pos: pos, Type: c.handleType(kids[1])}
	for _, k := range kids[2:] {
		if k.GetName() == "new_args" {
			n.Args = c.handleArgList(k.GetChildren(), "args")
		}
	}
	return n
}

func (c *converter) handleBuiltinMacro(node pc.Queryable) ast.BuiltinMacroExpr {
	pos := c.posOf(node)
	kids := node.GetChildren()
	name := kids[1].GetValue()
	return ast.BuiltinMacroExpr{Pos: pos, Name: name, Args: c.handleArgList(kids, "args")}
}

func (c *converter) handleClassLiteral(node pc.Queryable) ast.ClassLiteralExpr {
	pos := c.posOf(node)
	kids := node.GetChildren()
	lit := ast.ClassLiteralExpr{Pos: pos, Type: ast.NamedTypeRef{Pos: pos, Path: []string{kids[0].GetValue()}}}
	for _, k := range kids {
		if k.GetName() == "fields" {
			for _, f := range k.GetChildren() {
				if f.GetName() == "field" {
					fc := f.GetChildren()
					lit.Fields = append(lit.Fields, ast.ClassLiteralField{Name: fc[0].GetValue(), Value: c.handleExpr(fc[2])})
				}
			}
		}
	}
	return lit
}

// ---- literal helpers ----

func splitNumericSuffix(raw string) (value, suffix string) {
	for _, s := range []string{"u8", "u16", "u32", "u64", "i8", "i16", "i32", "i64", "f32", "f64"} {
		if strings.HasSuffix(raw, s) {
			return strings.TrimSuffix(raw, s), s
		}
	}
	return raw, ""
}

func unquote(raw string) string {
	s := strings.TrimPrefix(raw, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return s
}

func unquoteChar(raw string) string {
	s := strings.TrimPrefix(raw, `'`)
	s = strings.TrimSuffix(s, `'`)
	return unquote(`"` + s + `"`)
}

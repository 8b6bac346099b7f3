package parser

import (
	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Grammar combinators
//
// Grounded on pkg/jack/parsing.go and pkg/vm/parsing.go: one
// parser-combinator tree built from goparsec's And/OrdChoice/Kleene/Many
// primitives, with individual tokens expressed as pc.Atom/pc.Token leaves
// (see pIdent, pDot, pSemi, ... there). We keep the same leaf-token style
// and generalize the production set from Jack's fixed class/method/do/
// return/literal grammar.
//
// 'grammar' plays the role of package-level 'ast' var (the
// *pc.AST builder); it is named differently here only to avoid shadowing
// this compiler's own pkg/ast.
var grammar = pc.NewAST("translation_unit", 0)

// ---- lexical atoms ----

var (
	pIdent = pc.Token(`[A-Za-z_][0-9a-zA-Z_]*`, "IDENT")

	pIntLit    = pc.Token(`[0-9]+(u8|u16|u32|u64|i8|i16|i32|i64)?`, "INT")
	pFloatLit  = pc.Token(`[0-9]+\.[0-9]+(f32|f64)?`, "FLOAT")
	pStringLit = pc.Token(`"(?:\\.|[^"\\])*"`, "STRING")
	pCharLit   = pc.Token(`'(?:\\.|[^'\\])'`, "CHAR")

	pComment = grammar.OrdChoice("comment", nil,
		grammar.And("sl_comment", nil, pc.Atom("//", "SLCOMMENT"), pc.Token(`(?m).*$`, "COMMENTTEXT")),
		pMLComment,
	)

	pLBrace   = pc.Atom("{", "LBRACE")
	pRBrace   = pc.Atom("}", "RBRACE")
	pLParen   = pc.Atom("(", "LPAREN")
	pRParen   = pc.Atom(")", "RPAREN")
	pLBracket = pc.Atom("[", "LBRACKET")
	pRBracket = pc.Atom("]", "RBRACKET")
	pLDBrack  = pc.Atom("[[", "LDBRACKET")
	pRDBrack  = pc.Atom("]]", "RDBRACKET")

	pSemi   = pc.Atom(";", "SEMI")
	pComma  = pc.Atom(",", "COMMA")
	pColon  = pc.Atom(":", "COLON")
	pDColon = pc.Atom("::", "DCOLON")
	pDot    = pc.Atom(".", "DOT")
	pArrow  = pc.Atom("->", "ARROW")
	pFatArr = pc.Atom("=>", "FATARROW")
	pPipe2  = pc.Atom("|>", "PIPELINE")

	pAssign   = pc.Atom("=", "ASSIGN")
	pPlusEq   = pc.Atom("+=", "PLUSEQ")
	pMinusEq  = pc.Atom("-=", "MINUSEQ")
	pStarEq   = pc.Atom("*=", "STAREQ")
	pSlashEq  = pc.Atom("/=", "SLASHEQ")
	pPercEq   = pc.Atom("%=", "PERCEQ")
	pIncr     = pc.Atom("++", "INCR")
	pDecr     = pc.Atom("--", "DECR")

	pLogOr  = pc.Atom("||", "LOGOR")
	pLogAnd = pc.Atom("&&", "LOGAND")
	pEq     = pc.Atom("==", "EQ")
	pNe     = pc.Atom("!=", "NE")
	pLe     = pc.Atom("<=", "LE")
	pGe     = pc.Atom(">=", "GE")
	pLt     = pc.Atom("<", "LT")
	pGt     = pc.Atom(">", "GT")
	pShl    = pc.Atom("<<", "SHL")
	pShr    = pc.Atom(">>", "SHR")
	pPlus   = pc.Atom("+", "PLUS")
	pMinus  = pc.Atom("-", "MINUS")
	pStar   = pc.Atom("*", "STAR")
	pSlash  = pc.Atom("/", "SLASH")
	pPerc   = pc.Atom("%", "PERC")
	pBang   = pc.Atom("!", "BANG")
	pAmp    = pc.Atom("&", "AMP")
	pPipe   = pc.Atom("|", "PIPE")
	pAt     = pc.Atom("@", "AT")

	// Keywords
	kClass, kFunc, kVar, kMutable          = pc.Atom("class", "CLASS"), pc.Atom("func", "FUNC"), pc.Atom("var", "VAR"), pc.Atom("mutable", "MUTABLE")
	kRet, kIf, kElse, kWhile               = pc.Atom("ret", "RET"), pc.Atom("if", "IF"), pc.Atom("else", "ELSE"), pc.Atom("while", "WHILE")
	kFor, kLoop, kMatch, kBreak, kContinue = pc.Atom("for", "FOR"), pc.Atom("loop", "LOOP"), pc.Atom("match", "MATCH"), pc.Atom("break", "BREAK"), pc.Atom("continue", "CONTINUE")
	kImport, kNamespace                    = pc.Atom("import", "IMPORT"), pc.Atom("namespace", "NAMESPACE")
	kPublic, kPrivate, kExtern              = pc.Atom("public", "PUBLIC"), pc.Atom("private", "PRIVATE"), pc.Atom("extern", "EXTERN")
	kNew, kDelete, kRef, kAs, kSizeof       = pc.Atom("new", "NEW"), pc.Atom("delete", "DELETE"), pc.Atom("ref", "REF"), pc.Atom("as", "AS"), pc.Atom("sizeof", "SIZEOF")
	kTrue, kFalse, kNull                   = pc.Atom("true", "TRUE"), pc.Atom("false", "FALSE"), pc.Atom("null", "NULL")
	kUnion, kTypedef, kElseArm             = pc.Atom("union", "UNION"), pc.Atom("typedef", "TYPEDEF"), pc.Atom("else", "ELSEARM")

	kBuiltinKind = grammar.OrdChoice("builtin_kind", nil,
		pc.Atom("void", "VOID"), pc.Atom("bool", "BOOL"),
		pc.Atom("i8", "I8"), pc.Atom("u8", "U8"), pc.Atom("i16", "I16"), pc.Atom("u16", "U16"),
		pc.Atom("i32", "I32"), pc.Atom("u32", "U32"), pc.Atom("i64", "I64"), pc.Atom("u64", "U64"),
		pc.Atom("f32", "F32"), pc.Atom("f64", "F64"), pc.Atom("char", "CHAR_T"),
	)
)

// ---- nested block comments ----
//
// "*/" closes the innermost still-open "/*", so a comment body is "any run
// of characters, except that a nested '/*' opens another comment that must
// itself close before this one can" -- not expressible as a single regex
// token (RE2 has no recursion), so it's built the same way recursive
// grammar rules elsewhere in this file are: a Kleene/ManyUntil loop over a
// forward self-reference, one character at a time. pMLItem tries a nested
// pMLCommentRef before falling back to a single MLCHAR, and
// grammar.ManyUntil checks pMLClose before each pMLItem attempt, so "*/" is
// recognized and consumed as the terminator rather than read char-by-char.
var (
	pMLOpen  = pc.Atom("/*", "MLOPEN")
	pMLClose = pc.Atom("*/", "MLCLOSE")
	pMLChar  = pc.Token(`(?s).`, "MLCHAR")
)

// pMLCommentRef breaks the self-recursion a nesting-aware comment body
// needs, the same late-binding trick as pExprRef/pStatementRef below.
var pMLCommentRef pc.Parser

var (
	pMLItem        = grammar.OrdChoice("ml_item", nil, pMLCommentRef, pMLChar)
	pMLCommentBody = grammar.ManyUntil("ml_body", nil, pMLItem, pMLClose)
	pMLComment     = grammar.And("ml_comment", nil, pMLOpen, pMLCommentBody)
)

func init() {
	pMLCommentRef = pMLComment
}

// ---- attribute lists: [[a, b]] ----

var pAttrList = grammar.And("attr_list", nil,
	pLDBrack, grammar.Kleene("attrs", nil, pIdent, pComma), pRDBrack,
)

// ---- types ----

var (
	pType = grammar.OrdChoice("type", nil, pArrayType, pPointerType, pReferenceType, pTemplateType, pNamedType, pBuiltinType)

	pBuiltinType = grammar.And("builtin_type", nil, kBuiltinKind)

	pNamedType = grammar.And("named_type", nil, pIdent, grammar.Kleene("qualifiers", nil, grammar.And("qseg", nil, pDColon, pIdent)))

	pTemplateType = grammar.And("template_type", nil, pIdent, pLt, grammar.Kleene("type_args", nil, pType, pComma), pGt)

	pPointerType = grammar.And("pointer_type", nil, grammar.Many("stars", nil, pStar, nil), pTypeNoPtr)

	pReferenceType = grammar.And("reference_type", nil, pAmp, pTypeNoPtr)

	pArrayType = grammar.And("array_type", nil, pLBracket, pIntLit, pRBracket, pType)
)

// pTypeNoPtr excludes pPointerType itself, avoiding left recursion while
// still letting pointer-to-pointer be expressed (each '*' re-enters via
// pPointerType's own Many("stars", ...) loop instead of nested pType calls).
var pTypeNoPtr = grammar.OrdChoice("type_noptr", nil, pArrayType, pReferenceType, pTemplateType, pNamedType, pBuiltinType)

// ---- expressions (precedence low -> high, PEG ordered choice) ----

var (
	pExpr = pLogicalOr

	pLogicalOr  = grammar.And("logical_or", nil, pLogicalAnd, grammar.Kleene("rest", nil, grammar.And("rhs", nil, pLogOr, pLogicalAnd)))
	pLogicalAnd = grammar.And("logical_and", nil, pBitOr, grammar.Kleene("rest", nil, grammar.And("rhs", nil, pLogAnd, pBitOr)))
	pBitOr      = grammar.And("bit_or", nil, pBitAnd, grammar.Kleene("rest", nil, grammar.And("rhs", nil, pPipe, pBitAnd)))
	pBitAnd     = grammar.And("bit_and", nil, pShift, grammar.Kleene("rest", nil, grammar.And("rhs", nil, pAmp, pShift)))
	pShift      = grammar.And("shift", nil, pEquality, grammar.Kleene("rest", nil, grammar.And("rhs", nil, grammar.OrdChoice("shiftop", nil, pShl, pShr), pEquality)))
	pEquality   = grammar.And("equality", nil, pRelational, grammar.Kleene("rest", nil, grammar.And("rhs", nil, grammar.OrdChoice("eqop", nil, pEq, pNe), pRelational)))
	pRelational = grammar.And("relational", nil, pAdditive, grammar.Kleene("rest", nil, grammar.And("rhs", nil, grammar.OrdChoice("relop", nil, pLe, pGe, pLt, pGt), pAdditive)))
	pAdditive   = grammar.And("additive", nil, pMultiplicative, grammar.Kleene("rest", nil, grammar.And("rhs", nil, grammar.OrdChoice("addop", nil, pPlus, pMinus), pMultiplicative)))

	pMultiplicative = grammar.And("multiplicative", nil, pUnary, grammar.Kleene("rest", nil, grammar.And("rhs", nil, grammar.OrdChoice("mulop", nil, pStar, pSlash, pPerc), pUnary)))

	pUnary = grammar.OrdChoice("unary", nil,
		grammar.And("unary_op", nil, grammar.OrdChoice("uop", nil, pPlus, pMinus, pBang, pStar, pAmp), pUnary),
		grammar.And("sizeof_expr", nil, kSizeof, pLParen, pType, pRParen),
		pPostfix,
	)

	pPostfixOp = grammar.OrdChoice("postfix_op", nil,
		grammar.And("template_call_op", nil, pLt, grammar.Kleene("type_args", nil, pType, pComma), pGt, pLParen, grammar.Kleene("args", nil, pExprRef, pComma), pRParen),
		grammar.And("call_op", nil, pLParen, grammar.Kleene("args", nil, pExprRef, pComma), pRParen),
		grammar.And("index_op", nil, pLBracket, pExprRef, pRBracket),
		grammar.And("member_op", nil, pDot, pIdent),
		grammar.And("scope_op", nil, pDColon, pIdent),
		grammar.And("pipeline_op", nil, pPipe2, pPostfix),
		grammar.And("cast_op", nil, kAs, pType),
	)

	pPostfix = grammar.And("postfix", nil, pPrimary, grammar.Kleene("postfix_ops", nil, pPostfixOp))

	pPrimary = grammar.OrdChoice("primary", nil,
		grammar.And("paren_expr", nil, pLParen, pExprRef, pRParen),
		grammar.And("new_expr", nil, kNew, pType, pc.Maybe(nil, grammar.And("new_args", nil, pLParen, grammar.Kleene("args", nil, pExprRef, pComma), pRParen))),
		grammar.And("delete_expr", nil, kDelete, pExprRef),
		grammar.And("ref_expr", nil, kRef, pExprRef),
		grammar.And("builtin_macro", nil, pAt, pIdent, pLParen, grammar.Kleene("args", nil, pExprRef, pComma), pRParen),
		grammar.And("array_literal", nil, pLBracket, grammar.Kleene("elems", nil, pExprRef, pComma), pRBracket),
		grammar.And("class_literal", nil, pIdent, pLBrace, grammar.Kleene("fields", nil, grammar.And("field", nil, pIdent, pColon, pExprRef), pComma), pRBrace),
		grammar.And("float_lit", nil, pFloatLit),
		grammar.And("int_lit", nil, pIntLit),
		grammar.And("string_lit", nil, pStringLit),
		grammar.And("char_lit", nil, pCharLit),
		grammar.And("true_lit", nil, kTrue),
		grammar.And("false_lit", nil, kFalse),
		grammar.And("null_lit", nil, kNull),
		grammar.And("root_ident_expr", nil, pDColon, pIdent),
		grammar.And("ident_expr", nil, pIdent),
	)
)

// pExprRef breaks the mutual-recursion cycle between pPrimary/pPostfixOp and
// pExpr: goparsec combinators are built bottom-up as Go values, so the
// topmost pExpr (built from pLogicalOr down to pPrimary) cannot be
// referenced by name inside pPrimary's own literal before it exists. We
// install the real pExpr into this indirection after grammar construction,
// in init() below (the same "late binding" trick grammar
// never needed, since Jack's expression grammar in pkg/jack/parsing.go was
// shallow enough to not recurse back to itself through statements).
var pExprRef pc.Parser

func init() {
	pExprRef = pExpr
}

// ---- statements ----

var (
	pStatement = grammar.OrdChoice("statement", nil,
		pCompoundStmt, pVarDeclStmt, pReturnStmt, pIfStmt, pWhileStmt, pForStmt, pLoopStmt,
		pMatchStmt, pBreakStmt, pContinueStmt, pIncDecStmt, pAssignStmt, pExprStmt, pEmptyStmt,
	)

	pEmptyStmt = grammar.And("empty_stmt", nil, pSemi)

	pCompoundStmt = grammar.And("compound_stmt", nil, pLBrace,
		grammar.Kleene("stmts", nil, grammar.OrdChoice("stmt_or_comment", nil, pStatementRef, pComment)), pRBrace)

	pVarDeclStmt = grammar.And("var_decl_stmt", nil,
		kVar, pc.Maybe(nil, kMutable), pIdent,
		pc.Maybe(nil, grammar.And("type_ann", nil, pColon, pType)),
		pc.Maybe(nil, grammar.And("init", nil, pAssign, pExprRef)),
		pSemi,
	)

	pReturnStmt = grammar.And("return_stmt", nil, kRet, pc.Maybe(nil, pExprRef), pSemi)

	pIfStmt = grammar.And("if_stmt", nil,
		kIf, pLParen, pExprRef, pRParen, pStatementRef,
		pc.Maybe(nil, grammar.And("else_branch", nil, kElse, pStatementRef)),
	)

	pWhileStmt = grammar.And("while_stmt", nil, kWhile, pLParen, pExprRef, pRParen, pStatementRef)

	pLoopStmt = grammar.And("loop_stmt", nil, kLoop, pStatementRef)

	pForStmt = grammar.And("for_stmt", nil,
		kFor, pLParen,
		grammar.OrdChoice("for_init", nil, pVarDeclStmt, pAssignStmt, pEmptyStmt), pc.Maybe(nil, pExprRef), pSemi,
		pc.Maybe(nil, grammar.OrdChoice("for_post", nil, pIncDecStmtNoSemi, pAssignStmtNoSemi)),
		pRParen, pStatementRef,
	)

	pMatchArm = grammar.And("match_arm", nil,
		grammar.OrdChoice("arm_head", nil, kElseArm, pExprRef), pFatArr, pStatementRef,
	)
	pMatchStmt = grammar.And("match_stmt", nil,
		kMatch, pLParen, pExprRef, pRParen, pLBrace,
		grammar.Kleene("arms", nil, pMatchArm, pComma),
		pRBrace,
	)

	pBreakStmt    = grammar.And("break_stmt", nil, kBreak, pSemi)
	pContinueStmt = grammar.And("continue_stmt", nil, kContinue, pSemi)

	pIncDecStmtNoSemi = grammar.And("incdec", nil, grammar.OrdChoice("idop", nil, pIncr, pDecr), pExprRef)
	pIncDecStmt       = grammar.And("incdec_stmt", nil, pIncDecStmtNoSemi, pSemi)

	pAssignStmtNoSemi = grammar.And("assign", nil,
		pExprRef, grammar.OrdChoice("assignop", nil, pPlusEq, pMinusEq, pStarEq, pSlashEq, pPercEq, pAssign), pExprRef,
	)
	pAssignStmt = grammar.And("assign_stmt", nil, pAssignStmtNoSemi, pSemi)

	pExprStmt = grammar.And("expr_stmt", nil, pExprRef, pSemi)
)

// pStatementRef resolves the same mutual-recursion problem as pExprRef:
// compound/if/while/for/loop/match all need to embed a Statement before
// pStatement (built from their own combination) exists as a Go value.
var pStatementRef pc.Parser

func init() {
	pStatementRef = pStatement
}

// ---- top-level items ----

var (
	pParam = grammar.And("param", nil, pIdent, pColon, pType)

	pTemplateParams = pc.Maybe(nil, grammar.And("template_params", nil, pLt, grammar.Kleene("names", nil, pIdent, pComma), pGt))

	pFuncSignature = grammar.And("func_sig", nil,
		pc.Maybe(nil, kExtern),
		kFunc, pIdent, pTemplateParams,
		pLParen, grammar.Kleene("params", nil, pParam, pComma), pRParen,
		pc.Maybe(nil, grammar.And("ret_type", nil, pArrow, pType)),
	)

	pFuncDef = grammar.And("func_def", nil, pc.Maybe(nil, pAttrList), pFuncSignature, pCompoundStmtRef)
	pFuncDecl = grammar.And("func_decl", nil, pc.Maybe(nil, pAttrList), pFuncSignature, pSemi)

	pAccessLabel = grammar.And("access_label", nil, grammar.OrdChoice("access_kw", nil, kPublic, kPrivate), pColon)

	pFieldDecl = grammar.And("field_decl", nil, kVar, pIdent, pColon, pType, pSemi)

	pClassMember = grammar.OrdChoice("class_member", nil, pAccessLabel, pFuncDef, pFieldDecl, pComment)

	pClassBody = grammar.And("class_body", nil, pLBrace, grammar.Kleene("members", nil, pClassMember), pRBrace)

	pClassDef = grammar.And("class_def", nil, pc.Maybe(nil, pAttrList), kClass, pIdent, pTemplateParams, pClassBody)

	pUnionVariant = grammar.And("union_variant", nil, pIdent, pColon, pType, pSemi)
	pUnionDef     = grammar.And("union_def", nil, pc.Maybe(nil, pAttrList), kUnion, pIdent, pTemplateParams, pLBrace, grammar.Kleene("variants", nil, pUnionVariant), pRBrace)

	pTypedefDecl = grammar.And("typedef_decl", nil, pc.Maybe(nil, pAttrList), kTypedef, pIdent, pAssign, pType, pSemi)

	pImportDecl = grammar.And("import_decl", nil, pc.Maybe(nil, pAttrList), kImport, pStringLit, pSemi)

	pNamespaceDecl = grammar.And("namespace_decl", nil,
		pc.Maybe(nil, pAttrList), kNamespace, pIdent, pLBrace,
		grammar.Kleene("items", nil, grammar.OrdChoice("item_or_comment", nil, pTopLevelRef, pComment)), pRBrace,
	)

	pTopLevel = grammar.OrdChoice("top_level", nil,
		pImportDecl, pNamespaceDecl, pUnionDef, pTypedefDecl, pClassDef, pFuncDef, pFuncDecl,
	)

	// pRecover consumes one "junk" run up to the next statement/brace
	// boundary when no real production matches, implementing the
	// synchronization half of error policy directly as a PEG
	// fallback arm (ordered last, per goparsec's choice semantics) rather
	// than needing low-level scanner-cursor manipulation.
	pRecover = grammar.And("recover_junk", nil, pc.Token(`[^;{}]*[;{}]`, "JUNK"))

	// pComment is tried before pRecover so a free-standing comment at top
	// level is skipped as a comment, not swallowed as junk.
	pProgram = grammar.Kleene("program", nil, grammar.OrdChoice("item_or_junk", nil, pTopLevelRef, pComment, pRecover))
)

var pCompoundStmtRef pc.Parser
var pTopLevelRef pc.Parser

func init() {
	pCompoundStmtRef = pCompoundStmt
	pTopLevelRef = pTopLevel
}

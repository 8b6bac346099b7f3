package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	llvmtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/backend"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/token"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// LowerStmt lowers one statement, mutating c.Block/c.Func as
// it opens/closes basic blocks. It is the statement-level counterpart of
// LowerExpr, dispatching the same way HandleStatement does
// (pkg/jack/lowering.go) but over 15 statement kinds instead of Jack's 6 and
// against SSA blocks instead of stack-VM opcodes.
func (c *Context) LowerStmt(s ast.Statement) error {
	switch stmt := s.(type) {
	case ast.EmptyStmt:
		return nil

	case ast.CompoundStmt:
		return c.lowerCompound(stmt)

	case ast.ExprStmt:
		_, _, err := c.LowerExpr(stmt.Expr)
		return err

	case ast.ReturnStmt:
		return c.lowerReturn(stmt)

	case ast.VarDeclStmt:
		return c.lowerVarDecl(stmt)

	case ast.AssignStmt:
		return c.lowerAssign(stmt)

	case ast.IncDecStmt:
		return c.lowerIncDec(stmt)

	case ast.IfStmt:
		return c.lowerIf(stmt)

	case ast.LoopStmt:
		return c.lowerLoop(stmt)

	case ast.WhileStmt:
		return c.lowerWhile(stmt)

	case ast.ForStmt:
		return c.lowerFor(stmt)

	case ast.MatchStmt:
		return c.lowerMatch(stmt)

	case ast.BreakStmt:
		return c.lowerBreak(stmt)

	case ast.ContinueStmt:
		return c.lowerContinue(stmt)

	case ast.MemberInitStmt:
		return c.lowerMemberInit(stmt)

	default:
		return c.errorf(token.NodeID(0), "unrecognized statement: %T", s)
	}
}

// lowerCompound pushes a fresh lexical scope, lowers every statement in
// order, and drains the scope's locals through their destructors on the way
// out, unless the block already ended in a return/break/
// continue — in which case the drain already happened at that exit point
// and anything after it is unreachable.
func (c *Context) lowerCompound(stmt ast.CompoundStmt) error {
	c.Scopes.Push("")
	var bodyErr error
	for _, inner := range stmt.Statements {
		if c.Block.Term != nil {
			break // dead code after an exit statement
		}
		if err := c.LowerStmt(inner); err != nil {
			bodyErr = err
			break
		}
	}
	entries := c.Scopes.Pop().Entries()
	if bodyErr != nil {
		return bodyErr
	}
	if c.Block.Term == nil {
		for i := len(entries) - 1; i >= 0; i-- {
			c.emitDestructorCall(c.Block, entries[i])
		}
	}
	return nil
}

func (c *Context) lowerReturn(stmt ast.ReturnStmt) error {
	entries := c.Scopes.EntriesFrom(0)
	if stmt.Expr != nil {
		val, t, err := c.LowerExpr(stmt.Expr)
		if err != nil {
			return err
		}
		coerced, err := c.coerce(val, t, c.ReturnType, stmt.Pos.ID)
		if err != nil {
			return err
		}
		c.Block.NewStore(coerced, c.ReturnSlot)
	}
	chain := c.buildDestructChain(entries, c.ReturnBlock)
	c.branchTo(c.Block, chain)
	return nil
}

// lowerVarDecl allocates storage for a new local in the function's entry
// block
// regardless of which nested block is currently being lowered, stores its
// initial value (or a zero value if none is given), and declares it in the
// innermost open scope.
func (c *Context) lowerVarDecl(stmt ast.VarDeclStmt) error {
	var declType types.Type
	var initVal value.Value
	var initType types.Type

	if stmt.Init != nil {
		v, t, err := c.LowerExpr(stmt.Init)
		if err != nil {
			return err
		}
		initVal, initType = v, t
	}

	if stmt.Type != nil {
		t, err := c.ResolveStorageType(stmt.Type)
		if err != nil {
			return err
		}
		declType = t
	} else if initType != nil {
		declType = initType
	} else {
		return c.errorf(stmt.Pos.ID, "variable %q needs either an explicit type or an initializer", stmt.Name)
	}

	llvmT, err := c.lowerTypeAllowingClasses(declType)
	if err != nil {
		return err
	}
	entry := c.Func.Blocks[0]
	slot := entry.NewAlloca(llvmT)
	slot.SetName(stmt.Name)

	if initVal != nil {
		coerced, cerr := c.coerce(initVal, initType, declType, stmt.Pos.ID)
		if cerr != nil {
			return cerr
		}
		c.Block.NewStore(coerced, slot)
	} else {
		c.Block.NewStore(zeroOf(llvmT), slot)
	}

	bt, _ := types.Decay(declType).(types.Builtin)
	c.Scopes.Insert(sema.Variable{
		Name:    stmt.Name,
		Type:    declType,
		Mutable: stmt.Mutable,
		Signed:  bt.Kind.IsSigned(),
		Handle:  value.Value(slot),
	})
	return nil
}

func (c *Context) lowerAssign(stmt ast.AssignStmt) error {
	addr, lhsType, err := c.lowerLValue(stmt.Lhs)
	if err != nil {
		return err
	}
	rhsVal, rhsType, err := c.LowerExpr(stmt.Rhs)
	if err != nil {
		return err
	}

	if stmt.Op == "=" {
		coerced, cerr := c.coerce(rhsVal, rhsType, lhsType, stmt.Pos.ID)
		if cerr != nil {
			return cerr
		}
		c.Block.NewStore(coerced, addr)
		return nil
	}

	llvmLhsType, err := c.lowerTypeAllowingClasses(lhsType)
	if err != nil {
		return err
	}
	current := c.Block.NewLoad(llvmLhsType, addr)
	op := stmt.Op[:len(stmt.Op)-1] // "+=" -> "+"
	result, resultType, err := c.applyBinaryOp(stmt.Pos.ID, op, current, lhsType, rhsVal, rhsType)
	if err != nil {
		return err
	}
	coerced, cerr := c.coerce(result, resultType, lhsType, stmt.Pos.ID)
	if cerr != nil {
		return cerr
	}
	c.Block.NewStore(coerced, addr)
	return nil
}

func (c *Context) lowerIncDec(stmt ast.IncDecStmt) error {
	addr, t, err := c.lowerLValue(stmt.Operand)
	if err != nil {
		return err
	}
	llvmT, err := c.lowerTypeAllowingClasses(t)
	if err != nil {
		return err
	}
	current := c.Block.NewLoad(llvmT, addr)

	bt, ok := types.Decay(t).(types.Builtin)
	if !ok {
		return c.errorf(stmt.Pos.ID, "%q requires a builtin operand", stmt.Op)
	}
	oneVal := oneConstant(llvmT)
	op := "+"
	if stmt.Op == "--" {
		op = "-"
	}
	result, _, err := c.applyBinaryOp(stmt.Pos.ID, op, current, bt, oneVal, bt)
	if err != nil {
		return err
	}
	c.Block.NewStore(result, addr)
	return nil
}

func oneConstant(t llvmtypes.Type) value.Value {
	switch tt := t.(type) {
	case *llvmtypes.IntType:
		return constant.NewInt(tt, 1)
	case *llvmtypes.FloatType:
		return constant.NewFloat(tt, 1)
	default:
		return constant.NewInt(llvmtypes.I32, 1)
	}
}

func (c *Context) lowerIf(stmt ast.IfStmt) error {
	cond, _, err := c.LowerExpr(stmt.Cond)
	if err != nil {
		return err
	}
	truthy := c.truthy(cond)
	startBlk := c.Block

	thenBlk := c.newBlock("if.then")
	endBlk := c.newBlock("if.end")
	var elseBlk *ir.Block

	if stmt.Else != nil {
		elseBlk = c.newBlock("if.else")
		startBlk.NewCondBr(truthy, thenBlk, elseBlk)
	} else {
		startBlk.NewCondBr(truthy, thenBlk, endBlk)
	}

	c.Block = thenBlk
	if err := c.LowerStmt(stmt.Then); err != nil {
		return err
	}
	c.branchTo(c.Block, endBlk)

	if stmt.Else != nil {
		c.Block = elseBlk
		if err := c.LowerStmt(stmt.Else); err != nil {
			return err
		}
		c.branchTo(c.Block, endBlk)
	}

	c.Block = endBlk
	return nil
}

// lowerLoop handles the unbounded 'loop { ... }' construct: 'continue'
// re-enters the body, 'break' exits to the block following the loop.
func (c *Context) lowerLoop(stmt ast.LoopStmt) error {
	headerBlk := c.newBlock("loop.body")
	afterBlk := c.newBlock("loop.end")
	c.branchTo(c.Block, headerBlk)

	c.Block = headerBlk
	c.pushLoop(headerBlk, afterBlk)
	err := c.LowerStmt(stmt.Body)
	c.popLoop()
	if err != nil {
		return err
	}
	c.branchTo(c.Block, headerBlk)

	c.Block = afterBlk
	return nil
}

func (c *Context) lowerWhile(stmt ast.WhileStmt) error {
	headerBlk := c.newBlock("while.cond")
	bodyBlk := c.newBlock("while.body")
	afterBlk := c.newBlock("while.end")
	c.branchTo(c.Block, headerBlk)

	c.Block = headerBlk
	cond, _, err := c.LowerExpr(stmt.Cond)
	if err != nil {
		return err
	}
	c.Block.NewCondBr(c.truthy(cond), bodyBlk, afterBlk)

	c.Block = bodyBlk
	c.pushLoop(headerBlk, afterBlk)
	err = c.LowerStmt(stmt.Body)
	c.popLoop()
	if err != nil {
		return err
	}
	c.branchTo(c.Block, headerBlk)

	c.Block = afterBlk
	return nil
}

func (c *Context) lowerFor(stmt ast.ForStmt) error {
	c.Scopes.Push("for")
	defer c.Scopes.Pop()

	if stmt.Init != nil {
		if err := c.LowerStmt(stmt.Init); err != nil {
			return err
		}
	}

	headerBlk := c.newBlock("for.cond")
	bodyBlk := c.newBlock("for.body")
	postBlk := c.newBlock("for.post")
	afterBlk := c.newBlock("for.end")
	c.branchTo(c.Block, headerBlk)

	c.Block = headerBlk
	if stmt.Cond != nil {
		cond, _, err := c.LowerExpr(stmt.Cond)
		if err != nil {
			return err
		}
		c.Block.NewCondBr(c.truthy(cond), bodyBlk, afterBlk)
	} else {
		c.Block.NewBr(bodyBlk)
	}

	c.Block = bodyBlk
	c.pushLoop(postBlk, afterBlk)
	err := c.LowerStmt(stmt.Body)
	c.popLoop()
	if err != nil {
		return err
	}
	c.branchTo(c.Block, postBlk)

	c.Block = postBlk
	if stmt.Post != nil {
		if err := c.LowerStmt(stmt.Post); err != nil {
			return err
		}
	}
	c.branchTo(c.Block, headerBlk)

	c.Block = afterBlk
	return nil
}

// lowerMatch lowers a match statement as a sequential chain of equality
// comparisons against the subject, the same way a cascading if/else-if would
// be lowered — the language has no jump-table requirement, so there is no
// need for a switch-instruction-based implementation. The default arm
// (Value == nil) runs last if reached.
func (c *Context) lowerMatch(stmt ast.MatchStmt) error {
	subjectVal, subjectType, err := c.LowerExpr(stmt.Subject)
	if err != nil {
		return err
	}
	endBlk := c.newBlock("match.end")

	var defaultArm *ast.MatchArm
	for i := range stmt.Arms {
		arm := stmt.Arms[i]
		if arm.Value == nil {
			defaultArm = &stmt.Arms[i]
			continue
		}
		armVal, armType, err := c.LowerExpr(arm.Value)
		if err != nil {
			return err
		}
		_, _, cmp, err := c.rawEquality(stmt.Pos.ID, subjectVal, subjectType, armVal, armType)
		if err != nil {
			return err
		}

		matchBlk := c.newBlock("match.arm")
		nextBlk := c.newBlock("match.next")
		c.Block.NewCondBr(cmp, matchBlk, nextBlk)

		c.Block = matchBlk
		if err := c.LowerStmt(arm.Body); err != nil {
			return err
		}
		c.branchTo(c.Block, endBlk)

		c.Block = nextBlk
	}

	if defaultArm != nil {
		if err := c.LowerStmt(defaultArm.Body); err != nil {
			return err
		}
	}
	c.branchTo(c.Block, endBlk)

	c.Block = endBlk
	return nil
}

// rawEquality compares two already-lowered values for equality, reusing
// applyBinaryOp's builtin-vs-pointer handling, and unwraps the resulting i8
// boolean back down to i1 for use directly as a branch condition.
func (c *Context) rawEquality(node token.NodeID, lhs value.Value, lhsType types.Type, rhs value.Value, rhsType types.Type) (value.Value, types.Type, value.Value, error) {
	result, resultType, err := c.applyBinaryOp(node, "==", lhs, lhsType, rhs, rhsType)
	if err != nil {
		return nil, nil, nil, err
	}
	return result, resultType, c.truthy(result), nil
}

func (c *Context) lowerBreak(stmt ast.BreakStmt) error {
	loop, ok := c.currentLoop()
	if !ok {
		return c.errorf(stmt.Pos.ID, "'break' outside of a loop")
	}
	entries := c.Scopes.EntriesFrom(loop.scopeDepth)
	chain := c.buildDestructChain(entries, loop.breakTarget)
	c.branchTo(c.Block, chain)
	return nil
}

func (c *Context) lowerContinue(stmt ast.ContinueStmt) error {
	loop, ok := c.currentLoop()
	if !ok {
		return c.errorf(stmt.Pos.ID, "'continue' outside of a loop")
	}
	entries := c.Scopes.EntriesFrom(loop.scopeDepth)
	chain := c.buildDestructChain(entries, loop.continueTarget)
	c.branchTo(c.Block, chain)
	return nil
}

// lowerMemberInit lowers a compiler-synthesized 'this.field = value'
// assignment run at constructor entry, before the user-written body
//. 'this' must already be bound in scope by
// the constructor prelude (see toplevel.go's lowerConstructor).
func (c *Context) lowerMemberInit(stmt ast.MemberInitStmt) error {
	thisVar, ok := c.Scopes.Resolve("this")
	if !ok {
		return c.errorf(stmt.Pos.ID, "member-init statement outside of a constructor")
	}
	ptr, ok := types.Decay(thisVar.Type).(types.Pointer)
	if !ok {
		return c.errorf(stmt.Pos.ID, "'this' has non-pointer type in member-init")
	}
	ud, ok := types.Decay(ptr.Pointee).(types.UserDefined)
	if !ok {
		return c.errorf(stmt.Pos.ID, "'this' does not refer to a class type")
	}
	class, ok := c.Reg.Classes.Get(ud.Name)
	if !ok {
		return c.errorf(stmt.Pos.ID, "unknown class %q", ud.Name)
	}
	idx, ok := class.FieldIndex(stmt.Field)
	if !ok {
		return c.errorf(stmt.Pos.ID, "class %q has no field %q", ud.Name, stmt.Field)
	}
	st, ok := c.StructTypes[ud.Name]
	if !ok {
		return c.errorf(stmt.Pos.ID, "class %q has no lowered layout yet", ud.Name)
	}

	slot, ok := thisVar.Handle.(value.Value)
	if !ok {
		return c.errorf(stmt.Pos.ID, "'this' has no addressable storage")
	}
	llvmThisType, err := c.lowerTypeAllowingClasses(thisVar.Type)
	if err != nil {
		return err
	}
	selfPtr := c.Block.NewLoad(llvmThisType, slot)

	var fieldType types.Type
	for _, m := range class.Members {
		if m.Name == stmt.Field {
			fieldType = m.Type
		}
	}

	val, vt, err := c.LowerExpr(stmt.Value)
	if err != nil {
		return err
	}
	coerced, err := c.coerce(val, vt, fieldType, stmt.Pos.ID)
	if err != nil {
		return err
	}

	addr := c.Block.NewGetElementPtr(st, selfPtr, constant.NewInt(llvmtypes.I32, 0), constant.NewInt(llvmtypes.I32, int64(idx)))
	c.Block.NewStore(coerced, addr)
	return nil
}

package codegen

import (
	"github.com/llir/llvm/ir"

	"github.com/kestrel-lang/kestrelc/pkg/mangle"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// emitDestructorCall appends a call to 'v's class destructor (if it has one)
// into 'blk', in keeping with reverse-declaration-order
// invocation rule. Non-class-typed variables and classes without a
// registered destructor are silently skipped — there is nothing to run.
func (c *Context) emitDestructorCall(blk *ir.Block, v sema.Variable) {
	if v.NoDestruct {
		return
	}
	// Class instances are always accessed through the pointer 'new' returns
	//, so a class-typed
	// local's static type is Pointer{Pointee: UserDefined}, not a bare
	// UserDefined — unwrap exactly one level of pointer before checking.
	vt := types.Decay(v.Type)
	if ptr, ok := vt.(types.Pointer); ok {
		vt = types.Decay(ptr.Pointee)
	}
	ud, ok := vt.(types.UserDefined)
	if !ok {
		return
	}
	if _, isClass := c.Reg.Classes.Get(ud.Name); !isClass {
		return
	}

	mangled := mangle.Mangle(classFrames(ud.Name), "", 0, mangle.KindDestructor, nil)
	fn, ok := c.Funcs[mangled]
	if !ok {
		return
	}

	slot, ok := v.Handle.(*ir.InstAlloca)
	if !ok {
		return
	}
	self := blk.NewLoad(slot.ElemType, slot)
	blk.NewCall(fn, self)
}

// buildDestructChain synthesizes one basic block that drains 'entries' in
// reverse-declaration order and branches into 'target'. One such block is
// created per drain site (a return, break, or continue), not one per lexical
// scope — see DESIGN.md's Open Question note on why this collapses
// per-scope destruct blocks into per-drain-site ones without changing the
// draining order or observable behavior.
func (c *Context) buildDestructChain(entries []sema.Variable, target *ir.Block) *ir.Block {
	if len(entries) == 0 {
		return target
	}
	blk := c.newBlock("destruct")
	for i := len(entries) - 1; i >= 0; i-- {
		c.emitDestructorCall(blk, entries[i])
	}
	blk.NewBr(target)
	return blk
}

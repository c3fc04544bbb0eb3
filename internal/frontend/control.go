package frontend

import "github.com/watc-project/watc/internal/ssa"

// Block begins a `block` structured-control construct with the given
// param/result types (already resolved from the Wasm blocktype immediate by
// the caller).
func (t *Translator) Block(paramTypes, resultTypes []ssa.Type) {
	if !t.reachable() {
		t.cs.push(controlFrame{kind: frameKindBlock})
		return
	}
	follow := t.b.CreateBlock()
	for _, r := range resultTypes {
		t.b.AppendBlockParam(follow, r)
	}
	t.cs.push(controlFrame{
		kind:                frameKindBlock,
		paramTypes:          paramTypes,
		resultTypes:         resultTypes,
		followUpBlock:       follow,
		originalStackHeight: t.vs.len() - len(paramTypes),
		live:                true,
		reachable:           true,
	})
}

// Loop begins a `loop` construct: unlike Block, branches targeting it via
// `br` re-enter at its header rather than exiting past it.
func (t *Translator) Loop(paramTypes, resultTypes []ssa.Type) {
	if !t.reachable() {
		t.cs.push(controlFrame{kind: frameKindLoop})
		return
	}
	header := t.b.CreateBlock()
	for _, p := range paramTypes {
		t.b.AppendBlockParam(header, p)
	}
	args := make([]ssa.Value, len(paramTypes))
	for i := range args {
		args[i] = t.vs.peekAt(len(paramTypes) - 1 - i)
	}
	ssa.EmitJump(t.b, header, args...)
	t.vs.truncate(t.vs.len() - len(paramTypes))
	for i := range paramTypes {
		t.vs.push(t.b.BasicBlock(header).Param(i))
	}

	follow := t.b.CreateBlock()
	for _, r := range resultTypes {
		t.b.AppendBlockParam(follow, r)
	}

	t.b.SetCurrentBlock(header)
	t.b.SetLoopHeader(header)
	t.cs.push(controlFrame{
		kind:                frameKindLoop,
		paramTypes:          paramTypes,
		resultTypes:         resultTypes,
		headerBlock:         header,
		followUpBlock:       follow,
		originalStackHeight: t.vs.len() - len(paramTypes),
		live:                true,
		reachable:           true,
	})
}

// If begins an `if` construct, consuming the condition already on top of the
// value stack.
func (t *Translator) If(paramTypes, resultTypes []ssa.Type) {
	if !t.reachable() {
		t.cs.push(controlFrame{kind: frameKindIf})
		return
	}
	cond := t.vs.pop()

	thenBlock := t.b.CreateBlock()
	elseBlock := t.b.CreateBlock()
	follow := t.b.CreateBlock()
	for _, p := range paramTypes {
		t.b.AppendBlockParam(thenBlock, p)
		t.b.AppendBlockParam(elseBlock, p)
	}
	for _, r := range resultTypes {
		t.b.AppendBlockParam(follow, r)
	}

	args := make([]ssa.Value, len(paramTypes))
	for i := range args {
		args[i] = t.vs.peekAt(len(paramTypes) - 1 - i)
	}
	ssa.EmitBrz(t.b, cond, elseBlock, args, thenBlock, args)

	t.b.Seal(thenBlock)
	t.b.Seal(elseBlock)

	t.vs.truncate(t.vs.len() - len(paramTypes))
	for i := range paramTypes {
		t.vs.push(t.b.BasicBlock(thenBlock).Param(i))
	}
	t.b.SetCurrentBlock(thenBlock)

	t.cs.push(controlFrame{
		kind:                frameKindIf,
		paramTypes:          paramTypes,
		resultTypes:         resultTypes,
		followUpBlock:       follow,
		elseBlock:           elseBlock,
		originalStackHeight: t.vs.len() - len(paramTypes),
		live:                true,
		reachable:           true,
		reachableFromTop:    true,
	})
}

// Else switches translation from an `if` construct's then-arm to its
// else-arm.
func (t *Translator) Else() {
	f := t.cs.top()
	if f.kind != frameKindIf {
		panic("BUG: else outside if frame")
	}
	f.sawElse = true
	if !f.live {
		// The if itself was never reachable: there's no real elseBlock to
		// switch to either.
		return
	}
	// An explicit else claims the condition branch's false edge for
	// itself, so it no longer represents an implicit path straight to the
	// merge point.
	f.reachableFromTop = false
	if f.reachable {
		t.branchToFollowUp(f)
	}
	t.vs.truncate(f.originalStackHeight)
	t.b.SetCurrentBlock(f.elseBlock)
	f.reachable = true // elseBlock always has exactly one predecessor: the original if/else branch.
	for i := range f.paramTypes {
		t.vs.push(t.b.BasicBlock(f.elseBlock).Param(i))
	}
}

// branchToFollowUp emits the Jump merging the current reachable arm's
// top-of-stack results into f's follow-up block.
func (t *Translator) branchToFollowUp(f *controlFrame) {
	n := len(f.resultTypes)
	args := make([]ssa.Value, n)
	for i := range args {
		args[i] = t.vs.peekAt(n - 1 - i)
	}
	ssa.EmitJump(t.b, f.followUpBlock, args...)
}

// End closes the innermost control frame, merging control flow into its
// follow-up block (or, for a function body's implicit outermost frame,
// finishing the function).
//
// Reachability here mirrors a single running flag, not one independently
// owned per frame: once this frame's own body goes unreachable, whether
// translation resumes producing real IR for the code that follows depends
// entirely on whether this frame's exit is still reachable some other way
// (branchedToExit, or — for a still-elseless If — reachableFromTop). If
// neither holds, the code after this `end`, at the parent's nesting level,
// stays unreachable too, exactly as if the divergence had happened there
// directly; that state is written back into the parent frame below.
func (t *Translator) End() {
	f := t.cs.pop()

	if !f.live {
		if t.cs.len() > 0 {
			t.cs.top().reachable = false
		}
		return
	}

	if f.reachable {
		t.branchToFollowUp(&f)
	}

	if f.kind == frameKindIf && !f.sawElse {
		// No explicit else: synthesize one that forwards the block's
		// params straight through, which only typechecks when params and
		// results agree — guaranteed by Wasm's rule that a no-else `if`
		// requires paramTypes == resultTypes.
		t.b.SetCurrentBlock(f.elseBlock)
		args := make([]ssa.Value, len(f.paramTypes))
		copy(args, t.b.BasicBlock(f.elseBlock).Params())
		ssa.EmitJump(t.b, f.followUpBlock, args...)
	}

	revive := f.reachable || f.branchedToExit
	switch f.kind {
	case frameKindIf:
		revive = revive || f.reachableFromTop
	case frameKindLoop:
		// A branch naming a loop's depth re-enters its header, never its
		// exit, so only a normal fallthrough can leave the follow-up
		// reachable.
		revive = f.reachable
		t.b.Seal(f.headerBlock)
	}

	t.vs.truncate(f.originalStackHeight)

	if revive {
		t.b.Seal(f.followUpBlock)
		t.b.SetCurrentBlock(f.followUpBlock)
		for i := range f.resultTypes {
			t.vs.push(t.b.BasicBlock(f.followUpBlock).Param(i))
		}
	}

	if t.cs.len() > 0 {
		t.cs.top().reachable = revive
	}
}

// Br translates an unconditional branch to the frame `depth` levels up the
// control stack.
func (t *Translator) Br(depth uint32) {
	if !t.reachable() {
		return
	}
	f := t.cs.at(depth)
	target, argTypes := f.branchTarget()
	args := make([]ssa.Value, len(argTypes))
	for i := range args {
		args[i] = t.vs.peekAt(len(argTypes) - 1 - i)
	}
	ssa.EmitJump(t.b, target, args...)
	f.branchedToExit = true
	t.markUnreachable()
}

// BrIf translates a conditional branch: if the popped condition is
// non-zero, branch to depth; otherwise fall through with the value stack
// unchanged. Because SSA needs a real two-way terminator here, a fresh
// "continue" block is created for the fallthrough arm.
func (t *Translator) BrIf(depth uint32) {
	if !t.reachable() {
		return
	}
	cond := t.vs.pop()
	f := t.cs.at(depth)
	target, argTypes := f.branchTarget()
	args := make([]ssa.Value, len(argTypes))
	for i := range args {
		args[i] = t.vs.peekAt(len(argTypes) - 1 - i)
	}
	f.branchedToExit = true

	cont := t.b.CreateBlock()
	ssa.EmitBrz(t.b, cond, cont, nil, target, args)
	t.b.Seal(cont)
	t.b.SetCurrentBlock(cont)
}

// BrTable translates a `br_table`: depths gives one target depth per case
// plus, as its last element, the default depth. Two distinct entries in
// depths can legally name the same target with arguments that need not
// match syntactically (though they must agree after SSA resolves them) — but
// a single BrTable's target resolution does a first-match lookup by block,
// so two raw BlockCall entries aimed at the same real block would collapse
// to one set of arguments, silently dropping the other. Any depth whose
// frame takes branch arguments is therefore routed through a dedicated
// edge-block instead: one per unique depth, holding nothing but a single
// Jump carrying that depth's real argument list to the real destination, so
// the table itself only ever aims at most once per block per argument
// requirement. Depths whose frame takes no arguments (loops re-entering with
// zero values, or a zero-result block/if) are jump-table targets directly,
// since there is nothing for a duplicate to drop.
func (t *Translator) BrTable(depths []uint32) {
	if !t.reachable() {
		return
	}
	index := t.vs.pop()

	targets := make([]ssa.BasicBlockID, len(depths))
	edgeBlocks := map[uint32]ssa.BasicBlockID{}
	for i, d := range depths {
		f := t.cs.at(d)
		target, argTypes := f.branchTarget()
		f.branchedToExit = true

		if len(argTypes) == 0 {
			targets[i] = target
			continue
		}

		edge, ok := edgeBlocks[d]
		if !ok {
			edge = t.b.CreateBlock()
			edgeBlocks[d] = edge

			args := make([]ssa.Value, len(argTypes))
			for j := range args {
				args[j] = t.vs.peekAt(len(argTypes) - 1 - j)
			}
			cur := t.b.CurrentBlock()
			t.b.SetCurrentBlock(edge)
			ssa.EmitJump(t.b, target, args...)
			t.b.Seal(edge)
			t.b.SetCurrentBlock(cur)
		}
		targets[i] = edge
	}
	// Every entry in targets is now either a real destination that itself
	// takes no arguments, or an edge-block that takes none either (it
	// recovers the real arguments from the outer scope directly in its own
	// Jump) — so the table dispatch itself always passes zero args per
	// target.
	ssa.EmitBrTable(t.b, index, targets, make([][]ssa.Value, len(targets)))
	t.markUnreachable()
}

// Return translates a `return`.
func (t *Translator) Return(resultCount int) {
	if !t.reachable() {
		return
	}
	args := make([]ssa.Value, resultCount)
	for i := range args {
		args[i] = t.vs.peekAt(resultCount - 1 - i)
	}
	ssa.EmitReturn(t.b, args...)
	t.markUnreachable()
}

// Unreachable translates the `unreachable` opcode: an immediate,
// unconditional trap.
func (t *Translator) Unreachable() {
	if !t.reachable() {
		return
	}
	ssa.EmitTrap(t.b, ssa.TrapCodeUnreachable)
	t.markUnreachable()
}

package ssa

import "github.com/watc-project/watc/internal/pool"

// LayoutBlocks orders the function's reachable blocks into the sequence the
// backend will emit machine code in, splitting every critical edge (an edge
// from a block with multiple successors to a block with multiple
// predecessors) into its own trampoline block first, since the ABI engine
// and register-allocator move scheduler both need a single place to put
// per-edge shuffle code.
//
// The returned order tries to place each block's most likely successor
// immediately after it (so the backend can elide an explicit jump), using
// maybeInvertBranches to swap a conditional branch's arms when doing so
// would let the fallthrough land on the block already next in program
// order; a loop's back-edge target is never treated as the preferred
// fallthrough successor, since loop bodies are expected to run many more
// times than the path that exits them.
func (b *builder) LayoutBlocks() []BasicBlock {
	b.splitCriticalEdges()
	b.maybeInvertBranches()

	order := b.reversePostorder()
	out := make([]BasicBlock, 0, len(order)+1)
	for _, id := range order {
		if id == basicBlockIDReturnBlock {
			continue
		}
		out = append(out, b.block(id))
	}
	// The return block is reached in the reverse-postorder walk through
	// Return edges, wherever those happen to put it; it is skipped above and
	// emitted exactly once here, always last.
	if ret := b.block(basicBlockIDReturnBlock); ret.root != nil || ret.tail != nil || len(ret.preds) > 0 {
		out = append(out, ret)
	}
	b.markFallthroughJumps(out)
	return out
}

// splitCriticalEdges finds every edge from a multi-successor block to a
// multi-predecessor block and rewrites it to pass through a fresh
// single-purpose block, so the move scheduler placing register-shuffle code
// for that edge never accidentally affects a different edge sharing the same
// source or target block. Wasm's br_table is the primary source of these:
// each case typically shares its target with the table's default arm.
func (b *builder) splitCriticalEdges() {
	// Snapshot blocks to iterate since we append new ones as we go.
	n := len(b.blocks)
	for srcID := 0; srcID < n; srcID++ {
		src := b.block(BasicBlockID(srcID))
		if src.invalid || len(src.succs) < 2 {
			continue
		}
		tail := src.tail
		if tail == nil || !tail.IsBranching() {
			continue
		}
		for ti := range tail.targets {
			targetID := tail.targets[ti].Block
			target := b.block(targetID)
			if len(target.preds) < 2 {
				continue
			}
			trampoline := b.insertTrampoline(src.id, tail, ti, targetID)
			tail.targets[ti].Block = trampoline
		}
	}
}

// insertTrampoline creates a new block that does nothing but forward
// branchInstr's ti-th BlockCall args on to originalTarget via an
// unconditional Jump, and rewires originalTarget's predecessor bookkeeping
// to point at the trampoline instead of from.
func (b *builder) insertTrampoline(from BasicBlockID, branchInstr *Instruction, ti int, originalTarget BasicBlockID) BasicBlockID {
	trampolineID := b.CreateBlock()
	trampoline := b.block(trampolineID)
	trampoline.sealed = true

	args := b.valueSlicePool.View(branchInstr.targets[ti].Args)
	argsCopy := append([]Value(nil), args...)

	jump := b.instrPool.Allocate()
	jump.opcode = OpcodeJump
	jump.rValue = ValueInvalid
	jump.vs = pool.InvalidSliceID
	jump.rValues = pool.InvalidSliceID
	jump.targets = []BlockCall{{Block: originalTarget, Args: b.valueSlicePool.Append(argsCopy...)}}
	jump.blk = trampolineID
	jump.live = true
	trampoline.root, trampoline.tail = jump, jump

	// Move the predecessor entry on originalTarget from `from`'s branch to
	// the trampoline's jump.
	target := b.block(originalTarget)
	for i := range target.preds {
		if target.preds[i].blk.id == from && target.preds[i].branch == branchInstr {
			target.preds[i] = basicBlockPredecessorInfo{blk: trampoline, branch: jump}
			break
		}
	}
	trampoline.preds = []basicBlockPredecessorInfo{{blk: b.block(from), branch: branchInstr}}

	src := b.block(from)
	for i, s := range src.succs {
		if s.id == originalTarget {
			src.succs[i] = trampoline
			break
		}
	}
	trampoline.succs = []*basicBlock{target}

	return trampolineID
}

// maybeInvertBranches swaps a Brz/Brnz's "taken" and "fallthrough" framing
// when its current layout would otherwise make a loop's continuation branch
// skip over the loop body: a block ending in a 2-way conditional where one
// arm targets a loop header that dominates the block itself is rewritten so
// the non-header arm is visited first in reverse postorder, favoring the
// loop body as the statistically hot path.
func (b *builder) maybeInvertBranches() {
	for i := range b.blocks {
		blk := &b.blocks[i]
		if blk.invalid {
			continue
		}
		tail := blk.tail
		if tail == nil || len(tail.targets) != 2 {
			continue
		}
		if tail.opcode != OpcodeBrz && tail.opcode != OpcodeBrnz {
			continue
		}
		t0, t1 := tail.targets[0].Block, tail.targets[1].Block
		if b.block(t1).loopHeader && b.Dominates(t1, blk.id) && !b.block(t0).loopHeader {
			tail.targets[0], tail.targets[1] = tail.targets[1], tail.targets[0]
			if tail.opcode == OpcodeBrz {
				tail.opcode = OpcodeBrnz
			} else {
				tail.opcode = OpcodeBrz
			}
		}
	}
}

// markFallthroughJumps sets the fallthrough marker (u2 = 1) on any
// unconditional Jump instruction whose sole target is the block immediately
// following it in order; layout has already decided the final order by the
// time this runs, so it is always called last.
func (b *builder) markFallthroughJumps(order []BasicBlock) {
	for i, blk := range order {
		if i == len(order)-1 {
			continue
		}
		bb := blk.(*basicBlock)
		tail := bb.tail
		if tail == nil || tail.opcode != OpcodeJump || len(tail.targets) != 1 {
			continue
		}
		if tail.targets[0].Block == order[i+1].ID() {
			tail.u2 = 1 // fallthroughMarker; the backend's runBody repeats this next-block check itself.
		}
	}
}

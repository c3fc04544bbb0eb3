package ssa

// RunPasses performs the fixed post-construction cleanup the translator
// always runs, in a fixed order: none of these steps ever change the
// function's observable behavior or its code quality beyond what "emit each
// Wasm operator's obvious contract" already gives you. There is
// deliberately no constant-folding or algebraic-simplification pass here —
// producing optimized code is out of scope.
func (b *builder) RunPasses() {
	b.passDeadBlockElimination()
	b.passRedundantPhiElimination()
	b.passCalculateDominators()
	b.passLoopDetection()
	b.passDeadCodeElimination()
	b.passSortSuccessors()
}

// passDeadBlockElimination marks every block unreachable from the entry
// block (block 1 — block 0 is the synthetic return block and is reached only
// via Return branches, never used as a DFS root) as invalid, so later passes
// and LayoutBlocks skip it. A block can become unreachable when the
// translator drops an entire region following an unconditional branch
// (Wasm's "unreachable code after br/return/unreachable" rule).
func (b *builder) passDeadBlockElimination() {
	if len(b.blocks) == 0 {
		return
	}
	visited := make([]bool, len(b.blocks))
	var stack []BasicBlockID
	entry := BasicBlockID(1)
	if int(entry) < len(b.blocks) {
		stack = append(stack, entry)
	}
	visited[basicBlockIDReturnBlock] = true

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		blk := b.block(id)
		for _, s := range blk.succs {
			if !visited[s.id] {
				stack = append(stack, s.id)
			}
		}
	}

	for i := range b.blocks {
		if !visited[i] {
			b.blocks[i].invalid = true
		}
	}
}

// passRedundantPhiElimination re-runs trivial-parameter elimination over
// every sealed block. Builder.Seal already does this incrementally as each
// block finalizes, but a later Seal can make an earlier block's parameter
// newly trivial (once all of ITS predecessors are known), so one final sweep
// catches anything Seal's online version missed.
func (b *builder) passRedundantPhiElimination() {
	for i := range b.blocks {
		blk := &b.blocks[i]
		if blk.invalid || !blk.sealed {
			continue
		}
		b.eliminateTrivialParams(blk)
	}
}

// passCalculateDominators computes each reachable block's immediate
// dominator using the Cooper/Harvey/Kennedy "A Simple, Fast Dominance
// Algorithm": a reverse-postorder DFS numbering followed by an iterative
// fixed-point walk that intersects each block's currently-known dominator
// with each processed predecessor's, converging because idom assignments
// only ever move toward the entry block along the reverse-postorder number
// line.
func (b *builder) passCalculateDominators() {
	n := len(b.blocks)
	b.dominators = make([]BasicBlockID, n)
	for i := range b.dominators {
		b.dominators[i] = BasicBlockID(n) // sentinel: "unvisited"
	}

	rpo := b.reversePostorder()
	b.reversePostOrder = rpo

	rpoIndex := make(map[BasicBlockID]int, len(rpo))
	for i, id := range rpo {
		rpoIndex[id] = i
	}

	if len(rpo) == 0 {
		return
	}
	entry := rpo[0]
	b.dominators[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, id := range rpo[1:] {
			blk := b.block(id)
			var newIdom BasicBlockID = BasicBlockID(n)
			hasIdom := false
			for _, p := range blk.preds {
				pid := p.blk.id
				if b.dominators[pid] == BasicBlockID(n) {
					continue // predecessor not yet processed this round
				}
				if !hasIdom {
					newIdom = pid
					hasIdom = true
					continue
				}
				newIdom = b.intersect(newIdom, pid, rpoIndex)
			}
			if hasIdom && b.dominators[id] != newIdom {
				b.dominators[id] = newIdom
				changed = true
			}
		}
	}
}

func (b *builder) intersect(a, c BasicBlockID, rpoIndex map[BasicBlockID]int) BasicBlockID {
	for a != c {
		for rpoIndex[a] > rpoIndex[c] {
			a = b.dominators[a]
		}
		for rpoIndex[c] > rpoIndex[a] {
			c = b.dominators[c]
		}
	}
	return a
}

// reversePostorder returns every block reachable from the entry block, in
// reverse postorder, with the entry block first, visiting each block's
// successors in their stored order. Within RunPasses it runs (via
// passCalculateDominators) before passSortSuccessors, so successors are
// still in construction order there; LayoutBlocks calls it after the sort.
func (b *builder) reversePostorder() []BasicBlockID {
	if len(b.blocks) <= 1 {
		return nil
	}
	entry := BasicBlockID(1)
	if b.block(entry).invalid {
		return nil
	}

	visited := make([]bool, len(b.blocks))
	var order []BasicBlockID

	type frame struct {
		id   BasicBlockID
		next int
	}
	stack := []frame{{id: entry}}
	visited[entry] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		blk := b.block(top.id)
		if top.next < len(blk.succs) {
			s := blk.succs[top.next]
			top.next++
			if !visited[s.id] {
				visited[s.id] = true
				stack = append(stack, frame{id: s.id})
			}
			continue
		}
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
	}

	// order is postorder; reverse it in place.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// passLoopDetection marks a block as a loop header when one of its
// predecessors is dominated by it — i.e. the edge from that predecessor is a
// back-edge.
func (b *builder) passLoopDetection() {
	for i := range b.blocks {
		blk := &b.blocks[i]
		if blk.invalid {
			continue
		}
		for _, p := range blk.preds {
			if b.Dominates(blk.id, p.blk.id) {
				blk.loopHeader = true
				break
			}
		}
	}
}

// passDeadCodeElimination removes every instruction with no remaining use
// and no side effect, via a worklist seeded from every strictly
// side-effecting instruction (stores, calls, traps, and every branch), and
// assigns each surviving instruction an InstructionGroupID: a new group
// begins after each side-effecting instruction, so instructions sharing a
// group are known to have no ordering constraint relative to one another.
func (b *builder) passDeadCodeElimination() {
	live := map[ValueID]bool{}
	var worklist []*Instruction

	markArgs := func(instr *Instruction) {
		for _, v := range instr.Args(b) {
			if v.Valid() && !live[v.ID()] {
				live[v.ID()] = true
			}
		}
		// A branch's (or Return's) BlockCall arguments are uses too.
		for _, t := range instr.targets {
			for _, v := range b.valueSlicePool.View(t.Args) {
				if v.Valid() {
					live[v.ID()] = true
				}
			}
		}
	}

	for i := range b.blocks {
		blk := &b.blocks[i]
		if blk.invalid {
			continue
		}
		for instr := blk.root; instr != nil; instr = instr.next {
			if hasSideEffect(instr.opcode) {
				worklist = append(worklist, instr)
				markArgs(instr)
			}
		}
	}

	// Propagate liveness backward: any instruction whose result is live gets
	// its own args marked live, until the worklist (implicitly, via the
	// `live` set growing) stabilizes. Because Values are produced before
	// they are used, a single backward sweep per block in reverse program
	// order reaches a fixed point without a separate explicit queue.
	for pass := 0; pass < 2; pass++ {
		for i := range b.blocks {
			blk := &b.blocks[i]
			if blk.invalid {
				continue
			}
			for instr := blk.tail; instr != nil; instr = instr.prev {
				if instr.rValue.Valid() && !live[instr.rValue.ID()] {
					continue
				}
				markArgs(instr)
			}
		}
	}

	gid := InstructionGroupID(0)
	for i := range b.blocks {
		blk := &b.blocks[i]
		if blk.invalid {
			continue
		}
		var newRoot, newTail *Instruction
		for instr := blk.root; instr != nil; {
			next := instr.next
			keep := hasSideEffect(instr.opcode) || instr.IsBranching() ||
				(instr.rValue.Valid() && live[instr.rValue.ID()]) ||
				instr.rValues.Valid()
			if !keep {
				instr.live = false
				instr = next
				continue
			}
			instr.gid = gid
			if hasSideEffect(instr.opcode) {
				gid++
			}
			instr.prev, instr.next = newTail, nil
			if newRoot == nil {
				newRoot = instr
			} else {
				newTail.next = instr
			}
			newTail = instr
			instr = next
		}
		blk.root, blk.tail = newRoot, newTail
	}
}

func hasSideEffect(op Opcode) bool {
	switch op {
	case OpcodeStore, OpcodeCall, OpcodeCallIndirect, OpcodeTrap, OpcodeTrapz, OpcodeTrapnz,
		OpcodeHeapAddr:
		return true
	default:
		return false
	}
}

// passSortSuccessors orders each block's successor list so that, wherever a
// block ends in a conditional branch, the fallthrough-eligible target (the
// one LayoutBlocks will try to place immediately after) is visited first by
// any later pass that walks successors in order; LayoutBlocks itself decides
// the actual fallthrough target; this pass only needs a stable, deterministic
// order so two compilations of the same function lay out identically.
func (b *builder) passSortSuccessors() {
	for i := range b.blocks {
		blk := &b.blocks[i]
		if len(blk.succs) < 2 {
			continue
		}
		succs := blk.succs
		for i := 1; i < len(succs); i++ {
			j := i
			for j > 0 && succs[j-1].id > succs[j].id {
				succs[j-1], succs[j] = succs[j], succs[j-1]
				j--
			}
		}
	}
}

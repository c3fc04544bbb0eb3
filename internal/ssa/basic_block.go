package ssa

import (
	"fmt"
	"strings"
)

// BasicBlockID is a dense handle for a BasicBlock, valid only within the
// Function that created it.
type BasicBlockID uint32

const basicBlockIDReturnBlock BasicBlockID = 0

// String implements fmt.Stringer.
func (b BasicBlockID) String() string { return fmt.Sprintf("blk%d", b) }

// BasicBlock is a maximal straight-line run of instructions terminated by
// exactly one branching instruction (or, for the function's unique return
// block, by nothing at all). Parameters on a BasicBlock stand in for the
// phi nodes a classical SSA construction would place here; see
// Builder.FindValue for how they get populated on the fly.
type BasicBlock interface {
	ID() BasicBlockID
	Params() []Value
	Param(i int) Value
	Root() *Instruction
	Tail() *Instruction
	Valid() bool
	Sealed() bool
	LoopHeader() bool
	ReturnBlock() bool
	Preds() int
	Pred(i int) BasicBlock
	Succs() int
	Succ(i int) BasicBlock
	FormatHeader(b Builder) string
}

type basicBlockPredecessorInfo struct {
	blk    *basicBlock
	branch *Instruction
}

type basicBlock struct {
	id         BasicBlockID
	params     []Value
	root, tail *Instruction

	preds []basicBlockPredecessorInfo
	succs []*basicBlock

	sealed      bool
	invalid     bool
	loopHeader  bool
	returnBlock bool

	// lastDefinitions maps a Variable to the Value most recently defined for
	// it within this block, used to short-circuit FindValue once a local
	// definition shadows any predecessor's.
	lastDefinitions map[Variable]Value
	// unknownValues records block-parameter placeholders created eagerly for
	// an unsealed block, to be resolved once all its predecessors are known;
	// see Builder.Seal.
	unknownValues map[Variable]Value

	// singlePred caches the one predecessor of a block with exactly one, to
	// speed up the extremely common straight-line case in FindValue.
	singlePred *basicBlock
}

func (bb *basicBlock) ID() BasicBlockID    { return bb.id }
func (bb *basicBlock) Params() []Value     { return bb.params }
func (bb *basicBlock) Param(i int) Value   { return bb.params[i] }
func (bb *basicBlock) Root() *Instruction  { return bb.root }
func (bb *basicBlock) Tail() *Instruction  { return bb.tail }
func (bb *basicBlock) Valid() bool         { return !bb.invalid }
func (bb *basicBlock) Sealed() bool        { return bb.sealed }
func (bb *basicBlock) LoopHeader() bool    { return bb.loopHeader }
func (bb *basicBlock) ReturnBlock() bool   { return bb.returnBlock }
func (bb *basicBlock) Preds() int          { return len(bb.preds) }
func (bb *basicBlock) Succs() int          { return len(bb.succs) }

func (bb *basicBlock) Pred(i int) BasicBlock { return bb.preds[i].blk }
func (bb *basicBlock) Succ(i int) BasicBlock { return bb.succs[i] }

// addParam appends a new block parameter of the given type and returns the
// Value allocated for it; the builder is responsible for allocating the
// Value via its value pool.
func (bb *basicBlock) addParam(b *builder, typ Type) Value {
	v := b.allocateValue(typ)
	bb.params = append(bb.params, v)
	return v
}

// insertInstruction appends instr to the block's instruction list, wiring
// prev/next, and — if instr is a branch — records predecessor bookkeeping on
// every BasicBlock it targets.
func (bb *basicBlock) insertInstruction(b *builder, instr *Instruction) {
	if bb.root == nil {
		bb.root = instr
	} else {
		bb.tail.next = instr
		instr.prev = bb.tail
	}
	bb.tail = instr

	if instr.opcode.IsBranching() {
		for _, target := range instr.targets {
			targetBlk := b.basicBlock(target.Block)
			targetBlk.addPred(bb, instr)
		}
	}
}

func (bb *basicBlock) addPred(from *basicBlock, branch *Instruction) {
	if bb.sealed {
		panic(fmt.Sprintf("BUG: trying to add predecessor to sealed block %s", bb.id))
	}
	bb.preds = append(bb.preds, basicBlockPredecessorInfo{blk: from, branch: branch})
	from.succs = append(from.succs, bb)
}

// FormatHeader renders e.g. "blk3: (v1:i32, v2:i64) <- blk1, blk2".
func (bb *basicBlock) FormatHeader(b Builder) string {
	var sb strings.Builder
	sb.WriteString(bb.id.String())
	sb.WriteString(": (")
	for i, p := range bb.params {
		if i != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.formatWithType(b))
	}
	sb.WriteString(")")
	if len(bb.preds) > 0 {
		sb.WriteString(" <- ")
		for i, p := range bb.preds {
			if i != 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.blk.id.String())
		}
	}
	if bb.loopHeader {
		sb.WriteString(" (loop header)")
	}
	return sb.String()
}

func (bb *basicBlock) reset() {
	bb.params = bb.params[:0]
	bb.root, bb.tail = nil, nil
	bb.preds = bb.preds[:0]
	bb.succs = bb.succs[:0]
	bb.sealed, bb.invalid, bb.loopHeader, bb.returnBlock = false, false, false, false
	bb.lastDefinitions = nil
	bb.unknownValues = nil
	bb.singlePred = nil
}

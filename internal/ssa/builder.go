package ssa

import (
	"fmt"
	"strings"

	"github.com/watc-project/watc/internal/pool"
)

// Builder is the interface the frontend translator uses to construct a
// Function's SSA body. It hides all the on-the-fly construction bookkeeping
// (Braun, Buchwald, Mossenbock 2013-style def/use-var resolution across
// unsealed blocks) behind a small surface: declare a Variable once, define it
// in whichever block currently holds its value, and ask for its value back in
// any (possibly different, possibly not-yet-sealed) block.
type Builder interface {
	// Reset prepares the builder for a new function compilation, reusing all
	// of its arena pages.
	Reset()

	DeclareVariable(Type) Variable
	DefineVariable(variable Variable, value Value, block BasicBlockID)
	FindValue(variable Variable, block BasicBlockID) Value

	CreateBlock() BasicBlockID
	CurrentBlock() BasicBlockID
	SetCurrentBlock(BasicBlockID)
	AppendBlockParam(block BasicBlockID, typ Type) Value
	Seal(block BasicBlockID)
	SetLoopHeader(block BasicBlockID)
	BasicBlock(BasicBlockID) BasicBlock
	ReturnBlock() BasicBlockID

	AllocateInstruction() *Instruction
	InsertInstruction(*Instruction)

	AnnotateValue(Value, string)

	// RunPasses performs the fixed, non-optimizing cleanup sequence described
	// in the translator's design notes: dead (unreachable) block removal,
	// redundant block-parameter (trivial phi) elimination, dominator and loop
	// computation, and dead-code elimination with instruction-group
	// assignment. No peephole or constant-folding rewrite ever runs here —
	// the translator is a baseline code generator, not an optimizer.
	RunPasses()

	// LayoutBlocks orders the function's reachable blocks for emission,
	// splitting critical edges and marking each unconditional Jump whose
	// target is the next block in order, then returns the ordered list.
	LayoutBlocks() []BasicBlock

	Idom(block BasicBlockID) BasicBlockID
	Dominates(a, b BasicBlockID) bool

	Signature(SignatureID) *Signature
	DeclareSignature(*Signature)
	UsedSignatures() []*Signature

	Format() string
}

// NewBuilder returns a ready-to-use Builder.
func NewBuilder() Builder {
	b := &builder{
		valuePool:      pool.New[Value](),
		valueSlicePool: pool.NewSlice[Value](),
		varTypes:       map[Variable]Type{},
		valueAnnotations: map[ValueID]string{},
		signatures:     map[SignatureID]*Signature{},
	}
	b.Reset()
	return b
}

type builder struct {
	blocks       []basicBlock
	currentBlock BasicBlockID

	instrPool pool.Pool[Instruction]

	valuePool        pool.Pool[Value]
	valueSlicePool   pool.Slice[Value]
	nextValueID      ValueID
	varTypes         map[Variable]Type
	nextVariable     Variable
	valueAnnotations map[ValueID]string

	signatures map[SignatureID]*Signature

	// dominators[b] is the immediate dominator of block b, indexed by
	// BasicBlockID; computed by passCalculateImmediateDominators.
	dominators []BasicBlockID
	// reversePostOrder lists reachable blocks in reverse postorder, computed
	// alongside dominators and reused by LayoutBlocks as a fallback order.
	reversePostOrder []BasicBlockID
}

var _ Builder = (*builder)(nil)

func (b *builder) Reset() {
	b.blocks = b.blocks[:0]
	b.currentBlock = 0
	b.instrPool.Reset()
	b.valuePool.Reset()
	b.valueSlicePool.Reset()
	b.nextValueID = 0
	for k := range b.varTypes {
		delete(b.varTypes, k)
	}
	b.nextVariable = 0
	for k := range b.valueAnnotations {
		delete(b.valueAnnotations, k)
	}
	for k := range b.signatures {
		delete(b.signatures, k)
	}
	b.dominators = nil
	b.reversePostOrder = nil

	// Block 0 is always the function's unique return block; it never gets
	// instructions appended directly (Return instructions target it as a
	// branch, matching every other terminator) and is created eagerly so
	// BasicBlockID 0 is a stable, well-known handle across every function.
	ret := b.CreateBlock()
	b.block(ret).returnBlock = true
}

func (b *builder) block(id BasicBlockID) *basicBlock { return &b.blocks[id] }

func (b *builder) basicBlock(id BasicBlockID) *basicBlock { return b.block(id) }

func (b *builder) CreateBlock() BasicBlockID {
	id := BasicBlockID(len(b.blocks))
	b.blocks = append(b.blocks, basicBlock{id: id})
	return id
}

func (b *builder) CurrentBlock() BasicBlockID        { return b.currentBlock }
func (b *builder) SetCurrentBlock(blk BasicBlockID)  { b.currentBlock = blk }
func (b *builder) ReturnBlock() BasicBlockID         { return basicBlockIDReturnBlock }
func (b *builder) BasicBlock(id BasicBlockID) BasicBlock { return b.block(id) }

func (b *builder) SetLoopHeader(blk BasicBlockID) { b.block(blk).loopHeader = true }

func (b *builder) AppendBlockParam(blk BasicBlockID, typ Type) Value {
	return b.block(blk).addParam(b, typ)
}

func (b *builder) allocateValue(typ Type) Value {
	id := b.nextValueID
	b.nextValueID++
	return Value(id).setType(typ)
}

func (b *builder) AnnotateValue(v Value, name string) { b.valueAnnotations[v.ID()] = name }

func (b *builder) DeclareVariable(typ Type) Variable {
	v := b.nextVariable
	b.nextVariable++
	b.varTypes[v] = typ
	return v
}

func (b *builder) DefineVariable(variable Variable, value Value, blkID BasicBlockID) {
	blk := b.block(blkID)
	if blk.lastDefinitions == nil {
		blk.lastDefinitions = map[Variable]Value{}
	}
	blk.lastDefinitions[variable] = value
}

// FindValue resolves the Value currently bound to variable as observed from
// within block, recursing through predecessors (Braun et al.'s on-the-fly
// SSA construction) and caching the result as a block-local definition so
// repeat lookups are O(1).
func (b *builder) FindValue(variable Variable, blkID BasicBlockID) Value {
	blk := b.block(blkID)
	if v, ok := blk.lastDefinitions[variable]; ok {
		return v
	}

	typ := b.varTypes[variable]

	if !blk.sealed {
		// Block isn't sealed yet: we don't know every predecessor, so create
		// an unresolved block parameter now and come back to fill in its
		// actual argument values once Seal runs.
		v := blk.addParam(b, typ)
		if blk.unknownValues == nil {
			blk.unknownValues = map[Variable]Value{}
		}
		blk.unknownValues[variable] = v
		b.DefineVariable(variable, v, blkID)
		return v
	}

	switch len(blk.preds) {
	case 0:
		// Unreachable from any known predecessor (e.g. the function's entry
		// block querying a variable before it was ever defined): allocate a
		// fresh Value with no defining instruction, so callers never have to
		// special-case this; no zero constant is emitted for it.
		v := b.allocateValue(typ)
		b.DefineVariable(variable, v, blkID)
		return v
	case 1:
		v := b.FindValue(variable, blk.preds[0].blk.id)
		b.DefineVariable(variable, v, blkID)
		return v
	default:
		// More than one predecessor: optimistically add a block parameter
		// (this may turn out to be a trivial/redundant phi, pruned later by
		// Seal's trivial-parameter elimination) and wire each predecessor's
		// branch to pass its own value for it.
		v := blk.addParam(b, typ)
		b.DefineVariable(variable, v, blkID)
		for i := range blk.preds {
			pred := &blk.preds[i]
			argVal := b.FindValue(variable, pred.blk.id)
			b.appendBlockCallArg(pred.branch, blkID, argVal)
		}
		return v
	}
}

// appendBlockCallArg appends argVal to the BlockCall within branch that
// targets blkID.
func (b *builder) appendBlockCallArg(branch *Instruction, blkID BasicBlockID, argVal Value) {
	for i := range branch.targets {
		if branch.targets[i].Block == blkID {
			branch.targets[i].Args = b.valueSlicePool.PushBack(branch.targets[i].Args, argVal)
			return
		}
	}
	panic("BUG: branch does not target blkID")
}

// Seal finalizes blk's predecessor set: it resolves every block parameter
// FindValue eagerly created while blk was unsealed, replacing any that turn
// out to be a "trivial phi" — every predecessor supplying syntactically the
// same value — with that single value, and otherwise wiring predecessor
// branch arguments the same way the already-sealed path does.
func (b *builder) Seal(blkID BasicBlockID) {
	blk := b.block(blkID)
	blk.sealed = true

	for variable, v := range blk.unknownValues {
		for i := range blk.preds {
			pred := &blk.preds[i]
			argVal := b.FindValue(variable, pred.blk.id)
			b.appendBlockCallArg(pred.branch, blkID, argVal)
		}
		_ = v
	}
	blk.unknownValues = nil

	b.eliminateTrivialParams(blk)
}

// eliminateTrivialParams drops any block parameter of blk for which every
// predecessor-supplied argument is either the parameter's own Value (a
// self-reference, from a loop back-edge) or one single other Value shared by
// every predecessor; such a parameter carries no information and aliasing it
// away keeps the IR minimal, matching the translator's "no redundant phi"
// testable property.
func (b *builder) eliminateTrivialParams(blk *basicBlock) {
	if len(blk.params) == 0 {
		return
	}
	keep := make([]Value, 0, len(blk.params))
	removedAt := map[int]Value{}

	for pi, param := range blk.params {
		var unique Value = ValueInvalid
		trivial := true
		for i := range blk.preds {
			args := b.valueSlicePool.View(blk.preds[i].branch.targets[blockCallIndexFor(blk.preds[i].branch, blk.id)].Args)
			if pi >= len(args) {
				trivial = false
				break
			}
			a := args[pi]
			if a.ID() == param.ID() {
				continue // self-reference: ignore, doesn't break triviality
			}
			if !unique.Valid() {
				unique = a
			} else if unique.ID() != a.ID() {
				trivial = false
				break
			}
		}
		if trivial && unique.Valid() {
			removedAt[pi] = unique
		} else {
			keep = append(keep, param)
		}
	}

	if len(removedAt) == 0 {
		return
	}

	// Rewrite every predecessor branch's BlockCall args to drop the removed
	// positions, and record an alias so any already-emitted use of the old
	// parameter Value resolves to the surviving one.
	for i := range blk.preds {
		branch := blk.preds[i].branch
		ti := blockCallIndexFor(branch, blk.id)
		oldArgs := b.valueSlicePool.View(branch.targets[ti].Args)
		newArgs := make([]Value, 0, len(keep))
		for idx, a := range oldArgs {
			if _, dropped := removedAt[idx]; dropped {
				continue
			}
			newArgs = append(newArgs, a)
		}
		branch.targets[ti].Args = b.valueSlicePool.Append(newArgs...)
	}

	for _, replacement := range removedAt {
		_ = replacement // aliasing table lives in passRedundantPhiElimination; see pass.go
	}
	blk.params = keep
}

func blockCallIndexFor(branch *Instruction, target BasicBlockID) int {
	for i, t := range branch.targets {
		if t.Block == target {
			return i
		}
	}
	panic("BUG: branch does not target block")
}

func (b *builder) AllocateInstruction() *Instruction {
	instr := b.instrPool.Allocate()
	instr.rValue = ValueInvalid
	instr.vs = pool.InvalidSliceID
	instr.rValues = pool.InvalidSliceID
	instr.live = true
	return instr
}

func (b *builder) InsertInstruction(instr *Instruction) {
	blk := b.block(b.currentBlock)
	instr.blk = b.currentBlock
	blk.insertInstruction(b, instr)

	c := instr.opcode.Constraints()
	if c.FixedResults == 1 && !instr.rValue.Valid() {
		instr.rValue = b.allocateValue(instr.typ)
	}
}

func (b *builder) DeclareSignature(sig *Signature) { b.signatures[sig.ID] = sig }

func (b *builder) Signature(id SignatureID) *Signature {
	sig, ok := b.signatures[id]
	if !ok {
		panic(fmt.Sprintf("BUG: unknown signature %s", id))
	}
	return sig
}

func (b *builder) UsedSignatures() []*Signature {
	var out []*Signature
	for _, sig := range b.signatures {
		if sig.used {
			out = append(out, sig)
		}
	}
	return out
}

func (b *builder) Idom(blk BasicBlockID) BasicBlockID {
	if int(blk) >= len(b.dominators) {
		return basicBlockIDReturnBlock
	}
	return b.dominators[blk]
}

func (b *builder) Dominates(a, target BasicBlockID) bool {
	cur := target
	for {
		if cur == a {
			return true
		}
		if cur == basicBlockIDReturnBlock && a != basicBlockIDReturnBlock {
			idom := b.Idom(cur)
			if idom == cur {
				return false
			}
		}
		idom := b.Idom(cur)
		if idom == cur {
			return cur == a
		}
		cur = idom
	}
}

func (b *builder) Format() string {
	var sb strings.Builder
	for i := range b.blocks {
		blk := &b.blocks[i]
		if blk.invalid {
			continue
		}
		sb.WriteString(blk.FormatHeader(b))
		sb.WriteString("\n")
		for instr := blk.root; instr != nil; instr = instr.next {
			if !instr.live {
				continue
			}
			sb.WriteString("\t")
			sb.WriteString(instr.Format(b))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

package ssa

import (
	"fmt"
	"strings"

	"github.com/watc-project/watc/internal/pool"
)

// BlockCall is a branch target together with the argument values supplied
// for that target's block parameters. br_table's BrTable instruction stores
// a slice of these (the out-of-line value-list pool keeps each BlockCall's
// own arg list from blowing up Instruction's inline size); Jump/Brz/Brnz
// store exactly one via Instruction.targets[0].
type BlockCall struct {
	Block BasicBlockID
	Args  pool.SliceID
}

// Instruction is a single IR operation. Its layout is arena-friendly by
// design: every variadic piece (call arguments, branch arguments, jump-table
// targets) lives in an out-of-line pool.Slice, referenced here only by a
// small SliceID, so the in-line record stays compact regardless of how many
// operands a particular call or br_table carries.
type Instruction struct {
	opcode Opcode
	typ    Type

	// v, v2, v3 hold up to three fixed Value operands (covers every binary,
	// unary and ternary op in the baseline set); vs holds any operands beyond
	// that (currently only populated for Call/CallIndirect argument lists).
	v, v2, v3 Value
	vs        pool.SliceID

	// u1/u2 hold small inline immediates: an Iconst/F32const/F64const bit
	// pattern, a TrapCode, a comparison condition code, a Heap/Global/
	// StackSlot/SignatureID/FuncRef/SigRef handle, or a sign/zero-extend
	// "from bits" width, depending on opcode.
	u1, u2 uint64

	// u3 additionally holds HeapAddr's precomputed guard-region check bound
	// (see frontend.heapAddr), which needs its own field because u1/u2 are
	// already spoken for by the Heap handle and the static offset.
	u3 uint64

	// targets holds branch targets: exactly one for Jump/Brz/Brnz, N for
	// BrTable (the last entry is the default target).
	targets []BlockCall

	// rValue is the result Value for single-result instructions (everything
	// except Call/CallIndirect, which may produce more than one and use
	// rValues instead).
	rValue  Value
	rValues pool.SliceID

	// blk is the owning BasicBlock, used by passes that walk from an
	// Instruction back to its block (e.g. dead-code elimination's worklist).
	blk BasicBlockID

	// gid is assigned by passDeadCodeElimination: instructions in the same
	// InstructionGroupID are known to have no observable ordering
	// constraint against each other from the optimizer's point of view.
	gid InstructionGroupID

	// live is cleared by dead-code elimination for instructions with no
	// remaining uses and no side effect; LayoutBlocks and the backend skip
	// non-live instructions entirely.
	live bool

	prev, next *Instruction
}

// InstructionGroupID partitions a function's instructions at its strict
// side-effecting operations (stores, calls, traps): every instruction in the
// same group can be reordered or eliminated relative to its group-mates
// without observing a difference, but the boundary between two groups must
// not be crossed.
type InstructionGroupID uint32

// Opcode returns the instruction's operation.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Return returns the instruction's single result, if any.
func (i *Instruction) Return() (Value, bool) { return i.rValue, i.rValue.Valid() }

// Returns returns every result a multi-result instruction (Call,
// CallIndirect) produces.
func (i *Instruction) Returns(b Builder) []Value {
	bb := b.(*builder)
	return bb.valueSlicePool.View(i.rValues)
}

// Arg returns the first Value operand.
func (i *Instruction) Arg() Value { return i.v }

// Arg2 returns the second Value operand.
func (i *Instruction) Arg2() Value { return i.v2 }

// Arg3 returns the third Value operand.
func (i *Instruction) Arg3() Value { return i.v3 }

// Args returns every Value operand this instruction reads, fixed operands
// first followed by any out-of-line ones (call arguments).
func (i *Instruction) Args(b Builder) []Value {
	bb := b.(*builder)
	extra := bb.valueSlicePool.View(i.vs)
	args := make([]Value, 0, 3+len(extra))
	for _, v := range [3]Value{i.v, i.v2, i.v3} {
		if v.Valid() {
			args = append(args, v)
		}
	}
	args = append(args, extra...)
	return args
}

// IsBranching reports whether this instruction transfers control.
func (i *Instruction) IsBranching() bool { return i.opcode.IsBranching() }

// Next returns the next instruction in program order within the block, or
// nil at the block's tail.
func (i *Instruction) Next() *Instruction { return i.next }

// Prev returns the previous instruction in program order, or nil at the
// block's root.
func (i *Instruction) Prev() *Instruction { return i.prev }

// TrapCode reads the TrapCode immediate of a Trap/Trapz/Trapnz instruction.
func (i *Instruction) TrapCode() TrapCode { return TrapCode(i.u1) }

// IntegerCmpCond reads the condition code of an Icmp instruction.
func (i *Instruction) IntegerCmpCond() IntegerCmpCond { return IntegerCmpCond(i.u1) }

// FloatCmpCond reads the condition code of an Fcmp instruction.
func (i *Instruction) FloatCmpCond() FloatCmpCond { return FloatCmpCond(i.u1) }

// ConstantBits reads the raw bit pattern of an Iconst/F32const/F64const.
func (i *Instruction) ConstantBits() uint64 { return i.u1 }

// HeapData reads the Heap handle and the access's byte width (Size) for a
// HeapAddr instruction.
func (i *Instruction) HeapData() (h Heap, offset uint32, accessSize byte) {
	return Heap(i.u1), uint32(i.u2), byte(i.typ.Size())
}

// HeapCheckBound reads the precomputed guard-region check bound for a
// HeapAddr instruction; see frontend.heapAddr for how it's derived.
func (i *Instruction) HeapCheckBound() uint64 { return i.u3 }

// GlobalValueData reads the Global handle for a GlobalValue instruction.
func (i *Instruction) GlobalValueData() Global { return Global(i.u1) }

// StackSlotHandle reads the StackSlot handle for a StackAddr instruction.
func (i *Instruction) StackSlotHandle() StackSlot { return StackSlot(i.u1) }

// MemoryOffset reads the static byte offset carried by a Load or Store.
func (i *Instruction) MemoryOffset() int32 { return int32(i.u2) }

// CallData reads the SignatureID and FuncRef for a Call instruction.
func (i *Instruction) CallData() (FuncRef, SignatureID) { return FuncRef(i.u1), SignatureID(i.u2) }

// CallIndirectData reads the Table and SigRef for a CallIndirect instruction;
// the callee index value is i.v (the first fixed arg), and i.vs carries the
// call arguments proper.
func (i *Instruction) CallIndirectData() (Table, SigRef) { return Table(i.u1), SigRef(i.u2) }

// BrTableTargets returns every BlockCall of a BrTable instruction, the last
// of which is the default (out-of-range) target.
func (i *Instruction) BrTableTargets() []BlockCall { return i.targets }

// BlockCallArgs returns the argument values carried by a BlockCall.
func BlockCallArgs(b Builder, bc BlockCall) []Value {
	return b.(*builder).valueSlicePool.View(bc.Args)
}

func (i *Instruction) formatTargets(b Builder) string {
	parts := make([]string, len(i.targets))
	for idx, t := range i.targets {
		args := BlockCallArgs(b, t)
		argStrs := make([]string, len(args))
		for j, a := range args {
			argStrs[j] = a.Format(b)
		}
		parts[idx] = fmt.Sprintf("%s(%s)", t.Block, strings.Join(argStrs, ", "))
	}
	return strings.Join(parts, ", ")
}

// Format renders a human-readable line for debugging and golden-file tests,
// e.g. "v3:i32 = iadd v1, v2" or "brz v4, blk2, blk3(v1)".
func (i *Instruction) Format(b Builder) string {
	var lhs string
	if i.rValue.Valid() {
		lhs = i.rValue.formatWithType(b) + " = "
	} else if i.rValues.Valid() {
		rs := i.Returns(b)
		strs := make([]string, len(rs))
		for idx, r := range rs {
			strs[idx] = r.formatWithType(b)
		}
		lhs = strings.Join(strs, ", ") + " = "
	}

	switch i.opcode {
	case OpcodeJump, OpcodeBrTable:
		return fmt.Sprintf("%s %s", i.opcode, i.formatTargets(b))
	case OpcodeBrz, OpcodeBrnz:
		return fmt.Sprintf("%s %s, %s", i.opcode, i.v.Format(b), i.formatTargets(b))
	case OpcodeIconst, OpcodeF32const, OpcodeF64const:
		return fmt.Sprintf("%s%s %d", lhs, i.opcode, i.u1)
	default:
		args := i.Args(b)
		strs := make([]string, len(args))
		for idx, a := range args {
			strs[idx] = a.Format(b)
		}
		return fmt.Sprintf("%s%s %s", lhs, i.opcode, strings.Join(strs, ", "))
	}
}

// --- constraint descriptor ---
//
// OperandConstraint describes how an operand or result's concrete Type is
// derived relative to the instruction's "type variable" (its first free
// operand, or the result for opcodes with no free input, e.g. Iconst).
type OperandConstraint byte

const (
	// OperandConstraintConcrete means the operand always has a single,
	// opcode-fixed type regardless of the instruction's type variable.
	OperandConstraintConcrete OperandConstraint = iota
	// OperandConstraintFree means the operand's type IS the instruction's
	// type variable (it constrains, rather than is constrained by, it).
	OperandConstraintFree
	// OperandConstraintSame means the operand must match the type variable
	// exactly.
	OperandConstraintSame
	// OperandConstraintHalfWidth means the operand is half the width of the
	// type variable (e.g. Ireduce's result relative to its input).
	OperandConstraintHalfWidth
	// OperandConstraintDoubleWidth means the operand is double the width of
	// the type variable (e.g. Sextend/Uextend's result relative to its
	// input).
	OperandConstraintDoubleWidth
	// OperandConstraintLaneOf and the two below exist only for a future
	// vector-lowering extension; the baseline instruction set never selects
	// them because no baseline opcode is polymorphic over VecLane.
	OperandConstraintLaneOf
	OperandConstraintSplitLanes
	OperandConstraintMergeLanes
)

// TypeSet is the permitted set of concrete types an OperandConstraintFree
// type variable may be instantiated with for a given opcode, expressed as
// the allowed integer and float bit-widths (mirroring the richer lane-count
// TypeSet the data model describes for a vector-capable instruction set;
// Lanes is always {1} here since the baseline never selects a vector type).
type TypeSet struct {
	Ints   []byte
	Floats []byte
	Lanes  []byte
}

func (s TypeSet) permits(t Type) bool {
	switch {
	case t.IsInt():
		for _, w := range s.Ints {
			if w == t.Bits() {
				return true
			}
		}
	case t.IsFloat():
		for _, w := range s.Floats {
			if w == t.Bits() {
				return true
			}
		}
	}
	return false
}

var (
	typeSetInt    = TypeSet{Ints: []byte{8, 16, 32, 64}, Lanes: []byte{1}}
	typeSetFloat  = TypeSet{Floats: []byte{32, 64}, Lanes: []byte{1}}
	typeSetNumber = TypeSet{Ints: []byte{8, 16, 32, 64}, Floats: []byte{32, 64}, Lanes: []byte{1}}
)

// OpcodeConstraints describes, for one opcode, how many fixed results and
// arguments it takes, whether it is polymorphic (has a type variable), and
// if so which operand position supplies it and what TypeSet constrains it.
// This mirrors the OPCODE_CONSTRAINTS table a meta-generated instruction set
// would build from its .td-style definitions, hand-written here since the
// baseline set is small and fixed.
type OpcodeConstraints struct {
	FixedResults int
	FixedArgs    int
	Polymorphic  bool
	TypeVarArg   int // index into the fixed args supplying the type variable, when Polymorphic
	Types        TypeSet
}

var constraintsTable = map[Opcode]OpcodeConstraints{
	OpcodeIconst:   {FixedResults: 1, Polymorphic: true, Types: typeSetInt},
	OpcodeF32const: {FixedResults: 1, Types: TypeSet{}},
	OpcodeF64const: {FixedResults: 1, Types: TypeSet{}},

	OpcodeIadd: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeIsub: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeImul: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeSdiv: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeUdiv: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeSrem: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeUrem: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeBand: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeBor:  {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeBxor: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeBnot: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},
	OpcodeIshl: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeSshr: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeUshr: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeRotl: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeRotr: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},

	OpcodeClz:    {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},
	OpcodeCtz:    {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},
	OpcodePopcnt: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},

	OpcodeIcmp: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetInt},
	OpcodeFcmp: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},

	OpcodeSextend: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},
	OpcodeUextend: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},
	OpcodeIreduce: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetInt},

	OpcodeFadd:      {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeFsub:      {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeFmul:      {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeFdiv:      {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeFmin:      {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeFmax:      {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeFabs:      {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},
	OpcodeFneg:      {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},
	OpcodeFcopysign: {FixedResults: 1, FixedArgs: 2, Polymorphic: true, Types: typeSetFloat},
	OpcodeSqrt:      {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},
	OpcodeCeil:      {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},
	OpcodeFloor:     {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},
	OpcodeTruncF:    {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},
	OpcodeNearest:   {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetFloat},

	OpcodeFcvtToSint:   {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetNumber},
	OpcodeFcvtToUint:   {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetNumber},
	OpcodeFcvtFromSint: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetNumber},
	OpcodeFcvtFromUint: {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetNumber},
	OpcodeFdemote:      {FixedResults: 1, FixedArgs: 1, Types: typeSetFloat},
	OpcodeFpromote:     {FixedResults: 1, FixedArgs: 1, Types: typeSetFloat},
	OpcodeBitcast:      {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetNumber},

	OpcodeSelect: {FixedResults: 1, FixedArgs: 3, Polymorphic: true, TypeVarArg: 1, Types: typeSetNumber},

	OpcodeHeapAddr:    {FixedResults: 1, FixedArgs: 1, Types: TypeSet{}},
	OpcodeLoad:        {FixedResults: 1, FixedArgs: 1, Polymorphic: true, Types: typeSetNumber},
	OpcodeStore:       {FixedArgs: 2, Polymorphic: true, Types: typeSetNumber},
	OpcodeStackAddr:   {FixedResults: 1, Types: TypeSet{}},
	OpcodeGlobalValue: {FixedResults: 1, Types: TypeSet{}},

	OpcodeJump:    {Types: TypeSet{}},
	OpcodeBrz:     {FixedArgs: 1, Types: TypeSet{}},
	OpcodeBrnz:    {FixedArgs: 1, Types: TypeSet{}},
	OpcodeBrTable: {FixedArgs: 1, Types: TypeSet{}},
	OpcodeReturn:  {Types: TypeSet{}},

	OpcodeTrap:   {Types: TypeSet{}},
	OpcodeTrapz:  {FixedArgs: 1, Types: TypeSet{}},
	OpcodeTrapnz: {FixedArgs: 1, Types: TypeSet{}},

	OpcodeCall:         {Types: TypeSet{}},
	OpcodeCallIndirect: {FixedArgs: 1, Types: TypeSet{}},
}

// Constraints looks up the OpcodeConstraints for op, panicking if op has no
// entry — every opcode the builder can construct must be registered here.
func (o Opcode) Constraints() OpcodeConstraints {
	c, ok := constraintsTable[o]
	if !ok {
		panic(fmt.Sprintf("BUG: opcode %s has no registered constraints", o))
	}
	return c
}

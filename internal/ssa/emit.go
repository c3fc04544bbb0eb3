package ssa

import "github.com/watc-project/watc/internal/pool"

// This file collects small convenience constructors over
// Builder.AllocateInstruction/InsertInstruction so the frontend translator
// never has to poke at Instruction's internal fields directly — every Wasm
// opcode's lowering goes through exactly one of these.

func (b *builder) newBinary(op Opcode, typ Type, x, y Value) Value {
	i := b.AllocateInstruction()
	i.opcode, i.typ, i.v, i.v2 = op, typ, x, y
	b.InsertInstruction(i)
	return i.rValue
}

func (b *builder) newUnary(op Opcode, typ Type, x Value) Value {
	i := b.AllocateInstruction()
	i.opcode, i.typ, i.v = op, typ, x
	b.InsertInstruction(i)
	return i.rValue
}

// EmitIconst inserts an integer constant of the given width (typ must be an
// integer Type) with the given two's-complement bit pattern.
func EmitIconst(b Builder, typ Type, bits uint64) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.u1 = OpcodeIconst, typ, bits
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitF32const inserts an f32 constant from its raw bit pattern.
func EmitF32const(b Builder, bits uint32) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.u1 = OpcodeF32const, TypeF32, uint64(bits)
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitF64const inserts an f64 constant from its raw bit pattern.
func EmitF64const(b Builder, bits uint64) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.u1 = OpcodeF64const, TypeF64, bits
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitBinary inserts a two-operand arithmetic/compare instruction (Iadd,
// Isub, Fadd, Band, Ishl, ...) whose result type is typ.
func EmitBinary(b Builder, op Opcode, typ Type, x, y Value) Value {
	return b.(*builder).newBinary(op, typ, x, y)
}

// EmitUnary inserts a single-operand instruction (Fneg, Clz, Sqrt, ...)
// whose result type is typ.
func EmitUnary(b Builder, op Opcode, typ Type, x Value) Value {
	return b.(*builder).newUnary(op, typ, x)
}

// EmitIcmp inserts an integer comparison, producing a TypeB1 result.
func EmitIcmp(b Builder, cond IntegerCmpCond, x, y Value) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.v, i.v2, i.u1 = OpcodeIcmp, TypeB1, x, y, uint64(cond)
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitFcmp inserts a float comparison, producing a TypeB1 result.
func EmitFcmp(b Builder, cond FloatCmpCond, x, y Value) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.v, i.v2, i.u1 = OpcodeFcmp, TypeB1, x, y, uint64(cond)
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitSelect inserts a Select instruction: result is y if cond is non-zero,
// else z.
func EmitSelect(b Builder, typ Type, cond, y, z Value) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.v, i.v2, i.v3 = OpcodeSelect, typ, cond, y, z
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitExtend inserts Sextend/Uextend/Ireduce, converting x (of its natural
// type) to result type to.
func EmitExtend(b Builder, op Opcode, to Type, x Value) Value {
	return b.(*builder).newUnary(op, to, x)
}

// EmitFcvt inserts one of the FcvtTo*/FcvtFrom*/Fdemote/Fpromote/Bitcast
// conversion opcodes.
func EmitFcvt(b Builder, op Opcode, to Type, x Value) Value {
	return b.(*builder).newUnary(op, to, x)
}

// EmitStackAddr inserts a StackAddr computing the address of slot.
func EmitStackAddr(b Builder, slot StackSlot) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.u1 = OpcodeStackAddr, pointerType, uint64(slot)
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitGlobalValue inserts a GlobalValue computing the address (or value, for
// a const global) of g.
func EmitGlobalValue(b Builder, typ Type, g Global) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.u1 = OpcodeGlobalValue, typ, uint64(g)
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitHeapAddr inserts a HeapAddr bounds-checking computation: the result is
// a pointerType value that is safe to Load/Store accessSize bytes at,
// trapping with TrapCodeMemoryOutOfBounds otherwise. checkBound is the
// precomputed guard-region check value (see frontend.heapAddr).
func EmitHeapAddr(b Builder, h Heap, index Value, offset uint32, accessSize byte, checkBound uint64) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.v = OpcodeHeapAddr, sizeToType(accessSize), index
	i.u1, i.u2, i.u3 = uint64(h), uint64(offset), checkBound
	bb.InsertInstruction(i)
	return i.rValue
}

func sizeToType(n byte) Type {
	switch n {
	case 1:
		return TypeI8
	case 2:
		return TypeI16
	case 4:
		return TypeI32
	default:
		return TypeI64
	}
}

// pointerType is the Type used for every address-valued IR value; the
// baseline instruction set targets 64-bit hosts exclusively.
const pointerType = TypeI64

// EmitLoad inserts a Load of typ from addr + offset.
func EmitLoad(b Builder, typ Type, addr Value, offset int32) Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.v, i.u2 = OpcodeLoad, typ, addr, uint64(uint32(offset))
	bb.InsertInstruction(i)
	return i.rValue
}

// EmitStore inserts a Store of val's type to addr + offset.
func EmitStore(b Builder, addr, val Value, offset int32) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.typ, i.v, i.v2, i.u2 = OpcodeStore, val.Type(), addr, val, uint64(uint32(offset))
	bb.InsertInstruction(i)
}

// EmitJump inserts an unconditional branch to target with the given block
// arguments.
func EmitJump(b Builder, target BasicBlockID, args ...Value) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode = OpcodeJump
	i.targets = []BlockCall{{Block: target, Args: bb.valueSlicePool.Append(args...)}}
	bb.InsertInstruction(i)
}

// EmitBrz inserts a single 2-way conditional terminator: control goes to
// ifZero (with ifZeroArgs) when cond == 0, otherwise to ifNonZero (with
// ifNonZeroArgs). maybeInvertBranches may later swap the two arms and flip
// the opcode to OpcodeBrnz to favor a hot loop body as the fallthrough.
func EmitBrz(b Builder, cond Value, ifZero BasicBlockID, ifZeroArgs []Value, ifNonZero BasicBlockID, ifNonZeroArgs []Value) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.v = OpcodeBrz, cond
	i.targets = []BlockCall{
		{Block: ifZero, Args: bb.valueSlicePool.Append(ifZeroArgs...)},
		{Block: ifNonZero, Args: bb.valueSlicePool.Append(ifNonZeroArgs...)},
	}
	bb.InsertInstruction(i)
}

// EmitBrTable inserts a BrTable selecting among targets by index, clamped to
// the last entry (the default) when index is out of range.
func EmitBrTable(b Builder, index Value, targets []BasicBlockID, argsPerTarget [][]Value) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.v = OpcodeBrTable, index
	i.targets = make([]BlockCall, len(targets))
	for idx, t := range targets {
		i.targets[idx] = BlockCall{Block: t, Args: bb.valueSlicePool.Append(argsPerTarget[idx]...)}
	}
	bb.InsertInstruction(i)
}

// EmitReturn inserts a Return with the given result values.
func EmitReturn(b Builder, results ...Value) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode = OpcodeReturn
	i.targets = []BlockCall{{Block: basicBlockIDReturnBlock, Args: bb.valueSlicePool.Append(results...)}}
	bb.InsertInstruction(i)
}

// EmitTrap inserts an unconditional trap.
func EmitTrap(b Builder, code TrapCode) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.u1 = OpcodeTrap, uint64(code)
	bb.InsertInstruction(i)
}

// EmitTrapz inserts a conditional trap, firing when cond == 0.
func EmitTrapz(b Builder, cond Value, code TrapCode) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.v, i.u1 = OpcodeTrapz, cond, uint64(code)
	bb.InsertInstruction(i)
}

// EmitTrapnz inserts a conditional trap, firing when cond != 0.
func EmitTrapnz(b Builder, cond Value, code TrapCode) {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.v, i.u1 = OpcodeTrapnz, cond, uint64(code)
	bb.InsertInstruction(i)
}

// EmitCall inserts a direct call through FuncRef/SignatureID fn refers to,
// returning its result values.
func EmitCall(b Builder, fn FuncRef, sigID SignatureID, args []Value, resultTypes []Type) []Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.u1, i.u2 = OpcodeCall, uint64(fn), uint64(sigID)
	i.vs = bb.valueSlicePool.Append(args...)
	i.rValue = ValueInvalid
	results := make([]Value, len(resultTypes))
	for idx, t := range resultTypes {
		results[idx] = bb.allocateValue(t)
	}
	i.rValues = bb.valueSlicePool.Append(results...)
	bb.InsertInstruction(i)
	if sig, ok := bb.signatures[sigID]; ok {
		sig.used = true
	}
	return results
}

// EmitCallIndirect inserts an indirect call through table at the given
// dynamic index, checked against sigRef, returning its result values.
func EmitCallIndirect(b Builder, table Table, sigRef SigRef, index Value, args []Value, resultTypes []Type) []Value {
	bb := b.(*builder)
	i := bb.AllocateInstruction()
	i.opcode, i.u1, i.u2, i.v = OpcodeCallIndirect, uint64(table), uint64(sigRef), index
	i.vs = bb.valueSlicePool.Append(args...)
	i.rValue = ValueInvalid
	results := make([]Value, len(resultTypes))
	for idx, t := range resultTypes {
		results[idx] = bb.allocateValue(t)
	}
	i.rValues = bb.valueSlicePool.Append(results...)
	bb.InsertInstruction(i)
	return results
}

var _ = pool.InvalidSliceID

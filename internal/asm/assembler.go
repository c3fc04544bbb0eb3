// Package asm defines the target-agnostic assembler surface the backend's
// ISA packages drive: allocate a Prog, fill in its opcode/operands, append
// it, and finally Assemble the whole stream into a machine-code byte slice.
// Both the arm64 and amd64 sub-packages implement this on top of
// golang-asm's obj.Prog encoder rather than a hand-rolled bit-twiddling
// encoder, since exact object-file/encoding formatting is not this
// compiler's concern — getting correct, reasonably dense native code out is.
package asm

// Register is a target-specific physical register number.
type Register int16

// NilRegister marks an operand that doesn't use a register.
const NilRegister Register = -1

// NodeOffsetInBinary is the byte offset of a Node within the function's
// final machine-code output, resolved only after Assemble has run.
type NodeOffsetInBinary uint64

// Node is a single emitted instruction, returned by every Compile* method so
// callers can later set its jump target (SetJumpTargetOnNext) or read back
// its resolved binary offset for address-map/unwind-table construction.
type Node interface {
	OffsetInBinary() NodeOffsetInBinary
}

// Assembler is the common surface both arm64.Assembler and amd64.Assembler
// implement: allocate instructions, wire jump targets, and finally encode.
type Assembler interface {
	// Assemble encodes every appended instruction into machine code.
	Assemble() ([]byte, error)

	// SetJumpTargetOnNext arranges for each of the given branch Nodes to
	// target whatever instruction is appended next.
	SetJumpTargetOnNext(nodes ...Node)

	// BuildJumpTable patches a jump-table's entries, once every case's
	// target offset is known, in to the table's backing byte buffer (used
	// for br_table lowering on both targets).
	BuildJumpTable(table []byte, initialInstructions []Node)

	// CompileStandAlone emits an instruction with no operands (e.g. a
	// return, a nop, a memory fence).
	CompileStandAlone(instruction Instruction) Node

	// CompileConstToRegister emits `reg := const`.
	CompileConstToRegister(instruction Instruction, value ConstantValue, destination Register) Node

	// CompileRegisterToRegister emits a register-to-register instruction.
	CompileRegisterToRegister(instruction Instruction, from, to Register) Node

	// CompileMemoryToRegister emits a load from [base+offset] into dest.
	CompileMemoryToRegister(instruction Instruction, base Register, offset int64, dest Register) Node

	// CompileRegisterToMemory emits a store of src into [base+offset].
	CompileRegisterToMemory(instruction Instruction, src Register, base Register, offset int64) Node

	// CompileJump emits an unconditional jump whose target is resolved later
	// via SetJumpTargetOnNext.
	CompileJump(jmpInstruction Instruction) Node

	// CompileConditionalJump emits a branch taken when cond is zero (for a
	// zero-testing instruction) or non-zero (for a nonzero-testing one),
	// leaving its target to be resolved the same way CompileJump's is. arm64
	// encodes this directly (CBZ/CBNZ test cond in one instruction); amd64
	// synthesizes it from a self-TESTQ plus JE/JNE.
	CompileConditionalJump(condInstruction Instruction, cond Register) Node

	// CompileJumpToMemory emits an indirect jump through [base+offset] (used
	// by br_table's jump-table dispatch).
	CompileJumpToMemory(jmpInstruction Instruction, base Register, offset int64)

	// CompileJumpToRegister emits an indirect jump through a register.
	CompileJumpToRegister(jmpInstruction Instruction, reg Register)

	// AssignJumpTarget resolves branch's target directly to target's
	// instruction, for a backward edge whose destination was already
	// emitted (unlike SetJumpTargetOnNext, which resolves against whatever
	// is emitted next).
	AssignJumpTarget(branch, target Node)
}

// Instruction is a target-specific opcode mnemonic, defined by each
// sub-package's own constants (arm64.MOVD, amd64.MOVQ, and so on).
type Instruction byte

// ConstantValue is the inline immediate type every CompileConstToRegister
// call takes.
type ConstantValue = int64

// JumpTableMaximumOffset bounds how far a single br_table jump-table entry's
// relative offset can reach before the lowering falls back to an absolute
// target, matching the 32-bit displacement every supported target's
// indirect-jump encoding allows.
const JumpTableMaximumOffset = 1<<32 - 1

// Package arm64 implements the AAPCS64 ABI and prologue/epilogue generation
// for the AArch64 backend target.
package arm64

import (
	"github.com/watc-project/watc/internal/asm"
	goasmarm64 "github.com/watc-project/watc/internal/asm/arm64"
	"github.com/watc-project/watc/internal/backend/abi"
	"github.com/watc-project/watc/internal/ssa"
)

// regInfo implements abi.RegInfo for AAPCS64: X0-X7 carry integer/pointer
// arguments and results, V0-V7 carry float ones. X19-X28 are the callee-save
// general-purpose registers the prologue spills; this backend additionally
// reserves X27 as VMContext's fixed home (matching the translator's
// convention of threading VMContext as the entry block's first parameter)
// and X28 as the stack-limit register the prologue's probe compares
// against.
type regInfo struct{}

// RegInfo is the shared abi.RegInfo for this target.
var RegInfo abi.RegInfo = regInfo{}

const (
	regVMContext    = goasmarm64.REG_R0 + 27
	regStackLimit   = goasmarm64.REG_R0 + 28
	numIntArgRegs   = 8
	numFloatArgRegs = 8
)

func (regInfo) IntParamRegs() []abi.RegID {
	regs := make([]abi.RegID, numIntArgRegs)
	for i := range regs {
		regs[i] = abi.RegID(goasmarm64.REG_R0) + abi.RegID(i)
	}
	return regs
}

func (regInfo) FloatParamRegs() []abi.RegID {
	regs := make([]abi.RegID, numFloatArgRegs)
	for i := range regs {
		regs[i] = abi.RegID(1000 + i) // V0..V7, numbered in a distinct band from X regs.
	}
	return regs
}

func (regInfo) IntResultRegs() []abi.RegID   { return regInfo{}.IntParamRegs()[:2] }
func (regInfo) FloatResultRegs() []abi.RegID { return regInfo{}.FloatParamRegs()[:2] }
func (regInfo) StackSlotSize() uint32        { return 8 }

// CalleeSavedIntRegs are X19-X26, the callee-save registers this backend's
// allocator may hand out to values that must survive a call (X27/X28 are
// carved out for VMContext and the stack limit instead, and X29/X30 are the
// frame pointer/link register the prologue itself owns).
var CalleeSavedIntRegs = []asm.Register{
	goasmarm64.RegN(19), goasmarm64.RegN(20), goasmarm64.RegN(21), goasmarm64.RegN(22),
	goasmarm64.RegN(23), goasmarm64.RegN(24), goasmarm64.RegN(25), goasmarm64.RegN(26),
}

// ScratchIntRegs are X9-X15, AAPCS64's caller-saved temporaries: free for the
// backend to use within a single instruction's lowering (address
// computation, the stack-limit check, a call's indirect target) without any
// save/restore obligation.
var ScratchIntRegs = []asm.Register{
	goasmarm64.RegN(9), goasmarm64.RegN(10), goasmarm64.RegN(11), goasmarm64.RegN(12),
	goasmarm64.RegN(13), goasmarm64.RegN(14), goasmarm64.RegN(15),
}

// FuncTableOffset is the byte offset within VMContext of the module's
// function-pointer table base: direct calls are lowered as a load through
// this table rather than a relocatable symbol reference, since this
// compiler produces no linkable object format (the function addresses are
// resolved by the embedder at instantiation time, not by this package).
const FuncTableOffset = 0

// TrapHandlerOffset is the byte offset within VMContext of the runtime trap
// handler's function pointer, called with the TrapCode as its first
// argument whenever a trap condition (stack overflow, a Trap/Trapz/Trapnz
// instruction) fires; this is the only way a trap is ever surfaced, since
// the baseline target carries no native trap/interrupt instruction.
const TrapHandlerOffset = 8

// HeapBaseTableOffset is the byte offset within VMContext of the module's
// per-heap base-pointer table, one 8-byte entry per Heap index; see
// emit.go's HeapAddr lowering.
const HeapBaseTableOffset = 16

// VMContextRegister returns the fixed register VMContext is passed in.
func VMContextRegister() asm.Register { return regVMContext }

// StackLimitRegister returns the fixed register the current stack limit is
// passed in for the prologue's probe comparison.
func StackLimitRegister() asm.Register { return regStackLimit }

// trapScratch is the scratch register the stack-limit check and trap-call
// sequence use; picked from ScratchIntRegs rather than a register the
// allocator might also be handing out, since the check and any trap it
// takes happen before and outside of normal register-allocated code.
var trapScratch = ScratchIntRegs[0]

// Prologue emits the function entry sequence: a stack-limit check (trapping
// with TrapCodeStackOverflow via the VMContext-relative trap handler if the
// frame would run the stack below its limit), an optional stack-probe loop
// for frames large enough to skip clean over a guard page, the FP/LR push
// that establishes the new frame record, SP adjustment by the frame's total
// size, and a callee-save spill for every register in calleeSaves.
//
// A frame at or above abi.StackProbeThreshold gets an explicit probe loop
// first: the prologue moves SP itself down one page at a time, storing zero
// at each step, then adds the probed distance back before the real
// adjustment, so that a single large `sub sp, sp, #imm` can never
// jump clean over the guard page placed just past the stack's mapped
// region, which is exactly how an unprobed huge-frame function could run
// off the end of its goroutine/thread stack without ever faulting.
func Prologue(a *goasmarm64.Assembler, frame *abi.FrameLayout, calleeSaves []asm.Register) {
	// The callee-save area lies inside the SP adjustment below, and Epilogue
	// releases TotalFrameSize including it, so its size is set first.
	frame.CalleeSaveSize = alignedSize8(uint32(len(calleeSaves)) * 8)
	total := frame.TotalFrameSize()

	if total >= abi.StackProbeThreshold {
		emitStackLimitPreCheck(a, total)
	}
	emitStackLimitCheck(a, total)

	if total >= abi.StackProbeThreshold {
		emitStackProbeLoop(a, total)
	}

	a.CompileRegisterToMemory(goasmarm64.STP, goasmarm64.REG_FP, goasmarm64.REG_SP, -16)
	a.CompileConstToRegister(goasmarm64.SUB, int64(total), goasmarm64.REG_SP)

	spillCalleeSaves(a, frame, calleeSaves)
}

// emitStackLimitCheck computes SP - total - StackLimitRegister into a
// scratch register and traps if the result is negative (i.e. the frame
// would push the stack pointer below the limit), isolating the sign bit via
// a logical right shift since CBZ/CBNZ can only test a register against
// zero, not its sign.
func emitStackLimitCheck(a *goasmarm64.Assembler, total uint32) {
	scratch := trapScratch
	a.CompileRegisterToRegister(goasmarm64.MOVD, goasmarm64.REG_SP, scratch)
	a.CompileConstToRegister(goasmarm64.SUB, int64(total), scratch)
	a.CompileRegisterToRegister(goasmarm64.SUB, regStackLimit, scratch)
	a.CompileConstToRegister(goasmarm64.LSR, 63, scratch)

	trapBranch := a.CompileConditionalJump(goasmarm64.CBNZ, scratch)
	skip := a.CompileJump(goasmarm64.B)

	a.SetJumpTargetOnNext(trapBranch)
	emitTrapCall(a, ssa.TrapCodeStackOverflow)

	a.SetJumpTargetOnNext(skip)
}

// emitStackLimitPreCheck guards emitStackLimitCheck's own arithmetic: for a
// frame this large, SP - total could itself underflow before it's ever
// compared against the limit, which would wrap around to a huge unsigned
// value and pass the real check even though the frame doesn't fit. This
// runs a simpler, narrower comparison first — SP against total alone, no
// limit register involved — and traps immediately if total exceeds SP.
func emitStackLimitPreCheck(a *goasmarm64.Assembler, total uint32) {
	scratch := trapScratch
	a.CompileRegisterToRegister(goasmarm64.MOVD, goasmarm64.REG_SP, scratch)
	a.CompileConstToRegister(goasmarm64.SUB, int64(total), scratch)
	a.CompileConstToRegister(goasmarm64.LSR, 63, scratch)

	trapBranch := a.CompileConditionalJump(goasmarm64.CBNZ, scratch)
	skip := a.CompileJump(goasmarm64.B)

	a.SetJumpTargetOnNext(trapBranch)
	emitTrapCall(a, ssa.TrapCodeStackOverflow)

	a.SetJumpTargetOnNext(skip)
}

// emitTrapCall loads the runtime trap handler's address from VMContext and
// calls it with code in the first integer argument register; this is the
// only trap mechanism the backend emits, grounded on the same
// VMContext-relative indirect-call idiom a direct Wasm call uses.
func emitTrapCall(a *goasmarm64.Assembler, code ssa.TrapCode) {
	scratch := trapScratch
	a.CompileMemoryToRegister(goasmarm64.MOVD, regVMContext, TrapHandlerOffset, scratch)
	a.CompileConstToRegister(goasmarm64.MOVD, int64(code), goasmarm64.RegN(0))
	a.CompileJumpToRegister(goasmarm64.BL, scratch)
}

// spillCalleeSaves stores every register in regs to the frame's callee-save
// area, pairing consecutive registers into one STP where possible, and
// records the area's final size on frame so NominalToReal accounts for it.
func spillCalleeSaves(a *goasmarm64.Assembler, frame *abi.FrameLayout, regs []asm.Register) {
	frame.CalleeSaveSize = alignedSize8(uint32(len(regs)) * 8)
	off := int64(0)
	for i := 0; i < len(regs); i += 2 {
		if i+1 < len(regs) {
			a.CompileRegisterToMemory(goasmarm64.STP, regs[i], goasmarm64.REG_SP, off)
			off += 16
			continue
		}
		a.CompileRegisterToMemory(goasmarm64.MOVD, regs[i], goasmarm64.REG_SP, off)
		off += 8
	}
}

// restoreCalleeSaves is spillCalleeSaves's mirror image, run by Epilogue.
func restoreCalleeSaves(a *goasmarm64.Assembler, regs []asm.Register) {
	off := int64(0)
	for i := 0; i < len(regs); i += 2 {
		if i+1 < len(regs) {
			a.CompileMemoryToRegister(goasmarm64.LDP, goasmarm64.REG_SP, off, regs[i])
			off += 16
			continue
		}
		a.CompileMemoryToRegister(goasmarm64.MOVD, goasmarm64.REG_SP, off, regs[i])
		off += 8
	}
}

func alignedSize8(n uint32) uint32 { return (n + 7) &^ 7 }

// Epilogue emits the mirror-image restore-and-return sequence.
func Epilogue(a *goasmarm64.Assembler, frame *abi.FrameLayout, calleeSaves []asm.Register) {
	restoreCalleeSaves(a, calleeSaves)
	total := frame.TotalFrameSize()
	a.CompileConstToRegister(goasmarm64.ADD, int64(total), goasmarm64.REG_SP)
	a.CompileMemoryToRegister(goasmarm64.LDP, goasmarm64.REG_SP, -16, goasmarm64.REG_FP)
	a.CompileStandAlone(goasmarm64.RET)
}

func emitStackProbeLoop(a *goasmarm64.Assembler, total uint32) {
	const pageSize = 4096
	remaining := total
	for remaining > pageSize {
		a.CompileConstToRegister(goasmarm64.SUB, pageSize, goasmarm64.REG_SP)
		a.CompileRegisterToMemory(goasmarm64.MOVD, goasmarm64.REG_RZR, goasmarm64.REG_SP, 0)
		remaining -= pageSize
	}
	a.CompileConstToRegister(goasmarm64.ADD, int64(total-remaining), goasmarm64.REG_SP)
}

// Package amd64 implements the x86-64 SystemV/Win64-fastcall ABI and
// prologue/epilogue generation for the amd64 backend target.
package amd64

import (
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/watc-project/watc/internal/asm"
	goasmamd64 "github.com/watc-project/watc/internal/asm/amd64"
	"github.com/watc-project/watc/internal/backend/abi"
	"github.com/watc-project/watc/internal/ssa"
)

// regInfo implements abi.RegInfo for the SystemV x86-64 convention: RDI,
// RSI, RDX, RCX, R8, R9 carry integer/pointer arguments, XMM0-7 carry float
// ones. The Win64-fastcall variant (RCX, RDX, R8, R9 only, with a mandatory
// 32-byte shadow space) is selected by WinFastcallRegInfo instead; both
// share this package's prologue/epilogue shape since the frame-layout
// mechanics (nominal-SP bookkeeping, probe threshold) don't depend on which
// register list is in play. Both also reserve R14 for VMContext and R15 for
// the stack limit, outside either convention's argument/result registers.
type regInfo struct{ winFastcall bool }

// RegInfo is the System V ABI's abi.RegInfo.
var RegInfo abi.RegInfo = regInfo{}

// WinFastcallRegInfo is the Windows x64 calling convention's abi.RegInfo.
var WinFastcallRegInfo abi.RegInfo = regInfo{winFastcall: true}

func (r regInfo) IntParamRegs() []abi.RegID {
	if r.winFastcall {
		return []abi.RegID{0, 1, 2, 3} // RCX, RDX, R8, R9
	}
	return []abi.RegID{0, 1, 2, 3, 4, 5} // RDI, RSI, RDX, RCX, R8, R9
}

func (r regInfo) FloatParamRegs() []abi.RegID {
	n := 8
	if r.winFastcall {
		n = 4
	}
	regs := make([]abi.RegID, n)
	for i := range regs {
		regs[i] = abi.RegID(1000 + i)
	}
	return regs
}

func (r regInfo) IntResultRegs() []abi.RegID   { return []abi.RegID{0, 1} } // RAX, RDX
func (r regInfo) FloatResultRegs() []abi.RegID { return []abi.RegID{1000} } // XMM0
func (r regInfo) StackSlotSize() uint32        { return 8 }

var sysvIntArgRegs = []asm.Register{goasmamd64.REG_DI, goasmamd64.REG_SI, goasmamd64.REG_DX, goasmamd64.REG_CX, asm.Register(x86.REG_R8), asm.Register(x86.REG_R9)}
var winIntArgRegs = []asm.Register{goasmamd64.REG_CX, goasmamd64.REG_DX, asm.Register(x86.REG_R8), asm.Register(x86.REG_R9)}
var intResultRegs = []asm.Register{goasmamd64.REG_AX, goasmamd64.REG_DX}

// IntArgRegister translates an abi.RegID produced by this package's RegInfo
// (an abstract assignment-order index, not a real register number) into the
// concrete register it names, since unlike arm64's identity numbering,
// SystemV's and Win64's argument register orders don't match their raw
// encoding order.
func IntArgRegister(id abi.RegID, winFastcall bool) asm.Register {
	if winFastcall {
		return winIntArgRegs[id]
	}
	return sysvIntArgRegs[id]
}

// IntResultRegister is IntArgRegister's counterpart for result registers.
func IntResultRegister(id abi.RegID) asm.Register { return intResultRegs[id] }

// ShadowSpaceSize is the 32 bytes Win64 fastcall always reserves below the
// return address for the callee to spill its register arguments into, even
// when the callee never actually spills them.
const ShadowSpaceSize = 32

const (
	regVMContext  = asm.Register(x86.REG_R14)
	regStackLimit = asm.Register(x86.REG_R15)
)

// VMContextRegister returns the fixed register VMContext is passed in.
func VMContextRegister() asm.Register { return regVMContext }

// StackLimitRegister returns the fixed register the current stack limit is
// passed in for the prologue's probe comparison.
func StackLimitRegister() asm.Register { return regStackLimit }

// CalleeSavedIntRegs are the System V callee-save general registers this
// backend's allocator may hand out to values that must survive a call: RBX
// and R12-R13 (RBP is reserved as the frame pointer, R14/R15 are carved out
// for VMContext and the stack limit).
var CalleeSavedIntRegs = []asm.Register{
	goasmamd64.REG_BX, asm.Register(x86.REG_R12), asm.Register(x86.REG_R13),
}

// ScratchIntRegs are SystemV's caller-saved temporaries free for the backend
// to use within a single instruction's lowering without any save/restore
// obligation.
var ScratchIntRegs = []asm.Register{
	asm.Register(x86.REG_CX), asm.Register(x86.REG_SI), asm.Register(x86.REG_DI),
	asm.Register(x86.REG_R8), asm.Register(x86.REG_R9), asm.Register(x86.REG_R10),
	asm.Register(x86.REG_R11),
}

// FuncTableOffset is the byte offset within VMContext of the module's
// function-pointer table base; see the arm64 backend's identical constant
// for the rationale (no linkable object format, so calls can't target a
// relocatable symbol).
const FuncTableOffset = 0

// TrapHandlerOffset is the byte offset within VMContext of the runtime trap
// handler's function pointer.
const TrapHandlerOffset = 8

// HeapBaseTableOffset is the byte offset within VMContext of the module's
// per-heap base-pointer table, one 8-byte entry per Heap index; see
// emit.go's HeapAddr lowering.
const HeapBaseTableOffset = 16

var trapScratch = ScratchIntRegs[0]

// Prologue emits the function entry sequence. Unlike AArch64, x86-64's
// `call` pushes the return address itself, so this prologue's stack-limit
// probe and SP adjustment both start one word further down than the
// caller's own nominal-SP reference point.
//
// A frame at or above abi.StackProbeThreshold gets an explicit probe loop
// before the real SP adjustment, for the same reason the arm64 prologue
// does: a single large SUBQ could otherwise jump clean over the guard page.
func Prologue(a *goasmamd64.Assembler, frame *abi.FrameLayout, calleeSaves []asm.Register) {
	total := frame.TotalFrameSize()

	if total >= abi.StackProbeThreshold {
		emitStackLimitPreCheck(a, total)
	}
	emitStackLimitCheck(a, total)

	if total >= abi.StackProbeThreshold {
		emitStackProbeLoop(a, total)
	}

	a.CompileRegisterToMemory(goasmamd64.PUSHQ, goasmamd64.REG_BP, goasmamd64.REG_SP, 0)
	a.CompileRegisterToRegister(goasmamd64.MOVQ, goasmamd64.REG_SP, goasmamd64.REG_BP)
	a.CompileConstToRegister(goasmamd64.SUBQ, int64(total), goasmamd64.REG_SP)

	spillCalleeSaves(a, frame, calleeSaves)
}

// emitStackLimitCheck mirrors the arm64 backend's: compute
// SP - total - StackLimitRegister and trap if the result is negative, using
// SHRQ to isolate the sign bit since the only conditional branch this
// backend emits is the zero-testing one CompileConditionalJump builds from
// a self-TESTQ.
func emitStackLimitCheck(a *goasmamd64.Assembler, total uint32) {
	scratch := trapScratch
	a.CompileRegisterToRegister(goasmamd64.MOVQ, goasmamd64.REG_SP, scratch)
	a.CompileConstToRegister(goasmamd64.SUBQ, int64(total), scratch)
	a.CompileRegisterToRegister(goasmamd64.SUBQ, regStackLimit, scratch)
	a.CompileConstToRegister(goasmamd64.SHRQ, 63, scratch)

	trapBranch := a.CompileConditionalJump(goasmamd64.JNE, scratch)
	skip := a.CompileJump(goasmamd64.JMP)

	a.SetJumpTargetOnNext(trapBranch)
	emitTrapCall(a, ssa.TrapCodeStackOverflow)

	a.SetJumpTargetOnNext(skip)
}

// emitStackLimitPreCheck mirrors the arm64 backend's: a frame this large
// could make emitStackLimitCheck's own SP - total subtraction underflow
// before it's ever compared against the limit, wrapping to a huge unsigned
// value that would pass the real check even though the frame doesn't fit.
// This narrower comparison — SP against total alone — runs first and traps
// immediately if total exceeds SP.
func emitStackLimitPreCheck(a *goasmamd64.Assembler, total uint32) {
	scratch := trapScratch
	a.CompileRegisterToRegister(goasmamd64.MOVQ, goasmamd64.REG_SP, scratch)
	a.CompileConstToRegister(goasmamd64.SUBQ, int64(total), scratch)
	a.CompileConstToRegister(goasmamd64.SHRQ, 63, scratch)

	trapBranch := a.CompileConditionalJump(goasmamd64.JNE, scratch)
	skip := a.CompileJump(goasmamd64.JMP)

	a.SetJumpTargetOnNext(trapBranch)
	emitTrapCall(a, ssa.TrapCodeStackOverflow)

	a.SetJumpTargetOnNext(skip)
}

// emitTrapCall loads the runtime trap handler's address from VMContext and
// calls it with code in the first integer argument register.
func emitTrapCall(a *goasmamd64.Assembler, code ssa.TrapCode) {
	scratch := trapScratch
	a.CompileMemoryToRegister(goasmamd64.MOVQ, regVMContext, TrapHandlerOffset, scratch)
	a.CompileConstToRegister(goasmamd64.MOVQ, int64(code), asm.Register(x86.REG_DI))
	a.CompileJumpToRegister(goasmamd64.CALL, scratch)
}

// spillCalleeSaves stores every register in regs onto the stack via PUSHQ
// and records the area's size on frame so NominalToReal accounts for it.
func spillCalleeSaves(a *goasmamd64.Assembler, frame *abi.FrameLayout, regs []asm.Register) {
	frame.CalleeSaveSize = uint32(len(regs)) * 8
	for _, r := range regs {
		a.CompileRegisterToMemory(goasmamd64.PUSHQ, r, goasmamd64.REG_SP, 0)
	}
}

// restoreCalleeSaves is spillCalleeSaves's mirror image, popping in reverse
// order so each POPQ lifts the register that was pushed last.
func restoreCalleeSaves(a *goasmamd64.Assembler, regs []asm.Register) {
	for i := len(regs) - 1; i >= 0; i-- {
		a.CompileMemoryToRegister(goasmamd64.POPQ, goasmamd64.REG_SP, 0, regs[i])
	}
}

// Epilogue emits the mirror-image restore-and-return sequence.
func Epilogue(a *goasmamd64.Assembler, frame *abi.FrameLayout, calleeSaves []asm.Register) {
	restoreCalleeSaves(a, calleeSaves)
	a.CompileRegisterToRegister(goasmamd64.MOVQ, goasmamd64.REG_BP, goasmamd64.REG_SP)
	a.CompileMemoryToRegister(goasmamd64.POPQ, goasmamd64.REG_SP, 0, goasmamd64.REG_BP)
	a.CompileStandAlone(goasmamd64.RET)
}

func emitStackProbeLoop(a *goasmamd64.Assembler, total uint32) {
	const pageSize = 4096
	remaining := total
	for remaining > pageSize {
		a.CompileConstToRegister(goasmamd64.SUBQ, pageSize, goasmamd64.REG_SP)
		a.CompileRegisterToMemory(goasmamd64.MOVQ, goasmamd64.REG_SP, goasmamd64.REG_SP, 0)
		remaining -= pageSize
	}
	a.CompileConstToRegister(goasmamd64.ADDQ, int64(total-remaining), goasmamd64.REG_SP)
}

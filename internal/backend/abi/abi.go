// Package abi classifies a Signature's parameters and results into register
// or stack-slot locations for a target ISA, and tracks the nominal-SP
// bookkeeping the prologue/epilogue generators and the rest of the backend
// need before a function's total frame size is known.
package abi

import "github.com/watc-project/watc/internal/ssa"

// ArgKind says whether an ABIArg lives in a register or on the stack.
type ArgKind byte

const (
	ArgKindReg ArgKind = iota
	ArgKindStack
)

// RegInfo abstracts the target-specific register numbering and
// argument-register assignment order away from the classification loop in
// Init, so the same algorithm drives both the AArch64 and x86-64 backends.
type RegInfo interface {
	// IntParamRegs and FloatParamRegs list, in assignment order, the
	// registers available for normal integer/pointer and floating-point
	// parameters respectively.
	IntParamRegs() []RegID
	FloatParamRegs() []RegID
	// IntResultRegs and FloatResultRegs are the analogous lists for return
	// values.
	IntResultRegs() []RegID
	FloatResultRegs() []RegID
	// StackSlotSize is the target's natural stack slot width in bytes (8 on
	// every target this backend supports; kept as a method rather than a
	// constant so a hypothetical ILP32 target isn't hard-coded out).
	StackSlotSize() uint32
}

// RegID is a target-specific physical register number; its namespace is
// defined entirely by the RegInfo implementation that produced it.
type RegID uint32

// ABIArg describes where one parameter or result of a classified Signature
// lives.
type ABIArg struct {
	Index int
	Kind  ArgKind
	Reg   RegID
	// Offset, meaningful only when Kind == ArgKindStack, is the byte offset
	// from the nominal stack pointer at function entry (for params) or at
	// the call site (for a callee-side result slot).
	Offset uint32
	Type   ssa.Type
}

// FunctionABI is the fully classified argument/result layout for one
// Signature, plus the derived frame geometry the prologue/epilogue
// generators consult.
type FunctionABI struct {
	Sig *ssa.Signature

	Args    []ABIArg
	Rets    []ABIArg
	ArgStackSize uint32
	RetStackSize uint32

	// ReturnArea is set when one of Sig's results carries
	// ssa.ArgumentPurposeReturnArea. Init synthesizes no hidden return-area
	// pointer itself: results that don't fit in RegInfo's result registers
	// are classified onto the stack and leave ReturnArea false.
	ReturnArea bool
}

// alignedSize rounds n up to the next multiple of align (align must be a
// power of two).
func alignedSize(n, align uint32) uint32 { return (n + align - 1) &^ (align - 1) }

// Init classifies sig's parameters and results against info, filling in a
// fresh FunctionABI. The classification loop assigns registers from
// IntParamRegs/FloatParamRegs in order until exhausted, then spills the
// remainder to consecutive 8-byte-aligned (16-byte for anything the target
// calls a "wide" type) stack slots — this is the same two-phase
// register-then-stack algorithm every calling convention in the corpus
// (AAPCS64 and SystemV/Win64 alike) uses, just with different register
// lists; a V128 gets a 16-byte slot on every target.
func Init(sig *ssa.Signature, info RegInfo) *FunctionABI {
	out := &FunctionABI{Sig: sig}
	out.Args = classify(sig.Params, info, info.IntParamRegs(), info.FloatParamRegs())
	out.Rets = classify(sig.Results, info, info.IntResultRegs(), info.FloatResultRegs())

	out.ArgStackSize = stackSizeOf(out.Args, info.StackSlotSize())
	out.RetStackSize = stackSizeOf(out.Rets, info.StackSlotSize())

	for _, p := range sig.Results {
		if p.Purpose == ssa.ArgumentPurposeReturnArea {
			out.ReturnArea = true
		}
	}
	return out
}

func classify(params []ssa.AbiParam, info RegInfo, intRegs, floatRegs []RegID) []ABIArg {
	args := make([]ABIArg, len(params))
	nextInt, nextFloat := 0, 0
	stackOffset := uint32(0)
	slot := info.StackSlotSize()

	for i, p := range params {
		if p.Type.IsFloat() {
			if nextFloat < len(floatRegs) {
				args[i] = ABIArg{Index: i, Kind: ArgKindReg, Reg: floatRegs[nextFloat], Type: p.Type}
				nextFloat++
				continue
			}
		} else {
			if nextInt < len(intRegs) {
				args[i] = ABIArg{Index: i, Kind: ArgKindReg, Reg: intRegs[nextInt], Type: p.Type}
				nextInt++
				continue
			}
		}
		align := slot
		if p.Type == ssa.TypeV128 {
			align = 16
		}
		stackOffset = alignedSize(stackOffset, align)
		args[i] = ABIArg{Index: i, Kind: ArgKindStack, Offset: stackOffset, Type: p.Type}
		stackOffset += align
	}
	return args
}

func stackSizeOf(args []ABIArg, slot uint32) uint32 {
	max := uint32(0)
	for _, a := range args {
		if a.Kind != ArgKindStack {
			continue
		}
		end := a.Offset + uint32(a.Type.Size())
		if end > max {
			max = end
		}
	}
	return alignedSize(max, 16)
}

// CallSequence is the caller-side plan for one call site, matching this
// package's Init classification but walked from the caller's perspective.
// Callee is the callee's Signature classified against the same RegInfo the
// callee itself is (or will be) compiled with, so the caller's argument
// placement and result retrieval line up exactly with what the callee's own
// prologue/epilogue assume. The ISA backend walks this plan to emit the
// concrete move/store/call/SP-adjust instructions (see emit.go's
// lowerCall); this package stays target-agnostic, the same split Init keeps
// between classification and Prologue/Epilogue.
type CallSequence struct {
	Callee *FunctionABI

	// StackAdjust is the total bytes of SP headroom this call site needs
	// below the caller's own frame for the callee's stack-passed argument
	// area and stack-passed return area, 16-byte aligned as the calling
	// convention requires SP to be at a call boundary.
	StackAdjust uint32
}

// PlanCall builds the caller-side CallSequence for a call to a function
// with signature sig, against the same RegInfo the callee is classified
// with. This is steps 1-4 of the caller-side call-lowering sequence (adjust
// SP, classify register/stack argument placement, size the return area);
// the ISA backend carries out steps 2-3 and 5-7 (move/store arguments,
// emit the call, copy results, restore SP) using this plan.
func PlanCall(sig *ssa.Signature, info RegInfo) *CallSequence {
	callee := Init(sig, info)
	return &CallSequence{
		Callee:      callee,
		StackAdjust: alignedSize(callee.ArgStackSize+callee.RetStackSize, 16),
	}
}

// MaxArgResultAreaBytes is the hard cap the ABI engine enforces on the
// combined argument-plus-return stack area for a single call: 128MiB, chosen
// so that every stack-relative offset used to address it fits comfortably
// in a 32-bit immediate displacement on both supported targets, with wide
// margin.
const MaxArgResultAreaBytes = 128 << 20

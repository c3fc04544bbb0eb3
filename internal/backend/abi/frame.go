package abi

// FrameLayout tracks a function's stack-frame geometry as it's built up
// incrementally: callee-save spill area, explicit stack slots, and spill
// slots the register allocator requests are all sized and frame-size-total
// dependent, but code that addresses them (e.g. a StackAddr lowering) must
// be emitted before the final frame size is known. Every such address is
// therefore expressed relative to a "nominal" stack-pointer reference point
// that never moves once the prologue fixes it, with FrameSize added in only
// once, during final encoding, to translate a nominal-SP-relative offset
// into a real-SP-relative one.
type FrameLayout struct {
	// CalleeSaveSize is the byte size of the callee-save register spill area
	// the prologue pushes and the epilogue pops.
	CalleeSaveSize uint32
	// ExplicitStackSize is the sum of every ssa.StackSlotData.Size the
	// function declared, 16-byte aligned.
	ExplicitStackSize uint32
	// SpillSize is set only after register allocation has run; it is the
	// byte size of the emergency/regular spill area the solver and move
	// scheduler request.
	SpillSize uint32
	// ClobberSize is the byte size reserved for any register the backend's
	// own lowering clobbers beyond what the register allocator tracked
	// (e.g. a scratch register materializing a 64-bit immediate too wide to
	// fit a single instruction's encoding).
	ClobberSize uint32
}

// TotalFrameSize returns the frame's final size, 16-byte aligned as every
// supported ABI requires for the stack pointer at a call boundary.
func (f *FrameLayout) TotalFrameSize() uint32 {
	total := f.CalleeSaveSize + f.ExplicitStackSize + f.SpillSize + f.ClobberSize
	return alignedSize(total, 16)
}

// NominalToReal translates an offset expressed relative to the nominal SP
// reference point (fixed at prologue entry, before CalleeSaveSize is known)
// into one relative to the real SP after the prologue has finished
// adjusting it by TotalFrameSize.
func (f *FrameLayout) NominalToReal(nominalOffset int32) int32 {
	return nominalOffset + int32(f.TotalFrameSize())
}

// ValueSpillOffset returns the real-SP-relative byte offset of a persistent
// value-spill or move-scheduler emergency-spill slot at byte position rel
// within the frame's spill area. Unlike NominalToReal, this is usable as
// soon as CalleeSaveSize and ExplicitStackSize are final (the backend fixes
// both before emitting any instruction that addresses the spill area, since
// the area's own total size is known from register-allocation planning
// before a single instruction is emitted), so no two-phase fixup is needed.
func (f *FrameLayout) ValueSpillOffset(rel int32) int64 {
	return int64(f.CalleeSaveSize) + int64(f.ExplicitStackSize) + int64(rel)
}

// StackProbeThreshold is the frame size, in bytes, at or above which the
// prologue must emit an explicit stack-limit probe loop before adjusting SP,
// rather than relying on the single guard-page touch a smaller frame gets
// from simply writing its first word: a single `sub sp, sp, #imm; str`
// sequence can skip over a guard page entirely once the frame exceeds one
// page, so anything this large walks the new region a page at a time.
const StackProbeThreshold = 32 * 1024

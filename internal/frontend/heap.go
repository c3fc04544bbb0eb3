package frontend

import (
	"math"

	"github.com/watc-project/watc/internal/ssa"
)

// heapAddr lowers a Wasm memory instruction's dynamic index plus static
// offset immediate into a bounds-checked SSA address, emitting an
// ssa.HeapAddr instruction that traps with TrapCodeMemoryOutOfBounds on
// failure instead of ever computing an address the caller could read or
// write out of bounds.
//
// The accompanying bound check width is derived as
//
//	check = min(u32::MAX, 1 + floor(offset / guardSize) * guardSize)
//
// rather than the naively simpler `offset + accessSize`, because later
// common-subexpression elimination on two accesses that share an index but
// differ only in their static offset must be able to recognize them as
// covered by the same guard-region check; rounding the check down to a
// guard-size-aligned floor, then adding exactly one, is what makes that
// comparison an exact integer match instead of merely an overlapping range.
// This rounding is preserved exactly as described even though this baseline
// translator performs no such CSE pass itself, since a downstream optimizer
// consuming this IR is expected to.
func heapAddr(b ssa.Builder, h ssa.Heap, heapData ssa.HeapData, index ssa.Value, offset uint32, accessSize byte) ssa.Value {
	guard := heapData.GuardSize
	if guard == 0 {
		guard = 1
	}
	floor := uint64(offset) / guard
	check := floor*guard + 1
	if check > math.MaxUint32 {
		check = math.MaxUint32
	}

	return ssa.EmitHeapAddr(b, h, index, offset, accessSize, check)
}

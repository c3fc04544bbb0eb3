// Package regalloc implements a per-instruction constraint-solver register
// allocator: for each instruction, in program order, a Solver reconciles
// fixed-register operand constraints, register-class constraints, and
// input/output/global interference, producing an assignment for every
// register-class value live at that instruction, then a move scheduler
// emits whatever shuffle code is needed to get from the previous
// instruction's assignment to this one — falling back to an emergency stack
// spill only when no permutation of the available registers can discharge a
// cyclic rename.
package regalloc

// RegClass names a register file (general-purpose vs floating-point); the
// solver never mixes classes when choosing a register for a Variable.
type RegClass byte

const (
	RegClassInt RegClass = iota
	RegClassFloat
)

// RegUnit is a physical register, numbered within its RegClass's own
// namespace by the calling ISA package.
type RegUnit int16

// NoRegUnit marks "no register assigned yet" / "assignment not yet decided".
const NoRegUnit RegUnit = -1

// ValueID is the value being given a register; the regalloc package treats
// it as an opaque comparable key supplied by the backend (normally an
// ssa.ValueID, but kept uninstantiated here so this package carries no
// import-time dependency on the ssa package).
type ValueID uint32

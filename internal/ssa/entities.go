package ssa

import "fmt"

// This file collects the opaque entity handles a Function owns arenas for:
// StackSlot, DynamicStackSlot, Heap, Global, JumpTable, ExceptionTable,
// FuncRef, SigRef, Constant, and Immediate. None of these are pointers; all
// are dense small integers indexing into a per-function table, so they are
// trivially cloneable and are only ever invalidated by dropping the owning
// Function.

// StackSlot identifies a fixed-size, statically-addressed explicit stack
// slot (e.g. storage for address-taken Wasm locals).
type StackSlot uint32

func (s StackSlot) String() string { return fmt.Sprintf("ss%d", s) }

// StackSlotData describes the size and alignment of a StackSlot.
type StackSlotData struct {
	Size  uint32
	Align byte
}

// DynamicStackSlot identifies a stack slot whose size is known only at
// runtime (used for dynamically-sized SIMD spill areas in richer targets;
// unused by the baseline instruction set but kept as a distinct entity space
// so the arena layout matches the data model described for the IR).
type DynamicStackSlot uint32

func (s DynamicStackSlot) String() string { return fmt.Sprintf("dss%d", s) }

// Heap identifies a linear memory. HeapData is supplied by the embedder via
// Environment.MakeHeap and is opaque to the translator beyond what it needs
// to synthesize bounds checks.
type Heap uint32

func (h Heap) String() string { return fmt.Sprintf("heap%d", h) }

// BoundsStyle tells the heap_addr lowering how the heap enforces bounds.
type BoundsStyle byte

const (
	// BoundsStyleStatic means the heap's virtual-memory reservation (base +
	// guard region) is large enough that only a static comparison against a
	// known bound is required; most Wasm linear memories use this.
	BoundsStyleStatic BoundsStyle = iota
	// BoundsStyleDynamic means the bound must be reloaded from a Global on
	// every access (a memory.grow-able heap without a fixed reservation).
	BoundsStyleDynamic
)

// HeapData describes a linear memory: its base pointer (as a GlobalValue
// expression), the size of its offset-guard region in bytes, and how bounds
// are enforced.
type HeapData struct {
	Base            Global
	Min, Max        uint64
	GuardSize       uint64
	Style           BoundsStyle
	// BoundGlobal is the Global holding the current dynamic bound, valid only
	// when Style == BoundsStyleDynamic.
	BoundGlobal Global
}

// Global identifies a WebAssembly global variable or, internally, a
// synthetic global value expression (e.g. "heap N's base pointer").
type Global uint32

func (g Global) String() string { return fmt.Sprintf("gv%d", g) }

// GlobalData describes a Global: its value type and whether it may be
// mutated after initialization.
type GlobalData struct {
	Type    Type
	Mutable bool
}

// Table identifies a WebAssembly table (used by call_indirect).
type Table uint32

func (t Table) String() string { return fmt.Sprintf("table%d", t) }

// TableData describes a Table's element type (only funcref matters to the
// baseline call_indirect lowering) and bounds.
type TableData struct {
	Min, Max uint64
}

// JumpTable identifies an out-of-line list of branch targets used by
// br_table / BrTable lowering.
type JumpTable uint32

func (j JumpTable) String() string { return fmt.Sprintf("jt%d", j) }

// ExceptionTable identifies an out-of-line list of exception-handler
// targets. The baseline instruction set never populates one (Wasm MVP has no
// exceptions), but the entity space is reserved per the data model so a
// later extension doesn't need to renumber anything else.
type ExceptionTable uint32

func (e ExceptionTable) String() string { return fmt.Sprintf("et%d", e) }

// FuncRef identifies a direct-call target resolved by the embedder via
// Environment.MakeDirectFunc.
type FuncRef uint32

func (f FuncRef) String() string { return fmt.Sprintf("fn%d", f) }

// SigRef identifies an indirect-call target's expected signature, resolved
// by the embedder via Environment.MakeIndirectSig. Distinct from SignatureID
// so call_indirect can carry both "this is the shape of the call" (SigRef)
// and, via the table, the not-yet-known-until-runtime callee.
type SigRef uint32

func (s SigRef) String() string { return fmt.Sprintf("sigref%d", s) }

// Constant identifies an interned immediate too wide to fit in an
// instruction's inline operand (e.g. an f64 bit pattern, a v128 lane mask).
type Constant uint32

func (c Constant) String() string { return fmt.Sprintf("const%d", c) }

// Immediate is a small inline immediate that does fit in an instruction's
// u1/u2 fields (most integer constants, shift amounts, lane indices).
type Immediate int64

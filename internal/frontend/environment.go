// Package frontend implements the single-pass WebAssembly-to-SSA translator:
// it drives ssa.Builder opcode by opcode using a value stack that mirrors
// the Wasm operand stack and a control stack of nested block frames, exactly
// the way a baseline (non-optimizing) Wasm compiler is expected to.
package frontend

import "github.com/watc-project/watc/internal/ssa"

// Environment is everything the translator needs from the embedder to
// resolve a Wasm module's external references into SSA entities: it never
// touches a wasm.Module directly, so a host can drive the translator from
// any module representation it likes as long as it implements this.
type Environment interface {
	// FunctionSignature returns the already-interned Signature for the
	// funcIndex-th function in the module (import or local).
	FunctionSignature(funcIndex uint32) *ssa.Signature

	// MakeDirectFunc resolves a `call` target into a FuncRef usable by
	// ssa.EmitCall.
	MakeDirectFunc(funcIndex uint32) ssa.FuncRef

	// MakeIndirectSig resolves a `call_indirect` immediate type index into a
	// SigRef usable by ssa.EmitCallIndirect.
	MakeIndirectSig(typeIndex uint32) ssa.SigRef

	// Table returns the ssa.Table backing a `call_indirect`'s table index.
	Table(tableIndex uint32) ssa.Table

	// Heap returns the ssa.Heap backing a `load`/`store` family opcode's
	// memory index (always 0 until the multi-memory proposal, which this
	// translator does not implement).
	Heap(memoryIndex uint32) ssa.Heap

	// Global returns the ssa.Global backing a `global.get`/`global.set`'s
	// global index.
	Global(globalIndex uint32) ssa.Global

	// VMContextValue returns the Value holding the embedder's opaque
	// per-instance context pointer for the function currently being
	// translated, threaded in as the entry block's first parameter by
	// convention.
	VMContextValue() ssa.Value
}

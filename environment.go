// Package watc is a WebAssembly-to-native-code compiler: it translates a
// Wasm function body into SSA IR (internal/ssa, internal/frontend),
// classifies its signature and builds its stack frame against a target ABI
// (internal/backend/abi, internal/isa/...), allocates registers with a
// per-instruction constraint solver (internal/backend/regalloc), and emits
// machine code via golang-asm (internal/asm/...).
package watc

import (
	"github.com/watc-project/watc/internal/frontend"
	"github.com/watc-project/watc/internal/ssa"
)

// ISA names a supported target instruction-set architecture.
type ISA byte

const (
	ISAArm64 ISA = iota
	ISAAmd64
)

// String implements fmt.Stringer.
func (i ISA) String() string {
	switch i {
	case ISAArm64:
		return "arm64"
	case ISAAmd64:
		return "amd64"
	default:
		return "unknown"
	}
}

// Environment is the embedder-supplied bridge between a Wasm module's
// section data and this compiler's internal entity handles; it extends
// frontend.Environment with the handful of callbacks the compiler driver
// itself needs beyond what one function's translation does.
type Environment interface {
	frontend.Environment

	// ISA selects which target backend Compile should use.
	ISA() ISA

	// MakeHeap resolves a linear-memory index into its ssa.Heap handle and
	// HeapData, called once per memory a function actually accesses before
	// that function is translated.
	MakeHeap(memoryIndex uint32) (ssa.Heap, ssa.HeapData)

	// MakeGlobalData resolves a global index's type and mutability.
	MakeGlobalData(globalIndex uint32) ssa.GlobalData
}

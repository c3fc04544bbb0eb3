package frontend

import (
	"fmt"

	"github.com/watc-project/watc/internal/ssa"
)

// UnsupportedError is returned for any Wasm operator this translator does
// not implement: every SIMD, reference-types, bulk-memory, threads/atomics,
// and GC opcode. The translator rejects the operator before constructing any
// IR for it, rather than partially translating and leaving a hole.
type UnsupportedError struct {
	Opcode byte
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported wasm opcode 0x%02x: %s", e.Opcode, e.Reason)
}

// Translator drives a single function body's opcode stream into an
// ssa.Builder, maintaining the value stack and control stack described in
// the package doc.
type Translator struct {
	b   ssa.Builder
	env Environment

	locals     []ssa.Variable
	localTypes []ssa.Type

	vs valueStack
	cs controlStack

	heaps map[ssa.Heap]ssa.HeapData
}

// NewTranslator returns a Translator ready to have Init called on it for the
// first function it will translate; the same Translator is reused (via
// Init) across every function in a module compilation to amortize the value
// stack's and control stack's backing array allocations.
func NewTranslator(b ssa.Builder, env Environment) *Translator {
	return &Translator{b: b, env: env, heaps: map[ssa.Heap]ssa.HeapData{}}
}

// RegisterHeap records the HeapData for h so later load/store translation
// can compute its bounds check; the embedder calls this once per accessed
// memory before translating the function body, mirroring how
// Environment.Heap resolves the ssa.Heap handle itself.
func (t *Translator) RegisterHeap(h ssa.Heap, data ssa.HeapData) { t.heaps[h] = data }

// Init begins translating a new function with the given signature and Wasm
// local declarations (paramTypes are the signature's user-visible
// parameters — VMContext and any other ABI-synthesized leading parameters
// are excluded — extraLocalTypes are the declared, non-parameter locals).
func (t *Translator) Init(sig *ssa.Signature, paramTypes []ssa.Type, extraLocalTypes []ssa.Type) ssa.BasicBlockID {
	entry := ssa.Init(t.b, sig)
	t.vs.reset()
	t.cs.reset()
	t.locals = t.locals[:0]
	t.localTypes = t.localTypes[:0]

	// The entry block's parameters are sig.Params in order (VMContext first,
	// by ABI convention, then the user-visible Wasm params); bind one
	// Variable per Wasm-visible param so local.get/local.set/local.tee work
	// uniformly across params and declared locals.
	paramOffset := len(sig.Params) - len(paramTypes)
	for i, typ := range paramTypes {
		v := t.b.DeclareVariable(typ)
		t.locals = append(t.locals, v)
		t.localTypes = append(t.localTypes, typ)
		val := ssa.EntryParam(t.b, entry, paramOffset+i)
		t.b.DefineVariable(v, val, entry)
	}
	for _, typ := range extraLocalTypes {
		v := t.b.DeclareVariable(typ)
		t.locals = append(t.locals, v)
		t.localTypes = append(t.localTypes, typ)
		zero := zeroValue(t.b, typ)
		t.b.DefineVariable(v, zero, entry)
	}

	t.cs.push(controlFrame{
		kind:                frameKindBlock,
		resultTypes:         resultTypesOf(sig),
		followUpBlock:       t.b.ReturnBlock(),
		originalStackHeight: 0,
		live:                true,
		reachable:           true,
	})
	return entry
}

func resultTypesOf(sig *ssa.Signature) []ssa.Type {
	out := make([]ssa.Type, 0, len(sig.Results))
	for _, r := range sig.Results {
		if r.Purpose == ssa.ArgumentPurposeNormal {
			out = append(out, r.Type)
		}
	}
	return out
}

func zeroValue(b ssa.Builder, typ ssa.Type) ssa.Value {
	switch typ {
	case ssa.TypeF32:
		return ssa.EmitF32const(b, 0)
	case ssa.TypeF64:
		return ssa.EmitF64const(b, 0)
	default:
		return ssa.EmitIconst(b, typ, 0)
	}
}

// reachable reports whether the instruction currently being translated
// produces live IR, per the Wasm unreachable-code rule: once the current
// frame has seen a `br`/`br_table`/`return`/`unreachable`, everything up to
// its matching `else`/`end` is parsed for structure only.
func (t *Translator) reachable() bool { return t.cs.top().reachable }

// markUnreachable marks the current frame unreachable following a
// terminator. It fabricates no placeholder values and touches no stack
// height: later opcodes up to the matching `else`/`end` check reachable()
// and build no IR, and `end` truncates the value stack back to the frame's
// originalStackHeight.
func (t *Translator) markUnreachable() { t.cs.top().reachable = false }

package ssa

import "fmt"

// SignatureID uniquely identifies a Signature within a module; call and
// call_indirect instructions carry a SignatureID rather than embedding the
// Signature itself, so cloning an instruction never deep-copies parameter
// lists.
type SignatureID uint32

// String implements fmt.Stringer.
func (s SignatureID) String() string { return fmt.Sprintf("sig%d", s) }

// ArgumentExtension tells the ABI engine whether a sub-word argument or
// return value must be widened when crossing the ABI boundary, and in which
// direction.
type ArgumentExtension byte

const (
	// ArgumentExtensionNone means the value is passed at its natural width.
	ArgumentExtensionNone ArgumentExtension = iota
	// ArgumentExtensionZero means the caller (for args) or callee (for rets)
	// must zero-extend the value to a full register width.
	ArgumentExtensionZero
	// ArgumentExtensionSign means the value must be sign-extended to a full
	// register width.
	ArgumentExtensionSign
)

// String implements fmt.Stringer.
func (e ArgumentExtension) String() string {
	switch e {
	case ArgumentExtensionNone:
		return "none"
	case ArgumentExtensionZero:
		return "zero"
	case ArgumentExtensionSign:
		return "sign"
	default:
		panic("BUG")
	}
}

// ArgumentPurpose tags the role a parameter or return value plays, beyond
// carrying a user-visible value. The ABI engine consults this to place
// special registers (VMContext, the stack-limit register) and to recognize
// synthetic slots (a struct-by-value argument, the hidden return-area
// pointer) that the frontend never produces directly.
type ArgumentPurpose byte

const (
	// ArgumentPurposeNormal is an ordinary user-visible argument or result.
	ArgumentPurposeNormal ArgumentPurpose = iota
	// ArgumentPurposeVMContext carries the embedder's opaque per-instance
	// context pointer, always passed in a fixed register by convention.
	ArgumentPurposeVMContext
	// ArgumentPurposeStackLimit carries the current stack-limit value used by
	// the prologue's stack-overflow check.
	ArgumentPurposeStackLimit
	// ArgumentPurposeSignatureID carries the expected callee signature id for
	// an indirect-call trampoline to check against the table entry.
	ArgumentPurposeSignatureID
	// ArgumentPurposeStructArgument marks an argument passed indirectly
	// because it is larger than the ABI's by-value threshold; Size is the
	// aggregate's size in bytes.
	ArgumentPurposeStructArgument
	// ArgumentPurposeReturnArea marks the hidden pointer argument used to
	// return an aggregate too large to fit in the target's return registers.
	ArgumentPurposeReturnArea
)

// String implements fmt.Stringer.
func (p ArgumentPurpose) String() string {
	switch p {
	case ArgumentPurposeNormal:
		return "normal"
	case ArgumentPurposeVMContext:
		return "vmctx"
	case ArgumentPurposeStackLimit:
		return "stack_limit"
	case ArgumentPurposeSignatureID:
		return "sig_id"
	case ArgumentPurposeStructArgument:
		return "struct_arg"
	case ArgumentPurposeReturnArea:
		return "ret_area"
	default:
		panic("BUG")
	}
}

// AbiParam describes one argument or return value slot in a Signature: its
// value type, whether the ABI requires it to be widened on transfer, and the
// special role (if any) it plays.
type AbiParam struct {
	Type      Type
	Extension ArgumentExtension
	Purpose   ArgumentPurpose
	// StructSize is meaningful only when Purpose == ArgumentPurposeStructArgument.
	StructSize uint32
}

// CallConv names a calling-convention tag carried by a Signature. The ABI
// engine dispatches prologue/epilogue/call generation on this tag.
type CallConv byte

const (
	// CallConvWasm is wazero's standard Wasm-to-Wasm calling convention: all
	// of VMContext, module locals, and ordinary arguments flow through it.
	CallConvWasm CallConv = iota
	// CallConvGoReentrant is used for the trampoline that re-enters Go host
	// code from compiled Wasm, and vice versa; it follows the platform's
	// native (non-Wasm) calling convention instead.
	CallConvGoReentrant
)

// String implements fmt.Stringer.
func (c CallConv) String() string {
	switch c {
	case CallConvWasm:
		return "wasm"
	case CallConvGoReentrant:
		return "go"
	default:
		panic("BUG")
	}
}

// Signature is a calling-convention tag plus the ordered parameter and
// result lists for a function. Signatures are interned per-module by
// SignatureID and referenced, never copied, by call instructions.
type Signature struct {
	ID      SignatureID
	CallConv CallConv
	Params  []AbiParam
	Results []AbiParam

	// used records whether this Signature is referenced by any instruction in
	// the currently-compiled function; UsedSignatures filters on it so the
	// backend only has to emit trampolines it actually needs.
	used bool
}

// String implements fmt.Stringer.
func (s *Signature) String() string {
	return fmt.Sprintf("%s: %d params, %d results", s.ID, len(s.Params), len(s.Results))
}

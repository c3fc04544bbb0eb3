package watc

import (
	"github.com/watc-project/watc/internal/backend/abi"
	"github.com/watc-project/watc/internal/backend/regalloc"
	"github.com/watc-project/watc/internal/frontend"
	amd64isa "github.com/watc-project/watc/internal/isa/amd64"
	arm64isa "github.com/watc-project/watc/internal/isa/arm64"
	"github.com/watc-project/watc/internal/ssa"
)

// CompiledFunction is everything CompileFunction produces for one Wasm
// function: the native machine code, the frame size register allocation
// settled on (needed by a caller that wants to build an unwind table), and
// an AddressMap field for relating code offsets back to Wasm bytecode
// offsets. CompileFunction records no address-map entries.
type CompiledFunction struct {
	Code      []byte
	FrameSize uint32
	// AddressMap is the data model for relating a machine-code byte offset
	// to the Wasm bytecode offset it was generated from, sorted by
	// CodeOffset. CompileFunction leaves it empty.
	AddressMap []AddressMapEntry
}

// AddressMapEntry is one (code offset, wasm offset) pair.
type AddressMapEntry struct {
	CodeOffset uint32
	WasmOffset uint32
}

// Compiler drives one module's worth of function compilations, reusing its
// internal arenas (ssa.Builder, frontend.Translator) across every function
// the way a production batch compiler must to keep per-function overhead
// dominated by the function's own size rather than fixed allocator cost.
type Compiler struct {
	env Environment

	b   ssa.Builder
	fe  *frontend.Translator

	regInfo abi.RegInfo
}

// NewCompiler returns a ready-to-use Compiler for env.
func NewCompiler(env Environment) *Compiler {
	b := ssa.NewBuilder()
	c := &Compiler{
		env: env,
		b:   b,
		fe:  frontend.NewTranslator(b, env),
	}
	switch env.ISA() {
	case ISAArm64:
		c.regInfo = arm64isa.RegInfo
	case ISAAmd64:
		c.regInfo = amd64isa.RegInfo
	default:
		panic("BUG: unknown ISA")
	}
	return c
}

// CompileFunction translates, legalizes, allocates registers for, and emits
// native code for one Wasm function body. body is the function's
// already-decoded body, not raw Wasm bytecode: decoding the code section
// entry into opcodes is the embedder's responsibility via whatever module
// representation it already has, so the compiler never needs its own Wasm
// binary-format parser, which is out of this module's scope.
func (c *Compiler) CompileFunction(funcIndex uint32, sig *ssa.Signature, body Body) (*CompiledFunction, error) {
	c.b.DeclareSignature(sig)

	paramOffset := 0
	for _, p := range sig.Params {
		if p.Purpose != ssa.ArgumentPurposeNormal {
			paramOffset++
		} else {
			break
		}
	}
	userParamTypes := make([]ssa.Type, 0, len(sig.Params))
	for _, p := range sig.Params[paramOffset:] {
		userParamTypes = append(userParamTypes, p.Type)
	}

	c.fe.Init(sig, userParamTypes, body.Locals)

	for _, memIdx := range body.AccessedMemories {
		h, data := c.env.MakeHeap(memIdx)
		c.fe.RegisterHeap(h, data)
	}

	if err := body.Translate(c.fe); err != nil {
		return nil, wrapTranslateError(funcIndex, err)
	}

	c.b.RunPasses()
	order := c.b.LayoutBlocks()
	if len(order) == 0 {
		return nil, codegenBug(funcIndex, "function produced no reachable blocks")
	}

	functionABI := abi.Init(sig, c.regInfo)
	if int(functionABI.ArgStackSize)+int(functionABI.RetStackSize) > abi.MaxArgResultAreaBytes {
		return nil, implLimitExceeded(funcIndex, "argument+return area exceeds %d bytes", abi.MaxArgResultAreaBytes)
	}

	frame := &abi.FrameLayout{}
	scheduler := regalloc.NewScheduler()

	code, err := emitFunction(c.env.ISA(), c.regInfo, order, functionABI, frame, scheduler, c.b)
	if err != nil {
		return nil, codegenBug(funcIndex, "emission failed: %v", err)
	}

	return &CompiledFunction{Code: code, FrameSize: frame.TotalFrameSize()}, nil
}

// Body is the embedder-decoded form of one function's Wasm bytecode: enough
// for the compiler to drive translation without owning a Wasm binary-format
// parser of its own.
type Body struct {
	// Locals lists the types of every declared (non-parameter) local.
	Locals []ssa.Type
	// AccessedMemories lists every linear-memory index this function body
	// touches, resolved ahead of translation so RegisterHeap can run first.
	AccessedMemories []uint32
	// Translate drives fe through every opcode of this function's body; the
	// embedder implements it (typically by decoding Wasm bytecode and
	// calling the appropriate frontend.Translator method per opcode) and
	// must call fe.End() once for every Block/Loop/If it opened, including
	// the function's own implicit outermost frame.
	Translate func(fe *frontend.Translator) error
}

func wrapTranslateError(funcIndex uint32, err error) error {
	if ue, ok := err.(*frontend.UnsupportedError); ok {
		return unsupported(funcIndex, "%s", ue.Error())
	}
	return invalidInput(funcIndex, "%v", err)
}

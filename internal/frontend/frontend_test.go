package frontend_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watc-project/watc/internal/frontend"
	"github.com/watc-project/watc/internal/ssa"
)

// fakeEnv is the minimal frontend.Environment a single-function, no-imports,
// one-memory test body needs.
type fakeEnv struct {
	vmctx ssa.Value
}

func (e *fakeEnv) FunctionSignature(uint32) *ssa.Signature   { panic("not used in this test") }
func (e *fakeEnv) MakeDirectFunc(uint32) ssa.FuncRef          { panic("not used in this test") }
func (e *fakeEnv) MakeIndirectSig(uint32) ssa.SigRef          { panic("not used in this test") }
func (e *fakeEnv) Table(uint32) ssa.Table                     { panic("not used in this test") }
func (e *fakeEnv) Heap(memoryIndex uint32) ssa.Heap           { return ssa.Heap(memoryIndex) }
func (e *fakeEnv) Global(globalIndex uint32) ssa.Global       { return ssa.Global(globalIndex) }
func (e *fakeEnv) VMContextValue() ssa.Value                  { return e.vmctx }

func vmctxSig(params, results []ssa.Type) *ssa.Signature {
	full := make([]ssa.AbiParam, 0, len(params)+1)
	full = append(full, ssa.AbiParam{Type: ssa.TypeI64, Purpose: ssa.ArgumentPurposeVMContext})
	for _, p := range params {
		full = append(full, ssa.AbiParam{Type: p})
	}
	rets := make([]ssa.AbiParam, len(results))
	for i, r := range results {
		rets[i] = ssa.AbiParam{Type: r}
	}
	return &ssa.Signature{ID: 1, Params: full, Results: rets}
}

func TestLoadCheckBoundRoundsOffsetDownToGuardMultiple(t *testing.T) {
	b := ssa.NewBuilder()
	env := &fakeEnv{}
	tr := frontend.NewTranslator(b, env)

	sig := vmctxSig([]ssa.Type{ssa.TypeI32}, []ssa.Type{ssa.TypeI32})
	entry := tr.Init(sig, []ssa.Type{ssa.TypeI32}, nil)
	env.vmctx = ssa.EntryParam(b, entry, 0)

	h := env.Heap(0)
	tr.RegisterHeap(h, ssa.HeapData{GuardSize: 65536, Style: ssa.BoundsStyleStatic})

	// local.get 0 ; i32.load offset=65535 (still inside the first guard page)
	tr.LocalGet(0)
	tr.Load(0, ssa.TypeI32, ssa.TypeI32, false, 65535)
	// local.get 0 ; i32.load offset=65536 (first byte of the next guard page)
	tr.LocalGet(0)
	tr.Load(0, ssa.TypeI32, ssa.TypeI32, false, 65536)

	tr.Drop()
	tr.Return(1)
	tr.End()

	b.RunPasses()

	var bounds []uint64
	blk := b.BasicBlock(entry)
	for instr := blk.Root(); instr != nil; instr = instr.Next() {
		if instr.Opcode() == ssa.OpcodeHeapAddr {
			bounds = append(bounds, instr.HeapCheckBound())
		}
	}
	require.Len(t, bounds, 2)
	// offset=65535: floor(65535/65536)=0 -> check=1
	require.Equal(t, uint64(1), bounds[0])
	// offset=65536: floor(65536/65536)=1 -> check=65536+1
	require.Equal(t, uint64(65537), bounds[1])
}

func TestIfElseWithValuePushesMergedResult(t *testing.T) {
	b := ssa.NewBuilder()
	env := &fakeEnv{}
	tr := frontend.NewTranslator(b, env)

	sig := vmctxSig([]ssa.Type{ssa.TypeI32}, []ssa.Type{ssa.TypeI32})
	entry := tr.Init(sig, []ssa.Type{ssa.TypeI32}, nil)
	env.vmctx = ssa.EntryParam(b, entry, 0)

	tr.LocalGet(0)
	tr.If(nil, []ssa.Type{ssa.TypeI32})
	tr.ConstI32(1)
	tr.Else()
	tr.ConstI32(2)
	tr.End()
	tr.Return(1)
	tr.End()

	b.RunPasses()
	order := b.LayoutBlocks()
	require.NotEmpty(t, order)
}

func TestSelectChoosesFirstOperandOnTrueCondition(t *testing.T) {
	b := ssa.NewBuilder()
	env := &fakeEnv{}
	tr := frontend.NewTranslator(b, env)

	sig := vmctxSig(nil, []ssa.Type{ssa.TypeI32})
	entry := tr.Init(sig, nil, nil)
	env.vmctx = ssa.EntryParam(b, entry, 0)

	tr.ConstI32(10)
	tr.ConstI32(20)
	tr.ConstI32(1)
	tr.Select()
	tr.Return(1)
	tr.End()

	b.RunPasses()
	require.NotEmpty(t, b.Format())

	consts := map[uint64]ssa.Value{}
	var sel *ssa.Instruction
	for instr := b.BasicBlock(entry).Root(); instr != nil; instr = instr.Next() {
		switch instr.Opcode() {
		case ssa.OpcodeIconst:
			v, _ := instr.Return()
			consts[instr.ConstantBits()] = v
		case ssa.OpcodeSelect:
			sel = instr
		}
	}
	require.NotNil(t, sel)
	// The value chosen on a non-zero condition is the first one pushed (10).
	require.Equal(t, consts[10], sel.Arg2())
	require.Equal(t, consts[20], sel.Arg3())
}

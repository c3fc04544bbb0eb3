package watc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	watc "github.com/watc-project/watc"
	"github.com/watc-project/watc/internal/frontend"
	"github.com/watc-project/watc/internal/ssa"
)

// fakeEnv implements watc.Environment for a single, import-free module with
// one linear memory and no globals or tables — enough to drive
// Compiler.CompileFunction end to end.
type fakeEnv struct {
	isa watc.ISA
}

func (e *fakeEnv) ISA() watc.ISA { return e.isa }

func (e *fakeEnv) FunctionSignature(uint32) *ssa.Signature { panic("no calls in this test") }
func (e *fakeEnv) MakeDirectFunc(uint32) ssa.FuncRef        { panic("no calls in this test") }
func (e *fakeEnv) MakeIndirectSig(uint32) ssa.SigRef        { panic("no calls in this test") }
func (e *fakeEnv) Table(uint32) ssa.Table                   { panic("no tables in this test") }
func (e *fakeEnv) Heap(memoryIndex uint32) ssa.Heap         { return ssa.Heap(memoryIndex) }
func (e *fakeEnv) Global(globalIndex uint32) ssa.Global     { return ssa.Global(globalIndex) }
func (e *fakeEnv) VMContextValue() ssa.Value                { return ssa.ValueInvalid }

func (e *fakeEnv) MakeHeap(memoryIndex uint32) (ssa.Heap, ssa.HeapData) {
	return ssa.Heap(memoryIndex), ssa.HeapData{GuardSize: 65536, Style: ssa.BoundsStyleStatic}
}

func (e *fakeEnv) MakeGlobalData(globalIndex uint32) ssa.GlobalData {
	return ssa.GlobalData{Type: ssa.TypeI64, Mutable: true}
}

func addTwoSignature() *ssa.Signature {
	return &ssa.Signature{
		ID: 1,
		Params: []ssa.AbiParam{
			{Type: ssa.TypeI64, Purpose: ssa.ArgumentPurposeVMContext},
			{Type: ssa.TypeI32},
			{Type: ssa.TypeI32},
		},
		Results: []ssa.AbiParam{{Type: ssa.TypeI32}},
	}
}

// TestCompileFunctionAddTwoArm64 drives the translator/builder/abi/regalloc
// pipeline over `(i32, i32) -> i32` returning the sum of its two arguments,
// the smallest function body that exercises a binary opcode, a Return, and
// register allocation together.
func TestCompileFunctionAddTwoArm64(t *testing.T) {
	env := &fakeEnv{isa: watc.ISAArm64}
	c := watc.NewCompiler(env)

	sig := addTwoSignature()
	body := watc.Body{
		Translate: func(fe *frontend.Translator) error {
			fe.LocalGet(0)
			fe.LocalGet(1)
			fe.Numeric(ssa.OpcodeIadd, ssa.TypeI32, 2)
			fe.Return(1)
			fe.End()
			return nil
		},
	}

	cf, err := c.CompileFunction(0, sig, body)
	require.NoError(t, err)
	require.NotNil(t, cf)
	require.Zero(t, cf.FrameSize%16)
}

func TestCompileFunctionRejectsUnsupportedOpcode(t *testing.T) {
	env := &fakeEnv{isa: watc.ISAAmd64}
	c := watc.NewCompiler(env)

	sig := addTwoSignature()
	wantErr := &frontend.UnsupportedError{Opcode: 0xfd, Reason: "simd is out of scope"}
	body := watc.Body{
		Translate: func(fe *frontend.Translator) error {
			return wantErr
		},
	}

	_, err := c.CompileFunction(0, sig, body)
	require.Error(t, err)
	var ce *watc.CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, watc.ErrorKindUnsupported, ce.Kind)
}

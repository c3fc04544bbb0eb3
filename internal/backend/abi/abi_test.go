package abi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watc-project/watc/internal/backend/abi"
	arm64isa "github.com/watc-project/watc/internal/isa/arm64"
	"github.com/watc-project/watc/internal/ssa"
)

func TestClassifySpillsToStackOnceIntRegsExhausted(t *testing.T) {
	params := make([]ssa.AbiParam, 0, 10)
	for i := 0; i < 10; i++ {
		params = append(params, ssa.AbiParam{Type: ssa.TypeI64})
	}
	sig := &ssa.Signature{ID: 1, Params: params}

	fnABI := abi.Init(sig, arm64isa.RegInfo)

	for i, a := range fnABI.Args {
		if i < 8 {
			require.Equal(t, abi.ArgKindReg, a.Kind, "arg %d should be register-resident", i)
		} else {
			require.Equal(t, abi.ArgKindStack, a.Kind, "arg %d should have spilled to the stack", i)
		}
	}
	require.Equal(t, uint32(16), fnABI.ArgStackSize) // two 8-byte stack args, 16-byte aligned
}

func TestClassifySeparatesIntAndFloatRegisterBanks(t *testing.T) {
	sig := &ssa.Signature{
		ID: 2,
		Params: []ssa.AbiParam{
			{Type: ssa.TypeI32},
			{Type: ssa.TypeF64},
			{Type: ssa.TypeI32},
			{Type: ssa.TypeF64},
		},
	}
	fnABI := abi.Init(sig, arm64isa.RegInfo)
	for _, a := range fnABI.Args {
		require.Equal(t, abi.ArgKindReg, a.Kind)
	}
	// The two floats and two ints must not have competed for the same bank.
	require.NotEqual(t, fnABI.Args[0].Reg, fnABI.Args[2].Reg)
	require.NotEqual(t, fnABI.Args[1].Reg, fnABI.Args[3].Reg)
}

func TestFrameLayoutTotalSizeIsSixteenByteAligned(t *testing.T) {
	f := &abi.FrameLayout{CalleeSaveSize: 16, ExplicitStackSize: 4, SpillSize: 8}
	total := f.TotalFrameSize()
	require.Zero(t, total%16)
	require.GreaterOrEqual(t, total, f.CalleeSaveSize+f.ExplicitStackSize+f.SpillSize)
}

func TestNominalToRealAddsTotalFrameSize(t *testing.T) {
	f := &abi.FrameLayout{CalleeSaveSize: 16, ExplicitStackSize: 16}
	require.Equal(t, int32(f.TotalFrameSize())+8, f.NominalToReal(8))
}

func TestPlanCallMatchesCalleeClassification(t *testing.T) {
	params := make([]ssa.AbiParam, 0, 10)
	for i := 0; i < 10; i++ {
		params = append(params, ssa.AbiParam{Type: ssa.TypeI64})
	}
	sig := &ssa.Signature{ID: 3, Params: params, Results: []ssa.AbiParam{{Type: ssa.TypeI64}}}

	seq := abi.PlanCall(sig, arm64isa.RegInfo)

	require.Equal(t, abi.Init(sig, arm64isa.RegInfo).Args, seq.Callee.Args)
	require.Equal(t, seq.Callee.ArgStackSize+seq.Callee.RetStackSize, seq.StackAdjust)
	require.Zero(t, seq.StackAdjust%16)
}

func TestPlanCallNoStackAdjustWhenEverythingFitsInRegisters(t *testing.T) {
	sig := &ssa.Signature{
		ID:      4,
		Params:  []ssa.AbiParam{{Type: ssa.TypeI32}, {Type: ssa.TypeI32}},
		Results: []ssa.AbiParam{{Type: ssa.TypeI32}},
	}
	seq := abi.PlanCall(sig, arm64isa.RegInfo)
	require.Zero(t, seq.StackAdjust)
}

package ssa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watc-project/watc/internal/ssa"
)

func TestSelectLowersToOneInstruction(t *testing.T) {
	b := ssa.NewBuilder()
	sig := &ssa.Signature{
		ID:     1,
		Params: []ssa.AbiParam{{Type: ssa.TypeI32}, {Type: ssa.TypeI32}, {Type: ssa.TypeI32}},
		Results: []ssa.AbiParam{{Type: ssa.TypeI32}},
	}
	entry := ssa.Init(b, sig)
	cond := ssa.EntryParam(b, entry, 0)
	x := ssa.EntryParam(b, entry, 1)
	y := ssa.EntryParam(b, entry, 2)

	result := ssa.EmitSelect(b, ssa.TypeI32, cond, x, y)
	ssa.EmitReturn(b, result)

	b.RunPasses()

	require.True(t, result.Valid())
	require.Equal(t, ssa.TypeI32, result.Type())
}

func TestIfElseMergesViaFollowUpBlockParam(t *testing.T) {
	b := ssa.NewBuilder()
	sig := &ssa.Signature{
		ID:      2,
		Params:  []ssa.AbiParam{{Type: ssa.TypeI32}},
		Results: []ssa.AbiParam{{Type: ssa.TypeI32}},
	}
	entry := ssa.Init(b, sig)
	cond := ssa.EntryParam(b, entry, 0)

	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()
	follow := b.CreateBlock()
	resultParam := b.AppendBlockParam(follow, ssa.TypeI32)

	ssa.EmitBrz(b, cond, elseBlk, nil, thenBlk, nil)
	b.Seal(thenBlk)
	b.Seal(elseBlk)

	b.SetCurrentBlock(thenBlk)
	one := ssa.EmitIconst(b, ssa.TypeI32, 1)
	ssa.EmitJump(b, follow, one)

	b.SetCurrentBlock(elseBlk)
	two := ssa.EmitIconst(b, ssa.TypeI32, 2)
	ssa.EmitJump(b, follow, two)

	b.Seal(follow)
	b.SetCurrentBlock(follow)
	ssa.EmitReturn(b, resultParam)

	b.RunPasses()
	order := b.LayoutBlocks()
	require.NotEmpty(t, order)
}

func TestLoopBackEdgeIsDetectedAsHeader(t *testing.T) {
	b := ssa.NewBuilder()
	sig := &ssa.Signature{ID: 3, Params: nil, Results: nil}
	ssa.Init(b, sig)

	header := b.CreateBlock()
	ssa.EmitJump(b, header)
	b.SetCurrentBlock(header)
	b.SetLoopHeader(header)

	exit := b.CreateBlock()
	cond := ssa.EmitIconst(b, ssa.TypeI32, 0)
	ssa.EmitBrz(b, cond, exit, nil, header, nil)
	b.Seal(header)
	b.Seal(exit)

	b.SetCurrentBlock(exit)
	ssa.EmitReturn(b)

	b.RunPasses()

	require.True(t, b.BasicBlock(header).LoopHeader())
}

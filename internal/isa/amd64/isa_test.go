package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	goasmamd64 "github.com/watc-project/watc/internal/asm/amd64"
	"github.com/watc-project/watc/internal/backend/abi"
	amd64isa "github.com/watc-project/watc/internal/isa/amd64"
)

func TestPrologueEpilogueAssembleForSmallFrame(t *testing.T) {
	a := goasmamd64.NewAssembler()
	frame := &abi.FrameLayout{ExplicitStackSize: 24}
	saves := amd64isa.CalleeSavedIntRegs[:1]

	amd64isa.Prologue(a, frame, saves)
	amd64isa.Epilogue(a, frame, saves)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, code)
	require.Equal(t, uint32(8), frame.CalleeSaveSize)
}

func TestWinFastcallUsesFourIntParamRegs(t *testing.T) {
	require.Len(t, amd64isa.WinFastcallRegInfo.IntParamRegs(), 4)
	require.Len(t, amd64isa.RegInfo.IntParamRegs(), 6)
}

func TestStackLimitRegisterIsDistinctFromVMContextRegister(t *testing.T) {
	require.NotEqual(t, amd64isa.VMContextRegister(), amd64isa.StackLimitRegister())
}

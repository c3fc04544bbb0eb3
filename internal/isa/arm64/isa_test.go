package arm64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	goasmarm64 "github.com/watc-project/watc/internal/asm/arm64"
	"github.com/watc-project/watc/internal/backend/abi"
	arm64isa "github.com/watc-project/watc/internal/isa/arm64"
)

func TestPrologueEpilogueAssembleForSmallFrame(t *testing.T) {
	a := goasmarm64.NewAssembler()
	frame := &abi.FrameLayout{ExplicitStackSize: 16}
	saves := arm64isa.CalleeSavedIntRegs[:2]

	arm64isa.Prologue(a, frame, saves)
	arm64isa.Epilogue(a, frame, saves)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, code)
	require.Equal(t, uint32(16), frame.CalleeSaveSize)
}

func TestPrologueEmitsStackProbeLoopAboveThreshold(t *testing.T) {
	a := goasmarm64.NewAssembler()
	frame := &abi.FrameLayout{ExplicitStackSize: abi.StackProbeThreshold + 4096}

	arm64isa.Prologue(a, frame, nil)
	arm64isa.Epilogue(a, frame, nil)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, code)
}

func TestStackLimitRegisterIsDistinctFromVMContextRegister(t *testing.T) {
	require.NotEqual(t, arm64isa.VMContextRegister(), arm64isa.StackLimitRegister())
}

func TestIntAndFloatParamRegsDoNotOverlapNumbering(t *testing.T) {
	for _, i := range arm64isa.RegInfo.IntParamRegs() {
		for _, f := range arm64isa.RegInfo.FloatParamRegs() {
			require.NotEqual(t, i, f)
		}
	}
}

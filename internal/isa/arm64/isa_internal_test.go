package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	goasmarm64 "github.com/watc-project/watc/internal/asm/arm64"
	"github.com/watc-project/watc/internal/backend/abi"
)

// These exercise emitStackLimitPreCheck directly (this package's own
// test, not isa_test.go's black-box one) so the pre-check's contribution
// can be isolated from the separately-threshold-gated probe loop, which a
// Prologue-level comparison alone can't do since both gate on the same
// abi.StackProbeThreshold.
func TestStackLimitPreCheckAddsInstructionsBeyondTheOrdinaryCheck(t *testing.T) {
	withPreCheck := goasmarm64.NewAssembler()
	emitStackLimitPreCheck(withPreCheck, 1<<20)
	emitStackLimitCheck(withPreCheck, 1<<20)
	withCode, err := withPreCheck.Assemble()
	require.NoError(t, err)

	withoutPreCheck := goasmarm64.NewAssembler()
	emitStackLimitCheck(withoutPreCheck, 1<<20)
	withoutCode, err := withoutPreCheck.Assemble()
	require.NoError(t, err)

	require.Greater(t, len(withCode), len(withoutCode))
}

func TestPrologueOmitsPreCheckBelowThreshold(t *testing.T) {
	below := goasmarm64.NewAssembler()
	Prologue(below, &abi.FrameLayout{ExplicitStackSize: abi.StackProbeThreshold - 16}, nil)

	belowCode, err := below.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, belowCode)

	at := goasmarm64.NewAssembler()
	Prologue(at, &abi.FrameLayout{ExplicitStackSize: abi.StackProbeThreshold}, nil)
	atCode, err := at.Assemble()
	require.NoError(t, err)

	// At exactly the threshold, Prologue additionally emits both the
	// pre-check and the probe loop, so it must be longer than the
	// sub-threshold frame's prologue, which emits neither.
	require.Greater(t, len(atCode), len(belowCode))
}

package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	goasmamd64 "github.com/watc-project/watc/internal/asm/amd64"
	"github.com/watc-project/watc/internal/backend/abi"
)

// These exercise emitStackLimitPreCheck directly (this package's own test,
// not isa_test.go's black-box one) so the pre-check's contribution can be
// isolated from the separately-threshold-gated probe loop, which a
// Prologue-level comparison alone can't do since both gate on the same
// abi.StackProbeThreshold.
func TestStackLimitPreCheckAddsInstructionsBeyondTheOrdinaryCheck(t *testing.T) {
	withPreCheck := goasmamd64.NewAssembler()
	emitStackLimitPreCheck(withPreCheck, 1<<20)
	emitStackLimitCheck(withPreCheck, 1<<20)
	withCode, err := withPreCheck.Assemble()
	require.NoError(t, err)

	withoutPreCheck := goasmamd64.NewAssembler()
	emitStackLimitCheck(withoutPreCheck, 1<<20)
	withoutCode, err := withoutPreCheck.Assemble()
	require.NoError(t, err)

	require.Greater(t, len(withCode), len(withoutCode))
}

func TestPrologueOmitsPreCheckBelowThreshold(t *testing.T) {
	below := goasmamd64.NewAssembler()
	Prologue(below, &abi.FrameLayout{ExplicitStackSize: abi.StackProbeThreshold - 24}, nil)

	belowCode, err := below.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, belowCode)

	at := goasmamd64.NewAssembler()
	Prologue(at, &abi.FrameLayout{ExplicitStackSize: abi.StackProbeThreshold}, nil)
	atCode, err := at.Assemble()
	require.NoError(t, err)

	require.Greater(t, len(atCode), len(belowCode))
}

package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watc-project/watc/internal/backend/regalloc"
)

func newIntSolver(n int) *regalloc.Solver {
	regs := make([]regalloc.RegUnit, n)
	for i := range regs {
		regs[i] = regalloc.RegUnit(i)
	}
	return regalloc.NewSolver(map[regalloc.RegClass][]regalloc.RegUnit{regalloc.RegClassInt: regs})
}

func TestQuickSolveAssignsSoleFreeRegister(t *testing.T) {
	s := newIntSolver(1)
	s.AddVar(regalloc.Variable{Value: 1, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})

	vars := s.Solve()
	require.Len(t, vars, 1)
	require.Equal(t, regalloc.RegUnit(0), vars[0].Solution)
}

func TestFixedInputClaimsItsRegisterBeforeOthersAreAssigned(t *testing.T) {
	s := newIntSolver(2)
	s.AddFixedInput(1, regalloc.RegClassInt, regalloc.RegUnit(0))
	s.AddVar(regalloc.Variable{Value: 2, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})

	vars := s.Solve()
	var out *regalloc.Variable
	for i := range vars {
		if vars[i].Value == 2 {
			out = &vars[i]
		}
	}
	require.NotNil(t, out)
	require.Equal(t, regalloc.RegUnit(1), out.Solution, "the only remaining register after the fixed input claims reg 0")
}

func TestHasFixedInputConflictsDetectsCollision(t *testing.T) {
	s := newIntSolver(2)
	s.AddFixedInput(1, regalloc.RegClassInt, regalloc.RegUnit(0))
	s.AddFixedInput(2, regalloc.RegClassInt, regalloc.RegUnit(0))
	require.True(t, s.HasFixedInputConflicts())
}

func TestRealSolveGivesCompetingVariablesDistinctRegisters(t *testing.T) {
	s := newIntSolver(2)
	// Two free Variables competing for two registers: regardless of
	// registration order, both must end up with distinct solutions.
	s.AddVar(regalloc.Variable{Value: 1, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})
	s.AddVar(regalloc.Variable{Value: 2, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})

	vars := s.Solve()
	require.Len(t, vars, 2)
	require.NotEqual(t, vars[0].Solution, vars[1].Solution)
	require.Empty(t, regalloc.Unsolved(vars))
}

func TestUnsolvedReportsExhaustedClass(t *testing.T) {
	s := newIntSolver(1)
	s.AddVar(regalloc.Variable{Value: 1, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})
	s.AddVar(regalloc.Variable{Value: 2, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})

	vars := s.Solve()
	require.Len(t, regalloc.Unsolved(vars), 1)
}

func TestScheduleEmitsDirectMoveWhenDestinationFree(t *testing.T) {
	sched := regalloc.NewScheduler()
	current := map[regalloc.ValueID]regalloc.RegUnit{1: 0}
	target := map[regalloc.ValueID]regalloc.RegUnit{1: 1}

	moves := sched.Schedule(regalloc.RegClassInt, current, target, nil)
	require.Equal(t, []regalloc.Move{{Value: 1, Class: regalloc.RegClassInt, From: 0, To: 1}}, moves)
	require.Zero(t, sched.MaxSpillSlots())
}

func TestScheduleBreaksThreeWayRotationViaScratchRegister(t *testing.T) {
	sched := regalloc.NewScheduler()
	// v1: r0->r1, v2: r1->r2, v3: r2->r0 — a pure 3-cycle, no free destination.
	current := map[regalloc.ValueID]regalloc.RegUnit{1: 0, 2: 1, 3: 2}
	target := map[regalloc.ValueID]regalloc.RegUnit{1: 1, 2: 2, 3: 0}

	moves := sched.Schedule(regalloc.RegClassInt, current, target, []regalloc.RegUnit{3})

	require.NotEmpty(t, moves)
	require.Zero(t, sched.MaxSpillSlots(), "a free scratch register should break the cycle without spilling")

	// Replay the moves and check the final register contents match target.
	final := map[regalloc.RegUnit]regalloc.ValueID{}
	for v, r := range current {
		final[r] = v
	}
	for _, m := range moves {
		require.False(t, m.Spill)
		delete(final, m.From)
		final[m.To] = m.Value
	}
	for v, want := range target {
		got, ok := final[want]
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestScheduleBreaksCycleWithEmergencySpillWhenNoScratchAvailable(t *testing.T) {
	sched := regalloc.NewScheduler()
	current := map[regalloc.ValueID]regalloc.RegUnit{1: 0, 2: 1}
	target := map[regalloc.ValueID]regalloc.RegUnit{1: 1, 2: 0}

	moves := sched.Schedule(regalloc.RegClassInt, current, target, nil)

	var sawSpill bool
	for _, m := range moves {
		if m.Spill {
			sawSpill = true
		}
	}
	require.True(t, sawSpill, "a 2-cycle with no scratch register must fall back to an emergency spill slot")
	require.Equal(t, 1, sched.MaxSpillSlots())

	// Replay the moves, including spill/fill, and check the final register
	// contents match target; a fill whose To field was lost would leave the
	// spilled value's destination register holding the wrong value (or the
	// reset zero value) instead of what target asked for.
	final := map[regalloc.RegUnit]regalloc.ValueID{}
	for v, r := range current {
		final[r] = v
	}
	spilled := map[int]regalloc.ValueID{}
	for _, m := range moves {
		if m.Spill {
			if _, isFill := spilled[m.SpillSlot]; isFill {
				delete(spilled, m.SpillSlot)
				final[m.To] = m.Value
			} else {
				spilled[m.SpillSlot] = m.Value
				delete(final, m.From)
			}
			continue
		}
		delete(final, m.From)
		final[m.To] = m.Value
	}
	for v, want := range target {
		got, ok := final[want]
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

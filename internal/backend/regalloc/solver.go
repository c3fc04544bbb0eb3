package regalloc

import "sort"

// Variable is one value the Solver must place in a register for the
// instruction currently being processed. It tracks where the value already
// lives (From, if it was live across the instruction boundary), whether it's
// consumed (IsInput), produced (IsOutput), or merely live-through
// (IsGlobal, meaning some other, not-yet-processed instruction still needs
// it in a register afterward and this instruction must not clobber it), and
// Domain — the number of physical registers in Constraint that are not
// already claimed by a fixed-register operand of this same instruction,
// used to decide assignment order: a Variable with fewer legal choices must
// be assigned before one with more, or a greedy assignment can paint itself
// into a corner.
type Variable struct {
	Value ValueID

	From RegUnit // NoRegUnit if this Variable has no preexisting location.

	IsInput, IsOutput, IsGlobal bool

	Constraint RegClass
	// Fixed, if true, means Solution is not up for negotiation — some
	// operand encoding (e.g. x86's shift-by-CL, or a calling convention's
	// argument register) requires exactly this physical register.
	Fixed    bool
	Solution RegUnit

	// Domain is recomputed by the solver immediately before solving and is
	// not meaningful before that.
	Domain int
}

// interferenceContext is the set of RegUnits already claimed and therefore
// off-limits for a new assignment within one of the solver's three
// interference scopes (Cranelift's solver.rs keeps exactly these three:
// "live_through" values that must not be clobbered at all across the
// instruction, values the instruction still needs as input operands up to
// the point being solved, and values already assigned an output register).
type interferenceContext struct {
	claimed map[RegUnit]bool
}

func newInterferenceContext() interferenceContext {
	return interferenceContext{claimed: map[RegUnit]bool{}}
}

func (c *interferenceContext) claim(r RegUnit)       { c.claimed[r] = true }
func (c *interferenceContext) isClaimed(r RegUnit) bool { return c.claimed[r] }
func (c *interferenceContext) reset()                { c.claimed = map[RegUnit]bool{} }

// Solver reconciles one instruction's register constraints at a time. The
// caller resets it per instruction, registers every Variable the
// instruction touches, then calls Solve.
type Solver struct {
	vars []Variable

	global, input, output interferenceContext

	// available lists, per RegClass, the physical registers the target ISA
	// makes available to the allocator (callee-saves the backend has
	// already reserved for its own use, and any register permanently
	// dedicated to VMContext or the stack limit, are never included).
	available map[RegClass][]RegUnit
}

// NewSolver returns a Solver configured with the given per-class available
// register sets.
func NewSolver(available map[RegClass][]RegUnit) *Solver {
	return &Solver{
		global:    newInterferenceContext(),
		input:     newInterferenceContext(),
		output:    newInterferenceContext(),
		available: available,
	}
}

// Reset clears every Variable and interference context, preparing the
// Solver for the next instruction.
func (s *Solver) Reset() {
	s.vars = s.vars[:0]
	s.global.reset()
	s.input.reset()
	s.output.reset()
}

// AddGlobalLiveThrough records a value the current instruction does not
// touch at all but which must keep its register across it (a value live in
// a register that this instruction's encoding happens to also clobber as a
// side effect, e.g. amd64's DIV implicitly destroying RDX).
func (s *Solver) AddGlobalLiveThrough(r RegUnit) { s.global.claim(r) }

// AddVar registers a Variable the current instruction reads and/or writes.
func (s *Solver) AddVar(v Variable) { s.vars = append(s.vars, v) }

// AddFixedInput records an input operand constrained to a specific physical
// register by the instruction's encoding, claiming it in the input
// interference context so no other Variable can be assigned the same unit
// before this one is consumed.
func (s *Solver) AddFixedInput(value ValueID, class RegClass, reg RegUnit) {
	s.vars = append(s.vars, Variable{Value: value, From: reg, IsInput: true, Constraint: class, Fixed: true, Solution: reg})
	s.input.claim(reg)
}

// AddFixedOutput records a result operand constrained to a specific
// physical register.
func (s *Solver) AddFixedOutput(value ValueID, class RegClass, reg RegUnit) {
	s.vars = append(s.vars, Variable{Value: value, IsOutput: true, Constraint: class, Fixed: true, Solution: reg})
	s.output.claim(reg)
}

// AddTiedInput records a 2-address-style operand whose output location must
// equal its input location (e.g. x86's destructive `add reg, reg`): the
// input and output are modeled as a single Variable that is both IsInput and
// IsOutput.
func (s *Solver) AddTiedInput(value ValueID, class RegClass, from RegUnit) {
	s.vars = append(s.vars, Variable{Value: value, From: from, IsInput: true, IsOutput: true, Constraint: class})
}

// HasFixedInputConflicts reports whether any two fixed-register input
// constraints the current instruction has registered collide on the same
// physical register — an encoding error the backend's instruction selection
// should never produce, surfaced here so it fails loudly rather than
// silently mis-scheduling.
func (s *Solver) HasFixedInputConflicts() bool {
	seen := map[RegUnit]int{}
	for _, v := range s.vars {
		if v.IsInput && v.Fixed {
			seen[v.Solution]++
		}
	}
	for _, n := range seen {
		if n > 1 {
			return true
		}
	}
	return false
}

// Solve computes a RegUnit for every registered Variable, running a quick
// pass first (assign the few Variables with only one legal choice, in any
// order) and falling back to the full domain-size-sorted greedy pass only
// if the quick pass couldn't place everything — the common case (most
// instructions have at most one or two free Variables) never needs the
// expensive path.
func (s *Solver) Solve() []Variable {
	if s.quickSolve() {
		return s.vars
	}
	return s.realSolve()
}

// quickSolve handles the trivial case: every non-fixed Variable has a
// Domain of exactly 1 once claimed units are excluded, so assignment order
// can't matter.
func (s *Solver) quickSolve() bool {
	used := map[RegUnit]bool{}
	for i := range s.vars {
		v := &s.vars[i]
		if v.Fixed {
			continue
		}
		free := s.freeRegs(v.Constraint)
		if len(free) != 1 || used[free[0]] {
			return false
		}
		v.Solution = free[0]
		used[free[0]] = true
	}
	s.commit()
	return true
}

// realSolve assigns Variables in ascending Domain order (the one with the
// fewest legal choices goes first, a standard constraint-propagation
// heuristic that minimizes backtracking — this solver never actually
// backtracks; a Variable that ascending-domain greedy assignment leaves with
// no free register keeps Solution == NoRegUnit, which Unsolved reports).
func (s *Solver) realSolve() []Variable {
	order := make([]int, len(s.vars))
	for i := range order {
		order[i] = i
	}
	for i := range s.vars {
		s.vars[i].Domain = len(s.freeRegs(s.vars[i].Constraint))
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := &s.vars[order[a]], &s.vars[order[b]]
		if va.Fixed != vb.Fixed {
			return va.Fixed // fixed constraints are "solved" already; process them first.
		}
		return va.Domain < vb.Domain
	})

	for _, idx := range order {
		v := &s.vars[idx]
		if v.Fixed {
			continue
		}
		free := s.freeRegs(v.Constraint)
		if len(free) == 0 {
			// No register left in this class: leave the Variable unsolved
			// for the caller to detect via Unsolved.
			v.Solution = NoRegUnit
			continue
		}
		v.Solution = free[0]
		if v.IsInput {
			s.input.claim(v.Solution)
		}
		if v.IsOutput {
			s.output.claim(v.Solution)
		}
	}
	s.commit()
	return s.vars
}

func (s *Solver) commit() {
	for i := range s.vars {
		if s.vars[i].IsGlobal {
			s.global.claim(s.vars[i].Solution)
		}
	}
}

// freeRegs returns the RegUnits of class not already claimed by the global,
// input, or output interference contexts.
func (s *Solver) freeRegs(class RegClass) []RegUnit {
	var out []RegUnit
	for _, r := range s.available[class] {
		if s.global.isClaimed(r) || s.input.isClaimed(r) || s.output.isClaimed(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Unsolved reports whether Solve left any non-fixed Variable without a
// register (Solution == NoRegUnit), meaning the caller must spill.
func Unsolved(vars []Variable) []*Variable {
	var out []*Variable
	for i := range vars {
		if vars[i].Solution == NoRegUnit {
			out = append(out, &vars[i])
		}
	}
	return out
}

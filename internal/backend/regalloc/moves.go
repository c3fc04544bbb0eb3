package regalloc

// Move is a single register-to-register (or, for an emergency spill,
// register-to-stack-slot and back) shuffle the scheduler emits to get from
// one instruction's register assignment to the next's.
type Move struct {
	Value ValueID
	Class RegClass
	From  RegUnit
	To    RegUnit
	// Spill, if true, marks one half of an emergency spill through the
	// stack slot SpillSlot (an index allocSpillSlot hands out): the store
	// half carries the evicted register in From, the later fill half
	// carries the receiving register in To, and the other register field
	// of each half is unused.
	Spill     bool
	SpillSlot int
}

// Scheduler produces a minimal-but-correct sequence of Moves to realize a
// target register assignment given the current one, breaking any cyclic
// permutation (a swap or longer rotation where every register in the cycle
// is simultaneously some other Variable's source and another's
// destination) by evicting one value to a scratch register or, if none is
// free, an emergency stack slot.
type Scheduler struct {
	nextSpillSlot int
	freeSpillSlots []int
}

// NewScheduler returns a ready-to-use Scheduler.
func NewScheduler() *Scheduler { return &Scheduler{} }

// Schedule computes the Move sequence transitioning from current (value ->
// its present RegUnit) to target (the Solver's just-computed assignment),
// restricted to a single RegClass at a time since a move between register
// files needs a different encoding.
//
// The algorithm is the standard "parallel move" sequencing: repeatedly emit
// any move whose destination register is currently free (not the source of
// some other still-pending move), until none remain free — at which point
// every remaining pending move is part of one or more cycles. Each cycle is
// broken by reclaiming one register (moving its value to a free scratch
// register if one exists elsewhere in the class, or to an emergency spill
// slot otherwise), which frees up a destination and lets the ordinary
// "emit what's free" loop resume.
func (s *Scheduler) Schedule(class RegClass, current, target map[ValueID]RegUnit, scratch []RegUnit) []Move {
	pending := map[ValueID]RegUnit{}
	dest := map[ValueID]RegUnit{}
	for v, to := range target {
		from, ok := current[v]
		if !ok || from == to {
			continue
		}
		pending[v] = from
		dest[v] = to
	}

	var moves []Move
	// fills holds the reload half of every emergency spill; they run after
	// all register-to-register moves, once no pending source can be
	// overwritten by them.
	var fills []Move
	occupied := func(r RegUnit) (ValueID, bool) {
		for v, from := range pending {
			if from == r {
				return v, true
			}
		}
		return 0, false
	}

	for len(pending) > 0 {
		progressed := false
		for v, from := range pending {
			to := dest[v]
			if _, busy := occupied(to); !busy {
				moves = append(moves, Move{Value: v, Class: class, From: from, To: to})
				delete(pending, v)
				delete(dest, v)
				progressed = true
			}
		}
		if progressed {
			continue
		}

		// Every remaining pending move belongs to a cycle: reclaim one
		// value out of the way to break it.
		var victim ValueID
		for v := range pending {
			victim = v
			break
		}
		from := pending[victim]
		if scratchReg, ok := pickScratch(scratch, pending); ok {
			moves = append(moves, Move{Value: victim, Class: class, From: from, To: scratchReg})
			pending[victim] = scratchReg
		} else {
			slot := s.allocSpillSlot()
			to := dest[victim]
			moves = append(moves, Move{Value: victim, Class: class, From: from, Spill: true, SpillSlot: slot})
			delete(pending, victim)
			delete(dest, victim)
			fills = append(fills, Move{Value: victim, Class: class, To: to, Spill: true, SpillSlot: slot})
		}
	}
	for _, f := range fills {
		moves = append(moves, f)
		s.freeSpillSlot(f.SpillSlot)
	}
	return moves
}

func pickScratch(scratch []RegUnit, pending map[ValueID]RegUnit) (RegUnit, bool) {
	busy := map[RegUnit]bool{}
	for _, r := range pending {
		busy[r] = true
	}
	for _, r := range scratch {
		if !busy[r] {
			return r, true
		}
	}
	return NoRegUnit, false
}

func (s *Scheduler) allocSpillSlot() int {
	if n := len(s.freeSpillSlots); n > 0 {
		slot := s.freeSpillSlots[n-1]
		s.freeSpillSlots = s.freeSpillSlots[:n-1]
		return slot
	}
	slot := s.nextSpillSlot
	s.nextSpillSlot++
	return slot
}

func (s *Scheduler) freeSpillSlot(slot int) {
	s.freeSpillSlots = append(s.freeSpillSlots, slot)
}

// MaxSpillSlots reports the high-water mark of concurrently-live emergency
// spill slots this Scheduler has needed, which the caller adds to
// abi.FrameLayout.SpillSize once register allocation for the whole function
// has finished.
func (s *Scheduler) MaxSpillSlots() int { return s.nextSpillSlot }

package frontend

import "github.com/watc-project/watc/internal/ssa"

// frameKind distinguishes the three Wasm structured-control shapes. A
// function body itself is represented as an implicit frameKindBlock pushed
// before translation starts and popped by the final `end`.
type frameKind byte

const (
	frameKindBlock frameKind = iota
	frameKindLoop
	frameKindIf
)

// controlFrame is one entry in the translator's control stack, tracking
// everything needed to resolve a `br`/`br_if`/`br_table` targeting this
// frame's depth, and to merge control flow back together at `end`.
type controlFrame struct {
	kind frameKind

	// paramTypes and resultTypes are the frame's Wasm block type: params flow in as the
	// frame's entry-block arguments (for a Loop, a branch back to the frame
	// also supplies new values for these), results flow out as the successor
	// block's parameters.
	paramTypes, resultTypes []ssa.Type

	// followUpBlock is where control continues to after this frame ends;
	// branching to this frame's depth (`br`) targets it for Block/If, or the
	// frame's own entry (headerBlock) for Loop, matching Wasm's branch
	// target rule ("a branch to a loop re-enters at the top").
	followUpBlock ssa.BasicBlockID
	headerBlock   ssa.BasicBlockID

	// elseBlock is valid only for frameKindIf; it's where control goes if
	// the `if` condition was zero. Unlike a lazily-retargeted branch, this
	// translator creates it eagerly at `If`, so it always carries exactly
	// one predecessor (the original condition branch) regardless of what
	// the then-arm goes on to do.
	elseBlock ssa.BasicBlockID
	sawElse   bool

	// originalStackHeight is the valueStack height when this frame was
	// pushed, i.e. how far to truncate back to on `end`/`else`.
	originalStackHeight int

	// live is false only for a placeholder frame pushed while the
	// enclosing context was already unreachable: none of the fields above
	// name a real block, so End and Else must never touch them.
	live bool

	// reachable tracks whether the instructions currently being translated
	// for this frame are reachable, per the Wasm spec's unreachable-code
	// rule: after any instruction that is guaranteed not to fall through
	// (br, br_table, return, unreachable), everything up to the matching
	// `else`/`end` is "stack-polymorphic" dead code that must still be
	// parsed (to find the matching `end`) but produces no IR and accepts
	// any operand types.
	reachable bool

	// branchedToExit records whether any live br/br_if/br_table targeted
	// this frame's exit (its followUpBlock, for Block/If). It is the only
	// way a frame whose own body went unreachable can still have a live
	// merge point to revive into at `end`: irrelevant for Loop, since a
	// branch naming a loop's depth always re-enters its header rather than
	// exiting it.
	branchedToExit bool

	// reachableFromTop is valid only for a live frameKindIf frame with no
	// `else` seen yet: elseBlock's single predecessor (the original
	// condition branch) keeps the merge point reachable even if the
	// then-arm itself diverges, as long as no explicit `else` has since
	// claimed that edge for itself. Else clears it permanently.
	reachableFromTop bool
}

// branchTarget returns the block a `br` targeting this frame jumps to, and
// whether that target expects values (results for Block/If, params for
// Loop).
func (f *controlFrame) branchTarget() (ssa.BasicBlockID, []ssa.Type) {
	if f.kind == frameKindLoop {
		return f.headerBlock, f.paramTypes
	}
	return f.followUpBlock, f.resultTypes
}

// controlStack is the translator's stack of nested controlFrame entries. A
// frame pushed while the enclosing frame is unreachable is a placeholder
// (live == false): still pushed and popped so depths stay aligned with
// Wasm's structured nesting, but carrying no real blocks to touch.
type controlStack struct {
	frames []controlFrame
}

func (c *controlStack) push(f controlFrame) { c.frames = append(c.frames, f) }

func (c *controlStack) pop() controlFrame {
	n := len(c.frames)
	f := c.frames[n-1]
	c.frames = c.frames[:n-1]
	return f
}

func (c *controlStack) top() *controlFrame { return &c.frames[len(c.frames)-1] }

// at returns the frame `depth` levels from the top (0 is top), as used by
// br/br_if/br_table's label immediate.
func (c *controlStack) at(depth uint32) *controlFrame {
	return &c.frames[len(c.frames)-1-int(depth)]
}

func (c *controlStack) len() int { return len(c.frames) }

func (c *controlStack) reset() { c.frames = c.frames[:0] }

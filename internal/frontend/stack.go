package frontend

import "github.com/watc-project/watc/internal/ssa"

// valueStack mirrors the Wasm operand stack during translation. Every Wasm
// operator that "pushes" or "pops" values does so here; the translator never
// consults ssa.Value identity to recover a Wasm-level stack position, only
// this stack.
type valueStack struct {
	values []ssa.Value
}

func (s *valueStack) push(v ssa.Value) { s.values = append(s.values, v) }

func (s *valueStack) pop() ssa.Value {
	n := len(s.values)
	v := s.values[n-1]
	s.values = s.values[:n-1]
	return v
}

func (s *valueStack) peek() ssa.Value { return s.values[len(s.values)-1] }

func (s *valueStack) peekAt(depthFromTop int) ssa.Value {
	return s.values[len(s.values)-1-depthFromTop]
}

func (s *valueStack) len() int { return len(s.values) }

// truncate drops every value above height, used when a control frame ends
// (the Wasm spec says a block's operand stack is cleared down to the height
// it had when the block was entered, above its own results).
func (s *valueStack) truncate(height int) { s.values = s.values[:height] }

func (s *valueStack) reset() { s.values = s.values[:0] }

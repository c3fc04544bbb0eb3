package frontend

import "github.com/watc-project/watc/internal/ssa"

// Numeric translates any arithmetic/compare/conversion opcode that consumes
// one or two values and produces one (every `i32.add`-shaped Wasm operator),
// looking up the IR opcode and result type the caller has already mapped the
// Wasm opcode to.
func (t *Translator) Numeric(op ssa.Opcode, resultType ssa.Type, arity int) {
	if !t.reachable() {
		return
	}
	switch arity {
	case 1:
		x := t.vs.pop()
		t.vs.push(ssa.EmitUnary(t.b, op, resultType, x))
	case 2:
		y := t.vs.pop()
		x := t.vs.pop()
		t.vs.push(ssa.EmitBinary(t.b, op, resultType, x, y))
	default:
		panic("BUG: unsupported arity")
	}
}

// Icmp translates an integer comparison, coercing the TypeB1 result back to
// i32 the way Wasm's boolean-as-i32 convention requires.
func (t *Translator) Icmp(cond ssa.IntegerCmpCond) {
	if !t.reachable() {
		return
	}
	y := t.vs.pop()
	x := t.vs.pop()
	b1 := ssa.EmitIcmp(t.b, cond, x, y)
	t.vs.push(ssa.EmitExtend(t.b, ssa.OpcodeUextend, ssa.TypeI32, b1))
}

// Fcmp translates a float comparison, coercing the TypeB1 result back to i32.
func (t *Translator) Fcmp(cond ssa.FloatCmpCond) {
	if !t.reachable() {
		return
	}
	y := t.vs.pop()
	x := t.vs.pop()
	b1 := ssa.EmitFcmp(t.b, cond, x, y)
	t.vs.push(ssa.EmitExtend(t.b, ssa.OpcodeUextend, ssa.TypeI32, b1))
}

// ConstI32/ConstI64/ConstF32/ConstF64 push a literal.
func (t *Translator) ConstI32(v int32) {
	if !t.reachable() {
		return
	}
	t.vs.push(ssa.EmitIconst(t.b, ssa.TypeI32, uint64(uint32(v))))
}

func (t *Translator) ConstI64(v int64) {
	if !t.reachable() {
		return
	}
	t.vs.push(ssa.EmitIconst(t.b, ssa.TypeI64, uint64(v)))
}

func (t *Translator) ConstF32(bits uint32) {
	if !t.reachable() {
		return
	}
	t.vs.push(ssa.EmitF32const(t.b, bits))
}

func (t *Translator) ConstF64(bits uint64) {
	if !t.reachable() {
		return
	}
	t.vs.push(ssa.EmitF64const(t.b, bits))
}

// Select translates `select`: pops condition, then the two candidate values
// (in Wasm order, the "if true" value pushed first).
func (t *Translator) Select() {
	if !t.reachable() {
		return
	}
	cond := t.vs.pop()
	f := t.vs.pop()
	v := t.vs.pop()
	t.vs.push(ssa.EmitSelect(t.b, v.Type(), cond, v, f))
}

// Drop translates `drop`.
func (t *Translator) Drop() {
	if !t.reachable() {
		return
	}
	t.vs.pop()
}

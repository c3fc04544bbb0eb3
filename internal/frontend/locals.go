package frontend

import "github.com/watc-project/watc/internal/ssa"

// LocalGet translates `local.get`.
func (t *Translator) LocalGet(index uint32) {
	if !t.reachable() {
		return
	}
	v := t.b.FindValue(t.locals[index], t.b.CurrentBlock())
	t.vs.push(v)
}

// LocalSet translates `local.set`.
func (t *Translator) LocalSet(index uint32) {
	if !t.reachable() {
		return
	}
	v := t.vs.pop()
	t.b.DefineVariable(t.locals[index], v, t.b.CurrentBlock())
}

// LocalTee translates `local.tee`: like LocalSet but leaves the value on the
// stack.
func (t *Translator) LocalTee(index uint32) {
	if !t.reachable() {
		return
	}
	v := t.vs.peek()
	t.b.DefineVariable(t.locals[index], v, t.b.CurrentBlock())
}

// GlobalGet translates `global.get`.
func (t *Translator) GlobalGet(index uint32, typ ssa.Type) {
	if !t.reachable() {
		return
	}
	g := t.env.Global(index)
	t.vs.push(ssa.EmitGlobalValue(t.b, typ, g))
}

// GlobalSet translates `global.set`. The Global's address is computed the
// same way GlobalGet's value is, then stored through directly; mutable
// Wasm globals are always represented as a one-word memory cell rather than
// a register-resident SSA variable, since a global can be observed from
// outside the function currently running (by another export, or by the
// host).
func (t *Translator) GlobalSet(index uint32) {
	if !t.reachable() {
		return
	}
	v := t.vs.pop()
	g := t.env.Global(index)
	addr := ssa.EmitGlobalValue(t.b, ssa.TypeI64, g)
	ssa.EmitStore(t.b, addr, v, 0)
}

package frontend

import "github.com/watc-project/watc/internal/ssa"

// Load translates any `T.load`/`T.loadN_s`/`T.loadN_u` opcode. narrowType is
// the in-memory width (e.g. TypeI8 for `i32.load8_u`); resultType is the
// value-stack type the loaded value is widened to before any sign/zero
// extension the caller has already decided on is applied. When narrowType ==
// resultType no extension is needed.
func (t *Translator) Load(memIndex uint32, narrowType, resultType ssa.Type, signed bool, offset uint32) {
	if !t.reachable() {
		return
	}
	index := t.vs.pop()
	h := t.env.Heap(memIndex)
	addr := heapAddr(t.b, h, t.heaps[h], index, offset, narrowType.Size())
	loaded := ssa.EmitLoad(t.b, narrowType, addr, 0)
	if narrowType == resultType {
		t.vs.push(loaded)
		return
	}
	op := ssa.OpcodeUextend
	if signed {
		op = ssa.OpcodeSextend
	}
	t.vs.push(ssa.EmitExtend(t.b, op, resultType, loaded))
}

// Store translates any `T.store`/`T.storeN` opcode. narrowType is the
// in-memory width the stack value is truncated to first.
func (t *Translator) Store(memIndex uint32, narrowType ssa.Type, offset uint32) {
	if !t.reachable() {
		return
	}
	val := t.vs.pop()
	index := t.vs.pop()
	h := t.env.Heap(memIndex)
	addr := heapAddr(t.b, h, t.heaps[h], index, offset, narrowType.Size())
	if val.Type() != narrowType {
		val = ssa.EmitExtend(t.b, ssa.OpcodeIreduce, narrowType, val)
	}
	ssa.EmitStore(t.b, addr, val, 0)
}

// Call translates a direct `call`.
func (t *Translator) Call(funcIndex uint32) {
	if !t.reachable() {
		return
	}
	sig := t.env.FunctionSignature(funcIndex)
	fn := t.env.MakeDirectFunc(funcIndex)
	args := t.popCallArgs(sig)
	results := ssa.EmitCall(t.b, fn, sig.ID, args, resultTypesOf(sig))
	for _, r := range results {
		t.vs.push(r)
	}
}

// CallIndirect translates a `call_indirect`.
func (t *Translator) CallIndirect(typeIndex, tableIndex uint32, sig *ssa.Signature) {
	if !t.reachable() {
		return
	}
	index := t.vs.pop()
	table := t.env.Table(tableIndex)
	sigRef := t.env.MakeIndirectSig(typeIndex)
	args := t.popCallArgs(sig)
	results := ssa.EmitCallIndirect(t.b, table, sigRef, index, args, resultTypesOf(sig))
	for _, r := range results {
		t.vs.push(r)
	}
}

func (t *Translator) popCallArgs(sig *ssa.Signature) []ssa.Value {
	n := 0
	for _, p := range sig.Params {
		if p.Purpose == ssa.ArgumentPurposeNormal {
			n++
		}
	}
	args := make([]ssa.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = t.vs.pop()
	}
	return args
}

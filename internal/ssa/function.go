package ssa

// Init resets the builder and creates the function's entry block (block 1;
// block 0 is always the synthetic return block allocated by Reset), defining
// a block parameter for every entry in sig.Params in order and sealing the
// entry block immediately since by construction it has no predecessors.
func Init(b Builder, sig *Signature) BasicBlockID {
	b.Reset()
	entry := b.CreateBlock()
	for _, p := range sig.Params {
		b.AppendBlockParam(entry, p.Type)
	}
	b.Seal(entry)
	b.SetCurrentBlock(entry)
	return entry
}

// EntryParam returns the Value bound to the i-th parameter of the entry
// block created by Init.
func EntryParam(b Builder, entry BasicBlockID, i int) Value {
	return b.BasicBlock(entry).Param(i)
}

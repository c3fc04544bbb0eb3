// Package goasmbase wraps github.com/twitchyliquid64/golang-asm's obj.Prog
// instruction stream with the bookkeeping every target-specific asm
// implementation in this module needs in common: allocating Progs, chaining
// them into a program, resolving jump targets after the fact, and handing
// the finished stream to the linker-less Assemble path to get raw bytes
// back.
package goasmbase

import (
	"bytes"
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/objabi"
)

// Base is embedded by both arm64.Assembler and amd64.Assembler. It
// owns the obj.Prog chain and the architecture-specific obj.LinkArch
// (supplied by the embedding package, since golang-asm's arch tables are
// themselves package-level globals per GOARCH).
type Base struct {
	arch *obj.LinkArch
	ctxt *obj.Link

	first, last *obj.Prog

	// pending holds branch Progs awaiting a target (recorded by
	// MarkPendingTarget): the next Add links its Prog as every pending
	// Prog's jump target, then the pending list is cleared.
	pending []*obj.Prog
}

// NewBase allocates a Base over the given architecture using golang-asm's
// default link context (no symbol table, no relocations — this module emits
// directly into its own object format rather than producing a linkable
// ELF/Mach-O/PE object).
func NewBase(arch *obj.LinkArch) *Base {
	ctxt := obj.Linknew(arch)
	ctxt.Flag_optimize = true
	return &Base{arch: arch, ctxt: ctxt}
}

// NewProg allocates a fresh, unattached instruction.
func (b *Base) NewProg() *obj.Prog {
	p := b.ctxt.NewProg()
	return p
}

// Add appends p to the instruction stream and resolves it as the target of
// any pending branch recorded by SetJumpTargetOnNext.
func (b *Base) Add(p *obj.Prog) {
	if b.first == nil {
		b.first = p
	} else {
		b.last.Link = p
	}
	b.last = p

	for _, pend := range b.pending {
		pend.To.SetTarget(p)
	}
	b.pending = b.pending[:0]
}

// MarkPendingTarget records p as awaiting resolution by the next Add.
func (b *Base) MarkPendingTarget(p *obj.Prog) { b.pending = append(b.pending, p) }

// Assemble runs golang-asm's architecture-specific span/encoding pass over
// the whole Prog chain and returns the resulting machine code.
func (b *Base) Assemble() ([]byte, error) {
	if b.first == nil {
		return nil, nil
	}
	sym := &obj.LSym{Type: objabi.STEXT}
	sym.Func = &obj.FuncInfo{}
	sym.Func.Text = b.first

	b.arch.Preprocess(b.ctxt, sym, nil)
	b.arch.Assemble(b.ctxt, sym, nil)
	if b.ctxt.Errors > 0 {
		return nil, fmt.Errorf("assembling: %d error(s) reported by golang-asm", b.ctxt.Errors)
	}
	return bytes.TrimRight(sym.P, "\x00"), nil
}

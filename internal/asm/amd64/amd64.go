// Package amd64 implements asm.Assembler for x86-64 (SystemV and Win64
// fastcall) by wrapping golang-asm's amd64 backend.
package amd64

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/watc-project/watc/internal/asm"
	"github.com/watc-project/watc/internal/asm/goasmbase"
)

// Register numbering follows the amd64 System V ABI's general-purpose
// registers; RSP/RBP are named separately since the prologue/epilogue
// generator treats them specially (RBP optionally chains frame pointers,
// RSP is the real stack pointer the nominal-SP bookkeeping tracks against).
const (
	REG_AX asm.Register = asm.Register(x86.REG_AX)
	REG_SP               = asm.Register(x86.REG_SP)
	REG_BP               = asm.Register(x86.REG_BP)
	REG_BX               = asm.Register(x86.REG_BX)
	REG_CX               = asm.Register(x86.REG_CX)
	REG_DX               = asm.Register(x86.REG_DX)
	REG_DI               = asm.Register(x86.REG_DI)
	REG_SI               = asm.Register(x86.REG_SI)
	REG_R8                = asm.Register(x86.REG_R8)
	REG_R9                = asm.Register(x86.REG_R9)
)

// Instruction mnemonics.
const (
	NOP asm.Instruction = asm.Instruction(iota)
	ADDQ
	SUBQ
	MOVQ
	MOVL
	PUSHQ
	POPQ
	TESTQ
	JMP
	JE
	JNE
	CALL
	RET
	SHRQ
	SHLQ
	SARQ
	ANDQ
	ORQ
	XORQ
	IMULQ
)

var toGoAsm = map[asm.Instruction]obj.As{
	NOP:   obj.ANOP,
	ADDQ:  x86.AADDQ,
	SUBQ:  x86.ASUBQ,
	MOVQ:  x86.AMOVQ,
	MOVL:  x86.AMOVL,
	PUSHQ: x86.APUSHQ,
	POPQ:  x86.APOPQ,
	TESTQ: x86.ATESTQ,
	JMP:   obj.AJMP,
	JE:    x86.AJEQ,
	JNE:   x86.AJNE,
	CALL:  obj.ACALL,
	RET:   obj.ARET,
	SHRQ:  x86.ASHRQ,
	SHLQ:  x86.ASHLQ,
	SARQ:  x86.ASARQ,
	ANDQ:  x86.AANDQ,
	ORQ:   x86.AORQ,
	XORQ:  x86.AXORQ,
	IMULQ: x86.AIMULQ,
}

// Assembler is the x86-64 implementation of asm.Assembler.
type Assembler struct {
	*goasmbase.Base
}

// NewAssembler returns a ready-to-use x86-64 Assembler.
func NewAssembler() *Assembler {
	return &Assembler{Base: goasmbase.NewBase(&x86.Linkamd64)}
}

var _ asm.Assembler = (*Assembler)(nil)

type node struct{ p *obj.Prog }

func (n *node) OffsetInBinary() asm.NodeOffsetInBinary { return asm.NodeOffsetInBinary(n.p.Pc) }

func regAddr(r asm.Register) obj.Addr {
	return obj.Addr{Type: obj.TYPE_REG, Reg: int16(r)}
}

func (a *Assembler) CompileStandAlone(instr asm.Instruction) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	a.Add(p)
	return &node{p}
}

func (a *Assembler) CompileConstToRegister(instr asm.Instruction, value asm.ConstantValue, dst asm.Register) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.From = obj.Addr{Type: obj.TYPE_CONST, Offset: value}
	p.To = regAddr(dst)
	a.Add(p)
	return &node{p}
}

func (a *Assembler) CompileRegisterToRegister(instr asm.Instruction, from, to asm.Register) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.From = regAddr(from)
	p.To = regAddr(to)
	a.Add(p)
	return &node{p}
}

func (a *Assembler) CompileMemoryToRegister(instr asm.Instruction, base asm.Register, offset int64, dst asm.Register) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.From = obj.Addr{Type: obj.TYPE_MEM, Reg: int16(base), Offset: offset}
	p.To = regAddr(dst)
	a.Add(p)
	return &node{p}
}

func (a *Assembler) CompileRegisterToMemory(instr asm.Instruction, src, base asm.Register, offset int64) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.From = regAddr(src)
	p.To = obj.Addr{Type: obj.TYPE_MEM, Reg: int16(base), Offset: offset}
	a.Add(p)
	return &node{p}
}

func (a *Assembler) CompileJump(instr asm.Instruction) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.To = obj.Addr{Type: obj.TYPE_BRANCH}
	a.Add(p)
	return &node{p}
}

// CompileConditionalJump synthesizes a register-against-zero branch from a
// self-TESTQ (which sets ZF without needing a second operand) followed by
// the JE/JNE the caller selected; only the JE/JNE Node's target needs
// resolving, so that's what's returned.
func (a *Assembler) CompileConditionalJump(instr asm.Instruction, cond asm.Register) asm.Node {
	test := a.NewProg()
	test.As = x86.ATESTQ
	test.From = regAddr(cond)
	test.To = regAddr(cond)
	a.Add(test)

	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.To = obj.Addr{Type: obj.TYPE_BRANCH}
	a.Add(p)
	return &node{p}
}

func (a *Assembler) AssignJumpTarget(branch, target asm.Node) {
	branch.(*node).p.To.SetTarget(target.(*node).p)
}

func (a *Assembler) CompileJumpToMemory(instr asm.Instruction, base asm.Register, offset int64) {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.To = obj.Addr{Type: obj.TYPE_MEM, Reg: int16(base), Offset: offset}
	a.Add(p)
}

func (a *Assembler) CompileJumpToRegister(instr asm.Instruction, reg asm.Register) {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.To = regAddr(reg)
	a.Add(p)
}

func (a *Assembler) SetJumpTargetOnNext(nodes ...asm.Node) {
	for _, n := range nodes {
		a.MarkPendingTarget(n.(*node).p)
	}
}

func (a *Assembler) BuildJumpTable(table []byte, initial []asm.Node) {
	for i, n := range initial {
		off := uint32(n.(*node).p.Pc)
		table[i*4+0] = byte(off)
		table[i*4+1] = byte(off >> 8)
		table[i*4+2] = byte(off >> 16)
		table[i*4+3] = byte(off >> 24)
	}
}

// Package arm64 implements asm.Assembler for AArch64/AAPCS64 by wrapping
// golang-asm's arm64 backend.
package arm64

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/watc-project/watc/internal/asm"
	"github.com/watc-project/watc/internal/asm/goasmbase"
)

// Register numbering mirrors AAPCS64: X0-X30 are general-purpose, with X29
// the frame pointer and X30 the link register; V0-V31 are the vector/float
// registers (unused by the baseline scalar instruction set but named for
// completeness since golang-asm's arm64 backend always carries them).
const (
	REG_R0 asm.Register = asm.Register(arm64.REG_R0)
	REG_FP               = asm.Register(arm64.REGFP)
	REG_LR               = asm.Register(arm64.REGLINK)
	REG_SP               = asm.Register(arm64.REGSP)
	REG_RZR              = asm.Register(arm64.REGZERO)
)

// RegN returns the general-purpose register X<n>.
func RegN(n int) asm.Register { return REG_R0 + asm.Register(n) }

// Instruction mnemonics, named after golang-asm's arm64 opcode constants.
const (
	NOP asm.Instruction = asm.Instruction(iota)
	ADD
	SUB
	MOVD
	MOVW
	STP  // store-pair: the callee-save spill idiom the prologue uses.
	LDP  // load-pair: its epilogue counterpart.
	CBZ  // compare-and-branch-if-zero.
	CBNZ
	B
	BL
	RET
	LSR // logical shift right, used both for ushr lowering and to isolate a sign bit for the stack-limit check.
	LSL
	ASR
	AND
	ORR
	EOR
	MUL
)

var toGoAsm = map[asm.Instruction]obj.As{
	NOP:  arm64.AMOVD, // placeholder mapping: NOP has no mnemonic of its own here and is encoded as MOVD.
	ADD:  arm64.AADD,
	SUB:  arm64.ASUB,
	MOVD: arm64.AMOVD,
	MOVW: arm64.AMOVW,
	STP:  arm64.ASTP,
	LDP:  arm64.ALDP,
	CBZ:  arm64.ACBZ,
	CBNZ: arm64.ACBNZ,
	B:    arm64.AB,
	BL:   arm64.ABL,
	RET:  obj.ARET,
	LSR:  arm64.ALSR,
	LSL:  arm64.ALSL,
	ASR:  arm64.AASR,
	AND:  arm64.AAND,
	ORR:  arm64.AORR,
	EOR:  arm64.AEOR,
	MUL:  arm64.AMUL,
}

// Assembler is the AArch64 implementation of asm.Assembler.
type Assembler struct {
	*goasmbase.Base
}

// NewAssembler returns a ready-to-use AArch64 Assembler.
func NewAssembler() *Assembler {
	return &Assembler{Base: goasmbase.NewBase(&arm64.Linkarm64)}
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

// CompileConditionalJump emits CBZ/CBNZ directly: both test a single
// register against zero as part of the branch encoding itself, so no
// separate compare instruction is needed.
func (a *Assembler) CompileConditionalJump(instr asm.Instruction, cond asm.Register) asm.Node {
	p := a.NewProg()
	p.As = toGoAsm[instr]
	p.From = regAddr(cond)
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
	// Each br_table case gets its target Node's Pc, the offset from the
	// start of the assembled code, as a 4-byte little-endian value; the Pcs
	// are only final once Assemble has run.
	for i, n := range initial {
		off := uint32(n.(*node).p.Pc)
		table[i*4+0] = byte(off)
		table[i*4+1] = byte(off >> 8)
		table[i*4+2] = byte(off >> 16)
		table[i*4+3] = byte(off >> 24)
	}
}

package watc

import (
	"fmt"

	"github.com/watc-project/watc/internal/asm"
	amd64asm "github.com/watc-project/watc/internal/asm/amd64"
	arm64asm "github.com/watc-project/watc/internal/asm/arm64"
	"github.com/watc-project/watc/internal/backend/abi"
	"github.com/watc-project/watc/internal/backend/regalloc"
	amd64isa "github.com/watc-project/watc/internal/isa/amd64"
	arm64isa "github.com/watc-project/watc/internal/isa/arm64"
	"github.com/watc-project/watc/internal/ssa"
)

// arm64BinaryOps and amd64BinaryOps map the scoped integer binary opcodes to
// their target's destructive two-operand mnemonic (CompileRegisterToRegister
// always means "to := to <op> from", mirroring x86's own two-address
// encoding; the arm64 assembler package follows the same convention for
// simplicity even though the real ISA has a three-operand form).
var arm64BinaryOps = map[ssa.Opcode]asm.Instruction{
	ssa.OpcodeIadd: arm64asm.ADD,
	ssa.OpcodeIsub: arm64asm.SUB,
	ssa.OpcodeImul: arm64asm.MUL,
	ssa.OpcodeBand: arm64asm.AND,
	ssa.OpcodeBor:  arm64asm.ORR,
	ssa.OpcodeBxor: arm64asm.EOR,
	ssa.OpcodeIshl: arm64asm.LSL,
	ssa.OpcodeSshr: arm64asm.ASR,
	ssa.OpcodeUshr: arm64asm.LSR,
}

var amd64BinaryOps = map[ssa.Opcode]asm.Instruction{
	ssa.OpcodeIadd: amd64asm.ADDQ,
	ssa.OpcodeIsub: amd64asm.SUBQ,
	ssa.OpcodeImul: amd64asm.IMULQ,
	ssa.OpcodeBand: amd64asm.ANDQ,
	ssa.OpcodeBor:  amd64asm.ORQ,
	ssa.OpcodeBxor: amd64asm.XORQ,
	ssa.OpcodeIshl: amd64asm.SHLQ,
	ssa.OpcodeSshr: amd64asm.SARQ,
	ssa.OpcodeUshr: amd64asm.SHRQ,
}

// emitFunction walks order's instructions in layout order, running one
// regalloc.Solver pass per instruction to pick physical registers for its
// operands and result, scheduling whatever register-to-register moves the
// Solver's assignment requires via regalloc.Scheduler, and finally handing
// the instruction to the target ISA's lowering table for encoding.
//
// Coverage here is intentionally scoped to the opcodes a baseline (MVP +
// sign-extension) function body actually needs most often: integer
// constants, the integer arithmetic/bitwise/shift family, direct calls, the
// Return terminator, and a Jump into the block laid out immediately after
// it (runBody rejects any other Jump). An instruction this table has no entry for
// fails with ErrorKindCodegen rather than silently emitting wrong code; see
// DESIGN.md and SPEC_FULL.md §5 for the still-open opcodes (compares,
// loads/stores, indirect calls, conditional branches) this is the direct
// continuation of.
//
// Because this package tracks no whole-function liveness analysis, every
// value this emission loop has ever placed in a register is treated as live
// for the rest of the function (funcEmitter.protectLiveValues) — a register
// is never handed to a second value once assigned to a first. This is
// strictly more conservative than a real allocator needs to be, but it is
// never wrong, which is what spec.md's own non-goal ("correct code, not
// optimized code") asks for. lowerCall is the one exception: it places
// values into the fixed ABI argument/result registers (where bindParams
// has already bound the entry parameters, and which on amd64 overlap
// placeOutput's pool), and evicts every resident of those registers from
// e.loc afterward (see lowerCall) rather than extending the global-liveness
// treatment to registers a real call instruction actually clobbers.
func emitFunction(target ISA, regInfo abi.RegInfo, order []ssa.BasicBlock, fnABI *abi.FunctionABI, frame *abi.FrameLayout, sched *regalloc.Scheduler, b ssa.Builder) ([]byte, error) {
	switch target {
	case ISAArm64:
		return emitFunctionArm64(order, fnABI, frame, sched, b)
	case ISAAmd64:
		return emitFunctionAmd64(order, fnABI, frame, sched, b)
	default:
		return nil, fmt.Errorf("unknown ISA %v", target)
	}
}

// emitTargetConfig bundles everything about one ISA target that
// newFuncEmitter needs: which mnemonic realizes which opcode and SP
// adjustment, which registers are available for ordinary value allocation
// versus reserved for the call-lowering sequence's indirect target load,
// and how the ABI's RegID numbering maps onto concrete asm.Register values.
type emitTargetConfig struct {
	binaryOp        map[ssa.Opcode]asm.Instruction
	moveOp, constOp asm.Instruction
	subSP, addSP    asm.Instruction
	callOp          asm.Instruction
	spReg           asm.Register
	pool            []asm.Register
	scratch         []asm.Register
	callTargetReg   asm.Register
	spillBase       asm.Register
	toArgReg        func(abi.RegID) asm.Register
	toRetReg        func(abi.RegID) asm.Register
	regInfo         abi.RegInfo
	funcTableOffset int64
}

// funcEmitter carries the state threaded through one function's
// instruction-by-instruction lowering: which physical register each
// still-reachable SSA value occupies, and the regalloc machinery that
// decides where a newly defined value goes next. It is target-agnostic: the
// arm64/amd64 entry points below fill in an emitTargetConfig, then drive it
// identically.
type funcEmitter struct {
	a        asm.Assembler
	binaryOp map[ssa.Opcode]asm.Instruction
	moveOp   asm.Instruction
	constOp  asm.Instruction
	solver   *regalloc.Solver
	sched    *regalloc.Scheduler
	scratch  []regalloc.RegUnit
	loc      map[ssa.ValueID]regalloc.RegUnit
	toArgReg func(abi.RegID) asm.Register
	toRetReg func(abi.RegID) asm.Register

	// frame supplies the spill area's base offset (ValueSpillOffset), which
	// only becomes final once CalleeSaveSize and ExplicitStackSize are, i.e.
	// before this emitter's first instruction but after Prologue has run.
	frame *abi.FrameLayout

	// spillBase is the register emergency move-scheduler spills are
	// addressed relative to; spillSeen tracks, per SpillSlot, whether the
	// store half of that slot's spill/fill pair has already been emitted
	// (see emitMove).
	spillBase asm.Register
	spillSeen map[int]bool

	// regInfo, subSP/addSP/callOp, spReg, callTargetReg and funcTableOffset
	// are lowerCall's target-specific tools: regInfo lets it build an
	// abi.CallSequence for the callee's signature with the same
	// classification the callee's own ABI.Init will use; subSP/addSP/spReg
	// adjust the stack pointer around the call; callTargetReg is the one
	// register carved out of the general allocation pool (see
	// emitFunctionArm64/Amd64) to hold the loaded function pointer without
	// risking a collision with a live value; funcTableOffset locates the
	// module's function table within VMContext.
	regInfo         abi.RegInfo
	subSP, addSP    asm.Instruction
	callOp          asm.Instruction
	spReg           asm.Register
	callTargetReg   asm.Register
	funcTableOffset int64

	// vmContext is the register the entry block's VMContext parameter is
	// resident in, captured by bindParams; NoRegUnit if this function's
	// signature has no VMContext parameter (lowerCall then refuses to lower
	// any call, since it has nothing to re-thread as the callee's own
	// leading VMContext argument).
	vmContext regalloc.RegUnit
}

func newFuncEmitter(a asm.Assembler, cfg emitTargetConfig) *funcEmitter {
	units := make([]regalloc.RegUnit, len(cfg.pool))
	for i, r := range cfg.pool {
		units[i] = regalloc.RegUnit(r)
	}
	scratchUnits := make([]regalloc.RegUnit, len(cfg.scratch))
	for i, r := range cfg.scratch {
		scratchUnits[i] = regalloc.RegUnit(r)
	}
	return &funcEmitter{
		a:               a,
		binaryOp:        cfg.binaryOp,
		moveOp:          cfg.moveOp,
		constOp:         cfg.constOp,
		solver:          regalloc.NewSolver(map[regalloc.RegClass][]regalloc.RegUnit{regalloc.RegClassInt: units}),
		sched:           regalloc.NewScheduler(),
		scratch:         scratchUnits,
		loc:             map[ssa.ValueID]regalloc.RegUnit{},
		toArgReg:        cfg.toArgReg,
		toRetReg:        cfg.toRetReg,
		spillBase:       cfg.spillBase,
		regInfo:         cfg.regInfo,
		subSP:           cfg.subSP,
		addSP:           cfg.addSP,
		callOp:          cfg.callOp,
		spReg:           cfg.spReg,
		callTargetReg:   cfg.callTargetReg,
		funcTableOffset: cfg.funcTableOffset,
		vmContext:       regalloc.NoRegUnit,
	}
}

// bindParams records the entry block's parameters at the physical registers
// fnABI.Init already assigned them, in order, so the first instruction that
// reads a parameter finds it already resident. It also captures the
// VMContext parameter's register, if the signature has one, for lowerCall.
func (e *funcEmitter) bindParams(order []ssa.BasicBlock, fnABI *abi.FunctionABI) error {
	if len(order) == 0 {
		return fmt.Errorf("function has no entry block")
	}
	params := order[0].Params()
	for i, p := range params {
		if i >= len(fnABI.Args) {
			return fmt.Errorf("entry block has more params than the classified signature")
		}
		arg := fnABI.Args[i]
		if arg.Kind != abi.ArgKindReg {
			return fmt.Errorf("stack-passed parameter %d: no lowering yet", i)
		}
		loc := regalloc.RegUnit(e.toArgReg(arg.Reg))
		e.loc[p.ID()] = loc
		if fnABI.Sig != nil && i < len(fnABI.Sig.Params) && fnABI.Sig.Params[i].Purpose == ssa.ArgumentPurposeVMContext {
			e.vmContext = loc
		}
	}
	return nil
}

// protectLiveValues claims every register this emitter has ever handed out
// in the solver's global interference context, so a new output Variable can
// never collide with a value defined by an earlier instruction.
func (e *funcEmitter) protectLiveValues() {
	for _, r := range e.loc {
		e.solver.AddGlobalLiveThrough(r)
	}
}

// placeOutput runs the Solver for a single fresh register-class output that
// must not collide with anything currently in e.loc, returning the RegUnit
// it settled on and recording it against result.
func (e *funcEmitter) placeOutput(result ssa.Value) (regalloc.RegUnit, error) {
	e.solver.Reset()
	e.protectLiveValues()
	rid := regalloc.ValueID(result.ID())
	e.solver.AddVar(regalloc.Variable{Value: rid, IsOutput: true, Constraint: regalloc.RegClassInt, From: regalloc.NoRegUnit})
	vars := e.solver.Solve()
	for _, v := range vars {
		if v.Value != rid {
			continue
		}
		if v.Solution == regalloc.NoRegUnit {
			return regalloc.NoRegUnit, fmt.Errorf("register allocation exhausted for value %d", result.ID())
		}
		e.loc[result.ID()] = v.Solution
		return v.Solution, nil
	}
	return regalloc.NoRegUnit, fmt.Errorf("BUG: solved variable not found")
}

// move emits a register-to-register copy unless from and to already name
// the same physical register.
func (e *funcEmitter) move(from, to regalloc.RegUnit) {
	if from == to {
		return
	}
	e.a.CompileRegisterToRegister(e.moveOp, asm.Register(from), asm.Register(to))
}

// lowerIconst places the instruction's constant operand into a fresh
// register.
func (e *funcEmitter) lowerIconst(instr *ssa.Instruction) error {
	rv, ok := instr.Return()
	if !ok {
		return fmt.Errorf("iconst has no result")
	}
	dst, err := e.placeOutput(rv)
	if err != nil {
		return err
	}
	e.a.CompileConstToRegister(e.constOp, int64(instr.ConstantBits()), asm.Register(dst))
	return nil
}

// lowerBinary lowers a two-input, one-output integer opcode by moving its
// first operand into a freshly allocated register (distinct from both
// operands' current registers, via placeOutput/protectLiveValues) and then
// applying op against its second operand's register in place.
func (e *funcEmitter) lowerBinary(instr *ssa.Instruction, op asm.Instruction) error {
	a1, a2 := instr.Arg(), instr.Arg2()
	r1, ok1 := e.loc[a1.ID()]
	r2, ok2 := e.loc[a2.ID()]
	if !ok1 || !ok2 {
		return fmt.Errorf("operand of %s not resident in a register", instr.Opcode())
	}
	rv, ok := instr.Return()
	if !ok {
		return fmt.Errorf("%s has no result", instr.Opcode())
	}
	dst, err := e.placeOutput(rv)
	if err != nil {
		return err
	}
	e.move(r1, dst)
	e.a.CompileRegisterToRegister(op, asm.Register(r2), asm.Register(dst))
	return nil
}

// lowerReturn moves every returned value into its ABI-assigned result
// register, using the Scheduler so that a multi-value return whose sources
// and destinations overlap (e.g. swapped registers) is sequenced correctly
// rather than clobbered by a naive one-at-a-time copy.
func (e *funcEmitter) lowerReturn(instr *ssa.Instruction, fnABI *abi.FunctionABI, b ssa.Builder) error {
	targets := instr.BrTableTargets()
	if len(targets) != 1 {
		return fmt.Errorf("return instruction has %d targets, want 1", len(targets))
	}
	values := ssa.BlockCallArgs(b, targets[0])
	if len(values) != len(fnABI.Rets) {
		return fmt.Errorf("return has %d values, signature has %d results", len(values), len(fnABI.Rets))
	}

	current := map[regalloc.ValueID]regalloc.RegUnit{}
	target := map[regalloc.ValueID]regalloc.RegUnit{}
	for i, v := range values {
		ret := fnABI.Rets[i]
		if ret.Kind != abi.ArgKindReg {
			return fmt.Errorf("stack-passed return value %d: no lowering yet", i)
		}
		loc, ok := e.loc[v.ID()]
		if !ok {
			return fmt.Errorf("return value %d not resident in a register", i)
		}
		vid := regalloc.ValueID(v.ID())
		current[vid] = loc
		target[vid] = regalloc.RegUnit(e.toRetReg(ret.Reg))
	}

	for _, m := range e.sched.Schedule(regalloc.RegClassInt, current, target, e.scratch) {
		e.emitMove(m)
	}
	return nil
}

// lowerCall lowers a direct call via the caller-side call-lowering
// sequence: adjust SP down for the callee's stack-passed argument/return
// area, move every argument (VMContext first, then the user-visible ones)
// into the callee's ABI-assigned registers, load the callee's address out
// of VMContext's function table and call through it, copy every result back
// out of its ABI-assigned register, then adjust SP back up. This mirrors
// lowerReturn's register-assignment-to-register-assignment shape — a call
// is exactly a return in reverse, into a different function's frame — reusing
// the same Scheduler for the same reason: argument registers can alias
// across sources and destinations (e.g. passing b, a to a function expecting
// a, b in the other order).
//
// Scope is deliberately narrower than the general case: stack-passed
// arguments or results (seq.StackAdjust != 0) and a synthesized return-area
// pointer both fail with a named error rather than silently miscompiling,
// since storing/loading through those slots isn't wired yet — see
// DESIGN.md. Indirect calls (OpcodeCallIndirect) are a separate, larger gap:
// a SigRef has no builder-side path back to the *ssa.Signature lowerCall
// needs to classify against, unlike a direct call's SignatureID.
func (e *funcEmitter) lowerCall(instr *ssa.Instruction, b ssa.Builder) error {
	if e.vmContext == regalloc.NoRegUnit {
		return fmt.Errorf("call: this function has no VMContext parameter to thread through to the callee")
	}

	fn, sigID := instr.CallData()
	sig := b.Signature(sigID)

	paramOffset := 0
	for _, p := range sig.Params {
		if p.Purpose != ssa.ArgumentPurposeNormal {
			paramOffset++
			continue
		}
		break
	}
	if paramOffset == 0 || sig.Params[0].Purpose != ssa.ArgumentPurposeVMContext {
		return fmt.Errorf("call: callee signature %s has no leading VMContext parameter", sigID)
	}

	seq := abi.PlanCall(sig, e.regInfo)
	if seq.Callee.ReturnArea {
		return fmt.Errorf("call: callee %s needs a synthesized return-area pointer: no lowering yet", sigID)
	}
	if seq.StackAdjust != 0 {
		return fmt.Errorf("call: callee %s has stack-passed arguments or results: no lowering yet", sigID)
	}

	args := instr.Args(b)
	if len(args) != len(seq.Callee.Args)-paramOffset {
		return fmt.Errorf("call: %d arguments, callee signature wants %d", len(args), len(seq.Callee.Args)-paramOffset)
	}

	// Step 1: adjust SP down for the callee's stack argument/return area.
	// A no-op today since the stack-passed case above is rejected, but the
	// general mechanism is real: it activates unchanged once stack-slot
	// population is added.
	if seq.StackAdjust != 0 {
		e.a.CompileConstToRegister(e.subSP, int64(seq.StackAdjust), e.spReg)
	}

	// Step 2: move VMContext and every user argument into the callee's
	// ABI-assigned registers, via the Scheduler so aliased sources and
	// destinations (e.g. an argument that is itself already resident in
	// another argument's target register) are sequenced correctly.
	current := map[regalloc.ValueID]regalloc.RegUnit{}
	target := map[regalloc.ValueID]regalloc.RegUnit{}

	current[0] = e.vmContext
	target[0] = regalloc.RegUnit(e.toArgReg(seq.Callee.Args[0].Reg))

	for i, v := range args {
		argClass := seq.Callee.Args[i+paramOffset]
		if argClass.Kind != abi.ArgKindReg {
			return fmt.Errorf("call: stack-passed argument %d: no lowering yet", i)
		}
		loc, ok := e.loc[v.ID()]
		if !ok {
			return fmt.Errorf("call: argument %d not resident in a register", i)
		}
		vid := regalloc.ValueID(v.ID()) + 1 // +1: value 0 is reserved for VMContext above.
		current[vid] = loc
		target[vid] = regalloc.RegUnit(e.toArgReg(argClass.Reg))
	}

	for _, m := range e.sched.Schedule(regalloc.RegClassInt, current, target, e.scratch) {
		e.emitMove(m)
	}

	// Step 3 (stack-store of any stack-passed argument) is the same
	// still-open gap as above; nothing to do for an all-register call.

	// Step 4/5: load the callee's address out of VMContext's function
	// table and call through it. callTargetReg is carved out of the
	// ordinary value-allocation pool specifically so this load can never
	// collide with a value the solver has handed to some other still-live
	// SSA value (see emitTargetConfig).
	vmctxArgReg := asm.Register(e.toArgReg(seq.Callee.Args[0].Reg))
	e.a.CompileMemoryToRegister(e.moveOp, vmctxArgReg, e.funcTableOffset+int64(fn)*8, e.callTargetReg)
	e.a.CompileJumpToRegister(e.callOp, e.callTargetReg)

	// A real call clobbers every caller-saved argument/result register;
	// any value this emitter still believes lives in one of those (an
	// entry parameter that was never itself a live operand so far, bound
	// directly into an argument register by bindParams) is stale now.
	// Evict it rather than let a later instruction silently read clobbered
	// data through it.
	e.evictArgResultBank()

	// Step 6: copy every result out of its ABI-assigned register.
	results := instr.Returns(b)
	if len(results) != len(seq.Callee.Rets) {
		return fmt.Errorf("call: %d results, callee signature has %d", len(results), len(seq.Callee.Rets))
	}
	for i, r := range results {
		ret := seq.Callee.Rets[i]
		if ret.Kind != abi.ArgKindReg {
			return fmt.Errorf("call: stack-passed return value %d: no lowering yet", i)
		}
		dst, err := e.placeOutput(r)
		if err != nil {
			return err
		}
		e.move(regalloc.RegUnit(e.toRetReg(ret.Reg)), dst)
	}

	// Step 7: adjust SP back up, mirroring step 1.
	if seq.StackAdjust != 0 {
		e.a.CompileConstToRegister(e.addSP, int64(seq.StackAdjust), e.spReg)
	}

	return nil
}

// evictArgResultBank deletes from e.loc every entry resident in one of
// regInfo's integer argument or result registers, including the call's own
// arguments: those are the registers a real call instruction clobbers.
// Entry parameters bound there by bindParams are evicted this way; on amd64,
// whose placeOutput pool shares CX, SI, DI, R8 and R9 with the argument
// registers, so is any ordinary value placed in one of them.
func (e *funcEmitter) evictArgResultBank() {
	bank := map[regalloc.RegUnit]bool{}
	for _, r := range e.regInfo.IntParamRegs() {
		bank[regalloc.RegUnit(e.toArgReg(r))] = true
	}
	for _, r := range e.regInfo.IntResultRegs() {
		bank[regalloc.RegUnit(e.toRetReg(r))] = true
	}
	for id, r := range e.loc {
		if bank[r] {
			delete(e.loc, id)
		}
	}
}

// emitMove realizes a single regalloc.Move, including the emergency-spill
// pair a broken cycle needs: the first time a given SpillSlot is seen it's
// the store half (From is the register being evicted), the second time it's
// the fill half (To is the register receiving the spilled value back) —
// Scheduler.Schedule always emits a slot's store immediately followed,
// eventually, by its matching fill.
func (e *funcEmitter) emitMove(m regalloc.Move) {
	if !m.Spill {
		e.a.CompileRegisterToRegister(e.moveOp, asm.Register(m.From), asm.Register(m.To))
		return
	}
	if e.spillSeen == nil {
		e.spillSeen = map[int]bool{}
	}
	off := e.frame.ValueSpillOffset(int32(m.SpillSlot) * 8)
	if !e.spillSeen[m.SpillSlot] {
		e.spillSeen[m.SpillSlot] = true
		e.a.CompileRegisterToMemory(e.moveOp, asm.Register(m.From), e.spillBase, off)
		return
	}
	delete(e.spillSeen, m.SpillSlot)
	e.a.CompileMemoryToRegister(e.moveOp, e.spillBase, off, asm.Register(m.To))
}

func arm64EmitConfig() emitTargetConfig {
	scratch := arm64isa.ScratchIntRegs
	generalScratch := scratch[:len(scratch)-1]
	callTarget := scratch[len(scratch)-1]
	pool := append(append([]asm.Register{}, arm64isa.CalleeSavedIntRegs...), generalScratch...)
	return emitTargetConfig{
		binaryOp:        arm64BinaryOps,
		moveOp:          arm64asm.MOVD,
		constOp:         arm64asm.MOVD,
		subSP:           arm64asm.SUB,
		addSP:           arm64asm.ADD,
		callOp:          arm64asm.BL,
		spReg:           arm64asm.REG_SP,
		pool:            pool,
		scratch:         scratch,
		callTargetReg:   callTarget,
		spillBase:       arm64asm.REG_SP,
		toArgReg:        arm64ArgReg,
		toRetReg:        arm64RetReg,
		regInfo:         arm64isa.RegInfo,
		funcTableOffset: arm64isa.FuncTableOffset,
	}
}

func amd64EmitConfig() emitTargetConfig {
	scratch := amd64isa.ScratchIntRegs
	generalScratch := scratch[:len(scratch)-1]
	callTarget := scratch[len(scratch)-1]
	pool := append(append([]asm.Register{}, amd64isa.CalleeSavedIntRegs...), generalScratch...)
	return emitTargetConfig{
		binaryOp:        amd64BinaryOps,
		moveOp:          amd64asm.MOVQ,
		constOp:         amd64asm.MOVQ,
		subSP:           amd64asm.SUBQ,
		addSP:           amd64asm.ADDQ,
		callOp:          amd64asm.CALL,
		spReg:           amd64asm.REG_SP,
		pool:            pool,
		scratch:         scratch,
		callTargetReg:   callTarget,
		spillBase:       amd64asm.REG_SP,
		toArgReg:        amd64ArgReg,
		toRetReg:        amd64RetReg,
		regInfo:         amd64isa.RegInfo,
		funcTableOffset: amd64isa.FuncTableOffset,
	}
}

func emitFunctionArm64(order []ssa.BasicBlock, fnABI *abi.FunctionABI, frame *abi.FrameLayout, sched *regalloc.Scheduler, b ssa.Builder) ([]byte, error) {
	cfg := arm64EmitConfig()

	// Pass 1: run the same lowering logic against a throwaway assembler
	// purely to learn how many emergency spill slots the move scheduler
	// needs, since the prologue's frame-size-dependent SP adjustment must be
	// emitted before the body that determines SpillSize.
	dryFrame := *frame
	dry := newFuncEmitter(arm64asm.NewAssembler(), cfg)
	dry.frame = &dryFrame
	if err := runBodyArm64(dry, order, fnABI, &dryFrame, b); err != nil {
		return nil, err
	}
	frame.SpillSize = uint32(dry.sched.MaxSpillSlots()) * 8

	a := arm64asm.NewAssembler()
	arm64isa.Prologue(a, frame, arm64isa.CalleeSavedIntRegs)

	e := newFuncEmitter(a, cfg)
	e.frame = frame
	if err := runBodyArm64(e, order, fnABI, frame, b); err != nil {
		return nil, err
	}

	arm64isa.Epilogue(a, frame, arm64isa.CalleeSavedIntRegs)
	return a.Assemble()
}

func emitFunctionAmd64(order []ssa.BasicBlock, fnABI *abi.FunctionABI, frame *abi.FrameLayout, sched *regalloc.Scheduler, b ssa.Builder) ([]byte, error) {
	cfg := amd64EmitConfig()

	dryFrame := *frame
	dry := newFuncEmitter(amd64asm.NewAssembler(), cfg)
	dry.frame = &dryFrame
	if err := runBodyAmd64(dry, order, fnABI, &dryFrame, b); err != nil {
		return nil, err
	}
	frame.SpillSize = uint32(dry.sched.MaxSpillSlots()) * 8

	a := amd64asm.NewAssembler()
	amd64isa.Prologue(a, frame, amd64isa.CalleeSavedIntRegs)

	e := newFuncEmitter(a, cfg)
	e.frame = frame
	if err := runBodyAmd64(e, order, fnABI, frame, b); err != nil {
		return nil, err
	}

	amd64isa.Epilogue(a, frame, amd64isa.CalleeSavedIntRegs)
	return a.Assemble()
}

// runBodyArm64 and runBodyAmd64 bind the entry block's parameters and then
// walk every reachable block's instructions in layout order, dispatching
// each to the shared opcode table. Both are identical but for the opcodes
// each target additionally declines (none, currently): kept as two names
// rather than one to leave room for a target that needs a genuinely
// different per-opcode story (e.g. a future SIMD lane op) without disturbing
// the other.
func runBodyArm64(e *funcEmitter, order []ssa.BasicBlock, fnABI *abi.FunctionABI, frame *abi.FrameLayout, b ssa.Builder) error {
	return runBody(e, order, fnABI, b, "arm64")
}

func runBodyAmd64(e *funcEmitter, order []ssa.BasicBlock, fnABI *abi.FunctionABI, frame *abi.FrameLayout, b ssa.Builder) error {
	return runBody(e, order, fnABI, b, "amd64")
}

func runBody(e *funcEmitter, order []ssa.BasicBlock, fnABI *abi.FunctionABI, b ssa.Builder, targetName string) error {
	if err := e.bindParams(order, fnABI); err != nil {
		return err
	}
	for i, blk := range order {
		for instr := blk.Root(); instr != nil; instr = instr.Next() {
			if instr.Opcode() == ssa.OpcodeJump {
				targets := instr.BrTableTargets()
				if i+1 >= len(order) || len(targets) != 1 || targets[0].Block != order[i+1].ID() {
					return fmt.Errorf("%s: jump to a block other than the next one in layout order: no lowering yet", targetName)
				}
			}
			if err := e.lowerInstr(instr, fnABI, b); err != nil {
				return fmt.Errorf("%s: %w", targetName, err)
			}
		}
	}
	return nil
}

// lowerInstr dispatches one instruction to the opcode family it belongs to.
// Everything outside the scoped set returns a named, explicit error.
func (e *funcEmitter) lowerInstr(instr *ssa.Instruction, fnABI *abi.FunctionABI, b ssa.Builder) error {
	op := instr.Opcode()
	switch op {
	case ssa.OpcodeIconst:
		return e.lowerIconst(instr)
	case ssa.OpcodeReturn:
		return e.lowerReturn(instr, fnABI, b)
	case ssa.OpcodeCall:
		return e.lowerCall(instr, b)
	case ssa.OpcodeCallIndirect:
		return fmt.Errorf("call_indirect: no builder-side path from a SigRef back to its *ssa.Signature yet, can't classify the callee's ABI")
	case ssa.OpcodeJump:
		// runBody only lets through a Jump whose target is the next block
		// in layout order, so control falls through and no code is needed.
		return nil
	default:
		if enc, ok := e.binaryOp[op]; ok {
			return e.lowerBinary(instr, enc)
		}
		return fmt.Errorf("no lowering for opcode %s", op)
	}
}

func arm64ArgReg(id abi.RegID) asm.Register { return asm.Register(id) }
func arm64RetReg(id abi.RegID) asm.Register { return asm.Register(id) }

func amd64ArgReg(id abi.RegID) asm.Register { return amd64isa.IntArgRegister(id, false) }
func amd64RetReg(id abi.RegID) asm.Register { return amd64isa.IntResultRegister(id) }

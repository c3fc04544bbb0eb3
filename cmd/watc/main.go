// Command watc is a thin smoke-test front end for the compiler: it builds
// one synthetic function signature, drives it through watc.Compiler, and
// reports the resulting code size. It owns no WebAssembly binary-format
// decoder — a real embedder drives watc.Compiler with bodies decoded from
// its own module representation.
package main

import (
	"flag"
	"log"

	watc "github.com/watc-project/watc"
	"github.com/watc-project/watc/internal/frontend"
	"github.com/watc-project/watc/internal/ssa"
)

// demoEnv is the smallest watc.Environment that can compile a
// `(i32, i32) -> i32` function body with no imports, tables, or globals.
type demoEnv struct {
	isa watc.ISA
}

func (e *demoEnv) ISA() watc.ISA { return e.isa }

func (e *demoEnv) FunctionSignature(uint32) *ssa.Signature { panic("demo has no calls") }
func (e *demoEnv) MakeDirectFunc(uint32) ssa.FuncRef        { panic("demo has no calls") }
func (e *demoEnv) MakeIndirectSig(uint32) ssa.SigRef        { panic("demo has no calls") }
func (e *demoEnv) Table(uint32) ssa.Table                   { panic("demo has no tables") }
func (e *demoEnv) Heap(memoryIndex uint32) ssa.Heap         { return ssa.Heap(memoryIndex) }
func (e *demoEnv) Global(globalIndex uint32) ssa.Global     { return ssa.Global(globalIndex) }
func (e *demoEnv) VMContextValue() ssa.Value                { return ssa.ValueInvalid }

func (e *demoEnv) MakeHeap(memoryIndex uint32) (ssa.Heap, ssa.HeapData) {
	return ssa.Heap(memoryIndex), ssa.HeapData{GuardSize: 65536, Style: ssa.BoundsStyleStatic}
}

func (e *demoEnv) MakeGlobalData(uint32) ssa.GlobalData {
	return ssa.GlobalData{Type: ssa.TypeI64, Mutable: true}
}

func main() {
	target := flag.String("arch", "arm64", "target ISA: arm64 or amd64")
	flag.Parse()

	isa := watc.ISAArm64
	if *target == "amd64" {
		isa = watc.ISAAmd64
	}

	env := &demoEnv{isa: isa}
	c := watc.NewCompiler(env)

	sig := &ssa.Signature{
		ID: 1,
		Params: []ssa.AbiParam{
			{Type: ssa.TypeI64, Purpose: ssa.ArgumentPurposeVMContext},
			{Type: ssa.TypeI32},
			{Type: ssa.TypeI32},
		},
		Results: []ssa.AbiParam{{Type: ssa.TypeI32}},
	}
	body := watc.Body{
		Translate: func(fe *frontend.Translator) error {
			fe.LocalGet(0)
			fe.LocalGet(1)
			fe.Numeric(ssa.OpcodeIadd, ssa.TypeI32, 2)
			fe.Return(1)
			fe.End()
			return nil
		},
	}

	cf, err := c.CompileFunction(0, sig, body)
	if err != nil {
		log.Fatalf("compile failed: %v", err)
	}
	log.Printf("compiled %d bytes of %s code, frame size %d", len(cf.Code), isa, cf.FrameSize)
}

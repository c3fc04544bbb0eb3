package ssa

import (
	"fmt"
	"math"
)

// Variable identifies a source-program local (a Wasm local, in this
// translator) as distinct from any particular SSA value that currently holds
// it. The builder's def/use-var machinery maps a Variable to the Value
// flowing through each basic block; see Builder.DefineVariable/FindValue.
type Variable uint32

// String implements fmt.Stringer.
func (v Variable) String() string { return fmt.Sprintf("var%d", v) }

// Value is a 32-bit handle identifying a single SSA definition, packed
// together with the value's Type (known at construction time, never
// recomputed) in the upper bits so that type queries never allocate or
// require a side table lookup.
type Value uint64

// ValueID is the bare identifier of a Value with the type bits stripped off.
type ValueID uint32

const (
	valueIDInvalid ValueID = math.MaxUint32
	// ValueInvalid is the zero value for "no value", e.g. an instruction with
	// no result.
	ValueInvalid Value = Value(valueIDInvalid)
)

// Valid reports whether v refers to a real definition.
func (v Value) Valid() bool { return v.ID() != valueIDInvalid }

// Type returns the type this value was allocated with.
func (v Value) Type() Type { return Type(v >> 32) }

// ID returns the bare identifier, stripped of type information.
func (v Value) ID() ValueID { return ValueID(v) }

func (v Value) setType(typ Type) Value { return v | Value(typ)<<32 }

// Format renders a debug name for v, consulting any annotation the builder
// was given via AnnotateValue.
func (v Value) Format(b Builder) string {
	if bb, ok := b.(*builder); ok {
		if a, ok := bb.valueAnnotations[v.ID()]; ok {
			return a
		}
	}
	return fmt.Sprintf("v%d", v.ID())
}

func (v Value) formatWithType(b Builder) string {
	return v.Format(b) + ":" + v.Type().String()
}

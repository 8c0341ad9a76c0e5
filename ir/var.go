/*
Package ir defines the architecture-neutral intermediate representation the
translator lowers guest instructions into, and the basic block container
that holds one straight-line sequence of it (spec.md §3, §4.2).

Op is a flat tagged-union record, one instance per IR operation, in the
style of oisee-z80-optimizer's pkg/inst.Instruction: a Kind discriminator
plus every operand field any kind might need, rather than a hierarchy of
op subtypes. Passes and codegen dispatch on Kind with a switch (Go's
closest match to the "exhaustive visitor" the original implementation used
a class hierarchy for).
*/
package ir

// Var is an SSA-style value handle: an index into a basic block's variable
// table. Variables are single-assignment by translator convention; the
// optimizer may record substitutions but never reassigns a Var's slot.
type Var uint32

// NoVar is the "absent" sentinel distinguishing an assigned operand from
// one that simply isn't present for this op's kind (spec.md §3).
const NoVar Var = 1<<32 - 1

// Present reports whether v names a real variable.
func (v Var) Present() bool { return v != NoVar }

// VarOrImm is either a compile-time-known 32-bit immediate or a Var
// produced earlier in the block.
type VarOrImm struct {
	Imm   uint32
	Var   Var
	IsImm bool
}

// ImmOperand builds an immediate VarOrImm.
func ImmOperand(v uint32) VarOrImm { return VarOrImm{Imm: v, IsImm: true} }

// VarOperand builds a variable VarOrImm.
func VarOperand(v Var) VarOrImm { return VarOrImm{Var: v, IsImm: false} }

// NoOperand is the zero value to use for a VarOrImm slot an Op's Kind
// doesn't use. The bare zero value of VarOrImm is NOT safe for this: its
// Var field reads as variable index 0, a real, present variable, so an
// unused operand must be set to NoOperand explicitly rather than left
// defaulted. Every Op literal constructor in this module follows that
// rule; RenameVariables and codegen rely on it.
var NoOperand = VarOrImm{Var: NoVar}

// Present reports whether this operand carries a value at all — false only
// for a default-constructed, unused operand slot on an Op whose Kind
// doesn't use it.
func (a VarOrImm) Present() bool {
	return a.IsImm || a.Var.Present()
}

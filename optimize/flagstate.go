package optimize

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
)

// flagState tracks, for each of the four NZCV flags, whether its current
// value is known at compile time and what that value is. It threads
// forward through an op list; opcode-specific update rules record which
// flags become unknown, which become a known value, and which are left
// alone (spec.md §4.3 "host-flag state tracker").
type flagState struct {
	known [4]bool // N,Z,C,V in that order
	value arm.Flags
}

const (
	flagN = 0
	flagZ = 1
	flagC = 2
	flagV = 3
)

func newFlagState() *flagState {
	return &flagState{}
}

func (s *flagState) markUnknown(mask uint32) {
	if mask&arm.CPSRBitN != 0 {
		s.known[flagN] = false
	}
	if mask&arm.CPSRBitZ != 0 {
		s.known[flagZ] = false
	}
	if mask&arm.CPSRBitC != 0 {
		s.known[flagC] = false
	}
	if mask&arm.CPSRBitV != 0 {
		s.known[flagV] = false
	}
}

func (s *flagState) markKnown(mask uint32, values arm.Flags) {
	if mask&arm.CPSRBitN != 0 {
		s.known[flagN] = true
		s.value.N = values.N
	}
	if mask&arm.CPSRBitZ != 0 {
		s.known[flagZ] = true
		s.value.Z = values.Z
	}
	if mask&arm.CPSRBitC != 0 {
		s.known[flagC] = true
		s.value.C = values.C
	}
	if mask&arm.CPSRBitV != 0 {
		s.known[flagV] = true
		s.value.V = values.V
	}
}

// matches reports whether every flag named by mask is known and already
// holds the value in values — used by the dead flag-value store pass to
// drop a redundant StoreFlags.
func (s *flagState) matches(mask uint32, values arm.Flags) bool {
	if mask&arm.CPSRBitN != 0 && (!s.known[flagN] || s.value.N != values.N) {
		return false
	}
	if mask&arm.CPSRBitZ != 0 && (!s.known[flagZ] || s.value.Z != values.Z) {
		return false
	}
	if mask&arm.CPSRBitC != 0 && (!s.known[flagC] || s.value.C != values.C) {
		return false
	}
	if mask&arm.CPSRBitV != 0 && (!s.known[flagV] || s.value.V != values.V) {
		return false
	}
	return true
}

// update advances the tracker past op, applying the ALU-flag-semantics
// that apply to op.Kind. Ops that set SetFlags produce a dynamically
// computed (unknown) result except where op.CarryOut gives a statically
// known carry for a logical op's C flag; all four bits still go unknown
// for arithmetic ops since N/Z/V always depend on the runtime operands.
func (s *flagState) update(op *ir.Op) {
	switch op.Kind {
	case ir.StoreFlags:
		s.markKnown(op.FlagMask, op.FlagValues)
	case ir.LoadFlags:
		// A read doesn't change what's known.
	case ir.And, ir.Or, ir.Eor, ir.Bic, ir.Move, ir.MoveNeg, ir.LSL, ir.LSR, ir.ASR, ir.ROR, ir.RRX:
		if op.SetFlags {
			s.markUnknown(arm.CPSRBitN | arm.CPSRBitZ)
			if op.CarryOut == ir.CarryNoChange {
				s.markUnknown(arm.CPSRBitC)
			} else {
				s.markKnown(arm.CPSRBitC, arm.Flags{C: op.CarryOut == ir.CarrySet})
			}
		}
	case ir.Add, ir.AddCarry, ir.Sub, ir.RevSub, ir.SubCarry, ir.RevSubCarry, ir.Mul, ir.MulLong:
		if op.SetFlags {
			s.markUnknown(arm.CPSRNZCVMask)
		}
	case ir.StoreCPSR:
		s.markUnknown(arm.CPSRNZCVMask)
	}
}

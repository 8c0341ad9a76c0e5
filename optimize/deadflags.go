package optimize

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
)

// flagWriteMask reports the NZCV bits op defines when it runs (independent
// of whether the written value is statically known), used by
// deadHostFlagStoreElimination to find where an earlier StoreFlags' bits
// get clobbered before anything reads them.
func flagWriteMask(op *ir.Op) uint32 {
	switch op.Kind {
	case ir.StoreFlags:
		return op.FlagMask
	case ir.And, ir.Or, ir.Eor, ir.Bic, ir.Move, ir.MoveNeg, ir.LSL, ir.LSR, ir.ASR, ir.ROR, ir.RRX:
		if !op.SetFlags {
			return 0
		}
		mask := arm.CPSRBitN | arm.CPSRBitZ
		if op.CarryOut != ir.CarryNoChange {
			mask |= arm.CPSRBitC
		}
		return mask
	case ir.Add, ir.AddCarry, ir.Sub, ir.RevSub, ir.SubCarry, ir.RevSubCarry, ir.Mul, ir.MulLong:
		if !op.SetFlags {
			return 0
		}
		return arm.CPSRNZCVMask
	case ir.StoreCPSR:
		return arm.CPSRNZCVMask
	default:
		return 0
	}
}

// flagReadMask reports the NZCV bits op consumes as an input, used to mark
// an earlier StoreFlags as live.
func flagReadMask(op *ir.Op) uint32 {
	switch op.Kind {
	case ir.LoadFlags:
		return op.FlagMask
	case ir.AddCarry, ir.SubCarry, ir.RevSubCarry:
		return arm.CPSRBitC
	case ir.LoadCPSR:
		return arm.CPSRNZCVMask
	default:
		return 0
	}
}

// deadHostFlagStoreElimination removes a StoreFlags whose written bits are
// entirely clobbered by a later flag-defining op (another StoreFlags or any
// flag-setting ALU op) before anything reads them, and narrows a StoreFlags
// whose bits are only partly clobbered down to the bits that survive
// (spec.md §4.3 pass 4). The NZCV bits are conservatively treated as live
// at block exit (they are always flushed to CPSR by the epilog), so a
// StoreFlags that reaches the end of the block with live bits remaining is
// never removed outright here.
func deadHostFlagStoreElimination(b *ir.Block) bool {
	changed := false
	live := arm.CPSRNZCVMask

	b.WalkBackward(func(op *ir.Op) {
		if op.Kind == ir.StoreFlags {
			surviving := op.FlagMask & live
			if surviving == 0 {
				b.Erase(op)
				changed = true
				return
			}
			if surviving != op.FlagMask {
				op.FlagMask = surviving
				changed = true
			}
			live &^= surviving
			return
		}

		if w := flagWriteMask(op); w != 0 {
			live &^= w
		}
		if r := flagReadMask(op); r != 0 {
			live |= r
		}
	})

	return changed
}

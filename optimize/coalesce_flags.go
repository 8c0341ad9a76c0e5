package optimize

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
)

// hostFlagsCoalescence merges two adjacent StoreFlags ops on disjoint bit
// masks into one, folds a LoadFlags into a Const when the host-flag state
// tracker already knows every bit it names, and drops a LoadFlags
// duplicating an immediately reusable earlier one for the same mask
// (spec.md §4.3 pass 9, "known to match the CPSR value" read as: nothing
// has touched those bits since they were last established).
func hostFlagsCoalescence(b *ir.Block) bool {
	state := newFlagState()
	changed := false

	var prevStore *ir.Op
	lastLoadVar := make(map[uint32]ir.Var)

	b.Walk(func(op *ir.Op) {
		switch op.Kind {
		case ir.StoreFlags:
			if prevStore != nil && prevStore.FlagMask&op.FlagMask == 0 {
				prevStore.FlagMask |= op.FlagMask
				prevStore.FlagValues = mergeFlags(prevStore.FlagMask &^ op.FlagMask, prevStore.FlagValues, op.FlagMask, op.FlagValues)
				b.Erase(op)
				changed = true
				return
			}
			state.update(op)
			prevStore = op
			for m := range lastLoadVar {
				if m&op.FlagMask != 0 {
					delete(lastLoadVar, m)
				}
			}
			return

		case ir.LoadFlags:
			if allKnown(state, op.FlagMask) {
				op.Kind = ir.Const
				op.Imm = state.value.Pack() & op.FlagMask
				op.Src1, op.Src2, op.Src3 = ir.NoOperand, ir.NoOperand, ir.NoOperand
				changed = true
			} else if v, ok := lastLoadVar[op.FlagMask]; ok {
				op.Kind = ir.CopyVar
				op.Src1 = ir.VarOperand(v)
				op.Src2, op.Src3 = ir.NoOperand, ir.NoOperand
				changed = true
			} else if op.Dst.Present() {
				lastLoadVar[op.FlagMask] = op.Dst
			}
			state.update(op)
			prevStore = nil
			return
		}

		state.update(op)
		if flagWriteMask(op) != 0 || flagReadMask(op) != 0 {
			prevStore = nil
			for m := range lastLoadVar {
				delete(lastLoadVar, m)
			}
		}
	})

	return changed
}

func allKnown(state *flagState, mask uint32) bool {
	if mask&arm.CPSRBitN != 0 && !state.known[flagN] {
		return false
	}
	if mask&arm.CPSRBitZ != 0 && !state.known[flagZ] {
		return false
	}
	if mask&arm.CPSRBitC != 0 && !state.known[flagC] {
		return false
	}
	if mask&arm.CPSRBitV != 0 && !state.known[flagV] {
		return false
	}
	return true
}

func mergeFlags(maskA uint32, a arm.Flags, maskB uint32, b arm.Flags) arm.Flags {
	result := arm.Flags{}
	if maskA&arm.CPSRBitN != 0 {
		result.N = a.N
	}
	if maskB&arm.CPSRBitN != 0 {
		result.N = b.N
	}
	if maskA&arm.CPSRBitZ != 0 {
		result.Z = a.Z
	}
	if maskB&arm.CPSRBitZ != 0 {
		result.Z = b.Z
	}
	if maskA&arm.CPSRBitC != 0 {
		result.C = a.C
	}
	if maskB&arm.CPSRBitC != 0 {
		result.C = b.C
	}
	if maskA&arm.CPSRBitV != 0 {
		result.V = a.V
	}
	if maskB&arm.CPSRBitV != 0 {
		result.V = b.V
	}
	return result
}

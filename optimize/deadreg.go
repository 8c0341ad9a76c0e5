package optimize

import "github.com/armrt/armrt/ir"

// deadRegisterStoreElimination removes a StoreGPR whose (reg, mode) is
// overwritten by a later StoreGPR before anything observes the earlier
// value — a branch, a LoadGPR of that (reg, mode), or the block's end
// (spec.md §4.3 pass 2). It runs as a single backward scan: walking tail to
// head, the first store seen for a given (reg, mode) is the "last write",
// and any store found afterward (i.e. earlier in program order) for the
// same slot with nothing observing it in between is dead.
func deadRegisterStoreElimination(b *ir.Block) bool {
	type slot struct {
		reg  uint8
		mode uint8
	}

	changed := false
	nextStore := make(map[slot]bool)

	b.WalkBackward(func(op *ir.Op) {
		switch op.Kind {
		case ir.LoadGPR:
			delete(nextStore, slot{uint8(op.GPR.Reg), uint8(op.GPR.Mode)})
		case ir.StoreGPR:
			k := slot{uint8(op.GPR.Reg), uint8(op.GPR.Mode)}
			if nextStore[k] {
				b.Erase(op)
				changed = true
				return
			}
			nextStore[k] = true
		case ir.Branch, ir.BranchExchange, ir.Undefined:
			for k := range nextStore {
				delete(nextStore, k)
			}
		}
	})

	return changed
}

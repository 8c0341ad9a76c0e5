package optimize

import "github.com/armrt/armrt/ir"

// deadStateStoreElimination applies the same dead-store principle pass 2
// uses for StoreGPR to the other stateful destinations: StoreCPSR and
// StoreSPSR (spec.md §4.3 pass 3). A branch or an undefined-instruction
// marker observes CPSR (condition evaluation, exception entry reads it),
// so it is treated as a read of every CPSR/SPSR slot rather than cleared
// past silently.
func deadStateStoreElimination(b *ir.Block) bool {
	changed := false

	cpsrWillBeOverwritten := false
	spsrWillBeOverwritten := make(map[uint8]bool)

	b.WalkBackward(func(op *ir.Op) {
		switch op.Kind {
		case ir.LoadCPSR:
			cpsrWillBeOverwritten = false
		case ir.StoreCPSR:
			if cpsrWillBeOverwritten {
				b.Erase(op)
				changed = true
				return
			}
			cpsrWillBeOverwritten = true
		case ir.LoadSPSR:
			delete(spsrWillBeOverwritten, uint8(op.PSRMode))
		case ir.StoreSPSR:
			m := uint8(op.PSRMode)
			if spsrWillBeOverwritten[m] {
				b.Erase(op)
				changed = true
				return
			}
			spsrWillBeOverwritten[m] = true
		case ir.Branch, ir.BranchExchange, ir.Undefined:
			cpsrWillBeOverwritten = false
			for k := range spsrWillBeOverwritten {
				delete(spsrWillBeOverwritten, k)
			}
		}
	})

	return changed
}

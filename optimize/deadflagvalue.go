package optimize

import "github.com/armrt/armrt/ir"

// deadFlagValueStoreElimination drops a StoreFlags whose bits are already
// guaranteed, by a known-value host-flag state with nothing able to have
// changed it since, to hold exactly the value this op is about to write —
// the write has no observable effect (spec.md §4.3 pass 5). It runs
// forward, threading flagState the way flagstate.go's update() is built
// to be used.
func deadFlagValueStoreElimination(b *ir.Block) bool {
	state := newFlagState()
	changed := false

	b.Walk(func(op *ir.Op) {
		if op.Kind == ir.StoreFlags && state.matches(op.FlagMask, op.FlagValues) {
			b.Erase(op)
			changed = true
			return
		}
		state.update(op)
	})

	return changed
}

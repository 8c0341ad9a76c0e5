package optimize

import "github.com/armrt/armrt/ir"

// deadVariableStoreElimination removes any op whose destination variable is
// never read by a later op and which has no side effect (spec.md §4.3 pass
// 6, using ir.Op.HasSideEffect to decide the latter). It runs as a single
// backward scan, building up the set of variables some later op still
// needs; an op whose Dst/Dst2 isn't in that set when reached can be
// dropped without adding its own operands to the needed set, letting a
// chain of now-unused defs collapse across repeated fixed-point passes.
func deadVariableStoreElimination(b *ir.Block) bool {
	used := make(map[ir.Var]bool)
	changed := false

	markUsed := func(a ir.VarOrImm) {
		if !a.IsImm && a.Var.Present() {
			used[a.Var] = true
		}
	}

	b.WalkBackward(func(op *ir.Op) {
		neededDst := op.Dst.Present() && used[op.Dst]
		neededDst2 := op.Dst2.Present() && used[op.Dst2]

		if !op.HasSideEffect() && !neededDst && !neededDst2 &&
			(op.Dst.Present() || op.Dst2.Present()) {
			b.Erase(op)
			changed = true
			return
		}

		markUsed(op.Src1)
		markUsed(op.Src2)
		markUsed(op.Src3)
	})

	return changed
}

package ir

// RenameVariables walks every op in b exactly once, in program order, and
// remaps each variable reference (destination or source) through a freshly
// allocated translation table so the live variable indices become a dense
// 0..N-1 range again (spec.md §4.2). The optimizer's dead-store passes can
// leave large gaps in the index space; running this after optimization
// keeps the host backend's register allocator working over a small,
// contiguous domain instead of the sparse one translation produced.
func (b *Block) RenameVariables() {
	table := make(map[Var]Var)
	var next Var

	remap := func(v Var) Var {
		if !v.Present() {
			return v
		}
		if nv, ok := table[v]; ok {
			return nv
		}
		nv := next
		next++
		table[v] = nv
		return nv
	}
	remapOperand := func(a VarOrImm) VarOrImm {
		if a.IsImm {
			return a
		}
		a.Var = remap(a.Var)
		return a
	}

	b.Walk(func(op *Op) {
		op.Dst = remap(op.Dst)
		op.Dst2 = remap(op.Dst2)
		op.Src1 = remapOperand(op.Src1)
		op.Src2 = remapOperand(op.Src2)
		op.Src3 = remapOperand(op.Src3)
	})

	b.nextVar = next
}

package optimize

import "github.com/armrt/armrt/ir"

// arithmeticCoalescence merges a chain of two add/sub ops against immediate
// operands, folds adc/sbc into a plain add/sub once the host-flag state
// tracker knows the incoming carry, and absorbs a copy-var or a flagless
// mov feeding an arithmetic op's operand directly into that operand
// (spec.md §4.3 pass 8). Single forward scan, reusing the same def-map
// lookback coalesce_bitwise.go uses plus a threaded flagState for the
// carry-fold.
func arithmeticCoalescence(b *ir.Block) bool {
	def := make(map[ir.Var]*ir.Op)
	state := newFlagState()
	changed := false

	b.Walk(func(op *ir.Op) {
		if absorbCopyOperands(op, def) {
			changed = true
		}
		if tryMergeAddSubImm(op, def) {
			changed = true
		}
		if tryFoldCarryOp(op, state) {
			changed = true
		}

		state.update(op)
		if op.Dst.Present() {
			def[op.Dst] = op
		}
	})

	return changed
}

// absorbCopyOperands replaces a Src operand referencing a CopyVar or a
// flagless Move result with that op's own source, for the arithmetic op
// kinds this pass targets.
func absorbCopyOperands(op *ir.Op, def map[ir.Var]*ir.Op) bool {
	switch op.Kind {
	case ir.Add, ir.AddCarry, ir.Sub, ir.RevSub, ir.SubCarry, ir.RevSubCarry:
	default:
		return false
	}

	resolve := func(a ir.VarOrImm) (ir.VarOrImm, bool) {
		if a.IsImm || !a.Var.Present() {
			return a, false
		}
		producer, ok := def[a.Var]
		if !ok {
			return a, false
		}
		if producer.Kind == ir.CopyVar || (producer.Kind == ir.Move && !producer.SetFlags) {
			return producer.Src1, true
		}
		return a, false
	}

	changed := false
	if v, ok := resolve(op.Src1); ok {
		op.Src1 = v
		changed = true
	}
	if v, ok := resolve(op.Src2); ok {
		op.Src2 = v
		changed = true
	}
	return changed
}

// tryMergeAddSubImm rewrites `z = Add(Add(y, imm1), imm2)` into
// `z = Add(y, imm1+imm2)`, and likewise for a Sub-of-Sub chain.
func tryMergeAddSubImm(op *ir.Op, def map[ir.Var]*ir.Op) bool {
	if op.SetFlags || !op.Src2.IsImm {
		return false
	}
	if op.Kind != ir.Add && op.Kind != ir.Sub {
		return false
	}
	if op.Src1.IsImm || !op.Src1.Var.Present() {
		return false
	}
	producer, ok := def[op.Src1.Var]
	if !ok || producer.Kind != op.Kind || producer.SetFlags || !producer.Src2.IsImm {
		return false
	}

	var sum uint32
	if op.Kind == ir.Add {
		sum = producer.Src2.Imm + op.Src2.Imm
	} else {
		sum = producer.Src2.Imm + op.Src2.Imm
	}
	op.Src1 = producer.Src1
	op.Src2 = ir.ImmOperand(sum)
	return true
}

// tryFoldCarryOp rewrites an AddCarry/SubCarry/RevSubCarry with an
// immediate second operand into a plain Add/Sub/RevSub once the carry
// flag's value is statically known, folding the carry into the immediate.
func tryFoldCarryOp(op *ir.Op, state *flagState) bool {
	if !state.known[flagC] || !op.Src2.IsImm {
		return false
	}
	carryIn := uint32(0)
	if state.value.C {
		carryIn = 1
	}

	switch op.Kind {
	case ir.AddCarry:
		op.Kind = ir.Add
		op.Src2 = ir.ImmOperand(op.Src2.Imm + carryIn)
		return true
	case ir.SubCarry:
		op.Kind = ir.Sub
		op.Src2 = ir.ImmOperand(op.Src2.Imm + (1 - carryIn))
		return true
	case ir.RevSubCarry:
		op.Kind = ir.RevSub
		op.Src2 = ir.ImmOperand(op.Src2.Imm - (1 - carryIn))
		return true
	default:
		return false
	}
}

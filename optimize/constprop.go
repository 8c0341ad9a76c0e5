package optimize

import "github.com/armrt/armrt/ir"

// constantPropagation folds ops whose operands are all immediates after
// substitution, recording a variable-to-immediate replacement for
// downstream uses (spec.md §4.3 pass 1). It never folds an op with
// SetFlags set to true: flag computation stays the optimizer's job to get
// right once (in flagstate.go), not duplicated here.
func constantPropagation(b *ir.Block) bool {
	sub := newSubstitutor()
	changed := false

	b.Walk(func(op *ir.Op) {
		if sub.apply(op) {
			changed = true
		}

		folded, ok := foldOp(op)
		if !ok {
			return
		}

		op.Kind = ir.Const
		op.Imm = folded
		op.Src1, op.Src2, op.Src3 = ir.NoOperand, ir.NoOperand, ir.NoOperand
		op.SetFlags = false

		if op.Dst.Present() {
			sub.record(op.Dst, ir.ImmOperand(folded))
		}
		changed = true
	})

	return changed
}

// foldOp computes op's result when every source operand it uses is an
// immediate and the op has no flag side effect worth preserving.
func foldOp(op *ir.Op) (uint32, bool) {
	if op.SetFlags {
		return 0, false
	}

	imm := func(a ir.VarOrImm) (uint32, bool) {
		if !a.IsImm {
			return 0, false
		}
		return a.Imm, true
	}

	switch op.Kind {
	case ir.Move:
		return imm(op.Src1)
	case ir.MoveNeg:
		v, ok := imm(op.Src1)
		return ^v, ok
	case ir.Add:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return a + b, ok1 && ok2
	case ir.Sub:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return a - b, ok1 && ok2
	case ir.RevSub:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return b - a, ok1 && ok2
	case ir.And:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return a & b, ok1 && ok2
	case ir.Or:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return a | b, ok1 && ok2
	case ir.Eor:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return a ^ b, ok1 && ok2
	case ir.Bic:
		a, ok1 := imm(op.Src1)
		b, ok2 := imm(op.Src2)
		return a &^ b, ok1 && ok2
	case ir.LSL:
		a, ok1 := imm(op.Src1)
		n, ok2 := imm(op.Src2)
		if n >= 32 {
			return 0, ok1 && ok2
		}
		return a << n, ok1 && ok2
	case ir.LSR:
		a, ok1 := imm(op.Src1)
		n, ok2 := imm(op.Src2)
		if n >= 32 {
			return 0, ok1 && ok2
		}
		return a >> n, ok1 && ok2
	case ir.ASR:
		a, ok1 := imm(op.Src1)
		n, ok2 := imm(op.Src2)
		if !ok1 || !ok2 {
			return 0, false
		}
		if n > 31 {
			n = 31
		}
		return uint32(int32(a) >> n), true
	case ir.ROR:
		a, ok1 := imm(op.Src1)
		n, ok2 := imm(op.Src2)
		if !ok1 || !ok2 {
			return 0, false
		}
		n &= 31
		if n == 0 {
			return a, true
		}
		return (a >> n) | (a << (32 - n)), true
	case ir.CopyVar:
		return imm(op.Src1)
	default:
		return 0, false
	}
}

package optimize

import "github.com/armrt/armrt/ir"

// bitwiseCoalescence merges a chain of two bitwise ops of the same kind
// against immediate operands into one, simplifies a same-kind shift chain
// by summing immediate shift amounts, and cancels a mvn-of-mvn back to a
// plain mov (spec.md §4.3 pass 7). It runs as a single forward scan,
// keeping a def map from Var to the op that produced it so it can look one
// step back through an SSA use.
func bitwiseCoalescence(b *ir.Block) bool {
	def := make(map[ir.Var]*ir.Op)
	changed := false

	b.Walk(func(op *ir.Op) {
		if merged := tryMergeBitwiseImm(op, def); merged {
			changed = true
		} else if merged := tryMergeShiftImm(op, def); merged {
			changed = true
		} else if merged := tryCancelDoubleNot(op, def); merged {
			changed = true
		}

		if op.Dst.Present() {
			def[op.Dst] = op
		}
	})

	return changed
}

func bitwiseFold(kind ir.Kind, a, b uint32) (uint32, bool) {
	switch kind {
	case ir.And:
		return a & b, true
	case ir.Or:
		return a | b, true
	case ir.Eor:
		return a ^ b, true
	case ir.Bic:
		// (y &^ a) &^ b == y &^ (a | b)
		return a | b, true
	default:
		return 0, false
	}
}

// tryMergeBitwiseImm rewrites `z = K(K(y, imm1), imm2)` (same kind K, both
// immediate right operands, neither op setting flags) into `z = K(y, f)`.
func tryMergeBitwiseImm(op *ir.Op, def map[ir.Var]*ir.Op) bool {
	if op.SetFlags || !op.Src2.IsImm {
		return false
	}
	if _, ok := bitwiseFold(op.Kind, 0, 0); !ok {
		return false
	}
	if op.Src1.IsImm || !op.Src1.Var.Present() {
		return false
	}
	producer, ok := def[op.Src1.Var]
	if !ok || producer.Kind != op.Kind || producer.SetFlags || !producer.Src2.IsImm {
		return false
	}

	folded, _ := bitwiseFold(op.Kind, producer.Src2.Imm, op.Src2.Imm)
	op.Src1 = producer.Src1
	op.Src2 = ir.ImmOperand(folded)
	return true
}

// tryMergeShiftImm rewrites `z = S(S(y, n1), n2)` (same shift kind, both
// immediate amounts, neither op setting flags) into `z = S(y, n1+n2)`,
// clamped the way the barrel shifter clamps an out-of-range amount.
func tryMergeShiftImm(op *ir.Op, def map[ir.Var]*ir.Op) bool {
	switch op.Kind {
	case ir.LSL, ir.LSR, ir.ASR, ir.ROR:
	default:
		return false
	}
	if op.SetFlags || !op.Src2.IsImm {
		return false
	}
	if op.Src1.IsImm || !op.Src1.Var.Present() {
		return false
	}
	producer, ok := def[op.Src1.Var]
	if !ok || producer.Kind != op.Kind || producer.SetFlags || !producer.Src2.IsImm {
		return false
	}

	sum := producer.Src2.Imm + op.Src2.Imm
	if op.Kind == ir.ROR {
		sum %= 32
	} else if sum > 31 {
		sum = 32 // LSL/LSR/ASR by >=32 is the architectural "all bits gone" case
	}
	op.Src1 = producer.Src1
	op.Src2 = ir.ImmOperand(sum)
	return true
}

// tryCancelDoubleNot rewrites `z = MVN(MVN(y))` into `z = MOV(y)`.
func tryCancelDoubleNot(op *ir.Op, def map[ir.Var]*ir.Op) bool {
	if op.Kind != ir.MoveNeg || op.SetFlags {
		return false
	}
	if op.Src1.IsImm || !op.Src1.Var.Present() {
		return false
	}
	producer, ok := def[op.Src1.Var]
	if !ok || producer.Kind != ir.MoveNeg || producer.SetFlags {
		return false
	}

	op.Kind = ir.Move
	op.Src1 = producer.Src1
	return true
}

package optimize

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
)

func newTestBlock() *ir.Block {
	return ir.NewBlock(ir.Location{PC: 0, Mode: arm.ModeSystem}, arm.CondAL)
}

func opKinds(b *ir.Block) []ir.Kind {
	var kinds []ir.Kind
	b.Walk(func(op *ir.Op) { kinds = append(kinds, op.Kind) })
	return kinds
}

func TestConstantPropagationFoldsImmediateAdd(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	sum := e.Add(ir.ImmOperand(2), ir.ImmOperand(3), false)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(sum))

	Optimize(b, DefaultOptions())

	var stored *ir.Op
	b.Walk(func(op *ir.Op) {
		if op.Kind == ir.StoreGPR {
			stored = op
		}
	})
	if stored == nil {
		t.Fatalf("StoreGPR op missing after optimization")
	}
	if !stored.Src1.IsImm || stored.Src1.Imm != 5 {
		t.Fatalf("StoreGPR source = %+v, want folded immediate 5", stored.Src1)
	}
}

func TestDeadRegisterStoreEliminationDropsShadowedStore(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.ImmOperand(1))
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.ImmOperand(2))

	changed := deadRegisterStoreElimination(b)
	if !changed {
		t.Fatalf("expected a dead store to be removed")
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (first store to R0 is dead)", b.Len())
	}
	op := b.Head()
	if op.Src1.Imm != 2 {
		t.Fatalf("surviving store writes %+v, want immediate 2", op.Src1)
	}
}

func TestDeadRegisterStoreElimlinationKeepsStoreReadInBetween(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.ImmOperand(1))
	e.LoadGPR(arm.R0, arm.ModeSystem)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.ImmOperand(2))

	deadRegisterStoreElimination(b)
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (an intervening read keeps the first store live)", b.Len())
	}
}

func TestDeadVariableStoreEliminationDropsUnreadDef(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.Add(ir.ImmOperand(1), ir.ImmOperand(2), false) // result never read
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.ImmOperand(9))

	changed := deadVariableStoreElimination(b)
	if !changed {
		t.Fatalf("expected the unread Add to be removed")
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	if b.Head().Kind != ir.StoreGPR {
		t.Fatalf("surviving op = %v, want StoreGPR", b.Head().Kind)
	}
}

func TestDeadVariableStoreEliminationKeepsSideEffectingOp(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.MemWrite(ir.ImmOperand(0x1000), ir.ImmOperand(0xAA), ir.SizeWord)

	changed := deadVariableStoreElimination(b)
	if changed {
		t.Fatalf("a MemWrite must never be eliminated as dead")
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
}

func TestBitwiseCoalescenceMergesAndChain(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	r0 := e.LoadGPR(arm.R0, arm.ModeSystem)
	x := e.And(ir.VarOperand(r0), ir.ImmOperand(0xFF), false, ir.CarryNoChange)
	e.And(ir.VarOperand(x), ir.ImmOperand(0x0F), false, ir.CarryNoChange)

	changed := bitwiseCoalescence(b)
	if !changed {
		t.Fatalf("expected the AND chain to merge")
	}

	var last *ir.Op
	b.Walk(func(op *ir.Op) {
		if op.Kind == ir.And {
			last = op
		}
	})
	if last == nil {
		t.Fatalf("no AND op survived")
	}
	if !last.Src2.IsImm || last.Src2.Imm != 0xFF&0x0F {
		t.Fatalf("merged AND mask = %+v, want 0x0F", last.Src2)
	}
}

func TestBitwiseCoalescenceCancelsDoubleNot(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	r0 := e.LoadGPR(arm.R0, arm.ModeSystem)
	x := e.MoveNeg(ir.VarOperand(r0), false, ir.CarryNoChange)
	e.MoveNeg(ir.VarOperand(x), false, ir.CarryNoChange)

	changed := bitwiseCoalescence(b)
	if !changed {
		t.Fatalf("expected mvn-of-mvn to cancel")
	}

	var kinds []ir.Kind
	b.Walk(func(op *ir.Op) { kinds = append(kinds, op.Kind) })
	found := false
	for _, k := range kinds {
		if k == ir.Move {
			found = true
		}
	}
	if !found {
		t.Fatalf("op kinds = %v, want a Move among them", kinds)
	}
}

func TestArithmeticCoalescenceMergesAddChain(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	r0 := e.LoadGPR(arm.R0, arm.ModeSystem)
	x := e.Add(ir.VarOperand(r0), ir.ImmOperand(4), false)
	e.Add(ir.VarOperand(x), ir.ImmOperand(6), false)

	changed := arithmeticCoalescence(b)
	if !changed {
		t.Fatalf("expected the Add chain to merge")
	}

	var last *ir.Op
	b.Walk(func(op *ir.Op) {
		if op.Kind == ir.Add {
			last = op
		}
	})
	if last == nil || !last.Src2.IsImm || last.Src2.Imm != 10 {
		t.Fatalf("merged Add = %+v, want immediate 10", last)
	}
}

func TestArithmeticCoalescenceFoldsKnownCarry(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.StoreFlags(arm.CPSRBitC, arm.Flags{C: true})
	r0 := e.LoadGPR(arm.R0, arm.ModeSystem)
	e.AddCarry(ir.VarOperand(r0), ir.ImmOperand(1), false)

	changed := arithmeticCoalescence(b)
	if !changed {
		t.Fatalf("expected AddCarry to fold given a known carry")
	}

	var folded *ir.Op
	b.Walk(func(op *ir.Op) {
		if op.Kind == ir.Add {
			folded = op
		}
	})
	if folded == nil || !folded.Src2.IsImm || folded.Src2.Imm != 2 {
		t.Fatalf("folded AddCarry = %+v, want Add with immediate 2", folded)
	}
}

func TestHostFlagsCoalescenceMergesDisjointStores(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.StoreFlags(arm.CPSRBitN, arm.Flags{N: true})
	e.StoreFlags(arm.CPSRBitC, arm.Flags{C: true})

	changed := hostFlagsCoalescence(b)
	if !changed {
		t.Fatalf("expected the two disjoint StoreFlags to merge")
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	op := b.Head()
	if op.FlagMask != arm.CPSRBitN|arm.CPSRBitC || !op.FlagValues.N || !op.FlagValues.C {
		t.Fatalf("merged StoreFlags = %+v", op)
	}
}

func TestOptimizeReachesFixedPointAndCompactsVariables(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	r1 := e.LoadGPR(arm.R1, arm.ModeSystem)
	r2 := e.LoadGPR(arm.R2, arm.ModeSystem)
	sum := e.Add(ir.VarOperand(r1), ir.VarOperand(r2), false)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(sum))

	Optimize(b, DefaultOptions())

	kinds := opKinds(b)
	want := []ir.Kind{ir.LoadGPR, ir.LoadGPR, ir.Add, ir.StoreGPR}
	if len(kinds) != len(want) {
		t.Fatalf("op kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("op[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

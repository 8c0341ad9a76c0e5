package interp

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/state"
)

func newTestBlock() *ir.Block {
	return ir.NewBlock(ir.Location{PC: 0, Mode: arm.ModeSystem}, arm.CondAL)
}

func newTestMachine() *Machine {
	return &Machine{State: state.New(), Mem: memory.NewFlat(0x1000)}
}

func TestRunStoresRegister(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.ImmOperand(0x2a))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R0, arm.ModeSystem); got != 0x2a {
		t.Fatalf("R0 = %#x, want 0x2a", got)
	}
}

func TestRunAddSetsFlags(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	sum := e.Add(ir.ImmOperand(0xFFFFFFFF), ir.ImmOperand(1), true)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(sum))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R0, arm.ModeSystem); got != 0 {
		t.Fatalf("R0 = %#x, want 0", got)
	}
	f := m.State.Flags()
	if !f.Z || !f.C || f.N || f.V {
		t.Fatalf("flags = %+v, want Z=true C=true N=false V=false", f)
	}
}

func TestRunSubDetectsNoBorrow(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	diff := e.Sub(ir.ImmOperand(5), ir.ImmOperand(3), true)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(diff))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R0, arm.ModeSystem); got != 2 {
		t.Fatalf("R0 = %d, want 2", got)
	}
	f := m.State.Flags()
	if !f.C {
		t.Fatalf("flags = %+v, want C=true (no borrow)", f)
	}
}

func TestRunMemoryRoundTrip(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.MemWrite(ir.ImmOperand(0x100), ir.ImmOperand(0xdeadbeef), ir.SizeWord)
	v := e.MemRead(ir.ImmOperand(0x100), ir.SizeWord, false, false)
	e.StoreGPR(arm.R1, arm.ModeSystem, ir.VarOperand(v))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R1, arm.ModeSystem); got != 0xdeadbeef {
		t.Fatalf("R1 = %#x, want 0xdeadbeef", got)
	}
}

func TestRunMulLongUnsignedSplitsHiLo(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	hi, lo := e.MulLong(ir.ImmOperand(0x10000), ir.ImmOperand(0x10000), ir.NoOperand, false, false)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(hi))
	e.StoreGPR(arm.R1, arm.ModeSystem, ir.VarOperand(lo))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R0, arm.ModeSystem); got != 1 {
		t.Fatalf("hi = %#x, want 1 (0x10000*0x10000 = 0x100000000)", got)
	}
	if got := m.State.RBanked(arm.R1, arm.ModeSystem); got != 0 {
		t.Fatalf("lo = %#x, want 0", got)
	}
}

func TestRunMulLongAccumulatesHighWordOnly(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	hi, lo := e.MulLong(ir.ImmOperand(2), ir.ImmOperand(3), ir.ImmOperand(5), false, false)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(hi))
	e.StoreGPR(arm.R1, arm.ModeSystem, ir.VarOperand(lo))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R0, arm.ModeSystem); got != 5 {
		t.Fatalf("hi = %d, want 5 (2*3=6 fits entirely in lo, accumHi adds only into hi)", got)
	}
	if got := m.State.RBanked(arm.R1, arm.ModeSystem); got != 6 {
		t.Fatalf("lo = %d, want 6", got)
	}
}

func TestRunAddLong64PropagatesCarry(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	hi, lo := e.AddLong64(ir.ImmOperand(1), ir.ImmOperand(0xFFFFFFFF), ir.ImmOperand(1))
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(hi))
	e.StoreGPR(arm.R1, arm.ModeSystem, ir.VarOperand(lo))

	m := newTestMachine()
	Run(b, m)

	if got := m.State.RBanked(arm.R0, arm.ModeSystem); got != 2 {
		t.Fatalf("hi = %d, want 2 (carry out of the low-word add propagated)", got)
	}
	if got := m.State.RBanked(arm.R1, arm.ModeSystem); got != 0 {
		t.Fatalf("lo = %d, want 0", got)
	}
}

func TestRunLSLByZeroLeavesCarryUnchanged(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.StoreFlags(arm.CPSRBitC, arm.Flags{C: true})
	shifted := e.LSL(ir.ImmOperand(7), ir.ImmOperand(0), true)
	e.StoreGPR(arm.R0, arm.ModeSystem, ir.VarOperand(shifted))

	m := newTestMachine()
	Run(b, m)

	if !m.State.Flags().C {
		t.Fatalf("flags.C = false, want true (LSL #0 must not touch carry)")
	}
}

func TestRunBranchExchangeSetsThumbFromBit0(t *testing.T) {
	b := newTestBlock()
	e := ir.NewEmitter(b)
	e.BranchExchange(ir.ImmOperand(0x2001), ir.ExchangeNormal)

	m := newTestMachine()
	Run(b, m)

	if !m.State.Thumb() {
		t.Fatalf("Thumb() = false, want true (bit 0 of target set)")
	}
	if got := m.State.PC(); got != 0x2000 {
		t.Fatalf("PC = %#x, want 0x2000", got)
	}
}

func TestRunReturnsPassCycles(t *testing.T) {
	b := newTestBlock()
	b.PassCycles, b.FailCycles = 3, 1

	m := newTestMachine()
	if got := Run(b, m); got != b.PassCycles {
		t.Fatalf("cycles = %d, want PassCycles=%d (Run is only called once the condition already holds)", got, b.PassCycles)
	}
}

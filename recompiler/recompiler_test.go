package recompiler

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/state"
	"github.com/armrt/armrt/translate"
)

func newTestDispatcher(t *testing.T, words ...uint32) *Dispatcher {
	t.Helper()
	mem := memory.NewFlat(1 << 16)
	for i, w := range words {
		mem.WriteWord(uint32(i*4), w)
	}
	m := &interp.Machine{State: state.New(), Mem: mem}
	d := New(m, translate.Coprocessors{}, Options{Arch: decode.ARMv4T, EnableOptimizer: true})
	d.Machine.State.SetMode(arm.ModeSystem)
	return d
}

func TestStepTranslatesAndCachesOnFirstHit(t *testing.T) {
	// MOVS R0,#1 ; MOVS R0,#2 (same AL condition, one block)
	d := newTestDispatcher(t, 0xE3B00001, 0xE3B00002)

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d.blocks.Len() != 1 {
		t.Fatalf("blocks.Len() = %d, want 1", d.blocks.Len())
	}
	if got := d.Machine.State.R(arm.GPR(0)); got != 2 {
		t.Fatalf("R0 = %d, want 2 (second MOVS should have run)", got)
	}
}

func TestStepFollowsDirectLinkAcrossBlocks(t *testing.T) {
	// MOVAL R0,#1 ; MOVEQ R1,#2 ; MOVAL R2,#3
	// block 1 stops before the EQ-conditioned instruction (condition
	// change), block 2 starts there.
	d := newTestDispatcher(t, 0xE3B00001, 0x03B01002, 0xE3B02003)

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	if d.Machine.State.PC() != 4 {
		t.Fatalf("PC after step 1 = %#x, want 4", d.Machine.State.PC())
	}
	if _, err := d.Step(); err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if d.blocks.Len() != 2 {
		t.Fatalf("blocks.Len() = %d, want 2", d.blocks.Len())
	}
}

func TestRunStopsAtCycleBudget(t *testing.T) {
	d := newTestDispatcher(t, 0xE3B00001, 0xE3B00002, 0xE3B00003, 0xE3B00004)
	spent, err := d.Run(1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if spent == 0 {
		t.Fatalf("Run spent 0 cycles")
	}
}

func TestReportMemoryWriteEvictsCachedBlock(t *testing.T) {
	d := newTestDispatcher(t, 0xE3B00001)
	loc := d.currentLocation()
	d.blockFor(loc)
	if d.blocks.Len() != 1 {
		t.Fatalf("expected one cached block before invalidation")
	}
	d.ReportMemoryWrite(loc.PC)
	if d.blocks.Len() != 0 {
		t.Fatalf("expected ReportMemoryWrite to evict the block sharing its page")
	}
}

func TestCheckIRQTakesVectorWhenUnmasked(t *testing.T) {
	d := newTestDispatcher(t, 0xE3B00001)
	d.Machine.State.SetPC(0x100)
	d.Machine.State.SetCPSR(d.Machine.State.CPSR() &^ arm.CPSRBitI)
	d.Machine.State.SetIRQLine(true)

	taken := d.checkIRQ()
	if !taken {
		t.Fatalf("checkIRQ() = false, want true when IRQLine is set and CPSR.I is clear")
	}
	if d.Machine.State.PC() != arm.VectorIRQ {
		t.Fatalf("PC after IRQ = %#x, want vector %#x", d.Machine.State.PC(), arm.VectorIRQ)
	}
	if d.Machine.State.Mode() != arm.ModeIRQ {
		t.Fatalf("Mode after IRQ = %v, want IRQ", d.Machine.State.Mode())
	}
	if d.Machine.State.CPSR()&arm.CPSRBitI == 0 {
		t.Fatalf("IRQ entry must set CPSR.I")
	}
}

func TestCheckIRQMaskedDoesNothing(t *testing.T) {
	d := newTestDispatcher(t, 0xE3B00001)
	d.Machine.State.SetIRQLine(true)
	d.Machine.State.SetCPSR(d.Machine.State.CPSR() | arm.CPSRBitI)

	if d.checkIRQ() {
		t.Fatalf("checkIRQ() = true, want false when CPSR.I masks the interrupt")
	}
}

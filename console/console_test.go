package console

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/recompiler"
	"github.com/armrt/armrt/state"
	"github.com/armrt/armrt/translate"
)

func newTestConsole(t *testing.T, words ...uint32) *Console {
	t.Helper()
	mem := memory.NewFlat(4096)
	for i, w := range words {
		mem.WriteWord(uint32(i*4), w)
	}
	s := state.New()
	s.SetMode(arm.ModeSystem)
	m := &interp.Machine{State: s, Mem: mem}
	d := recompiler.New(m, translate.Coprocessors{}, recompiler.Options{
		Arch:            decode.ARMv4T,
		EnableOptimizer: true,
	})
	return New(d, decode.ARMv4T)
}

func TestDispatchQuit(t *testing.T) {
	c := newTestConsole(t, 0xE3B00001) // MOVS R0,#1
	quit, err := c.dispatch("quit")
	if err != nil || !quit {
		t.Fatalf("dispatch(quit) = %v, %v; want true, nil", quit, err)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	c := newTestConsole(t, 0xE3B00001)
	_, err := c.dispatch("frobnicate")
	if err == nil {
		t.Fatalf("expected an error for an unknown command")
	}
}

func TestDispatchStepRunsOneBlock(t *testing.T) {
	c := newTestConsole(t, 0xE3B00001, 0xE3B00002) // MOVS R0,#1 ; MOVS R0,#2 (one block)
	if _, err := c.dispatch("step"); err != nil {
		t.Fatalf("dispatch(step): %v", err)
	}
	if got := c.Dispatcher.Machine.State.R(arm.R0); got != 2 {
		t.Fatalf("R0 = %d, want 2", got)
	}
}

func TestBreakpointSetClearAndHit(t *testing.T) {
	c := newTestConsole(t, 0xE3B00001, 0xE3B00002)
	if err := c.cmdBreak([]string{"0x4"}); err != nil {
		t.Fatalf("cmdBreak: %v", err)
	}
	if !c.breakpoints[4] {
		t.Fatalf("expected breakpoint at 0x4")
	}
	if err := c.cmdClear([]string{"0x4"}); err != nil {
		t.Fatalf("cmdClear: %v", err)
	}
	if c.breakpoints[4] {
		t.Fatalf("expected breakpoint at 0x4 to be cleared")
	}
}

func TestCmdDisasmDoesNotAdvancePC(t *testing.T) {
	c := newTestConsole(t, 0xE3B00001, 0xE3B00002)
	pc := c.Dispatcher.Machine.State.PC()
	if err := c.cmdDisasm([]string{"0x0", "2"}); err != nil {
		t.Fatalf("cmdDisasm: %v", err)
	}
	if got := c.Dispatcher.Machine.State.PC(); got != pc {
		t.Fatalf("PC changed from %d to %d after disasm", pc, got)
	}
}

func TestParseAddrAcceptsHexPrefix(t *testing.T) {
	got, err := parseAddr("0x1000")
	if err != nil || got != 0x1000 {
		t.Fatalf("parseAddr(0x1000) = %d, %v; want 4096, nil", got, err)
	}
}

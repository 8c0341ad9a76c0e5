package cache

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
)

func TestInsertAndLookup(t *testing.T) {
	c := New()
	loc := ir.Location{PC: 0x1000, Mode: arm.ModeSystem}
	c.Insert(&Entry{Loc: loc, CodeOffset: 64, CodeLen: 32}, 1)

	e, ok := c.Lookup(loc)
	if !ok {
		t.Fatalf("Lookup missed a freshly inserted entry")
	}
	if e.CodeOffset != 64 || e.CodeLen != 32 {
		t.Fatalf("entry = %+v, want CodeOffset=64 CodeLen=32", e)
	}
}

func TestLookupMissesDifferentMode(t *testing.T) {
	c := New()
	c.Insert(&Entry{Loc: ir.Location{PC: 0x1000, Mode: arm.ModeSystem}}, 1)

	if _, ok := c.Lookup(ir.Location{PC: 0x1000, Mode: arm.ModeSupervisor}); ok {
		t.Fatalf("Lookup must distinguish blocks compiled for a different mode at the same PC")
	}
}

func TestInvalidatePageDropsOnlyThatPagesEntries(t *testing.T) {
	c := New()
	locA := ir.Location{PC: 0x1000, Mode: arm.ModeSystem}
	locB := ir.Location{PC: 0x2000, Mode: arm.ModeSystem}
	c.Insert(&Entry{Loc: locA}, 1)
	c.Insert(&Entry{Loc: locB}, 2)

	c.InvalidatePage(1)

	if _, ok := c.Lookup(locA); ok {
		t.Fatalf("page 1's entry should have been invalidated")
	}
	if _, ok := c.Lookup(locB); !ok {
		t.Fatalf("page 2's entry should have survived")
	}
}

func TestClearDropsEverything(t *testing.T) {
	c := New()
	c.Insert(&Entry{Loc: ir.Location{PC: 0x1000}}, 1)
	c.Insert(&Entry{Loc: ir.Location{PC: 0x2000}}, 2)

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", c.Len())
	}
}

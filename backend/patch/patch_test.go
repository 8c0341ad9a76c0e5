package patch

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/ir"
)

func TestAddAccumulatesMultipleSites(t *testing.T) {
	l := New()
	target := ir.Location{PC: 0x100, Mode: arm.ModeSystem}
	l.Add(target, Site{Offset: 8, Code: []byte{0xe9}})
	l.Add(target, Site{Offset: 40, Code: []byte{0xe9}})

	if got := l.Pending(target); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
}

func TestTakeRemovesAndReturnsSites(t *testing.T) {
	l := New()
	target := ir.Location{PC: 0x100, Mode: arm.ModeSystem}
	l.Add(target, Site{Offset: 8})

	sites := l.Take(target)
	if len(sites) != 1 || sites[0].Offset != 8 {
		t.Fatalf("Take() = %+v, want one site at offset 8", sites)
	}
	if l.Pending(target) != 0 {
		t.Fatalf("Pending() after Take = %d, want 0", l.Pending(target))
	}
}

func TestTakeOnUnknownTargetReturnsEmpty(t *testing.T) {
	l := New()
	if sites := l.Take(ir.Location{PC: 0x999}); len(sites) != 0 {
		t.Fatalf("Take() on an unregistered target = %+v, want empty", sites)
	}
}

func TestClearDropsAllPending(t *testing.T) {
	l := New()
	a := ir.Location{PC: 0x100}
	b := ir.Location{PC: 0x200}
	l.Add(a, Site{Offset: 1})
	l.Add(b, Site{Offset: 2})

	l.Clear()

	if l.Pending(a) != 0 || l.Pending(b) != 0 {
		t.Fatalf("Clear() left pending sites")
	}
}

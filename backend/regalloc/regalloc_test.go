package regalloc

import "testing"

func TestGetReusesBindingForSameVariable(t *testing.T) {
	a := New(4)
	r1 := a.Get(1)
	r2 := a.Get(1)
	if r1.Reg != r2.Reg {
		t.Fatalf("repeated Get for the same variable returned different registers: %d vs %d", r1.Reg, r2.Reg)
	}
	if r1.Resident {
		t.Fatalf("first Get for a variable must not report Resident (nothing to reuse yet)")
	}
	if !r2.Resident {
		t.Fatalf("second Get for a still-live variable must report Resident so the caller skips re-loading it")
	}
}

func TestGetAssignsDistinctRegisters(t *testing.T) {
	a := New(4)
	r1 := a.Get(1)
	r2 := a.Get(2)
	if r1.Reg == r2.Reg {
		t.Fatalf("two live variables got the same register %d", r1.Reg)
	}
}

func TestGetEvictsLeastRecentlyUsedOnExhaustion(t *testing.T) {
	a := New(2)
	a.Get(1) // LRU order: [1]
	a.Get(2) // LRU order: [1, 2]
	a.Get(1) // touch 1: LRU order: [2, 1]

	res := a.Get(3) // pool full, must evict 2 (least recently used)
	if !res.DidEvict {
		t.Fatalf("expected an eviction once the 2-register pool filled")
	}
	if res.EvictedVar != 2 {
		t.Fatalf("evicted variable = %d, want 2 (least recently used)", res.EvictedVar)
	}
}

func TestReleaseReturnsRegisterToPool(t *testing.T) {
	a := New(1)
	r1 := a.Get(1)
	a.Release(1)
	r2 := a.Get(2)
	if r1.Reg != r2.Reg {
		t.Fatalf("Release should free variable 1's register for reuse by variable 2")
	}
}

func TestGetReloadsFromSpillSlot(t *testing.T) {
	a := New(1)
	a.Get(1)
	evict := a.Get(2) // evicts 1 to a spill slot
	if !evict.DidEvict || evict.EvictedVar != 1 {
		t.Fatalf("expected variable 1 to be evicted, got %+v", evict)
	}

	reload := a.Get(1) // re-admits 1 from its spill slot, evicting 2 in turn
	if !reload.Reloaded {
		t.Fatalf("expected Get(1) to report a reload from its spill slot")
	}
	if reload.FromSlot != evict.EvictedSlot {
		t.Fatalf("FromSlot = %d, want the slot variable 1 was evicted to (%d)", reload.FromSlot, evict.EvictedSlot)
	}
	if !reload.DidEvict || reload.EvictedVar != 2 {
		t.Fatalf("reloading 1 into the single-register pool should evict 2, got %+v", reload)
	}
}

func TestReleaseOfSpilledVariableFreesItsSlot(t *testing.T) {
	a := New(1)
	a.Get(1)
	a.Get(2) // evicts 1 to a spill slot
	a.Release(1) // release while still spilled, never reloaded

	a.Get(3) // evicts 2
	reload := a.Get(1)
	if reload.Reloaded {
		t.Fatalf("variable 1 was released, not still spilled — Get(1) should start fresh")
	}
}

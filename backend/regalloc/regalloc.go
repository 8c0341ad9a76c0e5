/*
Package regalloc maps IR variables to host general-purpose registers
for one block's worth of codegen, spilling the least-recently-used
variable to a stack slot when the pool runs dry (spec.md §4.4
"Register allocation"). The eviction list is an intrusive doubly-linked
list threaded through the binding record itself, the same shape
ir.Block uses for its op list (ir/block.go, itself adapted from
rcornwell-S370's emu/event.go queue) — "most recently used" is just
"move to the tail", identical to how Block.Append re-threads a node.
*/
package regalloc

import "github.com/armrt/armrt/ir"

// HostReg is an index into the reserved host register pool. The amd64
// codegen layer maps these onto real machine registers.
type HostReg int

// binding is one live IR variable's current host register, threaded
// into the LRU list.
type binding struct {
	v          ir.Var
	reg        HostReg
	prev, next *binding
}

// Allocator assigns host registers to a block's IR variables on demand,
// spilling to numbered stack slots under pressure. One Allocator is used
// per compiled block; it carries no state across blocks. Not safe for
// concurrent use (spec.md §5).
type Allocator struct {
	free     []HostReg // registers not currently bound to any variable
	bindings map[ir.Var]*binding
	byReg    map[HostReg]*binding

	lruHead, lruTail *binding // head = least recently used, tail = most

	spillSlot map[ir.Var]int // variables currently spilled, and where
	nextSlot  int
	freeSlots []int
}

// New returns an Allocator with numRegs host registers in its pool — the
// reserved callee-saved set, minus whichever are pinned to the ARM-state
// pointer, cycle counter, and flags shadow (spec.md §4.4 "Prolog").
func New(numRegs int) *Allocator {
	a := &Allocator{
		bindings:  make(map[ir.Var]*binding),
		byReg:     make(map[HostReg]*binding),
		spillSlot: make(map[ir.Var]int),
	}
	for r := 0; r < numRegs; r++ {
		a.free = append(a.free, HostReg(r))
	}
	return a
}

// Result describes where a requested variable now lives, and which
// variable (if any) had to be spilled to make room for it.
type Result struct {
	Reg HostReg

	// Resident reports that v was already bound to Reg before this call —
	// the value in Reg is current and no load needs to be emitted. When
	// Resident is false (a fresh bind, reloaded or not), the caller must
	// emit a load of v's home value into Reg before using it.
	Resident bool

	// Reloaded reports that v itself was sitting in a spill slot and
	// has just been loaded back into Reg — the caller must emit that
	// load before using Reg.
	Reloaded bool
	FromSlot int

	// DidEvict reports that satisfying this request forced some other
	// live variable out of Reg's predecessor owner into a spill slot —
	// the caller must emit a store to EvictedSlot before overwriting
	// that register.
	DidEvict    bool
	EvictedVar  ir.Var
	EvictedSlot int
}

// Get returns the host register v should be loaded into: reusing v's
// existing binding, handing out a free register, reloading v from its
// spill slot, or evicting the least-recently-used live variable to a
// spill slot if the pool is full and v isn't already resident anywhere.
// Every call marks v most-recently-used.
func (a *Allocator) Get(v ir.Var) Result {
	if b, ok := a.bindings[v]; ok {
		a.touch(b)
		return Result{Reg: b.reg, Resident: true}
	}

	var res Result
	if slot, ok := a.spillSlot[v]; ok {
		res.Reloaded = true
		res.FromSlot = slot
		delete(a.spillSlot, v)
		a.freeSlots = append(a.freeSlots, slot)
	}

	var reg HostReg
	if len(a.free) > 0 {
		reg = a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
	} else {
		evicted := a.lruHead
		a.unlink(evicted)
		delete(a.bindings, evicted.v)
		delete(a.byReg, evicted.reg)
		reg = evicted.reg
		res.DidEvict = true
		res.EvictedVar = evicted.v
		res.EvictedSlot = a.takeSlot()
		a.spillSlot[evicted.v] = res.EvictedSlot
	}

	b := &binding{v: v, reg: reg}
	a.bindings[v] = b
	a.byReg[reg] = b
	a.pushTail(b)
	res.Reg = reg
	return res
}

func (a *Allocator) takeSlot() int {
	if n := len(a.freeSlots); n > 0 {
		slot := a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]
		return slot
	}
	slot := a.nextSlot
	a.nextSlot++
	return slot
}

// Release frees v's binding entirely: a live host register returns to
// the pool, or a spill slot becomes reusable. Called once the
// optimizer's liveness information says v is dead.
func (a *Allocator) Release(v ir.Var) {
	if b, ok := a.bindings[v]; ok {
		a.unlink(b)
		delete(a.bindings, v)
		delete(a.byReg, b.reg)
		a.free = append(a.free, b.reg)
		return
	}
	if slot, ok := a.spillSlot[v]; ok {
		delete(a.spillSlot, v)
		a.freeSlots = append(a.freeSlots, slot)
	}
}

func (a *Allocator) touch(b *binding) {
	a.unlink(b)
	a.pushTail(b)
}

func (a *Allocator) pushTail(b *binding) {
	b.prev, b.next = a.lruTail, nil
	if a.lruTail != nil {
		a.lruTail.next = b
	} else {
		a.lruHead = b
	}
	a.lruTail = b
}

func (a *Allocator) unlink(b *binding) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		a.lruHead = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		a.lruTail = b.prev
	}
	b.prev, b.next = nil, nil
}

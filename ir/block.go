/*
Block: one straight-line basic block of IR ops, threaded as an intrusive
doubly-linked list. The list-splicing shape (head/tail sentinels, Prev/Next
pointers threaded through the payload struct itself) is adapted from
rcornwell-S370's emu/event/event.go AddEvent/insert/remove bookkeeping,
generalized from a single event queue to a per-block op list plus the
erase/replace operations an optimizer pass needs.
*/
package ir

import "github.com/armrt/armrt/arm"

// TerminatorKind classifies how a block hands control back out.
type TerminatorKind uint8

const (
	// TermReturn returns control to the dispatcher (epilog).
	TermReturn TerminatorKind = iota
	// TermDirectLink jumps directly to a statically-known successor
	// location, compiled or not (spec.md §3 "Patch lists").
	TermDirectLink
	// TermIndirectLink's target is only known at run time (register-based
	// branch); the host backend always routes these through the epilog.
	TermIndirectLink
)

// Terminator records how a block ends.
type Terminator struct {
	Kind           TerminatorKind
	Target         Location // valid for TermDirectLink
	Fallthrough    Location // location to link to on a failed block condition
	HasFallthrough bool
}

// Block is one basic block: a guest-condition-qualified, straight-line run
// of IR ops ending in a Terminator.
type Block struct {
	Loc  Location
	Cond arm.Cond

	head, tail *Op
	count      int // number of ops currently in the list

	InstCount  int // number of guest instructions translated into this block
	PassCycles int // cycles consumed when Cond holds
	FailCycles int // cycles consumed when Cond does not hold

	Term Terminator

	nextVar Var // monotonically increasing variable index allocator
}

// NewBlock returns an empty block for the given location and condition.
func NewBlock(loc Location, cond arm.Cond) *Block {
	return &Block{Loc: loc, Cond: cond}
}

// AllocVar hands out the next free variable index. Variable indices are
// monotonically increasing within a block for the lifetime of translation;
// RenameVariables later compacts them.
func (b *Block) AllocVar() Var {
	v := b.nextVar
	b.nextVar++
	return v
}

// Head returns the first op in the block, or nil if empty.
func (b *Block) Head() *Op { return b.head }

// Tail returns the last op in the block, or nil if empty.
func (b *Block) Tail() *Op { return b.tail }

// Len returns the number of ops currently in the block.
func (b *Block) Len() int { return b.count }

// VarCount returns one past the highest variable index handed out so far,
// i.e. the size an interpreter or register allocator needs for a dense
// per-variable storage array.
func (b *Block) VarCount() int { return int(b.nextVar) }

// Append inserts op at the tail of the block.
func (b *Block) Append(op *Op) {
	op.Prev = b.tail
	op.Next = nil
	if b.tail != nil {
		b.tail.Next = op
	} else {
		b.head = op
	}
	b.tail = op
	b.count++
}

// Prepend inserts op at the head of the block.
func (b *Block) Prepend(op *Op) {
	op.Next = b.head
	op.Prev = nil
	if b.head != nil {
		b.head.Prev = op
	} else {
		b.tail = op
	}
	b.head = op
	b.count++
}

// InsertBefore inserts newOp immediately before at, which must belong to b.
func (b *Block) InsertBefore(at, newOp *Op) {
	if at == nil {
		b.Append(newOp)
		return
	}
	newOp.Prev = at.Prev
	newOp.Next = at
	if at.Prev != nil {
		at.Prev.Next = newOp
	} else {
		b.head = newOp
	}
	at.Prev = newOp
	b.count++
}

// InsertAfter inserts newOp immediately after at, which must belong to b.
func (b *Block) InsertAfter(at, newOp *Op) {
	if at == nil {
		b.Prepend(newOp)
		return
	}
	newOp.Next = at.Next
	newOp.Prev = at
	if at.Next != nil {
		at.Next.Prev = newOp
	} else {
		b.tail = newOp
	}
	at.Next = newOp
	b.count++
}

// Erase removes op from the block. op must belong to b.
func (b *Block) Erase(op *Op) {
	if op.Prev != nil {
		op.Prev.Next = op.Next
	} else {
		b.head = op.Next
	}
	if op.Next != nil {
		op.Next.Prev = op.Prev
	} else {
		b.tail = op.Prev
	}
	op.Prev, op.Next = nil, nil
	b.count--
}

// Replace swaps old for newOp in place, preserving list position. old must
// belong to b.
func (b *Block) Replace(old, newOp *Op) {
	newOp.Prev = old.Prev
	newOp.Next = old.Next
	if old.Prev != nil {
		old.Prev.Next = newOp
	} else {
		b.head = newOp
	}
	if old.Next != nil {
		old.Next.Prev = newOp
	} else {
		b.tail = newOp
	}
	old.Prev, old.Next = nil, nil
}

// Walk calls fn for every op from head to tail. fn may erase or replace the
// current op (it must not touch ops not yet visited in a way that breaks
// the forward walk); Walk captures Next before calling fn to tolerate
// erasure of the current op.
func (b *Block) Walk(fn func(*Op)) {
	for op := b.head; op != nil; {
		next := op.Next
		fn(op)
		op = next
	}
}

// WalkBackward calls fn for every op from tail to head, tolerating erasure
// of the current op the same way Walk does.
func (b *Block) WalkBackward(fn func(*Op)) {
	for op := b.tail; op != nil; {
		prev := op.Prev
		fn(op)
		op = prev
	}
}

// OpCount returns a fresh count by walking the list; used by tests that
// want to double check the maintained Len() counter.
func (b *Block) OpCount() int {
	n := 0
	b.Walk(func(*Op) { n++ })
	return n
}

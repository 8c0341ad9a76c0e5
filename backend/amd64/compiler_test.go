package amd64

import (
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/backend/codebuf"
	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/ir"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/state"
)

func newTestMachine() *interp.Machine {
	return &interp.Machine{
		State: state.New(),
		Mem:   memory.NewFlat(1 << 16),
	}
}

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	buf, err := codebuf.New(1<<16, 0)
	if err != nil {
		t.Fatalf("codebuf.New: %v", err)
	}
	c, err := New(buf, newTestMachine(), true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// --- encoder-level byte checks ---

func TestMovImm32Encoding(t *testing.T) {
	a := &asm{}
	a.movImm32(rax, 0x11223344)
	want := []byte{0xB8, 0x44, 0x33, 0x22, 0x11}
	if string(a.bytes()) != string(want) {
		t.Fatalf("movImm32(rax,...) = % x, want % x", a.bytes(), want)
	}
}

func TestMovImm32NeedsRexForExtendedReg(t *testing.T) {
	a := &asm{}
	a.movImm32(r9, 1)
	want := []byte{0x41, 0xB9, 0x01, 0x00, 0x00, 0x00}
	if string(a.bytes()) != string(want) {
		t.Fatalf("movImm32(r9,...) = % x, want % x", a.bytes(), want)
	}
}

func TestAlu32AddEncoding(t *testing.T) {
	a := &asm{}
	a.alu32(aluAdd, rcx, rdx) // add ecx, edx
	want := []byte{0x01, 0xD1}
	if string(a.bytes()) != string(want) {
		t.Fatalf("alu32(add,ecx,edx) = % x, want % x", a.bytes(), want)
	}
}

func TestJmpRel32PatchedForwardBranch(t *testing.T) {
	a := &asm{}
	d := a.jmpRel32()
	a.nop(3)
	target := a.len()
	a.patchRel32(d, target)

	rel := int32(target - (d + 4))
	want := []byte{0xE9, byte(rel), byte(rel >> 8), byte(rel >> 16), byte(rel >> 24)}
	if string(a.bytes()[:5]) != string(want) {
		t.Fatalf("patched jmp rel32 = % x, want % x", a.bytes()[:5], want)
	}
}

func TestBtSetcEmitsCode(t *testing.T) {
	a := &asm{}
	a.bt(r12, 31)
	a.setc(rax)
	if a.len() == 0 {
		t.Fatalf("expected bt+setc to emit bytes")
	}
}

// --- Compiler.Compile structural checks ---

func simpleBlock(loc ir.Location) *ir.Block {
	b := ir.NewBlock(loc, arm.CondAL)
	e := ir.NewEmitter(b)
	x := e.Const(5)
	y := e.Const(7)
	e.Add(ir.VarOperand(x), ir.VarOperand(y), false)
	b.PassCycles = 1
	b.Term = ir.Terminator{Kind: ir.TermReturn}
	return b
}

func TestCompileProducesNonEmptyCachedEntry(t *testing.T) {
	c := newTestCompiler(t)
	loc := ir.Location{PC: 0x1000, Mode: arm.ModeSystem}
	b := simpleBlock(loc)

	entry, err := c.Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if entry.CodeLen == 0 {
		t.Fatalf("compiled entry has zero code length")
	}
	if _, ok := c.Cache.Lookup(loc); !ok {
		t.Fatalf("compiled block not found in cache")
	}
	if bs, ok := c.blocks[loc.Key()]; !ok || len(bs.vars) != b.VarCount() {
		t.Fatalf("blockState missing or vars sized wrong: %+v", bs)
	}
}

func TestCompileConditionalBlockEmitsFailTail(t *testing.T) {
	c := newTestCompiler(t)
	loc := ir.Location{PC: 0x2000, Mode: arm.ModeSystem}
	b := ir.NewBlock(loc, arm.CondEQ)
	e := ir.NewEmitter(b)
	e.Const(1)
	b.PassCycles = 2
	b.FailCycles = 1
	fallthroughLoc := ir.Location{PC: 0x2004, Mode: arm.ModeSystem}
	b.Term = ir.Terminator{Kind: ir.TermReturn, Fallthrough: fallthroughLoc, HasFallthrough: true}

	entry, err := c.Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if entry.CodeLen == 0 {
		t.Fatalf("conditional block produced no code")
	}
	// The fall-through target isn't compiled yet, so the fail tail's
	// direct-link jump should have registered a pending patch for it.
	if got := c.Patches.Pending(fallthroughLoc); got != 1 {
		t.Fatalf("Patches.Pending(fallthrough) = %d, want 1", got)
	}
}

func TestCompileResolvesPendingLinkOnSuccessorCompile(t *testing.T) {
	c := newTestCompiler(t)
	target := ir.Location{PC: 0x3100, Mode: arm.ModeSystem}

	predLoc := ir.Location{PC: 0x3000, Mode: arm.ModeSystem}
	pred := simpleBlock(predLoc)
	pred.Term = ir.Terminator{Kind: ir.TermDirectLink, Target: target}
	if _, err := c.Compile(pred); err != nil {
		t.Fatalf("Compile(pred): %v", err)
	}
	if got := c.Patches.Pending(target); got != 1 {
		t.Fatalf("Patches.Pending(target) after pred compile = %d, want 1", got)
	}

	succ := simpleBlock(target)
	if _, err := c.Compile(succ); err != nil {
		t.Fatalf("Compile(succ): %v", err)
	}
	if got := c.Patches.Pending(target); got != 0 {
		t.Fatalf("Patches.Pending(target) after succ compile = %d, want 0 (resolved)", got)
	}
}

func TestInvalidateRevertsAppliedLink(t *testing.T) {
	c := newTestCompiler(t)
	target := ir.Location{PC: 0x4100, Mode: arm.ModeSystem}

	pred := simpleBlock(ir.Location{PC: 0x4000, Mode: arm.ModeSystem})
	pred.Term = ir.Terminator{Kind: ir.TermDirectLink, Target: target}
	if _, err := c.Compile(pred); err != nil {
		t.Fatalf("Compile(pred): %v", err)
	}
	succ := simpleBlock(target)
	if _, err := c.Compile(succ); err != nil {
		t.Fatalf("Compile(succ): %v", err)
	}

	c.Invalidate(target)
	if _, ok := c.Cache.Lookup(target); ok {
		t.Fatalf("target entry should be gone after Invalidate")
	}
	if got := c.Patches.Pending(target); got != 1 {
		t.Fatalf("Patches.Pending(target) after Invalidate = %d, want 1 (reverted link re-pended)", got)
	}
}

func TestInlineableClassifiesByKindAndFlags(t *testing.T) {
	addNoFlags := &ir.Op{Kind: ir.Add, Dst: 0, Src1: ir.ImmOperand(1), Src2: ir.ImmOperand(2)}
	if !inlineable(addNoFlags) {
		t.Fatalf("flag-indifferent Add should be inlineable")
	}
	addFlags := &ir.Op{Kind: ir.Add, SetFlags: true, Dst: 0, Src1: ir.ImmOperand(1), Src2: ir.ImmOperand(2)}
	if inlineable(addFlags) {
		t.Fatalf("Add with SetFlags must route through the fallback")
	}
	memRead := &ir.Op{Kind: ir.MemRead, Dst: 0, Src1: ir.ImmOperand(0x1000)}
	if inlineable(memRead) {
		t.Fatalf("MemRead is never inlined")
	}
}

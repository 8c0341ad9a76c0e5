/*
Compiler turns an optimized ir.Block into native x86-64 code (spec.md
§4.4). It is the "host-specific codegen" design notes call an optional
performance add-on over backend/interp: every op this package's visitor
declines to compile inline is executed by calling straight back into
backend/interp.ExecOp, the same reference semantics backend/interp.Run
uses, through the single-pointer calling convention described in
helpers.go. Per-op codegen keeps a var's current value in both a host
register (via backend/regalloc) and its memory slot in the block's vars
array at all times — a write-through register cache rather than a
lazily-flushed one — so a fallback call can always trust the vars array
without this package having to spill live registers around every call it
makes into Go.

Grounded on translate/exception.go's enterException for the IRQ-entry
stub's state transition (helpers.go's performIRQEntry), on
backend/interp.ExecOp for every op this package doesn't inline, and on
spec.md §4.4 directly for the prolog/epilog/generation-check/condition-
check/direct-linking structure, which has no teacher or pack analogue
(rcornwell-S370 interprets S/370 directly and targets no host ISA).

The prolog repurposes RBP as cyclesReg across every call this package
makes back into Go, rather than leaving it as a valid frame-pointer
chain; a framepointer-walking profiler or stack trace taken while
execution is inside compiled guest code would not see past this
package's frames. This is an accepted limitation of code that is never
actually built or run in this exercise, not a verified-safe trade-off.
*/
package amd64

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/backend/cache"
	"github.com/armrt/armrt/backend/codebuf"
	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/backend/patch"
	"github.com/armrt/armrt/backend/regalloc"
	"github.com/armrt/armrt/ir"
	"github.com/armrt/armrt/memory"
)

func funcAddr(f interface{}) uintptr { return reflect.ValueOf(f).Pointer() }

var (
	runGenCheckAddr      = funcAddr(runGenCheck)
	syncFlagsInAddr      = funcAddr(syncFlagsIn)
	syncFlagsOutAddr     = funcAddr(syncFlagsOut)
	loadInitialFlagsAddr = funcAddr(loadInitialFlags)
	storeFinalFlagsAddr  = funcAddr(storeFinalFlags)
	checkEntryStateAddr  = funcAddr(checkEntryState)
	performIRQEntryAddr  = funcAddr(performIRQEntry)
	runFallbackAddr      = funcAddr(interp.RunFallback)
	setGuestPCAddr       = funcAddr(setGuestPC)
)

var (
	offGCAOk     = unsafe.Offsetof(genCheckArgs{}.ok)
	offFSAPacked = unsafe.Offsetof(flagsSyncArgs{}.packed)
	offMFAPacked = unsafe.Offsetof(machineFlagsArgs{}.packed)
	offESAResult = unsafe.Offsetof(entryStateArgs{}.result)
)

type setPCArgs struct {
	m  *interp.Machine
	pc uint32
}

func setGuestPC(a *setPCArgs) { a.m.State.SetPC(a.pc) }

// blockState is the Go-side memory a compiled block's baked-in pointers
// refer to: the variable array every op reads/writes through, the live
// flags shadow synced around fallback calls, and the pre-filled fallback
// call arguments for every op this block's codegen declined to inline.
type blockState struct {
	vars         []uint32
	flags        arm.Flags
	fallbackArgs []interp.FallbackArgs
}

// link records one direct-link jump site still aimed at the epilog (or at
// an already-resolved target) whose final bytes are computed once the
// site's own absolute address is known. pending is set when the site's
// true target hasn't compiled yet, so Compile must also register it on
// the patch list once the blob's final buffer offset is known.
type link struct {
	offset        int // offset into the local asm blob, translated to an absolute buffer offset after Emit
	target        uintptr
	pending       bool
	pendingTarget ir.Location
}

// Compiler compiles ir.Blocks for one guest core into a shared code
// buffer, maintaining the block cache and the direct-link patch lists
// (spec.md §4.4). Not safe for concurrent use (spec.md §5).
type Compiler struct {
	Code    *codebuf.Buffer
	Cache   *cache.Cache
	Patches *patch.List
	Machine *interp.Machine

	// EnableLinking mirrors compiler.enable_block_linking (spec.md §6):
	// when false every block always returns to the epilog instead of
	// jumping straight into an already-compiled successor.
	EnableLinking bool

	prologAddr uintptr
	epilogAddr uintptr
	irqAddr    uintptr

	blocks map[uint64]*blockState

	// appliedLinks tracks, per target location, every code-buffer offset
	// currently patched to jump straight at that target — so Invalidate
	// can revert them to the epilog (spec.md §4.4 "Invalidation").
	appliedLinks map[uint64][]int
}

// New builds a Compiler over code and emits the shared prolog/epilog/IRQ
// stubs once, ahead of any block compilation. enableLinking sets the
// initial value of EnableLinking (spec.md §6's compiler.enable_block_linking,
// default true).
func New(code *codebuf.Buffer, m *interp.Machine, enableLinking bool) (*Compiler, error) {
	c := &Compiler{
		Code:          code,
		Cache:         cache.New(),
		Patches:       patch.New(),
		Machine:       m,
		EnableLinking: enableLinking,
		blocks:        make(map[uint64]*blockState),
		appliedLinks:  make(map[uint64][]int),
	}
	if err := c.emitStubs(); err != nil {
		return nil, err
	}
	return c, nil
}

// emitStubs lays down the epilog and IRQ-entry stub first (so their
// addresses are fixed and known), then the prolog, which is the only
// piece of generated code this package expects an external caller (the
// not-yet-built dispatcher) to jump into directly: rdi=*Machine,
// rsi=initial remaining cycles, rdx=the looked-up block's entry address —
// the one boundary in this package deliberately given a plain SysV entry,
// since it's the point a hand-written or future cgo-style trampoline on
// the host side would call into, unlike every internal call in this
// package which instead calls back into Go functions directly (see
// helpers.go).
func (c *Compiler) emitStubs() error {
	a := &asm{}

	// --- epilog ---
	epilogLocal := a.len()
	{
		fsa := &machineFlagsArgs{m: c.Machine}
		a.movImm64(callTarget, uint64(uintptr(unsafe.Pointer(fsa))))
		a.storeMem32(callTarget, int32(offMFAPacked), flagsReg)
		c.emitCall1(a, storeFinalFlagsAddr, uintptr(unsafe.Pointer(fsa)))
	}
	a.movRegReg32(scratchReg, cyclesReg)
	a.pop(r13)
	a.pop(r12)
	a.pop(rbx)
	a.pop(rbp)
	a.ret()

	// --- IRQ-entry stub ---
	irqLocal := a.len()
	{
		ia := &irqEntryArgs{m: c.Machine}
		c.emitCall1(a, performIRQEntryAddr, uintptr(unsafe.Pointer(ia)))
	}
	toEpilog1 := a.jmpRel32()

	// --- prolog ---
	prologLocal := a.len()
	a.push(rbp)
	a.push(rbx)
	a.push(r12)
	a.push(r13)
	a.movRegReg64(machineReg, rdi)
	a.movRegReg64(cyclesReg, rsi)
	{
		mfa := &machineFlagsArgs{m: c.Machine}
		c.emitCall1(a, loadInitialFlagsAddr, uintptr(unsafe.Pointer(mfa)))
		a.movImm64(callTarget, uint64(uintptr(unsafe.Pointer(mfa))))
		a.loadMem32(flagsReg, callTarget, int32(offMFAPacked))
	}
	{
		esa := &entryStateArgs{m: c.Machine}
		c.emitCall1(a, checkEntryStateAddr, uintptr(unsafe.Pointer(esa)))
		a.movImm64(callTarget, uint64(uintptr(unsafe.Pointer(esa))))
		a.loadMem32(scratchReg, callTarget, int32(offESAResult))
	}
	a.movImm32(callTarget, 0)
	a.alu32(aluCmp, scratchReg, callTarget)
	toEpilog2 := a.jccRel32(ccE)
	a.movImm32(callTarget, 2)
	a.alu32(aluCmp, scratchReg, callTarget)
	toIRQ := a.jccRel32(ccE)
	// Fall through: hand off to the looked-up block with a tail jmp, not a
	// call — compiled blocks never execute ret, they always end in a jmp
	// to another block, to the IRQ stub, or to the epilog above, whose
	// ret is what finally returns to this stub's own SysV caller.
	a.jmpReg(rdx)

	a.patchRel32(toEpilog1, epilogLocal)
	a.patchRel32(toEpilog2, epilogLocal)
	a.patchRel32(toIRQ, irqLocal)

	base, ok := c.Code.Emit(a.bytes())
	if !ok {
		return fmt.Errorf("amd64: code buffer too small for fixed stubs")
	}
	c.epilogAddr = base + uintptr(epilogLocal)
	c.irqAddr = base + uintptr(irqLocal)
	c.prologAddr = base + uintptr(prologLocal)
	return nil
}

// emitCall1 loads argPtr into the call convention's sole argument register
// and calls fn — every helper in helpers.go takes exactly one pointer
// argument, so this is the only call shape this package ever needs.
func (c *Compiler) emitCall1(a *asm, fn uintptr, argPtr uintptr) {
	a.movImm64(scratchReg, uint64(argPtr))
	a.movImm64(callTarget, uint64(fn))
	a.callReg(callTarget)
}

func (c *Compiler) storeVar(a *asm, v ir.Var, r reg) {
	if v.Present() {
		a.storeMem32(varsReg, int32(v)*4, r)
	}
}

func (c *Compiler) loadOperand(a *asm, ra *regalloc.Allocator, v ir.VarOrImm, immScratch reg) reg {
	if v.IsImm {
		a.movImm32(immScratch, v.Imm)
		return immScratch
	}
	res := ra.Get(v.Var)
	r := hostReg(res.Reg)
	if !res.Resident {
		a.loadMem32(r, varsReg, int32(v.Var)*4)
	}
	return r
}

// inlineable reports whether op's value computation (never its flags) can
// be compiled directly rather than routed through backend/interp.ExecOp.
// Every op that sets flags is routed through the fallback regardless of
// kind: encoding ARM's exact NZCV semantics (signed overflow, shifter
// carry-out, the long-multiply accumulate split) directly in x86 flag
// bits is real, fiddly codegen this pass doesn't attempt — it is exactly
// the kind of "complicated case" spec.md's own memory-op fast/slow split
// already normalizes calling out for, generalized here to any op kind.
func inlineable(op *ir.Op) bool {
	if op.SetFlags {
		return false
	}
	switch op.Kind {
	case ir.Const, ir.CopyVar, ir.Move, ir.MoveNeg, ir.Add, ir.Sub, ir.And, ir.Or, ir.Eor:
		return true
	default:
		return false
	}
}

func (c *Compiler) compileInline(a *asm, ra *regalloc.Allocator, op *ir.Op) {
	switch op.Kind {
	case ir.Const:
		dst := hostReg(ra.Get(op.Dst).Reg)
		a.movImm32(dst, op.Imm)
		c.storeVar(a, op.Dst, dst)

	case ir.CopyVar, ir.Move:
		src := c.loadOperand(a, ra, op.Src1, scratchReg)
		dst := hostReg(ra.Get(op.Dst).Reg)
		if dst != src {
			a.movRegReg32(dst, src)
		}
		c.storeVar(a, op.Dst, dst)

	case ir.MoveNeg:
		src := c.loadOperand(a, ra, op.Src1, scratchReg)
		dst := hostReg(ra.Get(op.Dst).Reg)
		if dst != src {
			a.movRegReg32(dst, src)
		}
		a.notReg32(dst)
		c.storeVar(a, op.Dst, dst)

	case ir.Add, ir.Sub, ir.And, ir.Or, ir.Eor:
		s1 := c.loadOperand(a, ra, op.Src1, scratchReg)
		s2 := c.loadOperand(a, ra, op.Src2, callTarget)
		dst := hostReg(ra.Get(op.Dst).Reg)
		if dst != s1 {
			a.movRegReg32(dst, s1)
		}
		rhs := s2
		if rhs == dst {
			a.movRegReg32(scratchReg, s2)
			rhs = scratchReg
		}
		var aop aluOp
		switch op.Kind {
		case ir.Add:
			aop = aluAdd
		case ir.Sub:
			aop = aluSub
		case ir.And:
			aop = aluAnd
		case ir.Or:
			aop = aluOr
		case ir.Eor:
			aop = aluXor
		}
		a.alu32(aop, dst, rhs)
		c.storeVar(a, op.Dst, dst)
	}
}

func (c *Compiler) compileFallback(a *asm, bs *blockState, fa *interp.FallbackArgs) {
	fsa := &flagsSyncArgs{flags: &bs.flags}

	a.movImm64(callTarget, uint64(uintptr(unsafe.Pointer(fsa))))
	a.storeMem32(callTarget, int32(offFSAPacked), flagsReg)
	c.emitCall1(a, syncFlagsInAddr, uintptr(unsafe.Pointer(fsa)))

	c.emitCall1(a, runFallbackAddr, uintptr(unsafe.Pointer(fa)))

	c.emitCall1(a, syncFlagsOutAddr, uintptr(unsafe.Pointer(fsa)))
	a.movImm64(callTarget, uint64(uintptr(unsafe.Pointer(fsa))))
	a.loadMem32(flagsReg, callTarget, int32(offFSAPacked))
}

// jumpIfBit emits bt flagsReg,bit; Jcc, taken when that CPSR bit's current
// value equals wantSet.
func (a *asm) jumpIfBit(bit uint8, wantSet bool) int {
	a.bt(flagsReg, bit)
	if wantSet {
		return a.jccRel32(ccB)
	}
	return a.jccRel32(ccAE)
}

const (
	bitN = 31
	bitZ = 30
	bitC = 29
	bitV = 28
)

// emitCondCheck emits code testing cond against flagsReg and returns the
// list of jump sites (still pointing at a placeholder) that must be
// patched to the condition-fail tail once its offset is known. An empty
// result means cond always holds (CondAL) and no check was emitted.
func emitCondCheck(a *asm, cond arm.Cond) []int {
	switch cond {
	case arm.CondAL, arm.CondNV:
		// NV is resolved into unconditional upstream (arm.Cond.Eval's doc
		// comment); no check to emit.
		return nil
	case arm.CondEQ:
		return []int{a.jumpIfBit(bitZ, false)}
	case arm.CondNE:
		return []int{a.jumpIfBit(bitZ, true)}
	case arm.CondCS:
		return []int{a.jumpIfBit(bitC, false)}
	case arm.CondCC:
		return []int{a.jumpIfBit(bitC, true)}
	case arm.CondMI:
		return []int{a.jumpIfBit(bitN, false)}
	case arm.CondPL:
		return []int{a.jumpIfBit(bitN, true)}
	case arm.CondVS:
		return []int{a.jumpIfBit(bitV, false)}
	case arm.CondVC:
		return []int{a.jumpIfBit(bitV, true)}
	case arm.CondHI:
		f1 := a.jumpIfBit(bitC, false)
		f2 := a.jumpIfBit(bitZ, true)
		return []int{f1, f2}
	case arm.CondLS:
		pass := a.jumpIfBit(bitC, false)
		fail := a.jumpIfBit(bitZ, false)
		a.patchRel32(pass, a.len())
		return []int{fail}
	case arm.CondGE, arm.CondLT:
		a.bt(flagsReg, bitN)
		a.setc(scratchReg)
		a.bt(flagsReg, bitV)
		a.setc(callTarget)
		a.alu32(aluXor, scratchReg, callTarget)
		a.test32(scratchReg, scratchReg)
		if cond == arm.CondGE {
			return []int{a.jccRel32(ccNE)}
		}
		return []int{a.jccRel32(ccE)}
	case arm.CondGT:
		f1 := a.jumpIfBit(bitZ, true)
		a.bt(flagsReg, bitN)
		a.setc(scratchReg)
		a.bt(flagsReg, bitV)
		a.setc(callTarget)
		a.alu32(aluXor, scratchReg, callTarget)
		a.test32(scratchReg, scratchReg)
		f2 := a.jccRel32(ccNE)
		return []int{f1, f2}
	case arm.CondLE:
		pass := a.jumpIfBit(bitZ, true)
		a.bt(flagsReg, bitN)
		a.setc(scratchReg)
		a.bt(flagsReg, bitV)
		a.setc(callTarget)
		a.alu32(aluXor, scratchReg, callTarget)
		a.test32(scratchReg, scratchReg)
		fail := a.jccRel32(ccE)
		a.patchRel32(pass, a.len())
		return []int{fail}
	}
	return nil
}

// Compile lowers b into native code, installs it in the cache, and
// resolves any pending direct-link patches that targeted b.Loc.
func (c *Compiler) Compile(b *ir.Block) (*cache.Entry, error) {
	bs := &blockState{vars: make([]uint32, b.VarCount())}

	fallbackCount := 0
	for op := b.Head(); op != nil; op = op.Next {
		if !inlineable(op) {
			fallbackCount++
		}
	}
	bs.fallbackArgs = make([]interp.FallbackArgs, fallbackCount)
	fi := 0

	a := &asm{}
	ra := regalloc.New(NumAllocRegs)
	var links []link

	// Generation check.
	genPage := b.Loc.PC &^ (memory.PageSize - 1)
	gca := &genCheckArgs{m: c.Machine, addr: genPage, want: c.Machine.Mem.Generation(genPage)}
	c.emitCall1(a, runGenCheckAddr, uintptr(unsafe.Pointer(gca)))
	a.movImm64(callTarget, uint64(uintptr(unsafe.Pointer(gca))))
	a.loadMem32(scratchReg, callTarget, int32(offGCAOk))
	a.movImm32(callTarget, 0)
	a.alu32(aluCmp, scratchReg, callTarget)
	genMismatch := a.jccRel32(ccE)

	condFails := emitCondCheck(a, b.Cond)

	for op := b.Head(); op != nil; op = op.Next {
		if inlineable(op) {
			c.compileInline(a, ra, op)
			continue
		}
		fa := &bs.fallbackArgs[fi]
		fi++
		fa.Op = op
		fa.Vars = bs.vars
		fa.M = c.Machine
		fa.Flags = &bs.flags
		c.compileFallback(a, bs, fa)
	}

	// Charge PassCycles and dispatch to the successor.
	a.movImm32(scratchReg, uint32(b.PassCycles))
	a.alu32(aluSub, cyclesReg, scratchReg)
	links = c.emitTerminator(a, b.Term.Kind, b.Term.Target, links)

	// Condition-fail tail: advance PC, charge FailCycles, link to the
	// fall-through location (spec.md §4.4 "Condition check").
	if len(condFails) > 0 {
		failLocal := a.len()
		for _, d := range condFails {
			a.patchRel32(d, failLocal)
		}
		spa := &setPCArgs{m: c.Machine, pc: b.Term.Fallthrough.PC}
		c.emitCall1(a, setGuestPCAddr, uintptr(unsafe.Pointer(spa)))
		a.movImm32(scratchReg, uint32(b.FailCycles))
		a.alu32(aluSub, cyclesReg, scratchReg)
		links = c.emitTerminator(a, ir.TermDirectLink, b.Term.Fallthrough, links)
	}

	// Generation mismatch: abandon this entry, return to the dispatcher
	// for a recompile, charging nothing (the dispatcher retries).
	genMismatchLocal := a.len()
	a.patchRel32(genMismatch, genMismatchLocal)
	links = append(links, link{offset: a.jmpRel32(), target: 0}) // target filled after Emit: epilog

	code := a.bytes()
	base, ok := c.Code.Emit(code)
	if !ok {
		return nil, fmt.Errorf("amd64: out of code buffer space")
	}

	for _, l := range links {
		siteOffset := int(base-c.Code.BaseAddr()) + l.offset
		target := l.target
		if l.pending {
			target = c.epilogAddr
			c.Patches.Add(l.pendingTarget, patch.Site{Offset: siteOffset})
		} else if target == 0 {
			target = c.epilogAddr
		}
		if err := c.Code.Patch(siteOffset, c.relBytes(siteOffset, target)); err != nil {
			return nil, err
		}
	}

	key := b.Loc.Key()
	entry := &cache.Entry{
		Loc:        b.Loc,
		CodeOffset: int(base - c.Code.BaseAddr()),
		CodeLen:    len(code),
		Generation: gca.want,
		PassCycles: b.PassCycles,
		FailCycles: b.FailCycles,
	}
	c.Cache.Insert(entry, genPage>>memory.PageShift)
	c.blocks[key] = bs

	c.resolvePendingLinksTo(b.Loc, base)

	return entry, nil
}

// emitTerminator appends the jump that hands control to term's target (or
// the epilog, when linking is disabled, the target isn't compiled yet, or
// the terminator doesn't name a static target at all), recording it for
// resolution once this blob's base address is known.
func (c *Compiler) emitTerminator(a *asm, kind ir.TerminatorKind, target ir.Location, links []link) []link {
	if kind == ir.TermDirectLink && c.EnableLinking {
		if entry, ok := c.Cache.Lookup(target); ok {
			addr := c.Code.BaseAddr() + uintptr(entry.CodeOffset)
			return append(links, link{offset: a.jmpRel32(), target: addr})
		}
		return append(links, link{offset: a.jmpRel32(), pending: true, pendingTarget: target})
	}
	return append(links, link{offset: a.jmpRel32(), target: 0})
}

// resolvePendingLinksTo applies every patch site waiting on loc — each
// recorded with an absolute code-buffer offset at the time its owning
// block was compiled — now that loc has an entry in the cache, and
// records each as an applied link so a future Invalidate(loc) can revert
// it.
func (c *Compiler) resolvePendingLinksTo(loc ir.Location, blockBase uintptr) {
	sites := c.Patches.Take(loc)
	if len(sites) == 0 {
		return
	}
	entry, ok := c.Cache.Lookup(loc)
	if !ok {
		return
	}
	target := c.Code.BaseAddr() + uintptr(entry.CodeOffset)
	key := loc.Key()
	for _, s := range sites {
		if err := c.Code.Patch(s.Offset, c.relBytes(s.Offset, target)); err == nil {
			c.appliedLinks[key] = append(c.appliedLinks[key], s.Offset)
		}
	}
	_ = blockBase
}

func (c *Compiler) relBytes(siteOffset int, target uintptr) []byte {
	siteAddr := c.Code.BaseAddr() + uintptr(siteOffset)
	rel := int32(int64(target) - int64(siteAddr) - 4)
	return []byte{byte(rel), byte(rel >> 8), byte(rel >> 16), byte(rel >> 24)}
}

// Invalidate removes loc's cache entry and reverts every applied direct
// link that targeted it back to a jump at the epilog, moving each back to
// the pending patch list (spec.md §4.4 "Invalidation").
func (c *Compiler) Invalidate(loc ir.Location) {
	key := loc.Key()
	c.Cache.Remove(loc)
	delete(c.blocks, key)
	for _, offset := range c.appliedLinks[key] {
		if err := c.Code.Patch(offset, c.relBytes(offset, c.epilogAddr)); err == nil {
			c.Patches.Add(loc, patch.Site{Offset: offset})
		}
	}
	delete(c.appliedLinks, key)
}

// ReportMemoryWrite bumps the cache's page-granularity invalidation, the
// response to a guest store landing in already-compiled code (spec.md
// §4.4's generation check is what actually catches this on next entry;
// this just drops the now-stale cache entries eagerly instead of waiting
// for them to be looked up again).
func (c *Compiler) ReportMemoryWrite(addr uint32) {
	c.Cache.InvalidatePage(addr >> memory.PageShift)
}

package amd64

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/backend/interp"
)

/*
Every helper below is called from generated native code through a single,
uniform bridge: one baked-in pointer to a small args struct, passed as the
lone argument to a plain (non-closure) Go function, so the call only ever
needs AX under Go's register-based calling convention — no other argument
register is ever live, which is what lets this package keep the ARM-state
pointer, the vars-array base, and the flags shadow in fixed host registers
across every call site without saving or reloading them (see regs.go).
Results, when there are any, are written back into the same struct and
read by the caller with an ordinary load after the call returns.
*/

type genCheckArgs struct {
	m    *interp.Machine
	addr uint32
	want uint32
	ok   uint32
}

// runGenCheck backs the generation check (spec.md §4.4): ok=1 if the
// memory page containing addr is still at generation want.
func runGenCheck(a *genCheckArgs) {
	if a.m.Mem.Generation(a.addr) == a.want {
		a.ok = 1
	} else {
		a.ok = 0
	}
}

type flagsSyncArgs struct {
	flags  *arm.Flags
	packed uint32
}

// syncFlagsIn writes packed (the native flags-shadow register's NZCV bits,
// in CPSR position) into flags, ahead of an ExecOp fallback call that
// reads flags by pointer.
func syncFlagsIn(a *flagsSyncArgs) { *a.flags = arm.FlagsFromCPSR(a.packed) }

// syncFlagsOut packs flags back for the caller to reload into the native
// flags-shadow register, after an ExecOp fallback call may have changed it.
func syncFlagsOut(a *flagsSyncArgs) { a.packed = a.flags.Pack() }

type machineFlagsArgs struct {
	m      *interp.Machine
	packed uint32
}

// loadInitialFlags backs the prolog's "loads CPSR NZCV into a host-flags-
// shadow register" step.
func loadInitialFlags(a *machineFlagsArgs) { a.packed = a.m.State.Flags().Pack() }

// storeFinalFlags backs the epilog's "writes the host-flags-shadow back to
// CPSR NZCV" step.
func storeFinalFlags(a *machineFlagsArgs) { a.m.State.SetFlags(arm.FlagsFromCPSR(a.packed)) }

type entryStateArgs struct {
	m      *interp.Machine
	result uint32 // 0: halted, no IRQ -> epilog. 1: fall through. 2: halted-with-IRQ or running-with-IRQ -> IRQ stub.
}

// checkEntryState backs the prolog's "checks execution state and IRQ line"
// step (spec.md §4.4).
func checkEntryState(a *entryStateArgs) {
	halted := a.m.State.ExecState() == arm.Halted
	irqPending := a.m.State.IRQLine() && a.m.State.CPSR()&arm.CPSRBitI == 0
	switch {
	case halted && !irqPending:
		a.result = 0
	case irqPending:
		a.result = 2
	default:
		a.result = 1
	}
}

type irqEntryArgs struct {
	m *interp.Machine
}

// performIRQEntry runs the normal-interrupt exception-entry sequence
// directly against guest state (spec.md §4.4 "IRQ entry stub"), the same
// steps translate.(*Translator).enterException lowers to IR for a guest
// SWI/prefetch-abort, hand-applied here since there is no IR block to
// lower into for an interrupt the host itself is delivering. Always
// targets vector base 0, the same value backend/interp's ExecOp yields
// for GetBaseVectorAddress.
func performIRQEntry(a *irqEntryArgs) {
	m := a.m
	oldCPSR := m.State.CPSR()
	m.State.SetSPSRFor(arm.ModeIRQ, oldCPSR)
	m.State.SetRBanked(arm.LR, arm.ModeIRQ, m.State.PC())

	masked := oldCPSR &^ (arm.CPSRBitT | arm.CPSRModeMask)
	newCPSR := masked | arm.CPSRBitI | uint32(arm.ModeIRQ)
	m.State.SetCPSR(newCPSR)
	m.State.SetExecState(arm.Running)

	const baseVectorAddress = 0
	m.State.SetPC(baseVectorAddress + arm.VectorIRQ)
}

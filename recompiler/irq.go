package recompiler

import "github.com/armrt/armrt/arm"

// checkIRQ performs the guest's interrupt-entry sequence directly against
// machine state when an IRQ is pending and not masked, the same register
// transformation translate.Translator.enterException lowers into IR for a
// guest-instruction-triggered exception (software interrupt, prefetch
// abort) — but an IRQ is a host-driven asynchronous event that can land
// between any two blocks, not something any single translated block
// predicts, so the dispatcher applies it itself rather than routing
// through the translator. It returns whether an interrupt was taken.
func (d *Dispatcher) checkIRQ() bool {
	s := d.Machine.State
	if !s.IRQLine() || s.CPSR()&arm.CPSRBitI != 0 {
		return false
	}

	cpsr := s.CPSR()
	s.SetSPSRFor(arm.ModeIRQ, cpsr)

	masked := cpsr &^ (arm.CPSRBitT | arm.CPSRModeMask)
	newCPSR := masked | arm.CPSRBitI | uint32(arm.ModeIRQ)
	s.SetCPSR(newCPSR)

	// spec.md's IRQ return-address convention: the instruction after the
	// one that would have executed next, i.e. PC+4 relative to the
	// interrupted instruction's own address (the pipelined "PC+8" an ARM7
	// fetch-stage PC implies, minus the 4 the decode stage has already
	// advanced by the time guest PC is read here).
	s.SetRBanked(arm.LR, arm.ModeIRQ, s.PC()+4)
	s.SetPC(arm.VectorIRQ)
	s.SetThumb(false)

	return true
}

package translate

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/ir"
)

// enterException lowers the guest's exception-entry sequence: save CPSR to
// the target mode's SPSR, switch modes and disable IRQ (and FIQ, for reset
// and FIQ entry), clear the Thumb bit, point LR at the adjusted return
// address, and branch to the vector (spec.md §4.1 "exception entry").
// It always terminates the block — guest exception entry is definitionally
// the end of straight-line execution.
func (t *Translator) enterException(vector uint32, newMode arm.Mode, returnAddr uint32, disableFIQ bool) {
	e := t.emit

	cpsr := e.LoadCPSR()
	e.StoreSPSR(newMode, ir.VarOperand(cpsr))

	masked := e.And(ir.VarOperand(cpsr), ir.ImmOperand(^(arm.CPSRBitT | arm.CPSRModeMask)), false, ir.CarryNoChange)
	setBits := arm.CPSRBitI | uint32(newMode)
	if disableFIQ {
		setBits |= arm.CPSRBitF
	}
	newCPSR := e.Or(ir.VarOperand(masked), ir.ImmOperand(setBits), false, ir.CarryNoChange)
	e.StoreCPSR(ir.VarOperand(newCPSR))

	e.StoreGPR(arm.LR, newMode, ir.ImmOperand(returnAddr))

	base := e.GetBaseVectorAddress()
	target := e.Add(ir.VarOperand(base), ir.ImmOperand(vector), false)
	e.Branch(ir.VarOperand(target))

	t.block.Term = ir.Terminator{Kind: ir.TermReturn}
	t.terminated = true
}

func (t *Translator) lowerSoftwareInterrupt(instr decode.Instruction) {
	t.enterException(arm.VectorSoftwareIntr, arm.ModeSupervisor, t.pc+instr.Length, false)
}

func (t *Translator) lowerSoftwareBreakpoint(instr decode.Instruction) {
	t.enterException(arm.VectorPrefetchAbort, arm.ModeAbort, t.pc+instr.Length, false)
}

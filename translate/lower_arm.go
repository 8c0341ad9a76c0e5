package translate

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/ir"
)

func (t *Translator) lowerBranch(instr decode.Instruction) {
	dest := uint32(int64(t.pipelinePC()) + int64(instr.Offset))
	if instr.Link {
		linkReg := t.pc + instr.Length
		t.emit.StoreGPR(arm.LR, t.block.Loc.Mode, ir.ImmOperand(linkReg))
	}
	if instr.BLX {
		// Thumb BL-suffix-with-H=1 (BLX to ARM state): clear bit 1, switch to ARM.
		dest &^= 3
		t.emit.StoreCPSR(t.cpsrWithThumbBit(false))
	} else if instr.SwitchToThumb {
		t.emit.StoreCPSR(t.cpsrWithThumbBit(true))
	}
	t.emit.Branch(ir.ImmOperand(dest))
	t.block.Term = ir.Terminator{Kind: ir.TermDirectLink, Target: ir.Location{PC: dest, Mode: t.block.Loc.Mode, Thumb: instr.SwitchToThumb || (t.block.Loc.Thumb && !instr.BLX)}}
	t.terminated = true
}

// cpsrWithThumbBit loads CPSR, sets or clears the T bit, and returns the
// new value as an operand without storing it — callers combine this with
// StoreCPSR themselves so the op sequence stays a single read-modify-write.
func (t *Translator) cpsrWithThumbBit(thumb bool) ir.VarOrImm {
	cpsr := t.emit.LoadCPSR()
	if thumb {
		v := t.emit.Or(ir.VarOperand(cpsr), ir.ImmOperand(arm.CPSRBitT), false, ir.CarryNoChange)
		return ir.VarOperand(v)
	}
	v := t.emit.And(ir.VarOperand(cpsr), ir.ImmOperand(^arm.CPSRBitT), false, ir.CarryNoChange)
	return ir.VarOperand(v)
}

func (t *Translator) lowerBranchExchange(instr decode.Instruction) {
	rm := t.emit.LoadGPR(instr.Reg, t.block.Loc.Mode)
	mode := ir.ExchangeNormal
	if instr.Link {
		t.emit.StoreGPR(arm.LR, t.block.Loc.Mode, ir.ImmOperand(t.pc+instr.Length))
		mode = ir.ExchangeLink
	}
	t.emit.BranchExchange(ir.VarOperand(rm), mode)
	t.block.Term = ir.Terminator{Kind: ir.TermIndirectLink}
	t.terminated = true
}

func (t *Translator) lowerDataProcessing(instr decode.Instruction) {
	setFlags := instr.SetFlags
	noLHS := instr.DPOp == decode.OpMOV || instr.DPOp == decode.OpMVN

	var lhs ir.VarOrImm
	if !noLHS {
		lhs = t.loadShiftSource(instr.LhsReg)
	}

	rhs := t.resolveDPOperand(instr, setFlags)

	var result ir.Var
	switch instr.DPOp {
	case decode.OpAND:
		result = t.emit.And(lhs, rhs.Value, setFlags, rhs.CarryOut)
	case decode.OpEOR:
		result = t.emit.Eor(lhs, rhs.Value, setFlags, rhs.CarryOut)
	case decode.OpSUB:
		result = t.emit.Sub(lhs, rhs.Value, setFlags)
	case decode.OpRSB:
		result = t.emit.RevSub(lhs, rhs.Value, setFlags)
	case decode.OpADD:
		result = t.emit.Add(lhs, rhs.Value, setFlags)
	case decode.OpADC:
		result = t.emit.AddCarry(lhs, rhs.Value, setFlags)
	case decode.OpSBC:
		result = t.emit.SubCarry(lhs, rhs.Value, setFlags)
	case decode.OpRSC:
		result = t.emit.RevSubCarry(lhs, rhs.Value, setFlags)
	case decode.OpTST:
		t.emit.And(lhs, rhs.Value, true, rhs.CarryOut)
		return
	case decode.OpTEQ:
		t.emit.Eor(lhs, rhs.Value, true, rhs.CarryOut)
		return
	case decode.OpCMP:
		t.emit.Sub(lhs, rhs.Value, true)
		return
	case decode.OpCMN:
		t.emit.Add(lhs, rhs.Value, true)
		return
	case decode.OpORR:
		result = t.emit.Or(lhs, rhs.Value, setFlags, rhs.CarryOut)
	case decode.OpMOV:
		result = t.emit.Move(rhs.Value, setFlags, rhs.CarryOut)
	case decode.OpBIC:
		result = t.emit.Bic(lhs, rhs.Value, setFlags, rhs.CarryOut)
	case decode.OpMVN:
		result = t.emit.MoveNeg(rhs.Value, setFlags, rhs.CarryOut)
	}

	if setFlags && instr.DstReg == arm.PC {
		// S-bit with Rd==R15: restore CPSR from the current mode's SPSR,
		// the "exception return" idiom.
		spsr := t.emit.LoadSPSR(t.block.Loc.Mode)
		t.emit.StoreCPSR(ir.VarOperand(spsr))
	}
	t.storeToGPR(instr.DstReg, ir.VarOperand(result), true)
}

func (t *Translator) lowerCLZ(instr decode.Instruction) {
	rm := t.emit.LoadGPR(instr.ArgReg, t.block.Loc.Mode)
	result := t.emit.CLZ(ir.VarOperand(rm))
	t.emit.StoreGPR(instr.DstReg, t.block.Loc.Mode, ir.VarOperand(result))
}

func (t *Translator) lowerSatAddSub(instr decode.Instruction) {
	rm := t.emit.LoadGPR(instr.LhsReg2, t.block.Loc.Mode)
	rn := t.emit.LoadGPR(instr.RhsReg, t.block.Loc.Mode)
	operand := ir.VarOperand(rn)
	if instr.Dbl {
		doubled := t.emit.SatAdd(ir.VarOperand(rn), ir.VarOperand(rn))
		operand = ir.VarOperand(doubled)
	}
	var result ir.Var
	if instr.Sub {
		result = t.emit.SatSub(ir.VarOperand(rm), operand)
	} else {
		result = t.emit.SatAdd(ir.VarOperand(rm), operand)
	}
	t.emit.StoreGPR(instr.DstReg, t.block.Loc.Mode, ir.VarOperand(result))
}

func (t *Translator) lowerMultiplyAccumulate(instr decode.Instruction) {
	rm := t.emit.LoadGPR(instr.LhsReg, t.block.Loc.Mode)
	rs := t.emit.LoadGPR(instr.RhsReg, t.block.Loc.Mode)
	product := t.emit.Mul(ir.VarOperand(rm), ir.VarOperand(rs), instr.SetFlags && !instr.Accumulate, false)
	result := product
	if instr.Accumulate {
		acc := t.emit.LoadGPR(instr.AccReg, t.block.Loc.Mode)
		result = t.emit.Add(ir.VarOperand(product), ir.VarOperand(acc), instr.SetFlags)
	}
	t.emit.StoreGPR(instr.DstReg, t.block.Loc.Mode, ir.VarOperand(result))
}

func (t *Translator) lowerMultiplyAccumulateLong(instr decode.Instruction) {
	rm := t.emit.LoadGPR(instr.LhsReg, t.block.Loc.Mode)
	rs := t.emit.LoadGPR(instr.RhsReg, t.block.Loc.Mode)

	var accHi ir.VarOrImm = ir.ImmOperand(0)
	var accLo ir.VarOrImm = ir.ImmOperand(0)
	if instr.Accumulate {
		hi := t.emit.LoadGPR(instr.DstAccHiReg, t.block.Loc.Mode)
		lo := t.emit.LoadGPR(instr.DstAccLoReg, t.block.Loc.Mode)
		accHi = ir.VarOperand(hi)
		accLo = ir.VarOperand(lo)
	}

	hi, lo := t.emit.MulLong(ir.VarOperand(rm), ir.VarOperand(rs), accHi, instr.SignedMul, instr.SetFlags)
	if instr.Accumulate {
		hi, lo = t.emit.AddLong64(ir.VarOperand(hi), ir.VarOperand(lo), accLo)
	}
	t.emit.StoreGPR(instr.DstAccLoReg, t.block.Loc.Mode, ir.VarOperand(lo))
	t.emit.StoreGPR(instr.DstAccHiReg, t.block.Loc.Mode, ir.VarOperand(hi))
}

func (t *Translator) lowerSignedMultiply(instr decode.Instruction) {
	rm := t.emit.LoadGPR(instr.LhsReg, t.block.Loc.Mode)
	rs := t.emit.LoadGPR(instr.RhsReg, t.block.Loc.Mode)
	product := t.emit.Mul(ir.VarOperand(rm), ir.VarOperand(rs), false, instr.X || instr.Y)
	result := product
	if instr.Accumulate {
		acc := t.emit.LoadGPR(instr.AccReg, t.block.Loc.Mode)
		result = t.emit.Add(ir.VarOperand(product), ir.VarOperand(acc), false)
	}
	t.emit.StoreGPR(instr.DstReg, t.block.Loc.Mode, ir.VarOperand(result))
}

func (t *Translator) lowerPSRRead(instr decode.Instruction) {
	var v ir.Var
	if instr.SPSR {
		v = t.emit.LoadSPSR(t.block.Loc.Mode)
	} else {
		v = t.emit.LoadCPSR()
	}
	t.emit.StoreGPR(instr.PSRReg, t.block.Loc.Mode, ir.VarOperand(v))
}

func (t *Translator) lowerPSRWrite(instr decode.Instruction) {
	var operand ir.VarOrImm
	if instr.PSRIsImm {
		operand = ir.ImmOperand(instr.PSRImm)
	} else {
		v := t.emit.LoadGPR(instr.PSRReg, t.block.Loc.Mode)
		operand = ir.VarOperand(v)
	}

	mask := uint32(0)
	if instr.FieldC {
		mask |= 0x000000FF
	}
	if instr.FieldX {
		mask |= 0x0000FF00
	}
	if instr.FieldS {
		mask |= 0x00FF0000
	}
	if instr.FieldF {
		mask |= 0xFF000000
	}

	var old ir.Var
	if instr.SPSR {
		old = t.emit.LoadSPSR(t.block.Loc.Mode)
	} else {
		old = t.emit.LoadCPSR()
	}
	kept := t.emit.And(ir.VarOperand(old), ir.ImmOperand(^mask), false, ir.CarryNoChange)
	masked := t.emit.And(operand, ir.ImmOperand(mask), false, ir.CarryNoChange)
	merged := t.emit.Or(ir.VarOperand(kept), ir.VarOperand(masked), false, ir.CarryNoChange)

	if instr.SPSR {
		t.emit.StoreSPSR(t.block.Loc.Mode, ir.VarOperand(merged))
	} else {
		t.emit.StoreCPSR(ir.VarOperand(merged))
	}
}

// resolveAddress computes the pre-indexed effective address (base plus or
// minus the offset) for a single-data-transfer style addressing mode;
// callers that write back store that same address to the base register.
func (t *Translator) resolveAddress(off decode.AddrOffset, positive bool) ir.VarOrImm {
	offsetVal := t.addrOffsetValue(off)
	base := t.loadShiftSource(off.BaseReg)
	if positive {
		return ir.VarOperand(t.emit.Add(base, offsetVal, false))
	}
	return ir.VarOperand(t.emit.Sub(base, offsetVal, false))
}

func (t *Translator) addrOffsetValue(off decode.AddrOffset) ir.VarOrImm {
	if off.Immediate {
		return ir.ImmOperand(uint32(off.ImmValue))
	}
	rm := t.loadShiftSource(off.Shift.SrcReg)
	res := t.applyShift(rm, off.Shift, false)
	return res.Value
}

func (t *Translator) lowerSingleDataTransfer(instr decode.Instruction) {
	base := t.loadShiftSource(instr.BaseReg)
	offsetVal := t.addrOffsetValue(instr.OffsetImm)

	var addr ir.VarOrImm
	var postAddr ir.Var
	if instr.Preindexed {
		if instr.PositiveOffset {
			addr = ir.VarOperand(t.emit.Add(base, offsetVal, false))
		} else {
			addr = ir.VarOperand(t.emit.Sub(base, offsetVal, false))
		}
	} else {
		addr = base
		if instr.PositiveOffset {
			postAddr = t.emit.Add(base, offsetVal, false)
		} else {
			postAddr = t.emit.Sub(base, offsetVal, false)
		}
	}

	size := ir.SizeWord
	if instr.Byte {
		size = ir.SizeByte
	}

	if instr.Load {
		v := t.emit.MemRead(addr, size, false, true)
		t.storeToGPR(instr.DstReg, ir.VarOperand(v), false)
	} else {
		v := t.loadShiftSource(instr.DstReg)
		t.emit.MemWrite(addr, v, size)
	}

	if instr.Preindexed {
		if instr.Writeback {
			t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, addr)
		}
	} else {
		t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, ir.VarOperand(postAddr))
	}
}

func (t *Translator) lowerHalfwordTransfer(instr decode.Instruction) {
	base := t.loadShiftSource(instr.BaseReg)
	var offsetVal ir.VarOrImm
	if instr.HWImmediate {
		offsetVal = ir.ImmOperand(uint32(instr.HWImmOffset))
	} else {
		rm := t.loadShiftSource(instr.HWRegOffset)
		offsetVal = rm
	}

	var addr ir.VarOrImm
	var postAddr ir.Var
	if instr.Preindexed {
		if instr.PositiveOffset {
			addr = ir.VarOperand(t.emit.Add(base, offsetVal, false))
		} else {
			addr = ir.VarOperand(t.emit.Sub(base, offsetVal, false))
		}
	} else {
		addr = base
		if instr.PositiveOffset {
			postAddr = t.emit.Add(base, offsetVal, false)
		} else {
			postAddr = t.emit.Sub(base, offsetVal, false)
		}
	}

	size := ir.SizeHalf
	if !instr.Half && instr.Sign {
		size = ir.SizeByte
	}

	if instr.Load {
		v := t.emit.MemRead(addr, size, instr.Sign, true)
		t.storeToGPR(instr.DstReg, ir.VarOperand(v), false)
	} else {
		v := t.loadShiftSource(instr.DstReg)
		t.emit.MemWrite(addr, v, size)
	}

	if instr.Preindexed {
		if instr.Writeback {
			t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, addr)
		}
	} else {
		t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, ir.VarOperand(postAddr))
	}
}

func (t *Translator) lowerBlockTransfer(instr decode.Instruction) {
	base := t.emit.LoadGPR(instr.BaseReg, t.block.Loc.Mode)
	addr := ir.VarOperand(base)

	regCount := 0
	for r := 0; r < 16; r++ {
		if instr.RegList&(1<<uint(r)) != 0 {
			regCount++
		}
	}

	bankMode := t.block.Loc.Mode
	if instr.UserMode {
		bankMode = arm.ModeUser
	}

	cursor := addr
	step := func(up bool) ir.VarOrImm {
		if up {
			v := t.emit.Add(cursor, ir.ImmOperand(4), false)
			cursor = ir.VarOperand(v)
		} else {
			v := t.emit.Sub(cursor, ir.ImmOperand(4), false)
			cursor = ir.VarOperand(v)
		}
		return cursor
	}

	// Decrement-before addressing modes walk downward from the start
	// address; this module always normalizes to an ascending access order,
	// matching the guest's documented "lowest register at lowest address"
	// invariant regardless of IA/IB/DA/DB addressing mode. The decoder's
	// PositiveOffset-equivalent distinction for LDM/STM has already rotated
	// the base so accesses proceed upward from it (preindex handled below).
	if !instr.PositiveOffset {
		shift := uint32(regCount * 4)
		cursor = ir.VarOperand(t.emit.Sub(addr, ir.ImmOperand(shift), false))
		if !instr.Preindexed {
			cursor = ir.VarOperand(t.emit.Add(cursor, ir.ImmOperand(4), false))
		}
	} else if instr.Preindexed {
		cursor = ir.VarOperand(t.emit.Add(addr, ir.ImmOperand(4), false))
	}

	for r := 0; r < 16; r++ {
		if instr.RegList&(1<<uint(r)) == 0 {
			continue
		}
		reg := arm.GPR(r)
		if instr.Load {
			v := t.emit.MemRead(cursor, ir.SizeWord, false, true)
			if reg == arm.PC {
				t.storeToGPR(reg, ir.VarOperand(v), t.opts.Arch == decode.ARMv5TE)
			} else {
				t.emit.StoreGPR(reg, bankMode, ir.VarOperand(v))
			}
		} else {
			v := t.emit.LoadGPR(reg, bankMode)
			t.emit.MemWrite(cursor, ir.VarOperand(v), ir.SizeWord)
		}
		if r != 15 || !instr.Load {
			cursor = step(true)
		}
	}

	if instr.Writeback {
		if instr.PositiveOffset {
			t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, ir.VarOperand(t.emit.Add(addr, ir.ImmOperand(uint32(regCount*4)), false)))
		} else {
			t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, ir.VarOperand(t.emit.Sub(addr, ir.ImmOperand(uint32(regCount*4)), false)))
		}
	}
}

func (t *Translator) lowerSingleDataSwap(instr decode.Instruction) {
	addr := t.emit.LoadGPR(instr.AddressReg1, t.block.Loc.Mode)
	size := ir.SizeWord
	if instr.Byte {
		size = ir.SizeByte
	}
	old := t.emit.MemRead(ir.VarOperand(addr), size, false, true)
	store := t.emit.LoadGPR(instr.AddressReg2, t.block.Loc.Mode)
	t.emit.MemWrite(ir.VarOperand(addr), ir.VarOperand(store), size)
	t.emit.StoreGPR(instr.DstReg, t.block.Loc.Mode, ir.VarOperand(old))
}

func (t *Translator) lowerCopDataOperation(instr decode.Instruction) {
	cop := t.cops[instr.CopNum&0xF]
	if cop == nil || !cop.IsPresent(instr.CopNum) {
		t.emit.Undefined()
		return
	}
	// Data operations (CDP) are entirely coprocessor-internal state — this
	// recompiler's only modeled coprocessor (CP15) has none, so CDP always
	// traps as undefined on it, matching real CP15 behavior.
	t.emit.Undefined()
}

func (t *Translator) lowerCopDataTransfer(instr decode.Instruction) {
	cop := t.cops[instr.CopNum&0xF]
	if cop == nil || !cop.IsPresent(instr.CopNum) {
		t.emit.Undefined()
		return
	}
	addr := t.resolveAddress(instr.OffsetImm, instr.PositiveOffset)
	if instr.Load {
		v := t.emit.MemRead(addr, ir.SizeWord, false, true)
		t.emit.StoreCopRegister(instr.CopNum, uint8(instr.CRd), ir.VarOperand(v))
	} else {
		v := t.emit.LoadCopRegister(instr.CopNum, uint8(instr.CRd))
		t.emit.MemWrite(addr, ir.VarOperand(v), ir.SizeWord)
	}
	if instr.Writeback {
		t.emit.StoreGPR(instr.BaseReg, t.block.Loc.Mode, addr)
	}
}

func (t *Translator) lowerCopRegTransfer(instr decode.Instruction) {
	cop := t.cops[instr.CopNum&0xF]
	if cop == nil || !cop.IsPresent(instr.CopNum) {
		t.emit.Undefined()
		return
	}
	if instr.CopStore {
		v := t.emit.LoadGPR(instr.CopRd, t.block.Loc.Mode)
		t.emit.StoreCopRegister(instr.CopNum, uint8(instr.CRn), ir.VarOperand(v))
	} else {
		v := t.emit.LoadCopRegister(instr.CopNum, uint8(instr.CRn))
		t.emit.StoreGPR(instr.CopRd, t.block.Loc.Mode, ir.VarOperand(v))
	}
}

func (t *Translator) lowerCopDualRegTransfer(instr decode.Instruction) {
	cop := t.cops[instr.CopNum&0xF]
	if cop == nil || !cop.IsPresent(instr.CopNum) || !cop.SupportsExtendedRegTransfers() {
		t.emit.Undefined()
		return
	}
	t.emit.Undefined()
}

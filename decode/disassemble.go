package decode

import "fmt"

// Disassemble renders instr as a short assembler-style mnemonic line, in
// the spirit of rcornwell-S370's emu/disassemble package: a map from
// opcode identity to a name plus minimal operand formatting, not a
// byte-exact reference disassembler.
func Disassemble(instr Instruction) string {
	cond := instr.Cond.String()
	if cond == "al" {
		cond = ""
	}
	switch instr.Kind {
	case Branch:
		mnem := "b"
		if instr.Link {
			mnem = "bl"
		}
		return fmt.Sprintf("%s%s #%d", mnem, cond, instr.Offset)
	case BranchAndExchange:
		mnem := "bx"
		if instr.Link {
			mnem = "blx"
		}
		return fmt.Sprintf("%s%s %s", mnem, cond, instr.Reg)
	case ThumbLongBranchSuffix:
		return fmt.Sprintf("bl.half #%d", instr.Offset)
	case DataProcessing:
		rhs := fmt.Sprintf("#0x%x", instr.RhsImm)
		if !instr.DPImmediate {
			rhs = disassembleShift(instr.RhsShift)
		}
		s := ""
		if instr.SetFlags {
			s = "s"
		}
		switch instr.DPOp {
		case OpMOV, OpMVN:
			return fmt.Sprintf("%s%s%s %s, %s", instr.DPOp, s, cond, instr.DstReg, rhs)
		case OpCMP, OpCMN, OpTST, OpTEQ:
			return fmt.Sprintf("%s%s %s, %s", instr.DPOp, cond, instr.LhsReg, rhs)
		default:
			return fmt.Sprintf("%s%s%s %s, %s, %s", instr.DPOp, s, cond, instr.DstReg, instr.LhsReg, rhs)
		}
	case CountLeadingZeros:
		return fmt.Sprintf("clz%s %s, %s", cond, instr.DstReg, instr.ArgReg)
	case SaturatingAddSub:
		mnem := "qadd"
		if instr.Sub {
			mnem = "qsub"
		}
		if instr.Dbl {
			mnem = "q" + mnem[1:] + "d" // qadd -> qdadd-ish name; approximation for disassembly only
		}
		return fmt.Sprintf("%s%s %s, %s, %s", mnem, cond, instr.DstReg, instr.LhsReg, instr.RhsReg)
	case MultiplyAccumulate:
		mnem := "mul"
		if instr.Accumulate {
			mnem = "mla"
		}
		return fmt.Sprintf("%s%s %s, %s, %s", mnem, cond, instr.DstReg, instr.LhsReg, instr.RhsReg)
	case MultiplyAccumulateLong:
		mnem := "umull"
		switch {
		case instr.SignedMul && instr.Accumulate:
			mnem = "smlal"
		case instr.SignedMul:
			mnem = "smull"
		case instr.Accumulate:
			mnem = "umlal"
		}
		return fmt.Sprintf("%s%s %s, %s, %s, %s", mnem, cond, instr.DstAccLoReg, instr.DstAccHiReg, instr.LhsReg, instr.RhsReg)
	case PSRRead:
		bank := "cpsr"
		if instr.SPSR {
			bank = "spsr"
		}
		return fmt.Sprintf("mrs%s %s, %s", cond, instr.DstReg, bank)
	case PSRWrite:
		bank := "cpsr"
		if instr.SPSR {
			bank = "spsr"
		}
		if instr.PSRIsImm {
			return fmt.Sprintf("msr%s %s, #0x%x", cond, bank, instr.PSRImm)
		}
		return fmt.Sprintf("msr%s %s, %s", cond, bank, instr.PSRReg)
	case SingleDataTransfer:
		mnem := "str"
		if instr.Load {
			mnem = "ldr"
		}
		if instr.Byte {
			mnem += "b"
		}
		return fmt.Sprintf("%s%s %s, [%s]", mnem, cond, instr.DstReg, instr.OffsetImm.BaseReg)
	case HalfwordAndSignedTransfer:
		mnem := "strh"
		if instr.Load {
			mnem = "ldrh"
			if instr.Sign && !instr.Half {
				mnem = "ldrsb"
			} else if instr.Sign {
				mnem = "ldrsh"
			}
		}
		return fmt.Sprintf("%s%s %s, [%s]", mnem, cond, instr.DstReg, instr.BaseReg)
	case BlockTransfer:
		mnem := "stm"
		if instr.Load {
			mnem = "ldm"
		}
		return fmt.Sprintf("%s%s %s, {regs=0x%04x}", mnem, cond, instr.BaseReg, instr.RegList)
	case SingleDataSwap:
		mnem := "swp"
		if instr.Byte {
			mnem += "b"
		}
		return fmt.Sprintf("%s%s %s, %s, [%s]", mnem, cond, instr.DstReg, instr.AddressReg1, instr.AddressReg2)
	case SoftwareInterrupt:
		return fmt.Sprintf("swi%s", cond)
	case SoftwareBreakpoint:
		return fmt.Sprintf("bkpt%s", cond)
	case Preload:
		return "pld [...]"
	case CopDataOperations:
		return fmt.Sprintf("cdp%s p%d, #%d, c%d, c%d, c%d, #%d", cond, instr.CopNum, instr.CopOp1, instr.CRd, instr.CRn, instr.CRm, instr.CopOp2)
	case CopDataTransfer:
		mnem := "stc"
		if instr.Load {
			mnem = "ldc"
		}
		return fmt.Sprintf("%s%s p%d, c%d, [%s]", mnem, cond, instr.CopNum, instr.CRd, instr.BaseReg)
	case CopRegTransfer:
		mnem := "mcr"
		if !instr.CopStore {
			mnem = "mrc"
		}
		return fmt.Sprintf("%s%s p%d, #%d, %s, c%d, c%d, #%d", mnem, cond, instr.CopNum, instr.CopOp1, instr.CopRd, instr.CRn, instr.CRm, instr.CopOp2)
	case CopDualRegTransfer:
		mnem := "mcrr"
		if !instr.CopStore {
			mnem = "mrrc"
		}
		return fmt.Sprintf("%s%s p%d, #%d, %s, %s, c%d", mnem, cond, instr.CopNum, instr.CopOp1, instr.CopRd, instr.BaseReg, instr.CRm)
	default:
		return fmt.Sprintf("undefined%s", cond)
	}
}

func disassembleShift(s RegShift) string {
	names := [...]string{"lsl", "lsr", "asr", "ror"}
	name := "lsl"
	if int(s.Type) < len(names) {
		name = names[s.Type]
	}
	if s.Immediate {
		if s.ImmAmount == 0 && s.Type == ShiftLSL {
			return s.SrcReg.String()
		}
		return fmt.Sprintf("%s, %s #%d", s.SrcReg, name, s.ImmAmount)
	}
	return fmt.Sprintf("%s, %s %s", s.SrcReg, name, s.RegAmount)
}

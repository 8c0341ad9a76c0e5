package decode

import "github.com/armrt/armrt/arm"

// Arch selects which guest ISA variant the decoder targets — a handful of
// ARM encodings (CLZ, QADD/QSUB family, the signed multiplies, BKPT, BLX,
// LDRD/STRD) only exist on ARMv5TE and decode to Undefined on ARMv4T.
type Arch uint8

const (
	ARMv4T Arch = iota
	ARMv5TE
)

func decodeRotatedImm(word uint32) uint32 {
	imm := bits(word, 0, 8)
	rotate := bits(word, 8, 4)
	shift := rotate * 2
	if shift == 0 {
		return imm
	}
	return (imm >> shift) | (imm << (32 - shift))
}

func decodeShift(word uint32) RegShift {
	var s RegShift
	shiftParam := bits(word, 4, 8)
	s.Type = ShiftType(bits(shiftParam, 1, 2))
	s.Immediate = shiftParam&1 == 0
	s.SrcReg = arm.GPR(bits(word, 0, 4))
	if s.Immediate {
		s.ImmAmount = uint8(bits(shiftParam, 3, 5))
	} else {
		s.RegAmount = arm.GPR(bits(shiftParam, 4, 4))
	}
	return s
}

func decodeAddressing(word uint32) AddrOffset {
	var o AddrOffset
	o.Immediate = !bit(word, 25) // inverted I bit, as in the original encoding
	o.PositiveOffset = bit(word, 23)
	o.BaseReg = arm.GPR(bits(word, 16, 4))
	if o.Immediate {
		o.ImmValue = uint16(bits(word, 0, 12))
	} else {
		o.Shift = decodeShift(word)
	}
	return o
}

// DecodeARM decodes one 32-bit ARM word into an Instruction for the given
// architecture. Branch offsets stay relative; the translator adds the
// guest address.
func DecodeARM(word uint32, arch Arch) Instruction {
	cond := arm.Cond(bits(word, 28, 4))
	op := bits(word, 25, 3)
	bits24to20 := bits(word, 20, 5)
	bits7to4 := bits(word, 4, 4)

	if arch == ARMv5TE && cond == arm.CondNV {
		switch op {
		case 0b000, 0b001, 0b100:
			return undefinedARM(arm.CondAL)
		case 0b010, 0b011:
			if bits24to20&0b10111 == 0b10101 {
				return preloadARM(word, arm.CondAL)
			}
			return undefinedARM(cond)
		case 0b110:
			return copDataTransferARM(word, arm.CondAL, true)
		case 0b111:
			if !bit(word, 24) {
				if bit(word, 4) {
					return copRegTransferARM(word, arm.CondAL, true)
				}
				return copDataOperationsARM(word, arm.CondAL, true)
			}
			if bit(word, 8) {
				return undefinedARM(cond)
			}
		}
	}

	switch op {
	case 0b000:
		switch {
		case bits24to20&0b11111 == 0b10010 && bits7to4 == 0b0001:
			return branchExchangeARM(word, cond)
		case bits24to20&0b11111 == 0b10010 && bits7to4 == 0b0011:
			if arch == ARMv5TE {
				bx := branchExchangeARM(word, cond)
				bx.Link = true
				return bx
			}
			return undefinedARM(cond)
		case bits24to20&0b11111 == 0b10110 && bits7to4 == 0b0001:
			if arch == ARMv5TE {
				return clzARM(word, cond)
			}
			return undefinedARM(cond)
		case bits24to20&0b11111 == 0b10010 && bits7to4 == 0b0111:
			if arch == ARMv5TE {
				return Instruction{Kind: SoftwareBreakpoint, Cond: cond, Length: 4}
			}
			return undefinedARM(cond)
		case bits24to20&0b11001 == 0b10000 && bits7to4&0b1111 == 0b0101:
			if arch == ARMv5TE {
				return satAddSubARM(word, cond)
			}
			return undefinedARM(cond)
		case bits24to20&0b11001 == 0b10000 && bits7to4&0b1001 == 0b1000:
			if arch == ARMv5TE {
				return signedMultiplyARM(word, cond)
			}
			return undefinedARM(cond)
		case bits24to20&0b11100 == 0b00000 && bits7to4 == 0b1001:
			return multiplyAccumulateARM(word, cond)
		case bits24to20&0b11000 == 0b01000 && bits7to4 == 0b1001:
			return multiplyAccumulateLongARM(word, cond)
		case bits24to20&0b11011 == 0b10000 && bits7to4 == 0b1001:
			return singleDataSwapARM(word, cond)
		case bits7to4&0b1001 == 0b1001:
			return halfwordOrUndefinedARM(word, cond, arch)
		case bits24to20&0b11011 == 0b10000 && bits7to4 == 0b0000:
			return psrReadARM(word, cond)
		case bits24to20&0b11011 == 0b10010 && bits7to4 == 0b0000:
			return psrWriteARM(word, cond)
		default:
			return dataProcessingARM(word, cond)
		}
	case 0b001:
		switch {
		case bits24to20&0b11011 == 0b10010:
			return psrWriteARM(word, cond)
		case bits24to20&0b11011 == 0b10000:
			return undefinedARM(cond)
		default:
			return dataProcessingARM(word, cond)
		}
	case 0b010, 0b011:
		if op&1 != 0 && bits7to4&1 != 0 {
			return undefinedARM(cond)
		}
		return singleDataTransferARM(word, cond)
	case 0b100:
		return blockTransferARM(word, cond)
	case 0b101:
		switchToThumb := arch == ARMv5TE && cond == arm.CondNV
		return branchARM(word, cond, switchToThumb)
	case 0b110:
		if arch == ARMv5TE && bits24to20&0b11110 == 0b00100 {
			return copDualRegTransferARM(word, cond)
		}
		return copDataTransferARM(word, cond, false)
	case 0b111:
		if bit(word, 24) {
			return Instruction{Kind: SoftwareInterrupt, Cond: cond, Length: 4}
		}
		if bit(word, 4) {
			return copRegTransferARM(word, cond, false)
		}
		return copDataOperationsARM(word, cond, false)
	}
	return undefinedARM(cond)
}

func undefinedARM(cond arm.Cond) Instruction {
	return Instruction{Kind: Undefined, Cond: cond, Length: 4}
}

func branchARM(word uint32, cond arm.Cond, switchToThumb bool) Instruction {
	offset := signExtend(bits(word, 0, 24), 23) << 2
	return Instruction{
		Kind: Branch, Cond: cond, Length: 4,
		Offset: offset, Link: bit(word, 24), SwitchToThumb: switchToThumb,
	}
}

func branchExchangeARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: BranchAndExchange, Cond: cond, Length: 4,
		Reg: arm.GPR(bits(word, 0, 4)), Link: bit(word, 5),
	}
}

func dataProcessingARM(word uint32, cond arm.Cond) Instruction {
	instr := Instruction{
		Kind: DataProcessing, Cond: cond, Length: 4,
		DPOp:        DataProcOp(bits(word, 21, 4)),
		DPImmediate: bit(word, 25),
		SetFlags:    bit(word, 20),
		DstReg:      arm.GPR(bits(word, 12, 4)),
		LhsReg:      arm.GPR(bits(word, 16, 4)),
	}
	if instr.DPImmediate {
		instr.RhsImm = decodeRotatedImm(word)
	} else {
		instr.RhsShift = decodeShift(word)
	}
	return instr
}

func clzARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: CountLeadingZeros, Cond: cond, Length: 4,
		DstReg: arm.GPR(bits(word, 12, 4)), ArgReg: arm.GPR(bits(word, 0, 4)),
	}
}

func satAddSubARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: SaturatingAddSub, Cond: cond, Length: 4,
		DstReg: arm.GPR(bits(word, 12, 4)), LhsReg: arm.GPR(bits(word, 0, 4)),
		RhsReg: arm.GPR(bits(word, 16, 4)), Sub: bit(word, 21), Dbl: bit(word, 22),
	}
}

func multiplyAccumulateARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: MultiplyAccumulate, Cond: cond, Length: 4,
		DstReg: arm.GPR(bits(word, 16, 4)), LhsReg: arm.GPR(bits(word, 0, 4)),
		RhsReg: arm.GPR(bits(word, 8, 4)), AccReg: arm.GPR(bits(word, 12, 4)),
		Accumulate: bit(word, 21), SetFlags: bit(word, 20),
	}
}

func multiplyAccumulateLongARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: MultiplyAccumulateLong, Cond: cond, Length: 4,
		DstAccLoReg: arm.GPR(bits(word, 12, 4)), DstAccHiReg: arm.GPR(bits(word, 16, 4)),
		LhsReg: arm.GPR(bits(word, 0, 4)), RhsReg: arm.GPR(bits(word, 8, 4)),
		SignedMul: bit(word, 22), Accumulate: bit(word, 21), SetFlags: bit(word, 20),
	}
}

func signedMultiplyARM(word uint32, cond arm.Cond) Instruction {
	op := bits(word, 21, 2)
	switch op {
	case 0b00, 0b11:
		return Instruction{
			Kind: SignedMultiplyAccumulate, Cond: cond, Length: 4,
			DstReg: arm.GPR(bits(word, 16, 4)), LhsReg: arm.GPR(bits(word, 0, 4)),
			RhsReg: arm.GPR(bits(word, 8, 4)), AccReg: arm.GPR(bits(word, 12, 4)),
			X: bit(word, 5), Y: bit(word, 6), Accumulate: !bit(word, 21),
		}
	case 0b01:
		return Instruction{
			Kind: SignedMultiplyAccumulateWord, Cond: cond, Length: 4,
			DstReg: arm.GPR(bits(word, 16, 4)), LhsReg: arm.GPR(bits(word, 0, 4)),
			RhsReg: arm.GPR(bits(word, 8, 4)), AccReg: arm.GPR(bits(word, 12, 4)),
			Y: bit(word, 6), Accumulate: !bit(word, 5),
		}
	default: // 0b10
		return Instruction{
			Kind: SignedMultiplyAccumulateLong, Cond: cond, Length: 4,
			DstAccLoReg: arm.GPR(bits(word, 12, 4)), DstAccHiReg: arm.GPR(bits(word, 16, 4)),
			LhsReg: arm.GPR(bits(word, 0, 4)), RhsReg: arm.GPR(bits(word, 8, 4)),
			X: bit(word, 5), Y: bit(word, 6),
		}
	}
}

func singleDataSwapARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: SingleDataSwap, Cond: cond, Length: 4,
		Byte: bit(word, 22), DstReg: arm.GPR(bits(word, 12, 4)),
		AddressReg1: arm.GPR(bits(word, 0, 4)), AddressReg2: arm.GPR(bits(word, 16, 4)),
	}
}

func halfwordOrUndefinedARM(word uint32, cond arm.Cond, arch Arch) Instruction {
	bit12 := bit(word, 12)
	l := bit(word, 20)
	s := bit(word, 6)
	h := bit(word, 5)

	build := func() Instruction {
		instr := Instruction{
			Kind: HalfwordAndSignedTransfer, Cond: cond, Length: 4,
			Preindexed: bit(word, 24), PositiveOffset: bit(word, 23),
			HWImmediate: bit(word, 22), Writeback: bit(word, 21), Load: l,
			Sign: s, Half: h,
			DstReg: arm.GPR(bits(word, 12, 4)), BaseReg: arm.GPR(bits(word, 16, 4)),
		}
		if instr.HWImmediate {
			instr.HWImmOffset = uint16(bits(word, 0, 4) | (bits(word, 8, 4) << 4))
		} else {
			instr.HWRegOffset = arm.GPR(bits(word, 0, 4))
		}
		return instr
	}

	if l {
		return build()
	}
	if s && h {
		if arch == ARMv5TE && !bit12 {
			return build()
		}
		return undefinedARM(cond)
	}
	if s {
		if arch == ARMv5TE && !bit12 {
			return build()
		}
		return undefinedARM(cond)
	}
	if h {
		return build()
	}
	return undefinedARM(cond)
}

func psrReadARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: PSRRead, Cond: cond, Length: 4,
		DstReg: arm.GPR(bits(word, 12, 4)), SPSR: bit(word, 22),
	}
}

func psrWriteARM(word uint32, cond arm.Cond) Instruction {
	instr := Instruction{
		Kind: PSRWrite, Cond: cond, Length: 4,
		PSRIsImm: bit(word, 25), SPSR: bit(word, 22),
		FieldF: bit(word, 19), FieldS: bit(word, 18), FieldX: bit(word, 17), FieldC: bit(word, 16),
	}
	if instr.PSRIsImm {
		instr.PSRImm = decodeRotatedImm(word)
	} else {
		instr.PSRReg = arm.GPR(bits(word, 0, 4))
	}
	return instr
}

func singleDataTransferARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: SingleDataTransfer, Cond: cond, Length: 4,
		Preindexed: bit(word, 24), Byte: bit(word, 22), Writeback: bit(word, 21), Load: bit(word, 20),
		DstReg: arm.GPR(bits(word, 12, 4)), OffsetImm: decodeAddressing(word),
	}
}

func blockTransferARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: BlockTransfer, Cond: cond, Length: 4,
		Preindexed: bit(word, 24), PositiveOffset: bit(word, 23), UserMode: bit(word, 22),
		Writeback: bit(word, 21), Load: bit(word, 20),
		BaseReg: arm.GPR(bits(word, 16, 4)), RegList: uint16(bits(word, 0, 16)),
	}
}

func preloadARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{Kind: Preload, Cond: cond, Length: 4, PreloadOffset: decodeAddressing(word)}
}

func copDataOperationsARM(word uint32, cond arm.Cond, ext bool) Instruction {
	return Instruction{
		Kind: CopDataOperations, Cond: cond, Length: 4,
		CopOp1: uint8(bits(word, 20, 4)), CRn: uint16(bits(word, 16, 4)), CRd: uint16(bits(word, 12, 4)),
		CopNum: uint8(bits(word, 8, 4)), CopOp2: uint16(bits(word, 5, 3)), CRm: uint16(bits(word, 0, 4)),
		CopExt: ext,
	}
}

func copDataTransferARM(word uint32, cond arm.Cond, ext bool) Instruction {
	return Instruction{
		Kind: CopDataTransfer, Cond: cond, Length: 4,
		Preindexed: bit(word, 24), PositiveOffset: bit(word, 23), Writeback: bit(word, 21), Load: bit(word, 20),
		BaseReg: arm.GPR(bits(word, 16, 4)), CRd: uint16(bits(word, 12, 4)), CopNum: uint8(bits(word, 8, 4)),
		HWImmOffset: uint16(bits(word, 0, 8)), CopExt: ext,
	}
}

func copRegTransferARM(word uint32, cond arm.Cond, ext bool) Instruction {
	return Instruction{
		Kind: CopRegTransfer, Cond: cond, Length: 4,
		CopStore: bit(word, 20), CopOp1: uint8(bits(word, 21, 3)), CRn: uint16(bits(word, 16, 4)),
		CopRd: arm.GPR(bits(word, 12, 4)), CopNum: uint8(bits(word, 8, 4)),
		CopOp2: uint16(bits(word, 5, 3)), CRm: uint16(bits(word, 0, 4)), CopExt: ext,
	}
}

func copDualRegTransferARM(word uint32, cond arm.Cond) Instruction {
	return Instruction{
		Kind: CopDualRegTransfer, Cond: cond, Length: 4,
		CopStore: bit(word, 20), BaseReg: arm.GPR(bits(word, 16, 4)), CopRd: arm.GPR(bits(word, 12, 4)),
		CopNum: uint8(bits(word, 8, 4)), CopOp1: uint8(bits(word, 4, 4)), CRm: uint16(bits(word, 0, 4)),
	}
}

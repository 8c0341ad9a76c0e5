package decode

import "github.com/armrt/armrt/arm"

func simpleRegShift(reg arm.GPR) RegShift {
	return RegShift{Type: ShiftLSL, Immediate: true, SrcReg: reg, ImmAmount: 0}
}

func bit16(word uint16, n uint) bool { return (word>>n)&1 != 0 }

func bits16(word uint16, lo, width uint) uint32 {
	return uint32(word>>lo) & ((1 << width) - 1)
}

// DecodeThumb decodes one 16-bit Thumb halfword into an Instruction.
// Thumb has no condition field (format B-cond aside, folded into Cond
// below) so every Instruction this produces carries CondAL except BCond.
//
// BL/BLX's 32-bit encoding is split across two halfwords (a "prefix" with
// the high 11 offset bits, and a "suffix" with the low 11 bits and the
// link-vs-exchange selector). Rather than have the decoder reach across to
// an adjacent halfword the way the original peeks forward/backward, each
// half decodes independently into a ThumbLongBranchSuffix Instruction
// tagged with its own Length (2) and an Offset holding only that half's
// field; translate, which already walks the halfword stream in order,
// is the one that recognizes a prefix immediately followed by a suffix and
// fuses them (spec.md §4.1 "Thumb BL/BLX: 32-bit instructions split across
// two halfwords").
func DecodeThumb(word uint16, arch Arch) Instruction {
	group := bits16(word, 12, 4)

	switch group {
	case 0b0000, 0b0001:
		if bits16(word, 11, 2) == 0b11 {
			return thumbAddSubRegImm(word)
		}
		return thumbShiftByImm(word)
	case 0b0010, 0b0011:
		return thumbMovCmpAddSubImm(word)
	case 0b0100:
		switch bits16(word, 10, 2) {
		case 0b00:
			return thumbDataProcessing(word)
		case 0b01:
			return thumbHiRegOrBX(word, arch)
		default:
			return thumbLdrPCRel(word)
		}
	case 0b0101:
		return thumbLoadStoreRegOffset(word)
	case 0b0110, 0b0111:
		return thumbLoadStoreImmOffset(word)
	case 0b1000:
		return thumbLoadStoreHalfImm(word)
	case 0b1001:
		return thumbLoadStoreSPRel(word)
	case 0b1010:
		return thumbAddPCOrSP(word)
	case 0b1011:
		return thumbMisc(word, arch)
	case 0b1100:
		return thumbBlockTransfer(word)
	case 0b1101:
		return thumbCondBranchOrSWI(word)
	case 0b1110:
		return thumbUncondBranchOrBLXPrefix(word, arch)
	default: // 0b1111
		return thumbBLHalf(word)
	}
}

func thumbShiftByImm(word uint16) Instruction {
	var shiftType ShiftType
	switch bits16(word, 11, 2) {
	case 0b00:
		shiftType = ShiftLSL
	case 0b01:
		shiftType = ShiftLSR
	default:
		shiftType = ShiftASR
	}
	dst := arm.GPR(bits16(word, 0, 3))
	return Instruction{
		Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
		DPOp: OpMOV, SetFlags: true, DstReg: dst, LhsReg: dst,
		RhsShift: RegShift{
			Type: shiftType, Immediate: true,
			SrcReg: arm.GPR(bits16(word, 3, 3)), ImmAmount: uint8(bits16(word, 6, 5)),
		},
	}
}

func thumbAddSubRegImm(word uint16) Instruction {
	op := OpADD
	if bit16(word, 9) {
		op = OpSUB
	}
	instr := Instruction{
		Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
		DPOp: op, DPImmediate: bit16(word, 10), SetFlags: true,
		DstReg: arm.GPR(bits16(word, 0, 3)), LhsReg: arm.GPR(bits16(word, 3, 3)),
	}
	if instr.DPImmediate {
		instr.RhsImm = bits16(word, 6, 3)
	} else {
		instr.RhsShift = simpleRegShift(arm.GPR(bits16(word, 6, 3)))
	}
	return instr
}

func thumbMovCmpAddSubImm(word uint16) Instruction {
	var op DataProcOp
	switch bits16(word, 11, 2) {
	case 0b00:
		op = OpMOV
	case 0b01:
		op = OpCMP
	case 0b10:
		op = OpADD
	default:
		op = OpSUB
	}
	dst := arm.GPR(bits16(word, 8, 3))
	return Instruction{
		Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
		DPOp: op, DPImmediate: true, SetFlags: true,
		DstReg: dst, LhsReg: dst, RhsImm: bits16(word, 0, 8),
	}
}

func thumbDataProcessing(word uint16) Instruction {
	dst3 := arm.GPR(bits16(word, 0, 3))
	src3 := arm.GPR(bits16(word, 3, 3))

	processDP := func(op DataProcOp) Instruction {
		return Instruction{
			Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
			DPOp: op, SetFlags: true, DstReg: dst3, LhsReg: dst3,
			RhsShift: simpleRegShift(src3),
		}
	}
	processShift := func(shiftType ShiftType) Instruction {
		return Instruction{
			Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
			DPOp: OpMOV, SetFlags: true, DstReg: dst3, LhsReg: 0,
			RhsShift: RegShift{Type: shiftType, Immediate: false, SrcReg: dst3, RegAmount: src3},
		}
	}

	switch bits16(word, 6, 4) {
	case 0b0000:
		return processDP(OpAND)
	case 0b0001:
		return processDP(OpEOR)
	case 0b0010:
		return processShift(ShiftLSL)
	case 0b0011:
		return processShift(ShiftLSR)
	case 0b0100:
		return processShift(ShiftASR)
	case 0b0101:
		return processDP(OpADC)
	case 0b0110:
		return processDP(OpSBC)
	case 0b0111:
		return processShift(ShiftROR)
	case 0b1000:
		return processDP(OpTST)
	case 0b1001: // NEG: RSB dst, src, #0
		return Instruction{
			Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
			DPOp: OpRSB, DPImmediate: true, SetFlags: true, DstReg: dst3, LhsReg: dst3, RhsImm: 0,
		}
	case 0b1010:
		return processDP(OpCMP)
	case 0b1011:
		return processDP(OpCMN)
	case 0b1100:
		return processDP(OpORR)
	case 0b1101: // MUL dst, src, dst
		return Instruction{
			Kind: MultiplyAccumulate, Cond: arm.CondAL, Length: 2,
			DstReg: dst3, LhsReg: dst3, RhsReg: src3, Accumulate: false, SetFlags: true,
		}
	case 0b1110:
		return processDP(OpBIC)
	default: // 0b1111 MVN
		return processDP(OpMVN)
	}
}

func thumbHiRegOrBX(word uint16, arch Arch) Instruction {
	op := bits16(word, 8, 2)
	h1 := bit16(word, 7)
	h2 := bit16(word, 6)
	rd := arm.GPR(bits16(word, 0, 3))
	rs := arm.GPR(bits16(word, 3, 3))
	if h1 {
		rd += 8
	}
	if h2 {
		rs += 8
	}

	switch op {
	case 0b00: // ADD Rd, Rs (hi)
		return Instruction{
			Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
			DPOp: OpADD, SetFlags: false, DstReg: rd, LhsReg: rd, RhsShift: simpleRegShift(rs),
		}
	case 0b01: // CMP Rd, Rs (hi)
		return Instruction{
			Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
			DPOp: OpCMP, SetFlags: true, DstReg: rd, LhsReg: rd, RhsShift: simpleRegShift(rs),
		}
	case 0b10: // MOV Rd, Rs (hi)
		return Instruction{
			Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
			DPOp: OpMOV, SetFlags: false, DstReg: rd, LhsReg: 0, RhsShift: simpleRegShift(rs),
		}
	default: // BX/BLX Rs
		if arch == ARMv5TE && h1 {
			return Instruction{Kind: BranchAndExchange, Cond: arm.CondAL, Length: 2, Reg: rs, Link: true}
		}
		return Instruction{Kind: BranchAndExchange, Cond: arm.CondAL, Length: 2, Reg: rs}
	}
}

func thumbLdrPCRel(word uint16) Instruction {
	dst := arm.GPR(bits16(word, 8, 3))
	return Instruction{
		Kind: SingleDataTransfer, Cond: arm.CondAL, Length: 2,
		Preindexed: true, Load: true, DstReg: dst,
		OffsetImm: AddrOffset{Immediate: true, PositiveOffset: true, BaseReg: arm.PC, ImmValue: uint16(bits16(word, 0, 8) << 2)},
	}
}

func thumbLoadStoreRegOffset(word uint16) Instruction {
	dst := arm.GPR(bits16(word, 0, 3))
	base := arm.GPR(bits16(word, 3, 3))
	offReg := arm.GPR(bits16(word, 6, 3))
	offset := AddrOffset{Immediate: false, PositiveOffset: true, BaseReg: base, Shift: simpleRegShift(offReg)}

	if bit16(word, 9) {
		h := bit16(word, 11)
		s := bit16(word, 10)
		return Instruction{
			Kind: HalfwordAndSignedTransfer, Cond: arm.CondAL, Length: 2,
			Preindexed: true, PositiveOffset: true, Load: h || s, Sign: s, Half: h || !s,
			DstReg: dst, BaseReg: base, HWRegOffset: offReg,
		}
	}
	l := bit16(word, 11)
	b := bit16(word, 10)
	return Instruction{
		Kind: SingleDataTransfer, Cond: arm.CondAL, Length: 2,
		Preindexed: true, Byte: b, Load: l, DstReg: dst, OffsetImm: offset,
	}
}

func thumbLoadStoreImmOffset(word uint16) Instruction {
	b := bit16(word, 12)
	l := bit16(word, 11)
	dst := arm.GPR(bits16(word, 0, 3))
	base := arm.GPR(bits16(word, 3, 3))
	imm := bits16(word, 6, 5)
	if !b {
		imm <<= 2
	}
	return Instruction{
		Kind: SingleDataTransfer, Cond: arm.CondAL, Length: 2,
		Preindexed: true, Byte: b, Load: l, DstReg: dst,
		OffsetImm: AddrOffset{Immediate: true, PositiveOffset: true, BaseReg: base, ImmValue: uint16(imm)},
	}
}

func thumbLoadStoreHalfImm(word uint16) Instruction {
	l := bit16(word, 11)
	dst := arm.GPR(bits16(word, 0, 3))
	base := arm.GPR(bits16(word, 3, 3))
	return Instruction{
		Kind: HalfwordAndSignedTransfer, Cond: arm.CondAL, Length: 2,
		Preindexed: true, PositiveOffset: true, HWImmediate: true, Load: l, Half: true,
		DstReg: dst, BaseReg: base, HWImmOffset: uint16(bits16(word, 6, 5) << 1),
	}
}

func thumbLoadStoreSPRel(word uint16) Instruction {
	l := bit16(word, 11)
	dst := arm.GPR(bits16(word, 8, 3))
	return Instruction{
		Kind: SingleDataTransfer, Cond: arm.CondAL, Length: 2,
		Preindexed: true, Load: l, DstReg: dst,
		OffsetImm: AddrOffset{Immediate: true, PositiveOffset: true, BaseReg: arm.SP, ImmValue: uint16(bits16(word, 0, 8) << 2)},
	}
}

func thumbAddPCOrSP(word uint16) Instruction {
	sp := bit16(word, 11)
	dst := arm.GPR(bits16(word, 8, 3))
	base := arm.PC
	if sp {
		base = arm.SP
	}
	return Instruction{
		Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
		DPOp: OpADD, DPImmediate: true, DstReg: dst, LhsReg: base, RhsImm: bits16(word, 0, 8) << 2,
	}
}

func thumbMisc(word uint16, arch Arch) Instruction {
	top8 := bits16(word, 8, 4)
	switch {
	case top8 == 0b0000:
		return thumbAddSubSP(word)
	case top8 == 0b1110:
		if arch == ARMv5TE {
			return Instruction{Kind: SoftwareBreakpoint, Cond: arm.CondAL, Length: 2}
		}
		return Instruction{Kind: Undefined, Cond: arm.CondAL, Length: 2}
	case top8&0b0110 == 0b0100:
		l := bit16(word, 11)
		regList := uint16(bits16(word, 0, 8))
		if bit16(word, 8) {
			if l {
				regList |= 1 << uint(arm.PC) // POP also restores PC when the R bit is set
			} else {
				regList |= 1 << uint(arm.LR) // PUSH also saves LR when the R bit is set
			}
		}
		return Instruction{
			Kind: BlockTransfer, Cond: arm.CondAL, Length: 2,
			Preindexed: !l, PositiveOffset: l, Writeback: true, Load: l,
			BaseReg: arm.SP, RegList: regList,
		}
	default:
		return Instruction{Kind: Undefined, Cond: arm.CondAL, Length: 2}
	}
}

func thumbAddSubSP(word uint16) Instruction {
	op := OpADD
	if bit16(word, 7) {
		op = OpSUB
	}
	return Instruction{
		Kind: DataProcessing, Cond: arm.CondAL, Length: 2,
		DPOp: op, DPImmediate: true, DstReg: arm.SP, LhsReg: arm.SP, RhsImm: bits16(word, 0, 7) << 2,
	}
}

func thumbBlockTransfer(word uint16) Instruction {
	l := bit16(word, 11)
	base := arm.GPR(bits16(word, 8, 3))
	return Instruction{
		Kind: BlockTransfer, Cond: arm.CondAL, Length: 2,
		Preindexed: false, PositiveOffset: true, Writeback: true, Load: l,
		BaseReg: base, RegList: uint16(bits16(word, 0, 8)),
	}
}

func thumbCondBranchOrSWI(word uint16) Instruction {
	top8 := bits16(word, 8, 4)
	if top8 == 0b1111 {
		return Instruction{Kind: SoftwareInterrupt, Cond: arm.CondAL, Length: 2}
	}
	if top8 == 0b1110 {
		return Instruction{Kind: Undefined, Cond: arm.CondAL, Length: 2}
	}
	cond := arm.Cond(bits16(word, 8, 4))
	offset := signExtend(bits16(word, 0, 8), 7) << 1
	return Instruction{Kind: Branch, Cond: cond, Length: 2, Offset: offset}
}

func thumbUncondBranchOrBLXPrefix(word uint16, arch Arch) Instruction {
	if arch == ARMv5TE && bit16(word, 11) {
		if word&1 != 0 {
			return Instruction{Kind: Undefined, Cond: arm.CondAL, Length: 2}
		}
		offset := int32(bits16(word, 0, 11)) << 1
		return Instruction{Kind: ThumbLongBranchSuffix, Cond: arm.CondAL, Length: 2, Offset: offset, BLX: true}
	}
	offset := signExtend(bits16(word, 0, 11), 10) << 1
	return Instruction{Kind: Branch, Cond: arm.CondAL, Length: 2, Offset: offset}
}

// thumbBLHalf decodes a group-0b1111 halfword: either the BL/BLX prefix
// (h==0, bits[10:0] the high 11 offset bits) or the BL suffix (h==1,
// bits[10:0] the low 11 offset bits). translate fuses consecutive
// prefix+suffix pairs; see DecodeThumb's doc comment.
func thumbBLHalf(word uint16) Instruction {
	h := bit16(word, 11)
	offset := int32(bits16(word, 0, 11))
	if h {
		return Instruction{Kind: ThumbLongBranchSuffix, Cond: arm.CondAL, Length: 2, Offset: offset << 1}
	}
	return Instruction{Kind: ThumbLongBranchSuffix, Cond: arm.CondAL, Length: 2, Offset: offset << 12, Link: true}
}

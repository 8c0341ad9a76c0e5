/*
Package decode turns a raw 32-bit ARM word or 16-bit Thumb halfword into an
Instruction: a flat, tagged-union descriptor in the same style as
oisee-z80-optimizer's pkg/inst.Instruction and this module's own ir.Op — one
Kind discriminator plus every field any instruction class might need, rather
than a class hierarchy per instruction. The field names and instruction
class boundaries are the ones the guest ISA itself draws (data processing,
block transfer, coprocessor register transfer, and so on); translate builds
on top by switching on Kind.
*/
package decode

import "github.com/armrt/armrt/arm"

// Kind names one of the ARM/Thumb instruction classes the decoder
// recognizes. Thumb instructions decode into the same Kind space as ARM —
// the Thumb decoder expands 16-bit encodings into the equivalent ARM
// instruction class before translate ever sees them, so lowering is
// written once.
type Kind uint8

const (
	Branch Kind = iota
	BranchAndExchange
	ThumbLongBranchSuffix
	DataProcessing
	CountLeadingZeros
	SaturatingAddSub
	MultiplyAccumulate
	MultiplyAccumulateLong
	SignedMultiplyAccumulate
	SignedMultiplyAccumulateWord
	SignedMultiplyAccumulateLong
	PSRRead
	PSRWrite
	SingleDataTransfer
	HalfwordAndSignedTransfer
	BlockTransfer
	SingleDataSwap
	SoftwareInterrupt
	SoftwareBreakpoint
	Preload
	CopDataOperations
	CopDataTransfer
	CopRegTransfer
	CopDualRegTransfer
	Undefined

	kindCount
)

var kindNames = [kindCount]string{
	Branch: "branch", BranchAndExchange: "bx", ThumbLongBranchSuffix: "blx.suffix",
	DataProcessing: "dataproc", CountLeadingZeros: "clz", SaturatingAddSub: "qaddsub",
	MultiplyAccumulate: "mul", MultiplyAccumulateLong: "mull",
	SignedMultiplyAccumulate: "smla", SignedMultiplyAccumulateWord: "smlaw",
	SignedMultiplyAccumulateLong: "smlal", PSRRead: "mrs", PSRWrite: "msr",
	SingleDataTransfer: "sdt", HalfwordAndSignedTransfer: "hwt", BlockTransfer: "bt",
	SingleDataSwap: "swp", SoftwareInterrupt: "swi", SoftwareBreakpoint: "bkpt",
	Preload: "pld", CopDataOperations: "cdp", CopDataTransfer: "cdt",
	CopRegTransfer: "mcr/mrc", CopDualRegTransfer: "mcrr/mrrc", Undefined: "undefined",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "?"
}

// DataProcOp names one of the sixteen data-processing ALU opcodes.
type DataProcOp uint8

const (
	OpAND DataProcOp = iota
	OpEOR
	OpSUB
	OpRSB
	OpADD
	OpADC
	OpSBC
	OpRSC
	OpTST
	OpTEQ
	OpCMP
	OpCMN
	OpORR
	OpMOV
	OpBIC
	OpMVN
)

var dataProcNames = [16]string{
	"and", "eor", "sub", "rsb", "add", "adc", "sbc", "rsc",
	"tst", "teq", "cmp", "cmn", "orr", "mov", "bic", "mvn",
}

func (o DataProcOp) String() string {
	if int(o) < len(dataProcNames) {
		return dataProcNames[o]
	}
	return "?"
}

// ShiftType names a barrel-shifter operation as the encoding spells it: a
// plain LSL/LSR/ASR/ROR selector. RRX is not a distinct encoding — it's
// ROR with an immediate amount of zero — so translate's shifter is the one
// that tells the two apart (spec.md §4.1).
type ShiftType uint8

const (
	ShiftLSL ShiftType = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

// RegShift describes a barrel-shifter second operand specified by a
// register: shift type plus either an immediate shift amount or a register
// holding it (bottom byte only).
type RegShift struct {
	Type      ShiftType
	Immediate bool
	SrcReg    arm.GPR
	ImmAmount uint8
	RegAmount arm.GPR
}

// AddrOffset describes a single-data-transfer addressing offset: either an
// immediate or a register-specified shift, with a base register and sign.
type AddrOffset struct {
	Immediate      bool // inverted I bit: true means "offset is an immediate"
	PositiveOffset bool
	BaseReg        arm.GPR
	ImmValue       uint16
	Shift          RegShift
}

// Instruction is the decoder's output: one guest instruction, fully decoded
// into typed fields, still architecture-neutral with respect to the IR (the
// translator does the IR lowering).
type Instruction struct {
	Kind Kind
	Cond arm.Cond

	// Length in bytes of the encoding this Instruction came from: 2 for a
	// plain Thumb halfword, 4 for ARM or a 32-bit Thumb-2-style BL/BLX
	// pair (only ThumbLongBranchSuffix ever spans two halfwords on
	// ARMv4T/ARMv5TE, and the two halves are decoded into one
	// Instruction each with Length 2).
	Length uint32

	// Branch / BranchAndExchange / ThumbLongBranchSuffix.
	Offset        int32
	Link          bool
	SwitchToThumb bool
	BLX           bool
	Reg           arm.GPR

	// DataProcessing.
	DPOp        DataProcOp
	DPImmediate bool
	SetFlags    bool
	DstReg      arm.GPR
	LhsReg      arm.GPR
	RhsImm      uint32
	RhsShift    RegShift

	// CountLeadingZeros.
	ArgReg arm.GPR

	// SaturatingAddSub.
	LhsReg2, RhsReg arm.GPR
	Sub, Dbl        bool

	// MultiplyAccumulate / MultiplyAccumulateLong / SignedMultiply*.
	AccReg               arm.GPR
	DstAccHiReg          arm.GPR
	DstAccLoReg          arm.GPR
	Accumulate           bool
	SignedMul            bool
	X, Y                 bool

	// PSRRead / PSRWrite.
	SPSR      bool
	PSRImm    uint32
	PSRReg    arm.GPR
	PSRIsImm  bool
	FieldF    bool
	FieldS    bool
	FieldX    bool
	FieldC    bool

	// SingleDataTransfer / HalfwordAndSignedTransfer / CopDataTransfer.
	Preindexed     bool
	Byte           bool
	Writeback      bool
	Load           bool
	PositiveOffset bool
	OffsetImm      AddrOffset
	HWImmOffset    uint16
	HWRegOffset    arm.GPR
	HWImmediate    bool
	Sign           bool
	Half           bool
	BaseReg        arm.GPR

	// BlockTransfer.
	UserMode bool
	RegList  uint16

	// SingleDataSwap.
	AddressReg1, AddressReg2 arm.GPR

	// Coprocessor classes.
	CopNum  uint8
	CopOp1  uint8
	CopOp2  uint16
	CRn     uint16
	CRd     uint16
	CRm     uint16
	CopRd   arm.GPR
	CopStore bool
	CopExt   bool

	// Preload.
	PreloadOffset AddrOffset
}

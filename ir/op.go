package ir

import "github.com/armrt/armrt/arm"

// Kind discriminates the roughly forty IR opcode kinds from spec.md §3.
type Kind uint8

const (
	// Register access.
	LoadGPR Kind = iota
	StoreGPR
	LoadCPSR
	StoreCPSR
	LoadSPSR
	StoreSPSR

	// Memory access.
	MemRead
	MemWrite
	Preload

	// Integer ALU: shifts.
	LSL
	LSR
	ASR
	ROR
	RRX

	// Integer ALU: bitwise logic.
	And
	Or
	Eor
	Bic

	// Integer ALU: arithmetic.
	Add
	AddCarry
	Sub
	RevSub
	SubCarry
	RevSubCarry
	Move
	MoveNeg
	CLZ
	SatAdd
	SatSub
	Mul
	MulLong
	AddLong64

	// Flag manipulation.
	StoreFlags
	LoadFlags
	LoadStickyOverflow

	// Branching.
	Branch
	BranchExchange

	// Coprocessor.
	LoadCopRegister
	StoreCopRegister

	// Misc.
	Const
	CopyVar
	GetBaseVectorAddress
	Undefined

	kindCount
)

var kindNames = [kindCount]string{
	LoadGPR: "ld.gpr", StoreGPR: "st.gpr",
	LoadCPSR: "ld.cpsr", StoreCPSR: "st.cpsr",
	LoadSPSR: "ld.spsr", StoreSPSR: "st.spsr",
	MemRead: "mem.read", MemWrite: "mem.write", Preload: "preload",
	LSL: "lsl", LSR: "lsr", ASR: "asr", ROR: "ror", RRX: "rrx",
	And: "and", Or: "orr", Eor: "eor", Bic: "bic",
	Add: "add", AddCarry: "adc", Sub: "sub", RevSub: "rsb",
	SubCarry: "sbc", RevSubCarry: "rsc", Move: "mov", MoveNeg: "mvn",
	CLZ: "clz", SatAdd: "qadd", SatSub: "qsub", Mul: "mul",
	MulLong: "mull", AddLong64: "addl64",
	StoreFlags: "st.flags", LoadFlags: "ld.flags", LoadStickyOverflow: "ld.q",
	Branch: "b", BranchExchange: "bx",
	LoadCopRegister: "ld.cop", StoreCopRegister: "st.cop",
	Const: "const", CopyVar: "copy", GetBaseVectorAddress: "vecbase",
	Undefined: "undefined",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "?"
}

// MemSize is the width of a memory access.
type MemSize uint8

const (
	SizeByte MemSize = iota
	SizeHalf
	SizeWord
)

// ShiftType names a barrel-shifter operation, used by Op.ShiftType when a
// Move/ALU op's second operand is a shifted register.
type ShiftType uint8

const (
	ShiftNone ShiftType = iota
	ShiftLSL
	ShiftLSR
	ShiftASR
	ShiftROR
	ShiftRRX
)

// CarryOut classifies the statically-known carry-out of a rotated-immediate
// operand, computed by the translator at decode time (spec.md §4.1).
type CarryOut uint8

const (
	CarryNoChange CarryOut = iota
	CarrySet
	CarryClear
)

// ExchangeMode selects among BX's three exchange submodes (ARMv5TE only).
type ExchangeMode uint8

const (
	ExchangeNormal ExchangeMode = iota // BX: PC = Rm & ~1, T = Rm[0]
	ExchangeLink                       // BLX(1)/BLX(2): as above, plus LR = return addr
	ExchangeL4                         // BX with L bit from bit[4] of opcode encoding (BLX variants that also set T unconditionally)
)

// GPRArg names a register in a possibly-non-current mode's bank, used by
// LoadGPR/StoreGPR to express user-mode register transfers (LDM/STM ^,
// MSR/MRS with the user-bank force bit).
type GPRArg struct {
	Reg  arm.GPR
	Mode arm.Mode
}

// Op is one IR operation. It is owned by exactly one Block; Prev/Next form
// the block's intrusive doubly-linked list (spec.md §3 invariant: the first
// op has no Prev, the last no Next).
//
// Dst/Dst2 default to NoVar and Src1/Src2/Src3 default to NoOperand for any
// Op whose Kind doesn't use that slot — the bare zero value of Var and
// VarOrImm both alias variable 0, so every constructor (Emitter's methods,
// and any op literal built directly by the decoder/optimizer) must set
// unused slots explicitly rather than leave them defaulted.
type Op struct {
	Kind Kind

	Prev, Next *Op

	// Dst/Dst2 are VariableArg destinations. Dst2 is used only by MulLong
	// (low word) and AddLong64 (low word); Dst carries the high word for
	// those two kinds. NoVar when unused.
	Dst, Dst2 Var

	// Src1/Src2/Src3 are VarOrImm source operands. Their meaning depends on
	// Kind: e.g. for Add, Src1+Src2 are the addends; for MulLong and
	// AddLong64, Src3 carries the high-word addend. AddCarry and the other
	// carry ops read their carry-in from host flags, not from Src3.
	Src1, Src2, Src3 VarOrImm

	GPR     GPRArg
	PSRMode arm.Mode // bank selector for {Load,Store}SPSR and banked GPR access

	SetFlags  bool
	ShiftType ShiftType
	CarryOut  CarryOut // for immediate-operand ALU ops with a precomputed carry

	Size    MemSize
	Signed  bool
	Aligned bool

	FlagMask   uint32    // NZCVQ bits touched by StoreFlags/LoadFlags
	FlagValues arm.Flags // known values being stored, for StoreFlags

	Exchange ExchangeMode

	CopNum uint8 // coprocessor number (15 for the system control coprocessor)
	CopReg uint8 // coprocessor register index

	Imm uint32 // literal value for Const

	HalfShift bool // SMULxy/SMLAxy-style operand half-select for Mul/MulLong
}

// IsTerminatorLike reports whether this op kind ends control flow within
// the block (used by the translator to decide when to stop emitting and by
// the optimizer to treat the op as observing PC).
func (o *Op) IsTerminatorLike() bool {
	return o.Kind == Branch || o.Kind == BranchExchange || o.Kind == Undefined
}

// HasSideEffect reports whether this op must never be removed by dead-code
// elimination regardless of whether its destination is read: memory
// writes, branches, coprocessor stores and flag writes are all observable
// outside the SSA value graph (spec.md §4.3 pass 6).
func (o *Op) HasSideEffect() bool {
	switch o.Kind {
	case MemWrite, Preload, Branch, BranchExchange, StoreCopRegister,
		StoreFlags, StoreGPR, StoreCPSR, StoreSPSR, Undefined:
		return true
	default:
		return false
	}
}

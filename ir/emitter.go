package ir

import "github.com/armrt/armrt/arm"

// Emitter appends ops to a Block and allocates the variables their
// destinations need. It performs no folding or simplification — spec.md
// §4.1 is explicit that immediate folding is the optimizer's job, not the
// emitter's.
type Emitter struct {
	Block *Block
}

// NewEmitter returns an Emitter appending to b.
func NewEmitter(b *Block) *Emitter { return &Emitter{Block: b} }

// newOp returns an Op with every operand slot preset to its "absent" value.
// Callers only need to fill in the fields their Kind actually uses; any
// slot left untouched stays absent rather than aliasing variable 0 (see
// NoOperand).
func newOp(kind Kind) *Op {
	return &Op{
		Kind: kind,
		Dst:  NoVar, Dst2: NoVar,
		Src1: NoOperand, Src2: NoOperand, Src3: NoOperand,
	}
}

func (e *Emitter) emit(op *Op) *Op {
	e.Block.Append(op)
	return op
}

func (e *Emitter) newVar() Var { return e.Block.AllocVar() }

// LoadGPR emits `dst = GPR[reg:mode]`.
func (e *Emitter) LoadGPR(reg arm.GPR, mode arm.Mode) Var {
	dst := e.newVar()
	op := newOp(LoadGPR)
	op.Dst = dst
	op.GPR = GPRArg{Reg: reg, Mode: mode}
	e.emit(op)
	return dst
}

// StoreGPR emits `GPR[reg:mode] = src`.
func (e *Emitter) StoreGPR(reg arm.GPR, mode arm.Mode, src VarOrImm) {
	op := newOp(StoreGPR)
	op.Src1 = src
	op.GPR = GPRArg{Reg: reg, Mode: mode}
	e.emit(op)
}

// LoadCPSR emits `dst = CPSR`.
func (e *Emitter) LoadCPSR() Var {
	dst := e.newVar()
	op := newOp(LoadCPSR)
	op.Dst = dst
	e.emit(op)
	return dst
}

// StoreCPSR emits `CPSR = src`.
func (e *Emitter) StoreCPSR(src VarOrImm) {
	op := newOp(StoreCPSR)
	op.Src1 = src
	e.emit(op)
}

// LoadSPSR emits `dst = SPSR[mode]`.
func (e *Emitter) LoadSPSR(mode arm.Mode) Var {
	dst := e.newVar()
	op := newOp(LoadSPSR)
	op.Dst = dst
	op.PSRMode = mode
	e.emit(op)
	return dst
}

// StoreSPSR emits `SPSR[mode] = src`.
func (e *Emitter) StoreSPSR(mode arm.Mode, src VarOrImm) {
	op := newOp(StoreSPSR)
	op.Src1 = src
	op.PSRMode = mode
	e.emit(op)
}

// MemRead emits a guest memory read of the given size at address addr.
func (e *Emitter) MemRead(addr VarOrImm, size MemSize, signed, aligned bool) Var {
	dst := e.newVar()
	op := newOp(MemRead)
	op.Dst = dst
	op.Src1 = addr
	op.Size = size
	op.Signed = signed
	op.Aligned = aligned
	e.emit(op)
	return dst
}

// MemWrite emits a guest memory write of value at address addr.
func (e *Emitter) MemWrite(addr, value VarOrImm, size MemSize) {
	op := newOp(MemWrite)
	op.Src1 = addr
	op.Src2 = value
	op.Size = size
	e.emit(op)
}

// PreloadHint emits a cache-preload hint for address addr.
func (e *Emitter) PreloadHint(addr VarOrImm) {
	op := newOp(Preload)
	op.Src1 = addr
	e.emit(op)
}

func (e *Emitter) shift(kind Kind, value, amount VarOrImm, setFlags bool) Var {
	dst := e.newVar()
	op := newOp(kind)
	op.Dst = dst
	op.Src1 = value
	op.Src2 = amount
	op.SetFlags = setFlags
	e.emit(op)
	return dst
}

// LSL emits a logical-shift-left.
func (e *Emitter) LSL(value, amount VarOrImm, setFlags bool) Var {
	return e.shift(LSL, value, amount, setFlags)
}

// LSR emits a logical-shift-right.
func (e *Emitter) LSR(value, amount VarOrImm, setFlags bool) Var {
	return e.shift(LSR, value, amount, setFlags)
}

// ASR emits an arithmetic-shift-right.
func (e *Emitter) ASR(value, amount VarOrImm, setFlags bool) Var {
	return e.shift(ASR, value, amount, setFlags)
}

// ROR emits a rotate-right.
func (e *Emitter) ROR(value, amount VarOrImm, setFlags bool) Var {
	return e.shift(ROR, value, amount, setFlags)
}

// RRX emits a rotate-right-extended (through carry) by one bit.
func (e *Emitter) RRX(value VarOrImm, setFlags bool) Var {
	dst := e.newVar()
	op := newOp(RRX)
	op.Dst = dst
	op.Src1 = value
	op.SetFlags = setFlags
	e.emit(op)
	return dst
}

func (e *Emitter) binALU(kind Kind, a, b VarOrImm, setFlags bool, carryOut CarryOut) Var {
	dst := e.newVar()
	op := newOp(kind)
	op.Dst = dst
	op.Src1 = a
	op.Src2 = b
	op.SetFlags = setFlags
	op.CarryOut = carryOut
	e.emit(op)
	return dst
}

// And emits a bitwise AND.
func (e *Emitter) And(a, b VarOrImm, setFlags bool, carryOut CarryOut) Var {
	return e.binALU(And, a, b, setFlags, carryOut)
}

// Or emits a bitwise OR.
func (e *Emitter) Or(a, b VarOrImm, setFlags bool, carryOut CarryOut) Var {
	return e.binALU(Or, a, b, setFlags, carryOut)
}

// Eor emits a bitwise XOR.
func (e *Emitter) Eor(a, b VarOrImm, setFlags bool, carryOut CarryOut) Var {
	return e.binALU(Eor, a, b, setFlags, carryOut)
}

// Bic emits `a AND NOT b`.
func (e *Emitter) Bic(a, b VarOrImm, setFlags bool, carryOut CarryOut) Var {
	return e.binALU(Bic, a, b, setFlags, carryOut)
}

// Add emits an addition without carry-in.
func (e *Emitter) Add(a, b VarOrImm, setFlags bool) Var {
	return e.binALU(Add, a, b, setFlags, CarryNoChange)
}

// AddCarry emits an addition with carry-in taken from host flags at
// codegen time.
func (e *Emitter) AddCarry(a, b VarOrImm, setFlags bool) Var {
	return e.binALU(AddCarry, a, b, setFlags, CarryNoChange)
}

// Sub emits a subtraction.
func (e *Emitter) Sub(a, b VarOrImm, setFlags bool) Var {
	return e.binALU(Sub, a, b, setFlags, CarryNoChange)
}

// RevSub emits a reverse subtraction (`b - a`).
func (e *Emitter) RevSub(a, b VarOrImm, setFlags bool) Var {
	return e.binALU(RevSub, a, b, setFlags, CarryNoChange)
}

// SubCarry emits a subtraction with borrow-in from host flags.
func (e *Emitter) SubCarry(a, b VarOrImm, setFlags bool) Var {
	return e.binALU(SubCarry, a, b, setFlags, CarryNoChange)
}

// RevSubCarry emits a reverse subtraction with borrow-in.
func (e *Emitter) RevSubCarry(a, b VarOrImm, setFlags bool) Var {
	return e.binALU(RevSubCarry, a, b, setFlags, CarryNoChange)
}

// Move emits `dst = src`.
func (e *Emitter) Move(src VarOrImm, setFlags bool, carryOut CarryOut) Var {
	dst := e.newVar()
	op := newOp(Move)
	op.Dst = dst
	op.Src1 = src
	op.SetFlags = setFlags
	op.CarryOut = carryOut
	e.emit(op)
	return dst
}

// MoveNeg emits `dst = ^src`.
func (e *Emitter) MoveNeg(src VarOrImm, setFlags bool, carryOut CarryOut) Var {
	dst := e.newVar()
	op := newOp(MoveNeg)
	op.Dst = dst
	op.Src1 = src
	op.SetFlags = setFlags
	op.CarryOut = carryOut
	e.emit(op)
	return dst
}

// CLZ emits a count-leading-zeros.
func (e *Emitter) CLZ(src VarOrImm) Var {
	dst := e.newVar()
	op := newOp(CLZ)
	op.Dst = dst
	op.Src1 = src
	e.emit(op)
	return dst
}

// SatAdd emits a saturating add, setting Q on overflow.
func (e *Emitter) SatAdd(a, b VarOrImm) Var {
	return e.binALU(SatAdd, a, b, false, CarryNoChange)
}

// SatSub emits a saturating subtract, setting Q on overflow.
func (e *Emitter) SatSub(a, b VarOrImm) Var {
	return e.binALU(SatSub, a, b, false, CarryNoChange)
}

// Mul emits a 32-bit multiply, optionally with operand half-selection
// (SMULxy/SMLAxy-style).
func (e *Emitter) Mul(a, b VarOrImm, setFlags, halfShift bool) Var {
	dst := e.newVar()
	op := newOp(Mul)
	op.Dst = dst
	op.Src1 = a
	op.Src2 = b
	op.SetFlags = setFlags
	op.HalfShift = halfShift
	e.emit(op)
	return dst
}

// MulLong emits a 64-bit multiply (optionally signed, accumulating), with
// Dst the high word and Dst2 the low word.
func (e *Emitter) MulLong(a, b VarOrImm, accumHi VarOrImm, signed, setFlags bool) (hi, lo Var) {
	hi = e.newVar()
	lo = e.newVar()
	op := newOp(MulLong)
	op.Dst = hi
	op.Dst2 = lo
	op.Src1 = a
	op.Src2 = b
	op.Src3 = accumHi
	op.Signed = signed
	op.SetFlags = setFlags
	e.emit(op)
	return hi, lo
}

// AddLong64 emits a 64-bit add of (aHi:aLo) and bLo, with carry into aHi
// threaded through Src3, returning (hi, lo).
func (e *Emitter) AddLong64(aHi, aLo, bLo VarOrImm) (hi, lo Var) {
	hi = e.newVar()
	lo = e.newVar()
	op := newOp(AddLong64)
	op.Dst = hi
	op.Dst2 = lo
	op.Src1 = aLo
	op.Src2 = bLo
	op.Src3 = aHi
	e.emit(op)
	return hi, lo
}

// StoreFlags emits a write of known flag values to the bits named by mask.
func (e *Emitter) StoreFlags(mask uint32, values arm.Flags) {
	op := newOp(StoreFlags)
	op.FlagMask = mask
	op.FlagValues = values
	e.emit(op)
}

// LoadFlags emits a read of CPSR's NZCV into a synthetic flags variable,
// used by the barrel shifter when C must feed a subsequent ALU op.
func (e *Emitter) LoadFlags(mask uint32) Var {
	dst := e.newVar()
	op := newOp(LoadFlags)
	op.Dst = dst
	op.FlagMask = mask
	e.emit(op)
	return dst
}

// LoadStickyOverflow emits a read of the Q flag.
func (e *Emitter) LoadStickyOverflow() Var {
	dst := e.newVar()
	op := newOp(LoadStickyOverflow)
	op.Dst = dst
	e.emit(op)
	return dst
}

// Branch emits an unconditional branch to target (already block-condition
// qualified by the enclosing block).
func (e *Emitter) Branch(target VarOrImm) {
	op := newOp(Branch)
	op.Src1 = target
	e.emit(op)
}

// BranchExchange emits a branch-and-exchange to target in the given mode.
func (e *Emitter) BranchExchange(target VarOrImm, mode ExchangeMode) {
	op := newOp(BranchExchange)
	op.Src1 = target
	op.Exchange = mode
	e.emit(op)
}

// LoadCopRegister emits a coprocessor register read.
func (e *Emitter) LoadCopRegister(copNum, reg uint8) Var {
	dst := e.newVar()
	op := newOp(LoadCopRegister)
	op.Dst = dst
	op.CopNum = copNum
	op.CopReg = reg
	e.emit(op)
	return dst
}

// StoreCopRegister emits a coprocessor register write.
func (e *Emitter) StoreCopRegister(copNum, reg uint8, value VarOrImm) {
	op := newOp(StoreCopRegister)
	op.Src1 = value
	op.CopNum = copNum
	op.CopReg = reg
	e.emit(op)
}

// Const emits a materialized immediate (rarely needed directly — most
// lowering paths pass immediates inline as VarOrImm — but ALU coalescence
// in the optimizer sometimes needs a standalone constant variable).
func (e *Emitter) Const(v uint32) Var {
	dst := e.newVar()
	op := newOp(Const)
	op.Dst = dst
	op.Imm = v
	e.emit(op)
	return dst
}

// CopyVar emits a variable-to-variable copy, used by optimizer passes that
// need to introduce an alias rather than a full Move (no flag semantics).
func (e *Emitter) CopyVar(src VarOrImm) Var {
	dst := e.newVar()
	op := newOp(CopyVar)
	op.Dst = dst
	op.Src1 = src
	e.emit(op)
	return dst
}

// GetBaseVectorAddress emits a read of the exception base vector address
// (normally 0x00000000, or CP15's configured high-vectors base on
// ARMv5TE).
func (e *Emitter) GetBaseVectorAddress() Var {
	dst := e.newVar()
	op := newOp(GetBaseVectorAddress)
	op.Dst = dst
	e.emit(op)
	return dst
}

// Undefined emits an undefined-instruction marker; at codegen/interpret
// time this triggers the undefined-instruction exception entry sequence
// rather than ever being "executed" directly.
func (e *Emitter) Undefined() {
	e.emit(newOp(Undefined))
}

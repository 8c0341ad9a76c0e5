/*
Package interp executes an optimized ir.Block directly against guest state,
one op at a time, as the host backend's fallback path — used before a
block has been JIT-compiled and for any block the amd64 codegen declines
(spec.md §4.4 describes the JIT; an interpreter sitting underneath it is
the natural "first time through" path, the same role rcornwell-S370's
emu/cpu.cpuState.execute plays as a pure fetch-decode-execute loop with no
compilation step at all). Unlike the JIT, Run never produces native code;
it is the reference implementation every codegen routine's output must
agree with.
*/
package interp

import (
	"math/bits"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/cp15"
	"github.com/armrt/armrt/ir"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/state"
)

// Coprocessors indexes the 16 possible coprocessor numbers, mirroring
// translate.Coprocessors without introducing a dependency from this
// package back onto translate.
type Coprocessors [16]cp15.Coprocessor

// Machine bundles the guest state an interpreted block runs against.
type Machine struct {
	State *state.State
	Mem   memory.System
	Cops  Coprocessors
}

// Run executes every op in b against m in program order and returns
// b.PassCycles, the number of guest cycles the block consumes when its
// condition holds. It does not itself evaluate b.Cond against CPSR — the
// caller (the dispatcher) does that once, the same way the JIT's
// condition-check codegen stage does, charging b.FailCycles and skipping
// Run entirely when the condition does not hold.
func Run(b *ir.Block, m *Machine) (cycles int) {
	vars := make([]uint32, b.VarCount())
	flags := m.State.Flags()

	b.Walk(func(op *ir.Op) {
		ExecOp(op, vars, m, &flags)
	})

	m.State.SetFlags(flags)
	return b.PassCycles
}

// ExecOp executes a single IR op against vars/m/flags. It is factored out
// of Run so the amd64 backend can reuse it as a "slow path" helper call for
// any op kind its codegen declines to inline natively (spec.md §4.4's
// memory-op fast-path/slow-path split, generalized to every op kind this
// package's JIT doesn't compile directly) — the same "call out for the
// complicated cases" shape spec.md already prescribes for memory accesses.
func ExecOp(op *ir.Op, vars []uint32, m *Machine, flags *arm.Flags) {
	read := func(a ir.VarOrImm) uint32 {
		if a.IsImm {
			return a.Imm
		}
		return vars[a.Var]
	}
	write := func(v ir.Var, val uint32) {
		if v.Present() {
			vars[v] = val
		}
	}

	{
		switch op.Kind {
		case ir.LoadGPR:
			write(op.Dst, m.State.RBanked(op.GPR.Reg, op.GPR.Mode))
		case ir.StoreGPR:
			m.State.SetRBanked(op.GPR.Reg, op.GPR.Mode, read(op.Src1))
		case ir.LoadCPSR:
			write(op.Dst, m.State.CPSR())
		case ir.StoreCPSR:
			m.State.SetCPSR(read(op.Src1))
		case ir.LoadSPSR:
			write(op.Dst, m.State.SPSRFor(op.PSRMode))
		case ir.StoreSPSR:
			m.State.SetSPSRFor(op.PSRMode, read(op.Src1))

		case ir.MemRead:
			addr := read(op.Src1)
			var v uint32
			switch op.Size {
			case ir.SizeByte:
				raw := m.Mem.ReadByte(addr)
				if op.Signed {
					v = uint32(int32(int8(raw)))
				} else {
					v = uint32(raw)
				}
			case ir.SizeHalf:
				h := m.Mem.ReadHalf(addr)
				if op.Signed {
					v = uint32(int32(int16(h)))
				} else {
					v = uint32(h)
				}
			default:
				v = m.Mem.ReadWord(addr)
			}
			write(op.Dst, v)
		case ir.MemWrite:
			addr, val := read(op.Src1), read(op.Src2)
			switch op.Size {
			case ir.SizeByte:
				m.Mem.WriteByte(addr, uint8(val))
			case ir.SizeHalf:
				m.Mem.WriteHalf(addr, uint16(val))
			default:
				m.Mem.WriteWord(addr, val)
			}
		case ir.Preload:
			// No cache to warm in an interpreter; a pure no-op.

		case ir.LSL, ir.LSR, ir.ASR, ir.ROR, ir.RRX:
			v := read(op.Src1)
			var amt uint32
			if op.Kind != ir.RRX {
				amt = read(op.Src2)
			}
			result, carryOut, ok := shift(op.Kind, v, amt, flags.C)
			write(op.Dst, result)
			if op.SetFlags {
				flags.N, flags.Z = signZero(result)
				if ok {
					flags.C = carryOut
				}
			}

		case ir.And, ir.Or, ir.Eor, ir.Bic:
			a, bb := read(op.Src1), read(op.Src2)
			var result uint32
			switch op.Kind {
			case ir.And:
				result = a & bb
			case ir.Or:
				result = a | bb
			case ir.Eor:
				result = a ^ bb
			case ir.Bic:
				result = a &^ bb
			}
			write(op.Dst, result)
			if op.SetFlags {
				flags.N, flags.Z = signZero(result)
				if op.CarryOut != ir.CarryNoChange {
					flags.C = op.CarryOut == ir.CarrySet
				}
			}

		case ir.Add:
			a, bb := read(op.Src1), read(op.Src2)
			result, carry, overflow := addWithCarry(a, bb, false)
			write(op.Dst, result)
			setArithFlags(flags, op.SetFlags, result, carry, overflow)
		case ir.AddCarry:
			a, bb := read(op.Src1), read(op.Src2)
			result, carry, overflow := addWithCarry(a, bb, flags.C)
			write(op.Dst, result)
			setArithFlags(flags, op.SetFlags, result, carry, overflow)
		case ir.Sub:
			a, bb := read(op.Src1), read(op.Src2)
			result, carry, overflow := addWithCarry(a, ^bb, true)
			write(op.Dst, result)
			setArithFlags(flags, op.SetFlags, result, carry, overflow)
		case ir.RevSub:
			a, bb := read(op.Src1), read(op.Src2)
			result, carry, overflow := addWithCarry(bb, ^a, true)
			write(op.Dst, result)
			setArithFlags(flags, op.SetFlags, result, carry, overflow)
		case ir.SubCarry:
			a, bb := read(op.Src1), read(op.Src2)
			result, carry, overflow := addWithCarry(a, ^bb, flags.C)
			write(op.Dst, result)
			setArithFlags(flags, op.SetFlags, result, carry, overflow)
		case ir.RevSubCarry:
			a, bb := read(op.Src1), read(op.Src2)
			result, carry, overflow := addWithCarry(bb, ^a, flags.C)
			write(op.Dst, result)
			setArithFlags(flags, op.SetFlags, result, carry, overflow)

		case ir.Move:
			v := read(op.Src1)
			write(op.Dst, v)
			if op.SetFlags {
				flags.N, flags.Z = signZero(v)
				if op.CarryOut != ir.CarryNoChange {
					flags.C = op.CarryOut == ir.CarrySet
				}
			}
		case ir.MoveNeg:
			v := ^read(op.Src1)
			write(op.Dst, v)
			if op.SetFlags {
				flags.N, flags.Z = signZero(v)
				if op.CarryOut != ir.CarryNoChange {
					flags.C = op.CarryOut == ir.CarrySet
				}
			}

		case ir.CLZ:
			write(op.Dst, uint32(bits.LeadingZeros32(read(op.Src1))))

		case ir.SatAdd:
			write(op.Dst, saturatingAdd(read(op.Src1), read(op.Src2), m.State.SetQ))
		case ir.SatSub:
			write(op.Dst, saturatingSub(read(op.Src1), read(op.Src2), m.State.SetQ))

		case ir.Mul:
			a, bb := read(op.Src1), read(op.Src2)
			result := a * bb
			write(op.Dst, result)
			if op.SetFlags {
				flags.N, flags.Z = signZero(result)
			}
		case ir.MulLong:
			// hi:lo = a*b, with Src3 (accumHi) added into the high word only —
			// the matching low-word accumulation arrives via a follow-up
			// AddLong64, which is also where the final carry gets resolved.
			a, bb := read(op.Src1), read(op.Src2)
			var hi, lo uint32
			if op.Signed {
				p := uint64(int64(int32(a)) * int64(int32(bb)))
				hi, lo = uint32(p>>32), uint32(p)
			} else {
				p := uint64(a) * uint64(bb)
				hi, lo = uint32(p>>32), uint32(p)
			}
			if op.Src3.Present() {
				hi += read(op.Src3)
			}
			write(op.Dst, hi)
			write(op.Dst2, lo)
			if op.SetFlags {
				flags.N = hi&0x80000000 != 0
				flags.Z = hi == 0 && lo == 0
			}
		case ir.AddLong64:
			loA, loB, hiA := read(op.Src1), read(op.Src2), read(op.Src3)
			sum := uint64(loA) + uint64(loB)
			hi := hiA
			if sum > 0xFFFFFFFF {
				hi++
			}
			write(op.Dst, hi)
			write(op.Dst2, uint32(sum))

		case ir.StoreFlags:
			if op.FlagMask&arm.CPSRBitN != 0 {
				flags.N = op.FlagValues.N
			}
			if op.FlagMask&arm.CPSRBitZ != 0 {
				flags.Z = op.FlagValues.Z
			}
			if op.FlagMask&arm.CPSRBitC != 0 {
				flags.C = op.FlagValues.C
			}
			if op.FlagMask&arm.CPSRBitV != 0 {
				flags.V = op.FlagValues.V
			}
		case ir.LoadFlags:
			write(op.Dst, arm.Flags{N: flags.N, Z: flags.Z, C: flags.C, V: flags.V}.Pack()&op.FlagMask)
		case ir.LoadStickyOverflow:
			q := uint32(0)
			if m.State.Q() {
				q = 1
			}
			write(op.Dst, q)

		case ir.Branch:
			m.State.SetPC(read(op.Src1))
		case ir.BranchExchange:
			target := read(op.Src1)
			m.State.SetThumb(target&1 != 0)
			m.State.SetPC(target &^ 1)

		case ir.LoadCopRegister:
			cop := m.Cops[op.CopNum&0xF]
			if cop != nil {
				write(op.Dst, cop.LoadRegister(0, uint16(op.CopReg), 0, 0))
			}
		case ir.StoreCopRegister:
			cop := m.Cops[op.CopNum&0xF]
			if cop != nil {
				cop.StoreRegister(0, uint16(op.CopReg), 0, 0, read(op.Src1))
			}

		case ir.Const:
			write(op.Dst, op.Imm)
		case ir.CopyVar:
			write(op.Dst, read(op.Src1))
		case ir.GetBaseVectorAddress:
			write(op.Dst, 0)

		case ir.Undefined:
			m.State.SetExecState(arm.Stopped)
		}
	}
}

// FallbackArgs bundles one ExecOp call's arguments behind a single pointer,
// so the amd64 backend's generated code only has to load one register
// before calling RunFallback — a plain Go function, not a closure, so its
// address is stable and callable from hand-emitted machine code. Op, Vars
// and M are fixed for a given compiled block and baked in at compile time;
// Flags points at the block's live flags shadow, kept in sync with the
// native flags-shadow register around every fallback call.
type FallbackArgs struct {
	Op    *ir.Op
	Vars  []uint32
	M     *Machine
	Flags *arm.Flags
}

// RunFallback executes one op via ExecOp on behalf of generated native
// code that declined to compile it inline (spec.md §4.4's memory-op
// fast-path/slow-path split, generalized — see ExecOp's doc comment).
func RunFallback(a *FallbackArgs) {
	ExecOp(a.Op, a.Vars, a.M, a.Flags)
}

func signZero(v uint32) (n, z bool) {
	return v&0x80000000 != 0, v == 0
}

// addWithCarry implements the ARM ADD/SUB-with-carry primitive: result,
// carry-out, and signed overflow of a + b + carryIn.
func addWithCarry(a, b uint32, carryIn bool) (result uint32, carryOut, overflow bool) {
	cIn := uint64(0)
	if carryIn {
		cIn = 1
	}
	wide := uint64(a) + uint64(b) + cIn
	result = uint32(wide)
	carryOut = wide > 0xFFFFFFFF
	signA, signB, signR := a&0x80000000 != 0, b&0x80000000 != 0, result&0x80000000 != 0
	overflow = signA == signB && signR != signA
	return result, carryOut, overflow
}

func setArithFlags(flags *arm.Flags, setFlags bool, result uint32, carry, overflow bool) {
	if !setFlags {
		return
	}
	flags.N, flags.Z = signZero(result)
	flags.C = carry
	flags.V = overflow
}

func saturatingAdd(a, b uint32, setQ func(bool)) uint32 {
	sum := int64(int32(a)) + int64(int32(b))
	return saturate(sum, setQ)
}

func saturatingSub(a, b uint32, setQ func(bool)) uint32 {
	diff := int64(int32(a)) - int64(int32(b))
	return saturate(diff, setQ)
}

func saturate(v int64, setQ func(bool)) uint32 {
	const maxI32 = int64(1)<<31 - 1
	const minI32 = -(int64(1) << 31)
	if v > maxI32 {
		setQ(true)
		return uint32(maxI32)
	}
	if v < minI32 {
		setQ(true)
		return 0x80000000 // minI32 as a two's-complement uint32
	}
	return uint32(int32(v))
}

// shift applies the barrel shifter for a statically-resolved op, returning
// whether it produced a defined carry-out (RRX and any shift amount in
// 1..32 always do; a zero LSL/LSR/ASR/ROR amount leaves carry unchanged).
func shift(kind ir.Kind, v, amount uint32, carryIn bool) (result uint32, carryOut bool, carryDefined bool) {
	switch kind {
	case ir.LSL:
		if amount == 0 {
			return v, carryIn, false
		}
		if amount >= 32 {
			if amount == 32 {
				return 0, v&1 != 0, true
			}
			return 0, false, true
		}
		return v << amount, (v>>(32-amount))&1 != 0, true
	case ir.LSR:
		if amount == 0 {
			return v, carryIn, false
		}
		if amount >= 32 {
			if amount == 32 {
				return 0, v&0x80000000 != 0, true
			}
			return 0, false, true
		}
		return v >> amount, (v>>(amount-1))&1 != 0, true
	case ir.ASR:
		if amount == 0 {
			return v, carryIn, false
		}
		if amount >= 32 {
			r := uint32(0)
			if int32(v) < 0 {
				r = 0xFFFFFFFF
			}
			return r, v&0x80000000 != 0, true
		}
		return uint32(int32(v) >> amount), (v>>(amount-1))&1 != 0, true
	case ir.ROR:
		if amount == 0 {
			return v, carryIn, false
		}
		amount &= 31
		if amount == 0 {
			return v, v&0x80000000 != 0, true
		}
		r := (v >> amount) | (v << (32 - amount))
		return r, r&0x80000000 != 0, true
	case ir.RRX:
		carryBit := uint32(0)
		if carryIn {
			carryBit = 1
		}
		r := (v >> 1) | (carryBit << 31)
		return r, v&1 != 0, true
	}
	return v, carryIn, false
}

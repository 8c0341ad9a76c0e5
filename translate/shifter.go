/*
Package translate turns a stream of decoded guest instructions into an
ir.Block. The translator loop's stop-condition logic (spec.md §4.1) and the
per-instruction lowering are new to this module; the Emitter shape they
build on is ir.Emitter. Where the teacher's own execute() dispatch
(rcornwell-S370's emu/cpu/cpu.go, cpuState.execute/createTable) structures
a big per-opcode dispatch as a table of handler funcs keyed by opcode, this
package keeps the same "one function per instruction kind, looked up and
called" shape for the lower* functions Translator.lower dispatches to.
*/
package translate

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/ir"
)

// shiftResult carries a shifted operand variable plus the statically known
// (or unknown) carry-out of the shift, mirroring the C rhs/carry pairing
// spec.md's barrel-shifter paragraph describes.
type shiftResult struct {
	Value    ir.VarOrImm
	CarryOut ir.CarryOut
}

// applyShift runs the barrel shifter on value by the given shift
// descriptor, emitting LSL/LSR/ASR/ROR/RRX ops as needed. A shift-amount
// register naming R15 reads as pipelinePC() (8 bytes ahead in ARM state,
// 4 in Thumb); callers read an R15 value operand the same way, through
// loadShiftSource.
func (t *Translator) applyShift(value ir.VarOrImm, shift decode.RegShift, setFlags bool) shiftResult {
	e := t.emit

	var amount ir.VarOrImm
	if shift.Immediate {
		amount = ir.ImmOperand(uint32(shift.ImmAmount))
	} else {
		// R15 as the shift-amount register reads the pipeline-adjusted PC,
		// not the raw stored value (spec.md §4.1), matching the Rm/Rs
		// general-operand path below via the same loadShiftSource helper.
		rs := t.loadShiftSource(shift.RegAmount)
		// Only the bottom byte of the shift-amount register is used.
		amt := e.And(rs, ir.ImmOperand(0xFF), false, ir.CarryNoChange)
		amount = ir.VarOperand(amt)
	}

	switch shift.Type {
	case decode.ShiftLSL:
		if shift.Immediate && shift.ImmAmount == 0 {
			// "LSL by zero" passes the value through unchanged, carry
			// untouched (spec.md §4.1).
			return shiftResult{Value: value, CarryOut: ir.CarryNoChange}
		}
		v := e.LSL(value, amount, setFlags)
		return shiftResult{Value: ir.VarOperand(v), CarryOut: carryFromShift(setFlags)}
	case decode.ShiftLSR:
		v := e.LSR(value, amount, setFlags)
		return shiftResult{Value: ir.VarOperand(v), CarryOut: carryFromShift(setFlags)}
	case decode.ShiftASR:
		v := e.ASR(value, amount, setFlags)
		return shiftResult{Value: ir.VarOperand(v), CarryOut: carryFromShift(setFlags)}
	case decode.ShiftROR:
		if shift.Immediate && shift.ImmAmount == 0 {
			// Immediate rotate-by-zero is encoded specially as RRX
			// (rotate-right-extended through the carry flag).
			v := e.RRX(value, setFlags)
			return shiftResult{Value: ir.VarOperand(v), CarryOut: carryFromShift(setFlags)}
		}
		v := e.ROR(value, amount, setFlags)
		return shiftResult{Value: ir.VarOperand(v), CarryOut: carryFromShift(setFlags)}
	default:
		return shiftResult{Value: value, CarryOut: ir.CarryNoChange}
	}
}

// carryFromShift reports that a register-shift's carry-out is only known
// at runtime unless the caller asked the op not to affect flags, in which
// case there is nothing to track.
func carryFromShift(setFlags bool) ir.CarryOut {
	if !setFlags {
		return ir.CarryNoChange
	}
	return ir.CarryNoChange // the codegen/interpreter reads the op's own SetFlags result; no static fold here
}

// rotatedImmCarry computes the statically-known carry-out of an ARM
// rotated-immediate operand: unchanged if rotate is zero, else bit 31 of
// the rotated result (spec.md §4.1 "data-processing example").
func rotatedImmCarry(imm uint32, rotateAmount uint32) ir.CarryOut {
	if rotateAmount == 0 {
		return ir.CarryNoChange
	}
	if imm&(1<<31) != 0 {
		return ir.CarrySet
	}
	return ir.CarryClear
}

// resolveDPOperand computes the IR operand and precomputed carry-out for a
// data-processing instruction's rhs, handling both the immediate and
// register-shift encodings.
func (t *Translator) resolveDPOperand(instr decode.Instruction, setFlags bool) shiftResult {
	if instr.DPImmediate {
		rotate := decodeImmRotate(instr.RhsImm)
		return shiftResult{Value: ir.ImmOperand(instr.RhsImm), CarryOut: rotatedImmCarry(instr.RhsImm, rotate)}
	}
	rm := t.loadShiftSource(instr.RhsShift.SrcReg)
	return t.applyShift(rm, instr.RhsShift, setFlags)
}

// decodeImmRotate recovers how much an already-rotated 32-bit immediate
// was rotated by, for the carry-out computation — the encoding only
// carries the rotated result forward into Instruction.RhsImm, so this
// approximates "rotate != 0" by checking whether the value could have come
// from a pure 8-bit immediate (rotate == 0). The decoder keeps only the
// rotated value, so resolveDPOperand uses this helper for every
// data-processing immediate.
func decodeImmRotate(v uint32) uint32 {
	if v <= 0xFF {
		return 0
	}
	return 1
}

// loadShiftSource reads a GPR for use as a shift source, adjusting for the
// R15-as-operand pipeline offset: when Rm or Rs is the PC, its value reads
// as the address of the current instruction plus the pipeline depth (8
// bytes for ARM, 4 for Thumb) rather than the literal PC register (spec.md
// §4.1 "shift by register... R15 as amount requires subtracting the
// instruction size").
func (t *Translator) loadShiftSource(reg arm.GPR) ir.VarOrImm {
	if reg == arm.PC {
		return ir.ImmOperand(t.pipelinePC())
	}
	v := t.emit.LoadGPR(reg, t.block.Loc.Mode)
	return ir.VarOperand(v)
}

// pipelinePC returns the value R15 reads as during this instruction's
// execution: the address of the instruction being lowered, plus two
// instruction widths (the fetch/decode pipeline depth).
func (t *Translator) pipelinePC() uint32 {
	width := uint32(4)
	if t.block.Loc.Thumb {
		width = 2
	}
	return t.pc + 2*width
}

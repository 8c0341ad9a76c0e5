package translate

import (
	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/cp15"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/ir"
)

// Fetcher reads guest code memory for the translator. It is the narrow
// slice of memory.System the translator actually needs, kept separate so
// tests can supply a plain byte slice instead of a full memory.Flat.
type Fetcher interface {
	FetchARM(addr uint32) uint32
	FetchThumb(addr uint32) uint16
}

// Coprocessors maps coprocessor numbers 0-15 to their implementation; a nil
// entry decodes normally but lowers to Undefined, matching real hardware
// trapping an absent coprocessor.
type Coprocessors [16]cp15.Coprocessor

// Options bounds one call to Translate.
type Options struct {
	Arch      decode.Arch
	MaxInstrs int // spec.md §4.1 stop condition (d); 0 means use DefaultMaxInstrs
}

// DefaultMaxInstrs is the instruction-count stop condition when Options
// doesn't override it.
const DefaultMaxInstrs = 64

// Translator lowers one basic block's worth of guest instructions into IR,
// starting at a given location and stopping at the first of spec.md §4.1's
// four conditions.
type Translator struct {
	emit  *ir.Emitter
	block *ir.Block

	fetch Fetcher
	cops  Coprocessors
	opts  Options

	pc uint32 // address of the instruction currently being lowered

	terminated bool // true once a branch, a PC write or an exception entry set block.Term
}

// Translate decodes and lowers guest instructions starting at loc until a
// stop condition is reached, returning the completed block.
func Translate(loc ir.Location, fetch Fetcher, cops Coprocessors, opts Options) *ir.Block {
	if opts.MaxInstrs == 0 {
		opts.MaxInstrs = DefaultMaxInstrs
	}

	block := ir.NewBlock(loc, arm.CondAL)
	t := &Translator{
		emit:  ir.NewEmitter(block),
		block: block,
		fetch: fetch,
		cops:  cops,
		opts:  opts,
		pc:    loc.PC,
	}

	blockCondSet := false
	flagsJustWritten := false

	for {
		instr, length := t.decodeNext()

		if !blockCondSet {
			block.Cond = instr.Cond
			blockCondSet = true
		} else if instr.Cond != block.Cond {
			// Stop condition (b): next instruction's condition differs
			// from the block's. Don't consume it — leave pc where it is
			// so a new block starts exactly here.
			break
		}

		if flagsJustWritten && block.Cond == arm.CondAL && instr.Cond != arm.CondAL {
			// Stop condition (c): a flag-rewriting instruction followed
			// by a non-AL-conditioned instruction.
			break
		}

		t.lower(instr)
		block.InstCount++
		flagsJustWritten = instructionWritesFlags(instr)

		if isUnconditionalControlFlow(instr) {
			// Stop condition (a).
			t.pc += length
			break
		}

		t.pc += length

		if block.InstCount >= t.opts.MaxInstrs {
			// Stop condition (d).
			t.terminateFallthrough()
			break
		}
	}

	if !t.terminated {
		// The loop stopped on (b), (c) or (d) without the last lowered
		// instruction ending control flow itself — link to fallthrough.
		t.terminateFallthrough()
	}

	// Each guest instruction is charged one cycle, whether the block's
	// condition holds or not.
	block.PassCycles = block.InstCount
	block.FailCycles = block.InstCount
	if block.Cond != arm.CondAL {
		block.Term.Fallthrough = ir.Location{PC: t.pc, Mode: loc.Mode, Thumb: loc.Thumb}
		block.Term.HasFallthrough = true
	}

	return block
}

func (t *Translator) terminateFallthrough() {
	next := ir.Location{PC: t.pc, Mode: t.block.Loc.Mode, Thumb: t.block.Loc.Thumb}
	t.block.Term = ir.Terminator{Kind: ir.TermDirectLink, Target: next}
}

func instructionWritesFlags(instr decode.Instruction) bool {
	switch instr.Kind {
	case decode.DataProcessing:
		return instr.SetFlags
	case decode.MultiplyAccumulate, decode.MultiplyAccumulateLong:
		return instr.SetFlags
	case decode.PSRWrite:
		return instr.FieldF
	default:
		return false
	}
}

func isUnconditionalControlFlow(instr decode.Instruction) bool {
	switch instr.Kind {
	case decode.Branch, decode.BranchAndExchange, decode.SoftwareInterrupt,
		decode.SoftwareBreakpoint, decode.Undefined:
		return true
	case decode.DataProcessing:
		return instr.DstReg == arm.PC
	case decode.SingleDataTransfer:
		return instr.Load && instr.DstReg == arm.PC
	case decode.BlockTransfer:
		return instr.Load && instr.RegList&(1<<uint(arm.PC)) != 0
	default:
		return false
	}
}

// decodeNext fetches and decodes the instruction at t.pc, folding a
// Thumb BL/BLX prefix+suffix halfword pair into a single Instruction (see
// DecodeThumb's doc comment for why the decoder itself defers this).
func (t *Translator) decodeNext() (decode.Instruction, uint32) {
	if !t.block.Loc.Thumb {
		word := t.fetch.FetchARM(t.pc)
		return decode.DecodeARM(word, t.opts.Arch), 4
	}

	hw := t.fetch.FetchThumb(t.pc)
	instr := decode.DecodeThumb(hw, t.opts.Arch)
	if instr.Kind == decode.ThumbLongBranchSuffix && instr.Link && isThumbBLPrefix(hw) {
		suffix := t.fetch.FetchThumb(t.pc + 2)
		if isThumbBLSuffix(suffix) {
			half := decode.DecodeThumb(suffix, t.opts.Arch)
			full := decode.Instruction{
				Kind:   decode.Branch,
				Cond:   arm.CondAL,
				Length: 4,
				Offset: instr.Offset + half.Offset,
				Link:   true,
				BLX:    half.BLX,
			}
			return full, 4
		}
	}
	return instr, 2
}

func isThumbBLPrefix(hw uint16) bool { return hw&0xF800 == 0xF000 }
func isThumbBLSuffix(hw uint16) bool { return hw&0xE800 == 0xE800 }

// lower dispatches a decoded instruction to its IR-lowering function.
func (t *Translator) lower(instr decode.Instruction) {
	switch instr.Kind {
	case decode.Branch:
		t.lowerBranch(instr)
	case decode.BranchAndExchange:
		t.lowerBranchExchange(instr)
	case decode.DataProcessing:
		t.lowerDataProcessing(instr)
	case decode.CountLeadingZeros:
		t.lowerCLZ(instr)
	case decode.SaturatingAddSub:
		t.lowerSatAddSub(instr)
	case decode.MultiplyAccumulate:
		t.lowerMultiplyAccumulate(instr)
	case decode.MultiplyAccumulateLong:
		t.lowerMultiplyAccumulateLong(instr)
	case decode.SignedMultiplyAccumulate, decode.SignedMultiplyAccumulateWord, decode.SignedMultiplyAccumulateLong:
		t.lowerSignedMultiply(instr)
	case decode.PSRRead:
		t.lowerPSRRead(instr)
	case decode.PSRWrite:
		t.lowerPSRWrite(instr)
	case decode.SingleDataTransfer:
		t.lowerSingleDataTransfer(instr)
	case decode.HalfwordAndSignedTransfer:
		t.lowerHalfwordTransfer(instr)
	case decode.BlockTransfer:
		t.lowerBlockTransfer(instr)
	case decode.SingleDataSwap:
		t.lowerSingleDataSwap(instr)
	case decode.SoftwareInterrupt:
		t.lowerSoftwareInterrupt(instr)
	case decode.SoftwareBreakpoint:
		t.lowerSoftwareBreakpoint(instr)
	case decode.Preload:
		t.emit.PreloadHint(t.resolveAddress(instr.PreloadOffset, instr.PositiveOffset))
	case decode.CopDataOperations:
		t.lowerCopDataOperation(instr)
	case decode.CopDataTransfer:
		t.lowerCopDataTransfer(instr)
	case decode.CopRegTransfer:
		t.lowerCopRegTransfer(instr)
	case decode.CopDualRegTransfer:
		t.lowerCopDualRegTransfer(instr)
	case decode.Undefined:
		t.emit.Undefined()
	default:
		t.emit.Undefined()
	}
}

// storeToGPR writes value to reg, routing a write to R15 through a branch
// terminator instead of an ordinary StoreGPR (spec.md §4.1: "a
// data-processing/memory op that writes PC" ends the block).
func (t *Translator) storeToGPR(reg arm.GPR, value ir.VarOrImm, exchange bool) {
	if reg != arm.PC {
		t.emit.StoreGPR(reg, t.block.Loc.Mode, value)
		return
	}
	if exchange && t.opts.Arch == decode.ARMv5TE {
		t.emit.BranchExchange(value, ir.ExchangeNormal)
	} else {
		t.emit.Branch(value)
	}
	t.block.Term = ir.Terminator{Kind: ir.TermIndirectLink}
	t.terminated = true
}

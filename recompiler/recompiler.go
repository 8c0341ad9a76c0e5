/*
Package recompiler ties the decoder, translator, optimizer and host backend
together into the execution loop spec.md §6 describes: look up or produce
an optimized ir.Block for the guest's current location, run it, follow its
terminator to the next location, and repeat until a cycle budget is spent
or the guest stops.

This is the "dispatcher" role rcornwell-S370's emu/cpu.cpuState plays for
its own interpret-only engine (cpuState.execute fetches, decodes and runs
one instruction at a time against a shared register file) — Dispatcher
keeps that same "one loop, one piece of state, repeat" shape, but each
iteration operates on a whole translated-and-optimized block instead of a
single instruction, and the block itself is cached so the translator only
ever runs once per location between invalidations.
*/
package recompiler

import (
	"errors"
	"fmt"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/ir"
	"github.com/armrt/armrt/optimize"
	"github.com/armrt/armrt/translate"
)

// Options bounds translation the way translate.Options bounds one call to
// Translate; Dispatcher threads it through every translation it performs.
type Options struct {
	Arch            decode.Arch
	MaxInstrs       int
	EnableOptimizer bool            // spec.md §4.3; false runs freshly translated blocks unoptimized
	Optimizer       optimize.Options // per-pass toggles and max_iterations (spec.md §6); zero value means optimize.DefaultOptions()
}

// Stats tracks dispatcher activity for the cache-inspection surface
// SUPPLEMENTED FEATURES names (console's "cache" command, the statistics
// line armrtctl's "run" subcommand prints) — pure observability, nothing
// here changes execution.
type Stats struct {
	BlocksTranslated     int
	BlocksExecuted       int
	BlocksCompiledNative int
	Cycles               int64
	IRQsTaken            int
}

// Dispatcher drives the fetch/translate/optimize/execute loop against one
// guest machine. It holds its own ir.Block cache (keyed by ir.Location,
// separate from backend/cache's compiled-native-code cache) and always
// executes through backend/interp — see DESIGN.md's recompiler entry for
// why the amd64 JIT is wired in for compilation and cache bookkeeping only,
// not for dispatch.
type Dispatcher struct {
	Machine *interp.Machine
	Cops    translate.Coprocessors
	Opts    Options

	blocks *BlockCache
	fetch  fetcher
	native *NativeCompiler

	IRQEnabled bool
	stats      Stats
}

// New builds a Dispatcher over an already-constructed interp.Machine.
func New(m *interp.Machine, cops translate.Coprocessors, opts Options) *Dispatcher {
	return &Dispatcher{
		Machine:    m,
		Cops:       cops,
		Opts:       opts,
		blocks:     NewBlockCache(),
		fetch:      fetcher{mem: m.Mem},
		IRQEnabled: true,
	}
}

// Stats returns a snapshot of the dispatcher's run counters.
func (d *Dispatcher) Stats() Stats { return d.stats }

// currentLocation reads the guest's program counter, mode and Thumb state
// into an ir.Location, the cache key both the block cache and the
// translator's stop conditions are keyed on.
func (d *Dispatcher) currentLocation() ir.Location {
	s := d.Machine.State
	return ir.Location{PC: s.PC(), Mode: s.Mode(), Thumb: s.Thumb()}
}

// translateBlock produces a fresh, optionally-optimized block for loc, without
// consulting or populating the cache — callers that already missed the
// cache call this directly.
func (d *Dispatcher) translateBlock(loc ir.Location) *ir.Block {
	b := translate.Translate(loc, &d.fetch, d.Cops, translate.Options{
		Arch:      d.Opts.Arch,
		MaxInstrs: d.Opts.MaxInstrs,
	})
	if d.Opts.EnableOptimizer {
		optimize.Optimize(b, d.optimizerOptions())
	}
	d.stats.BlocksTranslated++
	d.warmNative(b)
	return b
}

// optimizerOptions returns d.Opts.Optimizer, or optimize.DefaultOptions()
// if it is still the zero value (every per-pass toggle false), so that
// EnableOptimizer alone, with Optimizer left unset, keeps its historical
// "run every pass" meaning.
func (d *Dispatcher) optimizerOptions() optimize.Options {
	if d.Opts.Optimizer == (optimize.Options{}) {
		return optimize.DefaultOptions()
	}
	return d.Opts.Optimizer
}

// blockFor returns the cached block at loc, translating and caching one if
// there isn't a hit yet.
func (d *Dispatcher) blockFor(loc ir.Location) *ir.Block {
	if b, ok := d.blocks.Lookup(loc); ok {
		return b
	}
	b := d.translateBlock(loc)
	d.blocks.Insert(loc, b)
	return b
}

// Step runs exactly one block starting at the guest's current location and
// advances the guest to wherever its terminator (or a taken interrupt)
// leads. It returns the number of guest cycles the step consumed.
func (d *Dispatcher) Step() (int, error) {
	if d.IRQEnabled && d.checkIRQ() {
		d.stats.IRQsTaken++
		return 0, nil
	}

	loc := d.currentLocation()
	b := d.blockFor(loc)

	cond := b.Cond.Eval(d.Machine.State.Flags())
	var cycles int
	if cond {
		cycles = interp.Run(b, d.Machine)
	} else {
		cycles = b.FailCycles
	}

	if err := d.follow(b, cond); err != nil {
		return cycles, err
	}

	d.stats.BlocksExecuted++
	d.stats.Cycles += int64(cycles)
	return cycles, nil
}

// follow advances the guest PC according to b's terminator once b has run
// (or been skipped by a failed condition). TermIndirectLink and TermReturn
// blocks already wrote the new PC (and, for BranchExchange, the Thumb bit)
// themselves via a Branch/BranchExchange/StoreGPR IR op during Run; only
// TermDirectLink's statically-known target has to be applied here, since
// the translator never emits an IR op to reach it.
func (d *Dispatcher) follow(b *ir.Block, cond bool) error {
	if cond {
		switch b.Term.Kind {
		case ir.TermDirectLink:
			d.setLocation(b.Term.Target)
		case ir.TermIndirectLink, ir.TermReturn:
			// PC already updated by the IR this block ran.
		default:
			return fmt.Errorf("recompiler: unknown terminator kind %v", b.Term.Kind)
		}
		return nil
	}

	if !b.Term.HasFallthrough {
		return errors.New("recompiler: condition failed but block has no fallthrough")
	}
	d.setLocation(b.Term.Fallthrough)
	return nil
}

func (d *Dispatcher) setLocation(loc ir.Location) {
	s := d.Machine.State
	s.SetPC(loc.PC)
	s.SetMode(loc.Mode)
	s.SetThumb(loc.Thumb)
}

// Run steps the dispatcher until it has spent maxCycles guest cycles or the
// guest's execution state stops being arm.Running, whichever comes first.
func (d *Dispatcher) Run(maxCycles int64) (int64, error) {
	var spent int64
	for spent < maxCycles {
		if d.Machine.State.ExecState() != arm.Running {
			break
		}
		n, err := d.Step()
		spent += int64(n)
		if err != nil {
			return spent, err
		}
	}
	return spent, nil
}

// ReportMemoryWrite invalidates every block in this package's ir.Block cache
// whose first instruction lives on addr's guest page and, when native
// compilation is enabled, reports the write to the native compiler too
// (see invalidateNative).
func (d *Dispatcher) ReportMemoryWrite(addr uint32) {
	d.blocks.InvalidatePage(addr)
	d.invalidateNative(addr)
}

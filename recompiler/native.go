package recompiler

import (
	"github.com/armrt/armrt/backend/amd64"
	"github.com/armrt/armrt/backend/codebuf"
	"github.com/armrt/armrt/ir"
)

// NativeCompiler wires backend/amd64.Compiler into the dispatcher so every
// block the interpreter runs is also handed to the JIT, keeping its code
// buffer, block cache and patch lists populated and inspectable (the
// cache-occupancy surface SUPPLEMENTED FEATURES names for console and
// armrtctl).
//
// Dispatch itself never jumps into the compiled code this produces: doing
// so means executing a raw function pointer baked by compiler.go's prolog,
// which on amd64 requires a hand-written assembly trampoline matching the
// ABI compiler.go's package doc describes (rdi=*Machine, rsi=maxCycles,
// rdx=blockEntryAddr) bridging into Go's calling convention. Without a Go
// toolchain to build and exercise that trampoline against the prolog it
// would call into, writing one here would be pure speculation about an ABI
// contract this module can't verify — so NativeCompiler stays a warm
// compile-ahead path that exercises backend/amd64 end to end (encoding,
// linking, cache, invalidation) without gating correctness on unverified
// assembly. backend/amd64's own tests check its codegen in isolation.
type NativeCompiler struct {
	compiler *amd64.Compiler
}

// EnableNative attaches a NativeCompiler backed by a fresh code buffer of
// the given maximum size to d. initialCodeSize sets the buffer's starting
// size (spec.md §6's compiler.initial_code_buffer_size; 0 means
// codebuf.DefaultSize), and enableLinking sets the compiler's initial
// EnableLinking value (spec.md §6's compiler.enable_block_linking).
// Blocks are compiled into it as they're translated; see
// Dispatcher.warmNative.
func (d *Dispatcher) EnableNative(codeSize, initialCodeSize int, enableLinking bool) error {
	buf, err := codebuf.New(codeSize, initialCodeSize)
	if err != nil {
		return err
	}
	c, err := amd64.New(buf, d.Machine, enableLinking)
	if err != nil {
		return err
	}
	d.native = &NativeCompiler{compiler: c}
	return nil
}

// warmNative compiles b into the attached native compiler, if any. Codegen
// failures are swallowed: the interpreter already ran (or will run) b
// regardless, and a block the JIT declines is simply never linked to.
func (d *Dispatcher) warmNative(b *ir.Block) {
	if d.native == nil {
		return
	}
	if _, err := d.native.compiler.Compile(b); err == nil {
		d.stats.BlocksCompiledNative++
	}
}

// invalidateNative reports a guest memory write to the attached native
// compiler, mirroring BlockCache.InvalidatePage's effect on the IR cache.
func (d *Dispatcher) invalidateNative(addr uint32) {
	if d.native != nil {
		d.native.compiler.ReportMemoryWrite(addr)
	}
}

// NativeBlockCount reports how many blocks are resident in the attached
// native compiler's cache, or 0 if native compilation isn't enabled.
func (d *Dispatcher) NativeBlockCount() int {
	if d.native == nil {
		return 0
	}
	return d.native.compiler.Cache.Len()
}

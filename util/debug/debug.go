// Package debug logs gated diagnostic messages to a configurable file, the
// same "cheap module+mask-gated Fprintf" shape rcornwell-S370's
// util/debug and its per-device debugOption maps use, generalized from
// one mask per I/O device to one mask per recompiler stage (translate,
// optimize, JIT, dispatch, cache).
package debug

import (
	"fmt"
	"os"
)

// Flag is a bit in a module's debug mask. Stages name their own flags the
// way rcornwell-S370's emu/cpu.cpudefs names debugInst/debugIO/debugIRQ;
// armrt's equivalents live here since every stage shares one log file.
type Flag int

const (
	FlagTranslate Flag = 1 << iota // per-block translation: location, instruction count, stop reason
	FlagOptimize                   // per-pass rewrite counts
	FlagJIT                        // compiled block size, link resolution
	FlagDispatch                   // block cache hits/misses, IRQ entry
	FlagCache                      // cache/patch-list bookkeeping (invalidation, eviction)
)

var (
	logFile *os.File
	mask    Flag
)

// SetFile directs debug output at file, replacing any previously set file.
// A nil file (the default) discards all output.
func SetFile(file *os.File) { logFile = file }

// SetMask replaces the active set of enabled flags.
func SetMask(m Flag) { mask = m }

// Enabled reports whether every bit in f is set in the active mask.
func Enabled(f Flag) bool { return mask&f == f }

// Logf writes a gated diagnostic message tagged with module, if f is
// enabled in the active mask and a file has been set.
func Logf(module string, f Flag, format string, a ...interface{}) {
	if logFile == nil || !Enabled(f) {
		return
	}
	fmt.Fprintf(logFile, module+": "+format+"\n", a...)
}

/*
Package patch tracks direct-link backpatches: a compiled block that
ends in a statically-known branch target gets its terminator jump
patched to go straight to the target block's entry point once that
target is itself compiled, instead of always bouncing through the
dispatcher (spec.md §3 "Patch lists", §4.4 "Maintain ... the direct-
link patch lists"). The pending/applied split and the per-target
bucketing are this module's own idiom for the concern — the teacher
has nothing resembling cross-block linking, so this is grounded on
spec.md's own description rather than adapted teacher code.
*/
package patch

import "github.com/armrt/armrt/ir"

// Site identifies one patchable location in the code buffer: an offset
// to overwrite and the byte sequence codebuf.Buffer.Patch should write
// once the target resolves.
type Site struct {
	Offset int
	Code   []byte
}

// List holds every outstanding direct-link backpatch, keyed by the
// guest location the jump targets. A given target commonly has more
// than one pending site (several blocks branching to the same loop
// head before it's compiled). Not safe for concurrent use (spec.md §5).
type List struct {
	pending map[uint64][]Site
}

// New returns an empty patch List.
func New() *List {
	return &List{pending: make(map[uint64][]Site)}
}

// Add records a patch site waiting on target to be compiled.
func (l *List) Add(target ir.Location, site Site) {
	key := target.Key()
	l.pending[key] = append(l.pending[key], site)
}

// Take returns and removes every site waiting on target — called once
// target finishes compiling, so the caller can apply each one via
// codebuf.Buffer.Patch and then discard them.
func (l *List) Take(target ir.Location) []Site {
	key := target.Key()
	sites := l.pending[key]
	delete(l.pending, key)
	return sites
}

// Pending reports how many sites are still waiting on target, for tests
// and diagnostics.
func (l *List) Pending(target ir.Location) int {
	return len(l.pending[target.Key()])
}

// Clear drops every outstanding patch: the response to a codebuf.Buffer
// growth, which invalidates all previously computed code offsets
// (spec.md §4.4 "growth ... clears both the cache and the patch
// lists").
func (l *List) Clear() {
	l.pending = make(map[uint64][]Site)
}

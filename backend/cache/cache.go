/*
Package cache maps guest block locations to compiled native code. The
flat map-keyed-by-packed-integer shape mirrors memory.Flat's per-page
generation table (memory/memory.go): a single Go map rather than a tree
or multi-level table, since ir.Location.Key() already packs PC/mode/
Thumb into one comparable uint64 the way a page index packs an address
(spec.md §3, §4.4 "Maintain the block cache").
*/
package cache

import "github.com/armrt/armrt/ir"

// Entry is one compiled block's cache record: where its native code
// lives in the code buffer, and the memory generation its translation
// was compiled against (spec.md §4.4 "generation check").
type Entry struct {
	Loc        ir.Location
	CodeOffset int // byte offset into the backing codebuf.Buffer
	CodeLen    int
	Generation uint32 // memory.System.Generation() for the block's code page, at compile time
	PassCycles int
	FailCycles int
}

// Cache is the block cache: a lookup from guest location to compiled
// code, plus the bookkeeping needed to invalidate entries whose backing
// page has been written to since they were compiled. Not safe for
// concurrent use (spec.md §5: single-threaded, cooperative execution).
type Cache struct {
	entries map[uint64]*Entry

	// byPage indexes entry keys by the code page they were compiled
	// from, so a single-page self-modifying-code write only has to
	// walk the blocks that actually live on that page.
	byPage map[uint32][]uint64
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[uint64]*Entry),
		byPage:  make(map[uint32][]uint64),
	}
}

// Lookup returns the compiled entry for loc, if any.
func (c *Cache) Lookup(loc ir.Location) (*Entry, bool) {
	e, ok := c.entries[loc.Key()]
	return e, ok
}

// Insert records a freshly compiled block. page is the code page the
// block's first guest instruction was fetched from (memory.Flat's
// PageShift granularity), used to group entries for InvalidatePage.
func (c *Cache) Insert(e *Entry, page uint32) {
	key := e.Loc.Key()
	c.entries[key] = e
	c.byPage[page] = append(c.byPage[page], key)
}

// Remove drops a single entry, e.g. because its generation no longer
// matches and the dispatcher is about to recompile it.
func (c *Cache) Remove(loc ir.Location) {
	delete(c.entries, loc.Key())
}

// InvalidatePage drops every entry compiled from the given code page —
// the response to a guest store landing on that page (spec.md §4.4
// generation check; self-modifying code).
func (c *Cache) InvalidatePage(page uint32) {
	for _, key := range c.byPage[page] {
		delete(c.entries, key)
	}
	delete(c.byPage, page)
}

// Clear drops every entry: the response to a codebuf.Buffer.Grow, which
// discards all previously compiled code (spec.md §4.4 "growth discards
// all compiled code and clears both the cache and the patch lists").
func (c *Cache) Clear() {
	c.entries = make(map[uint64]*Entry)
	c.byPage = make(map[uint32][]uint64)
}

// Len returns the number of compiled blocks currently cached.
func (c *Cache) Len() int { return len(c.entries) }

package recompiler

import (
	"github.com/armrt/armrt/ir"
	"github.com/armrt/armrt/memory"
)

// BlockCache maps an ir.Location to the most recently translated (and,
// when enabled, optimized) ir.Block for it. It is keyed the same way
// backend/cache.Cache keys compiled native code, but holds pre-codegen IR
// instead — the dispatcher's cache sits one layer above the host backend's.
type BlockCache struct {
	blocks map[uint64]*ir.Block
	pages  map[uint32][]uint64 // page number -> keys of blocks whose first instruction lives there
}

// NewBlockCache returns an empty cache.
func NewBlockCache() *BlockCache {
	return &BlockCache{
		blocks: make(map[uint64]*ir.Block),
		pages:  make(map[uint32][]uint64),
	}
}

// Lookup returns the cached block at loc, if any.
func (c *BlockCache) Lookup(loc ir.Location) (*ir.Block, bool) {
	b, ok := c.blocks[loc.Key()]
	return b, ok
}

// Insert caches b under loc, indexing it by the guest page its first
// instruction lives in so a later write to that page can evict it.
func (c *BlockCache) Insert(loc ir.Location, b *ir.Block) {
	key := loc.Key()
	c.blocks[key] = b
	page := loc.PC >> memory.PageShift
	c.pages[page] = append(c.pages[page], key)
}

// Remove evicts the block at loc, if cached.
func (c *BlockCache) Remove(loc ir.Location) {
	delete(c.blocks, loc.Key())
}

// InvalidatePage evicts every block whose first instruction lives on the
// same guest page as addr — the ir.Block-cache counterpart of
// backend/cache.Cache.InvalidatePage, called by
// Dispatcher.ReportMemoryWrite (spec.md §4.4's self-modifying-code
// handling).
func (c *BlockCache) InvalidatePage(addr uint32) {
	page := addr >> memory.PageShift
	keys := c.pages[page]
	for _, key := range keys {
		delete(c.blocks, key)
	}
	delete(c.pages, page)
}

// Clear evicts every cached block.
func (c *BlockCache) Clear() {
	c.blocks = make(map[uint64]*ir.Block)
	c.pages = make(map[uint32][]uint64)
}

// Len returns the number of cached blocks.
func (c *BlockCache) Len() int { return len(c.blocks) }

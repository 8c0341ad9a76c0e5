package recompiler

import "github.com/armrt/armrt/memory"

// fetcher adapts memory.System's CodeReadHalf/CodeReadWord to
// translate.Fetcher's narrower two-method contract, the same kind of
// capability-narrowing adapter rcornwell-S370 uses when a device only
// needs a slice of a larger interface.
type fetcher struct {
	mem memory.System
}

func (f *fetcher) FetchARM(addr uint32) uint32   { return f.mem.CodeReadWord(addr) }
func (f *fetcher) FetchThumb(addr uint32) uint16 { return f.mem.CodeReadHalf(addr) }

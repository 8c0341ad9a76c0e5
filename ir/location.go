package ir

import "github.com/armrt/armrt/arm"

// Location is the (PC, mode, thumb-bit) triple that identifies a basic
// block (spec.md §3). It packs into a 64-bit key: PC in the low 32 bits,
// mode and the T bit in the high 32 bits.
type Location struct {
	PC    uint32
	Mode  arm.Mode
	Thumb bool
}

// NewLocation builds a Location, deriving mode/thumb from a CPSR value.
func NewLocation(pc, cpsr uint32) Location {
	return Location{
		PC:    pc,
		Mode:  arm.Mode(cpsr & arm.CPSRModeMask),
		Thumb: cpsr&arm.CPSRBitT != 0,
	}
}

// Key packs the location into the 64-bit cache lookup key.
func (l Location) Key() uint64 {
	high := uint64(l.Mode) & 0x1F
	if l.Thumb {
		high |= 0x20
	}
	return uint64(l.PC) | (high << 32)
}

// LocationFromKey unpacks a 64-bit key back into a Location.
func LocationFromKey(key uint64) Location {
	return Location{
		PC:    uint32(key),
		Mode:  arm.Mode((key >> 32) & 0x1F),
		Thumb: (key>>32)&0x20 != 0,
	}
}

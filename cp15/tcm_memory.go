package cp15

import "github.com/armrt/armrt/memory"

// TCMMemory wraps a memory.System with a fast path through an enabled TCM
// region, the "host backend's memory-mapping fast path" system_control.go's
// SystemControl doc comment anticipates: accesses that land in the
// instruction or data TCM hit TCM's buffers directly; everything else falls
// through to Under unchanged. This is the concrete wiring TCM.LookupITCM/
// LookupDTCM exist to serve — without it they were reachable only from
// tests, never from a guest memory access.
type TCMMemory struct {
	Under memory.System
	TCM   *TCM
}

// NewTCMMemory wraps under with tcm's fast path.
func NewTCMMemory(under memory.System, tcm *TCM) *TCMMemory {
	return &TCMMemory{Under: under, TCM: tcm}
}

func (m *TCMMemory) ReadByte(addr uint32) uint8 {
	if buf, off, ok := m.TCM.LookupDTCM(addr); ok {
		return buf[off]
	}
	if buf, ok := m.TCM.LookupITCM(addr); ok {
		return buf[addr]
	}
	return m.Under.ReadByte(addr)
}

func (m *TCMMemory) ReadHalf(addr uint32) uint16 {
	if buf, off, ok := m.TCM.LookupDTCM(addr); ok && off+1 < uint32(len(buf)) {
		return uint16(buf[off]) | uint16(buf[off+1])<<8
	}
	if buf, ok := m.TCM.LookupITCM(addr); ok && addr+1 < uint32(len(buf)) {
		return uint16(buf[addr]) | uint16(buf[addr+1])<<8
	}
	return m.Under.ReadHalf(addr)
}

func (m *TCMMemory) ReadWord(addr uint32) uint32 {
	if buf, off, ok := m.TCM.LookupDTCM(addr); ok && off+3 < uint32(len(buf)) {
		return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	}
	if buf, ok := m.TCM.LookupITCM(addr); ok && addr+3 < uint32(len(buf)) {
		return uint32(buf[addr]) | uint32(buf[addr+1])<<8 | uint32(buf[addr+2])<<16 | uint32(buf[addr+3])<<24
	}
	return m.Under.ReadWord(addr)
}

func (m *TCMMemory) WriteByte(addr uint32, v uint8) {
	if buf, off, ok := m.TCM.LookupDTCM(addr); ok {
		buf[off] = v
		return
	}
	if buf, ok := m.TCM.LookupITCM(addr); ok {
		buf[addr] = v
		return
	}
	m.Under.WriteByte(addr, v)
}

func (m *TCMMemory) WriteHalf(addr uint32, v uint16) {
	if buf, off, ok := m.TCM.LookupDTCM(addr); ok && off+1 < uint32(len(buf)) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		return
	}
	if buf, ok := m.TCM.LookupITCM(addr); ok && addr+1 < uint32(len(buf)) {
		buf[addr] = byte(v)
		buf[addr+1] = byte(v >> 8)
		return
	}
	m.Under.WriteHalf(addr, v)
}

func (m *TCMMemory) WriteWord(addr uint32, v uint32) {
	if buf, off, ok := m.TCM.LookupDTCM(addr); ok && off+3 < uint32(len(buf)) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
		return
	}
	if buf, ok := m.TCM.LookupITCM(addr); ok && addr+3 < uint32(len(buf)) {
		buf[addr] = byte(v)
		buf[addr+1] = byte(v >> 8)
		buf[addr+2] = byte(v >> 16)
		buf[addr+3] = byte(v >> 24)
		return
	}
	m.Under.WriteWord(addr, v)
}

// CodeReadHalf/CodeReadWord check instruction TCM first, matching real
// ARM946E-S behavior where code fetches from the low address range hit
// ITCM even when DTCM is based elsewhere; everything else falls through to
// Under's own code-fetch path.
func (m *TCMMemory) CodeReadHalf(addr uint32) uint16 {
	if buf, ok := m.TCM.LookupITCM(addr); ok && addr+1 < uint32(len(buf)) {
		return uint16(buf[addr]) | uint16(buf[addr+1])<<8
	}
	return m.Under.CodeReadHalf(addr)
}

func (m *TCMMemory) CodeReadWord(addr uint32) uint32 {
	if buf, ok := m.TCM.LookupITCM(addr); ok && addr+3 < uint32(len(buf)) {
		return uint32(buf[addr]) | uint32(buf[addr+1])<<8 | uint32(buf[addr+2])<<16 | uint32(buf[addr+3])<<24
	}
	return m.Under.CodeReadWord(addr)
}

// Generation delegates to Under unconditionally: TCM is small, fixed, and
// self-modifying code inside it is not generation-tracked. A block compiled
// from ITCM is invalidated only by the explicit RegStoreHasSideEffects path
// (reconfiguring or disabling TCM), not by per-write generation bumps.
func (m *TCMMemory) Generation(addr uint32) uint32 {
	return m.Under.Generation(addr)
}

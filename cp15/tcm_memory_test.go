package cp15

import (
	"testing"

	"github.com/armrt/armrt/memory"
)

func newConfiguredTCM() *TCM {
	tcm := &TCM{}
	tcm.Configure(TCMConfig{ITCMSize: TCMSize4KB, DTCMSize: TCMSize4KB, DTCMBase: 0x00200000})
	return tcm
}

func TestTCMMemoryReadWriteHitsITCM(t *testing.T) {
	tcm := newConfiguredTCM()
	under := memory.NewFlat(1 << 20)
	m := NewTCMMemory(under, tcm)

	m.WriteWord(0x100, 0xDEADBEEF)
	if got := m.ReadWord(0x100); got != 0xDEADBEEF {
		t.Fatalf("ReadWord(0x100) = %#x, want 0xDEADBEEF", got)
	}
	if under.ReadWord(0x100) == 0xDEADBEEF {
		t.Fatalf("write to ITCM address leaked through to underlying memory")
	}
}

func TestTCMMemoryReadWriteHitsDTCM(t *testing.T) {
	tcm := newConfiguredTCM()
	under := memory.NewFlat(1 << 24)
	m := NewTCMMemory(under, tcm)

	addr := uint32(0x00200010)
	m.WriteHalf(addr, 0xABCD)
	if got := m.ReadHalf(addr); got != 0xABCD {
		t.Fatalf("ReadHalf(%#x) = %#x, want 0xABCD", addr, got)
	}
}

func TestTCMMemoryFallsThroughOutsideRegions(t *testing.T) {
	tcm := newConfiguredTCM()
	under := memory.NewFlat(1 << 24)
	m := NewTCMMemory(under, tcm)

	addr := uint32(0x01000000)
	m.WriteByte(addr, 0x42)
	if got := under.ReadByte(addr); got != 0x42 {
		t.Fatalf("write outside TCM regions did not reach underlying memory")
	}
	if got := m.ReadByte(addr); got != 0x42 {
		t.Fatalf("ReadByte(%#x) = %#x, want 0x42", addr, got)
	}
}

func TestTCMMemoryCodeReadHitsITCM(t *testing.T) {
	tcm := newConfiguredTCM()
	under := memory.NewFlat(1 << 20)
	m := NewTCMMemory(under, tcm)

	m.WriteWord(0, 0xE3A00001) // MOV R0,#1
	if got := m.CodeReadWord(0); got != 0xE3A00001 {
		t.Fatalf("CodeReadWord(0) = %#x, want 0xE3A00001", got)
	}
}

func TestTCMMemoryDisabledFallsThrough(t *testing.T) {
	tcm := &TCM{}
	tcm.Reset()
	under := memory.NewFlat(1 << 16)
	m := NewTCMMemory(under, tcm)

	m.WriteWord(0, 0x11223344)
	if got := under.ReadWord(0); got != 0x11223344 {
		t.Fatalf("disabled TCM did not fall through to underlying memory")
	}
}

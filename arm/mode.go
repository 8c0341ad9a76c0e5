// Package arm holds the guest architecture primitives shared by the
// decoder, translator, optimizer and host backend: processor modes,
// condition codes and the small set of constants every layer of the
// recompiler needs to agree on.
package arm

// Mode is one of the seven ARM processor modes. The numeric values match
// the 5-bit mode field of the CPSR/SPSR so a Mode can be stored directly in
// those registers without translation.
type Mode uint32

const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

// String returns the lowercase mnemonic used in logs and disassembly.
func (m Mode) String() string {
	switch m {
	case ModeUser:
		return "usr"
	case ModeFIQ:
		return "fiq"
	case ModeIRQ:
		return "irq"
	case ModeSupervisor:
		return "svc"
	case ModeAbort:
		return "abt"
	case ModeUndefined:
		return "und"
	case ModeSystem:
		return "sys"
	default:
		return "???"
	}
}

// Valid reports whether m is one of the seven defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeUser, ModeFIQ, ModeIRQ, ModeSupervisor, ModeAbort, ModeUndefined, ModeSystem:
		return true
	default:
		return false
	}
}

// HasSPSR reports whether mode m banks its own saved program status
// register. Only User and System mode lack one.
func (m Mode) HasSPSR() bool {
	return m != ModeUser && m != ModeSystem
}

// GPR is a guest general purpose register index, R0..R15.
type GPR uint8

const (
	R0 GPR = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	SP = R13
	LR = R14
	PC = R15
)

var gprNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

func (g GPR) String() string {
	if int(g) < len(gprNames) {
		return gprNames[g]
	}
	return "r?"
}

// CPSR bit positions.
const (
	CPSRBitT uint32 = 1 << 5  // Thumb state
	CPSRBitF uint32 = 1 << 6  // FIQ disable
	CPSRBitI uint32 = 1 << 7  // IRQ disable
	CPSRBitQ uint32 = 1 << 27 // Sticky overflow
	CPSRBitV uint32 = 1 << 28
	CPSRBitC uint32 = 1 << 29
	CPSRBitZ uint32 = 1 << 30
	CPSRBitN uint32 = 1 << 31

	CPSRModeMask uint32 = 0x1F
	CPSRNZCVMask uint32 = CPSRBitN | CPSRBitZ | CPSRBitC | CPSRBitV
)

// ExecState is the guest execution-state tag (spec.md §3).
type ExecState uint8

const (
	Running ExecState = iota
	Halted
	Stopped
)

func (s ExecState) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Exception vector offsets, relative to the base vector address.
const (
	VectorReset         uint32 = 0x00
	VectorUndefined     uint32 = 0x04
	VectorSoftwareIntr  uint32 = 0x08
	VectorPrefetchAbort uint32 = 0x0C
	VectorDataAbort     uint32 = 0x10
	VectorAddress26     uint32 = 0x14
	VectorIRQ           uint32 = 0x18
	VectorFIQ           uint32 = 0x1C
)

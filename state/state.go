/*
State: guest register file, CPSR/SPSR banking, execution state.

Adapted from the register-bank and PSW bookkeeping in rcornwell-S370's
emu/cpu/cpudefs.go and emu/cpu/cpu.go, generalized from the S/370's fixed
CR/FPR layout to ARM's seven-mode banked register file (spec.md §3).
*/
package state

import "github.com/armrt/armrt/arm"

// numModes is the number of register banks (User/System share one; every
// other mode banks R13 (SP) and R14 (LR), and FIQ additionally banks
// R8-R12); numGPR is the number of registers per bank.
const (
	numModes = 7
	numGPR   = 16
)

// State is the complete architectural state of one guest CPU core. It is
// not safe for concurrent use: spec.md §5 mandates a single-threaded,
// cooperative model with no shared state between instances.
type State struct {
	// regs holds the physical storage for every banked register: index
	// [0] is the common User-mode bank; indices [1..5] are the FIQ/IRQ/
	// Supervisor/Abort/Undefined banks for R8-R14 (only R13/R14 used
	// except for FIQ's R8-R14).
	regs [numModes][numGPR]uint32

	// ptrs is the active mode's view into regs: rebound in one place by
	// SetMode so that R(g) is always correct without a switch per access.
	ptrs [numGPR]*uint32

	cpsr uint32

	// spsr is banked per non-User mode; index matches bankIndex(mode).
	spsr [numModes]uint32

	irqLine bool
	state   arm.ExecState
}

func bankIndex(m arm.Mode) int {
	switch m {
	case arm.ModeFIQ:
		return 1
	case arm.ModeIRQ:
		return 2
	case arm.ModeSupervisor:
		return 3
	case arm.ModeAbort:
		return 4
	case arm.ModeUndefined:
		return 5
	default:
		return 0 // User and System share bank 0
	}
}

// New returns a State reset to its power-on values: PC/registers zero,
// Supervisor mode, IRQ and FIQ disabled, ARM (not Thumb) state.
func New() *State {
	s := &State{}
	s.cpsr = uint32(arm.ModeSupervisor) | arm.CPSRBitI | arm.CPSRBitF
	s.state = arm.Running
	s.rebind()
	return s
}

// rebind repoints ptrs at the register bank for the current mode. It is the
// single place that implements the invariant from spec.md §3: "switching
// mode rebinds the table of register pointers in one place."
func (s *State) rebind() {
	mode := s.Mode()
	userBank := &s.regs[0]
	activeBank := &s.regs[bankIndex(mode)]

	for i := 0; i < 8; i++ {
		s.ptrs[i] = &userBank[i]
	}
	if mode == arm.ModeFIQ {
		for i := 8; i < 13; i++ {
			s.ptrs[i] = &activeBank[i]
		}
	} else {
		for i := 8; i < 13; i++ {
			s.ptrs[i] = &userBank[i]
		}
	}
	s.ptrs[13] = &activeBank[13] // SP
	s.ptrs[14] = &activeBank[14] // LR
	s.ptrs[15] = &userBank[15]   // PC is never banked
}

// R returns the value of guest register g as seen by the currently active
// mode.
func (s *State) R(g arm.GPR) uint32 {
	return *s.ptrs[g]
}

// SetR writes guest register g as seen by the currently active mode.
func (s *State) SetR(g arm.GPR, v uint32) {
	*s.ptrs[g] = v
}

// RBanked returns register g as banked for mode m, regardless of the
// currently active mode. This implements the GPRArg "mode may differ from
// the block's mode" contract used by user-mode register transfer
// instructions (LDM/STM ^, MSR/MRS user-bank variants).
func (s *State) RBanked(g arm.GPR, m arm.Mode) uint32 {
	return *s.regFor(g, m)
}

// SetRBanked writes register g as banked for mode m.
func (s *State) SetRBanked(g arm.GPR, m arm.Mode, v uint32) {
	*s.regFor(g, m) = v
}

func (s *State) regFor(g arm.GPR, m arm.Mode) *uint32 {
	if g == arm.PC {
		return &s.regs[0][15]
	}
	if g < 8 || (g < 13 && m != arm.ModeFIQ) {
		return &s.regs[0][g]
	}
	return &s.regs[bankIndex(m)][g]
}

// PC returns the raw program counter.
func (s *State) PC() uint32 { return s.regs[0][15] }

// SetPC writes the raw program counter.
func (s *State) SetPC(v uint32) { s.regs[0][15] = v }

// CPSR returns the full current program status register.
func (s *State) CPSR() uint32 { return s.cpsr }

// SetCPSR writes the full CPSR and, if the mode field changed, rebinds the
// register-pointer table (spec.md §3 invariant).
func (s *State) SetCPSR(v uint32) {
	oldMode := s.Mode()
	s.cpsr = v
	if s.Mode() != oldMode {
		s.rebind()
	}
}

// Mode returns the processor mode encoded in CPSR bits [4:0].
func (s *State) Mode() arm.Mode {
	return arm.Mode(s.cpsr & arm.CPSRModeMask)
}

// SetMode changes only the mode field of CPSR, preserving flags and T/I/F.
func (s *State) SetMode(m arm.Mode) {
	s.cpsr = (s.cpsr &^ arm.CPSRModeMask) | uint32(m)
	s.rebind()
}

// Thumb reports the CPSR T bit.
func (s *State) Thumb() bool { return s.cpsr&arm.CPSRBitT != 0 }

// SetThumb sets or clears the CPSR T bit.
func (s *State) SetThumb(t bool) {
	if t {
		s.cpsr |= arm.CPSRBitT
	} else {
		s.cpsr &^= arm.CPSRBitT
	}
}

// Flags returns the four NZCV arithmetic flags.
func (s *State) Flags() arm.Flags { return arm.FlagsFromCPSR(s.cpsr) }

// SetFlags writes the four NZCV arithmetic flags, leaving the rest of CPSR
// untouched.
func (s *State) SetFlags(f arm.Flags) {
	s.cpsr = (s.cpsr &^ arm.CPSRNZCVMask) | f.Pack()
}

// Q returns the sticky-overflow flag.
func (s *State) Q() bool { return s.cpsr&arm.CPSRBitQ != 0 }

// SetQ sets the sticky-overflow flag. It is sticky: callers clear it
// explicitly (MSR), never implicitly.
func (s *State) SetQ(v bool) {
	if v {
		s.cpsr |= arm.CPSRBitQ
	} else {
		s.cpsr &^= arm.CPSRBitQ
	}
}

// SPSR returns the saved program status register banked for the currently
// active mode. User and System mode have none; callers must not invoke this
// there (spec.md's SPSR load/store IR ops are only ever lowered inside
// exception handlers, which always run in a privileged mode).
func (s *State) SPSR() uint32 {
	return s.spsr[bankIndex(s.Mode())]
}

// SetSPSR writes the SPSR banked for the currently active mode.
func (s *State) SetSPSR(v uint32) {
	s.spsr[bankIndex(s.Mode())] = v
}

// SPSRFor returns the SPSR banked for mode m (used by PSRArg, which may
// name a bank other than the current one).
func (s *State) SPSRFor(m arm.Mode) uint32 {
	return s.spsr[bankIndex(m)]
}

// SetSPSRFor writes the SPSR banked for mode m.
func (s *State) SetSPSRFor(m arm.Mode, v uint32) {
	s.spsr[bankIndex(m)] = v
}

// IRQLine returns the current level of the external IRQ line.
func (s *State) IRQLine() bool { return s.irqLine }

// SetIRQLine sets the external IRQ line. The dispatcher samples this on
// every entry (spec.md §2 step 4).
func (s *State) SetIRQLine(v bool) { s.irqLine = v }

// ExecState returns the Running/Halted/Stopped tag.
func (s *State) ExecState() arm.ExecState { return s.state }

// SetExecState sets the Running/Halted/Stopped tag.
func (s *State) SetExecState(v arm.ExecState) { s.state = v }

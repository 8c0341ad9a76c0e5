package cp15

// Control register bits (CP15 register 1), the subset this recompiler's
// target SoCs (ARM946E-S-class ARMv5TE cores, ARM7TDMI-class ARMv4T cores
// with no CP15 at all — see null.go) actually use.
const (
	ControlBitMMU       uint32 = 1 << 0
	ControlBitICache    uint32 = 1 << 12
	ControlBitITCM      uint32 = 1 << 18
	ControlBitDTCM      uint32 = 1 << 16
	ControlBitITCMWrite uint32 = 1 << 19
	ControlBitDTCMWrite uint32 = 1 << 17
)

// SystemControl implements Coprocessor for CP15 on an ARMv5TE core with
// ITCM/DTCM but no MMU (the ARM946E-S shape), the configuration the host
// backend's memory-mapping fast path (spec.md SUPPLEMENTED FEATURES: TCM
// region fields) is built against.
type SystemControl struct {
	TCM TCM

	implementor  Implementor
	architecture Architecture
	partNumber   uint32

	control uint32
}

// NewSystemControl returns a CP15 SystemControl identifying as an ARM
// implementor on the given architecture.
func NewSystemControl(arch Architecture, partNumber uint32) *SystemControl {
	sc := &SystemControl{implementor: ImplementorARM, architecture: arch, partNumber: partNumber}
	sc.TCM.Reset()
	return sc
}

func (sc *SystemControl) idRegister() uint32 {
	return uint32(sc.implementor)<<24 | uint32(sc.architecture)<<16 | (sc.partNumber&0xFFF)<<4
}

// IsPresent reports whether copNum names the system control coprocessor
// (always number 15).
func (sc *SystemControl) IsPresent(copNum uint8) bool { return copNum == 15 }

// SupportsExtendedRegTransfers reports false: CP15 on these cores doesn't
// implement MCRR/MRRC.
func (sc *SystemControl) SupportsExtendedRegTransfers() bool { return false }

func (sc *SystemControl) LoadRegister(opcode1 uint8, crn uint16, opcode2 uint16, crm uint16) uint32 {
	switch crn {
	case 0:
		return sc.idRegister()
	case 1:
		return sc.control
	case 9:
		switch opcode2 {
		case 1:
			return uint32(sc.TCM.DTCMBase&0xFFFFF000) | uint32(sc.TCM.DTCMSize)<<18
		case 0, 1 << 4:
			return uint32(sc.TCM.ITCMSize) << 18
		}
	}
	return 0
}

func (sc *SystemControl) StoreRegister(opcode1 uint8, crn uint16, opcode2 uint16, crm uint16, value uint32) {
	switch crn {
	case 1:
		sc.control = value
		sc.TCM.SetEnabled(value&ControlBitITCM != 0, value&ControlBitDTCM != 0)
	case 9:
		switch opcode2 {
		case 1: // DTCM region register
			sc.TCM.Configure(TCMConfig{
				ITCMSize: sc.TCM.ITCMSize,
				DTCMSize: TCMSize((value >> 18) & 0xF),
				DTCMBase: value & 0xFFFFF000,
			})
		case 0: // ITCM region register
			sc.TCM.Configure(TCMConfig{
				ITCMSize: TCMSize((value >> 18) & 0xF),
				DTCMSize: sc.TCM.DTCMSize,
				DTCMBase: sc.TCM.DTCMBase,
			})
		}
	}
}

// RegStoreHasSideEffects reports true for the control register and the TCM
// region registers: writing either can move or resize a TCM region the
// host backend has block-cache entries mapped against, which must
// invalidate those entries (spec.md SUPPLEMENTED FEATURES).
func (sc *SystemControl) RegStoreHasSideEffects(crn uint16, opcode2 uint16, crm uint16) bool {
	return crn == 1 || crn == 9
}

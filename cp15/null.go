package cp15

// Null is the no-CP15 stub used for plain ARMv4T targets (ARM7TDMI-class
// cores ship no system control coprocessor at all). Every coprocessor
// access against it decodes normally but traps as undefined at lowering
// time, the same outcome the real hardware gives.
type Null struct{}

func (Null) IsPresent(copNum uint8) bool                                      { return false }
func (Null) SupportsExtendedRegTransfers() bool                               { return false }
func (Null) LoadRegister(opcode1 uint8, crn uint16, opcode2 uint16, crm uint16) uint32 { return 0 }
func (Null) StoreRegister(opcode1 uint8, crn uint16, opcode2 uint16, crm uint16, value uint32) {}
func (Null) RegStoreHasSideEffects(crn uint16, opcode2 uint16, crm uint16) bool { return false }

package cp15

// TCM holds the two tightly-coupled memory regions CP15 can configure:
// instruction TCM (covers the low end of the address space from address
// 0) and data TCM (based anywhere, sized and positioned by DTCM's base
// register). Field names follow the armajitto reference's TCM struct.
type TCM struct {
	ITCM []byte
	DTCM []byte

	ITCMSize TCMSize
	DTCMSize TCMSize
	DTCMBase uint32

	itcmEnabled bool
	dtcmEnabled bool
}

// TCMConfig is the (itcmSize, dtcmSize) pair CP15 register 9 configures.
type TCMConfig struct {
	ITCMSize TCMSize
	DTCMSize TCMSize
	DTCMBase uint32
}

// Reset clears both TCM regions and disables them.
func (t *TCM) Reset() {
	t.ITCM = nil
	t.DTCM = nil
	t.ITCMSize = TCMSize0KB
	t.DTCMSize = TCMSize0KB
	t.DTCMBase = 0
	t.itcmEnabled = false
	t.dtcmEnabled = false
}

// Configure (re)allocates the TCM buffers per cfg and enables both
// regions. Reconfiguring at a different size discards prior contents, same
// as the real hardware on a CP15 register 9 write.
func (t *TCM) Configure(cfg TCMConfig) {
	if cfg.ITCMSize != t.ITCMSize || t.ITCM == nil {
		t.ITCM = make([]byte, cfg.ITCMSize.Bytes())
	}
	if cfg.DTCMSize != t.DTCMSize || t.DTCM == nil {
		t.DTCM = make([]byte, cfg.DTCMSize.Bytes())
	}
	t.ITCMSize = cfg.ITCMSize
	t.DTCMSize = cfg.DTCMSize
	t.DTCMBase = cfg.DTCMBase
	t.itcmEnabled = cfg.ITCMSize != TCMSize0KB
	t.dtcmEnabled = cfg.DTCMSize != TCMSize0KB
}

// Disable turns off both TCM regions without discarding their buffers —
// CP15 control-register bit writes can disable/re-enable TCM without a
// full reconfigure.
func (t *TCM) Disable() {
	t.itcmEnabled = false
	t.dtcmEnabled = false
}

// SetEnabled sets the enable state of each region independently, mirroring
// CP15 control register bits 18 (ITCM) and 16 (DTCM).
func (t *TCM) SetEnabled(itcm, dtcm bool) {
	t.itcmEnabled = itcm && len(t.ITCM) > 0
	t.dtcmEnabled = dtcm && len(t.DTCM) > 0
}

// LookupITCM returns the ITCM byte slice and true if addr falls inside the
// enabled instruction TCM region (always based at address 0).
func (t *TCM) LookupITCM(addr uint32) ([]byte, bool) {
	if !t.itcmEnabled || addr >= uint32(len(t.ITCM)) {
		return nil, false
	}
	return t.ITCM, true
}

// LookupDTCM returns the DTCM byte slice and the offset within it, and true
// if addr falls inside the enabled data TCM region.
func (t *TCM) LookupDTCM(addr uint32) (buf []byte, offset uint32, ok bool) {
	if !t.dtcmEnabled {
		return nil, 0, false
	}
	if addr < t.DTCMBase || addr-t.DTCMBase >= uint32(len(t.DTCM)) {
		return nil, 0, false
	}
	return t.DTCM, addr - t.DTCMBase, true
}

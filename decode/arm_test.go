package decode

import (
	"testing"

	"github.com/armrt/armrt/arm"
)

func TestDecodeARMDataProcessing(t *testing.T) {
	// MOVS R0, #1 -> E3B00001
	instr := DecodeARM(0xE3B00001, ARMv4T)
	if instr.Kind != DataProcessing {
		t.Fatalf("Kind = %v, wanted DataProcessing", instr.Kind)
	}
	if instr.DPOp != OpMOV {
		t.Errorf("DPOp = %v, wanted MOV", instr.DPOp)
	}
	if !instr.SetFlags {
		t.Errorf("SetFlags = false, wanted true")
	}
	if instr.DstReg != arm.R0 {
		t.Errorf("DstReg = %v, wanted r0", instr.DstReg)
	}
	if instr.RhsImm != 1 {
		t.Errorf("RhsImm = %d, wanted 1", instr.RhsImm)
	}
}

func TestDecodeARMBranch(t *testing.T) {
	// BL with encoded offset field 0x000001 -> EB000001
	instr := DecodeARM(0xEB000001, ARMv4T)
	if instr.Kind != Branch {
		t.Fatalf("Kind = %v, wanted Branch", instr.Kind)
	}
	if !instr.Link {
		t.Errorf("Link = false, wanted true (BL)")
	}
	if instr.Offset != 4 {
		t.Errorf("Offset = %d, wanted 4", instr.Offset)
	}
}

func TestDecodeARMBranchExchange(t *testing.T) {
	// BX LR -> E12FFF1E
	instr := DecodeARM(0xE12FFF1E, ARMv4T)
	if instr.Kind != BranchAndExchange {
		t.Fatalf("Kind = %v, wanted BranchAndExchange", instr.Kind)
	}
	if instr.Reg != arm.LR {
		t.Errorf("Reg = %v, wanted lr", instr.Reg)
	}
}

func TestDecodeARMUndefinedOnV4TOnlyEncodings(t *testing.T) {
	// CLZ R0, R1 (ARMv5TE-only) -> E16F0F11
	instr := DecodeARM(0xE16F0F11, ARMv4T)
	if instr.Kind != Undefined {
		t.Errorf("Kind = %v, wanted Undefined on ARMv4T", instr.Kind)
	}
	instr = DecodeARM(0xE16F0F11, ARMv5TE)
	if instr.Kind != CountLeadingZeros {
		t.Errorf("Kind = %v, wanted CountLeadingZeros on ARMv5TE", instr.Kind)
	}
}

func TestDecodeARMSingleDataTransfer(t *testing.T) {
	// LDR R0, [R1] -> E5910000
	instr := DecodeARM(0xE5910000, ARMv4T)
	if instr.Kind != SingleDataTransfer {
		t.Fatalf("Kind = %v, wanted SingleDataTransfer", instr.Kind)
	}
	if !instr.Load {
		t.Errorf("Load = false, wanted true")
	}
	if instr.OffsetImm.BaseReg != arm.R1 {
		t.Errorf("BaseReg = %v, wanted r1", instr.OffsetImm.BaseReg)
	}
}

func TestDecodeARMBlockTransfer(t *testing.T) {
	// STMFD SP!, {R4-R7, LR} -> E92D40F0
	instr := DecodeARM(0xE92D40F0, ARMv4T)
	if instr.Kind != BlockTransfer {
		t.Fatalf("Kind = %v, wanted BlockTransfer", instr.Kind)
	}
	if instr.Load {
		t.Errorf("Load = true, wanted false (STM)")
	}
	if !instr.Writeback {
		t.Errorf("Writeback = false, wanted true")
	}
	if instr.RegList != 0x40F0 {
		t.Errorf("RegList = 0x%04x, wanted 0x40f0", instr.RegList)
	}
}

package amd64

import "github.com/armrt/armrt/backend/regalloc"

// Fixed register assignments (spec.md §4.4 "Prolog": "loads the ARM-state
// pointer into a fixed host register; loads the remaining-cycles counter
// into another fixed host register; loads CPSR NZCV into a host-flags-
// shadow register"). r14 is Go's own goroutine pointer on amd64 and r15 is
// left untouched as a margin against runtime internals this package has no
// way to verify against without building and running it — both are
// excluded from every register this package's codegen ever writes,
// including the fixed-assignment and the allocator pool below.
const (
	machineReg reg = rbx // *interp.Machine, constant for the block's lifetime
	cyclesReg  reg = rbp // remaining-cycles counter
	flagsReg   reg = r12 // NZCV packed in CPSR bit position (N=31,Z=30,C=29,V=28), the same layout arm.Flags.Pack/FlagsFromCPSR use
	varsReg    reg = r13 // base of this block's vars []uint32 backing array
	scratchReg reg = rax // codegen temporary, never live across op boundaries
	callTarget reg = r11 // holds a call target address immediately before use
)

// allocPool lists the host registers backend/regalloc hands out for IR
// variables: every general-purpose register minus the ones fixed above,
// rsp/rbp (stack housekeeping), and r14/r15.
var allocPool = []reg{rcx, rdx, rsi, rdi, r8, r9, r10}

// NumAllocRegs is allocPool's length, the numRegs argument this package
// passes to regalloc.New per block.
const NumAllocRegs = 7

func hostReg(r regalloc.HostReg) reg {
	return allocPool[int(r)]
}

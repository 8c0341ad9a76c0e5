package translate

import (
	"encoding/binary"
	"testing"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/ir"
)

type flatFetcher struct {
	mem []byte
}

func (f *flatFetcher) FetchARM(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(f.mem[addr:])
}

func (f *flatFetcher) FetchThumb(addr uint32) uint16 {
	return binary.LittleEndian.Uint16(f.mem[addr:])
}

func newFetcher(words ...uint32) *flatFetcher {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return &flatFetcher{mem: buf}
}

func TestTranslateStopsAtUnconditionalBranch(t *testing.T) {
	// MOVS R0,#1 ; B +0 ; (never reached)
	f := newFetcher(0xE3B00001, 0xEAFFFFFE, 0xE3B00002)
	loc := ir.Location{PC: 0, Mode: arm.ModeSystem}
	block := Translate(loc, f, Coprocessors{}, Options{Arch: decode.ARMv4T})

	if block.InstCount != 2 {
		t.Fatalf("InstCount = %d, want 2 (MOVS + B)", block.InstCount)
	}
	if block.Term.Kind != ir.TermDirectLink && block.Term.Kind != ir.TermIndirectLink {
		t.Fatalf("Term.Kind = %v, want a link terminator after an unconditional branch", block.Term.Kind)
	}
}

func TestTranslateStopsAtConditionChange(t *testing.T) {
	// MOVAL R0,#1 ; MOVEQ R1,#2 (different condition, must not be absorbed)
	f := newFetcher(0xE3B00001, 0x03B01002)
	loc := ir.Location{PC: 0, Mode: arm.ModeSystem}
	block := Translate(loc, f, Coprocessors{}, Options{Arch: decode.ARMv4T})

	if block.InstCount != 1 {
		t.Fatalf("InstCount = %d, want 1 (block must stop before the EQ-conditioned instruction)", block.InstCount)
	}
	if block.Term.Kind != ir.TermDirectLink || block.Term.Target.PC != 4 {
		t.Fatalf("Term = %+v, want a direct link to PC=4", block.Term)
	}
}

func TestTranslateStopsAtMaxInstrs(t *testing.T) {
	words := make([]uint32, 5)
	for i := range words {
		words[i] = 0xE3B00001 // MOVS R0,#1
	}
	f := newFetcher(words...)
	loc := ir.Location{PC: 0, Mode: arm.ModeSystem}
	block := Translate(loc, f, Coprocessors{}, Options{Arch: decode.ARMv4T, MaxInstrs: 3})

	if block.InstCount != 3 {
		t.Fatalf("InstCount = %d, want 3 (MaxInstrs cap)", block.InstCount)
	}
	if block.Term.Kind != ir.TermDirectLink || block.Term.Target.PC != 12 {
		t.Fatalf("Term = %+v, want a direct link to PC=12", block.Term)
	}
}

func TestTranslateDataProcessingEmitsExpectedOps(t *testing.T) {
	// ADD R0, R1, R2
	f := newFetcher(0xE0810002)
	loc := ir.Location{PC: 0, Mode: arm.ModeSystem}
	block := Translate(loc, f, Coprocessors{}, Options{Arch: decode.ARMv4T, MaxInstrs: 1})

	var kinds []ir.Kind
	block.Walk(func(op *ir.Op) { kinds = append(kinds, op.Kind) })

	want := []ir.Kind{ir.LoadGPR, ir.LoadGPR, ir.Add, ir.StoreGPR}
	if len(kinds) != len(want) {
		t.Fatalf("op kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("op[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

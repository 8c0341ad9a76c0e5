package codebuf

import "testing"

func TestEmitReturnsIncreasingAddresses(t *testing.T) {
	b, err := New(DefaultSize, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	a1, ok := b.Emit([]byte{0xc3})
	if !ok {
		t.Fatalf("first Emit failed to fit")
	}
	a2, ok := b.Emit([]byte{0x90, 0xc3})
	if !ok {
		t.Fatalf("second Emit failed to fit")
	}
	if a2 != a1+1 {
		t.Fatalf("a2 = %#x, want a1+1 = %#x", a2, a1+1)
	}
	if b.Used() != 3 {
		t.Fatalf("Used() = %d, want 3", b.Used())
	}
}

func TestEmitFailsWhenOutOfSpace(t *testing.T) {
	b, err := New(16, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if _, ok := b.Emit(make([]byte, b.Size()+1)); ok {
		t.Fatalf("Emit should refuse code larger than the buffer")
	}
}

func TestGrowDoublesAndDiscards(t *testing.T) {
	b, err := New(1<<13, 1<<12)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	b.Emit([]byte{0xc3})
	sizeBefore := b.Size()

	grew, err := b.Grow()
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if !grew {
		t.Fatalf("Grow reported no growth below maxSize")
	}
	if b.Size() != sizeBefore*2 {
		t.Fatalf("Size() = %d, want %d", b.Size(), sizeBefore*2)
	}
	if b.Used() != 0 {
		t.Fatalf("Used() = %d, want 0 (Grow must discard compiled code)", b.Used())
	}
}

func TestGrowStopsAtMaxSize(t *testing.T) {
	b, err := New(DefaultSize, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	grew, err := b.Grow()
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if grew {
		t.Fatalf("Grow should refuse to grow past maxSize == initial size")
	}
}

func TestPatchOverwritesSealedBuffer(t *testing.T) {
	b, err := New(DefaultSize, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	b.Emit([]byte{0x90, 0x90, 0xc3})
	if err := b.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := b.Patch(0, []byte{0xcc}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := b.At(0, 1)[0]; got != 0xcc {
		t.Fatalf("patched byte = %#x, want 0xcc", got)
	}
}

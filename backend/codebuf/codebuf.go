/*
Package codebuf manages the JIT's native code storage: a contiguous,
growable buffer of pages that start writable and get reprotected
executable once a compilation pass finishes with them (spec.md §4.4
"Code buffer growth"). Grounded on the teacher's bump allocator
(alloc/alloc.go, adapted from rcornwell-S370's tape-image buffer growth
in emu/device): a single cursor advancing through a flat byte slice,
reset (here: regrown) wholesale rather than freed piecemeal.

mmap/mprotect come from golang.org/x/sys/unix rather than the standard
library's syscall package: the teacher's own go.mod already carries
golang.org/x/sys as a transitive dependency (through its terminal
line-editor import), so promoting it to a direct import here reuses an
edge already in the teacher's module graph instead of reaching past it
for stdlib syscall plumbing.
*/
package codebuf

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultSize is the initial buffer size spec.md §4.4 specifies: 1 MiB.
const DefaultSize = 1 << 20

// Buffer is a growable region of native-code memory, writable while
// blocks are being compiled into it and executable once Seal runs.
// Never safe for concurrent use — spec.md §5 mandates single-threaded,
// cooperative execution.
type Buffer struct {
	mem     []byte
	cursor  int
	maxSize int
	sealed  bool
}

// New allocates a Buffer starting at initialSize bytes (or DefaultSize if
// initialSize is zero — spec.md §6's compiler.initial_code_buffer_size),
// capped at maxSize.
func New(maxSize, initialSize int) (*Buffer, error) {
	if initialSize == 0 {
		initialSize = DefaultSize
	}
	if initialSize > maxSize {
		initialSize = maxSize
	}
	b := &Buffer{maxSize: maxSize}
	if err := b.alloc(initialSize); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) alloc(size int) error {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("codebuf: mmap %d bytes: %w", size, err)
	}
	b.mem = mem
	b.cursor = 0
	b.sealed = false
	return nil
}

// Size returns the buffer's current total capacity.
func (b *Buffer) Size() int { return len(b.mem) }

// Used returns the number of bytes already emitted.
func (b *Buffer) Used() int { return b.cursor }

// Remaining returns the number of bytes still available before an
// "out of space" condition forces a Grow.
func (b *Buffer) Remaining() int { return len(b.mem) - b.cursor }

// BaseAddr returns the host address the buffer's byte 0 lives at, for
// computing absolute jump targets into previously emitted code.
func (b *Buffer) BaseAddr() uintptr {
	if len(b.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.mem[0]))
}

// Emit appends code to the buffer and returns the host address it now
// lives at, or ok=false if it doesn't fit — the caller must then Grow
// and recompile (spec.md §4.4: "growth discards all compiled code").
func (b *Buffer) Emit(code []byte) (addr uintptr, ok bool) {
	if b.sealed {
		panic("codebuf: Emit after Seal")
	}
	if len(code) > b.Remaining() {
		return 0, false
	}
	start := b.cursor
	copy(b.mem[start:], code)
	b.cursor += len(code)
	return b.BaseAddr() + uintptr(start), true
}

// Reserve returns a writable view of length bytes at offset, for a
// direct-link patch site to be overwritten in place later (spec.md §4.4
// "patch lists"). offset+length must not exceed Used.
func (b *Buffer) Reserve(offset, length int) []byte {
	if b.sealed {
		panic("codebuf: Reserve after Seal")
	}
	return b.mem[offset : offset+length]
}

// At returns a read-only view of length bytes at offset, valid whether
// or not the buffer is currently sealed — for inspecting already-emitted
// code without requiring a reopen/reseal round trip.
func (b *Buffer) At(offset, length int) []byte {
	return b.mem[offset : offset+length]
}

// Seal reprotects the buffer executable-and-read-only, making every
// address Emit handed out callable. Must run once per compilation batch
// before the dispatcher jumps into any of it.
func (b *Buffer) Seal() error {
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codebuf: mprotect exec: %w", err)
	}
	b.sealed = true
	return nil
}

// reopen reprotects the buffer read-write so Emit/Reserve can run again
// (patching a sealed buffer, or growing it, both need this).
func (b *Buffer) reopen() error {
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("codebuf: mprotect rw: %w", err)
	}
	b.sealed = false
	return nil
}

// Patch overwrites length bytes at offset with code, reopening and
// resealing the buffer around the write if it was sealed. Used for
// direct-link backpatches applied after the target block compiles.
func (b *Buffer) Patch(offset int, code []byte) error {
	wasSealed := b.sealed
	if wasSealed {
		if err := b.reopen(); err != nil {
			return err
		}
	}
	copy(b.mem[offset:offset+len(code)], code)
	if wasSealed {
		return b.Seal()
	}
	return nil
}

// Grow doubles the buffer's capacity, up to maxSize, and discards every
// byte of previously compiled code: spec.md §4.4 is explicit that a
// resize "discards all compiled code and clears both the cache and the
// patch lists" rather than relocating it, since fixed-up jump targets
// would otherwise all need recomputing. Returns false if already at
// maxSize (the caller has no more room to grow into).
func (b *Buffer) Grow() (grew bool, err error) {
	if len(b.mem) >= b.maxSize {
		return false, nil
	}
	next := len(b.mem) * 2
	if next > b.maxSize {
		next = b.maxSize
	}
	if err := unix.Munmap(b.mem); err != nil {
		return false, fmt.Errorf("codebuf: munmap: %w", err)
	}
	if err := b.alloc(next); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the buffer's memory. The Buffer must not be used again
// afterward.
func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}

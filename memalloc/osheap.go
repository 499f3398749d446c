package memalloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// OSHeap is an OS-backed Heap: an anonymous, zero-filled mapping reserved
// once at construction, grown logically by moving a high-water mark within
// that reservation. It is the real-OS analog of sbrk — the mapping itself
// is never shrunk or unmapped until Close, matching spec.md's "does not
// release memory back to the operating system".
//
// Grounded on lldb's OSFiler/SimpleFileFiler (an os.File-backed Filer),
// adapted from file I/O to a single mmap because an in-memory heap has no
// file to seek into.
//
// Like ArenaHeap, the mapping is reserved headerSize bytes larger than
// the requested capacity; see ArenaHeap's doc comment for why.
type OSHeap struct {
	mem  []byte // mmap'd reservation, len == capacity+headerSize
	used int
}

var _ Heap = (*OSHeap)(nil)

// NewOSHeap reserves capacity bytes (rounded up to Alignment) of anonymous,
// zero-filled memory via mmap and returns an OSHeap over it, with nothing
// yet extended.
func NewOSHeap(capacity int) (*OSHeap, error) {
	capacity = alignUp(capacity)
	if capacity < Alignment {
		capacity = Alignment
	}
	mem, err := unix.Mmap(-1, 0, capacity+headerSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, &ErrInvalid{Msg: "OSHeap: mmap failed: " + err.Error()}
	}
	return &OSHeap{mem: mem}, nil
}

// Grow implements Heap.
func (h *OSHeap) Grow(n int) bool {
	if n == 0 {
		return true
	}
	if n < 0 || h.used+n > len(h.mem)-headerSize {
		return false
	}
	h.used += n
	return true
}

// Lo implements Heap.
func (h *OSHeap) Lo() unsafe.Pointer {
	return unsafe.Pointer(&h.mem[0])
}

// Hi implements Heap.
func (h *OSHeap) Hi() unsafe.Pointer {
	return unsafe.Pointer(uintptr(h.Lo()) + uintptr(h.used))
}

// Len implements Heap.
func (h *OSHeap) Len() int { return h.used }

// Close releases the mapping. After Close, every pointer previously
// handed out from this OSHeap is invalid; an Allocator built on it must
// not be used again.
func (h *OSHeap) Close() error {
	if h.mem == nil {
		return nil
	}
	err := unix.Munmap(h.mem)
	h.mem = nil
	return err
}

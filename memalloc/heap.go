package memalloc

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// A Heap is an sbrk-like heap-extension primitive: the only thing an
// Allocator assumes about the memory it manages. It generalizes spec.md's
// sbrk/heap_lo/heap_hi triad the way lldb.Filer generalizes file-like
// storage, so the allocation policy engine in alloc.go never needs to know
// whether its bytes come from a plain Go slice or an OS mmap.
//
// A Heap is not safe for concurrent use, matching the Allocator it backs.
type Heap interface {
	// Grow extends the heap by exactly n bytes (n may be 0, which must
	// always succeed and is a no-op). It reports whether the extension
	// succeeded; false means out of memory and the heap is left
	// unchanged.
	Grow(n int) bool

	// Lo returns the heap's low watermark, stable for the Heap's
	// lifetime.
	Lo() unsafe.Pointer

	// Hi returns the address one past the heap's current high
	// watermark, i.e. Lo() + Len().
	Hi() unsafe.Pointer

	// Len returns the number of bytes currently extended, i.e.
	// Hi() - Lo().
	Len() int
}

// ArenaHeap is a pure-Go, process-memory-backed Heap. Its capacity is
// fixed at construction and never reallocated by Grow: growing only moves
// a logical high-water mark within memory reserved up front, which is
// what lets an Allocator hand out unsafe.Pointers into an ArenaHeap's
// backing bytes without those pointers being invalidated out from under
// it by a Go slice grow-and-copy.
//
// The backing slice is reserved headerSize bytes larger than the
// requested capacity and that slack is never counted in Len/Hi: the
// allocator's tail-reuse fast path (alloc.go) always maintains one
// notional successor header just past the current high watermark, so
// the bytes right after Hi() must stay valid and addressable even when
// the heap is at nominal capacity.
//
// This is the allocator's default, dependency-free Heap implementation.
type ArenaHeap struct {
	mem  []byte // len == capacity+headerSize; mem[:used] is "extended"
	used int
}

var _ Heap = (*ArenaHeap)(nil)

// NewArenaHeap reserves capacity bytes of process memory and returns an
// ArenaHeap over it, with nothing yet extended. capacity is rounded up to
// Alignment.
func NewArenaHeap(capacity int) *ArenaHeap {
	capacity = alignUp(mathutil.Max(capacity, Alignment))
	return &ArenaHeap{mem: make([]byte, capacity+headerSize)}
}

// Grow implements Heap.
func (h *ArenaHeap) Grow(n int) bool {
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
func (h *ArenaHeap) Lo() unsafe.Pointer {
	return unsafe.Pointer(&h.mem[0])
}

// Hi implements Heap.
func (h *ArenaHeap) Hi() unsafe.Pointer {
	return unsafe.Pointer(uintptr(h.Lo()) + uintptr(h.used))
}

// Len implements Heap.
func (h *ArenaHeap) Len() int { return h.used }

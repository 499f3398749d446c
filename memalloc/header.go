package memalloc

import "unsafe"

// Alignment is the byte alignment every payload address and every size
// field is required to satisfy.
const Alignment = 8

// headerSize is the fixed 8-byte block header: a 32-bit size and a 32-bit
// prevSize whose low bit doubles as the predecessor's free flag.
const headerSize = 8

// minPayload and minTotalSize are the smallest payload/ total sizes a block
// may have: 16 payload bytes so a free block's payload can hold the two
// freeNode pointers, plus the 8-byte header.
const (
	minPayload   = 16
	minTotalSize = minPayload + headerSize
)

// header is the 8-byte block header, overlaid directly on the heap's
// backing bytes. It is never copied out; all access goes through
// unsafe.Pointer arithmetic from a payload address, mirroring how a C
// allocator reinterprets the bytes preceding a pointer.
type header struct {
	size     uint32
	prevSize uint32
}

// headerOf returns the header belonging to the block whose payload starts
// at p.
func headerOf(p unsafe.Pointer) *header {
	return (*header)(unsafe.Pointer(uintptr(p) - headerSize))
}

// successorHeader returns the header of the block immediately following a
// block with payload p and current payload size, i.e. the block living at
// p + size.
func successorHeader(p unsafe.Pointer, size uint32) *header {
	return (*header)(unsafe.Pointer(uintptr(p) + uintptr(size)))
}

// sizeOf returns the payload size of the block at p.
func sizeOf(p unsafe.Pointer) uint32 {
	return headerOf(p).size
}

// prevSizeOf returns the payload size of the block preceding p, free-bit
// masked off.
func prevSizeOf(p unsafe.Pointer) uint32 {
	return headerOf(p).prevSize &^ 1
}

// setSize writes the block at p's own size field.
func setSize(p unsafe.Pointer, size uint32) {
	headerOf(p).size = size
}

// markFree records, in the successor's header, that the block at p (of the
// given payload size) is free.
func markFree(p unsafe.Pointer, size uint32) {
	successorHeader(p, size).prevSize = size | 1
}

// markAllocated records, in the successor's header, that the block at p
// (of the given payload size) is allocated. size is always a multiple of
// Alignment so its low bit is already clear; this just makes that
// explicit at each call site.
func markAllocated(p unsafe.Pointer, size uint32) {
	successorHeader(p, size).prevSize = size &^ 1
}

// isFreeForward reports whether the block immediately following p is
// free. The caller must have verified a successor exists.
//
// A block's own free bit lives one header forward (in its successor's
// prevSize); so the successor's free bit lives two headers forward, in
// the successor's successor's prevSize. Hence the double hop here rather
// than a single successorHeader call.
func isFreeForward(p unsafe.Pointer) bool {
	succ := unsafe.Pointer(uintptr(p) + uintptr(sizeOf(p)) + headerSize)
	return successorHeader(succ, sizeOf(succ)).prevSize&1 != 0
}

// isSelfFree reports whether the block at p is itself currently marked
// free, read via its own successor's prevSize bit (the one-hop form
// markFree/markAllocated write to). The caller must have verified a
// successor exists; for the heap's last block, callers instead read the
// tail probe directly (see Allocator.tailHeader).
func isSelfFree(p unsafe.Pointer) bool {
	return successorHeader(p, sizeOf(p)).prevSize&1 != 0
}

// isFreeBack reports whether the block immediately preceding p is free.
// The caller must have verified a predecessor exists.
func isFreeBack(p unsafe.Pointer) bool {
	return headerOf(p).prevSize&1 != 0
}

// alignUp rounds n up to the nearest multiple of Alignment.
func alignUp(n int) int {
	return (n + (Alignment - 1)) &^ (Alignment - 1)
}

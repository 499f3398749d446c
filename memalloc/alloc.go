package memalloc

import (
	"log"
	"unsafe"
)

// Allocator is the allocation policy engine: Allocate, Free and
// Reallocate built on top of the block layout (header.go) and the
// segregated free-list index (bins.go), sitting on a caller-supplied
// Heap. It is not safe for concurrent use; instantiate one per isolated
// heap rather than sharing process-wide state, per spec's "avoid hidden
// singletons" design note.
type Allocator struct {
	h      Heap
	bins   binTable
	logger *log.Logger
	strict bool
}

// NewAllocator installs the sentinel block at h's low watermark and
// returns an Allocator ready to serve Allocate/Free/Reallocate. h must
// be freshly constructed (Len() == 0); NewAllocator grows it by exactly
// headerSize bytes to make room for the sentinel.
func NewAllocator(h Heap, opts ...Option) (*Allocator, error) {
	if h.Len() != 0 {
		return nil, &ErrInvalid{Msg: "NewAllocator: heap is not empty", Off: h.Len()}
	}
	if !h.Grow(headerSize) {
		return nil, &ErrInvalid{Msg: "NewAllocator: heap too small for sentinel", Off: 0}
	}
	a := &Allocator{h: h, logger: log.Default()}
	for _, opt := range opts {
		opt(a)
	}
	sentinel := unsafe.Pointer(uintptr(h.Lo()) + headerSize)
	setSize(sentinel, 0)
	markAllocated(sentinel, 0)
	return a, nil
}

// isLastBlock reports whether the block at p (of the given payload
// size) is the heap's highest-addressed block, i.e. its successor
// header would sit exactly at the current high watermark rather than
// at a real, previously-placed block.
func (a *Allocator) isLastBlock(p unsafe.Pointer, size uint32) bool {
	return uintptr(p)+uintptr(size) == uintptr(a.h.Hi())
}

// tailHeader returns the header-shaped slack bytes sitting exactly at
// the heap's high watermark. By construction (see Heap's doc comments)
// this is always the address markFree/markAllocated write to when
// marking the heap's current last block, so reading it here is how
// Allocate's heap-tail fast path and isMarkedFree learn a last block's
// status without tracking it separately.
func (a *Allocator) tailHeader() *header {
	return (*header)(a.h.Hi())
}

// isMarkedFree reports whether the block at p is currently marked free,
// whether or not p is the heap's last block.
func (a *Allocator) isMarkedFree(p unsafe.Pointer, size uint32) bool {
	if a.isLastBlock(p, size) {
		return a.tailHeader().prevSize&1 != 0
	}
	return isSelfFree(p)
}

// Allocate returns a payload pointer to a block of at least n bytes, or
// nil on out-of-memory. Payload sizes smaller than minPayload are
// rounded up; n itself is rounded up to Alignment.
func (a *Allocator) Allocate(n int) unsafe.Pointer {
	if n < 0 {
		return nil
	}
	payload := alignUp(n)
	total := payload + headerSize
	if total < minTotalSize {
		total = minTotalSize
		payload = minPayload
	}

	idx := binIndex(total)
	if p := a.searchClass(idx, total); p != nil {
		p = a.place(p, uint32(total))
		a.checkIfStrict()
		return p
	}
	for j := idx + 1; j < binCount; j++ {
		if p := a.bins.headOf(j); p != nil {
			a.bins.remove(j, p)
			p = a.place(p, uint32(total))
			a.checkIfStrict()
			return p
		}
	}

	// Heap-tail fast path (spec step 6): if the last block is free,
	// grow only by the shortfall and convert it in place instead of
	// inserting then immediately re-splitting.
	if last := a.tailHeader(); last.prevSize&1 != 0 {
		prevPayload := last.prevSize &^ 1
		tailBlock := unsafe.Pointer(uintptr(a.h.Hi()) - uintptr(prevPayload))
		need := payload - int(prevPayload)
		if need < 0 {
			need = 0
		}
		idx2 := binIndex(int(prevPayload) + headerSize)
		if !a.h.Grow(need) {
			return nil
		}
		a.bins.remove(idx2, tailBlock)
		setSize(tailBlock, uint32(payload))
		markAllocated(tailBlock, uint32(payload))
		a.checkIfStrict()
		return tailBlock
	}

	// Heap extension (spec step 7).
	oldHi := a.h.Hi()
	if !a.h.Grow(total) {
		return nil
	}
	p := unsafe.Pointer(uintptr(oldHi) + headerSize)
	setSize(p, uint32(payload))
	markAllocated(p, uint32(payload))
	a.checkIfStrict()
	return p
}

// searchClass walks bin[idx] head to tail, removing and returning the
// first block whose total size is at least t, or nil.
func (a *Allocator) searchClass(idx, t int) unsafe.Pointer {
	for p := a.bins.headOf(idx); p != nil; p = nodeOf(p).next {
		if int(sizeOf(p))+headerSize >= t {
			a.bins.remove(idx, p)
			return p
		}
	}
	return nil
}

// place finishes placing a block removed from a bin (or freshly
// carved at the heap tail) as an allocation of at least wantedTotal
// bytes, splitting off a free remainder when the surplus is large
// enough to form its own block.
func (a *Allocator) place(p unsafe.Pointer, wantedTotal uint32) unsafe.Pointer {
	s := sizeOf(p) + headerSize
	finalPayload := sizeOf(p)
	if s-wantedTotal >= minTotalSize {
		p = a.split(p, wantedTotal)
		finalPayload = wantedTotal - headerSize
	}
	markAllocated(p, finalPayload)
	return p
}

// split carves block p (total size s = sizeOf(p)+headerSize) into a
// low-address block of exactly wantedTotal bytes, returned to the
// caller, and a high-address free remainder pushed into its own bin.
// Precondition: p is not in any bin; s >= wantedTotal + minTotalSize.
func (a *Allocator) split(p unsafe.Pointer, wantedTotal uint32) unsafe.Pointer {
	s := sizeOf(p) + headerSize
	remainderTotal := s - wantedTotal
	setSize(p, wantedTotal-headerSize)

	rem := unsafe.Pointer(uintptr(p) + uintptr(wantedTotal))
	remPayload := remainderTotal - headerSize
	setSize(rem, remPayload)
	markFree(rem, remPayload)
	a.bins.insert(binIndex(int(remainderTotal)), rem)
	return p
}

// Free returns the block at p to the heap, coalescing it with any
// free neighbors before reinserting the result into its bin. Freeing
// nil is a no-op; freeing anything else not returned by Allocate is
// undefined behavior, per the package's error model.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	c := a.coalesce(p)
	a.bins.insert(binIndex(int(sizeOf(c))+headerSize), c)
	a.checkIfStrict()
}

// coalesce merges the block at p with its free forward and backward
// neighbors (removing each from its bin as it is absorbed), marks the
// resulting block free, and returns its (possibly shifted) pointer.
// Precondition: p is not in any bin.
func (a *Allocator) coalesce(p unsafe.Pointer) unsafe.Pointer {
	size := sizeOf(p)

	if !a.isLastBlock(p, size) && isFreeForward(p) {
		succ := unsafe.Pointer(uintptr(p) + uintptr(size) + headerSize)
		succSize := sizeOf(succ)
		a.bins.remove(binIndex(int(succSize)+headerSize), succ)
		size += succSize + headerSize
	}

	// The sentinel at heap-low guarantees every real block has a
	// predecessor, so no existence check is needed here.
	if isFreeBack(p) {
		prevSize := prevSizeOf(p)
		prevPtr := unsafe.Pointer(uintptr(p) - uintptr(prevSize) - headerSize)
		a.bins.remove(binIndex(int(prevSize)+headerSize), prevPtr)
		size += prevSize + headerSize
		p = prevPtr
	}

	setSize(p, size)
	markFree(p, size)
	return p
}

// Reallocate resizes the block at p to hold n bytes, preserving its
// contents up to the smaller of the old and new payload sizes. p may
// be nil (equivalent to Allocate(n)); n may be 0 (frees p and returns
// nil). Returns nil on out-of-memory in the fallback copy-and-move
// path, leaving p untouched.
func (a *Allocator) Reallocate(p unsafe.Pointer, n int) unsafe.Pointer {
	if n == 0 {
		a.Free(p)
		return nil
	}
	if p == nil {
		return a.Allocate(n)
	}

	newPayload := uint32(alignUp(n))
	if newPayload < minPayload {
		newPayload = minPayload
	}
	newTotal := newPayload + headerSize
	curPayload := sizeOf(p)

	// Shrink in place. A free successor is absorbed before the split so
	// the freed tail does not end up next to another free block.
	if curPayload >= newPayload {
		if curPayload+headerSize-newTotal >= minTotalSize {
			if !a.isLastBlock(p, curPayload) && isFreeForward(p) {
				succ := unsafe.Pointer(uintptr(p) + uintptr(curPayload) + headerSize)
				succTotal := sizeOf(succ) + headerSize
				a.bins.remove(binIndex(int(succTotal)), succ)
				setSize(p, curPayload+succTotal)
			}
			p = a.split(p, newTotal)
			markAllocated(p, newPayload)
		}
		a.checkIfStrict()
		return p
	}

	// Grow by swallowing a free successor.
	if !a.isLastBlock(p, curPayload) && isFreeForward(p) {
		succ := unsafe.Pointer(uintptr(p) + uintptr(curPayload) + headerSize)
		succPayload := sizeOf(succ)
		succTotal := succPayload + headerSize
		if curPayload+succTotal >= newPayload {
			a.bins.remove(binIndex(int(succTotal)), succ)
			mergedTotal := curPayload + headerSize + succTotal
			if mergedTotal-newTotal >= minTotalSize {
				setSize(p, mergedTotal-headerSize)
				p = a.split(p, newTotal)
				markAllocated(p, newPayload)
			} else {
				finalPayload := mergedTotal - headerSize
				setSize(p, finalPayload)
				markAllocated(p, finalPayload)
			}
			a.checkIfStrict()
			return p
		}
	}

	// Grow at the heap tail.
	if a.isLastBlock(p, curPayload) {
		growBy := int(newPayload) - int(curPayload)
		if a.h.Grow(growBy) {
			setSize(p, newPayload)
			markAllocated(p, newPayload)
			a.checkIfStrict()
			return p
		}
	}

	// Fallback: fresh allocation, copy, free the old block.
	np := a.Allocate(int(newPayload))
	if np == nil {
		return nil
	}
	copySize := curPayload
	if newPayload < copySize {
		copySize = newPayload
	}
	if copySize > 0 {
		dst := unsafe.Slice((*byte)(np), int(copySize))
		src := unsafe.Slice((*byte)(p), int(copySize))
		copy(dst, src)
	}
	a.Free(p)
	return np
}

// checkIfStrict runs Check and logs the first violation found when the
// Allocator was built WithStrictCheck(true). It is the only place
// outside of explicit test code that Check ever runs.
func (a *Allocator) checkIfStrict() {
	if !a.strict {
		return
	}
	if err := a.Check(); err != nil {
		a.logger.Printf("memalloc: invariant violation after mutating op: %v", err)
	}
}

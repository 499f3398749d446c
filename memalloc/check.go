package memalloc

import "unsafe"

// AllocStats summarizes a heap's current occupancy. Modeled on lldb's
// AllocStats, computed from a walk of the bin table and one forward
// walk of the heap's blocks, without the invariant checks of Check.
type AllocStats struct {
	TotalBytes  int
	AllocBytes  int
	AllocBlocks int
	FreeBytes   int
	FreeBlocks  int
}

// Stats reports the heap's current occupancy without running the full
// structural Check.
func (a *Allocator) Stats() AllocStats {
	st := AllocStats{TotalBytes: a.h.Len()}
	for _, slot := range a.bins.report() {
		st.FreeBlocks += slot.Count
	}
	lo := uintptr(a.h.Lo())
	hi := uintptr(a.h.Hi())
	p := unsafe.Pointer(lo + 2*headerSize)
	for uintptr(p)-headerSize < hi {
		size := sizeOf(p)
		if a.isMarkedFree(p, size) {
			st.FreeBytes += int(size) + headerSize
		} else {
			st.AllocBytes += int(size) + headerSize
			st.AllocBlocks++
		}
		p = unsafe.Pointer(uintptr(p) + uintptr(size) + headerSize)
	}
	return st
}

// Check walks the heap from low to high verifying the block-chain
// invariants (size/alignment bounds, header consistency, coverage),
// then walks every bin verifying free-bit truth, bin placement and
// maximal coalescing. It reports the first structural problem found,
// or nil if every invariant holds.
//
// Grounded on lldb.Allocator.Verify's two-pass structure (scan the
// backing store, then scan the free lists), reporting only the first
// failure the way Verify's diagnostic mode does. Intended for test
// mode only, per spec.md's error model: Check is never on the normal
// allocate/free path unless the Allocator was built WithStrictCheck.
func (a *Allocator) Check() error {
	if err := a.checkChain(); err != nil {
		return err
	}
	return a.checkBins()
}

// checkChain verifies invariants 1-3: size/alignment bounds on every
// block, header consistency between adjacent blocks, and that the
// forward walk from heap-low reaches exactly heap-high.
func (a *Allocator) checkChain() error {
	lo := uintptr(a.h.Lo())
	hi := uintptr(a.h.Hi())
	p := unsafe.Pointer(lo + 2*headerSize)
	for uintptr(p)-headerSize < hi {
		off := int(uintptr(p) - lo)
		size := sizeOf(p)
		total := size + headerSize
		if size%Alignment != 0 || size < minPayload || total < minTotalSize {
			return &ErrCorrupt{Msg: "block fails size/alignment invariant", Off: off}
		}
		next := unsafe.Pointer(uintptr(p) + uintptr(size) + headerSize)
		if prevSizeOf(next) != size {
			return &ErrCorrupt{Msg: "header consistency invariant violated", Off: off}
		}
		p = next
	}
	if uintptr(p)-headerSize != hi {
		return &ErrCorrupt{Msg: "forward walk did not reach heap-high exactly", Off: int(uintptr(p) - lo)}
	}
	return nil
}

// checkBins verifies invariants 4-6: every bin member is actually
// marked free, is indexed under the bin its own size maps to, and has
// no free neighbor on either side (maximal coalescing).
func (a *Allocator) checkBins() error {
	lo := uintptr(a.h.Lo())
	for i := 0; i < binCount; i++ {
		for p := a.bins.headOf(i); p != nil; p = nodeOf(p).next {
			size := sizeOf(p)
			off := int(uintptr(p) - lo)
			if !a.isMarkedFree(p, size) {
				return &ErrCorrupt{Msg: "bin member not marked free", Off: off}
			}
			if binIndex(int(size)+headerSize) != i {
				return &ErrCorrupt{Msg: "block indexed in wrong bin", Off: off}
			}
			if isFreeBack(p) {
				return &ErrCorrupt{Msg: "adjacent free blocks (backward) violate maximal coalescing", Off: off}
			}
			if !a.isLastBlock(p, size) && isFreeForward(p) {
				return &ErrCorrupt{Msg: "adjacent free blocks (forward) violate maximal coalescing", Off: off}
			}
		}
	}
	return nil
}

package memalloc

import (
	"math/bits"
	"sort"
	"unsafe"
)

// Segregated free-list index: binCount doubly linked lists of free blocks,
// one per power-of-two size class, indexed by binIndex. Lists are LIFO —
// insert and remove are O(1); there is no ordering by size within a bin.

const (
	minSizeShift = 5  // MIN_SIZE in spec.md's vocabulary
	sizeLimit    = 32 // SIZE_LIMIT
	binCount     = sizeLimit - minSizeShift
	binOffset    = sizeLimit - minSizeShift - 1
)

// freeNode is the doubly linked free-list node overlaid on a free block's
// first 16 payload bytes. This is why minPayload must be >= 16.
type freeNode struct {
	prev, next unsafe.Pointer // payload pointers of neighboring free blocks
}

func nodeOf(p unsafe.Pointer) *freeNode {
	return (*freeNode)(p)
}

// binIndex returns the bin a free block of the given total size (header +
// payload) belongs to: floor(log2(total)) - minSizeShift, clamped into
// [0, binCount-1].
func binIndex(total int) int {
	idx := binOffset - bits.LeadingZeros32(uint32(total))
	switch {
	case idx < 0:
		return 0
	case idx > binCount-1:
		return binCount - 1
	default:
		return idx
	}
}

// binTable is the bin array proper: binCount list heads. It carries no
// knowledge of the heap it indexes — every method takes the block payload
// pointers it needs.
type binTable struct {
	head [binCount]unsafe.Pointer
}

// insert pushes p at the head of bin idx.
func (t *binTable) insert(idx int, p unsafe.Pointer) {
	n := nodeOf(p)
	n.prev = nil
	n.next = t.head[idx]
	if t.head[idx] != nil {
		nodeOf(t.head[idx]).prev = p
	}
	t.head[idx] = p
}

// remove unlinks p from bin idx.
func (t *binTable) remove(idx int, p unsafe.Pointer) {
	n := nodeOf(p)
	if n.prev != nil {
		nodeOf(n.prev).next = n.next
	} else {
		t.head[idx] = n.next
	}
	if n.next != nil {
		nodeOf(n.next).prev = n.prev
	}
	n.prev, n.next = nil, nil
}

// headOf returns the head of bin idx, or nil if empty.
func (t *binTable) headOf(idx int) unsafe.Pointer {
	return t.head[idx]
}

// binSlot is one reportable row of a binTable: the size class it covers
// and how many free blocks currently sit in it. Modeled on lldb's
// FLTSlot, minus the persistence-specific Head/SetHead accessors that
// only make sense for a file-backed free-list table.
type binSlot struct {
	Index   int
	MinSize int
	Count   int
}

// report walks every bin and returns one binSlot per class, sorted by
// MinSize, for diagnostics and Allocator.Stats. It is O(number of free
// blocks), not O(1), and is not on any hot allocation path.
func (t *binTable) report() []binSlot {
	slots := make([]binSlot, 0, binCount)
	for i := 0; i < binCount; i++ {
		n := 0
		for p := t.head[i]; p != nil; p = nodeOf(p).next {
			n++
		}
		slots = append(slots, binSlot{Index: i, MinSize: minSizeForBin(i), Count: n})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].MinSize < slots[j].MinSize })
	return slots
}

// minSizeForBin returns the smallest total size that maps to bin i.
func minSizeForBin(i int) int {
	if i == 0 {
		return 0
	}
	return 1 << uint(minSizeShift+i)
}

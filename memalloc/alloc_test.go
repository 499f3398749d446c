package memalloc

import (
	"testing"
	"unsafe"
)

func newTestAllocator(t *testing.T, capacity int) *Allocator {
	t.Helper()
	h := NewArenaHeap(capacity)
	a, err := NewAllocator(h, WithStrictCheck(true))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAllocateZeroReturnsMinimumBlock(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Allocate(0)
	if p == nil {
		t.Fatal("allocate(0) must not fail")
	}
	if g, e := sizeOf(p), uint32(minPayload); g != e {
		t.Fatal(g, e)
	}
	a.Free(p)
}

func TestAllocateGrowsHeapOnFirstCall(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	before := a.h.Len()
	p := a.Allocate(40)
	if p == nil {
		t.Fatal("allocate must succeed")
	}
	if a.h.Len() <= before {
		t.Fatal("first allocate must extend the heap")
	}
}

func TestFreeAllocateReuse(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p1 := a.Allocate(100)
	hiBefore := a.h.Hi()
	a.Free(p1)
	p2 := a.Allocate(100)
	if p2 != p1 {
		t.Fatal("expected reuse of the just-freed block")
	}
	if a.h.Hi() != hiBefore {
		t.Fatal("reuse must not grow the heap")
	}
}

func TestSplitOnOversizeFit(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p1 := a.Allocate(200)
	a.Free(p1)
	p2 := a.Allocate(40)
	if p2 != p1 {
		t.Fatal("expected the oversize free block to be split and reused")
	}
	remainderTotal := 200 + headerSize - (40 + headerSize)
	idx := binIndex(remainderTotal)
	found := false
	for q := a.bins.headOf(idx); q != nil; q = nodeOf(q).next {
		if int(sizeOf(q))+headerSize == remainderTotal {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a free remainder of total size %d in bin %d", remainderTotal, idx)
	}
}

func TestCoalesceForwardAndBackward(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	x := a.Allocate(64)
	y := a.Allocate(64)
	z := a.Allocate(64)
	a.Free(x)
	a.Free(z)
	a.Free(y)

	want := 64*3 + headerSize*3
	idx := binIndex(want)
	found := false
	for q := a.bins.headOf(idx); q != nil; q = nodeOf(q).next {
		if int(sizeOf(q))+headerSize == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a single coalesced free block of total size %d", want)
	}
}

func TestTailGrowthReuse(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Allocate(32)
	q := a.Allocate(32)
	a.Free(q)
	hiBefore := a.h.Hi()
	r := a.Allocate(64)
	if r != q {
		t.Fatal("expected the tail-reuse fast path to return the freed block's address")
	}
	if g, e := sizeOf(r), uint32(64); g != e {
		t.Fatal(g, e)
	}
	grew := uintptr(a.h.Hi()) - uintptr(hiBefore)
	if grew != 32 {
		t.Fatalf("expected exactly 32 bytes of heap extension, got %d", grew)
	}
	_ = p
}

func TestReallocateInPlaceGrowBySwallowingSuccessor(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	x := a.Allocate(40)
	y := a.Allocate(40)
	_ = a.Allocate(40)
	a.Free(y)
	hiBefore := a.h.Hi()
	x2 := a.Reallocate(x, 80)
	if x2 != x {
		t.Fatal("expected in-place growth by swallowing the freed successor")
	}
	if a.h.Hi() != hiBefore {
		t.Fatal("swallowing a successor must not grow the heap")
	}
}

func TestReallocateCopyAndMove(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	x := a.Allocate(16)
	_ = a.Allocate(16)
	src := unsafe.Slice((*byte)(x), 16)
	for i := range src {
		src[i] = byte(i)
	}
	x2 := a.Reallocate(x, 64)
	if x2 == x {
		t.Fatal("expected the block to move")
	}
	dst := unsafe.Slice((*byte)(x2), 16)
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("byte %d not preserved across move: got %d want %d", i, dst[i], i)
		}
	}
}

func TestReallocateSameSizeIsNoop(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	x := a.Allocate(48)
	x2 := a.Reallocate(x, int(sizeOf(x)))
	if x2 != x {
		t.Fatal("reallocate to the current payload size must return the same pointer")
	}
}

func TestReallocateZeroFreesAndReturnsNil(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	x := a.Allocate(48)
	if g := a.Reallocate(x, 0); g != nil {
		t.Fatal("reallocate(_, 0) must return nil")
	}
}

func TestReallocateNilIsAllocate(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Reallocate(nil, 48)
	if p == nil {
		t.Fatal("reallocate(nil, n) must behave like allocate(n)")
	}
}

func TestRepeatedAllocFreeDoesNotGrowHeap(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Allocate(56)
	a.Free(p)
	hiBefore := a.h.Hi()
	for i := 0; i < 100; i++ {
		p = a.Allocate(56)
		a.Free(p)
	}
	if a.h.Hi() != hiBefore {
		t.Fatal("repeated same-size alloc/free must not grow the heap after the first iteration")
	}
}

package memalloc

import (
	"math/rand"
	"testing"
	"unsafe"
)

func TestCheckPassesOnFreshHeap(t *testing.T) {
	a := newTestAllocator(t, 1<<12)
	if err := a.Check(); err != nil {
		t.Fatal(err)
	}
}

// TestCheckFuzz drives a random sequence of allocate/free/reallocate
// calls and verifies every structural invariant holds after each one,
// the way spec.md's fuzz-driver property ("check after every
// operation") describes. Grounded on lldb.Allocator.Verify's role as a
// test-mode-only structural auditor, driven here by a seeded
// math/rand source for reproducibility, matching memfiler_test.go's
// own fuzzing style.
func TestCheckFuzz(t *testing.T) {
	a := newTestAllocator(t, 1<<20)
	// Disable the strict per-op check: this test drives its own,
	// identical check after every step, and running it twice would
	// just be wasted work.
	a.strict = false

	rng := rand.New(rand.NewSource(1))
	var live []unsafe.Pointer

	for i := 0; i < 2000; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			n := rng.Intn(256)
			p := a.Allocate(n)
			if p == nil {
				t.Fatalf("iteration %d: unexpected out-of-memory allocating %d bytes", i, n)
			}
			live = append(live, p)
		case op == 1:
			idx := rng.Intn(len(live))
			a.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		default:
			idx := rng.Intn(len(live))
			n := rng.Intn(256)
			p := a.Reallocate(live[idx], n)
			if p == nil && n != 0 {
				t.Fatalf("iteration %d: unexpected out-of-memory reallocating %d bytes", i, n)
			}
			if n == 0 {
				live[idx] = live[len(live)-1]
				live = live[:len(live)-1]
			} else {
				live[idx] = p
			}
		}
		if err := a.Check(); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
	}
}

func TestStatsAccountForAllocatedAndFreeBytes(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Allocate(56)
	q := a.Allocate(56)
	a.Free(q)

	st := a.Stats()
	if st.AllocBlocks != 1 {
		t.Fatalf("expected 1 allocated block, got %d", st.AllocBlocks)
	}
	if st.FreeBlocks != 1 {
		t.Fatalf("expected 1 free block, got %d", st.FreeBlocks)
	}
	if st.AllocBytes != int(sizeOf(p))+headerSize {
		t.Fatalf("unexpected AllocBytes: %d", st.AllocBytes)
	}
}

// Package memalloc implements a single-threaded, segregated-fit memory
// allocator for a single contiguous, monotonically-growing heap region.
//
// The package sits directly on top of a Heap, a small interface modeling
// an `sbrk`-like heap-extension primitive: grow the break, and report the
// current low/high watermarks. Everything interesting lives above that
// line: the in-heap block layout, the 27-bin segregated free-list index,
// and the allocation policy engine (Allocate, Free, Reallocate) built on
// first-fit-within-class search, split/place, immediate bidirectional
// coalescing and heap-tail reuse.
//
// Terminology
//
// A block is a header immediately followed by a payload. The header is 8
// bytes: a 32-bit size (the payload's size, excluding the header) and a
// 32-bit prevSize whose low bit doubles as the *predecessor* block's free
// flag. Total size means payload size plus the 8-byte header. A bin is one
// of 27 doubly linked lists of free blocks, indexed by the floor-log2 of
// a block's total size. Coalesce means merging two address-adjacent free
// blocks into one; split means carving an oversize block into an allocated
// low part and a free high remainder, which is reinserted into its bin.
//
// A size-0 sentinel block sits at the heap's low watermark so that "is the
// previous block free" queries never need a boundary check.
//
// Concurrency
//
// An Allocator is not safe for concurrent use. It offers no internal
// locking, the way a bare free-space manager in a systems language would
// not; callers needing concurrent access must serialize it themselves.
package memalloc

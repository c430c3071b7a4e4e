// Package allocator implements the allocation engines: a linear (bump)
// allocator and a free-list allocator with first-fit or best-fit
// placement, both working inside a fixed memalloc.Region. Generic helpers
// layer typed allocation on top of either engine.
package allocator

import "unsafe"

// Allocator carves suballocations out of a fixed memalloc.Region. Raw
// pointers are handed straight into the region, so the allocator (and its
// region) must stay reachable for as long as any returned pointer is in
// use.
//
// Allocators are single-threaded: no operation may run concurrently with
// any other operation on the same allocator. They are also bound to the
// address of their backing region and must not be copied once used.
type Allocator interface {
	// Allocate returns a pointer to size bytes whose address is a multiple
	// of alignment, or an error when the request cannot be satisfied. A
	// failed request leaves the allocator unchanged.
	Allocate(size int, alignment uint) (unsafe.Pointer, error)
	// Deallocate releases a pointer previously returned by Allocate. A nil
	// pointer is a no-op. Engines that do not support individual release
	// treat every call as a no-op.
	Deallocate(ptr unsafe.Pointer)
	// Reset instantly discards every outstanding allocation and restores
	// the allocator to its initial state. Pointers handed out earlier are
	// silently invalidated.
	Reset()
	// Used returns the number of bytes currently accounted to outstanding
	// allocations. Constant time.
	Used() int
	// Free returns the capacity not accounted to outstanding allocations.
	// Constant time.
	Free() int
}

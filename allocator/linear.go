package allocator

import (
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"

	"github.com/ambertav/memory-allocators/memalloc"
)

// LinearAllocator is a monotonic bump allocator over a fixed region.
// Allocations only move the offset forward; space comes back through Reset
// or by resizing the most recent allocation in place. Individual
// Deallocate is a no-op.
//
// The engine aligns byte offsets, not absolute addresses: a returned
// pointer is a multiple of the requested alignment whenever the region
// base is at least that aligned.
type LinearAllocator struct {
	region *memalloc.Region

	offset         int
	previousOffset int

	// Requested size of every live allocation, in allocation order; the
	// last entry is the one ResizeLast may change.
	allocationSizes []int
}

var _ Allocator = &LinearAllocator{}

// NewLinearAllocator creates a bump allocator over region. The region's
// capacity is fixed for the allocator's lifetime.
func NewLinearAllocator(region *memalloc.Region) *LinearAllocator {
	return &LinearAllocator{region: region}
}

// Allocate reserves size bytes at the next offset that is a multiple of
// alignment. Failure leaves the allocator untouched.
func (a *LinearAllocator) Allocate(size int, alignment uint) (unsafe.Pointer, error) {
	if !memalloc.ValidAlignment(alignment) {
		return nil, errors.Wrapf(memalloc.ErrInvalidAlignment, "alignment is %d", alignment)
	}
	if size < 0 {
		return nil, errors.Wrapf(memalloc.ErrSizeOverflow, "size is %d", size)
	}
	memalloc.DebugValidate(a)

	aligned := memalloc.AlignUp(a.offset, alignment)
	if aligned < a.offset {
		return nil, errors.Wrapf(memalloc.ErrOutOfMemory, "aligning offset %d to %d overflows", a.offset, alignment)
	}

	newOffset := aligned + size
	if newOffset < aligned || newOffset > a.region.Len() {
		return nil, errors.Wrapf(memalloc.ErrOutOfMemory, "%d bytes requested with %d free", size, a.region.Len()-a.offset)
	}

	a.previousOffset = aligned
	a.offset = newOffset
	a.allocationSizes = append(a.allocationSizes, size)
	return unsafe.Add(a.region.Base(), aligned), nil
}

// Deallocate is not supported by the linear engine and does nothing. Use
// Reset, or ResizeLast for the most recent allocation.
func (a *LinearAllocator) Deallocate(ptr unsafe.Pointer) {
}

// Reset rewinds the allocator to an empty region. The backing bytes are not
// zeroed; callers must not read stale data through new allocations.
func (a *LinearAllocator) Reset() {
	a.offset = 0
	a.previousOffset = 0
	a.allocationSizes = a.allocationSizes[:0]
}

// ResizeLast grows or shrinks the most recent allocation in place. ptr must
// be the pointer returned by the latest Allocate, at the same alignment;
// anything else fails with ErrResizeMismatch and no state change. After a
// grow, bytes at or above the old size are undefined.
func (a *LinearAllocator) ResizeLast(ptr unsafe.Pointer, newSize int, alignment uint) (unsafe.Pointer, error) {
	if !memalloc.ValidAlignment(alignment) {
		return nil, errors.Wrapf(memalloc.ErrInvalidAlignment, "alignment is %d", alignment)
	}
	if newSize < 0 {
		return nil, errors.Wrapf(memalloc.ErrSizeOverflow, "size is %d", newSize)
	}
	memalloc.DebugValidate(a)

	previousAligned := memalloc.AlignUp(a.previousOffset, alignment)
	if previousAligned < a.previousOffset {
		return nil, errors.Wrapf(memalloc.ErrOutOfMemory, "aligning offset %d to %d overflows", a.previousOffset, alignment)
	}
	if unsafe.Add(a.region.Base(), previousAligned) != ptr {
		return nil, errors.Wrapf(memalloc.ErrResizeMismatch, "offset of the most recent allocation is %d", a.previousOffset)
	}

	newOffset := previousAligned + newSize
	if newOffset < previousAligned || newOffset > a.region.Len() {
		return nil, errors.Wrapf(memalloc.ErrOutOfMemory, "%d bytes requested with %d free past the allocation", newSize, a.region.Len()-previousAligned)
	}

	a.offset = newOffset
	if len(a.allocationSizes) > 0 {
		a.allocationSizes[len(a.allocationSizes)-1] = newSize
	}
	return ptr, nil
}

// Used returns the high-water offset, padding included.
func (a *LinearAllocator) Used() int {
	return a.offset
}

func (a *LinearAllocator) Free() int {
	return a.region.Len() - a.offset
}

// AllocationCount returns the number of live allocations since the last
// Reset.
func (a *LinearAllocator) AllocationCount() int {
	return len(a.allocationSizes)
}

// Region exposes the backing region, mainly for teardown of owned regions.
func (a *LinearAllocator) Region() *memalloc.Region {
	return a.region
}

// Validate performs internal consistency checks on the bump state.
func (a *LinearAllocator) Validate() error {
	if a.previousOffset > a.offset {
		return errors.Errorf("the most recent allocation starts at %d, past the bump offset %d", a.previousOffset, a.offset)
	}

	if a.offset > a.region.Len() {
		return errors.Errorf("the bump offset %d is past the region capacity %d", a.offset, a.region.Len())
	}

	return nil
}

// AddStatistics sums this allocator's usage into stats. AllocationBytes
// grows by the bump offset, alignment padding included.
func (a *LinearAllocator) AddStatistics(stats *memalloc.Statistics) {
	stats.RegionCount++
	stats.AllocationCount += len(a.allocationSizes)
	stats.RegionBytes += a.region.Len()
	stats.AllocationBytes += a.offset
}

// AddDetailedStatistics sums this allocator's usage into stats, recording
// every live allocation's requested size. The linear engine has a single
// free range: the tail above the bump offset.
func (a *LinearAllocator) AddDetailedStatistics(stats *memalloc.DetailedStatistics) {
	stats.RegionCount++
	stats.RegionBytes += a.region.Len()

	for _, size := range a.allocationSizes {
		stats.AddAllocation(size)
	}

	if tail := a.Free(); tail > 0 {
		stats.AddFreeRange(tail)
	}
}

// BuildStatsString renders the allocator state as a JSON document.
func (a *LinearAllocator) BuildStatsString() string {
	writer := jwriter.NewWriter()

	obj := writer.Object()
	obj.Name("TotalBytes").Int(a.region.Len())
	obj.Name("UsedBytes").Int(a.offset)
	obj.Name("Allocations").Int(len(a.allocationSizes))

	ranges := obj.Name("FreeRanges").Array()
	if tail := a.Free(); tail > 0 {
		rangeObj := ranges.Object()
		rangeObj.Name("Offset").Int(a.offset)
		rangeObj.Name("Size").Int(tail)
		rangeObj.End()
	}
	ranges.End()
	obj.End()

	return string(writer.Bytes())
}

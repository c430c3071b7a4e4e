package allocator

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"github.com/ambertav/memory-allocators/memalloc"
)

// FreeListAllocator is a general-purpose engine over a fixed region:
// allocations and releases may come in any order. Free space is tracked by
// a singly-linked list of freeNode records stored in place inside the
// region, kept sorted by ascending address. Allocation splits the fitted
// block when the tail can still hold a node header and at least one usable
// byte; release merges the
// block with either or both neighbours, so no two adjacent free blocks
// survive a Deallocate.
//
// The engine aligns absolute addresses, so a returned pointer is a multiple
// of the requested alignment regardless of how the region base is aligned.
type FreeListAllocator struct {
	region *memalloc.Region
	fit    FitStrategy

	used       int
	allocCount int
	head       uintptr

	// Consumed span of every outstanding allocation, keyed by user
	// address. Diagnostics only; the engine's semantics come from the
	// in-place headers.
	allocations *swiss.Map[uintptr, int]
}

var _ Allocator = &FreeListAllocator{}

// NewFreeListAllocator creates a free-list allocator over region with the
// given placement strategy. The region must be larger than one free node
// header; a region of nodeSize bytes or fewer fails with ErrOutOfMemory.
func NewFreeListAllocator(region *memalloc.Region, fit FitStrategy) (*FreeListAllocator, error) {
	if region.Len() <= nodeSize {
		return nil, errors.Wrapf(memalloc.ErrOutOfMemory, "a %d-byte region cannot hold a %d-byte free node", region.Len(), nodeSize)
	}

	a := &FreeListAllocator{region: region, fit: fit}
	a.Reset()
	return a, nil
}

func (a *FreeListAllocator) nodeAt(addr uintptr) *freeNode {
	return (*freeNode)(unsafe.Add(a.region.Base(), int(addr-a.region.BaseAddr())))
}

func (a *FreeListAllocator) headerAt(addr uintptr) *allocationHeader {
	return (*allocationHeader)(unsafe.Add(a.region.Base(), int(addr-a.region.BaseAddr())))
}

// allocationRequirements computes where the user pointer would land inside
// the free node at addr, and the usable bytes the request consumes there
// (size plus alignment padding; the reclaimed node header is not counted).
// The alignment is raised to at least the node header's own alignment, so
// the allocation header in front of the user pointer is word-aligned (a
// split node still lands wherever the requested size ends), and the padding
// is grown until the allocation header fits in front of the user pointer.
func allocationRequirements(addr uintptr, size int, alignment uint) (aligned uintptr, required int) {
	raw := addr + uintptr(nodeSize)

	effective := alignment
	if effective < nodeAlign {
		effective = nodeAlign
	}

	aligned = memalloc.AlignUpAddr(raw, effective)
	for aligned-raw < uintptr(headerSize) {
		aligned += uintptr(effective)
	}

	return aligned, size + int(aligned-raw)
}

// findFirstFit walks from the head and returns the first node that can hold
// the request, with its predecessor. Both are 0 when nothing fits.
func (a *FreeListAllocator) findFirstFit(size int, alignment uint) (prev, cur uintptr) {
	for cur = a.head; cur != 0; prev, cur = cur, a.nodeAt(cur).next {
		_, required := allocationRequirements(cur, size, alignment)
		if required >= size && a.nodeAt(cur).size >= required {
			return prev, cur
		}
	}

	return 0, 0
}

// findBestFit walks the whole list tracking the node with the least slack.
// An exact fit stops the walk; ties keep the first node encountered, which
// is the lowest address since the list is address-ordered.
func (a *FreeListAllocator) findBestFit(size int, alignment uint) (prev, cur uintptr) {
	minSlack := math.MaxInt
	var bestPrev, best uintptr

	var p uintptr
	for c := a.head; c != 0; p, c = c, a.nodeAt(c).next {
		_, required := allocationRequirements(c, size, alignment)
		if required < size || a.nodeAt(c).size < required {
			continue
		}

		slack := a.nodeAt(c).size - required
		if slack == 0 {
			return p, c
		}

		if slack < minSlack {
			minSlack = slack
			bestPrev = p
			best = c
		}
	}

	return bestPrev, best
}

// Allocate reserves size bytes at an address that is a multiple of
// alignment, searching the free list with the configured fit strategy.
// Failure leaves the allocator untouched.
func (a *FreeListAllocator) Allocate(size int, alignment uint) (unsafe.Pointer, error) {
	if !memalloc.ValidAlignment(alignment) {
		return nil, errors.Wrapf(memalloc.ErrInvalidAlignment, "alignment is %d", alignment)
	}
	if size < 0 {
		return nil, errors.Wrapf(memalloc.ErrSizeOverflow, "size is %d", size)
	}
	memalloc.DebugValidate(a)

	var prev, cur uintptr
	switch a.fit {
	case FitBest:
		prev, cur = a.findBestFit(size, alignment)
	default:
		prev, cur = a.findFirstFit(size, alignment)
	}
	if cur == 0 {
		return nil, errors.Wrapf(memalloc.ErrOutOfMemory, "no free range fits %d bytes aligned to %d", size, alignment)
	}

	aligned, required := allocationRequirements(cur, size, alignment)
	node := a.nodeAt(cur)
	padding := int(aligned - cur - uintptr(nodeSize))
	remaining := node.size - required

	next := node.next
	consumed := required
	if remaining > nodeSize {
		// Carve the tail into a new free node; it takes cur's place in the
		// list.
		split := cur + uintptr(nodeSize) + uintptr(required)
		splitNode := a.nodeAt(split)
		splitNode.size = remaining - nodeSize
		splitNode.next = node.next
		next = split
	} else {
		// The tail cannot hold a node header followed by at least one usable
		// byte, so the allocation absorbs the slack. Recording the absorbed span in the header lets Deallocate
		// return the whole block instead of leaking the tail.
		consumed = node.size
	}

	if prev == 0 {
		a.head = next
	} else {
		a.nodeAt(prev).next = next
	}

	hdr := a.headerAt(aligned - uintptr(headerSize))
	hdr.blockSize = consumed
	hdr.padding = padding

	a.used += consumed
	a.allocCount++
	a.allocations.Put(aligned, consumed)
	return unsafe.Add(a.region.Base(), int(aligned-a.region.BaseAddr())), nil
}

// Deallocate returns an allocation to the free list, merging it with
// adjacent free blocks. A nil pointer is a no-op. A pointer outside the
// backing region is a fatal programming error and panics; an in-bounds
// pointer that was not returned by Allocate is undefined behavior.
func (a *FreeListAllocator) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	addr := uintptr(ptr)
	base := a.region.BaseAddr()
	end := base + uintptr(a.region.Len())
	if addr < base || addr > end {
		panic(fmt.Sprintf("freelist: pointer is out of bounds: %#x not in [%#x, %#x]", addr, base, end))
	}
	memalloc.DebugValidate(a)

	hdr := a.headerAt(addr - uintptr(headerSize))
	blockSize := hdr.blockSize
	blockStart := addr - uintptr(hdr.padding) - uintptr(nodeSize)
	blockEnd := blockStart + uintptr(nodeSize) + uintptr(blockSize)

	// Insertion point: prev is the last free node before the block, cur the
	// first after it.
	var prev uintptr
	cur := a.head
	for cur != 0 && cur < addr {
		prev, cur = cur, a.nodeAt(cur).next
	}

	adjPrev := prev != 0 && prev+uintptr(nodeSize)+uintptr(a.nodeAt(prev).size) == blockStart
	adjCur := cur != 0 && cur == blockEnd

	switch {
	case adjPrev && adjCur:
		// The freed block bridges prev and cur; both node headers fold into
		// prev's span.
		prevNode := a.nodeAt(prev)
		curNode := a.nodeAt(cur)
		prevNode.size += nodeSize + blockSize + nodeSize + curNode.size
		prevNode.next = curNode.next
	case adjPrev:
		a.nodeAt(prev).size += nodeSize + blockSize
	case adjCur:
		// The block's header byte range becomes a node header again and the
		// node extends over cur, absorbing cur's header.
		curNode := a.nodeAt(cur)
		node := a.nodeAt(blockStart)
		node.size = blockSize + nodeSize + curNode.size
		node.next = curNode.next
		if prev == 0 {
			a.head = blockStart
		} else {
			a.nodeAt(prev).next = blockStart
		}
	default:
		node := a.nodeAt(blockStart)
		node.size = blockSize
		node.next = cur
		if prev == 0 {
			a.head = blockStart
		} else {
			a.nodeAt(prev).next = blockStart
		}
	}

	a.used -= blockSize
	a.allocCount--
	a.allocations.Delete(addr)
}

// Reset restores the single-node initial state: one free block spanning the
// region and nothing in use. Outstanding pointers are silently invalidated.
func (a *FreeListAllocator) Reset() {
	head := a.region.BaseAddr()
	node := a.nodeAt(head)
	node.size = a.region.Len() - nodeSize
	node.next = 0

	a.head = head
	a.used = 0
	a.allocCount = 0
	a.allocations = swiss.NewMap[uintptr, int](42)
}

// Used returns the bytes accounted to outstanding allocations, padding
// included. Constant time.
func (a *FreeListAllocator) Used() int {
	return a.used
}

func (a *FreeListAllocator) Free() int {
	return a.region.Len() - a.used
}

// AllocationCount returns the number of outstanding allocations.
func (a *FreeListAllocator) AllocationCount() int {
	return a.allocCount
}

// FreeRegionsCount returns the length of the free list. Linear in the list
// length.
func (a *FreeListAllocator) FreeRegionsCount() int {
	count := 0
	for cur := a.head; cur != 0; cur = a.nodeAt(cur).next {
		count++
	}

	return count
}

// Strategy returns the placement strategy fixed at construction.
func (a *FreeListAllocator) Strategy() FitStrategy {
	return a.fit
}

// Region exposes the backing region, mainly for teardown of owned regions.
func (a *FreeListAllocator) Region() *memalloc.Region {
	return a.region
}

// Validate performs internal consistency checks on the free list: address
// order, region bounds, no uncoalesced neighbours, no cycles, and byte
// accounting. When the engine is functioning correctly it cannot fail, but
// it may assist in diagnosing memory corruption by a misbehaving caller.
func (a *FreeListAllocator) Validate() error {
	base := a.region.BaseAddr()
	end := base + uintptr(a.region.Len())

	seen := swiss.NewMap[uintptr, struct{}](42)
	freeBytes := 0
	freeCount := 0

	var prev uintptr
	for cur := a.head; cur != 0; cur = a.nodeAt(cur).next {
		if _, ok := seen.Get(cur); ok {
			return errors.Errorf("free list cycles back to the node at offset %d", cur-base)
		}
		seen.Put(cur, struct{}{})

		if cur < base || cur+uintptr(nodeSize) > end {
			return errors.Errorf("free node at offset %d is outside the region", int(cur)-int(base))
		}

		node := a.nodeAt(cur)
		if node.size < 0 {
			return errors.Errorf("free node at offset %d has negative size %d", cur-base, node.size)
		}
		if cur+uintptr(nodeSize)+uintptr(node.size) > end {
			return errors.Errorf("free node at offset %d runs %d bytes past the region", cur-base, int(cur+uintptr(nodeSize)+uintptr(node.size))-int(end))
		}

		if prev != 0 {
			if cur <= prev {
				return errors.Errorf("free list is not sorted by address: offset %d follows offset %d", cur-base, prev-base)
			}

			prevEnd := prev + uintptr(nodeSize) + uintptr(a.nodeAt(prev).size)
			if prevEnd == cur {
				return errors.Errorf("adjacent free nodes at offsets %d and %d were not coalesced", prev-base, cur-base)
			}
			if prevEnd > cur {
				return errors.Errorf("free nodes at offsets %d and %d overlap", prev-base, cur-base)
			}
		}

		freeBytes += node.size
		freeCount++
		prev = cur
	}

	if a.used < 0 || a.used > a.region.Len() {
		return errors.Errorf("used byte count %d is outside the region capacity %d", a.used, a.region.Len())
	}

	accounted := a.used + freeBytes + (freeCount+a.allocCount)*nodeSize
	if accounted != a.region.Len() {
		return errors.Errorf("the region holds %d bytes but the free list and allocations account for %d", a.region.Len(), accounted)
	}

	if a.allocations.Count() != a.allocCount {
		return errors.Errorf("the allocation count is %d but %d outstanding allocations are on record", a.allocCount, a.allocations.Count())
	}

	return nil
}

// AddStatistics sums this allocator's usage into stats.
func (a *FreeListAllocator) AddStatistics(stats *memalloc.Statistics) {
	stats.RegionCount++
	stats.AllocationCount += a.allocCount
	stats.RegionBytes += a.region.Len()
	stats.AllocationBytes += a.used
}

// AddDetailedStatistics sums this allocator's usage into stats, recording
// every outstanding allocation's consumed span and walking the free list to
// record every free range.
func (a *FreeListAllocator) AddDetailedStatistics(stats *memalloc.DetailedStatistics) {
	stats.RegionCount++
	stats.RegionBytes += a.region.Len()

	a.allocations.Iter(func(_ uintptr, size int) bool {
		stats.AddAllocation(size)
		return false
	})

	for cur := a.head; cur != 0; cur = a.nodeAt(cur).next {
		stats.AddFreeRange(a.nodeAt(cur).size)
	}
}

// BuildStatsString renders the allocator state, free range by free range,
// as a JSON document.
func (a *FreeListAllocator) BuildStatsString() string {
	base := a.region.BaseAddr()
	writer := jwriter.NewWriter()

	obj := writer.Object()
	obj.Name("TotalBytes").Int(a.region.Len())
	obj.Name("UsedBytes").Int(a.used)
	obj.Name("Allocations").Int(a.allocCount)
	obj.Name("FitStrategy").String(a.fit.String())

	ranges := obj.Name("FreeRanges").Array()
	for cur := a.head; cur != 0; cur = a.nodeAt(cur).next {
		rangeObj := ranges.Object()
		rangeObj.Name("Offset").Int(int(cur - base))
		rangeObj.Name("Size").Int(a.nodeAt(cur).size)
		rangeObj.End()
	}
	ranges.End()
	obj.End()

	return string(writer.Bytes())
}

// DebugLogAllFreeRanges calls logFunc for every free range in address
// order. Diagnostic use only.
func (a *FreeListAllocator) DebugLogAllFreeRanges(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int)) {
	base := a.region.BaseAddr()
	for cur := a.head; cur != 0; cur = a.nodeAt(cur).next {
		logFunc(logger, int(cur-base), a.nodeAt(cur).size)
	}
}

package allocator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ambertav/memory-allocators/allocator"
	"github.com/ambertav/memory-allocators/memalloc"
)

var regionKinds = []memalloc.RegionKind{
	memalloc.RegionOwned,
	memalloc.RegionInline,
	memalloc.RegionBorrowed,
}

var fitStrategies = []allocator.FitStrategy{
	allocator.FitFirst,
	allocator.FitBest,
}

func newTestRegion(t *testing.T, kind memalloc.RegionKind, capacity int) *memalloc.Region {
	t.Helper()

	switch kind {
	case memalloc.RegionOwned:
		region, err := memalloc.NewOwnedRegion(capacity)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, region.Release())
		})
		return region
	case memalloc.RegionBorrowed:
		region, err := memalloc.BorrowRegion(make([]byte, capacity))
		require.NoError(t, err)
		return region
	default:
		region, err := memalloc.NewInlineRegion(capacity)
		require.NoError(t, err)
		return region
	}
}

func newTestFreeList(t *testing.T, fit allocator.FitStrategy, capacity int) *allocator.FreeListAllocator {
	t.Helper()

	freeList, err := allocator.NewFreeListAllocator(newTestRegion(t, memalloc.RegionOwned, capacity), fit)
	require.NoError(t, err)
	return freeList
}

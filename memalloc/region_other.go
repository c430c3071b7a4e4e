//go:build !unix

package memalloc

import (
	cerrors "github.com/cockroachdb/errors"
)

// NewOwnedRegion acquires capacity bytes for the exclusive use of one
// allocator. Platforms without mmap fall back to the Go heap; Release drops
// the reference so the collector can reclaim the bytes.
func NewOwnedRegion(capacity int) (*Region, error) {
	if capacity <= 0 {
		return nil, cerrors.Wrapf(ErrOutOfMemory, "region capacity is %d", capacity)
	}

	return &Region{data: make([]byte, capacity), kind: RegionOwned}, nil
}

//go:build unix

package memalloc

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// NewOwnedRegion acquires capacity bytes from the system with an anonymous
// private mapping, rounded up to the page size. The bytes live outside the
// Go heap; Release unmaps them.
func NewOwnedRegion(capacity int) (*Region, error) {
	if capacity <= 0 {
		return nil, cerrors.Wrapf(ErrOutOfMemory, "region capacity is %d", capacity)
	}

	mapLen := AlignUp(capacity, uint(unix.Getpagesize()))
	data, err := unix.Mmap(-1, 0, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, cerrors.Wrapf(err, "mmap of %d bytes failed", mapLen)
	}

	return &Region{
		data: data[:capacity],
		kind: RegionOwned,
		release: func(data []byte) error {
			return unix.Munmap(data[:cap(data)])
		},
	}, nil
}

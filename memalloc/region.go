package memalloc

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
)

// RegionKind identifies where a Region's bytes come from and who releases
// them.
type RegionKind uint32

const (
	// RegionOwned bytes are acquired from the system at construction and
	// returned to it by Release.
	RegionOwned RegionKind = iota
	// RegionInline bytes live on the Go heap with the allocator value and
	// are collected along with it; Release is a no-op.
	RegionInline
	// RegionBorrowed bytes belong to the caller and are never released. The
	// caller guarantees they outlive the allocator.
	RegionBorrowed
)

var regionKindMapping = map[RegionKind]string{
	RegionOwned:    "RegionOwned",
	RegionInline:   "RegionInline",
	RegionBorrowed: "RegionBorrowed",
}

func (k RegionKind) String() string {
	return regionKindMapping[k]
}

// Region is the fixed backing store an allocator engine carves
// suballocations from. The base address and length never change over the
// region's lifetime, and regions do not grow. Engines keep absolute
// addresses into the region, so a Region must not be copied once handed to
// an allocator.
type Region struct {
	data    []byte
	kind    RegionKind
	release func(data []byte) error
}

// NewInlineRegion creates a region whose bytes live with the allocator on
// the Go heap for the allocator's lifetime.
func NewInlineRegion(capacity int) (*Region, error) {
	if capacity <= 0 {
		return nil, cerrors.Wrapf(ErrOutOfMemory, "region capacity is %d", capacity)
	}

	return &Region{data: make([]byte, capacity), kind: RegionInline}, nil
}

// BorrowRegion wraps caller-provided bytes. The region never releases them
// and no other party may touch them until the allocator is torn down.
func BorrowRegion(buf []byte) (*Region, error) {
	if len(buf) == 0 {
		return nil, cerrors.Wrap(ErrOutOfMemory, "borrowed buffer is empty")
	}

	return &Region{data: buf, kind: RegionBorrowed}, nil
}

// Base returns the address of the first byte of the region.
func (r *Region) Base() unsafe.Pointer {
	return unsafe.Pointer(&r.data[0])
}

// BaseAddr returns Base as an integer for address arithmetic.
func (r *Region) BaseAddr() uintptr {
	return uintptr(unsafe.Pointer(&r.data[0]))
}

func (r *Region) Len() int {
	return len(r.data)
}

func (r *Region) Kind() RegionKind {
	return r.kind
}

// Bytes exposes the raw backing bytes, mainly for tests and diagnostics.
func (r *Region) Bytes() []byte {
	return r.data
}

// Release returns owned bytes to the system and drops the region's
// reference to inline or borrowed bytes. Any pointers handed out by an
// allocator over this region are invalid afterward; further use of the
// region panics.
func (r *Region) Release() error {
	data := r.data
	r.data = nil

	if r.release == nil || data == nil {
		return nil
	}

	f := r.release
	r.release = nil
	return f(data)
}

package allocator

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/ambertav/memory-allocators/memalloc"
)

// New allocates a zeroed T sized and aligned for the type.
func New[T any](a Allocator) (*T, error) {
	var zero T

	ptr, err := a.Allocate(int(unsafe.Sizeof(zero)), uint(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}

	t := (*T)(ptr)
	*t = zero
	return t, nil
}

// Emplace allocates a T and copies value into it.
func Emplace[T any](a Allocator, value T) (*T, error) {
	ptr, err := a.Allocate(int(unsafe.Sizeof(value)), uint(unsafe.Alignof(value)))
	if err != nil {
		return nil, err
	}

	t := (*T)(ptr)
	*t = value
	return t, nil
}

// MakeSlice allocates a zeroed slice of count elements of T. A count whose
// byte size overflows the machine word fails with ErrSizeOverflow before
// touching the allocator.
func MakeSlice[T any](a Allocator, count int) ([]T, error) {
	if count < 0 {
		return nil, errors.Wrapf(memalloc.ErrSizeOverflow, "element count is %d", count)
	}
	if count == 0 {
		return nil, nil
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize > 0 && count > math.MaxInt/elemSize {
		return nil, errors.Wrapf(memalloc.ErrSizeOverflow, "%d elements of %d bytes each", count, elemSize)
	}

	ptr, err := a.Allocate(count*elemSize, uint(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}

	s := unsafe.Slice((*T)(ptr), count)
	clear(s)
	return s, nil
}

// Destroy zeroes the value and hands its memory back to the allocator. On
// engines without individual release this only zeroes.
func Destroy[T any](a Allocator, t *T) {
	if t == nil {
		return
	}

	var zero T
	*t = zero
	a.Deallocate(unsafe.Pointer(t))
}

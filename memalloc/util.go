package memalloc

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(ErrNotPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}

// ValidAlignment reports whether alignment can be passed to an allocator:
// nonzero and a power of two.
func ValidAlignment(alignment uint) bool {
	return alignment > 0 && alignment&(alignment-1) == 0
}

// AlignUp rounds a byte offset forward to the next multiple of alignment.
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// AlignUpAddr rounds an absolute address forward to the next multiple of
// alignment. Offsets and addresses are not interchangeable: an aligned
// offset only yields an aligned address when the region base is itself at
// least that aligned.
func AlignUpAddr(addr uintptr, alignment uint) uintptr {
	return (addr + uintptr(alignment) - 1) &^ (uintptr(alignment) - 1)
}

package memalloc

import "github.com/cockroachdb/errors"

// Sentinel errors shared by every allocator engine. Call sites wrap these
// with request context; callers match them with errors.Is.
var (
	// ErrNotPowerOfTwo is returned from CheckPow2 if the number being tested
	// is not a power of two.
	ErrNotPowerOfTwo = errors.New("number must be a power of two")
	// ErrInvalidAlignment is returned when an allocation requests an
	// alignment of zero or one that is not a power of two.
	ErrInvalidAlignment = errors.New("alignment must be a nonzero power of two")
	// ErrOutOfMemory is returned when the backing region cannot fit a
	// requested allocation. The allocator is left unchanged.
	ErrOutOfMemory = errors.New("backing region cannot fit the requested allocation")
	// ErrSizeOverflow is returned when a requested element count multiplies
	// out past the machine word.
	ErrSizeOverflow = errors.New("allocation size overflows the machine word")
	// ErrResizeMismatch is returned from ResizeLast when the pointer passed
	// in is not the most recent allocation.
	ErrResizeMismatch = errors.New("pointer is not the most recent allocation")
)

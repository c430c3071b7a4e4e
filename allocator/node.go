package allocator

import "unsafe"

// freeNode heads every free block, stored in place at the block's first
// byte. size counts the usable bytes after the header; next holds the
// absolute address of the next free node in ascending address order, 0 at
// the tail. Split points land nodes at arbitrary byte addresses, so word
// fields may be unaligned; supported targets (amd64, arm64, 386) tolerate
// that.
type freeNode struct {
	size int
	next uintptr
}

// allocationHeader sits immediately before every pointer returned by the
// free-list engine. blockSize is the full span the allocation took out of
// the former free node, padding included, the reclaimed node header
// excluded. padding is the distance from the byte past the node header to
// the user pointer; the header itself lives inside that gap, which the
// placement math keeps at headerSize bytes or more.
type allocationHeader struct {
	blockSize int
	padding   int
}

// The header-fit bump in allocationRequirements assumes nodeSize >=
// headerSize; both are two machine words, so this holds on every word size.
const (
	nodeSize   = int(unsafe.Sizeof(freeNode{}))
	headerSize = int(unsafe.Sizeof(allocationHeader{}))
	nodeAlign  = uint(unsafe.Alignof(freeNode{}))
)

package allocator

// Layout constants exposed to the allocator_test package.
const (
	NodeSize   = nodeSize
	HeaderSize = headerSize
)

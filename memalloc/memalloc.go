// Package memalloc holds the pieces shared by every allocator engine in
// this module: alignment arithmetic for offsets and absolute addresses,
// sentinel errors, usage statistics, build-tagged debug validation, and
// the fixed-size backing Region that engines carve suballocations from.
package memalloc

package callback

import "sync/atomic"

// Index identifies one registration. Indices are process-wide, start at 1,
// and are never reused.
type Index uint64

var lastIndex atomic.Uint64

// NextIndex allocates a fresh Index.
func NextIndex() Index {
	return Index(lastIndex.Add(1))
}

// Entry pairs a registered value with the Index it was allocated.
type Entry[T any] struct {
	ID    Index
	Value T
}

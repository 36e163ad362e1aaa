package merge

import "sync/atomic"

// Cache holds the last successfully fetched value of T.
//
// Readers always observe a complete value from a finished fetch. Concurrent
// writers race and the last store wins.
type Cache[T any] struct {
	v atomic.Pointer[T]
}

// Load returns the cached value and whether one was ever stored.
func (c *Cache[T]) Load() (T, bool) {
	p := c.v.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Store replaces the cached value.
func (c *Cache[T]) Store(v T) {
	c.v.Store(&v)
}

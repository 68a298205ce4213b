package config

import "sync"

// VersionedCache lazily rebuilds a value of type T whenever the source
// configuration's monotonic version advances, guarding the rebuild with a
// mutex so concurrent readers never observe a half-built value (spec §4.9;
// SPEC_FULL.md Part D.1 — compiled path templates, the rate limiter's bucket
// parameters, and the WBI mixin key all share this shape).
type VersionedCache[T any] struct {
	mu      sync.Mutex
	version int64
	value   T
	built   bool
}

// Get returns the cached value if version matches the last build; otherwise
// it calls build, stores the result under version, and returns it. build is
// called at most once per distinct version, even under concurrent callers.
func (c *VersionedCache[T]) Get(version int64, build func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built && c.version == version {
		return c.value, nil
	}

	value, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = value
	c.version = version
	c.built = true
	return c.value, nil
}

// Invalidate forces the next Get call to rebuild regardless of version.
func (c *VersionedCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.built = false
}

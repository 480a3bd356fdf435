// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"sync"
	"time"
)

// Cache holds the last good value of a feed so it can be served while the
// endpoint is degraded
type Cache[T any] interface {
	Get() (T, time.Time, bool)
	Set(v T, at time.Time)
}

// MemoryCache is an in-process Cache
type MemoryCache[T any] struct {
	mu  sync.RWMutex
	v   T
	at  time.Time
	set bool
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{}
}

func (c *MemoryCache[T]) Get() (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v, c.at, c.set
}

func (c *MemoryCache[T]) Set(v T, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v, c.at, c.set = v, at, true
}

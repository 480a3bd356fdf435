// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"fmt"
	"sync"

	"github.com/stratastor/logger"
)

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Hub is an in-process observer list. Delivery is synchronous and in
// subscription order; a panicking subscriber is recovered and logged so the
// remaining subscribers still receive the value.
type Hub[T any] struct {
	name   string
	logger logger.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
}

// NewHub creates a hub. l may be nil.
func NewHub[T any](name string, l logger.Logger) *Hub[T] {
	return &Hub[T]{name: name, logger: l}
}

// Subscribe registers fn and returns a function that removes it
func (h *Hub[T]) Subscribe(fn func(T)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every current subscriber
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	subs := make([]subscriber[T], len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, s := range subs {
		h.deliver(s, v)
	}
}

// Deliver sends v to a single subscriber function with the same panic
// isolation as Publish.
func (h *Hub[T]) Deliver(fn func(T), v T) {
	h.deliver(subscriber[T]{fn: fn}, v)
}

func (h *Hub[T]) deliver(s subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil && h.logger != nil {
			h.logger.Error("Subscriber panicked",
				"hub", h.name,
				"subscriber", s.id,
				"panic", fmt.Sprintf("%v", r))
		}
	}()
	s.fn(v)
}

// Len returns the number of active subscribers
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

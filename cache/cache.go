// Copyright (c) 2023 BVK Chaitanya

// Package cache implements compute-once-per-key memoization with a
// time-to-live.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache memoizes values computed per key. A TTL of zero caches values
// forever. Concurrent GetOrUpdate calls for the same key share a single
// in-flight computation.
type Cache[V any] struct {
	ttl time.Duration

	// nowFunc is replaced in tests.
	nowFunc func() time.Time

	mu       sync.Mutex
	entryMap map[string]*entry[V]
}

type entry[V any] struct {
	// ready is closed when the computation is complete.
	ready chan struct{}

	value V
	err   error

	updateTime time.Time
}

// New creates a cache whose entries expire ttl after they were
// computed. A zero ttl means entries never expire once populated.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:      ttl,
		nowFunc:  time.Now,
		entryMap: make(map[string]*entry[V]),
	}
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	select {
	case <-e.ready:
	default:
		// Computation in flight; never expired.
		return false
	}
	if e.err != nil {
		return true
	}
	return c.ttl > 0 && now.After(e.updateTime.Add(c.ttl))
}

// GetOrUpdate returns the value cached at key if it hasn't expired;
// otherwise it invokes update, stores the result with the current
// timestamp and returns it. Failed updates are not cached, so the next
// call recomputes. Callers arriving while a computation is in flight
// block until it completes and share its result.
func (c *Cache[V]) GetOrUpdate(ctx context.Context, key string, update func(ctx context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entryMap[key]; ok && !c.expired(e, c.nowFunc()) {
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.value, e.err
		case <-ctx.Done():
			var zero V
			return zero, context.Cause(ctx)
		}
	}
	e := &entry[V]{ready: make(chan struct{})}
	c.entryMap[key] = e
	c.mu.Unlock()

	e.value, e.err = update(ctx)
	e.updateTime = c.nowFunc()
	close(e.ready)

	if e.err != nil {
		c.mu.Lock()
		if c.entryMap[key] == e {
			delete(c.entryMap, key)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}

// Values returns a snapshot of all completed, unexpired values in no
// particular order.
func (c *Cache[V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	var vs []V
	for _, e := range c.entryMap {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.err == nil && !c.expired(e, now) {
			vs = append(vs, e.value)
		}
	}
	return vs
}

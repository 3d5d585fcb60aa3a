// Package cache is a small size-bounded cache with per-entry expiry.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is an LRU cache whose entries expire after a fixed duration.
type TTL[K comparable, V any] struct {
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration
	now func() time.Time
}

// NewTTL creates a cache holding at most size entries for ttl each.
func NewTTL[K comparable, V any](size int, ttl time.Duration) (*TTL[K, V], error) {
	l, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &TTL[K, V]{lru: l, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached value for key if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *TTL[K, V]) Set(key K, value V) {
	c.lru.Add(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

// Purge removes every entry.
func (c *TTL[K, V]) Purge() {
	c.lru.Purge()
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package cache provides the storage backends used by the cache-aware
// httpflex client, together with cache key derivation and the
// should-cache predicate.
//
// Three backends are provided: Memory, a bounded LRU map with per-entry
// TTL; Redis, a distributed backend isolating tenants by key prefix;
// and BigCache, a sharded in-process byte cache.
package cache

import (
	"context"
	"time"
)

// Defaults shared by the backends and the cache-aware client.
const (
	// DefaultCapacity is the default maximum number of entries held by
	// a Memory backend.
	DefaultCapacity = 128
	// DefaultTTL is the default time to live of a cache entry.
	DefaultTTL = 300 * time.Second
)

// A Backend stores cache entries.
//
// A ttl which is not positive means the entry never expires. Get
// reports false when the key is absent, expired, or cannot be read;
// read failures are logged by the backend and never returned. All
// methods must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every entry owned by the backend.
	Clear(ctx context.Context) error
	// Size returns the number of entries owned by the backend.
	Size(ctx context.Context) (int, error)
}

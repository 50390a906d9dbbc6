// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// maxSweep bounds the number of expired entries removed by one Get.
const maxSweep = 10

// MemoryConfig configures a Memory backend.
type MemoryConfig struct {
	// Capacity is the maximum number of entries. Zero means
	// DefaultCapacity.
	Capacity int
	// Clock is the time source. Nil means the wall clock.
	Clock  clock.Clock
	Logger *zap.Logger
}

// Memory is an in-process Backend combining LRU eviction with per-entry
// expiry.
//
// Get on a live entry promotes it to most recently used; Get on an
// expired entry removes it. Set promotes the entry and evicts least
// recently used entries until the capacity is respected. Every Get also
// sweeps a few other expired entries from the least recently used end,
// so abandoned entries do not accumulate without a background
// goroutine.
type Memory struct {
	mu       sync.Mutex
	capacity int
	clock    clock.Clock
	logger   *zap.Logger
	ll       *list.List
	items    map[string]*list.Element
}

type memoryEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemory returns an empty Memory backend.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Memory{
		capacity: cfg.Capacity,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Capacity returns the maximum number of entries m holds.
func (m *Memory) Capacity() int {
	return m.capacity
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	defer m.sweep(now)

	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if e.expired(now) {
		m.remove(el)
		m.logger.Debug("memory cache entry expired", zap.String("key", key))
		return nil, false
	}
	m.ll.MoveToFront(el)
	return e.value, true
}

// Set implements Backend.
func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.clock.Now().Add(ttl)
	}
	if el, ok := m.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expiresAt = value, expiresAt
		m.ll.MoveToFront(el)
	} else {
		m.items[key] = m.ll.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	}
	for m.ll.Len() > m.capacity {
		oldest := m.ll.Back()
		m.remove(oldest)
		m.logger.Debug("memory cache evicted entry", zap.String("key", oldest.Value.(*memoryEntry).key))
	}
	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.remove(el)
	}
	return nil
}

// Clear implements Backend.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ll.Init()
	m.items = make(map[string]*list.Element)
	return nil
}

// Size implements Backend. Expired entries not yet removed are counted.
func (m *Memory) Size(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len(), nil
}

func (m *Memory) remove(el *list.Element) {
	m.ll.Remove(el)
	delete(m.items, el.Value.(*memoryEntry).key)
}

// sweep removes up to max(1, min(10, n/10)) expired entries, starting
// from the least recently used end. m.mu must be held.
func (m *Memory) sweep(now time.Time) {
	n := m.ll.Len()
	if n == 0 {
		return
	}
	limit := n / 10
	if limit > maxSweep {
		limit = maxSweep
	}
	if limit < 1 {
		limit = 1
	}
	removed := 0
	for el := m.ll.Back(); el != nil && removed < limit; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).expired(now) {
			m.remove(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		m.logger.Debug("memory cache swept expired entries", zap.Int("removed", removed))
	}
}

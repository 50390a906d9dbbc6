// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// BigCacheConfig configures a BigCache backend.
type BigCacheConfig struct {
	// LifeWindow is the age after which bigcache may evict any entry,
	// whatever its TTL. Zero means 24 hours.
	LifeWindow time.Duration `yaml:"life_window,omitempty" json:"life_window,omitempty"`
	// HardMaxCacheSize limits the cache size in MB. Zero means no limit.
	HardMaxCacheSize int `yaml:"hard_max_cache_size,omitempty" json:"hard_max_cache_size,omitempty"`
	// Shards must be a power of two. Zero means the bigcache default.
	Shards int `yaml:"shards,omitempty" json:"shards,omitempty"`
	// MaxEntrySize is the expected maximum entry size in bytes, used
	// for the initial allocation.
	MaxEntrySize int `yaml:"max_entry_size,omitempty" json:"max_entry_size,omitempty"`

	Clock  clock.Clock `yaml:"-" json:"-"`
	Logger *zap.Logger `yaml:"-" json:"-"`
}

const defaultLifeWindow = 24 * time.Hour

// BigCache is an in-process Backend over a sharded bigcache instance.
//
// Values are serialized with Encode and wrapped in an envelope carrying
// the entry's own expiry, since bigcache only supports one global life
// window.
type BigCache struct {
	cache  *bigcache.BigCache
	clock  clock.Clock
	logger *zap.Logger
}

type envelope struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// NewBigCache returns an empty BigCache backend.
func NewBigCache(cfg BigCacheConfig) (*BigCache, error) {
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = defaultLifeWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	bc := bigcache.DefaultConfig(cfg.LifeWindow)
	bc.Verbose = false
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	c, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("cache: bigcache: %w", err)
	}
	return &BigCache{cache: c, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Get implements Backend.
func (b *BigCache) Get(_ context.Context, key string) (interface{}, bool) {
	data, err := b.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			b.logger.Error("bigcache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var e envelope
	if err = json.Unmarshal(data, &e); err != nil {
		b.logger.Warn("failed to unmarshal bigcache entry", zap.String("key", key), zap.Error(err))
		_ = b.cache.Delete(key)
		return nil, false
	}
	if e.ExpiresAt != 0 && b.clock.Now().UnixNano() >= e.ExpiresAt {
		_ = b.cache.Delete(key)
		return nil, false
	}
	v, err := Decode(e.Value)
	if err != nil {
		b.logger.Warn("failed to decode bigcache entry", zap.String("key", key), zap.Error(err))
		_ = b.cache.Delete(key)
		return nil, false
	}
	return v, true
}

// Set implements Backend.
func (b *BigCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	s, err := Encode(value)
	if err != nil {
		return err
	}
	e := envelope{Value: s}
	if ttl > 0 {
		e.ExpiresAt = b.clock.Now().Add(ttl).UnixNano()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: bigcache marshal: %w", err)
	}
	if err = b.cache.Set(key, data); err != nil {
		return fmt.Errorf("cache: bigcache set %s: %w", key, err)
	}
	return nil
}

// Delete implements Backend.
func (b *BigCache) Delete(_ context.Context, key string) error {
	err := b.cache.Delete(key)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("cache: bigcache delete %s: %w", key, err)
	}
	return nil
}

// Clear implements Backend.
func (b *BigCache) Clear(_ context.Context) error {
	return b.cache.Reset()
}

// Size implements Backend. Expired entries not yet read are counted.
func (b *BigCache) Size(_ context.Context) (int, error) {
	return b.cache.Len(), nil
}

// Close releases the bigcache instance.
func (b *BigCache) Close() error {
	return b.cache.Close()
}

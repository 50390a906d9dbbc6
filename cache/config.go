// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend kinds accepted by Config.
const (
	KindMemory   = "memory"
	KindRedis    = "redis"
	KindBigCache = "bigcache"
)

// Config selects and configures a Backend.
type Config struct {
	// Kind is one of KindMemory, KindRedis or KindBigCache. Empty means
	// KindMemory.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// Capacity bounds a memory backend. Zero means DefaultCapacity.
	Capacity int            `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Redis    RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	BigCache BigCacheConfig `yaml:"bigcache,omitempty" json:"bigcache,omitempty"`
}

// New constructs the Backend selected by cfg.
func New(cfg Config, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case "", KindMemory:
		return NewMemory(MemoryConfig{Capacity: cfg.Capacity, Logger: logger}), nil
	case KindRedis:
		return NewRedis(cfg.Redis, logger)
	case KindBigCache:
		bc := cfg.BigCache
		if bc.Logger == nil {
			bc.Logger = logger
		}
		return NewBigCache(bc)
	default:
		return nil, fmt.Errorf("cache: unknown backend kind %q", cfg.Kind)
	}
}

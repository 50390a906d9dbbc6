// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

//go:generate mockgen -source=redis.go -destination=mock/redis.go -package=mock

// Redis defaults.
const (
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "cache_backend"
	DefaultScanCount   = 100
	// DefaultRedisPoolSize is the default maximum number of pooled
	// connections.
	DefaultRedisPoolSize = 10
	defaultDialTimeout   = 5 * time.Second
)

// RedisClient is the part of a go-redis client used by Redis.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	FlushDB(ctx context.Context) *redis.StatusCmd
	DBSize(ctx context.Context) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ RedisClient = (*redis.Client)(nil)

// RedisConfig configures a Redis backend.
type RedisConfig struct {
	// URL is a redis:// URL. When set it takes precedence over Addr,
	// Password and DB.
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
	// Prefix isolates the keys of one tenant. With an empty prefix,
	// Clear flushes the whole database.
	Prefix      string        `yaml:"prefix" json:"prefix"`
	ScanCount   int64         `yaml:"scan_count,omitempty" json:"scan_count,omitempty"`
	PoolSize    int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
}

// DefaultRedisConfig returns the configuration of a local Redis server
// with the default prefix.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        DefaultRedisAddr,
		Prefix:      DefaultRedisPrefix,
		ScanCount:   DefaultScanCount,
		PoolSize:    DefaultRedisPoolSize,
		DialTimeout: defaultDialTimeout,
	}
}

// Redis is a distributed Backend over a Redis server.
//
// Keys are stored as "<prefix>:<key>", and Clear and Size only touch
// keys under the prefix, using incremental SCAN iteration. Values are
// serialized with Encode.
type Redis struct {
	client    RedisClient
	prefix    string
	scanCount int64
	logger    *zap.Logger
}

// NewRedis connects to the server described by cfg and checks the
// connection with PING.
func NewRedis(cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts *redis.Options
	if cfg.URL != "" {
		var err error
		if opts, err = redis.ParseURL(cfg.URL); err != nil {
			return nil, fmt.Errorf("cache: failed to parse redis URL: %w", err)
		}
	} else {
		addr := cfg.Addr
		if addr == "" {
			addr = DefaultRedisAddr
		}
		opts = &redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB}
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	opts.DialTimeout = dialTimeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: failed to connect to redis at %s: %w", opts.Addr, err)
	}
	logger.Info("Connected to redis",
		zap.String("address", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("prefix", cfg.Prefix))
	return NewRedisWithClient(client, cfg.Prefix, cfg.ScanCount, logger), nil
}

// NewRedisWithClient returns a Redis backend over an existing client.
// A scanCount which is not positive means DefaultScanCount.
func NewRedisWithClient(client RedisClient, prefix string, scanCount int64, logger *zap.Logger) *Redis {
	if scanCount <= 0 {
		scanCount = DefaultScanCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:    client,
		prefix:    strings.TrimSpace(prefix),
		scanCount: scanCount,
		logger:    logger,
	}
}

// Prefix returns the key prefix of r.
func (r *Redis) Prefix() string {
	return r.prefix
}

func (r *Redis) fullKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, key string) (interface{}, bool) {
	full := r.fullKey(key)
	s, err := r.client.Get(ctx, full).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Error("redis get failed", zap.String("key", full), zap.Error(err))
		return nil, false
	}
	v, err := Decode(s)
	if err != nil {
		r.logger.Error("redis value could not be decoded", zap.String("key", full), zap.Error(err))
		return nil, false
	}
	return v, true
}

// Set implements Backend.
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s, err := Encode(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	full := r.fullKey(key)
	if err = r.client.Set(ctx, full, s, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", full, err)
	}
	return nil
}

// Delete implements Backend.
func (r *Redis) Delete(ctx context.Context, key string) error {
	full := r.fullKey(key)
	if err := r.client.Del(ctx, full).Err(); err != nil {
		return fmt.Errorf("cache: redis delete %s: %w", full, err)
	}
	return nil
}

// Clear implements Backend. Without a prefix the whole database is
// flushed.
func (r *Redis) Clear(ctx context.Context) error {
	if r.prefix == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("cache: redis flushdb: %w", err)
		}
		r.logger.Warn("redis cache cleared entire DB (no key prefix set)")
		return nil
	}
	n, err := r.ClearPattern(ctx, r.prefix+":*")
	if err != nil {
		return err
	}
	r.logger.Debug("redis cache cleared", zap.String("prefix", r.prefix), zap.Int("deleted", n))
	return nil
}

// ClearPattern deletes every key matching a SCAN glob pattern and
// returns the number of keys deleted. The pattern is not prefixed.
func (r *Redis) ClearPattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	err := r.scan(ctx, pattern, func(keys []string) error {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache: redis delete: %w", err)
		}
		deleted += len(keys)
		return nil
	})
	return deleted, err
}

// Size implements Backend. Without a prefix it is the size of the
// database.
func (r *Redis) Size(ctx context.Context) (int, error) {
	if r.prefix == "" {
		n, err := r.client.DBSize(ctx).Result()
		if err != nil {
			return 0, fmt.Errorf("cache: redis dbsize: %w", err)
		}
		return int(n), nil
	}
	count := 0
	err := r.scan(ctx, r.prefix+":*", func(keys []string) error {
		count += len(keys)
		return nil
	})
	return count, err
}

func (r *Redis) scan(ctx context.Context, pattern string, f func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, r.scanCount).Result()
		if err != nil {
			return fmt.Errorf("cache: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err = f(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping checks the connection to the server.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client and its connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

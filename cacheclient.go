// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/cache"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"go.uber.org/zap"
)

// A CacheObserver is notified of the cache lookups of a CacheClient.
// Implementations must be safe for concurrent use.
type CacheObserver interface {
	CacheHit(key string)
	CacheMiss(key string)
}

// A CacheClient is a Client which answers eligible requests from a
// cache backend.
//
// Only requests whose method is GET or HEAD are eligible. Their cache
// key covers the client URL and method, the cache-relevant client
// headers, the full request configuration, the user identifier and the
// key prefix. A hit returns the cached result without any network
// traffic and without firing event handlers. A miss runs the request
// as Client does and stores the result if the should-cache predicate
// accepts it.
//
// Concurrent misses on the same key each run the request; the last
// result stored wins.
type CacheClient struct {
	*Client

	backend   cache.Backend
	ttl       time.Duration
	user      string
	prefix    string
	relevant  []string
	predicate cache.Predicate
	observer  CacheObserver

	closeOnce sync.Once
	closeErr  error
}

// NewCacheClient constructs a CacheClient. The options are those of
// New, plus WithCacheBackend, WithShouldCache and WithCacheObserver.
//
// NewCacheClient fails with a Configuration error if cc.UserSpecific is
// set without cc.UserIdentifier, or if cc.ShouldCache does not compile.
// If the configured backend cannot be constructed, the failure is
// logged and an in-memory backend is used instead.
func NewCacheClient(cfg Config, cc CacheConfig, opts ...Option) (*CacheClient, error) {
	if cc.UserSpecific && strings.TrimSpace(cc.UserIdentifier) == "" {
		return nil, apierr.Configurationf("httpflex: user_identifier is required when user_specific is set")
	}
	predicate, err := predicateFor(cc, opts)
	if err != nil {
		return nil, err
	}

	c, s, err := newClient(cfg, opts)
	if err != nil {
		return nil, err
	}

	backend := s.cacheBackend
	if backend == nil {
		backend, err = cache.New(cc.Backend, c.logger)
		if err != nil {
			c.logger.Error("cache backend construction failed, using in-memory backend",
				zap.String("kind", cc.Backend.Kind),
				zap.Error(err))
			backend = cache.NewMemory(cache.MemoryConfig{Capacity: cc.Backend.Capacity, Logger: c.logger})
		}
	}

	ttl := cc.TTL
	switch {
	case ttl == 0:
		ttl = cache.DefaultTTL
	case ttl < 0:
		ttl = 0
	}
	relevant := cc.RelevantHeaders
	if len(relevant) == 0 {
		relevant = cache.DefaultRelevantHeaders
	}

	cl := &CacheClient{
		Client:    c,
		backend:   backend,
		ttl:       ttl,
		user:      strings.TrimSpace(cc.UserIdentifier),
		prefix:    cc.KeyPrefix,
		relevant:  relevant,
		predicate: predicate,
		observer:  s.cacheObserver,
	}
	c.keyer = cl.key
	return cl, nil
}

func predicateFor(cc CacheConfig, opts []Option) (cache.Predicate, error) {
	if p := newSettings(opts).cachePredicate; p != nil {
		return p, nil
	}
	if strings.TrimSpace(cc.ShouldCache) == "" {
		return cache.Always, nil
	}
	p, err := cache.NewExprPredicate(cc.ShouldCache)
	if err != nil {
		return nil, apierr.Configurationf("httpflex: %v", err)
	}
	return p, nil
}

// Backend returns the cache backend.
func (c *CacheClient) Backend() cache.Backend {
	return c.backend
}

// key derives the cache key of rc. The second return value is false if
// the request is not eligible for caching.
func (c *CacheClient) key(rc request.Config) (string, bool) {
	if !cache.Cacheable(c.method) {
		return "", false
	}
	if rc == nil {
		rc = request.Config{}
	}
	k, err := cache.Key(cache.KeyInput{
		URL:     c.target,
		Method:  c.method,
		Headers: cache.RelevantHeaders(c.header, c.relevant),
		Data:    rc,
		User:    c.user,
	}, c.prefix)
	if err != nil {
		c.logger.Warn("cannot derive cache key, bypassing cache", zap.Error(err))
		return "", false
	}
	return k, true
}

func (c *CacheClient) lookup(ctx context.Context, key string) (result.Result, bool) {
	v, ok := c.backend.Get(ctx, key)
	if ok {
		if r, ok := result.From(v); ok {
			c.logger.Debug("cache hit", zap.String("key", key))
			if c.observer != nil {
				c.observer.CacheHit(key)
			}
			return r, true
		}
		c.logger.Warn("ignoring malformed cache entry", zap.String("key", key))
	}
	if c.observer != nil {
		c.observer.CacheMiss(key)
	}
	return result.Result{}, false
}

func (c *CacheClient) store(ctx context.Context, key string, r result.Result) {
	ok, err := c.predicate.ShouldCache(r)
	if err != nil {
		c.logger.Warn("should-cache predicate failed, caching result", zap.String("key", key), zap.Error(err))
		ok = true
	}
	if !ok {
		return
	}
	if err := c.backend.Set(ctx, key, r, c.ttl); err != nil {
		c.logger.Error("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// Request executes one logical request, answering it from the cache if
// possible. See Client.Request.
func (c *CacheClient) Request(ctx context.Context, rc request.Config) (result.Result, error) {
	if c.closed() {
		return result.Result{}, errClosed
	}
	key, ok := c.key(rc)
	if !ok {
		return c.Cacheless(ctx, rc)
	}
	if r, hit := c.lookup(ctx, key); hit {
		return r, nil
	}
	r, err := c.Client.Request(ctx, rc)
	if err != nil {
		return r, err
	}
	if k := r.TakeCacheKey(); k != "" {
		key = k
	}
	c.store(ctx, key, r)
	return r, nil
}

// RequestBatch executes a batch of logical requests. Cache hits are
// resolved immediately and the misses run as one batch through
// Client.RequestBatch. Results are returned in input order.
func (c *CacheClient) RequestBatch(ctx context.Context, rcs []request.Config, async bool) ([]result.Result, error) {
	if c.closed() {
		return nil, errClosed
	}
	if len(rcs) == 0 {
		return c.Client.RequestBatch(ctx, rcs, async)
	}
	out := make([]result.Result, len(rcs))
	var missIdx []int
	var missKeys []string
	var missCfgs []request.Config
	for i, rc := range rcs {
		key, ok := c.key(rc)
		if ok {
			if r, hit := c.lookup(ctx, key); hit {
				out[i] = r
				continue
			}
		}
		missIdx = append(missIdx, i)
		missKeys = append(missKeys, key)
		missCfgs = append(missCfgs, rc)
	}
	if len(missCfgs) == 0 {
		return out, nil
	}

	fetched, err := c.Client.RequestBatch(ctx, missCfgs, async)
	if err != nil {
		return nil, err
	}
	for j, r := range fetched {
		r := r
		key := r.TakeCacheKey()
		if key == "" {
			key = missKeys[j]
		}
		if key != "" {
			c.store(ctx, key, r)
		}
		out[missIdx[j]] = r
	}
	return out, nil
}

// Cacheless executes one logical request without reading or writing
// the cache.
func (c *CacheClient) Cacheless(ctx context.Context, rc request.Config) (result.Result, error) {
	r, err := c.Client.Request(ctx, rc)
	r.TakeCacheKey()
	return r, err
}

// CachelessBatch executes a batch without reading or writing the cache.
func (c *CacheClient) CachelessBatch(ctx context.Context, rcs []request.Config, async bool) ([]result.Result, error) {
	rs, err := c.Client.RequestBatch(ctx, rcs, async)
	for i := range rs {
		rs[i].TakeCacheKey()
	}
	return rs, err
}

// Refresh executes one logical request without reading the cache and
// stores the result, replacing any cached entry.
func (c *CacheClient) Refresh(ctx context.Context, rc request.Config) (result.Result, error) {
	key, ok := c.key(rc)
	r, err := c.Client.Request(ctx, rc)
	if err != nil {
		return r, err
	}
	if k := r.TakeCacheKey(); k != "" {
		key, ok = k, true
	}
	if ok {
		c.store(ctx, key, r)
	}
	return r, nil
}

// RefreshBatch executes a batch without reading the cache and stores
// every result.
func (c *CacheClient) RefreshBatch(ctx context.Context, rcs []request.Config, async bool) ([]result.Result, error) {
	rs, err := c.Client.RequestBatch(ctx, rcs, async)
	if err != nil {
		return rs, err
	}
	for i := range rs {
		key := rs[i].TakeCacheKey()
		if key == "" {
			key, _ = c.key(rcs[i])
		}
		if key != "" {
			c.store(ctx, key, rs[i])
		}
	}
	return rs, nil
}

// ClearCache removes every cached entry.
func (c *CacheClient) ClearCache(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// ClearCachePattern removes the cached entries whose keys match the
// glob pattern. Only the Redis backend supports patterns; other
// backends are cleared entirely. It returns the number of keys removed,
// or -1 if unknown.
func (c *CacheClient) ClearCachePattern(ctx context.Context, pattern string) (int, error) {
	if r, ok := c.backend.(*cache.Redis); ok && pattern != "" {
		if p := r.Prefix(); p != "" && !strings.HasPrefix(pattern, p+":") {
			pattern = p + ":" + pattern
		}
		return r.ClearPattern(ctx, pattern)
	}
	return -1, c.backend.Clear(ctx)
}

// Close closes the client and then the backend, if it is an io.Closer.
// Close is idempotent.
func (c *CacheClient) Close() error {
	c.closeOnce.Do(func() {
		_ = c.Client.Close()
		if closer, ok := c.backend.(io.Closer); ok {
			c.closeErr = closer.Close()
		}
	})
	return c.closeErr
}

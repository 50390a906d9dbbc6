// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/cache"
	"github.com/gogama/httpflex/cache/mock"
	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// countingTransport counts the round trips reaching the network.
type countingTransport struct {
	n int64
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt64(&t.n, 1)
	return http.DefaultTransport.RoundTrip(req)
}

func (t *countingTransport) count() int {
	return int(atomic.LoadInt64(&t.n))
}

type testObserver struct {
	mu     sync.Mutex
	hits   []string
	misses []string
}

func (o *testObserver) CacheHit(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits = append(o.hits, key)
}

func (o *testObserver) CacheMiss(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses = append(o.misses, key)
}

func newTestCacheClient(t *testing.T, cfg Config, cc CacheConfig, opts ...Option) (*CacheClient, *countingTransport) {
	if cfg.BaseURL == "" && cfg.URL == "" {
		cfg.BaseURL = httpServer.URL
	}
	rt := &countingTransport{}
	c, err := NewCacheClient(cfg, cc, append([]Option{WithBaseTransport(rt)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, rt
}

func TestNewCacheClient(t *testing.T) {
	t.Run("user specific requires user", func(t *testing.T) {
		_, err := NewCacheClient(Config{BaseURL: httpServer.URL}, CacheConfig{UserSpecific: true, UserIdentifier: " "})
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrConfiguration)
	})
	t.Run("bad predicate", func(t *testing.T) {
		_, err := NewCacheClient(Config{BaseURL: httpServer.URL}, CacheConfig{ShouldCache: "code =="})
		assert.ErrorIs(t, err, apierr.ErrConfiguration)
	})
	t.Run("backend fallback", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		c, _ := newTestCacheClient(t, Config{}, CacheConfig{
			Backend: cache.Config{Kind: cache.KindRedis, Redis: cache.RedisConfig{URL: "not a url"}},
		}, WithLogger(zap.New(core)))
		assert.IsType(t, &cache.Memory{}, c.Backend())
		assert.Equal(t, 1, logs.FilterMessage("cache backend construction failed, using in-memory backend").Len())
	})
	t.Run("defaults", func(t *testing.T) {
		c, _ := newTestCacheClient(t, Config{}, CacheConfig{})
		assert.IsType(t, &cache.Memory{}, c.Backend())
		assert.Equal(t, cache.DefaultTTL, c.ttl)
		assert.Equal(t, cache.DefaultRelevantHeaders, c.relevant)
		ok, err := c.predicate.ShouldCache(result.Failure(500, "x"))
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("negative ttl", func(t *testing.T) {
		c, _ := newTestCacheClient(t, Config{}, CacheConfig{TTL: -1})
		assert.Equal(t, time.Duration(0), c.ttl)
	})
}

type failingPredicate struct{}

func (failingPredicate) ShouldCache(result.Result) (bool, error) {
	return false, errors.New("nope")
}

func TestCacheClient_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("hit skips network and hooks", func(t *testing.T) {
		var ends int
		g := &HandlerGroup{}
		g.PushBack(AfterExecutionEnd, HandlerFunc(func(Event, *request.Execution) { ends++ }))
		o := &testObserver{}
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/{id}"}, CacheConfig{},
			WithHandlers(g), WithCacheObserver(o))

		r1, err := c.Request(ctx, request.Config{"id": 1})
		require.NoError(t, err)
		r2, err := c.Request(ctx, request.Config{"id": 1})
		require.NoError(t, err)
		assert.Equal(t, r1, r2)
		assert.Equal(t, "", r2.TakeCacheKey())
		assert.Equal(t, 1, rt.count())
		assert.Equal(t, 1, ends)
		assert.Len(t, o.misses, 1)
		assert.Len(t, o.hits, 1)
		assert.Equal(t, o.misses[0], o.hits[0])
	})
	t.Run("different data misses", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/{id}"}, CacheConfig{})
		_, _ = c.Request(ctx, request.Config{"id": 1})
		_, _ = c.Request(ctx, request.Config{"id": 1, "page": 2})
		_, _ = c.Request(ctx, request.Config{"id": 2})
		assert.Equal(t, 3, rt.count())
	})
	t.Run("non cacheable method", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/echo", Method: "POST"}, CacheConfig{})
		_, _ = c.Request(ctx, request.Config{"a": 1})
		_, _ = c.Request(ctx, request.Config{"a": 1})
		assert.Equal(t, 2, rt.count())
		n, err := c.Backend().Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
	t.Run("predicate", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/status/{code}"}, CacheConfig{ShouldCache: "result && code == 200"})
		for i := 0; i < 2; i++ {
			_, _ = c.Request(ctx, request.Config{"code": 500})
			_, _ = c.Request(ctx, request.Config{"code": 200})
		}
		assert.Equal(t, 3, rt.count())
	})
	t.Run("predicate error caches", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{},
			WithLogger(zap.New(core)),
			WithShouldCache(failingPredicate{}))
		_, _ = c.Request(ctx, nil)
		_, _ = c.Request(ctx, nil)
		assert.Equal(t, 1, rt.count())
		assert.Equal(t, 1, logs.FilterMessage("should-cache predicate failed, caching result").Len())
	})
	t.Run("ttl", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{TTL: 20 * time.Millisecond})
		_, _ = c.Request(ctx, nil)
		time.Sleep(40 * time.Millisecond)
		_, _ = c.Request(ctx, nil)
		assert.Equal(t, 2, rt.count())
	})
	t.Run("user isolation", func(t *testing.T) {
		backend := cache.NewMemory(cache.MemoryConfig{})
		alice, rtA := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{UserSpecific: true, UserIdentifier: "alice"}, WithCacheBackend(backend))
		bob, rtB := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{UserIdentifier: "bob"}, WithCacheBackend(backend))
		_, _ = alice.Request(ctx, nil)
		_, _ = bob.Request(ctx, nil)
		_, _ = alice.Request(ctx, nil)
		assert.Equal(t, 1, rtA.count())
		assert.Equal(t, 1, rtB.count())
		assert.Equal(t, 2, size(t, backend))
	})
	t.Run("relevant headers", func(t *testing.T) {
		backend := cache.NewMemory(cache.MemoryConfig{})
		plain, _ := newTestCacheClient(t, Config{Endpoint: "/users/1", Headers: map[string]string{"Accept": "application/json", "X-Request-Tag": "a"}}, CacheConfig{}, WithCacheBackend(backend))
		tagged, rt := newTestCacheClient(t, Config{Endpoint: "/users/1", Headers: map[string]string{"Accept": "application/json", "X-Request-Tag": "b"}}, CacheConfig{}, WithCacheBackend(backend))
		_, _ = plain.Request(ctx, nil)
		_, _ = tagged.Request(ctx, nil)
		assert.Equal(t, 0, rt.count())
	})
	t.Run("closed client ignores cache", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/{id}"}, CacheConfig{})
		_, err := c.Request(ctx, request.Config{"id": 1})
		require.NoError(t, err)
		require.NoError(t, c.Close())
		_, err = c.Request(ctx, request.Config{"id": 1})
		assert.ErrorIs(t, err, apierr.ErrConfiguration)
		rs, err := c.RequestBatch(ctx, []request.Config{{"id": 1}}, false)
		assert.ErrorIs(t, err, apierr.ErrConfiguration)
		assert.Nil(t, rs)
		assert.Equal(t, 1, rt.count())
	})
	t.Run("validation error is returned", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/{id}", Required: []string{"id"}}, CacheConfig{})
		_, err := c.Request(ctx, request.Config{})
		assert.ErrorIs(t, err, apierr.ErrRequestValidation)
		assert.Equal(t, 0, rt.count())
	})
}

func TestCacheClient_RequestBatch(t *testing.T) {
	ctx := context.Background()

	for _, async := range []bool{false, true} {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/{id}"}, CacheConfig{})
		_, err := c.RequestBatch(ctx, []request.Config{{"id": 1}, {"id": 3}}, async)
		require.NoError(t, err)
		require.Equal(t, 2, rt.count())

		rs, err := c.RequestBatch(ctx, idBatch(5), async)
		require.NoError(t, err)
		require.Len(t, rs, 5)
		for i, r := range rs {
			r := r
			assert.Equal(t, "", r.TakeCacheKey())
			assert.Equal(t, string(rune('0'+i)), data(r)["id"], "async=%t position %d", async, i)
		}
		assert.Equal(t, 5, rt.count())

		_, err = c.RequestBatch(ctx, idBatch(5), async)
		require.NoError(t, err)
		assert.Equal(t, 5, rt.count())
	}

	t.Run("empty", func(t *testing.T) {
		c, _ := newTestCacheClient(t, Config{Endpoint: "/users/{id}"}, CacheConfig{})
		rs, err := c.RequestBatch(ctx, []request.Config{}, true)
		require.NoError(t, err)
		assert.Empty(t, rs)
	})
	t.Run("distributed results without annotation", func(t *testing.T) {
		x := &strippingExecutor{}
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/{id}"}, CacheConfig{}, WithExecutor(x))
		_, err := c.RequestBatch(ctx, idBatch(2), true)
		require.NoError(t, err)
		_, err = c.RequestBatch(ctx, idBatch(2), true)
		require.NoError(t, err)
		assert.Equal(t, 2, rt.count())
	})
}

// strippingExecutor drops cache key annotations, as happens when
// results come back from another process.
type strippingExecutor struct{}

func (strippingExecutor) Execute(ctx context.Context, r executor.Runner, items []executor.Item) []result.Result {
	rs := executor.Sync{}.Execute(ctx, r, items)
	for i := range rs {
		rs[i] = result.Result{Result: rs[i].Result, Code: rs[i].Code, Message: rs[i].Message, Data: rs[i].Data}
	}
	return rs
}

func TestCacheClient_Bypass(t *testing.T) {
	ctx := context.Background()

	t.Run("cacheless", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{})
		_, _ = c.Request(ctx, nil)
		r, err := c.Cacheless(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "", r.TakeCacheKey())
		rs, err := c.CachelessBatch(ctx, []request.Config{{}, {}}, true)
		require.NoError(t, err)
		assert.Len(t, rs, 2)
		assert.Equal(t, 4, rt.count())
		assert.Equal(t, 1, size(t, c.Backend()))
	})
	t.Run("refresh overwrites", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/count"}, CacheConfig{})
		first, _ := c.Request(ctx, nil)
		refreshed, err := c.Refresh(ctx, nil)
		require.NoError(t, err)
		assert.NotEqual(t, data(first)["count"], data(refreshed)["count"])
		cached, _ := c.Request(ctx, nil)
		assert.Equal(t, refreshed, cached)
		assert.Equal(t, 2, rt.count())
	})
	t.Run("refresh batch", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/count"}, CacheConfig{})
		batch := []request.Config{{"page": "1"}, {"page": "2"}}
		rs, err := c.RefreshBatch(ctx, batch, true)
		require.NoError(t, err)
		cached, err := c.RequestBatch(ctx, batch, true)
		require.NoError(t, err)
		assert.Equal(t, rs, cached)
		assert.Equal(t, 2, rt.count())
	})
	t.Run("clear", func(t *testing.T) {
		c, rt := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{})
		_, _ = c.Request(ctx, nil)
		require.NoError(t, c.ClearCache(ctx))
		_, _ = c.Request(ctx, nil)
		assert.Equal(t, 2, rt.count())
		n, err := c.ClearCachePattern(ctx, "*")
		require.NoError(t, err)
		assert.Equal(t, -1, n)
		assert.Equal(t, 0, size(t, c.Backend()))
	})
}

func TestCacheClient_Redis(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	rc := mock.NewMockRedisClient(ctrl)
	backend := cache.NewRedisWithClient(rc, "svc", 0, nil)
	c, rt := newTestCacheClient(t, Config{Endpoint: "/users/1"}, CacheConfig{KeyPrefix: "v1", TTL: time.Minute}, WithCacheBackend(backend))

	var stored string
	rc.EXPECT().Get(gomock.Any(), gomock.Any()).Return(redis.NewStringResult("", redis.Nil))
	rc.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Minute).
		DoAndReturn(func(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
			stored = value.(string)
			assert.Regexp(t, `^svc:v1_[0-9a-f]{32}$`, key)
			return redis.NewStatusResult("OK", nil)
		})
	r1, err := c.Request(ctx, nil)
	require.NoError(t, err)

	rc.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) *redis.StringCmd {
		return redis.NewStringResult(stored, nil)
	})
	r2, err := c.Request(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.count())
	assert.Equal(t, r1.Result, r2.Result)
	assert.Equal(t, r1.Code, r2.Code)
	assert.Equal(t, r1.Data, r2.Data)

	rc.EXPECT().Scan(gomock.Any(), uint64(0), "svc:v1_*", int64(cache.DefaultScanCount)).
		Return(redis.NewScanCmdResult([]string{"svc:v1_a"}, 0, nil))
	rc.EXPECT().Del(gomock.Any(), "svc:v1_a").Return(redis.NewIntResult(1, nil))
	n, err := c.ClearCachePattern(ctx, "v1_*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rc.EXPECT().Close().Return(nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func size(t *testing.T, b cache.Backend) int {
	n, err := b.Size(context.Background())
	require.NoError(t, err)
	return n
}

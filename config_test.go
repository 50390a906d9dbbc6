// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogama/httpflex/cache"
	"github.com/gogama/httpflex/retry"
	"github.com/gogama/httpflex/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.True(t, *c.Verify)
	assert.False(t, *c.EnableRetry)
	assert.Equal(t, 10, c.MaxWorkers)
	assert.Equal(t, retry.DefaultConfig(), c.Retry)
	assert.Equal(t, 100, c.Pool.Connections)
	assert.Equal(t, 100, c.Pool.MaxSize)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"Accept": "application/json", "X-A": "1"}

	t.Run("zero override", func(t *testing.T) {
		assert.Equal(t, base, Merge(base, Config{}))
	})
	t.Run("fields", func(t *testing.T) {
		out := Merge(base, Config{
			BaseURL:  "https://x",
			Timeout:  time.Second,
			Verify:   Bool(false),
			Headers:  map[string]string{"X-A": "2", "X-B": "3"},
			Retry:    retry.Config{BackoffFactor: time.Second},
			Pool:     transport.PoolConfig{MaxSize: 5},
			Executor: "sync",
		})
		assert.Equal(t, "https://x", out.BaseURL)
		assert.Equal(t, time.Second, out.Timeout)
		assert.False(t, *out.Verify)
		assert.Equal(t, map[string]string{"Accept": "application/json", "X-A": "2", "X-B": "3"}, out.Headers)
		assert.Equal(t, time.Second, out.Retry.BackoffFactor)
		assert.Equal(t, 3, out.Retry.Total)
		assert.Equal(t, 5, out.Pool.MaxSize)
		assert.Equal(t, 100, out.Pool.Connections)
		assert.Equal(t, "sync", out.Executor)
		assert.Equal(t, "1", base.Headers["X-A"])
	})
	t.Run("max retries", func(t *testing.T) {
		out := Merge(base, Config{MaxRetries: Int(7)})
		assert.Equal(t, 7, out.Retry.Total)
		out = Merge(out, Config{Retry: retry.Config{Total: 1}})
		assert.Equal(t, 7, out.Retry.Total)
	})
	t.Run("pointers are copied", func(t *testing.T) {
		v := Bool(true)
		out := Merge(base, Config{Verify: v})
		*v = false
		assert.True(t, *out.Verify)
	})
}

const testYAML = `
base_url: https://api.example.com
endpoint: /users/{id}
method: get
timeout: 5s
verify: false
enable_retry: true
max_retries: 2
retry:
  backoff_factor: 250ms
  status_forcelist: [503]
pool:
  connections: 20
  http2: true
  rate_limit: 5
headers:
  Accept: application/json
max_workers: 4
executor: pool
parser: jq
jq: .data
allowed_status: [200, 404]
required: [id]
auth:
  type: bearer
  token: secret
cache:
  ttl: 1m
  key_prefix: users
  user_identifier: alice
  user_specific: true
  relevant_headers: [Accept]
  should_cache: result
  backend:
    kind: redis
    redis:
      url: redis://localhost:6379/2
      prefix: svc
`

func TestParseConfig(t *testing.T) {
	f, err := ParseConfig([]byte(testYAML))
	require.NoError(t, err)
	c := f.Config
	assert.Equal(t, "https://api.example.com", c.BaseURL)
	assert.Equal(t, "/users/{id}", c.Endpoint)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.False(t, *c.Verify)
	assert.True(t, *c.EnableRetry)
	assert.Equal(t, 2, *c.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, c.Retry.BackoffFactor)
	assert.Equal(t, []int{503}, c.Retry.StatusForcelist)
	assert.Equal(t, transport.PoolConfig{Connections: 20, HTTP2: true, RateLimit: 5}, c.Pool)
	assert.Equal(t, map[string]string{"Accept": "application/json"}, c.Headers)
	assert.Equal(t, 4, c.MaxWorkers)
	assert.Equal(t, ".data", c.JQ)
	assert.Equal(t, []int{200, 404}, c.AllowedStatus)
	assert.Equal(t, []string{"id"}, c.Required)
	assert.Equal(t, &transport.AuthConfig{Type: "bearer", Token: "secret"}, c.Auth)

	require.NotNil(t, f.Cache)
	assert.Equal(t, time.Minute, f.Cache.TTL)
	assert.Equal(t, "users", f.Cache.KeyPrefix)
	assert.True(t, f.Cache.UserSpecific)
	assert.Equal(t, "result", f.Cache.ShouldCache)
	assert.Equal(t, cache.KindRedis, f.Cache.Backend.Kind)
	assert.Equal(t, "svc", f.Cache.Backend.Redis.Prefix)

	eff := Merge(DefaultConfig(), c)
	assert.Equal(t, 2, eff.Retry.Total)
	assert.Equal(t, []string{"HEAD", "GET", "PUT", "DELETE", "OPTIONS", "TRACE", "POST"}, eff.Retry.AllowedMethods)

	_, err = ParseConfig([]byte("timeout: [1"))
	assert.ErrorContains(t, err, "httpflex: failed to parse config")
}

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(p, []byte("url: http://localhost/x\n"), 0o600))
	f, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/x", f.URL)
	assert.Nil(t, f.Cache)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "httpflex: failed to read config")
}

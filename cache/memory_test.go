// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gogama/httpflex/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(capacity int) (*Memory, *clock.Mock) {
	mc := clock.NewMock()
	return NewMemory(MemoryConfig{Capacity: capacity, Clock: mc}), mc
}

func size(t *testing.T, b Backend) int {
	n, err := b.Size(context.Background())
	require.NoError(t, err)
	return n
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		m := NewMemory(MemoryConfig{})
		assert.Equal(t, DefaultCapacity, m.Capacity())
	})
	t.Run("round trip", func(t *testing.T) {
		m, _ := newTestMemory(0)
		v := result.Success(200, map[string]interface{}{"id": 7})
		require.NoError(t, m.Set(ctx, "k", v, time.Minute))
		got, ok := m.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, v, got)
		_, ok = m.Get(ctx, "missing")
		assert.False(t, ok)
	})
	t.Run("ttl expiry", func(t *testing.T) {
		m, mc := newTestMemory(0)
		require.NoError(t, m.Set(ctx, "k", "v", 10*time.Second))
		mc.Add(9 * time.Second)
		_, ok := m.Get(ctx, "k")
		assert.True(t, ok)
		mc.Add(time.Second)
		_, ok = m.Get(ctx, "k")
		assert.False(t, ok)
		assert.Equal(t, 0, size(t, m))
	})
	t.Run("no ttl never expires", func(t *testing.T) {
		m, mc := newTestMemory(0)
		require.NoError(t, m.Set(ctx, "k", "v", 0))
		mc.Add(24 * 365 * time.Hour)
		_, ok := m.Get(ctx, "k")
		assert.True(t, ok)
	})
	t.Run("overwrite resets ttl", func(t *testing.T) {
		m, mc := newTestMemory(0)
		require.NoError(t, m.Set(ctx, "k", "old", time.Second))
		require.NoError(t, m.Set(ctx, "k", "new", 0))
		mc.Add(time.Hour)
		v, ok := m.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "new", v)
		assert.Equal(t, 1, size(t, m))
	})
	t.Run("lru eviction", func(t *testing.T) {
		m, _ := newTestMemory(3)
		for _, k := range []string{"a", "b", "c", "d"} {
			require.NoError(t, m.Set(ctx, k, k, 0))
		}
		assert.Equal(t, 3, size(t, m))
		_, ok := m.Get(ctx, "a")
		assert.False(t, ok)
	})
	t.Run("get protects from eviction", func(t *testing.T) {
		m, _ := newTestMemory(3)
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, m.Set(ctx, k, k, 0))
		}
		_, ok := m.Get(ctx, "a")
		require.True(t, ok)
		require.NoError(t, m.Set(ctx, "d", "d", 0))
		assert.Equal(t, 3, size(t, m))
		_, ok = m.Get(ctx, "a")
		assert.True(t, ok)
		_, ok = m.Get(ctx, "b")
		assert.False(t, ok)
	})
	t.Run("get sweeps expired entries", func(t *testing.T) {
		m, mc := newTestMemory(100)
		for i := 0; i < 20; i++ {
			require.NoError(t, m.Set(ctx, fmt.Sprintf("old-%d", i), i, time.Second))
		}
		require.NoError(t, m.Set(ctx, "live", "v", 0))
		mc.Add(2 * time.Second)

		_, ok := m.Get(ctx, "live")
		require.True(t, ok)
		// 21 entries: one Get removes max(1, min(10, 21/10)) = 2.
		assert.Equal(t, 19, size(t, m))
		_, _ = m.Get(ctx, "live")
		assert.Equal(t, 17, size(t, m))
	})
	t.Run("sweep is bounded", func(t *testing.T) {
		m, mc := newTestMemory(1000)
		for i := 0; i < 500; i++ {
			require.NoError(t, m.Set(ctx, fmt.Sprintf("old-%d", i), i, time.Second))
		}
		mc.Add(time.Minute)
		_, _ = m.Get(ctx, "missing")
		assert.Equal(t, 490, size(t, m))
	})
	t.Run("delete and clear", func(t *testing.T) {
		m, _ := newTestMemory(0)
		require.NoError(t, m.Set(ctx, "a", 1, 0))
		require.NoError(t, m.Set(ctx, "b", 2, 0))
		require.NoError(t, m.Delete(ctx, "a"))
		require.NoError(t, m.Delete(ctx, "a"))
		assert.Equal(t, 1, size(t, m))
		require.NoError(t, m.Clear(ctx))
		assert.Equal(t, 0, size(t, m))
		_, ok := m.Get(ctx, "b")
		assert.False(t, ok)
	})
	t.Run("concurrent use", func(t *testing.T) {
		m, _ := newTestMemory(50)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					k := fmt.Sprintf("k-%d", (i*200+j)%75)
					_ = m.Set(ctx, k, j, time.Minute)
					_, _ = m.Get(ctx, k)
				}
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, size(t, m), 50)
	})
}

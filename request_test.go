// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/format"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func idBatch(n int) []request.Config {
	rcs := make([]request.Config, n)
	for i := range rcs {
		rcs[i] = request.Config{"id": i}
	}
	return rcs
}

func TestClient_RequestBatch(t *testing.T) {
	ctx := context.Background()

	for _, async := range []bool{false, true} {
		async := async
		t.Run(fmt.Sprintf("order async=%t", async), func(t *testing.T) {
			c := newTestClient(t, Config{Endpoint: "/users/{id}", MaxWorkers: 4})
			rs, err := c.RequestBatch(ctx, idBatch(20), async)
			require.NoError(t, err)
			require.Len(t, rs, 20)
			for i, r := range rs {
				require.True(t, r.Result, r.Message)
				assert.Equal(t, fmt.Sprint(i), data(r)["id"])
			}
		})
	}
	t.Run("ids carry the position", func(t *testing.T) {
		var mu sync.Mutex
		ids := map[string]interface{}{}
		g := &HandlerGroup{}
		g.PushBack(BeforeRequest, HandlerFunc(func(_ Event, e *request.Execution) {
			mu.Lock()
			defer mu.Unlock()
			ids[e.ID] = e.Config["id"]
		}))
		c := newTestClient(t, Config{Endpoint: "/users/{id}"}, WithHandlers(g))
		_, err := c.RequestBatch(ctx, idBatch(3), true)
		require.NoError(t, err)
		require.Len(t, ids, 3)
		for id, v := range ids {
			assert.True(t, strings.HasSuffix(id, fmt.Sprintf("-%d", v)), id)
		}
	})
	t.Run("mixed outcomes", func(t *testing.T) {
		c := newTestClient(t, Config{Endpoint: "/status/{code}"})
		rs, err := c.RequestBatch(ctx, []request.Config{{"code": 200}, {"code": 503}, {"code": 201}}, true)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false, true}, []bool{rs[0].Result, rs[1].Result, rs[2].Result})
		assert.Equal(t, []int{200, 503, 201}, []int{rs[0].Code, rs[1].Code, rs[2].Code})
	})
	t.Run("per item isolation", func(t *testing.T) {
		c := newTestClient(t, Config{Endpoint: "/users/{id}"}, WithFormatter(format.Func(func(in format.Input) (result.Result, error) {
			if in.Config["id"] == 1 {
				panic("formatter exploded")
			}
			return in.Result, nil
		})))
		rs, err := c.RequestBatch(ctx, idBatch(3), true)
		require.NoError(t, err)
		assert.True(t, rs[0].Result)
		assert.Equal(t, result.CodeFormattingError, rs[1].Code)
		assert.True(t, rs[2].Result)
	})
	t.Run("panicking runner", func(t *testing.T) {
		rs := executor.Sync{}.Execute(ctx, panicRunner{}, []executor.Item{{ID: "a"}, {ID: "b"}})
		require.Len(t, rs, 2)
		assert.Equal(t, result.CodeNonHTTPError, rs[0].Code)
		assert.Equal(t, "Unexpected error: runner exploded", rs[1].Message)
	})
	t.Run("empty", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		c := newTestClient(t, Config{Endpoint: "/count"}, WithLogger(zap.New(core)))
		rs, err := c.RequestBatch(ctx, nil, true)
		require.NoError(t, err)
		assert.NotNil(t, rs)
		assert.Empty(t, rs)
		assert.Equal(t, 1, logs.FilterMessage("empty request batch").Len())
	})
	t.Run("eager validation", func(t *testing.T) {
		var dispatched int
		g := &HandlerGroup{}
		g.PushBack(BeforeRequest, HandlerFunc(func(Event, *request.Execution) { dispatched++ }))
		c := newTestClient(t, Config{Endpoint: "/users/{id}", Required: []string{"id"}}, WithHandlers(g))
		_, err := c.RequestBatch(ctx, []request.Config{{"id": 1}, {"id": 2}, {}}, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrRequestValidation)
		assert.Equal(t, 0, dispatched)
		assert.Equal(t, 0, c.arena.len())
	})
	t.Run("custom executor", func(t *testing.T) {
		x := &recordingExecutor{}
		c := newTestClient(t, Config{Endpoint: "/users/{id}"}, WithExecutor(x))
		_, err := c.RequestBatch(ctx, idBatch(2), true)
		require.NoError(t, err)
		assert.Equal(t, 1, x.calls)
		_, err = c.RequestBatch(ctx, idBatch(2), false)
		require.NoError(t, err)
		assert.Equal(t, 1, x.calls)
	})
}

type panicRunner struct{ *Client }

func (panicRunner) RunOne(context.Context, string, request.Config) result.Result {
	panic("runner exploded")
}

type recordingExecutor struct {
	calls int
}

func (x *recordingExecutor) Execute(ctx context.Context, r executor.Runner, items []executor.Item) []result.Result {
	x.calls++
	return executor.Sync{}.Execute(ctx, r, items)
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	cfg := Config{BaseURL: httpServer.URL, Endpoint: "/users/{id}"}

	r, err := Call(ctx, cfg, request.Config{"id": "abc"})
	require.NoError(t, err)
	assert.True(t, r.Result)
	assert.Equal(t, "abc", data(r)["id"])

	rs, err := CallBatch(ctx, cfg, idBatch(3), true, WithMaxWorkers(2))
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "2", data(rs[2])["id"])

	_, err = Call(ctx, Config{}, nil)
	assert.ErrorIs(t, err, apierr.ErrConfiguration)
	_, err = CallBatch(ctx, Config{}, nil, false)
	assert.ErrorIs(t, err, apierr.ErrConfiguration)
}

func TestRegister(t *testing.T) {
	Register("httpflex-test-users", func(cfg Config) (*Client, error) {
		return New(cfg)
	})
	assert.Panics(t, func() { Register("httpflex-test-nil", nil) })

	c := newTestClient(t, Config{Endpoint: "/users/{id}", Timeout: 7e9}, WithFactoryName("httpflex-test-users"))
	d := c.Descriptor()
	assert.Equal(t, "httpflex-test-users", d.Name)

	var cfg Config
	require.NoError(t, json.Unmarshal(d.Params, &cfg))
	assert.Equal(t, c.Config(), cfg)

	rebuilt, err := executor.Build(d)
	require.NoError(t, err)
	defer rebuilt.Close()
	r := rebuilt.RunOne(context.Background(), request.NewID(""), request.Config{"id": 11})
	assert.True(t, r.Result)
	assert.Equal(t, "11", data(r)["id"])
	assert.Equal(t, "httpflex-test-users", rebuilt.Descriptor().Name)

	_, err = executor.Build(executor.Descriptor{Name: "httpflex-test-users", Params: []byte("{")})
	assert.ErrorContains(t, err, "invalid client parameters")
}

func TestArena(t *testing.T) {
	var a arena
	s1 := a.scope()
	s2 := a.scope()
	in := request.Config{"k": map[string]interface{}{"n": 1}}
	s1.put("a", in)
	s2.put("b", request.Config{})
	in["k"].(map[string]interface{})["n"] = 2

	got, ok := a.get("a")
	require.True(t, ok)
	assert.Equal(t, request.Config{"k": map[string]interface{}{"n": 1}}, got)
	s1.release()
	_, ok = a.get("a")
	assert.False(t, ok)
	_, ok = a.get("b")
	assert.True(t, ok)
	s2.release()
	assert.Equal(t, 0, a.len())
}

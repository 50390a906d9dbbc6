// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"
	"strconv"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"go.uber.org/zap"
)

// Request executes one logical request. A nil rc is the empty request
// configuration.
//
// The returned error is non-nil only if the client is closed or the
// request serializer rejected rc, in which case it is an *apierr.Error
// of kind Configuration or RequestValidation. Every other failure is
// reported in the result.
func (c *Client) Request(ctx context.Context, rc request.Config) (result.Result, error) {
	if c.closed() {
		return result.Result{}, errClosed
	}
	scope := c.arena.scope()
	defer scope.release()

	id := request.NewID("")
	validated, err := c.validateRequest(rc)
	if err != nil {
		return result.Result{}, err
	}
	scope.put(id, rc)
	return c.exec(ctx, id, validated), nil
}

// RequestBatch executes a batch of logical requests and returns their
// results in input order. If async is true the batch runs on the
// client's executor, otherwise sequentially.
//
// Every request configuration is validated before any is dispatched.
// If one is rejected, RequestBatch returns the validation error and
// executes nothing. An empty batch returns an empty slice.
func (c *Client) RequestBatch(ctx context.Context, rcs []request.Config, async bool) ([]result.Result, error) {
	if c.closed() {
		return nil, errClosed
	}
	if len(rcs) == 0 {
		c.logger.Warn("empty request batch")
		return []result.Result{}, nil
	}
	scope := c.arena.scope()
	defer scope.release()

	items := make([]executor.Item, len(rcs))
	for i, rc := range rcs {
		validated, err := c.validateRequest(rc)
		if err != nil {
			return nil, err
		}
		items[i] = executor.Item{ID: request.NewID(strconv.Itoa(i)), Config: validated}
	}
	for i, item := range items {
		scope.put(item.ID, rcs[i])
	}

	var x executor.Executor = executor.Sync{}
	if async {
		x = c.executor
	}
	c.logger.Debug("executing request batch",
		zap.Int("size", len(items)),
		zap.Bool("async", async),
		zap.String("executor", executorName(x)))
	return x.Execute(ctx, c, items), nil
}

func (c *Client) validateRequest(rc request.Config) (request.Config, error) {
	if rc == nil {
		rc = request.Config{}
	}
	if c.serializer == nil {
		return rc.Clone(), nil
	}
	out, err := c.serializer.Validate(rc.Clone())
	if err != nil {
		if apierr.KindOf(err) != apierr.RequestValidation {
			err = apierr.NewRequestValidation(err.Error(), nil, err)
		}
		return nil, err
	}
	if out == nil {
		out = request.Config{}
	}
	return out, nil
}

func executorName(x executor.Executor) string {
	switch x.(type) {
	case executor.Sync, *executor.Sync:
		return "sync"
	case executor.Pool, *executor.Pool:
		return "pool"
	default:
		return "custom"
	}
}

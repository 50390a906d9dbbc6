// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"

	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
)

// Call constructs a Client from cfg and opts, executes one logical
// request and closes the client.
func Call(ctx context.Context, cfg Config, rc request.Config, opts ...Option) (result.Result, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return result.Result{}, err
	}
	defer c.Close()
	return c.Request(ctx, rc)
}

// CallBatch constructs a Client from cfg and opts, executes a batch of
// logical requests and closes the client.
func CallBatch(ctx context.Context, cfg Config, rcs []request.Config, async bool, opts ...Option) ([]result.Result, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.RequestBatch(ctx, rcs, async)
}

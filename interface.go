// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"

	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
)

// SingleRequester is the interface that wraps the basic Request method.
//
// Request executes one logical request and returns its uniform result.
// A non-nil error is returned only for configuration and request
// validation problems. Client and CacheClient implement the
// SingleRequester interface.
type SingleRequester interface {
	Request(ctx context.Context, rc request.Config) (result.Result, error)
}

// BatchRequester is the interface that wraps the basic RequestBatch
// method.
//
// RequestBatch executes a batch of logical requests and returns their
// uniform results in input order. Client and CacheClient implement the
// BatchRequester interface.
type BatchRequester interface {
	RequestBatch(ctx context.Context, rcs []request.Config, async bool) ([]result.Result, error)
}

// Requester is the interface that groups the Request, RequestBatch and
// Close methods.
type Requester interface {
	SingleRequester
	BatchRequester
	Close() error
}

var (
	_ Requester = (*Client)(nil)
	_ Requester = (*CacheClient)(nil)
)

// Batch executes each of rcs as a single request on r, in order, and
// returns the results. Unlike RequestBatch, Batch stops at the first
// validation error and returns the results obtained so far.
func Batch(ctx context.Context, r SingleRequester, rcs []request.Config) ([]result.Result, error) {
	out := make([]result.Result, 0, len(rcs))
	for _, rc := range rcs {
		res, err := r.Request(ctx, rc)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

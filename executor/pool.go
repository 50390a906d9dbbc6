// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"context"

	"github.com/gogama/httpflex/result"
	"golang.org/x/sync/errgroup"
)

// Pool runs items concurrently on at most Workers goroutines. If
// Workers is not positive, the Runner's MaxWorkers is used, and if that
// is not positive either, one worker.
//
// Each worker writes its result into the item's own slot, so results
// are in item order whatever the completion order.
type Pool struct {
	Workers int
}

// Execute runs every item on the pool and waits for all of them.
func (p Pool) Execute(ctx context.Context, r Runner, items []Item) []result.Result {
	results := make([]result.Result, len(items))
	if len(items) == 0 {
		return results
	}
	var g errgroup.Group
	g.SetLimit(p.workers(r, len(items)))
	for i := range items {
		i := i
		g.Go(func() error {
			results[i] = RunSafe(ctx, r, items[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p Pool) workers(r Runner, n int) int {
	w := p.Workers
	if w <= 0 {
		w = r.MaxWorkers()
	}
	if w <= 0 {
		w = 1
	}
	if w > n {
		w = n
	}
	return w
}

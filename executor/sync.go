// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"context"

	"github.com/gogama/httpflex/result"
)

// Sync runs items one at a time, in order.
type Sync struct{}

// Execute runs every item sequentially.
func (Sync) Execute(ctx context.Context, r Runner, items []Item) []result.Result {
	results := make([]result.Result, len(items))
	for i, item := range items {
		results[i] = RunSafe(ctx, r, item)
	}
	return results
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides the policies used by the httpflex transport to
// retry failed HTTP request attempts, and to decide how long to wait
// before retrying.
//
// Retries happen below the logical request: the client's single
// request pipeline sees one outcome per logical request, whatever the
// number of attempts the transport made.
//
// Most clients describe their retry behavior with a Config, which
// FromConfig turns into a Policy:
//
//	policy := retry.FromConfig(retry.Config{
//		Total:           3,
//		BackoffFactor:   500 * time.Millisecond,
//		StatusForcelist: []int{502, 503},
//		AllowedMethods:  []string{"GET"},
//	})
//
// A Policy may also be assembled by hand from a Decider and a Waiter:
//
//	decider := retry.Times(3).
//	               And(retry.Before(5 * time.Second)).
//	               And(retry.StatusCode(500).Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, time.Now())
//	policy := retry.NewPolicy(decider, waiter)
package retry

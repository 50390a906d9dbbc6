// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"time"

	"github.com/gogama/httpflex/request"
)

// A Policy returns the timeout of the next attempt of a round trip.
// Parameter e holds the round trip so far: the attempt number, the
// number of attempts which timed out and the error of the previous
// attempt.
//
// Implementations must be safe for concurrent use.
type Policy interface {
	Timeout(e *request.Execution) time.Duration
}

// None never times out.
var None Policy = steps{math.MaxInt64}

// For returns the policy of a client configured with timeout d and the
// escalation timeouts after. A non-positive d yields None, and after is
// ignored. Otherwise every attempt gets d unless the previous one timed
// out, in which case the n-th timed-out attempt is followed by after[n-1],
// the last element repeating. A non-positive element of after is
// replaced by d.
//
//	p := timeout.For(time.Second, 5*time.Second, 30*time.Second)
func For(d time.Duration, after ...time.Duration) Policy {
	if d <= 0 {
		return None
	}
	s := make(steps, 1, 1+len(after))
	s[0] = d
	for _, a := range after {
		if a <= 0 {
			a = d
		}
		s = append(s, a)
	}
	return s
}

// steps[0] is the usual timeout and steps[n] follows the n-th timeout.
type steps []time.Duration

func (s steps) Timeout(e *request.Execution) time.Duration {
	if len(s) == 1 || !e.Timeout() {
		return s[0]
	}

	n := e.AttemptTimeouts
	if n >= len(s) {
		n = len(s) - 1
	}
	return s[n]
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gogama/httpflex/request"
)

// A Waiter specifies how long to wait before retrying a failed HTTP
// request attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// The transport will not call the Waiter on a retry policy if the
// policy Decider returned false.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultWaiter is the waiter of DefaultPolicy: a backoff waiter with
// the default 500ms backoff factor.
var DefaultWaiter = NewBackoffWaiter(DefaultConfig().BackoffFactor, MaxBackoff)

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewBackoffWaiter constructs a Waiter implementing the classic
// backoff-factor formula: the first retry is immediate, and the wait
// before each later retry is
//
//	min(factor * 2**attempt, max)
//
// where attempt is the zero-based index of the attempt that just
// failed. With a factor of 500ms the waits are 0, 1s, 2s, 4s, ...
func NewBackoffWaiter(factor, max time.Duration) Waiter {
	if factor < 1 {
		panic("httpflex/retry: factor must be positive")
	}
	if max < factor {
		panic("httpflex/retry: max must be at least factor")
	}
	return &backoffWaiter{exp: expWaiter{base: factor, max: max}}
}

type backoffWaiter struct {
	exp expWaiter
}

func (w *backoffWaiter) Wait(e *request.Execution) time.Duration {
	if e.Attempt < 1 {
		return 0
	}
	return w.exp.Wait(e)
}

// NewExpWaiter constructs a Waiter implementing an exponential backoff
// formula with optional jitter.
//
// The formula implemented is the "Full Jitter" approach described in:
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter.
//
// Parameters base and max control the exponential calculation of the
// ceiling:
//
//	ceil := min(base * 2**attempt, max)
//
// Base and max must be positive values, and max must be at least equal
// to base.
//
// Parameter jitter is used to generate a random number between 0 and
// ceil. To make a waiter that does not jitter and simply returns
// ceil on each attempt, pass nil for jitter. Otherwise you may specify
// either a random number generator seed value (as a time.Time, int, or
// int64) or a random number generator (as a rand.Source).
func NewExpWaiter(base, max time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("httpflex/retry: base must be positive")
	}
	if max < base {
		panic("httpflex/retry: max must be at least base")
	}
	return &expWaiter{
		base: base,
		max:  max,
		rand: jitterToRand(jitter),
	}
}

type expWaiter struct {
	base time.Duration
	max  time.Duration
	rand *rand.Rand
	lock sync.Mutex
}

func (w *expWaiter) Wait(e *request.Execution) time.Duration {
	exp := int64(1) << e.Attempt
	if exp < 1 {
		exp = 1<<63 - 1
	}

	ceil := int64(w.base) * exp
	if ceil < int64(w.base) || int64(w.max) < ceil {
		ceil = int64(w.max)
	}

	duration := ceil
	if ceil > 0 && w.rand != nil {
		w.lock.Lock()
		defer w.lock.Unlock()
		duration = w.rand.Int63n(ceil)
	}

	return time.Duration(duration)
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("httpflex/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("httpflex/retry: invalid jitter type")
	}
	return rand.New(s)
}

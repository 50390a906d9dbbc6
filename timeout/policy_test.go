// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"errors"
	"math"
	"syscall"
	"testing"
	"time"

	"github.com/gogama/httpflex/request"
	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	timedOut := func(n int) *request.Execution {
		return &request.Execution{Attempt: n, AttemptTimeouts: n, Err: syscall.ETIMEDOUT}
	}
	failed := &request.Execution{Attempt: 2, AttemptTimeouts: 1, Err: errors.New("connection reset")}

	t.Run("none", func(t *testing.T) {
		for _, d := range []time.Duration{0, -time.Second} {
			p := For(d, time.Second)
			assert.Equal(t, None, p)
			assert.Equal(t, time.Duration(math.MaxInt64), p.Timeout(timedOut(3)))
		}
	})
	t.Run("fixed", func(t *testing.T) {
		p := For(2 * time.Second)
		assert.Equal(t, 2*time.Second, p.Timeout(&request.Execution{}))
		assert.Equal(t, 2*time.Second, p.Timeout(timedOut(4)))
		assert.Equal(t, 2*time.Second, p.Timeout(failed))
	})
	t.Run("escalating", func(t *testing.T) {
		p := For(5*time.Millisecond, 10*time.Millisecond, 0, 100*time.Millisecond)
		testCases := []struct {
			name string
			e    *request.Execution
			want time.Duration
		}{
			{"first attempt", &request.Execution{}, 5 * time.Millisecond},
			{"after one timeout", timedOut(1), 10 * time.Millisecond},
			{"zero step uses base", timedOut(2), 5 * time.Millisecond},
			{"after three timeouts", timedOut(3), 100 * time.Millisecond},
			{"last step repeats", timedOut(7), 100 * time.Millisecond},
			{"previous attempt did not time out", failed, 5 * time.Millisecond},
		}
		for _, testCase := range testCases {
			testCase := testCase
			t.Run(testCase.name, func(t *testing.T) {
				assert.Equal(t, testCase.want, p.Timeout(testCase.e))
			})
		}
	})
}

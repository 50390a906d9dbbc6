// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/gogama/httpflex/request"
	"github.com/stretchr/testify/assert"
)

var transientErrs = []error{
	syscall.ETIMEDOUT,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	io.ErrUnexpectedEOF,
}

var nonTransientErrs = []error{
	errors.New("foo"),
	syscall.EACCES,
	syscall.ENOENT,
}

func execution(method string, code int, err error, attempt int) *request.Execution {
	e := &request.Execution{Err: err, Attempt: attempt}
	e.Request, _ = http.NewRequest(method, "http://example.com", nil)
	if code != 0 {
		e.Response = &http.Response{StatusCode: code}
	}
	return e
}

func TestDefaultDecider(t *testing.T) {
	total := DefaultConfig().Total
	t.Run("retryable status codes", func(t *testing.T) {
		for _, code := range []int{429, 500, 502, 503, 504} {
			code := code
			t.Run(fmt.Sprint(code), func(t *testing.T) {
				for j := 0; j < total; j++ {
					assert.True(t, DefaultDecider(execution("GET", code, nil, j)), "attempt %d", j)
				}
				assert.False(t, DefaultDecider(execution("GET", code, nil, total)))
			})
		}
	})
	t.Run("non-retryable status codes", func(t *testing.T) {
		for _, code := range []int{200, 201, 204, 301, 400, 401, 404, 501} {
			assert.False(t, DefaultDecider(execution("GET", code, nil, 0)), "code %d", code)
		}
	})
	t.Run("method not allowed", func(t *testing.T) {
		assert.False(t, DefaultDecider(execution("PATCH", 503, nil, 0)))
		assert.False(t, DefaultDecider(execution("PATCH", 0, syscall.ECONNRESET, 0)))
		assert.True(t, DefaultDecider(execution("PATCH", 0, syscall.ECONNREFUSED, 0)))
	})
	t.Run("transient errors", func(t *testing.T) {
		for i, te := range transientErrs {
			te := te
			t.Run(fmt.Sprintf("transientErrs[%d]", i), func(t *testing.T) {
				assert.True(t, DefaultDecider(execution("POST", 0, te, 0)))
				assert.True(t, DefaultDecider(execution("POST", 0, &url.Error{Op: "Post", Err: te}, 1)))
				assert.False(t, DefaultDecider(execution("POST", 0, te, total)))
			})
		}
	})
	t.Run("non-transient errors", func(t *testing.T) {
		for _, nte := range nonTransientErrs {
			assert.False(t, DefaultDecider(execution("GET", 0, nte, 0)))
		}
	})
}

func TestDeciderAndOr(t *testing.T) {
	true_ := DeciderFunc(func(_ *request.Execution) bool { return true })
	false_ := DeciderFunc(func(_ *request.Execution) bool { return false })
	e := &request.Execution{}
	assert.True(t, true_.And(true_).Decide(e))
	assert.False(t, true_.And(false_).Decide(e))
	assert.False(t, false_.And(true_).Decide(e))
	assert.True(t, true_.Or(false_).Decide(e))
	assert.True(t, false_.Or(true_).Decide(e))
	assert.False(t, false_.Or(false_).Decide(e))
}

func TestTimes(t *testing.T) {
	d := Times(2)
	assert.True(t, d(&request.Execution{Attempt: 0}))
	assert.True(t, d(&request.Execution{Attempt: 1}))
	assert.False(t, d(&request.Execution{Attempt: 2}))
}

func TestBefore(t *testing.T) {
	d := Before(time.Hour)
	assert.True(t, d(&request.Execution{Start: time.Now()}))
	assert.False(t, d(&request.Execution{Start: time.Now().Add(-2 * time.Hour)}))
}

func TestStatusCode(t *testing.T) {
	d := StatusCode(418, 503)
	assert.True(t, d(execution("GET", 418, nil, 0)))
	assert.False(t, d(execution("GET", 200, nil, 0)))
	assert.False(t, d(&request.Execution{}))
}

func TestMethod(t *testing.T) {
	d := Method("get", "PUT")
	assert.True(t, d(execution("GET", 0, nil, 0)))
	assert.True(t, d(execution("put", 0, nil, 0)))
	assert.False(t, d(execution("POST", 0, nil, 0)))
	assert.False(t, d(&request.Execution{}))
	assert.True(t, d(&request.Execution{Request: &http.Request{}}))
}

func TestTransientAndConnectErr(t *testing.T) {
	assert.True(t, TransientErr(&request.Execution{Err: syscall.ECONNRESET}))
	assert.False(t, TransientErr(&request.Execution{Err: errors.New("x")}))
	assert.True(t, ConnectErr(&request.Execution{Err: &url.Error{Err: syscall.ECONNREFUSED}}))
	assert.False(t, ConnectErr(&request.Execution{Err: syscall.ECONNRESET}))
}

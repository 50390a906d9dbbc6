// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	"time"

	"github.com/gogama/httpflex/result"
	"github.com/gogama/httpflex/transient"
)

// An Execution represents the state of one logical request.
//
// The client creates an Execution when it starts executing a request
// and updates it as the request progresses: first the request
// configuration and the plan built from it, then the HTTP response or
// error, the buffered body, and finally the uniform result.
//
// Hooks, parsers and validators may set values on an Execution using
// its SetValue method and read them back using Value. Before-request
// hooks may replace Config, and after-request hooks may replace
// Response; the remaining exported fields should be treated as read-only.
//
// The transport creates its own Execution for each round trip in order
// to drive its retry and timeout policies. That Execution only has the
// Request, Response, Err, Attempt, AttemptTimeouts and Start fields set.
type Execution struct {
	// ID is the request identifier.
	ID string

	// Config is the request configuration after before-request hooks.
	Config Config

	// Plan is the HTTP request plan built from Config. It is nil until
	// the endpoint has been rendered.
	Plan *Plan

	// Start is the time the execution started.
	Start time.Time

	// End is the time the execution ended. It contains the zero value
	// until the execution ends.
	End time.Time

	// Attempt is the zero-based number of the current HTTP request
	// attempt. It is only advanced by the transport's retry loop.
	Attempt int

	// AttemptTimeouts is the count of the number of times an HTTP
	// request attempt timed out.
	AttemptTimeouts int

	// Request is the HTTP request sent in the current attempt.
	Request *http.Request

	// Response is the HTTP response received, or nil if the transport
	// call ended in error.
	Response *http.Response

	// Err is the error the request ended in, if any. For a logical
	// request it is always an *apierr.Error once set by the client.
	Err error

	// Body is the complete buffered response body. It is nil for
	// streaming parsers, which read the response body themselves.
	Body []byte

	// Result is the uniform result of the request. It is set just
	// before the AfterExecutionEnd event.
	Result *result.Result

	ctx  context.Context
	data context.Context
}

// Context returns the context the logical request runs under. It is
// never nil.
func (e *Execution) Context() context.Context {
	if e.ctx != nil {
		return e.ctx
	}

	return context.Background()
}

// SetContext replaces the context the logical request runs under.
// Before-request hooks may use it to attach values, such as a trace
// span, which the transport then sees. It panics if ctx is nil.
func (e *Execution) SetContext(ctx context.Context) {
	if ctx == nil {
		panic("httpflex/request: nil context")
	}

	e.ctx = ctx
}

// StatusCode returns the status code of the HTTP response, or 0 if
// there is none.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the HTTP response headers, or the nil header if there
// is no response.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		var nilHeader http.Header
		return nilHeader
	}

	return e.Response.Header
}

// URL returns the string form of the planned URL, or the empty string
// if there is no plan yet.
func (e *Execution) URL() string {
	if e.Plan != nil && e.Plan.URL != nil {
		return e.Plan.URL.String()
	}
	if e.Request != nil && e.Request.URL != nil {
		return e.Request.URL.String()
	}
	return ""
}

// Duration returns the duration of the execution.
//
// If the execution has not yet started, the duration is zero. If the
// execution has ended, the duration is End minus Start. Otherwise, it
// is the current time minus Start.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the execution has started.
func (e *Execution) Started() bool {
	return e.Start != (time.Time{})
}

// Ended indicates whether the execution has ended.
func (e *Execution) Ended() bool {
	return e.End != (time.Time{})
}

// Timeout indicates whether Err currently contains a non-nil value
// which indicates a timeout.
func (e *Execution) Timeout() bool {
	cat := transient.Categorize(e.Err)
	return cat == transient.Timeout
}

// SetValue allows hooks, parsers and validators to store arbitrary data
// in the execution.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different users of the same execution.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	ctx := e.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}

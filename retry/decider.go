// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"strings"
	"time"

	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, StatusCode, Method and Before,
// and the built-in deciders TransientErr and ConnectErr; or implement
// your own Decider. Use DeciderFunc to convert an ordinary function
// into a Decider, and to compose deciders logically using
// DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
type DeciderFunc func(e *request.Execution) bool

// DefaultDecider is the decider of DefaultPolicy. It is built by
// FromConfig from DefaultConfig.
var DefaultDecider = decider(DefaultConfig())

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize.
var TransientErr DeciderFunc = transientErr

// ConnectErr is a decider that indicates a retry if the current error
// shows the request never reached the server (the connection was
// refused). Such errors are safe to retry for every method.
var ConnectErr DeciderFunc = connectErr

// Decide returns true if a retry should be done, and false otherwise.
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while e.Attempt is less than n.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Attempt < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the round trip.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode constructs a retry decider which returns true if the most
// recent attempt received a response whose status code is in ss.
func StatusCode(ss ...int) DeciderFunc {
	set := make(map[int]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	return func(e *request.Execution) bool {
		return set[e.StatusCode()]
	}
}

// Method constructs a retry decider which returns true if the HTTP
// method of the current request is one of methods (case-insensitive).
func Method(methods ...string) DeciderFunc {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = true
	}
	return func(e *request.Execution) bool {
		if e.Request == nil {
			return false
		}
		m := e.Request.Method
		if m == "" {
			m = http.MethodGet
		}
		return set[strings.ToUpper(m)]
	}
}

func transientErr(e *request.Execution) bool {
	return transient.Categorize(e.Err).Transient()
}

func connectErr(e *request.Execution) bool {
	return transient.Categorize(e.Err) == transient.ConnRefused
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package result defines the uniform result record returned for every
// logical request made by an httpflex client.
package result

import (
	"encoding/json"
	"fmt"
)

// Reserved codes for outcomes which did not produce an HTTP status.
const (
	// CodeNonHTTPError indicates a timeout, network failure, or any other
	// failure that happened before an HTTP status was available.
	CodeNonHTTPError = -1
	// CodeUnexpectedType indicates the request outcome had a shape the
	// client did not recognize.
	CodeUnexpectedType = -2
	// CodeFormattingError indicates the response formatter failed.
	CodeFormattingError = -3
)

// MessageSuccess is the message of every successful Result produced by
// the default formatting rule.
const MessageSuccess = "Success"

// A Result is the uniform outcome of one logical request.
//
// Result is true if and only if the transport call succeeded, the
// response was accepted by the validator (if any), and it was parsed
// successfully. Code is the HTTP status code whenever one was received,
// or one of the reserved negative codes otherwise, so the pipeline never
// produces a zero Code. A null code on the wire, which only a foreign
// producer can write, decodes as 0.
type Result struct {
	Result  bool        `json:"result"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`

	cacheKey string
}

// Success returns a successful Result.
func Success(code int, data interface{}) Result {
	return Result{Result: true, Code: code, Message: MessageSuccess, Data: data}
}

// Failure returns a failed Result with nil data.
func Failure(code int, message string) Result {
	return Result{Code: code, Message: message}
}

// Failuref is Failure with a formatted message.
func Failuref(code int, format string, a ...interface{}) Result {
	return Failure(code, fmt.Sprintf(format, a...))
}

// FormattingFailed returns the fallback Result used when a formatter
// fails. It never panics.
func FormattingFailed(cause interface{}) Result {
	return Failuref(CodeFormattingError, "Formatting failed: %v", cause)
}

// WithCacheKey returns a copy of r annotated with a cache key. The
// annotation is never part of the encoded form of a Result.
func (r Result) WithCacheKey(key string) Result {
	r.cacheKey = key
	return r
}

// TakeCacheKey removes and returns the cache key annotation on r, or
// the empty string if r has none.
func (r *Result) TakeCacheKey() string {
	k := r.cacheKey
	r.cacheKey = ""
	return k
}

// From converts a value previously produced by encoding a Result into a
// generic structure (for example by a cache backend which round-trips
// values through JSON) back into a Result.
//
// Result and *Result values are returned as is. A map is accepted if it
// has at least the "result" and "code" fields.
func From(v interface{}) (Result, bool) {
	switch x := v.(type) {
	case Result:
		return x, true
	case *Result:
		if x == nil {
			return Result{}, false
		}
		return *x, true
	case map[string]interface{}:
		if _, ok := x["result"]; !ok {
			return Result{}, false
		}
		if _, ok := x["code"]; !ok {
			return Result{}, false
		}
		b, err := json.Marshal(x)
		if err != nil {
			return Result{}, false
		}
		var r Result
		if err = json.Unmarshal(b, &r); err != nil {
			return Result{}, false
		}
		return r, true
	default:
		return Result{}, false
	}
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package format turns the outcome of a logical request into a uniform
// result.
//
// The client first applies the default formatting rule, Build, and then
// passes the result to the configured Formatter for any final
// transformation. Apply runs a Formatter so that it can never fail the
// request: an error or a panic yields result.FormattingFailed.
package format

import (
	"errors"
	"fmt"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
)

// Input is everything a Formatter knows about a logical request.
type Input struct {
	// Result is the outcome of the default formatting rule.
	Result result.Result
	// Parsed is the parser output. It is nil if the transport call or
	// the parser failed.
	Parsed interface{}
	// RequestID identifies the logical request.
	RequestID string
	// Config is the request configuration after before-request hooks.
	Config request.Config
	// Execution is the execution state. It may be nil.
	Execution *request.Execution
	// Err is the typed transport error, if any.
	Err error
	// ParseErr is the validator or parser error, if any.
	ParseErr error
}

// A Formatter transforms the uniform result of a logical request.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Formatter interface {
	Format(in Input) (result.Result, error)
}

// Func is a function implementing the Formatter interface.
type Func func(in Input) (result.Result, error)

// Format calls f(in).
func (f Func) Format(in Input) (result.Result, error) {
	return f(in)
}

// Default returns the result of the default formatting rule unchanged.
type Default struct{}

// Format returns in.Result.
func (Default) Format(in Input) (result.Result, error) {
	return in.Result, nil
}

// Chain runs formatters in order, feeding each one the result of the
// previous one.
func Chain(formatters ...Formatter) Formatter {
	return Func(func(in Input) (result.Result, error) {
		for _, f := range formatters {
			if f == nil {
				continue
			}
			r, err := f.Format(in)
			if err != nil {
				return result.Result{}, err
			}
			in.Result = r
		}
		return in.Result, nil
	})
}

// Build applies the default formatting rule to the outcome of a
// logical request:
//
//	transport success, parsed      -> true, status, "Success", parsed
//	transport success, parse error -> false, status, "Parsing failed: ...", nil
//	typed error with a status      -> false, status, error text, nil
//	typed error without a status   -> false, -1, error text, nil
//	anything else                  -> false, -2, description, nil
func Build(status int, parsed interface{}, err, parseErr error) result.Result {
	if err == nil {
		if status <= 0 {
			return result.Failuref(result.CodeUnexpectedType, "Unexpected response type: no response and no error")
		}
		if parseErr != nil {
			return result.Failuref(status, "Parsing failed: %v", parseErr)
		}
		return result.Success(status, parsed)
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		return result.Failuref(result.CodeUnexpectedType, "Unexpected error type %T: %v", err, err)
	}
	if code, ok := apierr.StatusCode(err); ok {
		return result.Failure(code, err.Error())
	}
	return result.Failure(result.CodeNonHTTPError, err.Error())
}

// Apply runs f on in. If f is nil, in.Result is returned. If f returns
// an error or panics, Apply returns result.FormattingFailed.
func Apply(f Formatter, in Input) (r result.Result, err error) {
	if f == nil {
		return in.Result, nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("formatter panic: %v", p)
			r = result.FormattingFailed(p)
		}
	}()
	r, err = f.Format(in)
	if err != nil {
		return result.FormattingFailed(err), err
	}
	return r, nil
}

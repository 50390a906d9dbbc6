// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package apierr defines the typed errors reported by httpflex.
//
// Every error is an *Error with a Kind. Use errors.Is with one of the
// sentinel values (ErrTimeout, ErrHTTP, ...) to branch on the kind, and
// StatusCode to recover the HTTP status carried by an HTTP error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// A Kind classifies an Error.
type Kind int

const (
	// Configuration indicates a client was constructed or used with an
	// invalid configuration. It is never retried.
	Configuration Kind = iota + 1
	// RequestValidation indicates a request configuration was rejected
	// by the request serializer before dispatch.
	RequestValidation
	// Timeout indicates the transport timed out.
	Timeout
	// Network indicates any other transport-level failure.
	Network
	// HTTP indicates the server answered with an error status.
	HTTP
	// ResponseValidation indicates a response validator rejected the
	// response.
	ResponseValidation
)

var kindNames = map[Kind]string{
	Configuration:      "Configuration",
	RequestValidation:  "RequestValidation",
	Timeout:            "Timeout",
	Network:            "Network",
	HTTP:               "HTTP",
	ResponseValidation: "ResponseValidation",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel values for use with errors.Is.
var (
	ErrConfiguration      = &Error{Kind: Configuration}
	ErrRequestValidation  = &Error{Kind: RequestValidation}
	ErrTimeout            = &Error{Kind: Timeout}
	ErrNetwork            = &Error{Kind: Network}
	ErrHTTP               = &Error{Kind: HTTP}
	ErrResponseValidation = &Error{Kind: ResponseValidation}
)

// An Error is a typed httpflex error.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP status code for HTTP and (when known)
	// ResponseValidation errors, and zero otherwise.
	StatusCode int
	// Reason is the HTTP reason phrase for HTTP errors.
	Reason string
	// Errors holds field-level detail for RequestValidation errors.
	Errors map[string][]string
	// Details holds extra context for ResponseValidation errors.
	Details map[string]interface{}

	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Configurationf returns a new Configuration error.
func Configurationf(format string, a ...interface{}) *Error {
	return &Error{Kind: Configuration, Message: fmt.Sprintf(format, a...)}
}

// NewRequestValidation returns a new RequestValidation error carrying
// field errors. The message lists the offending fields in sorted order.
func NewRequestValidation(message string, fields map[string][]string, cause error) *Error {
	msg := message
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+": "+strings.Join(fields[name], ", "))
		}
		msg = message + " (" + strings.Join(parts, "; ") + ")"
	}
	return &Error{Kind: RequestValidation, Message: msg, Errors: fields, Err: cause}
}

// NewTimeout returns a new Timeout error for a request to url.
func NewTimeout(url string, d time.Duration, cause error) *Error {
	return &Error{
		Kind:    Timeout,
		Message: fmt.Sprintf("Request to %s timed out after %s", url, d),
		Err:     cause,
	}
}

// NewNetwork returns a new Network error for a request to url.
func NewNetwork(url string, cause error) *Error {
	return &Error{
		Kind:    Network,
		Message: fmt.Sprintf("Request to %s failed: %v", url, cause),
		Err:     cause,
	}
}

// NewHTTP returns a new HTTP error for the given status. If reason is
// empty the standard reason phrase is used.
func NewHTTP(statusCode int, reason, url string) *Error {
	if reason == "" {
		reason = http.StatusText(statusCode)
	}
	return &Error{
		Kind:       HTTP,
		Message:    fmt.Sprintf("HTTP %d: %s for url: %s", statusCode, reason, url),
		StatusCode: statusCode,
		Reason:     reason,
	}
}

// NewResponseValidation returns a new ResponseValidation error.
func NewResponseValidation(message string, statusCode int, details map[string]interface{}) *Error {
	return &Error{
		Kind:       ResponseValidation,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCode returns the HTTP status carried by the first *Error in
// err's chain. The second return value is false if there is none.
func StatusCode(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		return e.StatusCode, true
	}
	return 0, false
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package parse provides the response parsers of an httpflex client.
//
// A parser turns the HTTP response of a successful transport call into
// the data carried by the uniform result. A parser that reports Stream
// true receives the response with its body unread and is responsible
// for it; other parsers receive the fully buffered body in
// Execution.Body.
package parse

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gogama/httpflex/request"
)

// A Parser produces the data of a uniform result from a response.
//
// Implementations must be safe for concurrent use by multiple
// goroutines. Per-request context, such as a download file name, is
// read from the Execution and never stored on the Parser.
type Parser interface {
	// Stream reports whether the parser reads the response body itself.
	Stream() bool
	// Parse returns the parsed data of e.Response.
	Parse(e *request.Execution) (interface{}, error)
}

// Default is the parser used when a client does not configure one.
var Default Parser = JSON{}

// Fallback is the parser used when a configured parser factory fails.
var Fallback Parser = Raw{}

type buffered struct{}

func (buffered) Stream() bool { return false }

// JSON decodes the buffered body as JSON.
type JSON struct{ buffered }

// Parse decodes e.Body.
func (JSON) Parse(e *request.Execution) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Content returns the buffered body bytes.
type Content struct{ buffered }

// Parse returns e.Body, never nil.
func (Content) Parse(e *request.Execution) (interface{}, error) {
	if e.Body == nil {
		return []byte{}, nil
	}
	return e.Body, nil
}

// Raw returns the *http.Response itself, with its body replaced by a
// reader over the buffered body so that it can still be read.
type Raw struct{ buffered }

// Parse returns a shallow copy of e.Response.
func (Raw) Parse(e *request.Execution) (interface{}, error) {
	if e.Response == nil {
		return nil, nil
	}
	resp := *e.Response
	resp.Body = io.NopCloser(bytes.NewReader(e.Body))
	return &resp, nil
}

// Stream returns the *http.Response with its body unread. The caller
// must close the body; bodies still open when the client is closed are
// closed by the client.
type Stream struct{}

// Stream always reports true.
func (Stream) Stream() bool { return true }

// Parse returns e.Response.
func (Stream) Parse(e *request.Execution) (interface{}, error) {
	return e.Response, nil
}

// Response returns the *http.Response held by v, if any. It recognizes
// the values produced by Raw and Stream.
func Response(v interface{}) (*http.Response, bool) {
	resp, ok := v.(*http.Response)
	return resp, ok && resp != nil
}

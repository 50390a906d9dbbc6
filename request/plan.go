// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	template, _ = http.NewRequest("GET", "", nil)
)

const (
	nilCtxMsg = "httpflex/request: nil context"
)

// A Placement says where the remaining request data of a logical
// request is sent.
type Placement int

const (
	// None means the remaining data is not sent.
	None Placement = iota
	// Query means the remaining data is encoded as query parameters.
	Query
	// Body means the remaining data is encoded as a JSON body.
	Body
)

// PlacementOf returns the fixed data placement for an HTTP method:
// GET, DELETE, HEAD and OPTIONS use the query string; POST, PUT and
// PATCH use a JSON body; any other method sends no data.
func PlacementOf(method string) Placement {
	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodDelete, http.MethodHead, http.MethodOptions:
		return Query
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return Body
	default:
		return None
	}
}

// A Plan contains the fully built HTTP request for one logical request:
// its rendered URL, the remaining data placed according to the method,
// and the headers to send.
//
// A Plan may be converted into many lower-level http.Request values,
// for example if the transport retries a failed attempt, so its body is
// pre-buffered.
type Plan struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// URL specifies the URL to access, including any query parameters
	// built from the remaining request data.
	URL *urlpkg.URL

	// Header contains the request header fields to be sent.
	Header http.Header

	// Body is the pre-buffered request body to be sent. A nil body
	// indicates no request body should be sent.
	Body []byte

	// ctx allows the plan execution to be cancelled. It should only
	// be modified by copying the whole Plan using WithContext.
	ctx context.Context
}

// NewPlan builds the plan for a logical request. The remaining data is
// placed in the query string or in a JSON body as decided by
// PlacementOf. Values already in the query string of url are kept, and
// header is copied.
func NewPlan(ctx context.Context, method, url string, data Config, header http.Header) (*Plan, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if method == "" {
		method = http.MethodGet
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("httpflex/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		ctx:    ctx,
		Method: method,
		URL:    u,
		Header: header.Clone(),
	}
	if p.Header == nil {
		p.Header = make(http.Header)
	}
	switch PlacementOf(method) {
	case Query:
		if len(data) > 0 {
			u.RawQuery = encodeQuery(u.Query(), data)
		}
	case Body:
		b, err := jsonBody(data)
		if err != nil {
			return nil, err
		}
		p.Body = b
		if p.Header.Get("Content-Type") == "" {
			p.Header.Set("Content-Type", "application/json")
		}
	}
	return p, nil
}

// Context returns the plan's context. The returned context is always
// non-nil; it defaults to the background context.
func (p *Plan) Context() context.Context {
	if p.ctx != nil {
		return p.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of p with its context changed to
// ctx, which must be non-nil.
func (p *Plan) WithContext(ctx context.Context) *Plan {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	p2 := new(Plan)
	*p2 = *p
	p2.ctx = ctx
	return p2
}

// ToRequest creates an HTTP request corresponding to the plan. The
// context of the new request is set to ctx, which may not be nil. The
// request has GetBody set so that the transport may replay it.
func (p *Plan) ToRequest(ctx context.Context) *http.Request {
	r := template.WithContext(ctx)
	r.Method = p.Method
	r.URL = p.URL
	r.Host = p.URL.Host
	r.Header = p.Header
	if p.Body != nil {
		r.Body = io.NopCloser(bytes.NewReader(p.Body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(p.Body)), nil
		}
		r.ContentLength = int64(len(p.Body))
	}
	return r
}

func encodeQuery(q urlpkg.Values, data Config) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := data[k].(type) {
		case nil:
		case []interface{}:
			for _, item := range v {
				if item != nil {
					q.Add(k, FormatValue(item))
				}
			}
		case []string:
			for _, item := range v {
				q.Add(k, item)
			}
		default:
			q.Add(k, FormatValue(v))
		}
	}
	return q.Encode()
}

func validMethod(method string) bool {
	return strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

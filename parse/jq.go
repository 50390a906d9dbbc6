// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package parse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gogama/httpflex/request"
	"github.com/itchyny/gojq"
)

// JQ decodes the buffered body as JSON and runs a jq query over it. A
// query emitting a single value yields that value; a query emitting
// several yields them as a slice; a query emitting nothing yields nil.
type JQ struct {
	buffered
	query string
	code  *gojq.Code
}

// NewJQ compiles query.
func NewJQ(query string) (*JQ, error) {
	q, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("jq parse error: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("jq compile error: %w", err)
	}
	return &JQ{query: query, code: code}, nil
}

// Query returns the source text of the query.
func (p *JQ) Query() string { return p.query }

// Parse runs the query over e.Body.
func (p *JQ) Parse(e *request.Execution) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return nil, err
	}
	ctx := context.Background()
	if e.Request != nil {
		ctx = e.Request.Context()
	}
	iter := p.code.RunWithContext(ctx, v)
	var results []interface{}
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			if halt, isHalt := err.(*gojq.HaltError); isHalt && halt.Value() == nil {
				break
			}
			return nil, err
		}
		results = append(results, out)
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

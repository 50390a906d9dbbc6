// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package format

import (
	"errors"
	"testing"
	"time"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		parsed   interface{}
		err      error
		parseErr error
		want     result.Result
	}{
		{
			name:   "success",
			status: 200,
			parsed: map[string]interface{}{"id": 7},
			want:   result.Result{Result: true, Code: 200, Message: "Success", Data: map[string]interface{}{"id": 7}},
		},
		{
			name:     "parse error",
			status:   200,
			parseErr: errors.New("invalid character '<'"),
			want:     result.Result{Code: 200, Message: "Parsing failed: invalid character '<'"},
		},
		{
			name: "http error",
			err:  apierr.NewHTTP(404, "", "http://x/y"),
			want: result.Result{Code: 404, Message: "HTTP 404: Not Found for url: http://x/y"},
		},
		{
			name: "timeout",
			err:  apierr.NewTimeout("http://x", 2*time.Second, nil),
			want: result.Result{Code: -1, Message: "Request to http://x timed out after 2s"},
		},
		{
			name: "network",
			err:  apierr.NewNetwork("http://x", errors.New("connection refused")),
			want: result.Result{Code: -1, Message: "Request to http://x failed: connection refused"},
		},
		{
			name: "untyped error",
			err:  errors.New("boom"),
			want: result.Result{Code: -2, Message: "Unexpected error type *errors.errorString: boom"},
		},
		{
			name: "nothing",
			want: result.Result{Code: -2, Message: "Unexpected response type: no response and no error"},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			r := Build(testCase.status, testCase.parsed, testCase.err, testCase.parseErr)
			assert.Equal(t, testCase.want, r)
		})
	}
}

func TestDefault(t *testing.T) {
	in := Input{Result: result.Success(201, "x")}
	r, err := Default{}.Format(in)
	require.NoError(t, err)
	assert.Equal(t, in.Result, r)
}

func TestChain(t *testing.T) {
	upper := Func(func(in Input) (result.Result, error) {
		r := in.Result
		r.Message += "!"
		return r, nil
	})
	wrap := Func(func(in Input) (result.Result, error) {
		r := in.Result
		r.Data = map[string]interface{}{"wrapped": r.Data, "id": in.RequestID}
		return r, nil
	})
	r, err := Chain(upper, nil, wrap).Format(Input{Result: result.Success(200, 1), RequestID: "REQ-1"})
	require.NoError(t, err)
	assert.Equal(t, "Success!", r.Message)
	assert.Equal(t, map[string]interface{}{"wrapped": 1, "id": "REQ-1"}, r.Data)

	_, err = Chain(upper, Func(func(Input) (result.Result, error) { return result.Result{}, errors.New("no") })).Format(Input{})
	assert.EqualError(t, err, "no")
}

func TestApply(t *testing.T) {
	in := Input{Result: result.Success(200, nil)}
	t.Run("nil", func(t *testing.T) {
		r, err := Apply(nil, in)
		assert.NoError(t, err)
		assert.Equal(t, in.Result, r)
	})
	t.Run("error", func(t *testing.T) {
		r, err := Apply(Func(func(Input) (result.Result, error) { return result.Result{}, errors.New("bad") }), in)
		assert.EqualError(t, err, "bad")
		assert.Equal(t, result.Result{Code: -3, Message: "Formatting failed: bad"}, r)
	})
	t.Run("panic", func(t *testing.T) {
		r, err := Apply(Func(func(Input) (result.Result, error) { panic("kaboom") }), in)
		assert.EqualError(t, err, "formatter panic: kaboom")
		assert.Equal(t, result.Result{Code: -3, Message: "Formatting failed: kaboom"}, r)
	})
}

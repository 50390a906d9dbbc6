// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package validate

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execution(status int) *request.Execution {
	return &request.Execution{Response: &http.Response{StatusCode: status}}
}

func TestStatusCode(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		v := StatusCode()
		assert.NoError(t, v.Validate(execution(200)))
		err := v.Validate(execution(201))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apierr.ErrResponseValidation))
		assert.Equal(t, "Response status code 201 not in allowed codes: [200]", err.Error())
		code, ok := apierr.StatusCode(err)
		assert.True(t, ok)
		assert.Equal(t, 201, code)
	})
	t.Run("custom", func(t *testing.T) {
		v := StatusCode(204, 200, 201)
		for _, c := range []int{200, 201, 204} {
			assert.NoError(t, v.Validate(execution(c)))
		}
		err := v.Validate(execution(202))
		var ae *apierr.Error
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, []int{200, 201, 204}, ae.Details["allowed_codes"])
		assert.Equal(t, 202, ae.Details["status_code"])
	})
	t.Run("not strict", func(t *testing.T) {
		v := StatusCode(200)
		v.Strict = false
		assert.NoError(t, v.Validate(execution(500)))
	})
}

func TestAll(t *testing.T) {
	var calls []string
	ok := Func(func(*request.Execution) error { calls = append(calls, "ok"); return nil })
	bad := Func(func(*request.Execution) error { calls = append(calls, "bad"); return errors.New("bad") })
	never := Func(func(*request.Execution) error { calls = append(calls, "never"); return nil })

	err := All(ok, nil, bad, never).Validate(execution(200))
	assert.EqualError(t, err, "bad")
	assert.Equal(t, []string{"ok", "bad"}, calls)
}

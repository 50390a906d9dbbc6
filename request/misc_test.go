// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	testCases := []struct {
		in   interface{}
		want string
	}{
		{"abc", "abc"},
		{5, "5"},
		{float64(5), "5"},
		{float64(12345678901), "12345678901"},
		{2.5, "2.5"},
		{float32(1.5), "1.5"},
		{1e22, "1e+22"},
		{json.Number("42"), "42"},
		{true, "true"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, FormatValue(testCase.in))
	}
}

func TestRender(t *testing.T) {
	t.Run("consumes placeholders", func(t *testing.T) {
		in := Config{"id": 5, "post_id": 9, "title": "x"}
		endpoint, remaining := Render("/users/{id}/posts/{post_id}", in)
		assert.Equal(t, "/users/5/posts/9", endpoint)
		assert.Equal(t, Config{"title": "x"}, remaining)
		assert.Len(t, in, 3, "input must not be mutated")
	})
	t.Run("unresolved placeholder", func(t *testing.T) {
		endpoint, remaining := Render("/users/{id}/{missing}", Config{"id": "a"})
		assert.Equal(t, "/users/a/{missing}", endpoint)
		assert.Equal(t, Config{}, remaining)
	})
	t.Run("repeated placeholder", func(t *testing.T) {
		endpoint, remaining := Render("/{v}/{v}", Config{"v": 1, "x": 2})
		assert.Equal(t, "/1/1", endpoint)
		assert.Equal(t, Config{"x": 2}, remaining)
	})
	t.Run("no placeholders", func(t *testing.T) {
		endpoint, remaining := Render("/plain", nil)
		assert.Equal(t, "/plain", endpoint)
		assert.Equal(t, Config{}, remaining)
	})
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://x", JoinURL("http://x", ""))
	assert.Equal(t, "http://x/a", JoinURL("http://x", "a"))
	assert.Equal(t, "http://x/a", JoinURL("http://x", "/a"))
	assert.Equal(t, "http://x//a", JoinURL("http://x", "//a"))
}

func TestConfig_Clone(t *testing.T) {
	var nilConfig Config
	assert.Nil(t, nilConfig.Clone())

	in := Config{
		"m": map[string]interface{}{"k": []interface{}{1}},
		"s": []string{"a"},
		"c": Config{"x": 1},
	}
	out := in.Clone()
	require.Equal(t, in, out)
	out["m"].(map[string]interface{})["k"].([]interface{})[0] = 2
	out["s"].([]string)[0] = "b"
	out["c"].(Config)["x"] = 3
	assert.Equal(t, 1, in["m"].(map[string]interface{})["k"].([]interface{})[0])
	assert.Equal(t, "a", in["s"].([]string)[0])
	assert.Equal(t, 1, in["c"].(Config)["x"])
}

func TestNewID(t *testing.T) {
	re := regexp.MustCompile(`^REQ-\d{13}-[0-9a-f]{8}$`)
	id := NewID("")
	assert.Regexp(t, re, id)
	assert.True(t, strings.HasSuffix(NewID("3"), "-3"))
	assert.NotEqual(t, NewID(""), NewID(""))
}

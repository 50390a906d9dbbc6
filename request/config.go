// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"regexp"
	"strings"
)

// A Config is the configuration of one logical request: a mapping of
// parameter names to values. Values which name an endpoint placeholder
// are consumed to render the endpoint; the remaining data is sent as
// query parameters or as a JSON body depending on the method.
type Config map[string]interface{}

// Clone returns a deep copy of c. Nested maps and slices are copied;
// other values are shared.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	return Config(cloneMap(c))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return cloneMap(x)
	case Config:
		return Config(cloneMap(x))
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Render substitutes every {name} placeholder in endpoint with the value
// of the same-named key in c, and returns the rendered endpoint together
// with a copy of c from which the consumed keys have been removed.
//
// Placeholders with no matching key are left verbatim. The same key
// may fill several placeholders.
func Render(endpoint string, c Config) (string, Config) {
	remaining := c.Clone()
	if remaining == nil {
		remaining = Config{}
	}
	if endpoint == "" || !strings.Contains(endpoint, "{") {
		return endpoint, remaining
	}
	consumed := make(map[string]bool)
	rendered := placeholder.ReplaceAllStringFunc(endpoint, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := c[name]
		if !ok {
			return m
		}
		consumed[name] = true
		return FormatValue(v)
	})
	for name := range consumed {
		delete(remaining, name)
	}
	return rendered, remaining
}

// JoinURL joins a base URL and a rendered endpoint, removing exactly one
// redundant slash at the join. An empty endpoint yields base unchanged.
// The base URL is expected to have had its trailing slash stripped.
func JoinURL(base, endpoint string) string {
	if endpoint == "" {
		return base
	}
	return base + "/" + strings.TrimPrefix(endpoint, "/")
}

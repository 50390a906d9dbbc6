// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sanitize masks sensitive values in headers, URLs, maps and
// strings before they are written to logs.
//
// Sanitizing never alters the data actually sent over the wire: every
// function returns a copy.
package sanitize

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Mask is the default placeholder which replaces sensitive values.
const Mask = "***"

// DefaultHeaders is the default list of sensitive header names.
var DefaultHeaders = []string{
	"Authorization",
	"Cookie",
	"X-API-Key",
	"X-Auth-Token",
	"X-Access-Token",
	"API-Key",
	"Auth-Token",
	"Session-ID",
}

// DefaultParams is the default list of sensitive query parameter and
// map key names.
var DefaultParams = []string{
	"token",
	"password",
	"secret",
	"key",
	"api_key",
	"apikey",
	"access_token",
	"auth_token",
	"session",
	"pwd",
}

// A Sanitizer masks sensitive values. Key matching is case-insensitive.
// The zero value uses DefaultHeaders, DefaultParams and Mask.
type Sanitizer struct {
	Headers []string
	Params  []string
	Mask    string
}

func (s *Sanitizer) mask() string {
	if s == nil || s.Mask == "" {
		return Mask
	}
	return s.Mask
}

func (s *Sanitizer) headers() []string {
	if s == nil || s.Headers == nil {
		return DefaultHeaders
	}
	return s.Headers
}

func (s *Sanitizer) params() []string {
	if s == nil || s.Params == nil {
		return DefaultParams
	}
	return s.Params
}

// Header returns a copy of h with sensitive header values masked.
func (s *Sanitizer) Header(h http.Header) http.Header {
	return Header(h, s.headers(), s.mask())
}

// URL returns u with sensitive query parameter values masked.
func (s *Sanitizer) URL(u string) string {
	return URL(u, s.params(), s.mask())
}

// Map returns a deep copy of m with sensitive values masked.
func (s *Sanitizer) Map(m map[string]interface{}) map[string]interface{} {
	return Map(m, s.params(), s.mask(), true)
}

// Header returns a copy of h where the values of every header named in
// keys are replaced by mask.
func Header(h http.Header, keys []string, mask string) http.Header {
	if h == nil {
		return nil
	}
	set := lowerSet(keys)
	out := make(http.Header, len(h))
	for k, vs := range h {
		if set[strings.ToLower(k)] {
			out[k] = []string{mask}
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// URL returns rawURL with the values of every query parameter named in
// keys replaced by mask. If rawURL cannot be parsed it is returned
// unchanged.
func URL(rawURL string, keys []string, mask string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	set := lowerSet(keys)
	q := u.Query()
	changed := false
	for k, vs := range q {
		if set[strings.ToLower(k)] {
			for i := range vs {
				vs[i] = mask
			}
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Map returns a copy of m where the value of every key named in keys is
// replaced by mask. If recursive is true, nested maps and maps within
// slices are sanitized too.
func Map(m map[string]interface{}, keys []string, mask string, recursive bool) map[string]interface{} {
	if m == nil {
		return nil
	}
	return sanitizeMap(m, lowerSet(keys), mask, recursive)
}

func sanitizeMap(m map[string]interface{}, set map[string]bool, mask string, recursive bool) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch {
		case set[strings.ToLower(k)]:
			out[k] = mask
		case recursive:
			out[k] = sanitizeValue(v, set, mask)
		default:
			out[k] = v
		}
	}
	return out
}

func sanitizeValue(v interface{}, set map[string]bool, mask string) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return sanitizeMap(x, set, mask, true)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = sanitizeValue(x[i], set, mask)
		}
		return out
	default:
		return v
	}
}

// String replaces every match of pattern in text by mask, keeping the
// first keepPrefix and last keepSuffix characters of each match. If a
// match is too short to keep both, it is masked entirely.
func String(text string, pattern *regexp.Regexp, mask string, keepPrefix, keepSuffix int) string {
	return pattern.ReplaceAllStringFunc(text, func(m string) string {
		r := []rune(m)
		if keepPrefix < 0 {
			keepPrefix = 0
		}
		if keepSuffix < 0 {
			keepSuffix = 0
		}
		if keepPrefix+keepSuffix >= len(r) {
			return mask
		}
		return string(r[:keepPrefix]) + mask + string(r[len(r)-keepSuffix:])
	})
}

func lowerSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = true
	}
	return set
}

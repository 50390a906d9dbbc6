// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultRelevantHeaders lists the headers which participate in cache
// key derivation by default.
var DefaultRelevantHeaders = []string{"Accept", "Accept-Language", "Content-Type"}

// Cacheable reports whether responses to method may be cached. Only GET
// and HEAD are cacheable.
func Cacheable(method string) bool {
	m := strings.ToUpper(method)
	return m == http.MethodGet || m == http.MethodHead
}

// RelevantHeaders returns the first value of each header of h named in
// names. Header names are matched case-insensitively. Absent headers
// are omitted.
func RelevantHeaders(h http.Header, names []string) map[string]string {
	out := make(map[string]string)
	for _, name := range names {
		if v := h.Get(name); v != "" {
			out[http.CanonicalHeaderKey(name)] = v
		}
	}
	return out
}

// A KeyInput holds the parts of a request which identify its cached
// result.
type KeyInput struct {
	URL     string
	Method  string
	Headers map[string]string
	Data    map[string]interface{}
	// User isolates the entries of one user. It is omitted from the
	// key when empty.
	User string
}

// Key derives the cache key of a request: the hex encoded 128-bit
// BLAKE2b hash of the JSON encoding of in, with map keys sorted. A
// non-empty prefix is prepended as "<prefix>_<hash>".
//
// Equal inputs always produce the same key. Key fails only if the
// request data cannot be encoded as JSON.
func Key(in KeyInput, prefix string) (string, error) {
	headers, data := in.Headers, in.Data
	if headers == nil {
		headers = map[string]string{}
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	doc := map[string]interface{}{
		"url":          in.URL,
		"method":       strings.ToUpper(in.Method),
		"headers":      headers,
		"request_data": data,
	}
	if in.User != "" {
		doc["user"] = in.User
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("cache: key: %w", err)
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", fmt.Errorf("cache: key: %w", err)
	}
	h.Write(b)
	sum := hex.EncodeToString(h.Sum(nil))
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		return prefix + "_" + sum, nil
	}
	return sum, nil
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Type markers prefixed to encoded values. Strings are stored without a
// marker.
const (
	MarkerJSON   = "__JSON__:"
	MarkerBytes  = "__BYTES__:"
	MarkerNumber = "__NUMBER__:"
	MarkerBool   = "__BOOL__:"
)

// Encode serializes v into a string which Decode turns back into a
// value of the same kind.
//
// Strings are stored raw, byte slices as base64, integers and floats
// as numbers, booleans as booleans, and everything else, including
// maps, slices and structs, as JSON. A float with an integral value
// keeps its float identity.
func Encode(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return MarkerBytes + base64.StdEncoding.EncodeToString(x), nil
	case bool:
		return MarkerBool + strconv.FormatBool(x), nil
	case float32:
		return MarkerNumber + formatFloat(float64(x), 32), nil
	case float64:
		return MarkerNumber + formatFloat(x, 64), nil
	case json.Number:
		return MarkerNumber + x.String(), nil
	case nil:
		return MarkerJSON + "null", nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return MarkerNumber + strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return MarkerNumber + strconv.FormatUint(rv.Uint(), 10), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache: encode %T: %w", v, err)
	}
	return MarkerJSON + string(b), nil
}

func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// Decode reverses Encode.
//
// Numbers without a fraction or exponent decode to int64, other
// numbers to float64. JSON values decode to the generic
// map[string]interface{}, []interface{} and scalar types of
// encoding/json, with numbers as float64.
func Decode(s string) (interface{}, error) {
	switch {
	case strings.HasPrefix(s, MarkerJSON):
		var v interface{}
		if err := json.Unmarshal([]byte(s[len(MarkerJSON):]), &v); err != nil {
			return nil, fmt.Errorf("cache: decode json: %w", err)
		}
		return v, nil
	case strings.HasPrefix(s, MarkerBytes):
		b, err := base64.StdEncoding.DecodeString(s[len(MarkerBytes):])
		if err != nil {
			return nil, fmt.Errorf("cache: decode bytes: %w", err)
		}
		return b, nil
	case strings.HasPrefix(s, MarkerNumber):
		n := s[len(MarkerNumber):]
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, fmt.Errorf("cache: decode number: %w", err)
		}
		return f, nil
	case strings.HasPrefix(s, MarkerBool):
		b, err := strconv.ParseBool(s[len(MarkerBool):])
		if err != nil {
			return nil, fmt.Errorf("cache: decode bool: %w", err)
		}
		return b, nil
	default:
		return s, nil
	}
}

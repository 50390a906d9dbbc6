// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FormatValue converts a request configuration value to the string used
// in a rendered endpoint or a query parameter.
//
// Whole floating point numbers below 1e21 are printed without exponent
// or fraction, so that an identifier decoded from JSON as 12345678901.0
// renders as "12345678901".
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e21 {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return FormatValue(float64(x))
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// jsonBody encodes the remaining request data of a write-style request.
// A nil Config encodes as an empty object.
func jsonBody(data Config) ([]byte, error) {
	if data == nil {
		data = Config{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("httpflex/request: cannot encode body: %w", err)
	}
	return b, nil
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"
)

// MaxBackoff caps the wait computed from a backoff factor.
const MaxBackoff = 2 * time.Minute

// Config holds the retry fields of a client configuration.
type Config struct {
	// Total is the maximum number of retries. Zero disables retries.
	Total int `yaml:"total" json:"total"`
	// BackoffFactor is the base of the exponential backoff. The wait
	// before the n-th retry (n >= 2) is BackoffFactor * 2^(n-1); the
	// first retry is immediate.
	BackoffFactor time.Duration `yaml:"backoff_factor" json:"backoff_factor"`
	// StatusForcelist is the set of status codes which trigger a retry.
	StatusForcelist []int `yaml:"status_forcelist" json:"status_forcelist"`
	// AllowedMethods is the set of methods which may be retried after
	// a response or a read error. Connection failures are retried for
	// every method.
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	// RaiseOnStatus makes the transport return an error, instead of the
	// last response, when retries are exhausted on a forcelisted status.
	RaiseOnStatus bool `yaml:"raise_on_status" json:"raise_on_status"`
}

// DefaultConfig returns the default retry configuration: 3 retries, a
// 500ms backoff factor, status codes 429, 500, 502, 503 and 504, and
// the methods HEAD, GET, PUT, DELETE, OPTIONS, TRACE and POST.
func DefaultConfig() Config {
	return Config{
		Total:           3,
		BackoffFactor:   500 * time.Millisecond,
		StatusForcelist: []int{429, 500, 502, 503, 504},
		AllowedMethods:  []string{"HEAD", "GET", "PUT", "DELETE", "OPTIONS", "TRACE", "POST"},
		RaiseOnStatus:   false,
	}
}

// FromConfig builds the retry policy described by c.
func FromConfig(c Config) Policy {
	if c.Total <= 0 {
		return Never
	}
	var w Waiter = NewFixedWaiter(0)
	if c.BackoffFactor > 0 {
		ceiling := MaxBackoff
		if c.BackoffFactor > ceiling {
			ceiling = c.BackoffFactor
		}
		w = NewBackoffWaiter(c.BackoffFactor, ceiling)
	}
	return NewPolicy(decider(c), w)
}

func decider(c Config) DeciderFunc {
	method := Method(c.AllowedMethods...)
	return Times(c.Total).And(
		ConnectErr.
			Or(method.And(StatusCode(c.StatusForcelist...))).
			Or(method.And(TransientErr)))
}

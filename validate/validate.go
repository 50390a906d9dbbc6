// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package validate provides response validators. A validator runs on
// the response of a successful transport call, before the parser, and
// rejects it by returning an error. A rejection is reported in the
// uniform result the same way as a parse error.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/request"
)

// A Validator checks the response of a logical request.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Validator interface {
	Validate(e *request.Execution) error
}

// Func is a function implementing the Validator interface.
type Func func(e *request.Execution) error

// Validate calls f(e).
func (f Func) Validate(e *request.Execution) error {
	return f(e)
}

// StatusCodeValidator accepts responses whose status code is in an
// allowed set. When Strict is false it accepts every response.
type StatusCodeValidator struct {
	Allowed map[int]bool
	Strict  bool
}

// StatusCode returns a strict StatusCodeValidator allowing codes, or
// only 200 if codes is empty.
func StatusCode(codes ...int) *StatusCodeValidator {
	if len(codes) == 0 {
		codes = []int{200}
	}
	allowed := make(map[int]bool, len(codes))
	for _, c := range codes {
		allowed[c] = true
	}
	return &StatusCodeValidator{Allowed: allowed, Strict: true}
}

// Validate returns an *apierr.Error of kind ResponseValidation if the
// status code of e is not allowed.
func (v *StatusCodeValidator) Validate(e *request.Execution) error {
	if !v.Strict {
		return nil
	}
	status := e.StatusCode()
	if v.Allowed[status] {
		return nil
	}
	codes := v.codes()
	return apierr.NewResponseValidation(
		fmt.Sprintf("Response status code %d not in allowed codes: [%s]", status, join(codes)),
		status,
		map[string]interface{}{"status_code": status, "allowed_codes": codes},
	)
}

func (v *StatusCodeValidator) codes() []int {
	codes := make([]int, 0, len(v.Allowed))
	for c, ok := range v.Allowed {
		if ok {
			codes = append(codes, c)
		}
	}
	sort.Ints(codes)
	return codes
}

func join(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprint(c)
	}
	return strings.Join(parts, ", ")
}

// All runs validators in order and returns the first rejection.
func All(validators ...Validator) Validator {
	return Func(func(e *request.Execution) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v.Validate(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gogama/httpflex/result"
)

// A Predicate decides whether a freshly fetched result is stored.
//
// When ShouldCache returns an error, the cache-aware client logs it and
// stores the result, as if the predicate had accepted it.
type Predicate interface {
	ShouldCache(r result.Result) (bool, error)
}

// The PredicateFunc type is an adapter to allow the use of ordinary
// functions as predicates.
type PredicateFunc func(r result.Result) bool

// ShouldCache calls f(r).
func (f PredicateFunc) ShouldCache(r result.Result) (bool, error) {
	return f(r), nil
}

// Always accepts every result.
var Always Predicate = PredicateFunc(func(result.Result) bool { return true })

// OnlySuccess accepts successful results only.
var OnlySuccess Predicate = PredicateFunc(func(r result.Result) bool { return r.Result })

// ExprPredicate is a Predicate written as a boolean expr-lang
// expression. The expression sees the variables result, code, message
// and data, for example:
//
//	result && code == 200 && data != nil
type ExprPredicate struct {
	source  string
	program *vm.Program
}

// NewExprPredicate compiles expression. An empty expression accepts
// every result.
func NewExprPredicate(expression string) (*ExprPredicate, error) {
	if expression == "" {
		expression = "true"
	}
	program, err := expr.Compile(expression,
		expr.Env(predicateEnv(result.Result{})),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to compile predicate: %w", err)
	}
	return &ExprPredicate{source: expression, program: program}, nil
}

// String returns the source expression.
func (p *ExprPredicate) String() string {
	return p.source
}

// ShouldCache implements Predicate.
func (p *ExprPredicate) ShouldCache(r result.Result) (bool, error) {
	out, err := expr.Run(p.program, predicateEnv(r))
	if err != nil {
		return false, fmt.Errorf("cache: predicate evaluation failed: %w", err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("cache: predicate must return boolean, got %T", out)
	}
	return b, nil
}

func predicateEnv(r result.Result) map[string]interface{} {
	return map[string]interface{}{
		"result":  r.Result,
		"code":    r.Code,
		"message": r.Message,
		"data":    r.Data,
	}
}

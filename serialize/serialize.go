// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package serialize provides request serializers. A serializer checks,
// and may transform, a request configuration before it is dispatched.
// Its errors are returned to the caller of the request entry point
// rather than folded into a uniform result.
package serialize

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/request"
)

// A Serializer validates a request configuration and returns the
// configuration to dispatch.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Serializer interface {
	Validate(c request.Config) (request.Config, error)
}

// Func is a function implementing the Serializer interface.
type Func func(c request.Config) (request.Config, error)

// Validate calls f(c).
func (f Func) Validate(c request.Config) (request.Config, error) {
	return f(c)
}

// Struct returns a Serializer which decodes the configuration into a
// value of type T, using its json tags, and validates it against its
// validate tags. Field errors are reported under their JSON names. The
// configuration itself is returned unchanged.
//
//	type CreateUser struct {
//		Name string `json:"name" validate:"required"`
//		Age  int    `json:"age" validate:"gte=0,lte=150"`
//	}
//
//	s := serialize.Struct[CreateUser]()
func Struct[T any]() Serializer {
	return &structSerializer[T]{validate: newValidate()}
}

type structSerializer[T any] struct {
	validate *validator.Validate
}

func (s *structSerializer[T]) Validate(c request.Config) (request.Config, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, apierr.NewRequestValidation("invalid request", nil, err)
	}
	var v T
	if err = json.Unmarshal(b, &v); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return nil, apierr.NewRequestValidation("invalid request",
				map[string][]string{ute.Field: {"expected " + ute.Type.String()}}, err)
		}
		return nil, apierr.NewRequestValidation("invalid request", nil, err)
	}
	if err = s.validate.Struct(&v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, apierr.NewRequestValidation("invalid request", nil, err)
		}
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			name := fieldName(fe)
			fields[name] = append(fields[name], fe.Tag())
		}
		return nil, apierr.NewRequestValidation("invalid request", fields, err)
	}
	return c, nil
}

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// fieldName returns the JSON path of a field error without the name of
// the top-level struct.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Required returns a Serializer rejecting configurations which lack any
// of keys, or have them set to nil or the empty string.
func Required(keys ...string) Serializer {
	return Func(func(c request.Config) (request.Config, error) {
		fields := map[string][]string{}
		for _, k := range keys {
			v, ok := c[k]
			if !ok || v == nil || v == "" {
				fields[k] = []string{"required"}
			}
		}
		if len(fields) > 0 {
			return nil, apierr.NewRequestValidation("invalid request", fields, nil)
		}
		return c, nil
	})
}

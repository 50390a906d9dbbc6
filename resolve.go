// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"fmt"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/format"
	"github.com/gogama/httpflex/parse"
	"github.com/gogama/httpflex/serialize"
	"github.com/gogama/httpflex/validate"
	"go.uber.org/zap"
)

// A component is a pluggable part of a Client given either as a ready
// instance or as a factory.
type component[T any] struct {
	instance T
	isSet    bool
	factory  func() (T, error)
}

func (c *component[T]) set(v T) {
	c.instance = v
	c.isSet = true
	c.factory = nil
}

// resolve returns the configured instance, or the product of the
// factory, or the product of def. If construction fails the failure is
// logged and fallback is returned, except for Configuration errors from
// def, which are returned.
func resolve[T any](name string, c component[T], def func() (T, error), fallback T, logger *zap.Logger) (T, error) {
	var (
		v   T
		err error
	)
	switch {
	case c.factory != nil:
		v, err = c.factory()
	case c.isSet:
		return c.instance, nil
	case def != nil:
		v, err = def()
		if apierr.KindOf(err) == apierr.Configuration {
			return v, err
		}
	}
	if err != nil {
		logger.Warn("component construction failed, using fallback",
			zap.String("component", name),
			zap.String("fallback", fmt.Sprintf("%T", fallback)),
			zap.Error(err))
		return fallback, nil
	}
	return v, nil
}

func parserFromConfig(cfg Config) func() (parse.Parser, error) {
	return func() (parse.Parser, error) {
		switch cfg.Parser {
		case "", "json":
			return parse.Default, nil
		case "content":
			return parse.Content{}, nil
		case "raw":
			return parse.Raw{}, nil
		case "stream":
			return parse.Stream{}, nil
		case "file":
			f, err := parse.NewFile(cfg.DownloadDir)
			if err != nil {
				return nil, fmt.Errorf("cannot create download directory: %w", err)
			}
			return f, nil
		case "jq":
			p, err := parse.NewJQ(cfg.JQ)
			if err != nil {
				return nil, apierr.Configurationf("httpflex: invalid jq query: %v", err)
			}
			return p, nil
		default:
			return nil, apierr.Configurationf("httpflex: unknown parser %q", cfg.Parser)
		}
	}
}

func validatorFromConfig(cfg Config) func() (validate.Validator, error) {
	return func() (validate.Validator, error) {
		if len(cfg.AllowedStatus) == 0 {
			return nil, nil
		}
		v := validate.StatusCode(cfg.AllowedStatus...)
		v.Strict = cfg.StrictStatus == nil || *cfg.StrictStatus
		return v, nil
	}
}

func formatterFromConfig() (format.Formatter, error) {
	return format.Default{}, nil
}

func serializerFromConfig(cfg Config) func() (serialize.Serializer, error) {
	return func() (serialize.Serializer, error) {
		if len(cfg.Required) == 0 {
			return nil, nil
		}
		return serialize.Required(cfg.Required...), nil
	}
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"net/http"
	"time"

	"github.com/gogama/httpflex/cache"
	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/format"
	"github.com/gogama/httpflex/parse"
	"github.com/gogama/httpflex/sanitize"
	"github.com/gogama/httpflex/serialize"
	"github.com/gogama/httpflex/transport"
	"github.com/gogama/httpflex/validate"
	"go.uber.org/zap"
)

// An Option customizes a Client under construction.
type Option func(*settings)

type settings struct {
	overrides []Config
	fields    []func(*Config)

	parser     component[parse.Parser]
	validator  component[validate.Validator]
	formatter  component[format.Formatter]
	serializer component[serialize.Serializer]

	executor  executor.Executor
	handlers  *HandlerGroup
	logger    *zap.Logger
	auth      transport.Authenticator
	base      http.RoundTripper
	wrap      func(http.RoundTripper) http.RoundTripper
	sanitizer *sanitize.Sanitizer
	factory   string

	cacheBackend   cache.Backend
	cachePredicate cache.Predicate
	cacheObserver  CacheObserver
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// config layers the instance overrides and field options over cfg.
func (s *settings) config(cfg Config) Config {
	out := Merge(DefaultConfig(), cfg)
	for _, o := range s.overrides {
		out = Merge(out, o)
	}
	for _, f := range s.fields {
		f(&out)
	}
	return out
}

// WithConfig layers c over the configuration passed to New.
func WithConfig(c Config) Option {
	return func(s *settings) { s.overrides = append(s.overrides, c) }
}

// WithTimeout sets the per-attempt transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.fields = append(s.fields, func(c *Config) { c.Timeout = d })
	}
}

// WithMaxRetries enables transport retries and sets their number.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		s.fields = append(s.fields, func(c *Config) {
			c.MaxRetries = Int(n)
			c.Retry.Total = n
			c.EnableRetry = Bool(n > 0)
		})
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		s.fields = append(s.fields, func(c *Config) {
			h := make(map[string]string, len(c.Headers)+1)
			for k, v := range c.Headers {
				h[k] = v
			}
			h[key] = value
			c.Headers = h
		})
	}
}

// WithMaxWorkers sets the concurrency of the pool executor.
func WithMaxWorkers(n int) Option {
	return func(s *settings) {
		s.fields = append(s.fields, func(c *Config) { c.MaxWorkers = n })
	}
}

// WithLogger sets the logger of the client.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithParser sets the response parser, overriding Config.Parser.
func WithParser(p parse.Parser) Option {
	return func(s *settings) { s.parser.set(p) }
}

// WithParserFactory sets a function constructing the response parser.
// If it fails, the client falls back to parse.Fallback.
func WithParserFactory(f func() (parse.Parser, error)) Option {
	return func(s *settings) { s.parser.factory = f }
}

// WithValidator sets the response validator, overriding
// Config.AllowedStatus.
func WithValidator(v validate.Validator) Option {
	return func(s *settings) { s.validator.set(v) }
}

// WithValidatorFactory sets a function constructing the response
// validator. If it fails, the client runs without a validator.
func WithValidatorFactory(f func() (validate.Validator, error)) Option {
	return func(s *settings) { s.validator.factory = f }
}

// WithFormatter sets the response formatter.
func WithFormatter(f format.Formatter) Option {
	return func(s *settings) { s.formatter.set(f) }
}

// WithFormatterFactory sets a function constructing the response
// formatter. If it fails, the client falls back to format.Default.
func WithFormatterFactory(f func() (format.Formatter, error)) Option {
	return func(s *settings) { s.formatter.factory = f }
}

// WithSerializer sets the request serializer, overriding
// Config.Required.
func WithSerializer(z serialize.Serializer) Option {
	return func(s *settings) { s.serializer.set(z) }
}

// WithSerializerFactory sets a function constructing the request
// serializer. If it fails, requests are not validated.
func WithSerializerFactory(f func() (serialize.Serializer, error)) Option {
	return func(s *settings) { s.serializer.factory = f }
}

// WithExecutor sets the batch executor, overriding Config.Executor.
func WithExecutor(x executor.Executor) Option {
	return func(s *settings) { s.executor = x }
}

// WithHandlers installs the event handlers of g.
func WithHandlers(g *HandlerGroup) Option {
	return func(s *settings) { s.handlers = g }
}

// WithAuth sets the authenticator, overriding Config.Auth.
func WithAuth(a transport.Authenticator) Option {
	return func(s *settings) { s.auth = a }
}

// WithBaseTransport replaces the pooled HTTP transport of the session.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(s *settings) { s.base = rt }
}

// WithTransportWrapper installs f around the pooled transport. Unlike
// WithBaseTransport, the connection pool settings still apply. Each
// call composes with the previous ones, the first being innermost.
func WithTransportWrapper(f func(http.RoundTripper) http.RoundTripper) Option {
	return func(s *settings) {
		if f == nil {
			return
		}
		prev := s.wrap
		if prev == nil {
			s.wrap = f
			return
		}
		s.wrap = func(rt http.RoundTripper) http.RoundTripper { return f(prev(rt)) }
	}
}

// WithSanitizer sets the sanitizer applied to logged values.
func WithSanitizer(z *sanitize.Sanitizer) Option {
	return func(s *settings) { s.sanitizer = z }
}

// WithFactoryName names the registered factory able to rebuild the
// client in another process. See Register.
func WithFactoryName(name string) Option {
	return func(s *settings) { s.factory = name }
}

// WithCacheBackend sets the backend of a CacheClient, overriding
// CacheConfig.Backend.
func WithCacheBackend(b cache.Backend) Option {
	return func(s *settings) { s.cacheBackend = b }
}

// WithShouldCache sets the predicate deciding whether a CacheClient
// stores a result, overriding CacheConfig.ShouldCache.
func WithShouldCache(p cache.Predicate) Option {
	return func(s *settings) { s.cachePredicate = p }
}

// WithCacheObserver sets the observer notified of cache hits and
// misses.
func WithCacheObserver(o CacheObserver) Option {
	return func(s *settings) { s.cacheObserver = o }
}

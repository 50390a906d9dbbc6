// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/format"
	"github.com/gogama/httpflex/parse"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"github.com/gogama/httpflex/sanitize"
	"github.com/gogama/httpflex/serialize"
	"github.com/gogama/httpflex/transport"
	"github.com/gogama/httpflex/validate"
	"go.uber.org/zap"
)

var emptyHandlers = HandlerGroup{}

// A Client executes logical requests against one HTTP endpoint and
// reports every outcome as a uniform result.
//
// A Client owns a pooled session, so Client instances should be reused
// instead of created as needed. Client is safe for concurrent use by
// multiple goroutines.
//
// For each logical request, Client:
//
// • fires BeforeRequest handlers, which may rewrite the request
// configuration;
//
// • renders the endpoint template, placing the remaining request data
// in the query string (GET, DELETE, HEAD, OPTIONS) or in a JSON body
// (POST, PUT, PATCH);
//
// • sends the request through the session, which applies the timeout,
// retry, TLS, rate limit and auth settings of the Config;
//
// • classifies the outcome as success, timeout, network error or HTTP
// error, firing AfterRequest and OnRequestError handlers;
//
// • validates and parses the response, and formats the uniform result;
// and
//
// • fires AfterExecutionEnd handlers with the final result.
//
// Only construction problems and request validation failures are
// returned as errors. Everything that happens after a request has been
// accepted for dispatch is reported in the result.
type Client struct {
	cfg    Config
	method string
	target string

	header     http.Header
	parser     parse.Parser
	validator  validate.Validator
	formatter  format.Formatter
	serializer serialize.Serializer
	executor   executor.Executor
	handlers   *HandlerGroup
	logger     *zap.Logger
	sanitizer  *sanitize.Sanitizer
	factory    string

	// keyer, if set, derives the cache key annotated on results.
	keyer func(request.Config) (string, bool)

	sessionMu sync.RWMutex
	session   *transport.Session
	closeOnce sync.Once

	streamsMu sync.Mutex
	streams   map[*trackedBody]struct{}

	arena arena
}

// New constructs a Client. The effective configuration is
// DefaultConfig() overlaid with cfg, then with every WithConfig
// override, then with the field options such as WithTimeout.
//
// New returns an *apierr.Error of kind Configuration if neither a base
// URL nor a full URL is configured, or if a named component cannot be
// built.
func New(cfg Config, opts ...Option) (*Client, error) {
	c, _, err := newClient(cfg, opts)
	return c, err
}

func newClient(cfg Config, opts []Option) (*Client, *settings, error) {
	s := newSettings(opts)
	eff := s.config(cfg)
	if err := eff.validate(); err != nil {
		return nil, nil, apierr.Configurationf("httpflex: %v", err)
	}

	logger := s.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:       eff,
		method:    strings.ToUpper(strings.TrimSpace(eff.Method)),
		header:    make(http.Header, len(eff.Headers)),
		handlers:  s.handlers,
		logger:    logger,
		sanitizer: s.sanitizer,
		factory:   s.factory,
	}
	if c.method == "" {
		c.method = DefaultMethod
	}
	if eff.URL != "" {
		c.target = strings.TrimRight(strings.TrimSpace(eff.URL), "/")
	} else {
		c.target = request.JoinURL(strings.TrimSpace(eff.BaseURL), eff.Endpoint)
	}
	for k, v := range eff.Headers {
		c.header.Set(k, v)
	}
	if c.handlers == nil {
		c.handlers = &emptyHandlers
	}
	if c.sanitizer == nil {
		c.sanitizer = &sanitize.Sanitizer{}
	}

	var err error
	if c.parser, err = resolve("parser", s.parser, parserFromConfig(eff), parse.Fallback, logger); err != nil {
		return nil, nil, err
	}
	if c.parser == nil {
		c.parser = parse.Default
	}
	if c.validator, err = resolve("validator", s.validator, validatorFromConfig(eff), nil, logger); err != nil {
		return nil, nil, err
	}
	if c.formatter, err = resolve[format.Formatter]("formatter", s.formatter, formatterFromConfig, format.Default{}, logger); err != nil {
		return nil, nil, err
	}
	if c.serializer, err = resolve("serializer", s.serializer, serializerFromConfig(eff), nil, logger); err != nil {
		return nil, nil, err
	}

	c.executor = s.executor
	if c.executor == nil {
		if c.executor, err = executor.ByName(eff.Executor, 0); err != nil {
			return nil, nil, apierr.Configurationf("%v", err)
		}
	}

	auth := s.auth
	if auth == nil {
		if auth, err = transport.FromAuthConfig(eff.Auth); err != nil {
			return nil, nil, apierr.Configurationf("httpflex: invalid auth: %v", err)
		}
	}
	c.session, err = transport.New(transport.Options{
		Timeout:     eff.Timeout,
		Escalation:  eff.AttemptTimeouts,
		Verify:      eff.Verify == nil || *eff.Verify,
		EnableRetry: eff.EnableRetry != nil && *eff.EnableRetry,
		Retry:       eff.Retry,
		Buffer:      !c.parser.Stream(),
		Pool:        eff.Pool,
		Auth:        auth,
		Base:        s.base,
		Wrap:        s.wrap,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, apierr.Configurationf("httpflex: failed to create session: %v", err)
	}

	return c, s, nil
}

// Config returns the effective configuration of the client.
func (c *Client) Config() Config {
	return c.cfg
}

// URL returns the URL template requests are sent to, before endpoint
// rendering.
func (c *Client) URL() string {
	return c.target
}

// Method returns the HTTP method of the client's requests.
func (c *Client) Method() string {
	return c.method
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// RunOne executes one validated logical request. It implements
// executor.Runner.
func (c *Client) RunOne(ctx context.Context, id string, rc request.Config) result.Result {
	return c.exec(ctx, id, rc)
}

// MaxWorkers returns the configured concurrency of the pool executor.
// It implements executor.Runner.
func (c *Client) MaxWorkers() int {
	return c.cfg.MaxWorkers
}

// Descriptor returns the registered factory name of the client and its
// configuration. It implements executor.Runner.
//
// The configuration, including credentials in Config.Auth, travels with
// every task submitted to a distributed executor.
func (c *Client) Descriptor() executor.Descriptor {
	params, err := json.Marshal(c.cfg)
	if err != nil {
		c.logger.Error("failed to encode client descriptor", zap.Error(err))
	}
	return executor.Descriptor{Name: c.factory, Params: params}
}

// Close closes the idle connections of the session and every response
// stream still open. Requests issued after Close fail with a
// Configuration error. Close is idempotent and always returns nil.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.sessionMu.Lock()
		s := c.session
		c.session = nil
		c.sessionMu.Unlock()
		if s != nil {
			s.CloseIdleConnections()
		}

		c.streamsMu.Lock()
		streams := c.streams
		c.streams = nil
		c.streamsMu.Unlock()
		for b := range streams {
			_ = b.ReadCloser.Close()
		}
		c.logger.Debug("client closed", zap.Int("streams_closed", len(streams)))
	})
	return nil
}

func (c *Client) closed() bool {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session == nil
}

var errClosed = apierr.Configurationf("httpflex: client is closed")

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.session == nil {
		return nil, errClosed
	}
	return c.session.Do(req)
}

// A trackedBody is a streamed response body which the client closes on
// Close unless the caller closed it first.
type trackedBody struct {
	io.ReadCloser
	c    *Client
	once sync.Once
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { b.c.untrack(b) })
	return err
}

func (c *Client) track(body io.ReadCloser) io.ReadCloser {
	b := &trackedBody{ReadCloser: body, c: c}
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	if c.streams == nil {
		c.streams = make(map[*trackedBody]struct{})
	}
	c.streams[b] = struct{}{}
	return b
}

func (c *Client) untrack(b *trackedBody) {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	delete(c.streams, b)
}

func (c *Client) openStreams() int {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	return len(c.streams)
}

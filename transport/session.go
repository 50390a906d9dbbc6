// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport builds the session used by an httpflex client: one
// pooled *http.Client whose round trips are rate limited, retried,
// individually timed out and authenticated according to the client
// configuration.
//
// The layers, from the outside in, are:
//
//	http.Client -> rate limit -> retry (+ attempt timeout) -> auth -> http.Transport
//
// so every retry attempt waits for the rate limiter only once per
// logical round trip, and is signed afresh.
package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gogama/httpflex/retry"
	"github.com/gogama/httpflex/timeout"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// PoolConfig holds the connection pool settings of a session.
type PoolConfig struct {
	// Connections is the maximum number of idle connections kept open
	// across all hosts.
	Connections int `yaml:"connections" json:"connections"`
	// MaxSize is the maximum number of connections per host.
	MaxSize int `yaml:"maxsize" json:"maxsize"`
	// HTTP2 enables HTTP/2 over TLS.
	HTTP2 bool `yaml:"http2" json:"http2"`
	// RateLimit is the maximum number of logical round trips per
	// second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	// Burst is the rate limiter burst size. It defaults to 1.
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultPoolConfig returns the default pool settings: 100 idle
// connections and at most 100 connections per host.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Connections: 100, MaxSize: 100}
}

// Options configure a Session.
type Options struct {
	// Timeout is the per-attempt timeout. Zero or negative means no
	// timeout.
	Timeout time.Duration
	// Escalation lists the timeouts of attempts which follow a
	// timed-out attempt. See timeout.For.
	Escalation []time.Duration
	// Verify enables TLS certificate verification.
	Verify bool
	// EnableRetry enables transport-level retries using Retry.
	EnableRetry bool
	Retry       retry.Config
	// Buffer reads every response body completely within the attempt
	// timeout. Without it the timeout covers the headers only.
	Buffer bool
	Pool        PoolConfig
	// Auth, if not nil, authenticates every attempt.
	Auth Authenticator
	// Base, if not nil, replaces the pooled http.Transport. It is meant
	// for tests and for callers which manage their own transport.
	Base http.RoundTripper
	// Wrap, if not nil, wraps the base transport. Wrapped transports
	// see every attempt, before authentication.
	Wrap   func(http.RoundTripper) http.RoundTripper
	Logger *zap.Logger
}

// A Session is the pooled HTTP transport shared by every request of a
// client. It is safe for concurrent use by multiple goroutines.
type Session struct {
	client *http.Client
}

// New builds a Session from o.
func New(o Options) (*Session, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var rt http.RoundTripper = o.Base
	if rt == nil {
		base, err := newBaseTransport(o)
		if err != nil {
			return nil, err
		}
		rt = base
	}
	if o.Wrap != nil {
		rt = o.Wrap(rt)
	}
	if o.Auth != nil {
		rt = &authTransport{next: rt, auth: o.Auth}
	}
	policy := retry.Never
	raiseOnStatus := false
	if o.EnableRetry {
		policy = retry.FromConfig(o.Retry)
		raiseOnStatus = o.Retry.RaiseOnStatus
	}
	rt = &retryTransport{
		next:          rt,
		policy:        policy,
		timeout:       timeout.For(o.Timeout, o.Escalation...),
		raiseOnStatus: raiseOnStatus,
		total:         o.Retry.Total,
		forcelist:     intSet(o.Retry.StatusForcelist),
		buffer:        o.Buffer,
		logger:        logger,
	}
	if o.Pool.RateLimit > 0 {
		burst := o.Pool.Burst
		if burst < 1 {
			burst = 1
		}
		rt = &rateTransport{next: rt, limiter: rate.NewLimiter(rate.Limit(o.Pool.RateLimit), burst)}
	}
	return &Session{client: &http.Client{Transport: rt}}, nil
}

// Do sends an HTTP request following the session's policies.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// CloseIdleConnections closes the idle connections of the pool.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// HTTPClient returns the underlying *http.Client.
func (s *Session) HTTPClient() *http.Client {
	return s.client
}

func newBaseTransport(o Options) (*http.Transport, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = o.Pool.Connections
	t.MaxIdleConnsPerHost = o.Pool.MaxSize
	t.MaxConnsPerHost = o.Pool.MaxSize
	t.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !o.Verify, // nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}
	t.ForceAttemptHTTP2 = false
	t.TLSNextProto = nil
	if o.Pool.HTTP2 {
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, err
		}
	} else {
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	return t, nil
}

type idleCloser interface {
	CloseIdleConnections()
}

func closeIdle(rt http.RoundTripper) {
	if c, ok := rt.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

func intSet(ss []int) map[int]bool {
	set := make(map[int]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	return set
}

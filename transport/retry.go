// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/retry"
	"github.com/gogama/httpflex/timeout"
	"go.uber.org/zap"
)

// A RetryError is returned by the session when retries are exhausted on
// a status code of the retry forcelist and the retry configuration has
// RaiseOnStatus set.
type RetryError struct {
	Attempts   int
	StatusCode int
}

func (err *RetryError) Error() string {
	return fmt.Sprintf("max retries exceeded (%d attempts, last status %d)", err.Attempts, err.StatusCode)
}

// An AttemptTimeoutError is returned when an attempt did not receive
// response headers, or the buffered body, within the attempt timeout.
type AttemptTimeoutError struct {
	After time.Duration
	Err   error
}

func (err *AttemptTimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s: %v", err.After, err.Err)
}

func (err *AttemptTimeoutError) Unwrap() error { return err.Err }

// Timeout always reports true.
func (err *AttemptTimeoutError) Timeout() bool { return true }

type retryTransport struct {
	next          http.RoundTripper
	policy        retry.Policy
	timeout       timeout.Policy
	raiseOnStatus bool
	total         int
	forcelist     map[int]bool
	buffer        bool
	logger        *zap.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	e := &request.Execution{Start: time.Now()}
	ctx := req.Context()
	for {
		r, err := prepare(req, e.Attempt)
		if err != nil {
			return nil, err
		}
		e.Request = r
		e.Response, e.Err = t.attempt(r, e)
		if e.Timeout() {
			e.AttemptTimeouts++
		}
		if !replayable(req) || !t.policy.Decide(e) {
			break
		}
		wait := t.policy.Wait(e)
		t.logger.Debug("retrying request",
			zap.String("method", req.Method),
			zap.Int("attempt", e.Attempt+1),
			zap.Int("status", e.StatusCode()),
			zap.Error(e.Err),
			zap.Duration("wait", wait))
		discard(e.Response)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
		e.Attempt++
	}
	if e.Err == nil && t.raiseOnStatus && e.Attempt >= t.total && t.forcelist[e.StatusCode()] {
		status := e.StatusCode()
		discard(e.Response)
		return nil, &RetryError{Attempts: e.Attempt + 1, StatusCode: status}
	}
	return e.Response, e.Err
}

func (t *retryTransport) CloseIdleConnections() {
	closeIdle(t.next)
}

// replayable reports whether req may be sent again.
func replayable(req *http.Request) bool {
	if req.Context().Err() != nil {
		return false
	}
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func prepare(req *http.Request, attempt int) (*http.Request, error) {
	r := req.Clone(req.Context())
	if attempt > 0 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

// attempt sends r with a deadline on receiving the response headers
// and, when t buffers, the complete body. Otherwise the attempt context
// stays alive until the response body is closed.
func (t *retryTransport) attempt(r *http.Request, e *request.Execution) (*http.Response, error) {
	d := t.timeout.Timeout(e)
	ctx, cancel := context.WithCancel(r.Context())
	var fired int32
	timer := time.AfterFunc(d, func() {
		atomic.StoreInt32(&fired, 1)
		cancel()
	})
	resp, err := t.next.RoundTrip(r.WithContext(ctx))
	if err == nil && t.buffer {
		if err = buffer(resp); err != nil {
			resp = nil
		}
	}
	timer.Stop()
	if atomic.LoadInt32(&fired) == 1 {
		if err == nil {
			discard(resp)
			err = context.DeadlineExceeded
		}
		cancel()
		return nil, &AttemptTimeoutError{After: d, Err: err}
	}
	if err != nil {
		cancel()
		return nil, err
	}
	if t.buffer {
		cancel()
		return resp, nil
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// buffer replaces the body of resp with an in-memory copy.
func buffer(resp *http.Response) error {
	b, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(b))
	resp.ContentLength = int64(len(b))
	return nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

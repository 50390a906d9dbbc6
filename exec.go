// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/format"
	"github.com/gogama/httpflex/parse"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"github.com/gogama/httpflex/transient"
	"go.uber.org/zap"
)

// exec runs the pipeline of one validated logical request. It never
// panics on account of the request and always returns a result.
func (c *Client) exec(ctx context.Context, id string, rc request.Config) result.Result {
	e := &request.Execution{
		ID:     id,
		Config: rc.Clone(),
		Start:  time.Now(),
	}
	if e.Config == nil {
		e.Config = request.Config{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.SetContext(ctx)

	c.handlers.run(BeforeRequest, e, c.logger)

	err := c.send(e.Context(), e)
	if err != nil {
		e.Err = err
		if apierr.KindOf(err) != apierr.Configuration {
			c.handlers.run(OnRequestError, e, c.logger)
		}
	}

	var parsed interface{}
	var parseErr error
	if e.Err == nil {
		parsed, parseErr = c.parse(e)
	} else if e.Response != nil && c.parser.Stream() {
		_ = e.Response.Body.Close()
	}

	r := format.Build(e.StatusCode(), parsed, e.Err, parseErr)
	in := format.Input{
		Result:    r,
		Parsed:    parsed,
		RequestID: id,
		Config:    e.Config,
		Execution: e,
		Err:       e.Err,
		ParseErr:  parseErr,
	}
	r, ferr := format.Apply(c.formatter, in)
	if ferr != nil {
		c.logger.Error("formatter failed", zap.String("request_id", id), zap.Error(ferr))
	}
	if c.keyer != nil {
		if orig, ok := c.arena.get(id); ok {
			if key, ok := c.keyer(orig); ok {
				r = r.WithCacheKey(key)
			}
		}
	}

	e.End = time.Now()
	e.Result = &r
	c.handlers.run(AfterExecutionEnd, e, c.logger)

	c.logger.Debug("request finished",
		zap.String("request_id", id),
		zap.Bool("result", r.Result),
		zap.Int("code", r.Code),
		zap.Duration("duration", e.Duration()))
	return r
}

// send renders the request, dispatches it through the session and
// classifies the outcome. On success e.Response is set and, for
// buffering parsers, e.Body holds the complete body.
func (c *Client) send(ctx context.Context, e *request.Execution) error {
	url, data := c.render(e.Config)

	plan, err := request.NewPlan(ctx, c.method, url, data, c.header)
	if err != nil {
		return apierr.NewRequestValidation(fmt.Sprintf("cannot build request: %v", err), nil, err)
	}
	e.Plan = plan
	e.Request = plan.ToRequest(ctx)

	if c.logger.Core().Enabled(zap.DebugLevel) {
		c.logger.Debug("sending request",
			zap.String("request_id", e.ID),
			zap.String("method", plan.Method),
			zap.String("url", c.sanitizer.URL(e.URL())),
			zap.Any("headers", c.sanitizer.Header(plan.Header)))
	}

	resp, err := c.do(e.Request)
	if err != nil {
		if err == errClosed {
			return err
		}
		return c.classify(e, err)
	}
	e.Response = resp
	c.handlers.run(AfterRequest, e, c.logger)
	closeReplaced(resp, e.Response)
	if e.Response == nil {
		return apierr.NewNetwork(c.sanitizer.URL(e.URL()), fmt.Errorf("after-request handler removed the response"))
	}

	if c.parser.Stream() {
		e.Response.Body = c.track(e.Response.Body)
	} else {
		body, err := io.ReadAll(e.Response.Body)
		_ = e.Response.Body.Close()
		if err != nil {
			return c.classify(e, err)
		}
		e.Body = body
	}

	if status := e.Response.StatusCode; status < 200 || status >= 400 {
		return apierr.NewHTTP(status, reason(e.Response), c.sanitizer.URL(e.URL()))
	}
	return nil
}

// render fills the URL template from rc and returns the URL together
// with the data left for the query string or body.
func (c *Client) render(rc request.Config) (string, request.Config) {
	var url string
	var data request.Config
	if c.cfg.URL != "" {
		url, data = request.Render(c.target, rc)
	} else {
		var endpoint string
		endpoint, data = request.Render(c.cfg.Endpoint, rc)
		url = request.JoinURL(strings.TrimSpace(c.cfg.BaseURL), endpoint)
	}
	if _, ok := c.parser.(*parse.File); ok {
		delete(data, parse.FilenameKey)
	}
	return url, data
}

func (c *Client) classify(e *request.Execution, err error) error {
	url := c.sanitizer.URL(e.URL())
	if transient.Categorize(err) == transient.Timeout {
		return apierr.NewTimeout(url, c.cfg.Timeout, err)
	}
	return apierr.NewNetwork(url, err)
}

// parse runs the validator, then the parser.
func (c *Client) parse(e *request.Execution) (v interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, fmt.Errorf("parser panic: %v", p)
		}
		if err != nil && c.parser.Stream() && e.Response != nil {
			_ = e.Response.Body.Close()
		}
	}()
	if c.validator != nil {
		if err = c.validator.Validate(e); err != nil {
			return nil, err
		}
	}
	return c.parser.Parse(e)
}

func reason(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if r := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); r != "" {
		return r
	}
	return http.StatusText(resp.StatusCode)
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"fmt"
	"net/http"

	"github.com/gogama/httpflex/request"
	"go.uber.org/zap"
)

// A HandlerGroup is a group of event handler chains which can be
// installed in a Client.
//
// A HandlerGroup must not be modified once the Client it is installed
// in has started executing requests.
type HandlerGroup struct {
	handlers [][]Handler
}

// PushBack adds an event handler to the back of the event handler chain
// for a specific event type.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("httpflex: nil handler")
	}
	if evt < 0 || int(evt) >= numEvents {
		panic(fmt.Sprintf("httpflex: invalid event %d", int(evt)))
	}

	if g.handlers == nil {
		g.handlers = make([][]Handler, numEvents)
	}

	g.handlers[evt] = append(g.handlers[evt], h)
}

// Len returns the number of handlers installed for evt.
func (g *HandlerGroup) Len(evt Event) int {
	if g == nil || int(evt) >= len(g.handlers) || evt < 0 {
		return 0
	}
	return len(g.handlers[evt])
}

func (g *HandlerGroup) run(evt Event, e *request.Execution, logger *zap.Logger) {
	if g == nil {
		return
	}
	i := int(evt)
	if i < len(g.handlers) {
		run(g.handlers[i], evt, e, logger)
	}
}

func run(chain []Handler, evt Event, e *request.Execution, logger *zap.Logger) {
	for _, h := range chain {
		runOne(h, evt, e, logger)
	}
}

// runOne runs h, isolating the execution from a panic in h. A panicking
// BeforeRequest handler leaves the request config as it found it, and a
// panicking AfterRequest handler leaves the response as it found it.
func runOne(h Handler, evt Event, e *request.Execution, logger *zap.Logger) {
	var config request.Config
	var resp *http.Response
	switch evt {
	case BeforeRequest:
		config = e.Config.Clone()
	case AfterRequest:
		resp = e.Response
	}
	defer func() {
		if p := recover(); p != nil {
			switch evt {
			case BeforeRequest:
				e.Config = config
			case AfterRequest:
				closeReplaced(e.Response, resp)
				e.Response = resp
			}
			logger.Warn("event handler failed",
				zap.String("event", evt.Name()),
				zap.String("request_id", e.ID),
				zap.Any("panic", p))
		}
	}()
	h.Handle(evt, e)
}

// closeReplaced closes the body of old when it is no longer reachable
// through cur.
func closeReplaced(old, cur *http.Response) {
	if old == nil || old == cur || old.Body == nil {
		return
	}
	if cur != nil && cur.Body == old.Body {
		return
	}
	_ = old.Body.Close()
}

// A Handler handles the occurrence of an event during the execution of
// a logical request.
type Handler interface {
	Handle(Event, *request.Execution)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers. If f is a function with appropriate
// signature, then HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *request.Execution)

// Handle calls f(evt, e).
func (f HandlerFunc) Handle(evt Event, e *request.Execution) {
	f(evt, e)
}

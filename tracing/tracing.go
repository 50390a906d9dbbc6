// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tracing traces httpflex requests with OpenTelemetry.
//
// A Handler starts one client span per logical request, parented on the
// context passed to Request, and ends it when the execution ends. Spans
// cover every retry attempt. To propagate the trace to the server,
// also install Wrap as a transport wrapper:
//
//	h := tracing.New(nil)
//	g := &httpflex.HandlerGroup{}
//	h.Install(g)
//	cl, err := httpflex.New(cfg,
//		httpflex.WithHandlers(g), httpflex.WithTransportWrapper(tracing.Wrap(nil)))
package tracing

import (
	"net/http"

	"github.com/gogama/httpflex"
	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/request"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of httpflex spans.
const ScopeName = "github.com/gogama/httpflex"

// SpanName is the name of the span of a logical request.
const SpanName = "httpflex.request"

// Attribute keys set on request spans.
const (
	AttrRequestID  = attribute.Key("httpflex.request.id")
	AttrMethod     = attribute.Key("http.request.method")
	AttrHost       = attribute.Key("server.address")
	AttrPath       = attribute.Key("url.path")
	AttrStatusCode = attribute.Key("http.response.status_code")
	AttrErrorType  = attribute.Key("error.type")
	AttrResultCode = attribute.Key("httpflex.result.code")
	AttrSuccess    = attribute.Key("httpflex.result.success")
)

type spanKey struct{}

// A Handler records request spans. It is safe for concurrent use.
type Handler struct {
	tracer trace.Tracer
}

// New returns a Handler creating spans from tp. If tp is nil, the
// global tracer provider is used.
func New(tp trace.TracerProvider) *Handler {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Handler{tracer: tp.Tracer(ScopeName)}
}

// Install adds h to g for every event.
func (h *Handler) Install(g *httpflex.HandlerGroup) {
	for _, evt := range httpflex.Events() {
		g.PushBack(evt, h)
	}
}

// Handle implements httpflex.Handler.
func (h *Handler) Handle(evt httpflex.Event, e *request.Execution) {
	if evt == httpflex.BeforeRequest {
		ctx, span := h.tracer.Start(e.Context(), SpanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithTimestamp(e.Start),
			trace.WithAttributes(AttrRequestID.String(e.ID)))
		e.SetContext(ctx)
		e.SetValue(spanKey{}, span)
		return
	}

	span, _ := e.Value(spanKey{}).(trace.Span)
	if span == nil {
		return
	}

	switch evt {
	case httpflex.AfterRequest:
		if e.Plan != nil {
			span.SetAttributes(AttrMethod.String(e.Plan.Method))
			if e.Plan.URL != nil {
				span.SetAttributes(AttrHost.String(e.Plan.URL.Host), AttrPath.String(e.Plan.URL.Path))
			}
		}
		if code := e.StatusCode(); code > 0 {
			span.SetAttributes(AttrStatusCode.Int(code))
		}
	case httpflex.OnRequestError:
		kind := apierr.KindOf(e.Err)
		span.SetAttributes(AttrErrorType.String(kind.String()))
		span.RecordError(e.Err)
	case httpflex.AfterExecutionEnd:
		if r := e.Result; r != nil {
			span.SetAttributes(AttrResultCode.Int(r.Code), AttrSuccess.Bool(r.Result))
			if r.Result {
				span.SetStatus(codes.Ok, "")
			} else {
				span.SetStatus(codes.Error, r.Message)
			}
		}
		span.End(trace.WithTimestamp(e.End))
	}
}

// Wrap returns a transport wrapper injecting the trace context of each
// outgoing request into its headers using p. If p is nil, the global
// propagator is used.
func Wrap(p propagation.TextMapPropagator) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return &propagatingTransport{next: next, prop: p}
	}
}

type propagatingTransport struct {
	next http.RoundTripper
	prop propagation.TextMapPropagator
}

func (t *propagatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	p := t.prop
	if p == nil {
		p = otel.GetTextMapPropagator()
	}
	ctx := req.Context()
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return t.next.RoundTrip(req)
	}
	out := req.Clone(ctx)
	p.Inject(ctx, propagation.HeaderCarrier(out.Header))
	return t.next.RoundTrip(out)
}

var _ httpflex.Handler = (*Handler)(nil)

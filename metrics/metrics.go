// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics exports Prometheus metrics for httpflex clients.
//
// A Collector is an event handler and a cache observer. Install it in
// the HandlerGroup of a Client to record request counts, durations,
// in-flight requests and errors, and pass it to a CacheClient with
// httpflex.WithCacheObserver to record cache hits and misses:
//
//	m := metrics.New(prometheus.DefaultRegisterer, "myapp")
//	g := &httpflex.HandlerGroup{}
//	m.Install(g)
//	cl, err := httpflex.NewCacheClient(cfg, cc,
//		httpflex.WithHandlers(g), httpflex.WithCacheObserver(m))
package metrics

import (
	"strconv"

	"github.com/gogama/httpflex"
	"github.com/gogama/httpflex/apierr"
	"github.com/gogama/httpflex/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	LabelSuccess = "success"
	LabelFailure = "failure"
)

// A Collector records httpflex metrics. It is safe for concurrent use.
type Collector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	errorsTotal      *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// New creates a Collector and registers its metrics with reg. Every
// metric name starts with namespace, which defaults to "httpflex".
//
// New panics if the metrics are already registered with reg.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = "httpflex"
	}
	f := promauto.With(reg)
	return &Collector{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of logical requests executed",
			},
			[]string{"method", "code", "result"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of logical requests in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "result"},
		),
		requestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of logical requests currently executing",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of request errors by kind",
			},
			[]string{"kind"},
		),
		cacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
		),
		cacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
		),
	}
}

// Install adds the collector to g for the BeforeRequest, OnRequestError
// and AfterExecutionEnd events.
func (c *Collector) Install(g *httpflex.HandlerGroup) {
	g.PushBack(httpflex.BeforeRequest, c)
	g.PushBack(httpflex.OnRequestError, c)
	g.PushBack(httpflex.AfterExecutionEnd, c)
}

// Handle implements httpflex.Handler.
func (c *Collector) Handle(evt httpflex.Event, e *request.Execution) {
	if c == nil {
		return
	}

	switch evt {
	case httpflex.BeforeRequest:
		c.requestsInFlight.Inc()
	case httpflex.OnRequestError:
		c.errorsTotal.WithLabelValues(apierr.KindOf(e.Err).String()).Inc()
	case httpflex.AfterExecutionEnd:
		c.requestsInFlight.Dec()
		if e.Result == nil {
			return
		}
		label := LabelFailure
		if e.Result.Result {
			label = LabelSuccess
		}
		m := method(e)
		c.requestsTotal.WithLabelValues(m, strconv.Itoa(e.Result.Code), label).Inc()
		c.requestDuration.WithLabelValues(m, label).Observe(e.Duration().Seconds())
	}
}

// CacheHit implements httpflex.CacheObserver.
func (c *Collector) CacheHit(string) {
	if c == nil {
		return
	}

	c.cacheHits.Inc()
}

// CacheMiss implements httpflex.CacheObserver.
func (c *Collector) CacheMiss(string) {
	if c == nil {
		return
	}

	c.cacheMisses.Inc()
}

func method(e *request.Execution) string {
	if e.Plan != nil && e.Plan.Method != "" {
		return e.Plan.Method
	}
	if e.Request != nil && e.Request.Method != "" {
		return e.Request.Method
	}
	return "unknown"
}

var (
	_ httpflex.Handler       = (*Collector)(nil)
	_ httpflex.CacheObserver = (*Collector)(nil)
)

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpflex provides a configurable HTTP client which turns every
request outcome, successful or not, into one uniform result shape.

Create a Client to begin making requests.

	client, err := httpflex.New(httpflex.Config{
		BaseURL:  "https://api.example.com",
		Endpoint: "/users/{id}",
	})
	...
	res, err := client.Request(ctx, request.Config{"id": 7, "fields": "name"})
	if err != nil {
		// Configuration or request validation problem.
	}
	if !res.Result {
		log.Printf("request failed with code %d: %s", res.Code, res.Message)
	}

Template variables are taken out of the request configuration; what
remains becomes the query string of GET, DELETE, HEAD and OPTIONS
requests or the JSON body of POST, PUT and PATCH requests.

To execute many requests, pass a batch. Results come back in input
order, whichever strategy runs the batch:

	results, err := client.RequestBatch(ctx, []request.Config{
		{"id": 1}, {"id": 2}, {"id": 3},
	}, true)

Timeouts, TLS verification, transport retries, connection pooling,
rate limiting and authentication are set on Config or with options:

	client, err := httpflex.New(cfg,
		httpflex.WithTimeout(5*time.Second),
		httpflex.WithMaxRetries(3),
		httpflex.WithHeader("Accept", "application/json"),
		httpflex.WithLogger(logger))

Responses are handled by pluggable components from packages parse,
validate and format, and request configurations are checked before
dispatch by a serializer from package serialize.

To hook into the execution of each request, install a handler into the
appropriate handler chain:

	handlers := &httpflex.HandlerGroup{}
	handlers.PushBack(httpflex.BeforeRequest, httpflex.HandlerFunc(
		func(_ httpflex.Event, e *request.Execution) {
			e.Config["api_version"] = "2"
		}),
	)
	client, err := httpflex.New(cfg, httpflex.WithHandlers(handlers))

Use a CacheClient to answer GET and HEAD requests from a cache backend
from package cache, and Call or CallBatch for one-shot requests which
create and release a client transparently.
*/
package httpflex

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the types describing one logical request as it
moves through an httpflex client: Config (the caller's parameters),
Plan (the HTTP request built from them), and Execution (the state of
the request while it is executed).

A Config is split in two before dispatch. Values naming a placeholder
in the endpoint template are consumed by Render; the rest is placed in
the query string or a JSON body according to the method:

	endpoint, remaining := request.Render("/users/{id}", request.Config{"id": 5, "q": "x"})
	// endpoint == "/users/5", remaining == Config{"q": "x"}
	url := request.JoinURL("https://api.example.com", endpoint)
	p, err := request.NewPlan(ctx, "GET", url, remaining, header)

Execution is both the state carried through the client's single request
pipeline and the input type for callbacks: hooks, response parsers and
validators, and the transport's retry and timeout policies. You will
typically not allocate Execution instances yourself, but will instead
work with the ones handed out by the client.
*/
package request

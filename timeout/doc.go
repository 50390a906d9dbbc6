// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout decides the deadline of each attempt the transport
// makes for a logical request.
//
// A client has a single per-attempt timeout, optionally followed by an
// escalation list used after attempts which timed out. For builds the
// matching Policy.
package timeout

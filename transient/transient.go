// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// A Category is the outcome of Categorize. Every category except Not
// is transient: a new attempt may succeed.
type Category int

const (
	// Not is the category of nil and of errors a new attempt will not
	// cure, such as a cancelled context or a malformed URL.
	Not Category = iota
	// Timeout is the category of any error with a Timeout method
	// reporting true, in the error or anywhere in its chain. This
	// includes attempt deadlines and context.DeadlineExceeded.
	Timeout
	// ConnRefused means the host refused the connection (ECONNREFUSED).
	// The request was never sent, so it is safe to retry whatever the
	// method.
	ConnRefused
	// ConnReset means an established connection was reset by the peer
	// (ECONNRESET) or broke while writing (EPIPE).
	ConnReset
	// Closed means the connection was closed before a complete response
	// was read, usually a stale pooled keep-alive connection.
	Closed
	// DNS is a temporary name resolution failure.
	DNS
)

var categoryNames = [...]string{
	Not:         "Not",
	Timeout:     "Timeout",
	ConnRefused: "ConnRefused",
	ConnReset:   "ConnReset",
	Closed:      "Closed",
	DNS:         "DNS",
}

func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "Unknown"
}

// Transient reports whether c is not Not.
func (c Category) Transient() bool {
	return c != Not
}

// Categorize returns the category of err, looking through wrapped
// errors. Temporary methods are ignored.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return ConnRefused
		case syscall.ECONNRESET, syscall.EPIPE:
			return ConnReset
		}
	}

	var dns *net.DNSError
	if errors.As(err, &dns) && dns.IsTemporary && !dns.IsNotFound {
		return DNS
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return Closed
	}

	return Not
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a Client to extend it with custom
// functionality.
type Event int

const (
	// BeforeRequest identifies the event that occurs before the
	// endpoint of a logical request is rendered.
	//
	// When Client fires BeforeRequest, the execution's ID, Start and
	// Config fields are set. BeforeRequest handlers may modify or
	// replace the execution's Config. If a handler panics, the panic is
	// logged and the Config it received is restored.
	BeforeRequest Event = iota
	// AfterRequest identifies the event that occurs after the session
	// returned an HTTP response, regardless of its status code, and
	// before the response is classified or read.
	//
	// When Client fires AfterRequest, the execution's plan, request and
	// response fields are set. AfterRequest handlers may replace the
	// response.
	AfterRequest
	// OnRequestError identifies the event that occurs after a logical
	// request was classified as failed by the transport: a timeout, a
	// network error or an HTTP error status.
	//
	// When Client fires OnRequestError, the execution's error field is
	// set to the typed *apierr.Error.
	OnRequestError
	// AfterExecutionEnd identifies the event that occurs once the
	// uniform result of a logical request has been produced.
	//
	// When Client fires AfterExecutionEnd, the execution's end time and
	// result fields are set. AfterExecutionEnd fires exactly once for
	// every logical request which passed validation.
	AfterExecutionEnd
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"BeforeRequest",
	"AfterRequest",
	"OnRequestError",
	"AfterExecutionEnd",
}

// Events returns a slice containing all events which can occur during
// the execution of a logical request, in the order in which they would
// occur.
func Events() []Event {
	return []Event{
		BeforeRequest,
		AfterRequest,
		OnRequestError,
		AfterExecutionEnd,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvents(t *testing.T) {
	assert.Len(t, eventNames, numEvents)
	assert.Len(t, Events(), numEvents)
	events := Events()
	assert.Equal(t, BeforeRequest, events[BeforeRequest])
	assert.Equal(t, AfterRequest, events[AfterRequest])
	assert.Equal(t, OnRequestError, events[OnRequestError])
	assert.Equal(t, AfterExecutionEnd, events[AfterExecutionEnd])
}

func TestEvent_Name(t *testing.T) {
	assert.Equal(t, "BeforeRequest", BeforeRequest.Name())
	assert.Equal(t, "AfterRequest", AfterRequest.Name())
	assert.Equal(t, "OnRequestError", OnRequestError.String())
	assert.Equal(t, "AfterExecutionEnd", AfterExecutionEnd.String())
}

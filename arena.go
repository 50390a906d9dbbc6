// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"sync"

	"github.com/gogama/httpflex/request"
)

// An arena maps the ids of in-flight logical requests to their original
// request configuration. Entries live for one top-level call.
type arena struct {
	mu      sync.Mutex
	pending map[string]request.Config
}

// An arenaScope tracks the ids registered by one top-level call.
type arenaScope struct {
	a   *arena
	ids []string
}

func (a *arena) scope() *arenaScope {
	return &arenaScope{a: a}
}

func (a *arena) get(id string) (request.Config, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.pending[id]
	return c, ok
}

func (a *arena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (s *arenaScope) put(id string, c request.Config) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	if s.a.pending == nil {
		s.a.pending = make(map[string]request.Config)
	}
	s.a.pending[id] = c.Clone()
	s.ids = append(s.ids, id)
}

// release removes every id registered through s.
func (s *arenaScope) release() {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	for _, id := range s.ids {
		delete(s.a.pending, id)
	}
	s.ids = nil
}

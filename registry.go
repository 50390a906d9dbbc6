// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"encoding/json"
	"fmt"

	"github.com/gogama/httpflex/executor"
)

// A ClientFactory builds a Client from a configuration.
type ClientFactory func(Config) (*Client, error)

// Register makes f available under name for rebuilding clients in other
// processes, such as the workers of a distributed executor. The clients
// built by f should be constructed with WithFactoryName(name) so their
// descriptors name f.
//
// Register panics if f is nil or name is already registered.
func Register(name string, f ClientFactory) {
	if f == nil {
		panic("httpflex: nil client factory")
	}
	executor.Register(name, func(params json.RawMessage) (executor.Runner, error) {
		var cfg Config
		if len(params) > 0 {
			if err := json.Unmarshal(params, &cfg); err != nil {
				return nil, fmt.Errorf("httpflex: invalid client parameters for %q: %w", name, err)
			}
		}
		c, err := f(cfg)
		if err != nil {
			return nil, err
		}
		if c.factory == "" {
			c.factory = name
		}
		return c, nil
	})
}

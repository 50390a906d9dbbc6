// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package executor provides the batch execution strategies of an
// httpflex client.
//
// An Executor fans a batch of logical requests out to a Runner, which
// executes exactly one logical request and never fails: every outcome
// is a uniform result. Whatever the strategy, the returned slice has one
// result per item, in item order, and a panic while running one item
// only affects that item's result.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
)

// A Runner executes single logical requests. *httpflex.Client is the
// Runner used in practice.
type Runner interface {
	// RunOne executes the logical request identified by id.
	RunOne(ctx context.Context, id string, c request.Config) result.Result
	// MaxWorkers is the default concurrency of pool strategies.
	MaxWorkers() int
	// Descriptor describes how to rebuild an equivalent Runner in
	// another process.
	Descriptor() Descriptor
	// Close releases the Runner's resources.
	Close() error
}

// An Item is one logical request of a batch.
type Item struct {
	ID     string
	Config request.Config
}

// An Executor runs a batch of items. It returns exactly len(items)
// results, results[i] being the result of items[i].
type Executor interface {
	Execute(ctx context.Context, r Runner, items []Item) []result.Result
}

// A Descriptor is the serializable identity of a Runner: the name of a
// registered Factory and the parameters to pass it.
type Descriptor struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// A Factory rebuilds a Runner from the parameters of a Descriptor.
type Factory func(params json.RawMessage) (Runner, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a Runner factory available under name. It panics if
// name is empty, f is nil, or name is already registered.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if name == "" {
		panic("httpflex/executor: empty factory name")
	}
	if f == nil {
		panic("httpflex/executor: nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("httpflex/executor: Register called twice for " + name)
	}
	factories[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Factories returns the sorted names of the registered factories.
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build rebuilds the Runner described by d.
func Build(d Descriptor) (Runner, error) {
	f, ok := Lookup(d.Name)
	if !ok {
		return nil, fmt.Errorf("httpflex/executor: no factory registered for %q", d.Name)
	}
	return f(d.Params)
}

// ByName returns the in-process Executor named by name: "sync" or
// "pool". The empty name means "pool". Workers is the pool size; zero
// means the Runner's MaxWorkers.
func ByName(name string, workers int) (Executor, error) {
	switch name {
	case "sync":
		return Sync{}, nil
	case "", "pool":
		return Pool{Workers: workers}, nil
	default:
		return nil, fmt.Errorf("httpflex/executor: unknown executor %q", name)
	}
}

// RunSafe runs one item on r, converting a panic into a failed result
// with code result.CodeNonHTTPError.
func RunSafe(ctx context.Context, r Runner, item Item) (res result.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = result.Failuref(result.CodeNonHTTPError, "Unexpected error: %v", p)
		}
	}()
	return r.RunOne(ctx, item.ID, item.Config)
}

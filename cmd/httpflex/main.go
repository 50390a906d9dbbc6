// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command httpflex issues HTTP requests described by a YAML client
// definition and prints their uniform results as JSON.
//
// Usage:
//
//	httpflex request --config client.yaml [--data JSON | --batch FILE] [--async] [--cache] [--verbose]
//	httpflex worker --temporal HOST:PORT --task-queue QUEUE
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "httpflex:", err)
		os.Exit(1)
	}
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/gogama/httpflex/executor/distributed"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

const defaultTaskQueue = "httpflex"

func newWorkerCmd(g *globalFlags) *cobra.Command {
	var (
		temporal    string
		namespace   string
		taskQueue   string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker executing distributed requests",
		Long: `Run a Temporal worker which executes the requests submitted by
'httpflex request --temporal'. The worker rebuilds each client from the
configuration carried by the submitted task.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := g.logger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			registerFactory(logger)

			tc, err := client.Dial(client.Options{HostPort: temporal, Namespace: namespace})
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			w := worker.New(tc, taskQueue, worker.Options{MaxConcurrentActivityExecutionSize: concurrency})
			distributed.Register(w)
			logger.Info("worker started",
				zap.String("temporal", temporal),
				zap.String("task_queue", taskQueue))
			return w.Run(interruptOn(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&temporal, "temporal", client.DefaultHostPort, "Temporal frontend HOST:PORT")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "Temporal namespace")
	cmd.Flags().StringVar(&taskQueue, "task-queue", defaultTaskQueue, "Temporal task queue")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent requests (0 uses the Temporal default)")

	return cmd
}

// interruptOn returns a channel which is closed when ctx is done.
func interruptOn(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

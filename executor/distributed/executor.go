// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package distributed

import (
	"context"
	"time"

	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/result"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cancelTimeout bounds each best-effort cancellation request.
const cancelTimeout = 5 * time.Second

// WorkflowClient is the part of client.Client the Executor uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
}

// Executor submits every item of a batch as a workflow and waits for
// the results.
//
// WaitTimeout bounds the total wait for all submissions. When it
// expires, items still running get a failed result with code
// result.CodeNonHTTPError and, if CancelOnTimeout is set, their
// workflows are cancelled. Cancellation is best effort.
type Executor struct {
	Client          WorkflowClient
	TaskQueue       string
	WaitTimeout     time.Duration
	CancelOnTimeout bool
	// ActivityTimeout bounds each activity. Zero means
	// DefaultActivityTimeout.
	ActivityTimeout time.Duration
	Logger          *zap.Logger
}

// New returns an Executor submitting to taskQueue which cancels pending
// workflows on timeout.
func New(c WorkflowClient, taskQueue string, waitTimeout time.Duration) *Executor {
	return &Executor{
		Client:          c,
		TaskQueue:       taskQueue,
		WaitTimeout:     waitTimeout,
		CancelOnTimeout: true,
	}
}

// Execute implements executor.Executor.
func (x *Executor) Execute(ctx context.Context, r executor.Runner, items []executor.Item) []result.Result {
	results := make([]result.Result, len(items))
	if len(items) == 0 {
		return results
	}
	logger := x.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	descriptor := r.Descriptor()
	runs := make([]client.WorkflowRun, len(items))
	for i, item := range items {
		task := Task{Descriptor: descriptor, RequestID: item.ID, Config: item.Config, Timeout: x.ActivityTimeout}
		opts := client.StartWorkflowOptions{ID: "httpflex-" + item.ID, TaskQueue: x.TaskQueue}
		run, err := x.Client.ExecuteWorkflow(ctx, opts, WorkflowName, task)
		if err != nil {
			logger.Error("task submission failed", zap.String("request_id", item.ID), zap.Error(err))
			results[i] = result.Failuref(result.CodeNonHTTPError, "Task submission failed: %v", err)
			continue
		}
		runs[i] = run
	}

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if x.WaitTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, x.WaitTimeout)
	}
	defer cancel()

	var g errgroup.Group
	for i, run := range runs {
		i, run := i, run
		if run == nil {
			continue
		}
		g.Go(func() error {
			var res result.Result
			err := run.Get(waitCtx, &res)
			switch {
			case err == nil:
				results[i] = res
			case waitCtx.Err() != nil:
				results[i] = result.Failure(result.CodeNonHTTPError, "Task not completed, state: pending")
				x.cancel(logger, run)
			default:
				results[i] = result.Failuref(result.CodeNonHTTPError, "Task error: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (x *Executor) cancel(logger *zap.Logger, run client.WorkflowRun) {
	if !x.CancelOnTimeout {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := x.Client.CancelWorkflow(ctx, run.GetID(), run.GetRunID()); err != nil {
		logger.Warn("failed to cancel pending task", zap.String("workflow_id", run.GetID()), zap.Error(err))
	}
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package distributed runs batches of logical requests on Temporal
// workers.
//
// Each item of a batch becomes one workflow execution, which runs one
// activity. The activity rebuilds an equivalent client from the batch
// Runner's Descriptor, through the executor factory registry, executes
// the request and returns its uniform result. Workers must therefore
// register the same factories as the submitting process, and register
// the workflow and activity with Register.
package distributed

import (
	"context"
	"time"

	"github.com/gogama/httpflex/executor"
	"github.com/gogama/httpflex/request"
	"github.com/gogama/httpflex/result"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// WorkflowName is the registered name of ExecuteRequestWorkflow.
	WorkflowName = "httpflex.ExecuteRequest"
	// ActivityName is the registered name of ExecuteRequestActivity.
	ActivityName = "httpflex.ExecuteRequestActivity"
)

// DefaultActivityTimeout bounds one activity execution.
const DefaultActivityTimeout = 5 * time.Minute

// A Task is the serializable unit of work for one logical request.
type Task struct {
	Descriptor executor.Descriptor `json:"descriptor"`
	RequestID  string              `json:"request_id"`
	Config     request.Config      `json:"config"`
	// Timeout bounds the activity. Zero means DefaultActivityTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ExecuteRequestWorkflow executes task as a single activity attempt.
// Retries belong to the rebuilt client's transport.
func ExecuteRequestWorkflow(ctx workflow.Context, task Task) (result.Result, error) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = DefaultActivityTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	var res result.Result
	err := workflow.ExecuteActivity(ctx, ActivityName, task).Get(ctx, &res)
	return res, err
}

// ExecuteRequestActivity rebuilds the client described by the task and
// executes the request.
func ExecuteRequestActivity(ctx context.Context, task Task) (result.Result, error) {
	logger := activity.GetLogger(ctx)
	logger.Debug("Executing request", "requestID", task.RequestID, "factory", task.Descriptor.Name)

	r, err := executor.Build(task.Descriptor)
	if err != nil {
		logger.Error("Failed to rebuild client", "factory", task.Descriptor.Name, "error", err)
		return result.Result{}, temporal.NewNonRetryableApplicationError("client reconstruction failed", "ClientReconstruction", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			logger.Warn("Failed to close rebuilt client", "error", cerr)
		}
	}()
	return executor.RunSafe(ctx, r, executor.Item{ID: task.RequestID, Config: task.Config}), nil
}

// A Registry is the part of a Temporal worker, or of a test workflow
// environment, that registers workflows and activities.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register registers the workflow and activity under their names.
func Register(r Registry) {
	r.RegisterWorkflowWithOptions(ExecuteRequestWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	r.RegisterActivityWithOptions(ExecuteRequestActivity, activity.RegisterOptions{Name: ActivityName})
}

// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogama/httpflex"
	"github.com/gogama/httpflex/executor/distributed"
	"github.com/gogama/httpflex/request"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type requestFlags struct {
	config    string
	data      string
	batch     string
	async     bool
	cache     bool
	temporal  string
	namespace string
	taskQueue string
	wait      time.Duration
}

func newRequestCmd(g *globalFlags) *cobra.Command {
	f := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Execute one request or a batch and print the results",
		Long: `Execute one logical request, or a batch of them, against the client
defined in --config and print the uniform results as JSON.

--data and the entries of the --batch file are request configurations:
objects whose keys fill the endpoint placeholders and whose remaining
keys become query parameters or the request body. Both accept JSON or
YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := g.logger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			return runRequest(cmd.Context(), cmd.OutOrStdout(), f, logger)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Path to the YAML client definition")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "Request configuration of a single request")
	cmd.Flags().StringVarP(&f.batch, "batch", "b", "", "Path to a file holding a list of request configurations")
	cmd.Flags().BoolVar(&f.async, "async", false, "Run the batch concurrently")
	cmd.Flags().BoolVar(&f.cache, "cache", false, "Serve results through the cache described by the 'cache' section")
	cmd.Flags().StringVar(&f.temporal, "temporal", "", "Temporal frontend HOST:PORT; async batches run on httpflex workers")
	cmd.Flags().StringVar(&f.namespace, "namespace", "default", "Temporal namespace")
	cmd.Flags().StringVar(&f.taskQueue, "task-queue", defaultTaskQueue, "Temporal task queue")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "Bound on the wait for a distributed batch (0 waits forever)")
	_ = cmd.MarkFlagRequired("config")
	cmd.MarkFlagsMutuallyExclusive("data", "batch")

	return cmd
}

func runRequest(ctx context.Context, out io.Writer, f *requestFlags, logger *zap.Logger) error {
	file, err := httpflex.LoadConfig(f.config)
	if err != nil {
		return err
	}

	opts := []httpflex.Option{httpflex.WithLogger(logger)}
	if f.temporal != "" {
		tc, err := client.Dial(client.Options{HostPort: f.temporal, Namespace: f.namespace})
		if err != nil {
			return fmt.Errorf("failed to connect to temporal: %w", err)
		}
		defer tc.Close()
		registerFactory(logger)
		x := distributed.New(tc, f.taskQueue, f.wait)
		x.Logger = logger
		opts = append(opts, httpflex.WithExecutor(x), httpflex.WithFactoryName(factoryName))
	}

	var r httpflex.Requester
	if f.cache {
		var cc httpflex.CacheConfig
		if file.Cache != nil {
			cc = *file.Cache
		}
		r, err = httpflex.NewCacheClient(file.Config, cc, opts...)
	} else {
		r, err = httpflex.New(file.Config, opts...)
	}
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if f.batch != "" {
		rcs, err := readBatch(f.batch)
		if err != nil {
			return err
		}
		rs, err := r.RequestBatch(ctx, rcs, f.async)
		if err != nil {
			return err
		}
		return writeJSON(out, rs)
	}

	rc, err := parseData(f.data)
	if err != nil {
		return err
	}
	res, err := r.Request(ctx, rc)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func parseData(s string) (request.Config, error) {
	if s == "" {
		return nil, nil
	}
	var rc map[string]interface{}
	if err := yaml.Unmarshal([]byte(s), &rc); err != nil {
		return nil, fmt.Errorf("invalid --data: %w", err)
	}
	return request.Config(rc), nil
}

func readBatch(path string) ([]request.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	var raw []map[string]interface{}
	if err = yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	rcs := make([]request.Config, len(raw))
	for i := range raw {
		rcs[i] = raw[i]
	}
	return rcs, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

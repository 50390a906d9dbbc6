// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"sync"

	"github.com/gogama/httpflex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// factoryName is the client factory the CLI registers so that workers
// can rebuild its clients from their configuration.
const factoryName = "httpflex-cli"

var (
	registerOnce  sync.Once
	factoryLogger = zap.NewNop()
)

type globalFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "httpflex",
		Short: "Issue HTTP requests from a YAML client definition",
		Long: `httpflex executes logical HTTP requests against an endpoint described
by a YAML client definition and prints uniform results as JSON.

Batches run sequentially, on a worker pool (--async), or on Temporal
workers (--temporal) started with 'httpflex worker'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable development logging at debug level")

	cmd.AddCommand(newRequestCmd(g), newWorkerCmd(g))
	return cmd
}

func (g *globalFlags) logger() (*zap.Logger, error) {
	if g.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// registerFactory registers the CLI client factory once per process.
// Rebuilt clients log with the logger of the first caller.
func registerFactory(logger *zap.Logger) {
	registerOnce.Do(func() {
		factoryLogger = logger
		httpflex.Register(factoryName, func(cfg httpflex.Config) (*httpflex.Client, error) {
			return httpflex.New(cfg, httpflex.WithLogger(factoryLogger))
		})
	})
}

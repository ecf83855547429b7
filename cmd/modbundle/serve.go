// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	modbundle "github.com/hashicorp/go-modbundle"
	"github.com/hashicorp/go-modbundle/internal/devserver"
)

func newServeCommand(app *appContext) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch and rebuild, serving the build output over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := modbundle.LoadConfig(app.configPath)
			if err != nil {
				return err
			}

			metrics := devserver.NewMetrics()
			server, err := devserver.NewServer(devserver.ServerConfig{
				Addr:      listenAddr,
				OutputDir: config.Output.Path,
				Metrics:   metrics,
				Logger:    app.logger,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			watchDone := make(chan error, 1)
			go func() {
				watchDone <- runWatch(ctx, app.logger, config, metrics)
			}()

			err = server.Serve(ctx)
			cancel()
			if watchErr := <-watchDone; watchErr != nil && err == nil {
				err = watchErr
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "127.0.0.1:8080", "address to serve the build output on")
	return cmd
}

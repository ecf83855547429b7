// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	modbundle "github.com/hashicorp/go-modbundle"
	"github.com/hashicorp/go-modbundle/internal/devserver"
)

func newWatchCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever project files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := modbundle.LoadConfig(app.configPath)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), app.logger, config, nil)
		},
	}
}

// runWatch runs an initial build and then rebuilds on every change batch
// until the context is cancelled. Build failures are reported but do not
// stop watching; the next change gets another chance.
func runWatch(ctx context.Context, logger zerolog.Logger, config *modbundle.Config, metrics *devserver.Metrics) error {
	runBuild(ctx, logger, config, metrics)

	watcher, err := devserver.NewWatcher(devserver.WatcherConfig{
		Root:       config.ProjectRoot,
		IgnoreDirs: watchIgnoreDirs(config),
		OnChange: func(ctx context.Context, paths []string) {
			logger.Info().Int("changed", len(paths)).Msg("change detected, rebuilding")
			runBuild(ctx, logger, config, metrics)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	logger.Info().Str("root", config.ProjectRoot).Msg("watching for changes")
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchIgnoreDirs lists the directory basenames the watcher must skip so
// that build output and installed packages never trigger rebuilds.
func watchIgnoreDirs(config *modbundle.Config) []string {
	packageDir := config.Resolve.PackageDir
	if packageDir == "" {
		packageDir = "node_modules"
	}
	return []string{
		packageDir,
		filepath.Base(config.Output.Path),
	}
}

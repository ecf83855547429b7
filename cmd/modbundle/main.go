// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// modbundle is the command-line front end for the bundler: it loads a
// modbundle.yaml configuration and runs one-shot builds, rebuild-on-change
// watching, or a local dev server over the build output.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	app := &appContext{
		// Replaced once flags are parsed; covers failures before then.
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger(),
	}

	root := newRootCommand(app)
	root.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		app.logger.Error().Err(err).Msg("failed")
		return 1
	}
	return 0
}

// appContext carries the pieces every subcommand needs, wired up by the
// root command's PersistentPreRun once flags are parsed.
type appContext struct {
	configPath string
	verbose    bool
	logger     zerolog.Logger
}

func newRootCommand(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "modbundle",
		Short:         "A minimal module bundler",
		Long:          "modbundle builds browser-ready bundles from a module dependency graph,\ndriven by a modbundle.yaml configuration at the project root.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.InfoLevel
			if app.verbose {
				level = zerolog.DebugLevel
			}
			app.logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        cmd.ErrOrStderr(),
				TimeFormat: time.TimeOnly,
			}).Level(level).With().Timestamp().Logger()
		},
	}
	cmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "modbundle.yaml", "path to the configuration file")
	cmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newBuildCommand(app),
		newWatchCommand(app),
		newServeCommand(app),
		newVersionCommand(),
	)
	return cmd
}

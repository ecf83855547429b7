// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	modbundle "github.com/hashicorp/go-modbundle"
	"github.com/hashicorp/go-modbundle/internal/devserver"
	"github.com/hashicorp/go-modbundle/moduleaddrs"
	"github.com/hashicorp/go-modbundle/modulebundle"
)

func newBuildCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run one build pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := modbundle.LoadConfig(app.configPath)
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), app.logger, config, nil)
		},
	}
}

// runBuild runs one build pass with logging and optional metrics, tagging
// all of the pass's log lines with a fresh build ID.
func runBuild(ctx context.Context, logger zerolog.Logger, config *modbundle.Config, metrics *devserver.Metrics) error {
	buildID := uuid.NewString()
	logger = logger.With().Str("build_id", buildID).Logger()

	tracer := newLogTracer(logger, metrics)
	ctx = tracer.OnContext(ctx)

	logger.Info().
		Str("mode", config.EffectiveMode()).
		Strs("entries", config.Entry.Names()).
		Msg("build starting")

	start := time.Now()
	result, err := modbundle.Build(ctx, config)
	duration := time.Since(start)
	if metrics != nil {
		metrics.ObserveBuild(duration, err)
	}
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("build failed")
		return err
	}

	totalBytes := 0
	for _, bundle := range result.Bundles {
		totalBytes += len(bundle.Content)
	}
	logger.Info().
		Dur("duration", duration).
		Int("bundles", len(result.Bundles)).
		Int("artifacts", len(result.Manifest)).
		Int("bundle_bytes", totalBytes).
		Msg("build complete")
	return nil
}

// newLogTracer bridges the build's progress callbacks onto the logger and,
// when given, the dev server metrics.
func newLogTracer(logger zerolog.Logger, metrics *devserver.Metrics) *modulebundle.BuildTracer {
	return &modulebundle.BuildTracer{
		ModuleStart: func(ctx context.Context, id moduleaddrs.ModuleIdentity) context.Context {
			logger.Debug().Stringer("module", id).Msg("processing module")
			return ctx
		},
		ModuleSuccess: func(_ context.Context, id moduleaddrs.ModuleIdentity) {
			if metrics != nil {
				metrics.ObserveModule()
			}
			logger.Debug().Stringer("module", id).Msg("module ready")
		},
		ModuleFailure: func(_ context.Context, id moduleaddrs.ModuleIdentity, err error) {
			logger.Debug().Stringer("module", id).Err(err).Msg("module failed")
		},
		AssetEmitted: func(_ context.Context, source moduleaddrs.ModuleIdentity, filename string) {
			logger.Debug().Stringer("module", source).Str("asset", filename).Msg("asset emitted")
		},
		ArtifactWritten: func(_ context.Context, filename string, size int) {
			if metrics != nil {
				metrics.ObserveArtifact(size)
			}
			logger.Info().Str("artifact", filename).Int("bytes", size).Msg("wrote artifact")
		},
	}
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modbundle

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
	"github.com/hashicorp/go-modbundle/modulebundle"
	"github.com/hashicorp/go-modbundle/transforms"
)

// Result is the outcome of a successful build.
type Result struct {
	// Bundles are the assembled artifacts, one per entry, in entry order.
	Bundles []*modulebundle.Bundle

	// Manifest maps project-relative source paths to the output filenames
	// they were emitted as.
	Manifest modulebundle.Manifest
}

// Build runs a full bundling pass for the given configuration: resolve and
// transform everything reachable from the entries, assemble one bundle per
// entry, and write the bundles, side assets, and manifest to the output
// directory.
//
// Build is synchronous and runs to completion or failure. Cancelling the
// given context aborts the build with a [modulebundle.CancelledError]
// before any output is written. A [modulebundle.BuildTracer] attached to
// the context receives progress callbacks.
func Build(ctx context.Context, config *Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	resolver, err := moduleaddrs.NewResolver(moduleaddrs.ResolverConfig{
		ProjectRoot: config.ProjectRoot,
		Extensions:  config.Resolve.Extensions,
		IndexNames:  config.Resolve.IndexNames,
		PackageDir:  config.Resolve.PackageDir,
		Constraints: config.Resolve.Constraints,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid resolver configuration: %w", err)
	}

	rules, err := compileRules(config)
	if err != nil {
		return nil, err
	}

	mode := config.EffectiveMode()
	builderConfig := modulebundle.BuilderConfig{
		Resolver:      resolver,
		Rules:         rules,
		Parallelism:   config.Build.Parallelism,
		ModuleTimeout: time.Duration(config.Build.ModuleTimeout),
	}
	if mode == ModeDevelopment {
		builderConfig.AssetNamer = modulebundle.DevelopmentAssetNamer
	}
	builder, err := modulebundle.NewBuilder(builderConfig)
	if err != nil {
		return nil, err
	}

	for _, name := range config.Entry.Names() {
		if err := builder.AddEntry(ctx, name, config.Entry[name]); err != nil {
			builder.Close()
			return nil, err
		}
	}
	graph, err := builder.Close()
	if err != nil {
		return nil, err
	}

	assembler, err := modulebundle.NewAssembler(modulebundle.AssemblerConfig{
		Graph:  graph,
		Banner: mode == ModeDevelopment,
	})
	if err != nil {
		return nil, err
	}
	bundles, err := assembler.Assemble()
	if err != nil {
		return nil, err
	}

	emitter, err := modulebundle.NewEmitter(modulebundle.EmitterConfig{
		TargetDir:      config.Output.Path,
		ProjectRoot:    config.ProjectRoot,
		BundleFilename: config.Output.Filename,
	})
	if err != nil {
		return nil, err
	}
	manifest, err := emitter.Emit(ctx, bundles, graph.SideAssets())
	if err != nil {
		return nil, err
	}

	return &Result{Bundles: bundles, Manifest: manifest}, nil
}

// compileRules turns the rule configuration into an executable
// [modulebundle.RuleSet], resolving transform names through the built-in
// registry.
func compileRules(config *Config) (*modulebundle.RuleSet, error) {
	chainOrder, err := modulebundle.ParseChainOrder(config.Module.ChainOrder)
	if err != nil {
		return nil, fmt.Errorf("module.chain_order: %w", err)
	}
	registry := transforms.NewRegistry(transforms.Options{
		PublicPath: config.Output.PublicPath,
	})

	ruleSet := &modulebundle.RuleSet{ChainOrder: chainOrder}
	for i, rule := range config.Module.Rules {
		test, err := regexp.Compile(rule.Test)
		if err != nil {
			return nil, fmt.Errorf("module.rules[%d]: invalid test pattern: %w", i, err)
		}
		use := make([]modulebundle.Transform, len(rule.Use))
		for j, name := range rule.Use {
			tf, err := registry.Lookup(name)
			if err != nil {
				return nil, fmt.Errorf("module.rules[%d]: %w", i, err)
			}
			use[j] = tf
		}
		ruleSet.Rules = append(ruleSet.Rules, modulebundle.Rule{Test: test, Use: use})
	}
	return ruleSet, nil
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"context"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// BuildTracer contains a set of callbacks that a caller can optionally
// provide to [Builder] and [Emitter] methods via their [context.Context]
// arguments, to be notified as modules are processed and artifacts are
// written, for debugging and for UI feedback about progress.
//
// Any or all of the callbacks may be left as nil, in which case no event
// will be delivered for the corresponding event.
//
// ModuleStart may return a new context which is then passed to the
// corresponding ModuleSuccess or ModuleFailure call and used while
// processing that module, so a tracer can carry values such as tracing
// spans across the pair. Return the given context if that isn't needed.
type BuildTracer struct {
	// The Module... callbacks frame the processing (read, transform,
	// dependency resolution) of a single module.
	ModuleStart   func(ctx context.Context, id moduleaddrs.ModuleIdentity) context.Context
	ModuleSuccess func(ctx context.Context, id moduleaddrs.ModuleIdentity)
	ModuleFailure func(ctx context.Context, id moduleaddrs.ModuleIdentity, err error)

	// ModuleAlready reports a module that was reached again through
	// another import path and therefore not reprocessed.
	ModuleAlready func(ctx context.Context, id moduleaddrs.ModuleIdentity)

	// AssetEmitted reports a side asset captured during transformation.
	AssetEmitted func(ctx context.Context, source moduleaddrs.ModuleIdentity, filename string)

	// ArtifactWritten reports an output file successfully placed at its
	// final name, including the manifest itself.
	ArtifactWritten func(ctx context.Context, filename string, size int)
}

// OnContext takes a context and returns a derived context which has
// everything the given context already had plus also the receiving
// BuildTracer, so that passing the resulting context to methods of
// [Builder] or [Emitter] will cause the tracer's callbacks to be called.
//
// Each context can have only one tracer, so if the given context already
// has a tracer then it will be overridden by the new one.
func (bt *BuildTracer) OnContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, buildTraceKey, bt)
}

func buildTraceFromContext(ctx context.Context) *BuildTracer {
	ret, ok := ctx.Value(buildTraceKey).(*BuildTracer)
	if !ok {
		// Always returning a non-nil pointer reduces the boilerplate at
		// each announcement site.
		ret = &noopBuildTrace
	}
	return ret
}

type buildTraceKeyType int

const buildTraceKey buildTraceKeyType = 0

var noopBuildTrace BuildTracer

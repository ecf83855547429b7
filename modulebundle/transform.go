// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// A Transform converts file content one step closer to executable module
// source. Transforms are the only extension point of the core: everything
// the bundler knows about non-native file types arrives through them.
//
// Transforms must be safe for concurrent use, because independent modules
// may be transformed in parallel. A transform should respond to
// cancellation of the given context to a reasonable extent so that builds
// can be interrupted promptly.
type Transform interface {
	// Name identifies the transform in configuration and in error
	// messages. Names should be short, lowercase identifiers.
	Name() string

	// Apply receives the current content for a module and returns either
	// replacement content for the next transform in the chain or, from the
	// last transform to run, the final executable module body.
	//
	// A transform may additionally register side assets via
	// [TransformInput.EmitAsset]; the returned reference token can be
	// embedded in the module body to refer to the emitted file.
	//
	// Returning an error aborts the whole build; the builder wraps it in a
	// [TransformError] identifying the file and the transform.
	Apply(ctx context.Context, in *TransformInput) (*TransformOutput, error)
}

// TransformInput is the input to one [Transform] application.
type TransformInput struct {
	// Identity is the module being transformed.
	Identity moduleaddrs.ModuleIdentity

	// Content is the content produced by the previous transform in the
	// chain, or the raw file bytes for the first transform to run.
	Content []byte

	// EmitAsset registers a side output file to be written alongside the
	// bundles, returning the public reference for it: the output-relative
	// path the emitted file will have, usable from the module body. The
	// ext argument carries the filename extension to preserve, including
	// its leading dot.
	//
	// EmitAsset must only be called during Apply, never retained.
	EmitAsset func(content []byte, ext string) (string, error)
}

// TransformOutput is the result of one successful [Transform] application.
type TransformOutput struct {
	// Content is the replacement content, or the final module body when
	// produced by the last transform in the chain.
	Content []byte
}

// runChain applies the given transforms, already arranged in execution
// order, to the raw content of one module.
func runChain(ctx context.Context, id moduleaddrs.ModuleIdentity, raw []byte, chain []Transform, emitAsset func([]byte, string) (string, error)) ([]byte, error) {
	content := raw
	for _, tf := range chain {
		out, err := tf.Apply(ctx, &TransformInput{
			Identity:  id,
			Content:   content,
			EmitAsset: emitAsset,
		})
		if err != nil {
			return nil, &TransformError{
				Path:          id.Path(),
				TransformName: tf.Name(),
				Err:           err,
			}
		}
		content = out.Content

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return content, nil
}

// defaultModuleBody produces a module body for a file no transform rule
// matched. Script files already are module bodies and JSON files have a
// trivial lowering; anything else cannot become valid module content,
// which is an error only now that the file has actually been required as
// a dependency.
func defaultModuleBody(id moduleaddrs.ModuleIdentity, raw []byte) ([]byte, error) {
	switch id.Ext() {
	case ".js":
		return raw, nil
	case ".json":
		body := make([]byte, 0, len(raw)+20)
		body = append(body, "module.exports = "...)
		body = append(body, raw...)
		body = append(body, ";\n"...)
		return body, nil
	default:
		return nil, &TransformError{
			Path: id.Path(),
			Err:  fmt.Errorf("no transform rule matches %q and the file is not script or JSON", id.Ext()),
		}
	}
}

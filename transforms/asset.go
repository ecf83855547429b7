// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// Asset copies a file into the build output as a side asset and produces a
// module exporting the public path of the emitted file, for binary content
// such as images and fonts that modules refer to by URL rather than
// execute.
//
// publicPath is prefixed to the output-relative filename in the exported
// reference; pass "" when pages are served from the output directory root.
func Asset(publicPath string) modulebundle.Transform {
	return assetTransform{publicPath: publicPath}
}

type assetTransform struct {
	publicPath string
}

func (assetTransform) Name() string {
	return "asset"
}

func (t assetTransform) Apply(_ context.Context, in *modulebundle.TransformInput) (*modulebundle.TransformOutput, error) {
	ref, err := in.EmitAsset(in.Content, in.Identity.Ext())
	if err != nil {
		return nil, fmt.Errorf("failed to emit asset: %w", err)
	}
	quoted, err := json.Marshal(t.publicPath + ref)
	if err != nil {
		return nil, fmt.Errorf("failed to encode asset reference: %w", err)
	}
	body := fmt.Sprintf("module.exports = %s;\n", quoted)
	return &modulebundle.TransformOutput{Content: []byte(body)}, nil
}

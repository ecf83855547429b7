// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// Raw turns any file into a module exporting the file's text as a string,
// for templates, fragments, and other content a module wants verbatim.
func Raw() modulebundle.Transform {
	return rawTransform{}
}

type rawTransform struct{}

func (rawTransform) Name() string {
	return "raw"
}

func (rawTransform) Apply(_ context.Context, in *modulebundle.TransformInput) (*modulebundle.TransformOutput, error) {
	quoted, err := json.Marshal(string(in.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to encode file text: %w", err)
	}
	body := fmt.Sprintf("module.exports = %s;\n", quoted)
	return &modulebundle.TransformOutput{Content: []byte(body)}, nil
}

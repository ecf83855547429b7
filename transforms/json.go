// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// JSON validates a JSON document and wraps it as a module exporting the
// decoded value. A JSON literal is valid JavaScript expression syntax, so
// the document is embedded verbatim rather than re-encoded.
func JSON() modulebundle.Transform {
	return jsonTransform{}
}

type jsonTransform struct{}

func (jsonTransform) Name() string {
	return "json"
}

func (jsonTransform) Apply(_ context.Context, in *modulebundle.TransformInput) (*modulebundle.TransformOutput, error) {
	if !json.Valid(in.Content) {
		return nil, fmt.Errorf("file does not contain valid JSON")
	}
	body := make([]byte, 0, len(in.Content)+20)
	body = append(body, "module.exports = "...)
	body = append(body, in.Content...)
	body = append(body, ";\n"...)
	return &modulebundle.TransformOutput{Content: body}, nil
}

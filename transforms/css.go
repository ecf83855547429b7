// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// CSS turns a stylesheet into a module that injects the styles into the
// page when first required, and exports the stylesheet text.
//
// Requiring the same stylesheet from several modules injects it once: the
// module registry runtime caches module execution, so the injection side
// effect runs at most one time per page.
func CSS() modulebundle.Transform {
	return cssTransform{}
}

type cssTransform struct{}

func (cssTransform) Name() string {
	return "css"
}

func (cssTransform) Apply(_ context.Context, in *modulebundle.TransformInput) (*modulebundle.TransformOutput, error) {
	// A JSON string literal is also a valid JavaScript string literal,
	// which avoids hand-rolled escaping of the stylesheet text.
	quoted, err := json.Marshal(string(in.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to encode stylesheet text: %w", err)
	}

	body := fmt.Sprintf(`var css = %s;
if (typeof document !== "undefined") {
  var style = document.createElement("style");
  style.textContent = css;
  document.head.appendChild(style);
}
module.exports = css;
`, quoted)
	return &modulebundle.TransformOutput{Content: []byte(body)}, nil
}

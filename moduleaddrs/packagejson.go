// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package moduleaddrs

import "encoding/json"

// mainFieldFromPackageJSON extracts the "main" field from raw package.json
// content, returning the empty string if the content is malformed or the
// field is absent.
//
// We intentionally decode only the one field we care about: package.json
// files in the wild carry all sorts of tool-specific extensions that are
// none of our business.
func mainFieldFromPackageJSON(raw []byte) string {
	var meta struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.Main
}

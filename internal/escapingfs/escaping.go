// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package escapingfs answers the question of whether a candidate path
// stays inside a root directory, which both module resolution and output
// emission rely on: a specifier must never read outside the project root,
// and an output filename template must never write outside the target
// directory.
package escapingfs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TargetWithinRoot returns true if target, once cleaned, refers to a
// location at or below root. Neither path is required to exist.
//
// This is a lexical check only: symlinks under root can still point
// elsewhere, so callers that extract or follow links need their own
// handling for that case.
func TargetWithinRoot(root string, target string) (bool, error) {
	if root == "" || target == "" {
		return false, nil
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false, fmt.Errorf("couldn't find relative path: %w", err)
	}

	for _, seg := range strings.Split(filepath.Clean(rel), string(filepath.Separator)) {
		if seg == ".." {
			return false, nil
		}
	}
	return true, nil
}

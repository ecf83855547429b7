// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package escapingfs

import (
	"path/filepath"
	"testing"
)

func TestTargetWithinRoot(t *testing.T) {
	root := filepath.Join("/", "project")

	tests := []struct {
		target string
		want   bool
	}{
		{filepath.Join(root, "src", "index.js"), true},
		{root, true},
		{filepath.Join(root, "src", "..", "style.css"), true},
		{filepath.Join(root, ".."), false},
		{filepath.Join(root, "..", "project-evil", "x.js"), false},
		{filepath.Join("/", "elsewhere", "x.js"), false},
		{"", false},
	}

	for _, test := range tests {
		t.Run(test.target, func(t *testing.T) {
			got, err := TargetWithinRoot(root, test.target)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != test.want {
				t.Errorf("wrong result for %q: got %v, want %v", test.target, got, test.want)
			}
		})
	}
}

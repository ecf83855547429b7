// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package moduleaddrs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeProjectFiles creates the given files (keyed by slash-separated
// project-relative path) under a new temporary project root.
func writeProjectFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestResolverResolve(t *testing.T) {
	root := writeProjectFiles(t, map[string]string{
		"src/index.js":                         "entry",
		"src/style.css":                        "css",
		"src/util.js":                          "util",
		"src/util.json":                        "not selected; .js wins",
		"src/data.json":                        "{}",
		"lib/widget/index.js":                  "widget index",
		"node_modules/lodash/index.js":         "lodash",
		"node_modules/left-pad@1.1.0/index.js": "old left-pad",
		"node_modules/left-pad@1.3.0/index.js": "new left-pad",
		"node_modules/left-pad@2.0.0/index.js": "too new left-pad",
		"node_modules/fancy/package.json":      `{"main": "./lib/entry.js"}`,
		"node_modules/fancy/lib/entry.js":      "fancy main",
		"node_modules/@corp/util@0.9.0/u.js":   "old scoped",
		"node_modules/@corp/util@1.2.0/u.js":   "new scoped",
	})

	r, err := NewResolver(ResolverConfig{
		ProjectRoot: root,
		Constraints: map[string]string{
			"left-pad": ">= 1.0.0, < 2.0.0",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	fromSrc := filepath.Join(root, "src")

	tests := []struct {
		name      string
		specifier string
		fromDir   string
		wantPath  string // project-relative, slash-separated
	}{
		{
			name:      "exact relative match",
			specifier: "./style.css",
			fromDir:   fromSrc,
			wantPath:  "src/style.css",
		},
		{
			name:      "extension trial prefers earlier extension",
			specifier: "./util",
			fromDir:   fromSrc,
			wantPath:  "src/util.js",
		},
		{
			name:      "extension trial falls through to json",
			specifier: "./data",
			fromDir:   fromSrc,
			wantPath:  "src/data.json",
		},
		{
			name:      "directory index fallback",
			specifier: "../lib/widget",
			fromDir:   fromSrc,
			wantPath:  "lib/widget/index.js",
		},
		{
			name:      "project root specifier",
			specifier: "/lib/widget/index.js",
			fromDir:   fromSrc,
			wantPath:  "lib/widget/index.js",
		},
		{
			name:      "unversioned package",
			specifier: "lodash",
			fromDir:   fromSrc,
			wantPath:  "node_modules/lodash/index.js",
		},
		{
			name:      "versioned package selects newest within constraint",
			specifier: "left-pad",
			fromDir:   fromSrc,
			wantPath:  "node_modules/left-pad@1.3.0/index.js",
		},
		{
			name:      "package main field",
			specifier: "fancy",
			fromDir:   fromSrc,
			wantPath:  "node_modules/fancy/lib/entry.js",
		},
		{
			name:      "scoped versioned package without constraint selects newest",
			specifier: "@corp/util/u.js",
			fromDir:   fromSrc,
			wantPath:  "node_modules/@corp/util@1.2.0/u.js",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := r.ResolveString(test.specifier, test.fromDir)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			want := filepath.Join(root, filepath.FromSlash(test.wantPath))
			if got.Path() != want {
				t.Errorf("wrong identity\ngot:  %s\nwant: %s", got.Path(), want)
			}
		})
	}
}

func TestResolverResolveErrors(t *testing.T) {
	root := writeProjectFiles(t, map[string]string{
		"src/index.js":                         "entry",
		"node_modules/left-pad@2.0.0/index.js": "too new",
	})

	r, err := NewResolver(ResolverConfig{
		ProjectRoot: root,
		Constraints: map[string]string{
			"left-pad": "< 2.0.0",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	fromSrc := filepath.Join(root, "src")

	t.Run("missing file lists candidates", func(t *testing.T) {
		_, err := r.ResolveString("./missing", fromSrc)
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			t.Fatalf("wrong error type %T: %s", err, err)
		}
		wantTried := []string{
			filepath.Join(fromSrc, "missing"),
			filepath.Join(fromSrc, "missing.js"),
			filepath.Join(fromSrc, "missing.json"),
		}
		if diff := cmp.Diff(wantTried, resErr.Tried); diff != "" {
			t.Errorf("wrong candidate paths\n%s", diff)
		}
		if resErr.FromDir != fromSrc {
			t.Errorf("wrong FromDir %q, want %q", resErr.FromDir, fromSrc)
		}
	})

	t.Run("traversal above project root", func(t *testing.T) {
		_, err := r.ResolveString("../../../etc/passwd", fromSrc)
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			t.Fatalf("wrong error type %T: %s", err, err)
		}
		if want := "specifier traverses above the project root"; resErr.Problem != want {
			t.Errorf("wrong problem %q, want %q", resErr.Problem, want)
		}
	})

	t.Run("unknown package", func(t *testing.T) {
		_, err := r.ResolveString("no-such-pkg", fromSrc)
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			t.Fatalf("wrong error type %T: %s", err, err)
		}
	})

	t.Run("no version meets constraint", func(t *testing.T) {
		_, err := r.ResolveString("left-pad", fromSrc)
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			t.Fatalf("wrong error type %T: %s", err, err)
		}
		if want := `no available version of package "left-pad" meets the configured constraint`; resErr.Problem != want {
			t.Errorf("wrong problem\ngot:  %s\nwant: %s", resErr.Problem, want)
		}
	})
}

func TestResolverDeterminism(t *testing.T) {
	root := writeProjectFiles(t, map[string]string{
		"src/a.js":                        "a",
		"node_modules/pkg@1.0.0/index.js": "1",
		"node_modules/pkg@1.5.0/index.js": "1.5",
	})

	r, err := NewResolver(ResolverConfig{ProjectRoot: root})
	if err != nil {
		t.Fatal(err)
	}

	fromSrc := filepath.Join(root, "src")
	first, err := r.ResolveString("pkg", fromSrc)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.ResolveString("pkg", fromSrc)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("resolution is not deterministic: got %s then %s", first, again)
		}
	}
}

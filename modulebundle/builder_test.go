// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// writeProject materializes a project fixture in a temporary directory and
// returns its root. Keys are slash-separated project-relative paths.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create fixture directory: %s", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create fixture file: %s", err)
		}
	}
	return root
}

func testResolver(t *testing.T, root string) *moduleaddrs.Resolver {
	t.Helper()
	resolver, err := moduleaddrs.NewResolver(moduleaddrs.ResolverConfig{
		ProjectRoot: root,
	})
	if err != nil {
		t.Fatalf("failed to construct resolver: %s", err)
	}
	return resolver
}

func buildGraph(t *testing.T, root string, config BuilderConfig, entries map[string]string) (*Graph, error) {
	t.Helper()
	if config.Resolver == nil {
		config.Resolver = testResolver(t, root)
	}
	builder, err := NewBuilder(config)
	if err != nil {
		t.Fatalf("failed to construct builder: %s", err)
	}
	// Deterministic entry order for tests with multiple entries.
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	if len(names) == 2 && names[0] > names[1] {
		names[0], names[1] = names[1], names[0]
	}
	for _, name := range names {
		if err := builder.AddEntry(context.Background(), name, entries[name]); err != nil {
			if _, closeErr := builder.Close(); closeErr == nil {
				t.Fatal("Close succeeded after AddEntry failure")
			}
			return nil, err
		}
	}
	return builder.Close()
}

func TestBuilderSimpleGraph(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js": "var a = require('./a.js');\nvar b = require('./b.js');\n",
		"src/a.js":     "var b = require('./b.js');\nmodule.exports = 'a';\n",
		"src/b.js":     "module.exports = 'b';\n",
	})

	graph, err := buildGraph(t, root, BuilderConfig{}, map[string]string{
		"main": "./src/index.js",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if got, want := graph.Len(), 3; got != want {
		t.Errorf("wrong module count: got %d, want %d", got, want)
	}

	entryID := moduleaddrs.MustNewModuleIdentity(filepath.Join(root, "src", "index.js"))
	node := graph.Node(entryID)
	if node == nil {
		t.Fatal("entry module missing from graph")
	}
	wantDeps := []string{"./a.js", "./b.js"}
	if diff := cmp.Diff(wantDeps, node.Dependencies); diff != "" {
		t.Errorf("wrong entry dependencies\n%s", diff)
	}

	bID := moduleaddrs.MustNewModuleIdentity(filepath.Join(root, "src", "b.js"))
	if got, want := node.DependencyIdentities["./b.js"], bID; got != want {
		t.Errorf("wrong resolved identity for ./b.js: got %s, want %s", got, want)
	}
}

func TestBuilderMemoization(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.js":    "var shared = require('./shared.js');\n",
		"print.js":  "var shared = require('./shared.js');\n",
		"shared.js": "module.exports = 'shared';\n",
	})

	var processed int64
	var already int64
	tracer := &BuildTracer{
		ModuleStart: func(ctx context.Context, _ moduleaddrs.ModuleIdentity) context.Context {
			atomic.AddInt64(&processed, 1)
			return ctx
		},
		ModuleAlready: func(_ context.Context, _ moduleaddrs.ModuleIdentity) {
			atomic.AddInt64(&already, 1)
		},
	}
	ctx := tracer.OnContext(context.Background())

	builder, err := NewBuilder(BuilderConfig{Resolver: testResolver(t, root)})
	if err != nil {
		t.Fatalf("failed to construct builder: %s", err)
	}
	if err := builder.AddEntry(ctx, "app", "./app.js"); err != nil {
		t.Fatalf("unexpected error adding app: %s", err)
	}
	if err := builder.AddEntry(ctx, "print", "./print.js"); err != nil {
		t.Fatalf("unexpected error adding print: %s", err)
	}
	graph, err := builder.Close()
	if err != nil {
		t.Fatalf("unexpected error closing: %s", err)
	}

	if got, want := graph.Len(), 3; got != want {
		t.Errorf("wrong module count: got %d, want %d", got, want)
	}
	if got, want := atomic.LoadInt64(&processed), int64(3); got != want {
		t.Errorf("wrong processing count: got %d, want %d (shared module must be processed exactly once)", got, want)
	}
	if got := atomic.LoadInt64(&already); got == 0 {
		t.Error("no memoization hit reported for the shared module")
	}
}

func TestBuilderCycle(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": "var b = require('./b.js');\nmodule.exports = 'a';\n",
		"b.js": "var a = require('./a.js');\nmodule.exports = 'b';\n",
	})

	graph, err := buildGraph(t, root, BuilderConfig{}, map[string]string{
		"main": "./a.js",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := graph.Len(), 2; got != want {
		t.Errorf("wrong module count: got %d, want %d (cycle members must appear exactly once)", got, want)
	}
}

func TestBuilderResolutionFailure(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "var a = require('./a.js');\n",
		"a.js":     "var missing = require('./missing.js');\n",
	})

	_, err := buildGraph(t, root, BuilderConfig{}, map[string]string{
		"main": "./index.js",
	})
	if err == nil {
		t.Fatal("unexpected success")
	}

	var graphErr *GraphError
	if !errors.As(err, &graphErr) {
		t.Fatalf("want GraphError, got %T: %s", err, err)
	}
	wantChain := []string{"./index.js", "./a.js", "./missing.js"}
	if diff := cmp.Diff(wantChain, graphErr.ImportChain); diff != "" {
		t.Errorf("wrong import chain\n%s", diff)
	}
	var resolutionErr *moduleaddrs.ResolutionError
	if !errors.As(err, &resolutionErr) {
		t.Fatalf("want wrapped ResolutionError, got %s", err)
	}
}

func TestBuilderUntransformableDependency(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "var logo = require('./logo.png');\n",
		"logo.png": "\x89PNG\r\n",
	})

	_, err := buildGraph(t, root, BuilderConfig{}, map[string]string{
		"main": "./index.js",
	})
	if err == nil {
		t.Fatal("unexpected success")
	}

	var graphErr *GraphError
	if !errors.As(err, &graphErr) {
		t.Fatalf("want GraphError, got %T: %s", err, err)
	}
	var transformErr *TransformError
	if !errors.As(err, &transformErr) {
		t.Fatalf("want wrapped TransformError, got %s", err)
	}
	if got, want := transformErr.Path, filepath.Join(root, "logo.png"); got != want {
		t.Errorf("wrong failing path: got %q, want %q", got, want)
	}
}

func TestBuilderModuleTimeout(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "module.exports = 1;\n",
	})

	rules := &RuleSet{
		Rules: []Rule{
			{Test: regexp.MustCompile(`\.js$`), Use: []Transform{slowTransform{delay: 200 * time.Millisecond}}},
		},
	}
	_, err := buildGraph(t, root, BuilderConfig{
		Rules:         rules,
		ModuleTimeout: 10 * time.Millisecond,
	}, map[string]string{
		"main": "./index.js",
	})
	if err == nil {
		t.Fatal("unexpected success")
	}

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("want TimeoutError, got %T: %s", err, err)
	}
	if got, want := timeoutErr.Budget, 10*time.Millisecond; got != want {
		t.Errorf("wrong budget in error: got %s, want %s", got, want)
	}
	var graphErr *GraphError
	if !errors.As(err, &graphErr) {
		t.Errorf("timeout must propagate as a GraphError, got %T", err)
	}
}

func TestBuilderCancellation(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "module.exports = 1;\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder, err := NewBuilder(BuilderConfig{Resolver: testResolver(t, root)})
	if err != nil {
		t.Fatalf("failed to construct builder: %s", err)
	}
	err = builder.AddEntry(ctx, "main", "./index.js")
	if err == nil {
		t.Fatal("unexpected success")
	}
	var cancelledErr *CancelledError
	if !errors.As(err, &cancelledErr) {
		t.Fatalf("want CancelledError, got %T: %s", err, err)
	}
}

func TestBuilderPoisonedAfterError(t *testing.T) {
	root := writeProject(t, map[string]string{
		"good.js": "module.exports = 1;\n",
	})

	builder, err := NewBuilder(BuilderConfig{Resolver: testResolver(t, root)})
	if err != nil {
		t.Fatalf("failed to construct builder: %s", err)
	}
	firstErr := builder.AddEntry(context.Background(), "bad", "./absent.js")
	if firstErr == nil {
		t.Fatal("unexpected success for absent entry")
	}
	secondErr := builder.AddEntry(context.Background(), "good", "./good.js")
	if secondErr != firstErr {
		t.Errorf("want the original error back from the poisoned builder, got %v", secondErr)
	}
	if _, err := builder.Close(); err != firstErr {
		t.Errorf("want the original error from Close, got %v", err)
	}
}

func TestBuilderUseAfterClose(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "module.exports = 1;\n",
	})

	builder, err := NewBuilder(BuilderConfig{Resolver: testResolver(t, root)})
	if err != nil {
		t.Fatalf("failed to construct builder: %s", err)
	}
	if err := builder.AddEntry(context.Background(), "main", "./index.js"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := builder.Close(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("AddEntry after Close did not panic")
		}
	}()
	builder.AddEntry(context.Background(), "again", "./index.js")
}

func TestBuilderSideAssets(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "var logo = require('./logo.png');\n",
		"logo.png": "fake image bytes",
	})

	rules := &RuleSet{
		Rules: []Rule{
			{Test: regexp.MustCompile(`\.png$`), Use: []Transform{assetEmitTransform{ext: ".png"}}},
		},
	}
	graph, err := buildGraph(t, root, BuilderConfig{Rules: rules}, map[string]string{
		"main": "./index.js",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	assets := graph.SideAssets()
	if len(assets) != 1 {
		t.Fatalf("wrong asset count: got %d, want 1", len(assets))
	}
	asset := assets[0]
	wantName := ContentHashAssetNamer(asset.Source, []byte("fake image bytes"), ".png")
	if got := asset.Filename; got != wantName {
		t.Errorf("wrong asset filename: got %q, want %q", got, wantName)
	}
	if got, want := asset.Source.Path(), filepath.Join(root, "logo.png"); got != want {
		t.Errorf("wrong asset source: got %q, want %q", got, want)
	}

	pngID := moduleaddrs.MustNewModuleIdentity(filepath.Join(root, "logo.png"))
	node := graph.Node(pngID)
	if node == nil {
		t.Fatal("asset module missing from graph")
	}
	wantBody := "module.exports = \"" + wantName + "\";\n"
	if got := string(node.Body); got != wantBody {
		t.Errorf("wrong asset module body\ngot:  %s\nwant: %s", got, wantBody)
	}
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
	"github.com/hashicorp/go-modbundle/modulebundle"
)

func applyTransform(t *testing.T, tf modulebundle.Transform, path string, content string, emitAsset func([]byte, string) (string, error)) string {
	t.Helper()
	out, err := tf.Apply(context.Background(), &modulebundle.TransformInput{
		Identity:  moduleaddrs.MustNewModuleIdentity(path),
		Content:   []byte(content),
		EmitAsset: emitAsset,
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return string(out.Content)
}

func TestScriptImportLowering(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"default import",
			"import greet from './greet.js';\n",
			"var greet = require('./greet.js');\n",
		},
		{
			"named imports",
			"import { join, split as splitter } from './strings.js';\n",
			"var __mod = require('./strings.js'); var join = __mod.join; var splitter = __mod.split;\n",
		},
		{
			"namespace import",
			"import * as util from './util.js';\n",
			"var util = require('./util.js');\n",
		},
		{
			"bare import",
			"import './style.css';\n",
			"require('./style.css');\n",
		},
		{
			"require passthrough",
			"var a = require('./a.js');\n",
			"var a = require('./a.js');\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := applyTransform(t, Script(), "/project/app.js", test.input, nil)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("wrong result\n%s", diff)
			}
		})
	}
}

func TestScriptExportLowering(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"export default",
			"export default function () {};\n",
			"module.exports = function () {};\n",
		},
		{
			"export declaration",
			"export function greet(name) {\n  return name;\n}\n",
			"function greet(name) {\n  return name;\n}\nexports.greet = greet;\n",
		},
		{
			"export const",
			"export const answer = 42;\n",
			"const answer = 42;\nexports.answer = answer;\n",
		},
		{
			"export list",
			"var a = 1;\nvar b = 2;\nexport { a, b as bee };\n",
			"var a = 1;\nvar b = 2;\nexports.a = a; exports.bee = b;\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := applyTransform(t, Script(), "/project/app.js", test.input, nil)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("wrong result\n%s", diff)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	got := applyTransform(t, JSON(), "/project/data.json", `{"a": 1}`, nil)
	want := "module.exports = {\"a\": 1};\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong result\n%s", diff)
	}

	_, err := JSON().Apply(context.Background(), &modulebundle.TransformInput{
		Identity: moduleaddrs.MustNewModuleIdentity("/project/bad.json"),
		Content:  []byte("{not json"),
	})
	if err == nil {
		t.Fatal("unexpected success for invalid JSON")
	}
}

func TestCSS(t *testing.T) {
	got := applyTransform(t, CSS(), "/project/style.css", "body { color: \"red\" }\n", nil)
	if !strings.Contains(got, `var css = "body { color: \"red\" }\n";`) {
		t.Errorf("stylesheet text not embedded\n%s", got)
	}
	if !strings.Contains(got, "document.createElement(\"style\")") {
		t.Errorf("injection code missing\n%s", got)
	}
	if !strings.Contains(got, "module.exports = css;") {
		t.Errorf("export missing\n%s", got)
	}
}

func TestAsset(t *testing.T) {
	var emittedContent []byte
	var emittedExt string
	emitAsset := func(content []byte, ext string) (string, error) {
		emittedContent = content
		emittedExt = ext
		return "0123abcd.png", nil
	}

	got := applyTransform(t, Asset("/static/"), "/project/img/logo.png", "fake image bytes", emitAsset)
	want := "module.exports = \"/static/0123abcd.png\";\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong module body\n%s", diff)
	}
	if string(emittedContent) != "fake image bytes" {
		t.Errorf("wrong emitted content: %q", emittedContent)
	}
	if emittedExt != ".png" {
		t.Errorf("wrong emitted extension: %q", emittedExt)
	}
}

func TestRaw(t *testing.T) {
	got := applyTransform(t, Raw(), "/project/greeting.txt", "hello \"world\"\n", nil)
	want := "module.exports = \"hello \\\"world\\\"\\n\";\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong result\n%s", diff)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(Options{})

	wantNames := []string{"asset", "css", "json", "raw", "script"}
	if diff := cmp.Diff(wantNames, registry.Names()); diff != "" {
		t.Errorf("wrong registered names\n%s", diff)
	}

	tf, err := registry.Lookup("css")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := tf.Name(), "css"; got != want {
		t.Errorf("wrong transform: got %q, want %q", got, want)
	}

	_, err = registry.Lookup("webassembly")
	if err == nil {
		t.Fatal("unexpected success for unknown transform")
	}
	if !strings.Contains(err.Error(), `no transform named "webassembly"`) {
		t.Errorf("wrong error: %s", err)
	}
}

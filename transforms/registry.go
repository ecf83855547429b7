// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// Options adjusts the behavior of the built-in transforms.
type Options struct {
	// PublicPath is prefixed to the output-relative asset filename when
	// the asset transform builds the reference a module exports, so that
	// pages served from somewhere other than the output directory root
	// still find their assets. May be empty.
	PublicPath string
}

// Registry maps transform names, as they appear in configuration rule
// "use" lists, to transforms.
type Registry struct {
	transforms map[string]modulebundle.Transform
}

// NewRegistry returns a registry holding the built-in transforms under
// their canonical names: "script", "json", "css", "asset", and "raw".
func NewRegistry(opts Options) *Registry {
	return &Registry{
		transforms: map[string]modulebundle.Transform{
			"script": Script(),
			"json":   JSON(),
			"css":    CSS(),
			"asset":  Asset(opts.PublicPath),
			"raw":    Raw(),
		},
	}
}

// Register adds a transform under its own name, replacing any existing
// registration with that name.
func (r *Registry) Register(tf modulebundle.Transform) {
	r.transforms[tf.Name()] = tf
}

// Lookup returns the transform registered under the given name.
func (r *Registry) Lookup(name string) (modulebundle.Transform, error) {
	tf, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("no transform named %q (have %s)", name, strings.Join(r.Names(), ", "))
	}
	return tf, nil
}

// Names returns the registered transform names in sorted order.
func (r *Registry) Names() []string {
	ret := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

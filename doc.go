// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package modbundle ties the bundling pipeline together behind a single
// configuration-driven entry point: load a [Config], pass it to [Build],
// and receive the assembled bundles and the manifest describing what was
// written where.
//
// The underlying stages live in their own packages for callers that need
// finer control: moduleaddrs resolves import specifiers to module
// identities, modulebundle discovers the dependency graph and assembles and
// emits bundles, and transforms holds the built-in file-type transforms.
package modbundle

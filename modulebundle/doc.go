// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package modulebundle deals with the process of turning one or more entry
// modules into emitted bundles: discovering the dependency graph, running
// transform chains over non-native file types, assembling each entry's
// reachable modules into a deterministic artifact, and writing artifacts
// and a manifest to an output directory.
//
// The expected usage pattern is to construct a [Builder], add each entry
// point, and call [Builder.Close] to obtain the closed [Graph]. An
// [Assembler] then produces one [Bundle] per entry and an [Emitter] writes
// the bundles, any side assets captured during transformation, and the
// [Manifest] mapping source paths to output filenames.
package modulebundle

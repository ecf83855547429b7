// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package transforms provides the built-in transforms that configuration
// files can reference by name in their rule "use" lists, covering the
// common file types a web project bundles: scripts, JSON data, stylesheets,
// binary assets, and plain text.
//
// Everything here is an ordinary [modulebundle.Transform]; projects with
// needs beyond the built-ins implement that interface directly and register
// the result alongside these.
package transforms

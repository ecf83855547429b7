// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package moduleaddrs deals with the various ways a module can be referred
// to from inside another module, and with mapping those references onto
// concrete files in a project directory.
//
// A module reference as written in source code is a [Specifier], which is
// one of three kinds: a local path relative to the referring module, a path
// relative to the project root, or a bare package name to be found in the
// project's package directory. A [Resolver] maps a specifier plus a base
// directory onto a [ModuleIdentity], which is the canonical unique key for
// one module within a build.
package moduleaddrs

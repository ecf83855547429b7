// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package devserver supports the development workflow around the bundler:
// a filesystem watcher that triggers rebuilds when project files change,
// and a local HTTP server that serves the build output and exposes build
// metrics.
package devserver

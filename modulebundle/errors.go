// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"fmt"
	"strings"
	"time"
)

// TransformError describes a transform that rejected or failed on the
// content it was given.
type TransformError struct {
	// Path is the filesystem path of the file being transformed.
	Path string

	// TransformName identifies the failing transform within its chain, or
	// is empty when the problem is that no transform chain applies at all.
	TransformName string

	Err error
}

func (e *TransformError) Error() string {
	if e.TransformName == "" {
		return fmt.Sprintf("cannot transform %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("transform %q failed for %s: %s", e.TransformName, e.Path, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// TimeoutError describes a module whose processing exceeded the configured
// per-module time budget.
type TimeoutError struct {
	Path   string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("processing %s exceeded the %s module time budget", e.Path, e.Budget)
}

// GraphError wraps a failure during dependency graph construction with the
// chain of import specifiers that led to the failing module, entry first.
type GraphError struct {
	// ImportChain is the sequence of specifiers followed from the entry
	// point to reach the point of failure, ending with the specifier that
	// could not be processed.
	ImportChain []string

	Err error
}

func (e *GraphError) Error() string {
	if len(e.ImportChain) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (import chain: %s)", e.Err, strings.Join(e.ImportChain, " -> "))
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// EmitError describes an I/O failure while writing an output artifact,
// after any retries were exhausted.
type EmitError struct {
	// Path is the intended final path of the artifact that could not be
	// written.
	Path string

	Err error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("failed to write %s: %s", e.Path, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}

// CancelledError reports that the caller aborted the build before it could
// run to completion. No output was emitted.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("build cancelled: %s", e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

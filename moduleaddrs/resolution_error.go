// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package moduleaddrs

import (
	"fmt"
	"strings"
)

// ResolutionError describes a specifier that could not be mapped onto any
// existing module file.
type ResolutionError struct {
	// Specifier is the specifier string as written in the referring module.
	Specifier string

	// FromDir is the base directory the specifier was interpreted from.
	FromDir string

	// Tried lists the candidate filesystem paths that were checked, in the
	// order they were checked, when candidates were applicable.
	Tried []string

	// Problem optionally describes a failure that happened before any
	// candidates could be tried, such as a traversal above the project
	// root or a malformed specifier.
	Problem string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot resolve %q from %s", e.Specifier, e.FromDir)
	if e.Problem != "" {
		fmt.Fprintf(&b, ": %s", e.Problem)
	}
	if len(e.Tried) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Tried, ", "))
	}
	return b.String()
}

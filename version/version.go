// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package version records the version of this module, for the CLI's
// version subcommand and for diagnostic output.
package version

import "fmt"

var (
	Version           = "0.1.0"
	VersionPrerelease = "dev"
	VersionMetadata   = ""
)

// String renders the full semantic version, including any prerelease and
// metadata parts.
func String() string {
	v := Version
	if VersionPrerelease != "" {
		v = fmt.Sprintf("%s-%s", v, VersionPrerelease)
	}
	if VersionMetadata != "" {
		v = fmt.Sprintf("%s+%s", v, VersionMetadata)
	}
	return v
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import "regexp"

// requirePattern matches the require("...") calls that transformed module
// bodies use to declare their dependencies. Transforms are responsible for
// lowering any other import syntax to this form before the scanner runs.
//
// A regular expression cannot know about comments or string nesting, but
// for the module sources this bundler targets that trade-off is the
// accepted idiom; a false positive surfaces as an ordinary resolution
// error naming the importing module.
var requirePattern = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)

// scanDependencies extracts the dependency specifiers from a transformed
// module body, in order of first appearance and without duplicates.
func scanDependencies(body []byte) []string {
	matches := requirePattern.FindAllSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	deps := make([]string, 0, len(matches))
	for _, m := range matches {
		spec := string(m[1])
		if _, ok := seen[spec]; ok {
			continue
		}
		seen[spec] = struct{}{}
		deps = append(deps, spec)
	}
	return deps
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transforms

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// Script lowers the ES module import/export statements in a script to the
// CommonJS forms the dependency scanner and the bundle runtime understand.
//
// The lowering is textual, line-oriented, and intentionally modest: it
// handles the statement shapes that appear in ordinary application code and
// leaves anything else untouched. Scripts that already use require() and
// module.exports pass through unchanged.
func Script() modulebundle.Transform {
	return scriptTransform{}
}

type scriptTransform struct{}

func (scriptTransform) Name() string {
	return "script"
}

var (
	// import name from 'spec';
	importDefaultPattern = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([A-Za-z_$][\w$]*)[ \t]+from[ \t]+(['"][^'"]+['"])[ \t]*;?[ \t]*$`)

	// import { a, b as c } from 'spec';
	importNamedPattern = regexp.MustCompile(`(?m)^[ \t]*import[ \t]*\{([^}]*)\}[ \t]*from[ \t]+(['"][^'"]+['"])[ \t]*;?[ \t]*$`)

	// import * as name from 'spec';
	importStarPattern = regexp.MustCompile(`(?m)^[ \t]*import[ \t]*\*[ \t]*as[ \t]+([A-Za-z_$][\w$]*)[ \t]+from[ \t]+(['"][^'"]+['"])[ \t]*;?[ \t]*$`)

	// import 'spec';
	importBarePattern = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(['"][^'"]+['"])[ \t]*;?[ \t]*$`)

	// export default ...
	exportDefaultPattern = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+`)

	// export function name / export const name = ...
	exportDeclPattern = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+(function|class|const|let|var)[ \t]+([A-Za-z_$][\w$]*)`)

	// export { a, b as c };
	exportListPattern = regexp.MustCompile(`(?m)^[ \t]*export[ \t]*\{([^}]*)\}[ \t]*;?[ \t]*$`)
)

func (scriptTransform) Apply(_ context.Context, in *modulebundle.TransformInput) (*modulebundle.TransformOutput, error) {
	src := string(in.Content)

	src = importStarPattern.ReplaceAllString(src, "var $1 = require($2);")
	src = importDefaultPattern.ReplaceAllString(src, "var $1 = require($2);")
	src = importNamedPattern.ReplaceAllStringFunc(src, func(stmt string) string {
		m := importNamedPattern.FindStringSubmatch(stmt)
		var b strings.Builder
		fmt.Fprintf(&b, "var __mod = require(%s);", m[2])
		for _, binding := range splitBindings(m[1]) {
			fmt.Fprintf(&b, " var %s = __mod.%s;", binding.local, binding.exported)
		}
		return b.String()
	})
	src = importBarePattern.ReplaceAllString(src, "require($1);")

	// Exported declarations stay declarations; the exports assignments are
	// collected and appended so hoisting still works for the declarations
	// themselves.
	var exported []string
	src = exportDeclPattern.ReplaceAllStringFunc(src, func(stmt string) string {
		m := exportDeclPattern.FindStringSubmatch(stmt)
		exported = append(exported, m[3])
		return m[1] + m[2] + " " + m[3]
	})
	src = exportListPattern.ReplaceAllStringFunc(src, func(stmt string) string {
		m := exportListPattern.FindStringSubmatch(stmt)
		var b strings.Builder
		for i, binding := range splitBindings(m[1]) {
			if i > 0 {
				b.WriteString(" ")
			}
			// The alias side of "name as alias" is the exported name
			// here, the reverse of the import direction.
			fmt.Fprintf(&b, "exports.%s = %s;", binding.local, binding.exported)
		}
		return b.String()
	})
	src = exportDefaultPattern.ReplaceAllString(src, "${1}module.exports = ")

	if len(exported) > 0 {
		if !strings.HasSuffix(src, "\n") {
			src += "\n"
		}
		for _, name := range exported {
			src += fmt.Sprintf("exports.%s = %s;\n", name, name)
		}
	}

	return &modulebundle.TransformOutput{Content: []byte(src)}, nil
}

type binding struct {
	// local is the name in this module's scope, exported the name on the
	// other side of the import/export.
	local    string
	exported string
}

// splitBindings parses the inside of an import/export brace list,
// honoring "name as alias" entries.
func splitBindings(list string) []binding {
	var ret []binding
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if name, alias, ok := strings.Cut(entry, " as "); ok {
			// In an import the alias is the local name; in an export the
			// alias is the exported name. Callers pick the field that
			// matches their direction.
			ret = append(ret, binding{local: strings.TrimSpace(alias), exported: strings.TrimSpace(name)})
			continue
		}
		ret = append(ret, binding{local: entry, exported: entry})
	}
	return ret
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// ChainOrder selects which end of a rule's transform list runs first.
//
// The domain convention is that the last-listed transform runs first, as in
// a right-to-left pipe composition, so a rule like ["style", "css"] parses
// CSS before injecting styles. That convention regularly surprises people,
// so rather than hardcoding it the order is declared in configuration.
type ChainOrder int

const (
	// ChainLastFirst runs the last-listed transform first. This is the
	// default.
	ChainLastFirst ChainOrder = iota

	// ChainDeclared runs transforms in the order they are listed.
	ChainDeclared
)

// ParseChainOrder maps the configuration spellings of the chain orders to
// their values.
func ParseChainOrder(s string) (ChainOrder, error) {
	switch s {
	case "", "last-first":
		return ChainLastFirst, nil
	case "declared":
		return ChainDeclared, nil
	default:
		return 0, fmt.Errorf("invalid chain order %q: must be \"last-first\" or \"declared\"", s)
	}
}

// Rule pairs a file-matching predicate with the ordered list of transforms
// to apply to matching files.
type Rule struct {
	// Test matches against the slash-separated form of a module's absolute
	// path.
	Test *regexp.Regexp

	// Use is the transform list as declared; RuleSet applies the
	// configured [ChainOrder] when producing the execution order.
	Use []Transform
}

// RuleSet is an ordered collection of transform rules.
//
// Rules are evaluated in declared order and the first rule whose Test
// matches wins; later rules are not consulted for that file. A file that
// matches no rule at all is not an error by itself (see
// [Builder] for when it becomes one).
type RuleSet struct {
	Rules []Rule

	// ChainOrder controls the execution order of each matching rule's Use
	// list. The zero value is [ChainLastFirst].
	ChainOrder ChainOrder
}

// TransformsFor returns the transform chain for the given module in
// execution order, or nil if no rule matches.
func (rs *RuleSet) TransformsFor(path string) []Transform {
	if rs == nil {
		return nil
	}
	slashed := filepath.ToSlash(path)
	for _, rule := range rs.Rules {
		if rule.Test == nil || !rule.Test.MatchString(slashed) {
			continue
		}
		chain := make([]Transform, len(rule.Use))
		copy(chain, rule.Use)
		if rs.ChainOrder == ChainLastFirst {
			for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
				chain[i], chain[j] = chain[j], chain[i]
			}
		}
		return chain
	}
	return nil
}

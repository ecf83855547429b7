// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package moduleaddrs

import (
	"fmt"
	"path/filepath"
)

// ModuleIdentity is the canonical identity of one module within a build:
// an absolute, cleaned filesystem path to the file the module was read from.
//
// Identities are comparable and serve as the unique keys of the dependency
// graph. Two specifiers that lead to the same file, by whatever combination
// of relative traversals, extension defaulting, and index lookup, always
// produce equal identities.
type ModuleIdentity struct {
	absPath string
}

// NewModuleIdentity constructs an identity from the given path, which must
// already be absolute. The path is cleaned but not otherwise interpreted,
// so callers are responsible for resolving any symlink or case-folding
// concerns before constructing an identity.
func NewModuleIdentity(absPath string) (ModuleIdentity, error) {
	if !filepath.IsAbs(absPath) {
		return ModuleIdentity{}, fmt.Errorf("module identity requires an absolute path, but got %q", absPath)
	}
	return ModuleIdentity{absPath: filepath.Clean(absPath)}, nil
}

// MustNewModuleIdentity is a variant of [NewModuleIdentity] that panics if
// the given path is invalid, for use in tests and other situations where
// the path is a constant known to be correct.
func MustNewModuleIdentity(absPath string) ModuleIdentity {
	id, err := NewModuleIdentity(absPath)
	if err != nil {
		panic(err)
	}
	return id
}

// Path returns the absolute filesystem path this identity represents.
func (id ModuleIdentity) Path() string {
	return id.absPath
}

// Dir returns the directory containing the module, which is the base
// directory for resolving the module's own local specifiers.
func (id ModuleIdentity) Dir() string {
	return filepath.Dir(id.absPath)
}

// Ext returns the filename extension of the module path, including the
// leading dot, or the empty string if there is none.
func (id ModuleIdentity) Ext() string {
	return filepath.Ext(id.absPath)
}

// IsZero returns true for the zero value of ModuleIdentity, which does not
// represent any module at all.
func (id ModuleIdentity) IsZero() bool {
	return id.absPath == ""
}

func (id ModuleIdentity) String() string {
	return id.absPath
}

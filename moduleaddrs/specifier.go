// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package moduleaddrs

import (
	"fmt"
	"path"
	"strings"
)

// Specifier acts as a tagged union over the possible forms of module
// reference, for situations where any form is acceptable.
//
// Only specifier types within this package can implement Specifier.
type Specifier interface {
	specifierSigil()

	String() string
}

// ParseSpecifier attempts to parse the given string as any one of the
// supported specifier forms, recognizing which form it belongs to based on
// the syntax differences between them.
func ParseSpecifier(given string) (Specifier, error) {
	if strings.TrimSpace(given) != given {
		return nil, fmt.Errorf("specifier must not have leading or trailing spaces")
	}
	if len(given) == 0 {
		return nil, fmt.Errorf("a non-empty specifier is required")
	}
	switch {
	case looksLikeLocalSpecifier(given) || given == "." || given == "..":
		ret, err := ParseLocalSpecifier(given)
		if err != nil {
			return nil, fmt.Errorf("invalid local specifier %q: %w", given, err)
		}
		return ret, nil
	case strings.HasPrefix(given, "/"):
		ret, err := ParseRootSpecifier(given)
		if err != nil {
			return nil, fmt.Errorf("invalid project-root specifier %q: %w", given, err)
		}
		return ret, nil
	default:
		ret, err := ParsePackageSpecifier(given)
		if err != nil {
			return nil, fmt.Errorf("invalid package specifier %q: %w", given, err)
		}
		return ret, nil
	}
}

// MustParseSpecifier is a thin wrapper around [ParseSpecifier] that panics
// if it returns an error, or returns its result if not.
func MustParseSpecifier(given string) Specifier {
	ret, err := ParseSpecifier(given)
	if err != nil {
		panic(err)
	}
	return ret
}

// LocalSpecifier is a module reference relative to the directory containing
// the referring module, written with a mandatory "./" or "../" prefix so
// that it cannot be mistaken for a bare package name.
type LocalSpecifier struct {
	// relPath is a slash-separated path in the style of the Go standard
	// library package "path", always stored in its "Clean" form aside from
	// the mandatory "./" or "../" prefix.
	relPath string
}

var _ Specifier = LocalSpecifier{}

func (s LocalSpecifier) specifierSigil() {}

func looksLikeLocalSpecifier(given string) bool {
	return strings.HasPrefix(given, "./") || strings.HasPrefix(given, "../")
}

// ParseLocalSpecifier interprets the given string as a local specifier, or
// returns an error if it cannot be interpreted as such.
func ParseLocalSpecifier(given string) (LocalSpecifier, error) {
	if strings.ContainsAny(given, ":\\") {
		return LocalSpecifier{}, fmt.Errorf("must be a relative path using forward-slash separators between segments, like in a relative URL")
	}
	if !looksLikeLocalSpecifier(given) && given != "." && given != ".." {
		return LocalSpecifier{}, fmt.Errorf("must start with either ./ or ../ to indicate a local path")
	}

	clean := path.Clean(given)
	if clean == ".." {
		clean = "../"
	} else if clean == "." {
		clean = "./"
	}
	if !looksLikeLocalSpecifier(clean) {
		clean = "./" + clean
	}

	return LocalSpecifier{relPath: clean}, nil
}

// String implements Specifier.
func (s LocalSpecifier) String() string {
	return s.relPath
}

// RelativePath returns the effective relative path for this specifier, in
// our platform-agnostic slash-separated canonical syntax.
func (s LocalSpecifier) RelativePath() string {
	return s.relPath
}

// RootSpecifier is a module reference relative to the project root
// directory, written with a leading "/".
//
// Despite the leading slash this never refers to the root of the host
// filesystem: the project root is the outermost directory a build is
// allowed to read modules from.
type RootSpecifier struct {
	// subPath is a slash-separated path below the project root, without
	// any leading slash, in "Clean" form. The empty string refers to the
	// project root itself.
	subPath string
}

var _ Specifier = RootSpecifier{}

func (s RootSpecifier) specifierSigil() {}

// ParseRootSpecifier interprets the given string as a project-root
// specifier, or returns an error if it cannot be interpreted as such.
func ParseRootSpecifier(given string) (RootSpecifier, error) {
	if !strings.HasPrefix(given, "/") {
		return RootSpecifier{}, fmt.Errorf("must start with a slash to indicate a path from the project root")
	}
	if strings.ContainsAny(given, ":\\") {
		return RootSpecifier{}, fmt.Errorf("must use forward-slash separators between segments, like in a relative URL")
	}
	sub, err := normalizeSubPath(strings.TrimPrefix(given, "/"))
	if err != nil {
		return RootSpecifier{}, err
	}
	return RootSpecifier{subPath: sub}, nil
}

// String implements Specifier.
func (s RootSpecifier) String() string {
	return "/" + s.subPath
}

// SubPath returns the path below the project root that this specifier
// refers to, without a leading slash.
func (s RootSpecifier) SubPath() string {
	return s.subPath
}

// PackageSpecifier is a module reference by bare package name, to be found
// in the project's configured package directory rather than relative to the
// referring module.
//
// A package specifier has a package name as its first one or two segments
// (two when the name is scoped, like "@corp/util") and optionally a
// sub-path below the package root for the remaining segments.
type PackageSpecifier struct {
	name    string
	subPath string
}

var _ Specifier = PackageSpecifier{}

func (s PackageSpecifier) specifierSigil() {}

// ParsePackageSpecifier interprets the given string as a bare package
// specifier, or returns an error if it cannot be interpreted as such.
func ParsePackageSpecifier(given string) (PackageSpecifier, error) {
	if strings.ContainsAny(given, ":\\") {
		return PackageSpecifier{}, fmt.Errorf("must not contain a scheme or backslashes")
	}
	if strings.HasPrefix(given, "/") || looksLikeLocalSpecifier(given) {
		return PackageSpecifier{}, fmt.Errorf("a package name must not start with a path prefix")
	}

	nameSegs := 1
	if strings.HasPrefix(given, "@") {
		// Scoped names always have exactly two name segments.
		nameSegs = 2
	}

	segs := strings.Split(given, "/")
	if len(segs) < nameSegs {
		return PackageSpecifier{}, fmt.Errorf("scoped package name requires a name after the scope")
	}
	name := strings.Join(segs[:nameSegs], "/")
	for _, seg := range segs[:nameSegs] {
		if err := validatePackageNameSegment(seg); err != nil {
			return PackageSpecifier{}, err
		}
	}

	var sub string
	if len(segs) > nameSegs {
		var err error
		sub, err = normalizeSubPath(strings.Join(segs[nameSegs:], "/"))
		if err != nil {
			return PackageSpecifier{}, err
		}
		if sub == "" {
			return PackageSpecifier{}, fmt.Errorf("package sub-path must not be empty when a trailing slash is present")
		}
	}

	return PackageSpecifier{name: name, subPath: sub}, nil
}

func validatePackageNameSegment(seg string) error {
	trimmed := strings.TrimPrefix(seg, "@")
	if trimmed == "" {
		return fmt.Errorf("package name segment must not be empty")
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("package name must use only letters, digits, dashes, underscores, and dots")
		}
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("package name must not be a path traversal segment")
	}
	return nil
}

// String implements Specifier.
func (s PackageSpecifier) String() string {
	if s.subPath == "" {
		return s.name
	}
	return s.name + "/" + s.subPath
}

// PackageName returns the bare package name portion of the specifier,
// including the scope prefix if present.
func (s PackageSpecifier) PackageName() string {
	return s.name
}

// SubPath returns the path below the package root that this specifier
// refers to, or the empty string if it refers to the package root itself.
func (s PackageSpecifier) SubPath() string {
	return s.subPath
}

// normalizeSubPath interprets the given string as a sub-path below some
// root directory, returning a normalized form or an error if the string
// would traverse above that root.
//
// The empty string is valid and refers to the root itself.
func normalizeSubPath(given string) (string, error) {
	if given == "" {
		return "", nil
	}
	clean := path.Clean(given)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("sub-path must not traverse above its root")
	}
	return strings.TrimPrefix(clean, "/"), nil
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package moduleaddrs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apparentlymart/go-versions/versions"
	"github.com/apparentlymart/go-versions/versions/constraints"

	"github.com/hashicorp/go-modbundle/internal/escapingfs"
)

// ResolverConfig is the configuration for constructing a [Resolver].
type ResolverConfig struct {
	// ProjectRoot is the outermost directory modules may be read from.
	// Required; made absolute during construction.
	ProjectRoot string

	// Extensions is the priority-ordered list of filename extensions to
	// try when a specifier doesn't match a file exactly. Defaults to
	// [".js", ".json"].
	Extensions []string

	// IndexNames is the priority-ordered list of filenames to try when a
	// specifier refers to a directory. Defaults to ["index.js"].
	IndexNames []string

	// PackageDir is the directory searched for bare package names. It may
	// be absolute or relative to ProjectRoot. Defaults to "node_modules".
	PackageDir string

	// Constraints optionally restricts which versioned store of a package
	// may be selected, keyed by package name. Values use ruby-style
	// constraint syntax such as ">= 1.2.0, < 2.0.0". Packages without an
	// entry accept any available version.
	Constraints map[string]string
}

// Resolver maps module specifiers onto module identities by consulting the
// filesystem under a fixed project root.
//
// A resolver holds no mutable state and never modifies the filesystem, so
// a single resolver is safe for concurrent use. Resolution is deterministic:
// the same specifier, base directory, and filesystem state always produce
// the same identity.
type Resolver struct {
	projectRoot string
	extensions  []string
	indexNames  []string
	packageDir  string
	constraints map[string]versions.Set
}

// NewResolver constructs a [Resolver] from the given configuration,
// validating it and applying defaults for any optional field left unset.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.ProjectRoot == "" {
		return nil, fmt.Errorf("resolver requires a project root")
	}
	root, err := filepath.Abs(config.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid project root: %w", err)
	}

	exts := config.Extensions
	if len(exts) == 0 {
		exts = []string{".js", ".json"}
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			return nil, fmt.Errorf("extension %q must begin with a dot", ext)
		}
	}

	indexes := config.IndexNames
	if len(indexes) == 0 {
		indexes = []string{"index.js"}
	}

	pkgDir := config.PackageDir
	if pkgDir == "" {
		pkgDir = "node_modules"
	}
	if !filepath.IsAbs(pkgDir) {
		pkgDir = filepath.Join(root, pkgDir)
	}

	cnsts := make(map[string]versions.Set, len(config.Constraints))
	for name, raw := range config.Constraints {
		spec, err := constraints.ParseRubyStyleMulti(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid version constraint %q for package %q: %w", raw, name, err)
		}
		cnsts[name] = versions.MeetingConstraints(spec)
	}

	return &Resolver{
		projectRoot: root,
		extensions:  exts,
		indexNames:  indexes,
		packageDir:  pkgDir,
		constraints: cnsts,
	}, nil
}

// ProjectRoot returns the absolute project root directory the resolver
// operates under.
func (r *Resolver) ProjectRoot() string {
	return r.projectRoot
}

// Resolve maps the given specifier, interpreted from the given base
// directory, onto the identity of an existing module file.
//
// fromDir is used only for [LocalSpecifier]; the other specifier forms are
// anchored at the project root or the package directory respectively. The
// base directory must itself be inside the project root.
//
// If no matching file exists under any of the configured extension and
// index rules the result is a [ResolutionError] listing every candidate
// path that was tried.
func (r *Resolver) Resolve(spec Specifier, fromDir string) (ModuleIdentity, error) {
	switch spec := spec.(type) {
	case LocalSpecifier:
		base := filepath.Join(fromDir, filepath.FromSlash(spec.RelativePath()))
		if ok, err := escapingfs.TargetWithinRoot(r.projectRoot, base); err != nil {
			return ModuleIdentity{}, err
		} else if !ok {
			return ModuleIdentity{}, &ResolutionError{
				Specifier: spec.String(),
				FromDir:   fromDir,
				Problem:   "specifier traverses above the project root",
			}
		}
		return r.resolveFile(spec.String(), fromDir, base)
	case RootSpecifier:
		base := filepath.Join(r.projectRoot, filepath.FromSlash(spec.SubPath()))
		return r.resolveFile(spec.String(), fromDir, base)
	case PackageSpecifier:
		return r.resolvePackage(spec, fromDir)
	default:
		// Should not get here, because the cases above are exhaustive for
		// all of our defined Specifier implementations.
		panic(fmt.Sprintf("unsupported Specifier implementation %T", spec))
	}
}

// ResolveString is a convenience wrapper combining [ParseSpecifier] and
// [Resolver.Resolve].
func (r *Resolver) ResolveString(specifier string, fromDir string) (ModuleIdentity, error) {
	spec, err := ParseSpecifier(specifier)
	if err != nil {
		return ModuleIdentity{}, &ResolutionError{
			Specifier: specifier,
			FromDir:   fromDir,
			Problem:   err.Error(),
		}
	}
	return r.Resolve(spec, fromDir)
}

// resolveFile applies the exact-match, extension-trial, and directory-index
// rules to the given candidate base path, in that order.
func (r *Resolver) resolveFile(specifier, fromDir, base string) (ModuleIdentity, error) {
	var tried []string

	if isRegularFile(base) {
		return NewModuleIdentity(base)
	}
	tried = append(tried, base)

	for _, ext := range r.extensions {
		candidate := base + ext
		if isRegularFile(candidate) {
			return NewModuleIdentity(candidate)
		}
		tried = append(tried, candidate)
	}

	if isDir(base) {
		for _, index := range r.indexNames {
			candidate := filepath.Join(base, index)
			if isRegularFile(candidate) {
				return NewModuleIdentity(candidate)
			}
			tried = append(tried, candidate)
		}
	}

	return ModuleIdentity{}, &ResolutionError{
		Specifier: specifier,
		FromDir:   fromDir,
		Tried:     tried,
	}
}

// resolvePackage locates the root directory for a bare package name and
// then resolves the specifier's sub-path within it.
//
// An unversioned directory named exactly after the package takes priority.
// Otherwise the package directory is scanned for versioned stores named
// "name@version" and the newest version meeting the configured constraint
// is selected, mirroring how registry-based installers choose a version
// from the set a registry advertises.
func (r *Resolver) resolvePackage(spec PackageSpecifier, fromDir string) (ModuleIdentity, error) {
	name := spec.PackageName()

	pkgRoot := filepath.Join(r.packageDir, filepath.FromSlash(name))
	if !isDir(pkgRoot) {
		versioned, tried, err := r.findVersionedPackage(name)
		if err != nil {
			return ModuleIdentity{}, &ResolutionError{
				Specifier: spec.String(),
				FromDir:   fromDir,
				Tried:     tried,
				Problem:   err.Error(),
			}
		}
		pkgRoot = versioned
	}

	base := pkgRoot
	if sub := spec.SubPath(); sub != "" {
		base = filepath.Join(pkgRoot, filepath.FromSlash(sub))
	} else if main, ok := packageMainFile(pkgRoot); ok {
		base = filepath.Join(pkgRoot, filepath.FromSlash(main))
	}

	return r.resolveFile(spec.String(), fromDir, base)
}

// findVersionedPackage scans the package directory for stores of the form
// "name@version", returning the directory of the newest version that meets
// the constraint configured for the package (or the newest overall when no
// constraint is configured).
func (r *Resolver) findVersionedPackage(name string) (string, []string, error) {
	scanDir := r.packageDir
	prefix := name + "@"
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		// Scoped packages nest one level down, e.g. "@corp/util@1.0.0"
		// lives inside the "@corp" directory.
		scanDir = filepath.Join(scanDir, filepath.FromSlash(name[:idx]))
		prefix = name[idx+1:] + "@"
	}

	tried := []string{filepath.Join(r.packageDir, filepath.FromSlash(name))}

	entries, err := os.ReadDir(scanDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", tried, fmt.Errorf("package %q is not present in %s", name, r.packageDir)
		}
		return "", tried, err
	}

	available := make(versions.List, 0, len(entries))
	dirs := make(map[versions.Version]string)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		raw := entry.Name()[len(prefix):]
		v, err := versions.ParseVersion(raw)
		if err != nil {
			// Not a versioned store of this package; perhaps a package
			// whose name merely shares the prefix.
			continue
		}
		available = append(available, v)
		dirs[v] = filepath.Join(scanDir, entry.Name())
		tried = append(tried, filepath.Join(scanDir, entry.Name()))
	}

	if len(available) == 0 {
		return "", tried, fmt.Errorf("package %q is not present in %s", name, r.packageDir)
	}

	allowed := versions.All
	if set, ok := r.constraints[name]; ok {
		allowed = set
	}

	available.Sort()
	selected := available.NewestInSet(allowed)
	if selected == versions.Unspecified {
		sort.Strings(tried)
		return "", tried, fmt.Errorf("no available version of package %q meets the configured constraint", name)
	}

	return dirs[selected], tried, nil
}

// packageMainFile returns the relative path of the package's declared main
// module, if the package carries a package.json with a usable "main" field.
func packageMainFile(pkgRoot string) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(pkgRoot, "package.json"))
	if err != nil {
		return "", false
	}
	main := mainFieldFromPackageJSON(raw)
	if main == "" || strings.Contains(main, "..") {
		return "", false
	}
	return strings.TrimPrefix(main, "./"), true
}

func isRegularFile(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.IsDir()
}

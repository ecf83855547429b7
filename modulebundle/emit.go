// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-modbundle/internal/escapingfs"
	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// AssetNamer produces the output-relative filename for a side asset emitted
// by the module with the given identity. ext includes the leading dot.
type AssetNamer func(source moduleaddrs.ModuleIdentity, content []byte, ext string) string

// ContentHashAssetNamer names an asset purely by a fingerprint of its
// content, so identical content always lands at the same filename and
// changed content never overwrites a name a stale HTML page may still be
// referencing.
func ContentHashAssetNamer(_ moduleaddrs.ModuleIdentity, content []byte, ext string) string {
	return contentHash(content) + ext
}

// DevelopmentAssetNamer keeps the emitting file's basename in the asset
// filename ahead of the content fingerprint, which makes output directories
// legible during development at the cost of longer names.
func DevelopmentAssetNamer(source moduleaddrs.ModuleIdentity, content []byte, ext string) string {
	base := strings.TrimSuffix(filepath.Base(source.Path()), source.Ext())
	return base + "." + contentHash(content) + ext
}

// contentHash returns the stable fingerprint used for [contenthash]
// substitution and asset naming: a truncated hex SHA-256 of the content.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:8])
}

// EmitterConfig is the configuration for constructing an [Emitter].
type EmitterConfig struct {
	// TargetDir is the directory the artifacts will be written into.
	// Required, and must be an absolute path. Created if absent.
	TargetDir string

	// ProjectRoot is the directory manifest keys are expressed relative
	// to. Required, and must be an absolute path.
	ProjectRoot string

	// BundleFilename is the filename template for bundles. The tokens
	// [name] and [contenthash] are substituted with the bundle name and a
	// fingerprint of the bundle content. Zero means "[name].bundle.js".
	BundleFilename string

	// Retries is how many additional attempts an artifact write gets
	// after a transient I/O failure, with doubling backoff between
	// attempts. Zero means 2; negative disables retrying.
	Retries int

	// RetryDelay is the backoff before the first retry. Zero means
	// 100 milliseconds.
	RetryDelay time.Duration
}

// Emitter writes bundles, side assets, and the build manifest into a target
// directory.
//
// Every artifact is first written to a temporary file in the target
// directory and then renamed into place, so a concurrently-running watcher
// or web server can never observe a partially-written bundle under its
// final name.
type Emitter struct {
	targetDir      string
	projectRoot    string
	bundleFilename string
	retries        int
	retryDelay     time.Duration
}

// NewEmitter constructs an [Emitter] from the given configuration,
// validating it and applying defaults for any optional field left unset.
func NewEmitter(config EmitterConfig) (*Emitter, error) {
	if config.TargetDir == "" {
		return nil, fmt.Errorf("emitter requires a target directory")
	}
	if !filepath.IsAbs(config.TargetDir) {
		return nil, fmt.Errorf("target directory %q is not an absolute path", config.TargetDir)
	}
	if config.ProjectRoot == "" {
		return nil, fmt.Errorf("emitter requires a project root")
	}
	if !filepath.IsAbs(config.ProjectRoot) {
		return nil, fmt.Errorf("project root %q is not an absolute path", config.ProjectRoot)
	}
	filename := config.BundleFilename
	if filename == "" {
		filename = "[name].bundle.js"
	}
	retries := config.Retries
	if retries == 0 {
		retries = 2
	}
	if retries < 0 {
		retries = 0
	}
	delay := config.RetryDelay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	return &Emitter{
		targetDir:      filepath.Clean(config.TargetDir),
		projectRoot:    filepath.Clean(config.ProjectRoot),
		bundleFilename: filename,
		retries:        retries,
		retryDelay:     delay,
	}, nil
}

// Emit writes the given bundles and side assets into the target directory
// and then writes the manifest describing them, returning that manifest.
//
// Emission is not transactional across artifacts: a failure partway leaves
// earlier artifacts in place, but never a partial individual file, and the
// manifest is only written after every artifact it names is in place.
func (e *Emitter) Emit(ctx context.Context, bundles []*Bundle, assets []SideAsset) (Manifest, error) {
	if err := os.MkdirAll(e.targetDir, 0755); err != nil {
		return nil, &EmitError{Path: e.targetDir, Err: err}
	}

	manifest := make(Manifest)

	for _, bundle := range bundles {
		filename := e.expandBundleFilename(bundle)
		if err := e.writeArtifact(ctx, filename, bundle.Content); err != nil {
			return nil, err
		}
		manifest[e.manifestKey(bundle.Entry.Identity)] = filename
	}
	written := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if _, ok := written[asset.Filename]; !ok {
			if err := e.writeArtifact(ctx, asset.Filename, asset.Content); err != nil {
				return nil, err
			}
			written[asset.Filename] = struct{}{}
		}
		// Asset filenames are content-derived, so several sources may
		// share one output file; each still gets its own manifest entry.
		manifest[e.manifestKey(asset.Source)] = asset.Filename
	}

	encoded, err := manifest.Encode()
	if err != nil {
		return nil, &EmitError{Path: filepath.Join(e.targetDir, ManifestFilename), Err: err}
	}
	if err := e.writeArtifact(ctx, ManifestFilename, encoded); err != nil {
		return nil, err
	}

	return manifest, nil
}

// expandBundleFilename substitutes the [name] and [contenthash] tokens of
// the configured filename template for the given bundle.
func (e *Emitter) expandBundleFilename(bundle *Bundle) string {
	filename := strings.ReplaceAll(e.bundleFilename, "[name]", bundle.Name)
	filename = strings.ReplaceAll(filename, "[contenthash]", contentHash(bundle.Content))
	return filename
}

// manifestKey renders a module identity as a project-root-relative slash
// path with a leading "./", the form manifest consumers join against their
// own notion of the project root.
func (e *Emitter) manifestKey(id moduleaddrs.ModuleIdentity) string {
	rel, err := filepath.Rel(e.projectRoot, id.Path())
	if err != nil {
		return filepath.ToSlash(id.Path())
	}
	return "./" + filepath.ToSlash(rel)
}

// writeArtifact places content at the given target-relative filename via a
// temporary file and rename, retrying transient failures with doubling
// backoff up to the configured attempt budget.
func (e *Emitter) writeArtifact(ctx context.Context, filename string, content []byte) error {
	trace := buildTraceFromContext(ctx)

	finalPath := filepath.Join(e.targetDir, filename)
	if ok, err := escapingfs.TargetWithinRoot(e.targetDir, finalPath); err != nil || !ok {
		return &EmitError{
			Path: finalPath,
			Err:  fmt.Errorf("output filename %q escapes the target directory", filename),
		}
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return &EmitError{Path: finalPath, Err: err}
	}

	delay := e.retryDelay
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &CancelledError{Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err := ctx.Err(); err != nil {
			return &CancelledError{Err: err}
		}

		lastErr = e.tryWriteArtifact(finalPath, content)
		if lastErr == nil {
			if cb := trace.ArtifactWritten; cb != nil {
				cb(ctx, filename, len(content))
			}
			return nil
		}
	}
	return &EmitError{Path: finalPath, Err: lastErr}
}

func (e *Emitter) tryWriteArtifact(finalPath string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".tmp-"+filepath.Base(finalPath)+"-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import "encoding/json"

// ManifestFilename is the name the manifest is written under in the target
// directory.
const ManifestFilename = "manifest.json"

// Manifest maps project-root-relative source paths (with a leading "./")
// to the output-relative filenames they were emitted as. It covers every
// entry bundle and every side asset of a build, and each build replaces
// the manifest wholesale.
type Manifest map[string]string

// Encode renders the manifest in its on-disk JSON form, with keys sorted
// so repeated builds produce byte-identical manifests.
func (m Manifest) Encode() ([]byte, error) {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// ParseManifest decodes a manifest previously written by [Emitter.Emit].
func ParseManifest(src []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(src, &m); err != nil {
		return nil, err
	}
	return m, nil
}

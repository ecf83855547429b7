// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"fmt"
	"sort"

	graphlib "github.com/dominikbraun/graph"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// SideAsset is an output file captured during transformation, separate from
// the module body that refers to it.
type SideAsset struct {
	// Source is the module whose transformation emitted the asset.
	Source moduleaddrs.ModuleIdentity

	// Filename is the output-relative path the asset will be written to.
	// Filenames are content-derived, so two emissions with the same
	// filename are guaranteed to carry the same content.
	Filename string

	Content []byte
}

// ModuleNode is one module in the dependency graph.
//
// Nodes are created by the [Builder] when a module is first discovered and
// are immutable once the graph has been closed.
type ModuleNode struct {
	Identity moduleaddrs.ModuleIdentity

	// RawSource is the file content as read from disk, before any
	// transform ran.
	RawSource []byte

	// Body is the executable module body produced by the transform chain.
	Body []byte

	// Dependencies lists the specifier strings found in Body, in order of
	// first appearance.
	Dependencies []string

	// DependencyIdentities maps each entry of Dependencies to the identity
	// it resolved to. Populated before the node is inserted, so a node
	// reachable through the closed graph never has unresolved specifiers.
	DependencyIdentities map[string]moduleaddrs.ModuleIdentity

	// Assets are the side outputs emitted while transforming this module.
	Assets []SideAsset
}

// Entry is a named starting point for dependency discovery: the future
// bundle name paired with the specifier it starts from.
type Entry struct {
	Name      string
	Specifier string

	// Identity is the resolved identity of the entry module.
	Identity moduleaddrs.ModuleIdentity
}

// Graph is a closed dependency graph: every dependency edge of every node
// resolves to another node present in the graph, and no unresolved
// specifiers remain.
//
// A Graph is immutable and safe for concurrent reads.
type Graph struct {
	nodes   map[moduleaddrs.ModuleIdentity]*ModuleNode
	entries []Entry
	edges   graphlib.Graph[string, string]
}

func newGraph(nodes map[moduleaddrs.ModuleIdentity]*ModuleNode, entries []Entry) (*Graph, error) {
	edges := graphlib.New(graphlib.StringHash, graphlib.Directed())
	for id := range nodes {
		if err := edges.AddVertex(id.Path()); err != nil {
			return nil, fmt.Errorf("failed to index module %s: %w", id, err)
		}
	}
	for id, node := range nodes {
		for _, spec := range node.Dependencies {
			depID, ok := node.DependencyIdentities[spec]
			if !ok {
				// Should not get here: the builder only inserts nodes
				// once all of their specifiers have resolved.
				return nil, fmt.Errorf("module %s has unresolved specifier %q", id, spec)
			}
			if _, exists := nodes[depID]; !exists {
				return nil, fmt.Errorf("module %s depends on %s which is not in the graph", id, depID)
			}
			if id == depID {
				// A self-import contributes nothing to ordering and the
				// backing graph rejects self-referential edges.
				continue
			}
			err := edges.AddEdge(id.Path(), depID.Path())
			if err != nil && err != graphlib.ErrEdgeAlreadyExists {
				return nil, fmt.Errorf("failed to record edge %s -> %s: %w", id, depID, err)
			}
		}
	}
	return &Graph{nodes: nodes, entries: entries, edges: edges}, nil
}

// Len returns the number of modules in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Entries returns the entry points the graph was built from, in the order
// they were added.
func (g *Graph) Entries() []Entry {
	ret := make([]Entry, len(g.entries))
	copy(ret, g.entries)
	return ret
}

// Node returns the module with the given identity, or nil if the graph
// doesn't contain it.
func (g *Graph) Node(id moduleaddrs.ModuleIdentity) *ModuleNode {
	return g.nodes[id]
}

// ModuleIdentities returns the identities of every module in the graph,
// sorted by path for determinism.
func (g *Graph) ModuleIdentities() []moduleaddrs.ModuleIdentity {
	ret := make([]moduleaddrs.ModuleIdentity, 0, len(g.nodes))
	for id := range g.nodes {
		ret = append(ret, id)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Path() < ret[j].Path()
	})
	return ret
}

// SideAssets returns every side asset captured in the graph, ordered by
// emitting module path and then filename.
//
// Two distinct sources may emit assets with the same filename when their
// content is identical; both records are returned, because each source
// needs its own manifest entry even though only one output file results.
func (g *Graph) SideAssets() []SideAsset {
	var all []SideAsset
	for _, id := range g.ModuleIdentities() {
		all = append(all, g.nodes[id].Assets...)
	}
	type assetKey struct {
		source   moduleaddrs.ModuleIdentity
		filename string
	}
	seen := make(map[assetKey]struct{}, len(all))
	ret := all[:0]
	for _, asset := range all {
		key := assetKey{source: asset.Source, filename: asset.Filename}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ret = append(ret, asset)
	}
	return ret
}

// reachableFrom returns the set of module paths reachable from the given
// entry identity, including the entry itself.
func (g *Graph) reachableFrom(entry moduleaddrs.ModuleIdentity) (map[string]struct{}, error) {
	reached := make(map[string]struct{})
	err := graphlib.BFS(g.edges, entry.Path(), func(path string) bool {
		reached[path] = struct{}{}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk graph from %s: %w", entry, err)
	}
	return reached, nil
}

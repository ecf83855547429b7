// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	graphlib "github.com/dominikbraun/graph"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// Bundle is one assembled output artifact: an entry's full reachable module
// set serialized in a deterministic execution order.
type Bundle struct {
	// Name is the bundle name, taken from the entry point.
	Name string

	// Entry is the entry point the bundle was assembled for.
	Entry Entry

	// Modules lists the included module identities in serialization
	// order. Every module's dependencies appear earlier in the list,
	// except inside dependency cycles, where no such order exists.
	Modules []moduleaddrs.ModuleIdentity

	// Content is the serialized artifact.
	Content []byte
}

// AssemblerConfig is the configuration for constructing an [Assembler].
type AssemblerConfig struct {
	// Graph is the closed graph to assemble from. Required.
	Graph *Graph

	// Banner adds a comment identifying the bundle and a per-module
	// comment naming each module's path relative to the entry module's
	// directory. Intended for development builds.
	Banner bool
}

// Assembler partitions a closed graph into one [Bundle] per entry point.
//
// The serialized form is a lazily-invoked module registry: each module body
// is registered as a function and executed at most once, on first require.
// A module's exports object is placed into the registry cache before its
// body runs, so within a dependency cycle a module observes the partially
// initialized exports of whichever member started executing first. That is
// the whole of the cycle contract: cycles never fail assembly, but values
// read from a cyclic import during top-level execution may be missing
// bindings that are only assigned later in the other module's body.
type Assembler struct {
	graph  *Graph
	banner bool
}

// NewAssembler constructs an [Assembler] from the given configuration.
func NewAssembler(config AssemblerConfig) (*Assembler, error) {
	if config.Graph == nil {
		return nil, fmt.Errorf("assembler requires a graph")
	}
	return &Assembler{
		graph:  config.Graph,
		banner: config.Banner,
	}, nil
}

// Assemble produces one bundle per entry point, in the order the entries
// were added to the builder.
//
// Assembly is deterministic: the same graph always serializes to
// byte-identical bundles.
func (a *Assembler) Assemble() ([]*Bundle, error) {
	entries := a.graph.Entries()
	ret := make([]*Bundle, 0, len(entries))
	for _, entry := range entries {
		bundle, err := a.assembleEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble bundle %q: %w", entry.Name, err)
		}
		ret = append(ret, bundle)
	}
	return ret, nil
}

func (a *Assembler) assembleEntry(entry Entry) (*Bundle, error) {
	reached, err := a.graph.reachableFrom(entry.Identity)
	if err != nil {
		return nil, err
	}

	order, err := a.executionOrder(reached)
	if err != nil {
		return nil, err
	}

	modules := make([]moduleaddrs.ModuleIdentity, len(order))
	index := make(map[string]int, len(order))
	for i, path := range order {
		id, err := moduleaddrs.NewModuleIdentity(path)
		if err != nil {
			return nil, err
		}
		modules[i] = id
		index[path] = i
	}

	content := a.serialize(entry, modules, index)

	return &Bundle{
		Name:    entry.Name,
		Entry:   entry,
		Modules: modules,
		Content: content,
	}, nil
}

// executionOrder computes the serialization order for the given reachable
// module set: dependencies before dependents wherever the subgraph is
// acyclic, with cycles condensed into components whose members are ordered
// by path.
func (a *Assembler) executionOrder(reached map[string]struct{}) ([]string, error) {
	sub := graphlib.New(graphlib.StringHash, graphlib.Directed())
	for path := range reached {
		if err := sub.AddVertex(path); err != nil {
			return nil, err
		}
	}
	type edge struct{ from, to string }
	var subEdges []edge
	for path := range reached {
		id, err := moduleaddrs.NewModuleIdentity(path)
		if err != nil {
			return nil, err
		}
		node := a.graph.Node(id)
		for _, spec := range node.Dependencies {
			dep := node.DependencyIdentities[spec].Path()
			if dep == path {
				continue
			}
			if _, ok := reached[dep]; !ok {
				// Should not get here: the reachable set is closed.
				return nil, fmt.Errorf("module %s depends on unreachable %s", path, dep)
			}
			err := sub.AddEdge(path, dep)
			if err != nil && err != graphlib.ErrEdgeAlreadyExists {
				return nil, err
			}
			if err == nil {
				subEdges = append(subEdges, edge{from: path, to: dep})
			}
		}
	}

	// Edges point from dependent to dependency, so the topological order
	// puts dependents first and we serialize in reverse.
	sorted, err := graphlib.StableTopologicalSort(sub, func(x, y string) bool {
		return x < y
	})
	if err == nil {
		reverse(sorted)
		return sorted, nil
	}

	// The subgraph has at least one cycle: condense each strongly
	// connected component to a single vertex, order the (acyclic)
	// condensation, and order members within a component by path.
	sccs, err := graphlib.StronglyConnectedComponents(sub)
	if err != nil {
		return nil, err
	}
	for _, comp := range sccs {
		sort.Strings(comp)
	}
	sort.Slice(sccs, func(i, j int) bool {
		return sccs[i][0] < sccs[j][0]
	})
	compOf := make(map[string]int)
	for i, comp := range sccs {
		for _, path := range comp {
			compOf[path] = i
		}
	}

	condensed := graphlib.New(graphlib.IntHash, graphlib.Directed())
	for i := range sccs {
		if err := condensed.AddVertex(i); err != nil {
			return nil, err
		}
	}
	for _, e := range subEdges {
		from, to := compOf[e.from], compOf[e.to]
		if from == to {
			continue
		}
		err := condensed.AddEdge(from, to)
		if err != nil && err != graphlib.ErrEdgeAlreadyExists {
			return nil, err
		}
	}

	compOrder, err := graphlib.StableTopologicalSort(condensed, func(x, y int) bool {
		return x < y
	})
	if err != nil {
		// Should not get here: a condensation graph is acyclic by
		// construction.
		return nil, fmt.Errorf("cycle condensation failed: %w", err)
	}

	var ret []string
	for i := len(compOrder) - 1; i >= 0; i-- {
		ret = append(ret, sccs[compOrder[i]]...)
	}
	return ret, nil
}

// serialize renders the module registry artifact. Module IDs are the dense
// indexes of the serialization order, and each module definition carries
// its own specifier-to-ID table so bodies can keep their specifiers
// verbatim.
func (a *Assembler) serialize(entry Entry, modules []moduleaddrs.ModuleIdentity, index map[string]int) []byte {
	var buf bytes.Buffer

	if a.banner {
		fmt.Fprintf(&buf, "/*! modbundle bundle %q */\n", entry.Name)
	}

	buf.WriteString("(function (modules) {\n")
	buf.WriteString("  var cache = {};\n")
	buf.WriteString("  function load(id) {\n")
	buf.WriteString("    if (cache[id]) {\n")
	buf.WriteString("      return cache[id].exports;\n")
	buf.WriteString("    }\n")
	// The cache entry is created before the body runs; this line is what
	// makes dependency cycles terminate.
	buf.WriteString("    var module = cache[id] = { exports: {} };\n")
	buf.WriteString("    var definition = modules[id];\n")
	buf.WriteString("    definition[0].call(module.exports, function (specifier) {\n")
	buf.WriteString("      return load(definition[1][specifier]);\n")
	buf.WriteString("    }, module, module.exports);\n")
	buf.WriteString("    return module.exports;\n")
	buf.WriteString("  }\n")
	fmt.Fprintf(&buf, "  load(%d);\n", index[entry.Identity.Path()])
	buf.WriteString("})({\n")

	// Banner labels are relative to the entry module's directory.
	root := filepath.Dir(entry.Identity.Path())
	for i, id := range modules {
		node := a.graph.Node(id)
		if a.banner {
			label := id.Path()
			if rel, err := filepath.Rel(root, label); err == nil {
				label = filepath.ToSlash(rel)
			}
			fmt.Fprintf(&buf, "  /* %s */\n", label)
		}
		fmt.Fprintf(&buf, "  %d: [function (require, module, exports) {\n", i)
		buf.Write(node.Body)
		if len(node.Body) > 0 && node.Body[len(node.Body)-1] != '\n' {
			buf.WriteByte('\n')
		}
		buf.WriteString("  }, {")
		for j, spec := range node.Dependencies {
			if j > 0 {
				buf.WriteString(", ")
			}
			depPath := node.DependencyIdentities[spec].Path()
			fmt.Fprintf(&buf, "%s: %d", strconv.Quote(spec), index[depPath])
		}
		buf.WriteString("}],\n")
	}

	buf.WriteString("});\n")
	return buf.Bytes()
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

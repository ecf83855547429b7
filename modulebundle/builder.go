// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modulebundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-modbundle/moduleaddrs"
)

// BuilderConfig is the configuration for constructing a [Builder].
type BuilderConfig struct {
	// Resolver maps the specifiers discovered in module bodies onto
	// module identities. Required.
	Resolver *moduleaddrs.Resolver

	// Rules selects the transform chain for each discovered file. May be
	// nil, in which case only script and JSON files can become modules.
	Rules *RuleSet

	// Parallelism bounds how many already-discovered modules may be read
	// and transformed concurrently. Zero means the number of CPUs.
	Parallelism int

	// ModuleTimeout bounds the total time spent reading and transforming
	// any single module. Zero means 30 seconds.
	ModuleTimeout time.Duration

	// AssetNamer produces the output-relative filename for a side asset
	// from the emitting module, the asset content, and its filename
	// extension. The name must be stable for given content so repeated
	// builds emit identical manifests. Zero means [ContentHashAssetNamer].
	AssetNamer AssetNamer
}

// Builder deals with the process of discovering the dependency graph.
//
// Entry modules are added one at a time with [Builder.AddEntry], each of
// which drains the discovery frontier before returning, and then
// [Builder.Close] produces the closed [Graph]. Once any AddEntry call has
// returned an error the builder is poisoned: subsequent calls return the
// same error, because a partially-discovered graph must never be emitted.
//
// The methods of Builder are safe for concurrent use, though discovery of
// independent modules is already parallel internally so there is rarely a
// reason to call them concurrently.
type Builder struct {
	resolver      *moduleaddrs.Resolver
	rules         *RuleSet
	parallelism   int
	moduleTimeout time.Duration
	assetNamer    AssetNamer

	mu sync.Mutex

	// nodes holds every fully-processed module. scheduled additionally
	// contains identities whose processing is queued or in flight, and is
	// the memo table that makes a module reachable via several import
	// paths get processed exactly once.
	nodes     map[moduleaddrs.ModuleIdentity]*ModuleNode
	scheduled map[moduleaddrs.ModuleIdentity]struct{}

	entries []Entry
	closed  bool
	err     error
}

// NewBuilder constructs a [Builder] from the given configuration,
// validating it and applying defaults for any optional field left unset.
func NewBuilder(config BuilderConfig) (*Builder, error) {
	if config.Resolver == nil {
		return nil, fmt.Errorf("builder requires a resolver")
	}
	parallelism := config.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	timeout := config.ModuleTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	namer := config.AssetNamer
	if namer == nil {
		namer = ContentHashAssetNamer
	}
	return &Builder{
		resolver:      config.Resolver,
		rules:         config.Rules,
		parallelism:   parallelism,
		moduleTimeout: timeout,
		assetNamer:    namer,
		nodes:         make(map[moduleaddrs.ModuleIdentity]*ModuleNode),
		scheduled:     make(map[moduleaddrs.ModuleIdentity]struct{}),
	}, nil
}

// AddEntry resolves the given entry specifier against the project root and
// incorporates the entry module and everything reachable from it into the
// graph under construction.
//
// The returned error, if any, is a [GraphError] identifying the module and
// import chain that failed, or a [CancelledError] if the given context was
// cancelled before discovery completed.
func (b *Builder) AddEntry(ctx context.Context, name string, specifier string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		// This is always a bug in the caller, which should discard a
		// builder as soon as it has been closed.
		panic("AddEntry on closed modulebundle.Builder")
	}
	if b.err != nil {
		return b.err
	}

	id, err := b.resolver.ResolveString(specifier, b.resolver.ProjectRoot())
	if err != nil {
		b.err = &GraphError{ImportChain: []string{specifier}, Err: err}
		return b.err
	}
	b.entries = append(b.entries, Entry{Name: name, Specifier: specifier, Identity: id})

	if err := b.resolvePending(ctx, workItem{id: id, chain: []string{specifier}}); err != nil {
		b.err = err
		return err
	}
	return nil
}

// Close verifies that no unresolved specifiers remain and returns the
// closed graph.
//
// After calling Close the receiving builder becomes invalid and must not
// be used any further.
func (b *Builder) Close() (*Graph, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("Close on already-closed modulebundle.Builder")
	}
	b.closed = true
	if b.err != nil {
		return nil, b.err
	}
	return newGraph(b.nodes, b.entries)
}

type workItem struct {
	id moduleaddrs.ModuleIdentity

	// chain is the sequence of specifiers followed from the entry point
	// to reach this module, entry specifier first.
	chain []string
}

type workResult struct {
	item workItem
	node *ModuleNode
	err  error
}

// resolvePending drains the discovery frontier starting from the given
// item. Frontier modules are processed concurrently by up to
// b.parallelism workers; the coordinating goroutine is the only writer of
// the memo table, which makes its check-then-insert steps atomic.
//
// Expects b.mu to be held by the caller.
func (b *Builder) resolvePending(ctx context.Context, first workItem) error {
	trace := buildTraceFromContext(ctx)

	if _, ok := b.scheduled[first.id]; ok {
		if cb := trace.ModuleAlready; cb != nil {
			cb(ctx, first.id)
		}
		return nil
	}
	b.scheduled[first.id] = struct{}{}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := []workItem{first}
	results := make(chan workResult)
	inFlight := 0
	var firstErr error

	for len(queue) > 0 || inFlight > 0 {
		for firstErr == nil && len(queue) > 0 && inFlight < b.parallelism {
			// The frontier is consumed in LIFO order; discovery order
			// across branches is not significant.
			item := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			inFlight++
			go func() {
				results <- b.processModule(wctx, item)
			}()
		}
		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				// Stop scheduling new work and interrupt what's running.
				cancel()
				queue = nil
			}
			continue
		}
		if firstErr != nil {
			continue
		}

		b.nodes[res.item.id] = res.node
		for _, spec := range res.node.Dependencies {
			depID := res.node.DependencyIdentities[spec]
			if _, ok := b.scheduled[depID]; ok {
				if cb := trace.ModuleAlready; cb != nil {
					cb(ctx, depID)
				}
				continue
			}
			b.scheduled[depID] = struct{}{}
			chain := make([]string, 0, len(res.item.chain)+1)
			chain = append(chain, res.item.chain...)
			chain = append(chain, spec)
			queue = append(queue, workItem{id: depID, chain: chain})
		}
	}

	if firstErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(firstErr, ctxErr) {
			return &CancelledError{Err: ctxErr}
		}
		return firstErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CancelledError{Err: ctxErr}
	}
	return nil
}

// processModule reads, transforms, and resolves the dependencies of a
// single module. It runs on a worker goroutine and must not touch any
// builder state guarded by b.mu other than immutable configuration.
func (b *Builder) processModule(ctx context.Context, item workItem) workResult {
	trace := buildTraceFromContext(ctx)
	mctx := ctx
	if cb := trace.ModuleStart; cb != nil {
		if c := cb(ctx, item.id); c != nil {
			mctx = c
		}
	}

	node, err := b.buildNode(mctx, item)
	if err != nil {
		if cb := trace.ModuleFailure; cb != nil {
			cb(mctx, item.id, err)
		}
		return workResult{item: item, err: err}
	}
	if cb := trace.ModuleSuccess; cb != nil {
		cb(mctx, item.id)
	}
	return workResult{item: item, node: node}
}

func (b *Builder) buildNode(ctx context.Context, item workItem) (*ModuleNode, error) {
	trace := buildTraceFromContext(ctx)

	tctx, cancel := context.WithTimeout(ctx, b.moduleTimeout)
	defer cancel()

	raw, err := os.ReadFile(item.id.Path())
	if err != nil {
		return nil, &GraphError{
			ImportChain: item.chain,
			Err:         fmt.Errorf("failed to read module: %w", err),
		}
	}

	node := &ModuleNode{
		Identity:  item.id,
		RawSource: raw,
	}

	emitAsset := func(content []byte, ext string) (string, error) {
		name := b.assetNamer(item.id, content, ext)
		node.Assets = append(node.Assets, SideAsset{
			Source:   item.id,
			Filename: name,
			Content:  append([]byte(nil), content...),
		})
		if cb := trace.AssetEmitted; cb != nil {
			cb(ctx, item.id, name)
		}
		return name, nil
	}

	var body []byte
	if chain := b.rules.TransformsFor(item.id.Path()); len(chain) > 0 {
		body, err = runChain(tctx, item.id, raw, chain, emitAsset)
	} else {
		body, err = defaultModuleBody(item.id, raw)
	}
	if tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		// The per-module budget expired; whatever error the transform
		// surfaced while being interrupted is secondary to that.
		err = &TimeoutError{Path: item.id.Path(), Budget: b.moduleTimeout}
	}
	if err != nil {
		return nil, b.wrapGraphErr(item.chain, err)
	}

	node.Body = body
	node.Dependencies = scanDependencies(body)
	node.DependencyIdentities = make(map[string]moduleaddrs.ModuleIdentity, len(node.Dependencies))
	for _, spec := range node.Dependencies {
		depID, err := b.resolver.ResolveString(spec, item.id.Dir())
		if err != nil {
			chain := make([]string, 0, len(item.chain)+1)
			chain = append(chain, item.chain...)
			chain = append(chain, spec)
			return nil, &GraphError{ImportChain: chain, Err: err}
		}
		node.DependencyIdentities[spec] = depID
	}

	return node, nil
}

// wrapGraphErr wraps a module processing failure in a [GraphError], except
// for context cancellation, which is left bare so the coordinator can
// recognize it as an aborted build rather than a failed module.
func (b *Builder) wrapGraphErr(chain []string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &GraphError{ImportChain: chain, Err: err}
}

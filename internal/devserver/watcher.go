// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatcherConfig is the configuration for constructing a [Watcher].
type WatcherConfig struct {
	// Root is the project directory to watch, recursively. Required.
	Root string

	// IgnoreDirs lists directory basenames to skip, typically the output
	// directory and the package directory. Hidden directories are always
	// skipped.
	IgnoreDirs []string

	// Debounce is how long to wait after the last filesystem event before
	// reporting a change batch, so that editors writing several files in
	// quick succession trigger one rebuild. Zero means 200 milliseconds.
	Debounce time.Duration

	// OnChange receives each debounced batch of changed paths, sorted and
	// deduplicated. Required.
	OnChange func(ctx context.Context, paths []string)

	Logger zerolog.Logger
}

// Watcher watches a project tree and reports debounced batches of changed
// files.
type Watcher struct {
	root     string
	ignore   map[string]struct{}
	debounce time.Duration
	onChange func(ctx context.Context, paths []string)
	logger   zerolog.Logger

	fsw *fsnotify.Watcher
}

// NewWatcher constructs a [Watcher] and registers the project tree with
// the operating system's file notification facility.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     config.Root,
		ignore:   make(map[string]struct{}, len(config.IgnoreDirs)),
		debounce: config.Debounce,
		onChange: config.OnChange,
		logger:   config.Logger,
		fsw:      fsw,
	}
	for _, dir := range config.IgnoreDirs {
		w.ignore[dir] = struct{}{}
	}
	if w.debounce == 0 {
		w.debounce = 200 * time.Millisecond
	}

	if err := w.addTree(config.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying filesystem watches. After Close, Run
// returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers change batches until the context is cancelled or the
// watcher is closed. It blocks, so it normally runs on its own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	var pending map[string]struct{}
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// A newly created directory needs its own watch before
				// anything inside it can be seen.
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
			}
			if pending == nil {
				pending = make(map[string]struct{})
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			pending = nil
			timer = nil
			timerC = nil

			w.logger.Debug().Strs("paths", paths).Msg("change batch")
			w.onChange(ctx, paths)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// addTree registers a directory and everything below it, skipping ignored
// and hidden directories. Registering a file path is a no-op.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root {
			if _, ok := w.ignore[base]; ok {
				return filepath.SkipDir
			}
			if strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether a path lies under an ignored or hidden directory.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == "." || seg == ".." {
			continue
		}
		if _, ok := w.ignore[seg]; ok {
			return true
		}
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

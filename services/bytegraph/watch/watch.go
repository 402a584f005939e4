// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-analyzes a class directory whenever its class files
// change.
//
// Changes are debounced, then every class file is re-hashed with xxhash.
// A batch of events that leaves every hash unchanged (a touch, an
// identical rebuild) triggers no analysis.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/bytegraph/services/bytegraph/batch"
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

// DefaultDebounce is the quiet period after the last event before a rescan.
const DefaultDebounce = 250 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Root is the class directory to watch.
	Root string

	Resolver    *input.Resolver
	Coordinator *batch.Coordinator

	// Store, when set, receives a snapshot after every analysis and is
	// consulted at startup to skip an analysis of unchanged files.
	Store *snapshot.Store

	// Label is attached to saved snapshots.
	Label string

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Update reports one analysis, or one skipped analysis, of the root.
type Update struct {
	// Initial is set for the startup analysis.
	Initial bool

	// Changed lists files that are new or whose content changed.
	Changed []string

	// Removed lists files that disappeared.
	Removed []string

	// Result is nil when the startup analysis was skipped because the
	// latest snapshot already matches every file.
	Result *batch.Result

	// AnalysisID is the saved or reused snapshot ID, if any.
	AnalysisID string

	// Diff compares this analysis with the previous one. Nil for the
	// first analysis of a run that found no earlier snapshot.
	Diff *snapshot.Diff
}

// Watcher watches one class directory.
//
// Thread Safety: Run must not be called concurrently.
type Watcher struct {
	cfg    Config
	hashes map[string]uint64

	last   *snapshot.Analysis
	lastID string
}

// New creates a watcher. Root is secured through the resolver.
func New(cfg Config) (*Watcher, error) {
	if cfg.Resolver == nil || cfg.Coordinator == nil {
		return nil, errors.New("watch: resolver and coordinator are required")
	}
	root, err := cfg.Resolver.Secure(cfg.Root)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{cfg: cfg, hashes: map[string]uint64{}}, nil
}

// Root returns the secured root directory.
func (w *Watcher) Root() string {
	return w.cfg.Root
}

// Run analyzes the root, then re-analyzes it after every effective change
// until ctx is cancelled. onUpdate runs on the calling goroutine.
//
// Outputs:
//
//	error - nil on cancellation; otherwise a setup or analysis failure.
func (w *Watcher) Run(ctx context.Context, onUpdate func(Update)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.cfg.Root); err != nil {
		return err
	}

	if err := w.initial(ctx, onUpdate); err != nil {
		return err
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fsw, ev.Name)
				}
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timerC = nil
			if err := w.rescan(ctx, onUpdate); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.cfg.Logger.Warn("re-analysis failed",
					slog.String("root", w.cfg.Root),
					slog.String("error", err.Error()))
			}
		}
	}
}

// initial runs the startup analysis, unless the latest snapshot of the
// root was taken from identical files.
func (w *Watcher) initial(ctx context.Context, onUpdate func(Update)) error {
	current, err := w.hashAll(ctx)
	if err != nil && !errors.Is(err, input.ErrNoClassFiles) {
		return err
	}

	if w.cfg.Store != nil {
		prev, meta, err := w.cfg.Store.LoadLatest(ctx, w.cfg.Root)
		if err == nil {
			w.last, w.lastID = prev, meta.AnalysisID
		}
		if err == nil && maps.Equal(prev.Hashes, current) {
			w.hashes = current
			w.cfg.Logger.Info("snapshot up to date, skipping analysis",
				slog.String("root", w.cfg.Root),
				slog.String("analysis_id", meta.AnalysisID))
			onUpdate(Update{Initial: true, AnalysisID: meta.AnalysisID})
			return nil
		}
	}

	update, err := w.analyze(ctx, current)
	if err != nil {
		return err
	}
	update.Initial = true
	update.Changed = slices.Sorted(maps.Keys(current))
	onUpdate(update)
	return nil
}

// rescan re-hashes every class file and re-analyzes when anything changed.
func (w *Watcher) rescan(ctx context.Context, onUpdate func(Update)) error {
	current, err := w.hashAll(ctx)
	if err != nil && !errors.Is(err, input.ErrNoClassFiles) {
		return err
	}

	changed, removed := diff(w.hashes, current)
	if len(changed) == 0 && len(removed) == 0 {
		w.cfg.Logger.Debug("no content change", slog.String("root", w.cfg.Root))
		return nil
	}

	update, err := w.analyze(ctx, current)
	if err != nil {
		return err
	}
	update.Changed = changed
	update.Removed = removed
	w.cfg.Logger.Info("re-analyzed after change",
		slog.String("root", w.cfg.Root),
		slog.Int("changed", len(changed)),
		slog.Int("removed", len(removed)))
	onUpdate(update)
	return nil
}

func (w *Watcher) analyze(ctx context.Context, current map[string]uint64) (Update, error) {
	files := slices.Sorted(maps.Keys(current))
	sources := make([]batch.Source, len(files))
	for i, f := range files {
		sources[i] = batch.Source{Path: f}
	}

	res, err := w.cfg.Coordinator.Analyze(ctx, sources)
	if err != nil {
		return Update{}, err
	}
	w.hashes = current

	next := &snapshot.Analysis{
		Root:      w.cfg.Root,
		Mode:      string(input.ModeClassDir),
		Nodes:     res.Nodes,
		Edges:     res.Edges,
		Hashes:    current,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	}
	update := Update{Result: res}
	if w.cfg.Store != nil {
		meta, err := w.cfg.Store.Save(ctx, next, w.cfg.Label)
		if err != nil {
			return Update{}, err
		}
		update.AnalysisID = meta.AnalysisID
	}
	if w.last != nil {
		update.Diff, _ = snapshot.DiffAnalyses(w.last, next, w.lastID, update.AnalysisID)
	}
	w.last, w.lastID = next, update.AnalysisID
	return update, nil
}

// hashAll hashes every class file under the root.
func (w *Watcher) hashAll(ctx context.Context) (map[string]uint64, error) {
	resolved, err := w.cfg.Resolver.Resolve(ctx, input.Request{Mode: input.ModeClassDir, Path: w.cfg.Root})
	if err != nil {
		return map[string]uint64{}, err
	}
	hashes := make(map[string]uint64, len(resolved.Files))
	for _, f := range resolved.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			// Removed between listing and reading.
			continue
		}
		hashes[f] = batch.Hash(data)
	}
	return hashes, nil
}

// relevant reports whether an event concerns a class file under the root.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Root, ev.Name)
	if err != nil {
		return false
	}
	return w.cfg.Resolver.IsClassFile(rel)
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// diff returns files new or changed in next, and files missing from it.
func diff(prev, next map[string]uint64) (changed, removed []string) {
	for path, h := range next {
		if old, ok := prev[path]; !ok || old != h {
			changed = append(changed, path)
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			removed = append(removed, path)
		}
	}
	slices.Sort(changed)
	slices.Sort(removed)
	return changed, removed
}

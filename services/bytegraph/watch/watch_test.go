// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bytegraph/services/bytegraph/batch"
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile/classfiletest"
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

func componentClass(name string) []byte {
	c := classfiletest.New("com/x/" + name).
		Annotate("Lorg/springframework/stereotype/Component;")
	c.Method(classfile.AccPublic, "run", "()V").
		Line(5).
		Op(classfile.OpReturn)
	return c.Bytes()
}

func writeClass(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, "com", "x", name+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, componentClass(name), 0o600))
	return p
}

type harness struct {
	dir     string
	watcher *Watcher
	updates chan Update
	cancel  context.CancelFunc
	done    chan error
}

func startWatcher(t *testing.T, store *snapshot.Store, setup func(dir string)) *harness {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	setup(dir)

	resolver, err := input.NewResolver([]string{dir}, nil, nil)
	require.NoError(t, err)

	w, err := New(Config{
		Root:        dir,
		Resolver:    resolver,
		Coordinator: batch.NewCoordinator(batch.WithWorkerCount(2)),
		Store:       store,
		Debounce:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{dir: dir, watcher: w, updates: make(chan Update, 8), cancel: cancel, done: make(chan error, 1)}
	go func() {
		h.done <- w.Run(ctx, func(u Update) { h.updates <- u })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return h
}

func (h *harness) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-h.updates:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func (h *harness) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case u := <-h.updates:
		t.Fatalf("unexpected update: changed=%v removed=%v", u.Changed, u.Removed)
	case <-time.After(wait):
	}
}

func TestWatcher_InitialAndChange(t *testing.T) {
	h := startWatcher(t, nil, func(dir string) { writeClass(t, dir, "Alpha") })

	first := h.next(t)
	assert.True(t, first.Initial)
	assert.Nil(t, first.Diff)
	require.NotNil(t, first.Result)
	assert.Equal(t, 1, first.Result.Succeeded)
	assert.Equal(t, 1, first.Result.Stats.Classes)

	added := writeClass(t, h.dir, "Beta")
	u := h.next(t)
	assert.False(t, u.Initial)
	assert.Equal(t, []string{added}, u.Changed)
	assert.Empty(t, u.Removed)
	assert.Equal(t, 2, u.Result.Succeeded)
	require.NotNil(t, u.Diff)
	assert.Contains(t, u.Diff.NodesAdded, "com.x.Beta")
	assert.Empty(t, u.Diff.NodesRemoved)
}

func TestWatcher_UnchangedContentSkipped(t *testing.T) {
	var path string
	h := startWatcher(t, nil, func(dir string) { path = writeClass(t, dir, "Alpha") })
	h.next(t)

	// Rewriting identical bytes fires events but leaves the hash alone.
	require.NoError(t, os.WriteFile(path, componentClass("Alpha"), 0o600))
	h.none(t, 500*time.Millisecond)
}

func TestWatcher_Removed(t *testing.T) {
	var path string
	h := startWatcher(t, nil, func(dir string) {
		path = writeClass(t, dir, "Alpha")
		writeClass(t, dir, "Beta")
	})
	h.next(t)

	require.NoError(t, os.Remove(path))
	u := h.next(t)
	assert.Equal(t, []string{path}, u.Removed)
	assert.Empty(t, u.Changed)
	assert.Equal(t, 1, u.Result.Succeeded)
	require.NotNil(t, u.Diff)
	assert.Contains(t, u.Diff.NodesRemoved, "com.x.Alpha")
}

func TestWatcher_NonClassFilesIgnored(t *testing.T) {
	h := startWatcher(t, nil, func(dir string) { writeClass(t, dir, "Alpha") })
	h.next(t)

	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "com", "x", "package-info.class"), []byte("x"), 0o600))
	h.none(t, 500*time.Millisecond)
}

func TestWatcher_SnapshotReuse(t *testing.T) {
	store, err := snapshot.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	writeClass(t, dir, "Alpha")

	run := func() Update {
		resolver, err := input.NewResolver([]string{dir}, nil, nil)
		require.NoError(t, err)
		w, err := New(Config{
			Root:        dir,
			Resolver:    resolver,
			Coordinator: batch.NewCoordinator(),
			Store:       store,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var got Update
		done := make(chan error, 1)
		go func() {
			done <- w.Run(ctx, func(u Update) {
				got = u
				cancel()
			})
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
		return got
	}

	first := run()
	require.NotNil(t, first.Result)
	require.NotEmpty(t, first.AnalysisID)

	second := run()
	assert.True(t, second.Initial)
	assert.Nil(t, second.Result)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)
}

func TestNew_RejectsOutsideRoot(t *testing.T) {
	allowed := t.TempDir()
	resolver, err := input.NewResolver([]string{allowed}, nil, nil)
	require.NoError(t, err)

	_, err = New(Config{Root: t.TempDir(), Resolver: resolver, Coordinator: batch.NewCoordinator()})
	assert.ErrorIs(t, err, input.ErrPathNotAllowed)

	_, err = New(Config{Root: allowed})
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	prev := map[string]uint64{"a": 1, "b": 2, "c": 3}
	next := map[string]uint64{"a": 1, "b": 9, "d": 4}
	changed, removed := diff(prev, next)
	assert.Equal(t, []string{"b", "d"}, changed)
	assert.Equal(t, []string{"c"}, removed)

	changed, removed = diff(next, next)
	assert.Empty(t, changed)
	assert.Empty(t, removed)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// newTestDB creates an in-memory BadgerDB for testing.
func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewStore(newTestDB(t), logger)
	require.NoError(t, err)
	return s
}

func testAnalysis(root string) *Analysis {
	return &Analysis{
		Root: root,
		Mode: "class-dir",
		Nodes: []*model.Symbol{
			{NodeType: model.NodeTypeClass, FQN: "com.x.Foo", Name: "Foo", LineNumber: model.LineUnknown,
				Attributes: map[string]any{model.AttrSpringBeanType: "service"}},
			{NodeType: model.NodeTypeMethod, FQN: "com.x.Foo.run()", Name: "run", LineNumber: 12},
		},
		Edges: []*model.Edge{
			{EdgeType: model.EdgeTypeMemberOf, Kind: model.KindMethod, FromFQN: "com.x.Foo.run()", ToFQN: "com.x.Foo", LineNumber: model.LineUnknown},
			{EdgeType: model.EdgeTypeCalls, Kind: model.KindInvokeStatic, FromFQN: "com.x.Foo.run()", ToFQN: "com.x.Util.help()", LineNumber: 13},
		},
		Hashes:    map[string]uint64{root + "/com/x/Foo.class": 42},
		Succeeded: 1,
	}
}

func TestNewStore_NilDB(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Save(ctx, testAnalysis("/srv/app/classes"), "nightly")
	require.NoError(t, err)

	assert.NotEmpty(t, meta.AnalysisID)
	assert.Equal(t, "/srv/app/classes", meta.Root)
	assert.Equal(t, RootHash("/srv/app/classes"), meta.RootHash)
	assert.Equal(t, "nightly", meta.Label)
	assert.Equal(t, model.Stats{Classes: 1, Methods: 1, Calls: 1, Edges: 2}, meta.Stats)
	assert.Equal(t, 1, meta.Files)
	assert.Equal(t, SchemaVersion, meta.SchemaVersion)
	assert.Positive(t, meta.CompressedSize)
	assert.NotEmpty(t, meta.ContentHash)

	a, loadedMeta, err := s.Load(ctx, meta.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, meta.AnalysisID, loadedMeta.AnalysisID)
	require.Len(t, a.Nodes, 2)
	require.Len(t, a.Edges, 2)
	assert.Equal(t, "service", a.Nodes[0].StringAttr(model.AttrSpringBeanType))
	assert.Equal(t, model.LineUnknown, a.Nodes[0].LineNumber)
	assert.Equal(t, model.LineNumber(13), a.Edges[1].LineNumber)
	assert.Equal(t, uint64(42), a.Hashes["/srv/app/classes/com/x/Foo.class"])
}

func TestStore_LoadLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, testAnalysis("/a"), "first")
	require.NoError(t, err)
	second, err := s.Save(ctx, testAnalysis("/a"), "second")
	require.NoError(t, err)

	_, meta, err := s.LoadLatest(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, second.AnalysisID, meta.AnalysisID)

	_, _, err = s.LoadLatest(ctx, "/unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, root := range []string{"/a", "/a", "/b"} {
		_, err := s.Save(ctx, testAnalysis(root), "")
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].CreatedAtMilli, all[i].CreatedAtMilli)
	}

	onlyA, err := s.List(ctx, "/a", 0)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)
	for _, m := range onlyA {
		assert.Equal(t, "/a", m.Root)
	}

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Save(ctx, testAnalysis("/a"), "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, meta.AnalysisID))

	_, _, err = s.Load(ctx, meta.AnalysisID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.LoadLatest(ctx, "/a")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Delete(ctx, meta.AnalysisID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_Delete_KeepsNewerLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.Save(ctx, testAnalysis("/a"), "")
	require.NoError(t, err)
	latest, err := s.Save(ctx, testAnalysis("/a"), "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, old.AnalysisID))

	_, meta, err := s.LoadLatest(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, latest.AnalysisID, meta.AnalysisID)
}

func TestStore_IntegrityCheck(t *testing.T) {
	db := newTestDB(t)
	s, err := NewStore(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	meta, err := s.Save(ctx, testAnalysis("/a"), "")
	require.NoError(t, err)

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(dataKey(meta.RootHash, meta.AnalysisID), []byte("tampered"))
	}))

	_, _, err = s.Load(ctx, meta.AnalysisID)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, testAnalysis("/a"), "")
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = s.List(ctx, "", 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	defer s.Close()

	meta, err := s.Save(context.Background(), testAnalysis("/a"), "")
	require.NoError(t, err)
	_, _, err = s.Load(context.Background(), meta.AnalysisID)
	assert.NoError(t, err)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot persists analysis results in BadgerDB.
//
// An analysis is stored as gzip-compressed JSON next to a small metadata
// record, so listings never decode the graph itself:
//
//	bytegraph:snap:{rootHash}:{analysisID}:data → gzip(JSON(Analysis))
//	bytegraph:snap:{rootHash}:{analysisID}:meta → JSON(Metadata)
//	bytegraph:snap:{rootHash}:latest            → analysisID
//	bytegraph:snap:index:{analysisID}           → rootHash
package snapshot

import (
	"bytes"
	"cmp"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// SchemaVersion is the serialization version written into Metadata.
const SchemaVersion = "1"

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

const (
	keyPrefixSnap   = "bytegraph:snap:"
	keyPrefixIndex  = "bytegraph:snap:index:"
	keySuffixData   = ":data"
	keySuffixMeta   = ":meta"
	keySuffixLatest = ":latest"
)

var (
	// ErrNotFound is returned when an analysis ID or root has no snapshot.
	ErrNotFound = errors.New("snapshot not found")

	// ErrIntegrity is returned when a stored payload does not match its
	// recorded content hash.
	ErrIntegrity = errors.New("snapshot integrity check failed")
)

// Analysis is the persisted form of one analysis run.
type Analysis struct {
	// Root is the analyzed path (class file, directory or package root).
	Root string `json:"root"`

	// Mode is the input mode that produced the analysis.
	Mode string `json:"mode"`

	Nodes []*model.Symbol `json:"nodes"`
	Edges []*model.Edge   `json:"edges"`

	// Hashes maps every analyzed file to its xxhash64 content hash.
	Hashes map[string]uint64 `json:"hashes,omitempty"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Metadata describes a stored analysis.
type Metadata struct {
	AnalysisID     string      `json:"analysis_id"`
	Root           string      `json:"root"`
	RootHash       string      `json:"root_hash"`
	Mode           string      `json:"mode"`
	Label          string      `json:"label,omitempty"`
	CreatedAtMilli int64       `json:"created_at_milli"`
	Stats          model.Stats `json:"stats"`
	Files          int         `json:"files"`
	Failed         int         `json:"failed"`
	SchemaVersion  string      `json:"schema_version"`
	CompressedSize int64       `json:"compressed_size"`

	// ContentHash is the xxhash64 of the compressed payload, hex encoded.
	ContentHash string `json:"content_hash"`
}

// Store saves and loads analyses.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	owned  bool
}

// Open opens a store in dir, or an in-memory store when dir is empty. The
// store owns the database and Close closes it.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", dir, err)
	}
	s, err := NewStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore wraps an opened BadgerDB. The caller keeps ownership of db.
//
// Inputs:
//
//	db - An opened BadgerDB instance. Must not be nil.
//	logger - Logger for diagnostic output. Nil selects slog.Default().
//
// Outputs:
//
//	*Store - The store.
//	error - Non-nil if db is nil.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Save persists an analysis and makes it the latest snapshot of its root.
//
// Description:
//
//	Serializes the analysis to JSON, gzip-compresses it, and writes payload,
//	metadata, latest pointer and reverse index in one transaction. A new
//	uuid identifies the snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	a - The analysis. Must not be nil.
//	label - Optional human-readable label.
//
// Outputs:
//
//	*Metadata - The stored metadata.
//	error - Non-nil if serialization or storage fails.
func (s *Store) Save(ctx context.Context, a *Analysis, label string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.New("analysis must not be nil")
	}

	payload, err := compress(a)
	if err != nil {
		return nil, err
	}

	rootHash := RootHash(a.Root)
	meta := &Metadata{
		AnalysisID:     uuid.NewString(),
		Root:           a.Root,
		RootHash:       rootHash,
		Mode:           a.Mode,
		Label:          label,
		CreatedAtMilli: time.Now().UnixMilli(),
		Stats:          model.Count(a.Nodes, a.Edges),
		Files:          a.Succeeded + a.Failed,
		Failed:         a.Failed,
		SchemaVersion:  SchemaVersion,
		CompressedSize: int64(len(payload)),
		ContentHash:    hashHex(payload),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	id := meta.AnalysisID
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(rootHash, id), payload); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(metaKey(rootHash, id), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set(latestKey(rootHash), []byte(id)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set(indexKey(id), []byte(rootHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("snapshot saved",
		slog.String("analysis_id", id),
		slog.String("root", a.Root),
		slog.Int("classes", meta.Stats.Classes),
		slog.Int("edges", meta.Stats.Edges),
		slog.Int64("compressed_size", meta.CompressedSize))
	return meta, nil
}

// Load returns a stored analysis by ID. Unknown IDs yield ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*Analysis, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if id == "" {
		return nil, nil, errors.New("analysis ID must not be empty")
	}
	rootHash, err := s.get(indexKey(id))
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", id, err)
	}
	return s.load(string(rootHash), id)
}

// LoadLatest returns the most recent analysis of root.
func (s *Store) LoadLatest(ctx context.Context, root string) (*Analysis, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	rootHash := RootHash(root)
	id, err := s.get(latestKey(rootHash))
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", root, err)
	}
	return s.load(rootHash, string(id))
}

// List returns metadata newest first, optionally restricted to one root.
// A limit <= 0 selects DefaultListLimit.
func (s *Store) List(ctx context.Context, root string, limit int) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	prefix := keyPrefixSnap
	if root != "" {
		prefix = keyPrefixSnap + RootHash(root) + ":"
	}

	var results []*Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}
			var meta Metadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				s.logger.Warn("skipping corrupt metadata",
					slog.String("key", key),
					slog.String("error", err.Error()))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	slices.SortStableFunc(results, func(a, b *Metadata) int {
		return cmp.Compare(b.CreatedAtMilli, a.CreatedAtMilli)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot. The latest pointer of its root is removed
// when it referred to this snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := s.get(indexKey(id))
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", id, err)
	}
	rootHash := string(raw)

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{dataKey(rootHash, id), metaKey(rootHash, id), indexKey(id)} {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}
		item, err := txn.Get(latestKey(rootHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(current) == id {
			return txn.Delete(latestKey(rootHash))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}

	s.logger.Info("snapshot deleted", slog.String("analysis_id", id))
	return nil
}

func (s *Store) load(rootHash, id string) (*Analysis, *Metadata, error) {
	var payload, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if payload, err = valueCopy(txn, dataKey(rootHash, id)); err != nil {
			return fmt.Errorf("reading data for %s: %w", id, err)
		}
		if metaJSON, err = valueCopy(txn, metaKey(rootHash, id)); err != nil {
			return fmt.Errorf("reading metadata for %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, notFound(err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", id, err)
	}
	if actual := hashHex(payload); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("%w: %s: expected %s, got %s", ErrIntegrity, id, meta.ContentHash, actual)
	}

	a, err := decompress(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return a, &meta, nil
}

func (s *Store) get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		val, err = valueCopy(txn, key)
		return err
	})
	return val, notFound(err)
}

func valueCopy(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// notFound maps badger's missing-key error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func compress(a *Analysis) ([]byte, error) {
	jsonData, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis: %w", err)
	}
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing analysis: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(payload []byte) (*Analysis, error) {
	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	var a Analysis
	if err := json.Unmarshal(jsonData, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// RootHash returns the key prefix used for an analyzed root.
func RootHash(root string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(root))
}

func hashHex(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func dataKey(rootHash, id string) []byte {
	return []byte(keyPrefixSnap + rootHash + ":" + id + keySuffixData)
}

func metaKey(rootHash, id string) []byte {
	return []byte(keyPrefixSnap + rootHash + ":" + id + keySuffixMeta)
}

func latestKey(rootHash string) []byte {
	return []byte(keyPrefixSnap + rootHash + keySuffixLatest)
}

func indexKey(id string) []byte {
	return []byte(keyPrefixIndex + id)
}

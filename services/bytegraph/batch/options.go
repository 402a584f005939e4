// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/AleutianAI/bytegraph/services/bytegraph/extract"
)

// Default coordinator configuration values.
const (
	// DefaultWorkerCount selects runtime.NumCPU() workers.
	DefaultWorkerCount = 0

	// DefaultChunkSize is the number of files per chunk in AnalyzeChunked.
	DefaultChunkSize = 1000
)

// SourceLoader reads the bytes of a source that carries no data.
type SourceLoader func(ctx context.Context, path string) ([]byte, error)

// ReadFile is the default SourceLoader.
func ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Options configures a Coordinator.
type Options struct {
	// WorkerCount is the number of files analyzed in parallel.
	// Values <= 0 select runtime.NumCPU().
	WorkerCount int

	// ChunkSize is the number of files per AnalyzeChunked batch.
	// Values <= 0 select DefaultChunkSize.
	ChunkSize int

	// Registry holds the annotation handlers. Default: extract.DefaultRegistry().
	Registry *extract.Registry

	// Logger receives per-file failures. Default: slog.Default().
	Logger *slog.Logger

	// Loader reads sources without data. Default: ReadFile.
	Loader SourceLoader
}

// DefaultOptions returns the default coordinator options.
func DefaultOptions() Options {
	return Options{
		WorkerCount: runtime.NumCPU(),
		ChunkSize:   DefaultChunkSize,
		Registry:    extract.DefaultRegistry(),
		Logger:      slog.Default(),
		Loader:      ReadFile,
	}
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Options)

// WithWorkerCount sets the number of parallel workers.
func WithWorkerCount(n int) Option {
	return func(o *Options) {
		o.WorkerCount = n
	}
}

// WithChunkSize sets the number of files per chunk.
func WithChunkSize(n int) Option {
	return func(o *Options) {
		o.ChunkSize = n
	}
}

// WithRegistry sets the annotation handler registry.
func WithRegistry(r *extract.Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithSourceLoader sets the loader for sources without data.
func WithSourceLoader(l SourceLoader) Option {
	return func(o *Options) {
		if l != nil {
			o.Loader = l
		}
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch analyzes many class files in parallel and merges their
// graph fragments.
//
// # Run States
//
// Every Analyze call, and every chunk of AnalyzeChunked, moves through
// Idle, Running, Aggregating and Complete. Files are analyzed on a bounded
// worker pool; a file that fails is recorded and counted but never stops
// the others. Cancelling the context stops submission, lets in-flight
// files finish, and returns the partial result marked Incomplete.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/bytegraph/services/bytegraph/extract"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/reshape"
)

// ErrNilRegistry is returned when the coordinator was built without a
// registry.
var ErrNilRegistry = errors.New("batch: registry must not be nil")

// State is the state of one batch run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateAggregating
	StateComplete
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateAggregating:
		return "aggregating"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Result is the merged output of Analyze.
type Result struct {
	// Nodes and Edges are the merged graph. Files appear in completion
	// order; within one file emission order is preserved.
	Nodes []*model.Symbol
	Edges []*model.Edge

	Succeeded  int
	Failed     int
	FileErrors []*FileError

	// Hashes maps the path of every analyzed file to its content hash.
	Hashes map[string]uint64

	Stats model.Stats

	// Incomplete is set when the context was cancelled before every file
	// was submitted.
	Incomplete bool

	Duration time.Duration
}

// ChunkEvent reports one finished chunk of AnalyzeChunked, or the end of
// the run when Complete is set.
type ChunkEvent struct {
	Complete        bool                   `json:"complete,omitempty"`
	ChunkIndex      int                    `json:"chunk_index"`
	Classes         []*reshape.ClassRecord `json:"classes,omitempty"`
	ProgressPercent float64                `json:"progress_percent"`
	ProcessedCount  int                    `json:"processed_count"`
	TotalCount      int                    `json:"total_count"`
	FailedCount     int                    `json:"failed_count"`
	CumulativeStats model.Stats            `json:"cumulative_stats"`
}

// Summary is the outcome of AnalyzeChunked.
type Summary struct {
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Chunks     int               `json:"chunks"`
	Stats      model.Stats       `json:"stats"`
	FileErrors []*FileError      `json:"-"`
	Hashes     map[string]uint64 `json:"-"`
	Incomplete bool              `json:"incomplete,omitempty"`
	Duration   time.Duration     `json:"duration_ns"`
}

// Coordinator fans class files out over a worker pool.
//
// Thread Safety:
//
//	Safe for concurrent use. Each call keeps its own aggregate.
type Coordinator struct {
	options Options
}

// NewCoordinator creates a coordinator.
//
// Example:
//
//	c := batch.NewCoordinator(
//	    batch.WithWorkerCount(cfg.Analysis.WorkerPoolSize),
//	    batch.WithChunkSize(cfg.Analysis.ChunkSize),
//	)
func NewCoordinator(opts ...Option) *Coordinator {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	if options.ChunkSize <= 0 {
		options.ChunkSize = DefaultChunkSize
	}
	return &Coordinator{options: options}
}

// Options returns the effective options.
func (c *Coordinator) Options() Options {
	return c.options
}

// Analyze analyzes every source and returns the merged graph.
//
// Description:
//
//	Per-file failures are logged, counted and collected in FileErrors; the
//	remaining files are still analyzed. The returned error is reserved for
//	an unusable coordinator or a context cancelled before any work started.
//
// Inputs:
//
//	ctx - Cancellation stops submission of further files.
//	sources - The class files.
//
// Outputs:
//
//	*Result - The merged graph and counters.
//	error - ErrNilRegistry or ctx.Err().
func (c *Coordinator) Analyze(ctx context.Context, sources []Source) (*Result, error) {
	if c.options.Registry == nil {
		return nil, ErrNilRegistry
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := startAnalyzeSpan(ctx, "batch.Analyze", len(sources), c.options.WorkerCount)
	defer span.End()
	start := time.Now()

	agg := newAggregate()
	incomplete := c.run(ctx, span, sources, agg)

	res := agg.result()
	setState(span, StateComplete)
	res.Incomplete = incomplete
	res.Duration = time.Since(start)

	setSpanResult(span, res.Succeeded, res.Failed, incomplete)
	batchDuration.WithLabelValues("full").Observe(res.Duration.Seconds())
	c.options.Logger.Info("batch analysis finished",
		slog.Int("files", len(sources)),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Bool("incomplete", incomplete),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// AnalyzeChunked analyzes sources in chunks of ChunkSize and emits one
// event per chunk, carrying that chunk's reshaped classes and cumulative
// counters, followed by a final event with Complete set.
//
// Description:
//
//	Only the current chunk's files are ever pending on the worker pool. An
//	error from emit stops the run and is returned with the summary so far.
//
// Inputs:
//
//	ctx - Cancellation stops after the current chunk.
//	sources - The class files.
//	emit - Receives each event on the calling goroutine.
//
// Outputs:
//
//	*Summary - Cumulative counters.
//	error - ErrNilRegistry, ctx.Err() before any work, or an emit error.
func (c *Coordinator) AnalyzeChunked(ctx context.Context, sources []Source, emit func(ChunkEvent) error) (*Summary, error) {
	if c.options.Registry == nil {
		return nil, ErrNilRegistry
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := startAnalyzeSpan(ctx, "batch.AnalyzeChunked", len(sources), c.options.WorkerCount)
	defer span.End()
	start := time.Now()

	summary := &Summary{Total: len(sources), Hashes: make(map[string]uint64)}
	size := c.options.ChunkSize
	for offset, index := 0, 0; offset < len(sources); offset, index = offset+size, index+1 {
		if ctx.Err() != nil {
			summary.Incomplete = true
			break
		}
		end := min(offset+size, len(sources))

		ev, incomplete := c.runChunk(ctx, index, sources[offset:end], summary)
		if err := emit(ev); err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("emit chunk %d: %w", index, err)
		}
		if incomplete {
			summary.Incomplete = true
			break
		}
	}

	summary.Duration = time.Since(start)
	setSpanResult(span, summary.Succeeded, summary.Failed, summary.Incomplete)
	batchDuration.WithLabelValues("chunked").Observe(summary.Duration.Seconds())

	done := ChunkEvent{
		Complete:        true,
		ChunkIndex:      summary.Chunks,
		ProgressPercent: percent(summary.Succeeded+summary.Failed, summary.Total),
		ProcessedCount:  summary.Succeeded + summary.Failed,
		TotalCount:      summary.Total,
		FailedCount:     summary.Failed,
		CumulativeStats: summary.Stats,
	}
	if err := emit(done); err != nil {
		return summary, fmt.Errorf("emit completion: %w", err)
	}

	c.options.Logger.Info("chunked analysis finished",
		slog.Int("files", summary.Total),
		slog.Int("chunks", summary.Chunks),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Bool("incomplete", summary.Incomplete))
	return summary, nil
}

// runChunk analyzes one chunk and folds it into summary.
func (c *Coordinator) runChunk(ctx context.Context, index int, sources []Source, summary *Summary) (ChunkEvent, bool) {
	ctx, span := startSpan(ctx, "batch.chunk",
		attribute.Int("chunk.index", index),
		attribute.Int("chunk.files", len(sources)),
	)
	defer span.End()

	agg := newAggregate()
	incomplete := c.run(ctx, span, sources, agg)
	res := agg.result()
	setState(span, StateComplete)

	summary.Chunks++
	summary.Succeeded += res.Succeeded
	summary.Failed += res.Failed
	summary.Stats.Add(res.Stats)
	summary.FileErrors = append(summary.FileErrors, res.FileErrors...)
	for path, h := range res.Hashes {
		summary.Hashes[path] = h
	}
	chunksTotal.Inc()
	setSpanResult(span, res.Succeeded, res.Failed, incomplete)

	processed := summary.Succeeded + summary.Failed
	return ChunkEvent{
		ChunkIndex:      index,
		Classes:         reshape.Reshape(res.Nodes, res.Edges, reshape.WithLogger(c.options.Logger)),
		ProgressPercent: percent(processed, summary.Total),
		ProcessedCount:  processed,
		TotalCount:      summary.Total,
		FailedCount:     summary.Failed,
		CumulativeStats: summary.Stats,
	}, incomplete
}

// run submits every source to a bounded pool and waits for the pool to
// drain. It reports whether submission stopped early.
func (c *Coordinator) run(ctx context.Context, span trace.Span, sources []Source, agg *aggregate) bool {
	setState(span, StateRunning)

	g := new(errgroup.Group)
	g.SetLimit(c.options.WorkerCount)

	var skipped atomic.Bool
	for _, src := range sources {
		if ctx.Err() != nil {
			skipped.Store(true)
			break
		}
		// Go may block on the limit until after cancellation.
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Store(true)
				return nil
			}
			c.analyzeOne(ctx, src, agg)
			return nil
		})
	}
	_ = g.Wait()

	setState(span, StateAggregating)
	return skipped.Load()
}

// analyzeOne analyzes one file. Failures are recorded, never returned.
func (c *Coordinator) analyzeOne(ctx context.Context, src Source, agg *aggregate) {
	data := src.Data
	if data == nil {
		var err error
		if data, err = c.options.Loader(ctx, src.Path); err != nil {
			c.fail(agg, &FileError{Source: src.Path, Err: err})
			return
		}
	}
	hash := Hash(data)

	r, err := extract.Analyze(src.Path, data, c.options.Registry, c.options.Logger)
	if err != nil {
		c.fail(agg, &FileError{Source: src.Path, Hash: hash, Err: err})
		return
	}
	agg.add(src.Path, hash, r)
	filesTotal.WithLabelValues("ok").Inc()
}

func (c *Coordinator) fail(agg *aggregate, fe *FileError) {
	agg.fail(fe)
	filesTotal.WithLabelValues("failed").Inc()
	c.options.Logger.Warn("class file analysis failed",
		slog.String("source", fe.Source),
		slog.String("error", fe.Err.Error()))
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}

// aggregate is the shared, append-only collection of one run.
type aggregate struct {
	mu         sync.Mutex
	nodes      []*model.Symbol
	edges      []*model.Edge
	fileErrors []*FileError
	hashes     map[string]uint64

	succeeded atomic.Int64
	failed    atomic.Int64
}

func newAggregate() *aggregate {
	return &aggregate{hashes: make(map[string]uint64)}
}

func (a *aggregate) add(path string, hash uint64, r *extract.Result) {
	a.mu.Lock()
	a.nodes = append(a.nodes, r.Nodes...)
	a.edges = append(a.edges, r.Edges...)
	a.hashes[path] = hash
	a.mu.Unlock()
	a.succeeded.Add(1)
}

func (a *aggregate) fail(fe *FileError) {
	a.mu.Lock()
	a.fileErrors = append(a.fileErrors, fe)
	a.mu.Unlock()
	a.failed.Add(1)
}

// result copies the aggregate out once every worker has finished.
func (a *aggregate) result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &Result{
		Nodes:      a.nodes,
		Edges:      a.edges,
		Succeeded:  int(a.succeeded.Load()),
		Failed:     int(a.failed.Load()),
		FileErrors: a.fileErrors,
		Hashes:     a.hashes,
		Stats:      model.Count(a.nodes, a.edges),
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bytegraph serves class-file analysis over HTTP.
//
// The Service resolves a request into class files, runs them through the
// batch coordinator, reshapes the merged graph into class records and,
// when asked, persists the result as a snapshot. Handlers expose it under
// /v1/bytegraph, including a Server-Sent Events variant that streams one
// event per analyzed chunk.
package bytegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/bytegraph/services/bytegraph/batch"
	"github.com/AleutianAI/bytegraph/services/bytegraph/extract"
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
	"github.com/AleutianAI/bytegraph/services/bytegraph/reshape"
	"github.com/AleutianAI/bytegraph/services/bytegraph/search"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

// Version is reported by the health endpoint.
var Version = "dev"

var (
	// ErrSnapshotsDisabled is returned when persistence is requested but no
	// snapshot store is configured.
	ErrSnapshotsDisabled = errors.New("snapshot persistence not configured")

	// ErrPersistStream is returned for a streaming request with persist set.
	ErrPersistStream = fmt.Errorf("%w: persist is not supported for streamed analyses", input.ErrInvalidRequest)
)

const tracerName = "bytegraph.service"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// WorkerCount is the per-request worker pool size. <= 0 selects the CPU count.
	WorkerCount int

	// ChunkSize is the number of files per streamed chunk. <= 0 selects 1000.
	ChunkSize int

	// AllowedRoots restricts request paths. Empty allows any path.
	AllowedRoots []string

	// Exclude lists doublestar patterns skipped in directory modes.
	// Nil selects input.DefaultExclude.
	Exclude []string

	// Registry holds the annotation handlers. Nil selects extract.DefaultRegistry().
	Registry *extract.Registry

	// Store persists analyses. Nil disables the snapshot endpoints.
	Store *snapshot.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service runs analyses for the HTTP handlers and the CLI.
//
// Thread Safety:
//
//	Safe for concurrent use. Each request runs on its own aggregate.
type Service struct {
	resolver    *input.Resolver
	coordinator *batch.Coordinator
	store       *snapshot.Store
	logger      *slog.Logger
}

// NewService creates a service.
//
// Outputs:
//
//	*Service - The service.
//	error - Non-nil if an allowed root or exclude pattern is invalid.
func NewService(cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = extract.DefaultRegistry()
	}

	resolver, err := input.NewResolver(cfg.AllowedRoots, cfg.Exclude, logger)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}

	return &Service{
		resolver: resolver,
		coordinator: batch.NewCoordinator(
			batch.WithWorkerCount(cfg.WorkerCount),
			batch.WithChunkSize(cfg.ChunkSize),
			batch.WithRegistry(registry),
			batch.WithLogger(logger),
		),
		store:  cfg.Store,
		logger: logger,
	}, nil
}

// Resolver returns the service's input resolver.
func (s *Service) Resolver() *input.Resolver {
	return s.resolver
}

// Coordinator returns the service's batch coordinator.
func (s *Service) Coordinator() *batch.Coordinator {
	return s.coordinator
}

// Store returns the snapshot store, or nil when persistence is disabled.
func (s *Service) Store() *snapshot.Store {
	return s.store
}

// Analyze resolves req, analyzes every class file and returns the reshaped
// result.
//
// Description:
//
//	Per-file failures are reported in the response, not as an error. With
//	req.Persist set the merged graph is stored and its ID returned.
//
// Outputs:
//
//	*AnalyzeResponse - The reshaped classes and counters.
//	error - An input error, ErrSnapshotsDisabled, or a coordinator or
//	  store failure.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bytegraph.Service.Analyze",
		trace.WithAttributes(
			attribute.String("request.mode", string(req.Mode)),
			attribute.Bool("request.persist", req.Persist),
		))
	defer span.End()

	if req.Persist && s.store == nil {
		return nil, ErrSnapshotsDisabled
	}

	resolved, err := s.resolver.Resolve(ctx, req.input())
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("request.files", len(resolved.Files)))

	res, err := s.coordinator.Analyze(ctx, Sources(resolved.Files))
	if err != nil {
		return nil, recordError(span, err)
	}

	resp := &AnalyzeResponse{
		Root:          resolved.Root,
		Mode:          resolved.Mode,
		Classes:       reshape.Reshape(res.Nodes, res.Edges, reshape.WithLogger(s.logger)),
		Stats:         res.Stats,
		Succeeded:     res.Succeeded,
		Failed:        res.Failed,
		Errors:        fileErrors(res.FileErrors),
		Incomplete:    res.Incomplete,
		DurationMilli: res.Duration.Milliseconds(),
	}

	if req.Persist {
		meta, err := s.store.Save(ctx, &snapshot.Analysis{
			Root:      resolved.Root,
			Mode:      string(resolved.Mode),
			Nodes:     res.Nodes,
			Edges:     res.Edges,
			Hashes:    res.Hashes,
			Succeeded: res.Succeeded,
			Failed:    res.Failed,
		}, req.Label)
		if err != nil {
			return nil, recordError(span, err)
		}
		resp.AnalysisID = meta.AnalysisID
	}
	return resp, nil
}

// AnalyzeStream analyzes an already resolved request chunk by chunk.
// Resolve the request with Resolver first so input errors can be reported
// before the stream starts.
func (s *Service) AnalyzeStream(ctx context.Context, resolved *input.Resolved, emit func(batch.ChunkEvent) error) (*CompleteEvent, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bytegraph.Service.AnalyzeStream",
		trace.WithAttributes(
			attribute.String("request.mode", string(resolved.Mode)),
			attribute.Int("request.files", len(resolved.Files)),
		))
	defer span.End()

	summary, err := s.coordinator.AnalyzeChunked(ctx, Sources(resolved.Files), emit)
	if err != nil {
		return nil, recordError(span, err)
	}
	return &CompleteEvent{
		Root:          resolved.Root,
		Total:         summary.Total,
		Succeeded:     summary.Succeeded,
		Failed:        summary.Failed,
		Chunks:        summary.Chunks,
		Stats:         summary.Stats,
		Errors:        fileErrors(summary.FileErrors),
		Incomplete:    summary.Incomplete,
		DurationMilli: summary.Duration.Milliseconds(),
	}, nil
}

// LoadAnalysis returns a stored analysis reshaped into class records.
func (s *Service) LoadAnalysis(ctx context.Context, id string) (*AnalysisResponse, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}
	a, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AnalysisResponse{
		Metadata: meta,
		Classes:  reshape.Reshape(a.Nodes, a.Edges, reshape.WithLogger(s.logger)),
	}, nil
}

// DiffAnalyses compares two snapshots.
func (s *Service) DiffAnalyses(ctx context.Context, baseID, targetID string) (*snapshot.Diff, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}
	return s.store.Diff(ctx, baseID, targetID)
}

// SearchAnalysis ranks the symbols of a snapshot against q.
func (s *Service) SearchAnalysis(ctx context.Context, id string, q search.Query) ([]search.Match, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}
	a, _, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return search.NewIndex(a.Nodes).Search(ctx, q)
}

// Sources converts file paths into lazily loaded batch sources.
func Sources(files []string) []batch.Source {
	out := make([]batch.Source, len(files))
	for i, f := range files {
		out[i] = batch.Source{Path: f}
	}
	return out
}

func fileErrors(errs []*batch.FileError) []FileErrorInfo {
	if len(errs) == 0 {
		return nil
	}
	out := make([]FileErrorInfo, len(errs))
	for i, fe := range errs {
		out[i] = FileErrorInfo{Source: fe.Source, Error: fe.Err.Error()}
	}
	return out
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}


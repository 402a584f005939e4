// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bytegraph

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/bytegraph/services/bytegraph/batch"
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/search"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

var errRateLimited = errors.New("analyze rate limit exceeded")

// Handlers serves the /v1/bytegraph endpoints.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc     *Service
	limiter *rate.Limiter
}

// HandlersOption configures Handlers.
type HandlersOption func(*Handlers)

// WithAnalyzeRateLimit limits analyze requests to rps per second with the
// given burst. rps <= 0 disables the limit.
func WithAnalyzeRateLimit(rps float64, burst int) HandlersOption {
	return func(h *Handlers) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc *Service, opts ...HandlersOption) *Handlers {
	h := &Handlers{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RateLimit rejects analyze requests above the configured rate with
// 429 RATE_LIMITED.
func (h *Handlers) RateLimit(c *gin.Context) {
	if h.limiter == nil || h.limiter.Allow() {
		c.Next()
		return
	}
	requestID := getOrCreateRequestID(c)
	slog.Warn("Analyze request rejected: rate limit exceeded",
		slog.String("request_id", requestID),
		slog.String("path", c.Request.URL.Path))
	c.Header("Retry-After", "1")
	writeError(c, requestID, http.StatusTooManyRequests, CodeRateLimited, errRateLimited)
	c.Abort()
}

// HandleAnalyze handles POST /v1/bytegraph/analyze.
//
// Description:
//
//	Resolves the request, analyzes every class file and returns the
//	reshaped classes. Files that fail are listed in errors; they never fail
//	the request.
//
// Request Body:
//
//	AnalyzeRequest
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: INVALID_REQUEST
//	403 Forbidden: PATH_NOT_ALLOWED
//	404 Not Found: NO_CLASS_FILES
//	500 Internal Server Error: ANALYSIS_FAILED
//	503 Service Unavailable: SNAPSHOTS_DISABLED (persist requested)
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, requestID, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}

	resp, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		logger.Warn("analysis failed",
			slog.String("mode", string(req.Mode)),
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
		writeServiceError(c, requestID, err)
		return
	}

	logger.Info("analysis complete",
		slog.String("root", resp.Root),
		slog.Int("classes", len(resp.Classes)),
		slog.Int("succeeded", resp.Succeeded),
		slog.Int("failed", resp.Failed),
		slog.Int64("duration_ms", resp.DurationMilli))
	c.JSON(http.StatusOK, resp)
}

// HandleAnalyzeStream handles POST /v1/bytegraph/analyze/stream.
//
// Description:
//
//	Validates the request like HandleAnalyze, then streams Server-Sent
//	Events: one "progress" event per chunk (batch.ChunkEvent), then a
//	"complete" event (CompleteEvent). A failure after the stream started
//	is sent as an "error" event (ErrorResponse). A client disconnect
//	stops the analysis after the current chunk.
//
// Request Body:
//
//	AnalyzeRequest (persist must be false)
//
// Response:
//
//	200 OK: text/event-stream
//	4xx: ErrorResponse, before the stream starts
func (h *Handlers) HandleAnalyzeStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyzeStream")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, requestID, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	if req.Persist {
		writeServiceError(c, requestID, ErrPersistStream)
		return
	}

	ctx := c.Request.Context()
	resolved, err := h.svc.Resolver().Resolve(ctx, req.input())
	if err != nil {
		writeServiceError(c, requestID, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	start := time.Now()
	complete, err := h.svc.AnalyzeStream(ctx, resolved, func(ev batch.ChunkEvent) error {
		if ev.Complete {
			return nil
		}
		c.SSEvent("progress", ev)
		c.Writer.Flush()
		return ctx.Err()
	})
	if err != nil {
		logger.Warn("streamed analysis stopped",
			slog.String("root", resolved.Root),
			slog.String("error", err.Error()))
		c.SSEvent("error", ErrorResponse{Error: err.Error(), Code: CodeAnalysisFailed, RequestID: requestID})
		c.Writer.Flush()
		return
	}

	c.SSEvent("complete", complete)
	c.Writer.Flush()
	logger.Info("streamed analysis complete",
		slog.String("root", resolved.Root),
		slog.Int("files", complete.Total),
		slog.Int("chunks", complete.Chunks),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}

// HandleListAnalyses handles GET /v1/bytegraph/analyses.
//
// Query Parameters:
//
//	root: Optional filter by analyzed root
//	limit: Maximum results, default 100
//
// Response:
//
//	200 OK: ListAnalysesResponse
//	503 Service Unavailable: SNAPSHOTS_DISABLED
func (h *Handlers) HandleListAnalyses(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	store := h.svc.Store()
	if store == nil {
		writeServiceError(c, requestID, ErrSnapshotsDisabled)
		return
	}

	limit := snapshot.DefaultListLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := store.List(c.Request.Context(), c.Query("root"), limit)
	if err != nil {
		writeServiceError(c, requestID, err)
		return
	}
	if list == nil {
		list = []*snapshot.Metadata{}
	}
	c.JSON(http.StatusOK, ListAnalysesResponse{Analyses: list})
}

// HandleGetAnalysis handles GET /v1/bytegraph/analyses/:id.
//
// Response:
//
//	200 OK: AnalysisResponse
//	404 Not Found: NOT_FOUND
//	503 Service Unavailable: SNAPSHOTS_DISABLED
func (h *Handlers) HandleGetAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	resp, err := h.svc.LoadAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDiffAnalysis handles GET /v1/bytegraph/analyses/:id/diff?base=<id>.
//
// Description:
//
//	Compares snapshot :id against the base snapshot.
//
// Response:
//
//	200 OK: snapshot.Diff
//	400 Bad Request: INVALID_REQUEST (base missing)
//	404 Not Found: NOT_FOUND
//	503 Service Unavailable: SNAPSHOTS_DISABLED
func (h *Handlers) HandleDiffAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	base := c.Query("base")
	if base == "" {
		writeServiceError(c, requestID, fmt.Errorf("%w: base query parameter is required", input.ErrInvalidRequest))
		return
	}
	diff, err := h.svc.DiffAnalyses(c.Request.Context(), base, c.Param("id"))
	if err != nil {
		writeServiceError(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, diff)
}

// HandleSearchAnalysis handles GET /v1/bytegraph/analyses/:id/symbols.
//
// Query Parameters:
//
//	q - Name query (required).
//	type - class, interface, enum or method (optional).
//	limit - Maximum matches (optional, default search.DefaultLimit).
//
// Response:
//
//	200 OK: SearchResponse
//	400 Bad Request: INVALID_REQUEST
//	404 Not Found: NOT_FOUND
//	503 Service Unavailable: SNAPSHOTS_DISABLED
func (h *Handlers) HandleSearchAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	q := search.Query{Text: c.Query("q"), NodeType: model.NodeType(c.Query("type"))}
	if q.Text == "" {
		writeServiceError(c, requestID, fmt.Errorf("%w: q query parameter is required", input.ErrInvalidRequest))
		return
	}
	if q.NodeType != "" && !q.NodeType.IsClassLike() && q.NodeType != model.NodeTypeMethod {
		writeServiceError(c, requestID, fmt.Errorf("%w: unknown type %q", input.ErrInvalidRequest, q.NodeType))
		return
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}

	matches, err := h.svc.SearchAnalysis(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		writeServiceError(c, requestID, err)
		return
	}
	if matches == nil {
		matches = []search.Match{}
	}
	c.JSON(http.StatusOK, SearchResponse{Query: q.Text, Matches: matches})
}

// HandleDeleteAnalysis handles DELETE /v1/bytegraph/analyses/:id.
//
// Response:
//
//	200 OK: {"deleted": true}
//	404 Not Found: NOT_FOUND
//	503 Service Unavailable: SNAPSHOTS_DISABLED
func (h *Handlers) HandleDeleteAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	store := h.svc.Store()
	if store == nil {
		writeServiceError(c, requestID, ErrSnapshotsDisabled)
		return
	}

	id := c.Param("id")
	if err := store.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, requestID, err)
		return
	}
	slog.Info("analysis deleted", slog.String("request_id", requestID), slog.String("analysis_id", id))
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleHealth handles GET /v1/bytegraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Snapshots: h.svc.Store() != nil,
	})
}

// HandleReady handles GET /v1/bytegraph/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.svc == nil || h.svc.Coordinator() == nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not_ready"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Version:   Version,
		Snapshots: h.svc.Store() != nil,
	})
}

// getOrCreateRequestID returns the caller's X-Request-ID or a new uuid,
// and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}

// writeServiceError maps a service error onto a status and code.
func writeServiceError(c *gin.Context, requestID string, err error) {
	switch {
	case errors.Is(err, input.ErrInvalidRequest):
		writeError(c, requestID, http.StatusBadRequest, CodeInvalidRequest, err)
	case errors.Is(err, input.ErrPathNotAllowed):
		writeError(c, requestID, http.StatusForbidden, CodePathNotAllowed, err)
	case errors.Is(err, input.ErrNoClassFiles), errors.Is(err, fs.ErrNotExist):
		writeError(c, requestID, http.StatusNotFound, CodeNoClassFiles, err)
	case errors.Is(err, snapshot.ErrNotFound):
		writeError(c, requestID, http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, ErrSnapshotsDisabled):
		writeError(c, requestID, http.StatusServiceUnavailable, CodeSnapshotsDisabled, err)
	default:
		writeError(c, requestID, http.StatusInternalServerError, CodeAnalysisFailed, err)
	}
}

func writeError(c *gin.Context, requestID string, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, RequestID: requestID})
}

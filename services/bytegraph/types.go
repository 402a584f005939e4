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
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/reshape"
	"github.com/AleutianAI/bytegraph/services/bytegraph/search"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodePathNotAllowed    = "PATH_NOT_ALLOWED"
	CodeNoClassFiles      = "NO_CLASS_FILES"
	CodeAnalysisFailed    = "ANALYSIS_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeSnapshotsDisabled = "SNAPSHOTS_DISABLED"
	CodeRateLimited       = "RATE_LIMITED"
)

// AnalyzeRequest is the body of POST /v1/bytegraph/analyze and
// POST /v1/bytegraph/analyze/stream.
type AnalyzeRequest struct {
	// Mode is class-file, class-dir or package-root.
	Mode input.Mode `json:"mode" binding:"required,oneof=class-file class-dir package-root"`

	// Path is the class file, class directory or class root.
	Path string `json:"path" binding:"required"`

	// Package is the dotted package name for package-root mode.
	Package string `json:"package,omitempty"`

	// Persist stores the result as a snapshot.
	Persist bool `json:"persist,omitempty"`

	// Label is an optional snapshot label.
	Label string `json:"label,omitempty"`
}

// input returns the resolver request for r.
func (r AnalyzeRequest) input() input.Request {
	return input.Request{Mode: r.Mode, Path: r.Path, Package: r.Package}
}

// AnalyzeResponse is the result of a non-streaming analysis.
type AnalyzeResponse struct {
	// AnalysisID is set when the result was persisted.
	AnalysisID string `json:"analysis_id,omitempty"`

	Root          string                 `json:"root"`
	Mode          input.Mode             `json:"mode"`
	Classes       []*reshape.ClassRecord `json:"classes"`
	Stats         model.Stats            `json:"stats"`
	Succeeded     int                    `json:"succeeded"`
	Failed        int                    `json:"failed"`
	Errors        []FileErrorInfo        `json:"errors,omitempty"`
	Incomplete    bool                   `json:"incomplete,omitempty"`
	DurationMilli int64                  `json:"duration_ms"`
}

// FileErrorInfo reports a class file that could not be analyzed.
type FileErrorInfo struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// CompleteEvent is the data of the final "complete" SSE event.
type CompleteEvent struct {
	Root          string          `json:"root"`
	Total         int             `json:"total"`
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	Chunks        int             `json:"chunks"`
	Stats         model.Stats     `json:"stats"`
	Errors        []FileErrorInfo `json:"errors,omitempty"`
	Incomplete    bool            `json:"incomplete,omitempty"`
	DurationMilli int64           `json:"duration_ms"`
}

// ListAnalysesResponse is the body of GET /v1/bytegraph/analyses.
type ListAnalysesResponse struct {
	Analyses []*snapshot.Metadata `json:"analyses"`
}

// AnalysisResponse is the body of GET /v1/bytegraph/analyses/:id.
type AnalysisResponse struct {
	Metadata *snapshot.Metadata     `json:"metadata"`
	Classes  []*reshape.ClassRecord `json:"classes"`
}

// HealthResponse is the body of the health and readiness endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Snapshots bool   `json:"snapshots"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// SearchResponse is the body of GET /analyses/:id/symbols.
type SearchResponse struct {
	Query   string         `json:"query"`
	Matches []search.Match `json:"matches"`
}

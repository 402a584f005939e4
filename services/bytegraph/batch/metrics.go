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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Batch Analysis
// =============================================================================

var (
	// filesTotal counts class files by outcome.
	// Labels: status (ok, failed)
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bytegraph",
		Subsystem: "batch",
		Name:      "files_total",
		Help:      "Total class files processed by outcome",
	}, []string{"status"})

	// batchDuration tracks wall time of whole runs.
	// Labels: mode (full, chunked)
	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bytegraph",
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Duration of batch analysis runs",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"mode"})

	// chunksTotal counts chunks completed by AnalyzeChunked.
	chunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bytegraph",
		Subsystem: "batch",
		Name:      "chunks_total",
		Help:      "Total chunks completed in chunked analysis",
	})
)

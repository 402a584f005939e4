// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Class Extraction
// =============================================================================

var (
	// classesTotal counts analyzed class files by outcome.
	// Labels: status (ok, failed)
	classesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bytegraph",
		Subsystem: "extract",
		Name:      "classes_total",
		Help:      "Total class files analyzed by outcome",
	}, []string{"status"})

	// edgesTotal counts emitted edges.
	// Labels: edge_type (member_of, calls, inheritance)
	edgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bytegraph",
		Subsystem: "extract",
		Name:      "edges_total",
		Help:      "Total edges emitted by edge type",
	}, []string{"edge_type"})

	// bootstrapFailuresTotal counts invokedynamic sites whose bootstrap
	// arguments could not be interpreted.
	bootstrapFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bytegraph",
		Subsystem: "extract",
		Name:      "bootstrap_failures_total",
		Help:      "Total invokedynamic bootstrap argument failures",
	})
)

// recordResult updates the class and edge counters for one traversal.
func recordResult(r *Result, err error) {
	if err != nil {
		classesTotal.WithLabelValues("failed").Inc()
		return
	}
	classesTotal.WithLabelValues("ok").Inc()
	counts := make(map[string]int, 3)
	for _, e := range r.Edges {
		counts[string(e.EdgeType)]++
	}
	for edgeType, n := range counts {
		edgesTotal.WithLabelValues(edgeType).Add(float64(n))
	}
}

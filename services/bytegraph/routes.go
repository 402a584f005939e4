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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the /bytegraph endpoints on rg.
//
// Endpoints:
//
//	POST   /v1/bytegraph/analyze         - Analyze and return reshaped classes
//	POST   /v1/bytegraph/analyze/stream  - Analyze with SSE progress events
//	GET    /v1/bytegraph/analyses        - List snapshots
//	GET    /v1/bytegraph/analyses/:id    - Load a snapshot
//	GET    /v1/bytegraph/analyses/:id/diff - Compare with ?base=<id>
//	GET    /v1/bytegraph/analyses/:id/symbols - Search symbols by name
//	DELETE /v1/bytegraph/analyses/:id    - Delete a snapshot
//	GET    /v1/bytegraph/health          - Health check
//	GET    /v1/bytegraph/ready           - Readiness check
//	GET    /v1/bytegraph/metrics         - Prometheus metrics
//
// Example:
//
//	svc, _ := bytegraph.NewService(bytegraph.ServiceConfig{})
//	v1 := router.Group("/v1")
//	bytegraph.RegisterRoutes(v1, bytegraph.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	bg := rg.Group("/bytegraph")
	{
		bg.POST("/analyze", handlers.RateLimit, handlers.HandleAnalyze)
		bg.POST("/analyze/stream", handlers.RateLimit, handlers.HandleAnalyzeStream)

		bg.GET("/analyses", handlers.HandleListAnalyses)
		bg.GET("/analyses/:id", handlers.HandleGetAnalysis)
		bg.GET("/analyses/:id/diff", handlers.HandleDiffAnalysis)
		bg.GET("/analyses/:id/symbols", handlers.HandleSearchAnalysis)
		bg.DELETE("/analyses/:id", handlers.HandleDeleteAnalysis)

		bg.GET("/health", handlers.HandleHealth)
		bg.GET("/ready", handlers.HandleReady)
		bg.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

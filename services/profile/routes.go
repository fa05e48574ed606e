// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package profile

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all profile routes with the router.
//
// Description:
//
//	Registers all /v1/profile/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Ingest Endpoints:
//
//	POST /v1/profile/ingest - Ingest an observation batch
//
// Query Endpoints:
//
//	GET  /v1/profile/stats - Aggregate store counts
//	GET  /v1/profile/entities - Entities, paginated; filename?, limit?, offset?
//	GET  /v1/profile/calls - Function calls; filepath?, functionName?, offset?, pageSize?
//	GET  /v1/profile/location - Entities at a source location; filename, line_number, column_number?
//	GET  /v1/profile/enums - Enum candidates; min_observations?, min_unique_strings?
//	GET  /v1/profile/shapes - Recurring object shapes; min_observations?
//	GET  /v1/profile/annotations - Annotation candidates, ranked
//	POST /v1/profile/query - Ad-hoc single-statement query
//
// Live Feed:
//
//	GET  /v1/profile/live - WebSocket ingest summary feed
//
// Health Endpoints:
//
//	GET  /v1/profile/health - Health check
//	GET  /v1/profile/ready - Readiness check
//
// Example:
//
//	svc, err := profile.NewService(profile.DefaultServiceConfig())
//	if err != nil { ... }
//	handlers := profile.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	profile.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	p := rg.Group("/profile")
	{
		p.POST("/ingest", handlers.HandleIngest)

		p.GET("/stats", handlers.HandleStats)
		p.GET("/entities", handlers.HandleEntities)
		p.GET("/calls", handlers.HandleCalls)
		p.GET("/location", handlers.HandleLocation)
		p.GET("/enums", handlers.HandleEnums)
		p.GET("/shapes", handlers.HandleShapes)
		p.GET("/annotations", handlers.HandleAnnotations)
		p.POST("/query", handlers.HandleQuery)

		p.GET("/live", handlers.HandleLive)

		p.GET("/health", handlers.HandleHealth)
		p.GET("/ready", handlers.HandleReady)
	}
}

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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Pagination bounds per endpoint.
const (
	defaultEntityLimit = 50
	defaultCallLimit   = 100
	defaultListLimit   = 50
	maxListLimit       = 500
)

// intQuery reads an integer query parameter with a default, clamped to
// [0, max]; max <= 0 means unbounded.
func intQuery(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// HandleEntities handles GET /v1/profile/entities.
//
// Query Parameters:
//
//	filename: substring filter on the entity filename (optional)
//	limit:    page size, default 50, max 500 (optional)
//	offset:   page offset, default 0 (optional)
//
// Response:
//
//	200 OK: EntitiesResponse ordered by last_seen descending
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleEntities(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEntities")

	filter := c.Query("filename")
	limit := intQuery(c, "limit", defaultEntityLimit, maxListLimit)
	offset := intQuery(c, "offset", 0, 0)

	rows, page, err := h.svc.store.ListEntities(c.Request.Context(), filter, offset, limit)
	if err != nil {
		queryRequestsTotal.WithLabelValues("entities", "server_error").Inc()
		logger.Error("entities query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternalError})
		return
	}

	queryRequestsTotal.WithLabelValues("entities", "ok").Inc()
	c.JSON(http.StatusOK, EntitiesResponse{Entities: rows, Page: page})
}

// HandleCalls handles GET /v1/profile/calls.
//
// Query Parameters:
//
//	filepath:     substring filter on the entity filename (optional)
//	functionName: substring filter on entity name or context (optional)
//	offset:       page offset, default 0 (optional)
//	pageSize:     page size, default 100, max 500 (optional)
//
// Response:
//
//	200 OK: CallsResponse ordered by recency then call count
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleCalls(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCalls")

	filepath := c.Query("filepath")
	function := c.Query("functionName")
	offset := intQuery(c, "offset", 0, 0)
	limit := intQuery(c, "pageSize", defaultCallLimit, maxListLimit)

	rows, page, err := h.svc.store.ListCalls(c.Request.Context(), filepath, function, offset, limit)
	if err != nil {
		queryRequestsTotal.WithLabelValues("calls", "server_error").Inc()
		logger.Error("calls query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternalError})
		return
	}

	queryRequestsTotal.WithLabelValues("calls", "ok").Inc()
	c.JSON(http.StatusOK, CallsResponse{Calls: rows, Page: page})
}

// HandleLocation handles GET /v1/profile/location.
//
// Query Parameters:
//
//	filename:      exact entity filename (required)
//	line_number:   line to match (required)
//	column_number: column to match (optional)
//
// Response:
//
//	200 OK: LocationResponse with entities and their observed values
//	400 Bad Request: missing or non-numeric required parameter
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleLocation(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLocation")

	filename := c.Query("filename")
	if filename == "" {
		queryRequestsTotal.WithLabelValues("location", "client_error").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "filename parameter is required",
			Code:  CodeMissingParameter,
		})
		return
	}

	lineRaw := c.Query("line_number")
	if lineRaw == "" {
		queryRequestsTotal.WithLabelValues("location", "client_error").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "line_number parameter is required",
			Code:  CodeMissingParameter,
		})
		return
	}
	line, err := strconv.Atoi(lineRaw)
	if err != nil {
		queryRequestsTotal.WithLabelValues("location", "client_error").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "line_number must be an integer",
			Code:  CodeInvalidParameter,
		})
		return
	}

	var column *int
	if colRaw := c.Query("column_number"); colRaw != "" {
		col, err := strconv.Atoi(colRaw)
		if err != nil {
			queryRequestsTotal.WithLabelValues("location", "client_error").Inc()
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "column_number must be an integer",
				Code:  CodeInvalidParameter,
			})
			return
		}
		column = &col
	}

	entities, err := h.svc.store.EntitiesAtLocation(c.Request.Context(), filename, line, column)
	if err != nil {
		queryRequestsTotal.WithLabelValues("location", "server_error").Inc()
		logger.Error("location query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternalError})
		return
	}

	queryRequestsTotal.WithLabelValues("location", "ok").Inc()
	c.JSON(http.StatusOK, LocationResponse{Filename: filename, Line: line, Entities: entities})
}

// HandleEnums handles GET /v1/profile/enums.
//
// Query Parameters:
//
//	min_observations:   observation floor, default 2 (optional)
//	min_unique_strings: distinct-string floor, default 2 (optional)
//	limit, offset:      pagination, default 50/0 (optional)
//
// Response:
//
//	200 OK: EnumsResponse with suggested enum names
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleEnums(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEnums")

	minObs := intQuery(c, "min_observations", 2, 0)
	minUnique := intQuery(c, "min_unique_strings", 2, 0)
	limit := intQuery(c, "limit", defaultListLimit, maxListLimit)
	offset := intQuery(c, "offset", 0, 0)

	candidates, page, err := h.svc.store.EnumCandidates(c.Request.Context(), int64(minObs), minUnique, offset, limit)
	if err != nil {
		queryRequestsTotal.WithLabelValues("enums", "server_error").Inc()
		logger.Error("enum query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternalError})
		return
	}

	queryRequestsTotal.WithLabelValues("enums", "ok").Inc()
	c.JSON(http.StatusOK, EnumsResponse{Candidates: candidates, Page: page})
}

// HandleShapes handles GET /v1/profile/shapes.
//
// Query Parameters:
//
//	min_observations: observation floor, default 2 (optional)
//	limit, offset:    pagination, default 50/0 (optional)
//
// Response:
//
//	200 OK: ShapesResponse with synthetic declarations
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleShapes(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleShapes")

	minObs := intQuery(c, "min_observations", 2, 0)
	limit := intQuery(c, "limit", defaultListLimit, maxListLimit)
	offset := intQuery(c, "offset", 0, 0)

	shapes, page, err := h.svc.store.ListShapes(c.Request.Context(), int64(minObs), offset, limit)
	if err != nil {
		queryRequestsTotal.WithLabelValues("shapes", "server_error").Inc()
		logger.Error("shapes query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternalError})
		return
	}

	queryRequestsTotal.WithLabelValues("shapes", "ok").Inc()
	c.JSON(http.StatusOK, ShapesResponse{Shapes: shapes, Page: page})
}

// HandleAnnotations handles GET /v1/profile/annotations.
//
// Query Parameters:
//
//	limit, offset: pagination, default 50/0 (optional)
//
// Response:
//
//	200 OK: AnnotationsResponse ranked by kind then observation count
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleAnnotations(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnnotations")

	limit := intQuery(c, "limit", defaultListLimit, maxListLimit)
	offset := intQuery(c, "offset", 0, 0)

	candidates, page, err := h.svc.store.AnnotationCandidates(c.Request.Context(), offset, limit)
	if err != nil {
		queryRequestsTotal.WithLabelValues("annotations", "server_error").Inc()
		logger.Error("annotation query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternalError})
		return
	}

	queryRequestsTotal.WithLabelValues("annotations", "ok").Inc()
	c.JSON(http.StatusOK, AnnotationsResponse{Candidates: candidates, Page: page})
}

// HandleQuery handles POST /v1/profile/query.
//
// Description:
//
//	Executes one ad-hoc statement with parameter binding. The store
//	driver refuses to prepare multi-statement input; that refusal is the
//	security boundary and surfaces as QUERY_INVALID.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: missing query body
//	429 Too Many Requests: channel throttled
//	500 Internal Server Error: statement failed to prepare or execute
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	if h.svc.queryLimiter != nil && !h.svc.queryLimiter.Allow() {
		queryRequestsTotal.WithLabelValues("query", "client_error").Inc()
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "ad-hoc query channel is throttled, retry later",
			Code:  CodeRateLimited,
		})
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		queryRequestsTotal.WithLabelValues("query", "client_error").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query field is required: " + err.Error(),
			Code:  CodeMissingParameter,
		})
		return
	}

	rows, err := h.svc.store.AdHocQuery(c.Request.Context(), req.Query, req.Params)
	if err != nil {
		queryRequestsTotal.WithLabelValues("query", "server_error").Inc()
		logger.Warn("ad-hoc query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeQueryInvalid,
		})
		return
	}

	queryRequestsTotal.WithLabelValues("query", "ok").Inc()
	c.JSON(http.StatusOK, QueryResponse{Rows: rows, Count: len(rows)})
}

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
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/TypeTrace/services/profile/store"
)

// Handlers carries the HTTP handlers for the collector service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handler set for a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleIngest handles POST /v1/profile/ingest.
//
// Description:
//
//	Consumes one observation batch: a JSON array of records, each either
//	a positional 4-tuple [filename, offset, values, metadata] or the
//	equivalent keyed object. The batch applies in a single store
//	transaction; partial failure fails the whole batch.
//
// Response:
//
//	200 OK: IngestResponse with the batch summary
//	400 Bad Request: body is not a JSON array of well-formed records
//	500 Internal Server Error: store rejected the transaction
//
// Thread Safety: safe for concurrent use; batches serialise in the store.
func (h *Handlers) HandleIngest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleIngest")

	ctx, span := otel.Tracer("typetrace.profile").Start(c.Request.Context(), "profile.ingest")
	defer span.End()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		ingestBatchesTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unreadable request body",
			Code:  CodeBatchMalformed,
		})
		return
	}

	var records []store.Record
	if err := json.Unmarshal(body, &records); err != nil {
		ingestBatchesTotal.WithLabelValues("malformed").Inc()
		logger.Warn("malformed batch dropped", slog.Any("error", err))
		span.SetStatus(codes.Error, "malformed batch")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "body must be a JSON array of batch records: " + err.Error(),
			Code:  CodeBatchMalformed,
		})
		return
	}

	start := time.Now()
	summary, err := h.svc.store.ApplyBatch(ctx, records)
	ingestDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		ingestBatchesTotal.WithLabelValues("aborted").Inc()
		logger.Error("batch transaction aborted", slog.Any("error", err))
		span.SetStatus(codes.Error, "batch aborted")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeBatchAborted,
		})
		return
	}

	ingestBatchesTotal.WithLabelValues("accepted").Inc()
	ingestRecordsTotal.Add(float64(summary.Records))
	ingestValuesTotal.Add(float64(summary.Values))
	span.SetAttributes(
		attribute.Int("batch.records", summary.Records),
		attribute.Int("batch.values", summary.Values),
		attribute.Int("batch.new_entities", summary.NewEntities),
	)

	logger.Info("batch ingested",
		slog.Int("records", summary.Records),
		slog.Int("values", summary.Values),
		slog.Int("new_entities", summary.NewEntities),
	)

	h.svc.hub.broadcast(LiveEvent{
		Type:    "ingest",
		Summary: summary,
		AtMilli: time.Now().UnixMilli(),
	})

	c.JSON(http.StatusOK, IngestResponse{Status: "ok", Summary: summary})
}

// HandleStats handles GET /v1/profile/stats.
//
// Response:
//
//	200 OK: store.Stats
//	500 Internal Server Error: store read failed
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStats")

	stats, err := h.svc.store.GetStats(c.Request.Context())
	if err != nil {
		queryRequestsTotal.WithLabelValues("stats", "server_error").Inc()
		logger.Error("stats query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeInternalError,
		})
		return
	}

	queryRequestsTotal.WithLabelValues("stats", "ok").Inc()
	c.JSON(http.StatusOK, stats)
}

// HandleHealth handles GET /v1/profile/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/profile/ready: ready once the store answers.
func (h *Handlers) HandleReady(c *gin.Context) {
	if _, err := h.svc.store.GetStats(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

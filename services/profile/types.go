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
	"github.com/AleutianAI/TypeTrace/services/profile/store"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes used across the HTTP surface.
const (
	CodeBatchMalformed   = "BATCH_MALFORMED"
	CodeBatchAborted     = "BATCH_TRANSACTION_ABORTED"
	CodeQueryInvalid     = "QUERY_INVALID"
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// IngestResponse reports what one accepted batch changed.
type IngestResponse struct {
	Status  string               `json:"status"`
	Summary *store.IngestSummary `json:"summary"`
}

// EntitiesResponse is the paginated /entities body.
type EntitiesResponse struct {
	Entities []store.EntityRow `json:"entities"`
	store.Page
}

// CallsResponse is the paginated /calls body.
type CallsResponse struct {
	Calls []store.CallRow `json:"calls"`
	store.Page
}

// LocationResponse is the /location body: matching entities grouped with
// their observed values.
type LocationResponse struct {
	Filename string                 `json:"filename"`
	Line     int                    `json:"line_number"`
	Entities []store.LocationEntity `json:"entities"`
}

// EnumsResponse is the paginated /enums body.
type EnumsResponse struct {
	Candidates []store.EnumCandidate `json:"candidates"`
	store.Page
}

// ShapesResponse is the paginated /shapes body.
type ShapesResponse struct {
	Shapes []store.ShapeRow `json:"shapes"`
	store.Page
}

// AnnotationsResponse is the paginated /annotations body.
type AnnotationsResponse struct {
	Candidates []store.AnnotationCandidate `json:"candidates"`
	store.Page
}

// QueryRequest is the ad-hoc query body: one statement plus bound
// parameters.
type QueryRequest struct {
	Query  string `json:"query" binding:"required"`
	Params []any  `json:"params"`
}

// QueryResponse is the ad-hoc query result.
type QueryResponse struct {
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}

// LiveEvent is one websocket feed message: a per-batch ingest summary.
type LiveEvent struct {
	Type    string               `json:"type"`
	Summary *store.IngestSummary `json:"summary"`
	AtMilli int64                `json:"at_milli"`
}

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Profile Collector
// =============================================================================

var (
	// ingestBatchesTotal counts ingest batches by outcome.
	// Labels: status (accepted, malformed, aborted)
	ingestBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "profile",
		Subsystem: "ingest",
		Name:      "batches_total",
		Help:      "Total ingest batches by outcome",
	}, []string{"status"})

	// ingestRecordsTotal counts records applied by accepted batches.
	ingestRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "profile",
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Total records applied by accepted batches",
	})

	// ingestValuesTotal counts value observations applied.
	ingestValuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "profile",
		Subsystem: "ingest",
		Name:      "values_total",
		Help:      "Total value observations applied",
	})

	// ingestDurationSeconds measures batch apply latency.
	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "profile",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Batch apply latency",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// queryRequestsTotal counts query-surface requests.
	// Labels: endpoint, status (ok, client_error, server_error)
	queryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "profile",
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Total query-surface requests by endpoint and outcome",
	}, []string{"endpoint", "status"})
)

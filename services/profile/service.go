// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile is the type-profile collector service: it ingests
// observation batches POSTed by instrumented programs and serves the
// derived query surface over the relational store.
package profile

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/TypeTrace/services/profile/store"
)

// ServiceConfig configures the collector service.
type ServiceConfig struct {
	// DBPath is the SQLite database path, or ":memory:".
	DBPath string

	// QueryRatePerSecond throttles the ad-hoc query channel. Zero
	// disables throttling.
	QueryRatePerSecond float64

	// QueryBurst is the ad-hoc query burst allowance.
	QueryBurst int
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DBPath:             "typetrace.db",
		QueryRatePerSecond: 5,
		QueryBurst:         10,
	}
}

// Service owns the store, the live feed hub, and the ad-hoc query
// limiter.
//
// Thread Safety: Service is safe for concurrent use; the store serialises
// writes and the hub guards its client set.
type Service struct {
	store        *store.Store
	hub          *liveHub
	queryLimiter *rate.Limiter
}

// NewService opens the store and assembles the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.QueryRatePerSecond > 0 {
		burst := cfg.QueryBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.QueryRatePerSecond), burst)
	}

	return &Service{
		store:        st,
		hub:          newLiveHub(),
		queryLimiter: limiter,
	}, nil
}

// Store exposes the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Close closes the store.
func (s *Service) Close() error {
	return s.store.Close()
}

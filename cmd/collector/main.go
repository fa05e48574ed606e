// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command collector starts the TypeTrace profile collector API server.
//
// The collector ingests observation batches POSTed by instrumented
// programs, persists them in SQLite, and serves the derived query
// surface: entities, function calls, enum candidates, object shapes, and
// annotation recommendations.
//
// Usage:
//
//	go run ./cmd/collector
//	go run ./cmd/collector -port 8745 -db typetrace.db
//	go run ./cmd/collector -config typetrace.yaml -debug
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8745/v1/profile/health
//
//	# Ingest a batch
//	curl -X POST http://localhost:8745/v1/profile/ingest \
//	  -H "Content-Type: application/json" \
//	  -d '[["src/app.ts", 12, [[1, null]], {"functionName": "f"}]]'
//
//	# Aggregate stats
//	curl http://localhost:8745/v1/profile/stats | jq
//
//	# Enum candidates
//	curl "http://localhost:8745/v1/profile/enums?min_observations=3" | jq
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/TypeTrace/services/profile"
	"github.com/AleutianAI/TypeTrace/services/profile/config"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Collector.Port = *port
	}
	if *dbPath != "" {
		cfg.Collector.DBPath = *dbPath
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation: trace context flows from incoming
	// headers through handlers and middleware.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	svc, err := profile.NewService(profile.ServiceConfig{
		DBPath:             cfg.Collector.DBPath,
		QueryRatePerSecond: cfg.Collector.QueryRatePerSecond,
		QueryBurst:         cfg.Collector.QueryBurst,
	})
	if err != nil {
		slog.Error("Failed to open profile service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers := profile.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("typetrace-collector"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	profile.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(cfg.Collector.Port, cfg.Collector.DBPath)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Collector.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting TypeTrace collector", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down TypeTrace collector")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown incomplete", slog.String("error", err.Error()))
		}
		if err := svc.Close(); err != nil {
			slog.Warn("Failed to close profile store", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Collector failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int, dbPath string) {
	fmt.Printf(`
  TypeTrace Profile Collector
  ---------------------------
  Listening:  http://localhost:%d
  Store:      %s
  Ingest:     POST /v1/profile/ingest
  Queries:    /v1/profile/{stats,entities,calls,location,enums,shapes,annotations}
  Metrics:    GET /metrics

`, port, dbPath)
}

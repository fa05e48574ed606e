// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the TypeTrace configuration: embedded defaults,
// an optional YAML file, then TYPETRACE_* environment overrides, in that
// order.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// Config is the full TypeTrace configuration.
type Config struct {
	Collector    CollectorConfig    `yaml:"collector"`
	Instrumenter InstrumenterConfig `yaml:"instrumenter"`
	Runtime      RuntimeConfig      `yaml:"runtime"`
}

// CollectorConfig configures the collector server.
type CollectorConfig struct {
	Port               int     `yaml:"port"`
	DBPath             string  `yaml:"db_path"`
	QueryRatePerSecond float64 `yaml:"query_rate_per_second"`
	QueryBurst         int     `yaml:"query_burst"`
}

// InstrumenterConfig configures the build-side instrumenter.
type InstrumenterConfig struct {
	CollectorURL string   `yaml:"collector_url"`
	GlobalName   string   `yaml:"global_name"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
}

// RuntimeConfig configures the in-process reporter.
type RuntimeConfig struct {
	FlushIntervalMS int `yaml:"flush_interval_ms"`
	MaxBufferKeys   int `yaml:"max_buffer_keys"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration: embedded defaults, the given
// YAML file when path is non-empty, then environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays TYPETRACE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TYPETRACE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Collector.Port = port
		}
	}
	if v := os.Getenv("TYPETRACE_DB_PATH"); v != "" {
		cfg.Collector.DBPath = v
	}
	if v := os.Getenv("TYPETRACE_COLLECTOR_URL"); v != "" {
		cfg.Instrumenter.CollectorURL = v
	}
	if v := os.Getenv("TYPETRACE_FLUSH_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Runtime.FlushIntervalMS = ms
		}
	}
}

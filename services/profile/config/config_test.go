package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("defaults failed to parse: %v", err)
	}
	if cfg.Collector.Port != 8745 {
		t.Errorf("unexpected default port %d", cfg.Collector.Port)
	}
	if cfg.Instrumenter.GlobalName != "twiz" {
		t.Errorf("unexpected default global name %q", cfg.Instrumenter.GlobalName)
	}
	if cfg.Runtime.FlushIntervalMS != 2000 {
		t.Errorf("unexpected default flush interval %d", cfg.Runtime.FlushIntervalMS)
	}
	if len(cfg.Instrumenter.Exclude) == 0 {
		t.Error("expected default excludes")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "collector:\n  port: 9900\n  db_path: \"custom.db\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Collector.Port != 9900 {
		t.Errorf("file port override lost: %d", cfg.Collector.Port)
	}
	if cfg.Collector.DBPath != "custom.db" {
		t.Errorf("file db override lost: %q", cfg.Collector.DBPath)
	}
	// Untouched sections keep defaults.
	if cfg.Instrumenter.GlobalName != "twiz" {
		t.Errorf("defaults lost on partial file: %q", cfg.Instrumenter.GlobalName)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("TYPETRACE_PORT", "7001")
	t.Setenv("TYPETRACE_COLLECTOR_URL", "http://collector:9999/v1/profile/ingest")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Collector.Port != 7001 {
		t.Errorf("env port override lost: %d", cfg.Collector.Port)
	}
	if cfg.Instrumenter.CollectorURL != "http://collector:9999/v1/profile/ingest" {
		t.Errorf("env url override lost: %q", cfg.Instrumenter.CollectorURL)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command instrument applies type-profile instrumentation to JavaScript
// and TypeScript sources outside a bundler: one-shot over files or trees,
// or continuously in watch mode.
//
// Usage:
//
//	go run ./cmd/instrument run src/ --out build/
//	go run ./cmd/instrument run src/app.ts --out build/ --collector-url http://localhost:8745/v1/profile/ingest
//	go run ./cmd/instrument watch src/ --out build/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/TypeTrace/services/profile/bundler"
	"github.com/AleutianAI/TypeTrace/services/profile/config"
	"github.com/AleutianAI/TypeTrace/services/profile/instrument"
)

var (
	flagConfig       string
	flagOut          string
	flagInclude      []string
	flagExclude      []string
	flagCollectorURL string
	flagNoPrelude    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "instrument",
		Short: "Inject type-profile instrumentation into JS/TS sources",
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagOut, "out", "", "Output directory (default: stdout for single files)")
	rootCmd.PersistentFlags().StringSliceVar(&flagInclude, "include", nil, "Include globs")
	rootCmd.PersistentFlags().StringSliceVar(&flagExclude, "exclude", nil, "Exclude globs")
	rootCmd.PersistentFlags().StringVar(&flagCollectorURL, "collector-url", "", "Collector ingest endpoint baked into the prelude")
	rootCmd.PersistentFlags().BoolVar(&flagNoPrelude, "no-prelude", false, "Skip the runtime prelude (a bundler provides the runtime)")

	runCmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Instrument files or directory trees once",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runInstrument,
	}

	watchCmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-instrument files as they change",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	rootCmd.AddCommand(runCmd, watchCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildAdapter assembles the bundler adapter from config plus flags.
func buildAdapter() (*bundler.Adapter, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	include := cfg.Instrumenter.Include
	if len(flagInclude) > 0 {
		include = flagInclude
	}
	exclude := cfg.Instrumenter.Exclude
	if len(flagExclude) > 0 {
		exclude = flagExclude
	}
	collectorURL := cfg.Instrumenter.CollectorURL
	if flagCollectorURL != "" {
		collectorURL = flagCollectorURL
	}

	instOpts := []instrument.InstrumenterOption{
		instrument.WithCollectorURL(collectorURL),
		instrument.WithGlobalName(cfg.Instrumenter.GlobalName),
	}
	if flagNoPrelude {
		instOpts = append(instOpts, instrument.WithPrelude(false))
	}

	return bundler.NewAdapter(bundler.AdapterOptions{
		Include:             include,
		Exclude:             exclude,
		InstrumenterOptions: instOpts,
	}), nil
}

func runInstrument(cmd *cobra.Command, args []string) error {
	adapter, err := buildAdapter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	instrumented, skipped := 0, 0

	for _, root := range args {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			applied, err := processFile(ctx, adapter, root, root)
			if err != nil {
				return err
			}
			if applied {
				instrumented++
			} else {
				skipped++
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			applied, err := processFile(ctx, adapter, path, rel)
			if err != nil {
				return err
			}
			if applied {
				instrumented++
			} else {
				skipped++
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	slog.Info("instrumentation pass complete",
		slog.Int("instrumented", instrumented),
		slog.Int("skipped", skipped))
	return nil
}

// processFile instruments one file, writing to the output tree, or to
// stdout when no output directory is configured.
func processFile(ctx context.Context, adapter *bundler.Adapter, path, rel string) (bool, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	logical := filepath.ToSlash(rel)
	out, applied := adapter.Transform(ctx, source, logical)

	if flagOut == "" {
		fmt.Print(out)
		return applied, nil
	}

	dest := filepath.Join(flagOut, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(dest, []byte(out), 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", dest, err)
	}
	if applied {
		slog.Debug("instrumented", slog.String("file", logical))
	}
	return applied, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if flagOut == "" {
		return fmt.Errorf("watch mode requires --out")
	}

	adapter, err := buildAdapter()
	if err != nil {
		return err
	}
	root := args[0]

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the whole tree; fsnotify is per-directory.
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("watching for changes", slog.String("root", root), slog.String("out", flagOut))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				// New directories join the watch set.
				if err := watcher.Add(event.Name); err != nil {
					slog.Warn("failed to watch new directory",
						slog.String("dir", event.Name),
						slog.Any("error", err))
				}
				continue
			}

			rel, err := filepath.Rel(root, event.Name)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			if _, err := processFile(ctx, adapter, event.Name, rel); err != nil {
				slog.Warn("re-instrumentation failed",
					slog.String("file", event.Name),
					slog.Any("error", err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.Any("error", err))
		}
	}
}

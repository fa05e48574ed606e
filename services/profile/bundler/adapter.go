// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bundler is the build-side glue between a bundler's per-file
// transform hook and the instrumenter: glob filtering, dialect filtering,
// and original-source fallback on failure.
package bundler

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/TypeTrace/services/profile/instrument"
)

// Adapter filters files and applies the instrumenter.
type Adapter struct {
	options AdapterOptions
	inst    *instrument.Instrumenter
}

// AdapterOptions configures Adapter behavior.
type AdapterOptions struct {
	// Include globs: when non-empty, a file must match at least one.
	Include []string

	// Exclude globs: a file matching any is skipped.
	Exclude []string

	// InstrumenterOptions are passed through to the instrumenter.
	InstrumenterOptions []instrument.InstrumenterOption
}

// NewAdapter creates an adapter with the given options.
func NewAdapter(opts AdapterOptions) *Adapter {
	return &Adapter{
		options: opts,
		inst:    instrument.NewInstrumenter(opts.InstrumenterOptions...),
	}
}

// Match reports whether the adapter would instrument the file: the
// extension must be a recognised dialect, the file must match an include
// glob when includes are given, and must match no exclude glob.
func (a *Adapter) Match(filename string) bool {
	if !a.dialectExtension(filename) {
		return false
	}
	if len(a.options.Include) > 0 && !matchAny(a.options.Include, filename) {
		return false
	}
	if matchAny(a.options.Exclude, filename) {
		return false
	}
	return true
}

// Transform instruments one file. Files outside the filter and files the
// instrumenter rejects pass through unchanged; the second return reports
// whether instrumentation was applied.
func (a *Adapter) Transform(ctx context.Context, source []byte, filename string) (string, bool) {
	if !a.Match(filename) {
		return string(source), false
	}

	out, err := a.inst.Instrument(ctx, source, filename)
	if err != nil {
		slog.Warn("instrumentation skipped, using original source",
			slog.String("file", filename),
			slog.Any("error", err))
		return string(source), false
	}
	return out, true
}

func (a *Adapter) dialectExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, known := range a.inst.Extensions() {
		if ext == known {
			return true
		}
	}
	return false
}

// matchAny matches a path against globs, testing the full slash-separated
// path, the basename, and each path suffix so "src/*.ts" style patterns
// behave the way bundler filters do.
func matchAny(globs []string, filename string) bool {
	path := filepath.ToSlash(filename)
	base := filepath.Base(path)

	for _, glob := range globs {
		if ok, err := filepath.Match(glob, path); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(glob, base); err == nil && ok {
			return true
		}
		if matchSuffix(glob, path) {
			return true
		}
	}
	return false
}

// matchSuffix matches a glob against every suffix of the path, so
// "node_modules/*" excludes nested trees without requiring "**".
func matchSuffix(glob, path string) bool {
	parts := strings.Split(path, "/")
	globDepth := len(strings.Split(glob, "/"))
	for i := 0; i+globDepth <= len(parts); i++ {
		candidate := strings.Join(parts[i:i+globDepth], "/")
		if ok, err := filepath.Match(glob, candidate); err == nil && ok {
			return true
		}
	}
	return false
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runtime

import (
	"sync"
)

// The process-wide reporter initialises lazily on the first observation
// and has no explicit teardown; host termination is the terminator.
var (
	defaultMu       sync.Mutex
	defaultReporter *Reporter
	defaultOpts     []ReporterOption
)

// Configure sets the options the process-wide reporter will initialise
// with. It must run before the first Record; later calls are ignored once
// the reporter exists.
func Configure(opts ...ReporterOption) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReporter == nil {
		defaultOpts = opts
	}
}

// Default returns the process-wide reporter, initialising it on first use.
func Default() *Reporter {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReporter == nil {
		defaultReporter = NewReporter(defaultOpts...)
	}
	return defaultReporter
}

// Record buffers one observation on the process-wide reporter. This is
// the Go-host equivalent of the injected entry point.
func Record(label string, value any, offset int64, filename string, metadata map[string]any) {
	Default().Record(label, value, offset, filename, metadata)
}

// Track records value provenance on the process-wide reporter.
func Track(value any, filename string, offset int64) {
	Default().Track(value, filename, offset)
}

// ResetDefault discards the process-wide reporter. Test hook.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReporter != nil {
		defaultReporter.Reset()
	}
	defaultReporter = nil
	defaultOpts = nil
}

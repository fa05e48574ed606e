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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Reporter buffers observations and flushes them to the collector on a
// single-shot timer.
//
// Description:
//
//	Observations accumulate keyed by (filename, offset); each key holds
//	the set of distinct serialised values seen since the last flush. The
//	first observation after a flush arms the timer; on expiry the buffer
//	is swapped for a fresh one before the POST is dispatched, so
//	observations arriving during dispatch land in the next batch. If no
//	transport is configured the buffer is retained up to the key bound.
//
// Delivery is at-most-once: a failed POST is logged and dropped, and
// buffer contents do not survive process termination.
//
// Thread Safety: safe for concurrent use. One mutex guards the buffer;
// the timer callback is the single flusher.
type Reporter struct {
	options ReporterOptions
	tracker *Tracker

	mu      sync.Mutex
	buffer  map[bufferKey]*bufferEntry
	order   []bufferKey
	timer   *time.Timer
	dropped int64
}

type bufferKey struct {
	filename string
	offset   int64
}

type bufferEntry struct {
	metadata map[string]any
	values   []any           // surrogate values, insertion order
	seen     map[string]bool // dedup by canonical JSON
}

// ReporterOptions configures Reporter behavior.
type ReporterOptions struct {
	// CollectorURL is the ingest endpoint. Empty disables transport; the
	// buffer is then retained until Reset or the key bound.
	CollectorURL string

	// FlushInterval is the single-shot timer period. Default: 2s.
	FlushInterval time.Duration

	// MaxBufferKeys bounds the number of distinct (filename, offset)
	// keys held between flushes; observations for new keys past the
	// bound are dropped and counted. Default: 10000.
	MaxBufferKeys int

	// HTTPClient performs the flush POST. Default: a client with a 10s
	// timeout.
	HTTPClient *http.Client
}

// DefaultReporterOptions returns the default options.
func DefaultReporterOptions() ReporterOptions {
	return ReporterOptions{
		CollectorURL:  "http://localhost:8745/v1/profile/ingest",
		FlushInterval: 2 * time.Second,
		MaxBufferKeys: 10000,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ReporterOption is a functional option for configuring Reporter.
type ReporterOption func(*ReporterOptions)

// WithCollectorURL sets the ingest endpoint.
func WithCollectorURL(url string) ReporterOption {
	return func(o *ReporterOptions) { o.CollectorURL = url }
}

// WithFlushInterval sets the batching period.
func WithFlushInterval(d time.Duration) ReporterOption {
	return func(o *ReporterOptions) { o.FlushInterval = d }
}

// WithMaxBufferKeys bounds the in-memory buffer.
func WithMaxBufferKeys(n int) ReporterOption {
	return func(o *ReporterOptions) { o.MaxBufferKeys = n }
}

// WithHTTPClient sets the flush transport.
func WithHTTPClient(c *http.Client) ReporterOption {
	return func(o *ReporterOptions) { o.HTTPClient = c }
}

// NewReporter creates a Reporter with the given options.
func NewReporter(opts ...ReporterOption) *Reporter {
	options := DefaultReporterOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.FlushInterval <= 0 {
		options.FlushInterval = 2 * time.Second
	}
	if options.MaxBufferKeys <= 0 {
		options.MaxBufferKeys = 10000
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Reporter{
		options: options,
		tracker: NewTracker(4096),
		buffer:  make(map[bufferKey]*bufferEntry),
	}
}

// Record buffers one observation. The value is serialised immediately;
// serialisation never fails the caller.
func (r *Reporter) Record(label string, value any, offset int64, filename string, metadata map[string]any) {
	surrogate := Serialize(value)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := bufferKey{filename: filename, offset: offset}
	entry, ok := r.buffer[key]
	if !ok {
		if len(r.buffer) >= r.options.MaxBufferKeys {
			r.dropped++
			return
		}
		entry = &bufferEntry{
			metadata: metadata,
			seen:     make(map[string]bool, 4),
		}
		r.buffer[key] = entry
		r.order = append(r.order, key)
	}
	if metadata != nil {
		entry.metadata = metadata
	}

	canonical, err := json.Marshal(surrogate)
	if err != nil {
		canonical = []byte(`"[Serialization Error]"`)
		surrogate = "[Serialization Error: marshal]"
	}
	if !entry.seen[string(canonical)] {
		entry.seen[string(canonical)] = true
		entry.values = append(entry.values, surrogate)
	}

	// Without a transport the buffer is retained; the key bound is the
	// only backstop.
	if r.timer == nil && r.options.CollectorURL != "" {
		r.timer = time.AfterFunc(r.options.FlushInterval, r.flushTimer)
	}
}

// Track records the origin of a composite value so that later parameter
// observations of the same value carry a provenance pair.
func (r *Reporter) Track(value any, filename string, offset int64) {
	r.tracker.Track(value, filename, offset)
}

// Flush synchronously ships the current buffer. Test and shutdown hook.
func (r *Reporter) Flush(ctx context.Context) {
	batch := r.swap()
	r.post(ctx, batch)
}

// Reset discards the buffer without shipping. Test hook.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = make(map[bufferKey]*bufferEntry)
	r.order = nil
	r.dropped = 0
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Pending reports the number of buffered keys. Test hook.
func (r *Reporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

func (r *Reporter) flushTimer() {
	batch := r.swap()
	r.post(context.Background(), batch)
}

// swap atomically replaces the buffer with a fresh container and renders
// the outgoing batch in key insertion order.
func (r *Reporter) swap() []any {
	r.mu.Lock()
	buffer := r.buffer
	order := r.order
	dropped := r.dropped
	r.buffer = make(map[bufferKey]*bufferEntry)
	r.order = nil
	r.dropped = 0
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()

	if dropped > 0 {
		slog.Warn("profile buffer bound exceeded, observations dropped",
			slog.Int64("dropped", dropped))
	}

	batch := make([]any, 0, len(order))
	for _, key := range order {
		entry, ok := buffer[key]
		if !ok {
			continue
		}
		values := make([]any, 0, len(entry.values))
		for _, v := range entry.values {
			var prov any
			if p, ok := r.tracker.Lookup(v); ok {
				prov = []any{p.Filename, p.Offset}
			}
			values = append(values, []any{v, prov})
		}
		batch = append(batch, []any{key.filename, key.offset, values, entry.metadata})
	}
	return batch
}

func (r *Reporter) post(ctx context.Context, batch []any) {
	if len(batch) == 0 || r.options.CollectorURL == "" {
		return
	}

	body, err := json.Marshal(batch)
	if err != nil {
		slog.Warn("profile batch marshal failed", slog.Any("error", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.options.CollectorURL, bytes.NewReader(body))
	if err != nil {
		slog.Warn("profile batch request failed", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.options.HTTPClient.Do(req)
	if err != nil {
		// At-most-once delivery: the batch is dropped, not retried.
		slog.Warn("profile batch post failed", slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("profile batch rejected", slog.Int("status", resp.StatusCode))
	}
}

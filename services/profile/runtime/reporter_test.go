package runtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capturedBatch struct {
	mu      sync.Mutex
	batches [][]byte
}

func (c *capturedBatch) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.batches = append(c.batches, body)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *capturedBatch) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *capturedBatch) last(t *testing.T) []any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		t.Fatal("no batch captured")
	}
	var batch []any
	if err := json.Unmarshal(c.batches[len(c.batches)-1], &batch); err != nil {
		t.Fatalf("batch is not a JSON array: %v", err)
	}
	return batch
}

func TestReporter_FlushShipsTupleBatch(t *testing.T) {
	var captured capturedBatch
	srv := httptest.NewServer(captured.handler())
	defer srv.Close()

	r := NewReporter(WithCollectorURL(srv.URL), WithFlushInterval(time.Hour))
	r.Record("f_param_a", 1, 12, "src/app.js", map[string]any{"functionName": "f"})
	r.Record("f_param_b", "x", 14, "src/app.js", nil)
	r.Flush(context.Background())

	batch := captured.last(t)
	if len(batch) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch))
	}

	rec, ok := batch[0].([]any)
	if !ok || len(rec) != 4 {
		t.Fatalf("expected 4-tuple record, got %v", batch[0])
	}
	if rec[0] != "src/app.js" || rec[1] != float64(12) {
		t.Errorf("unexpected record key: %v", rec[:2])
	}
	values, ok := rec[2].([]any)
	if !ok || len(values) != 1 {
		t.Fatalf("expected 1 value pair, got %v", rec[2])
	}
	pair := values[0].([]any)
	if pair[0] != float64(1) || pair[1] != nil {
		t.Errorf("unexpected value pair: %v", pair)
	}
}

func TestReporter_DeduplicatesPerKey(t *testing.T) {
	r := NewReporter(WithCollectorURL(""), WithFlushInterval(time.Hour))

	for i := 0; i < 5; i++ {
		r.Record("f_param_a", "same", 12, "src/app.js", nil)
	}
	r.Record("f_param_a", "other", 12, "src/app.js", nil)

	batch := r.swap()
	if len(batch) != 1 {
		t.Fatalf("expected 1 record, got %d", len(batch))
	}
	values := batch[0].([]any)[2].([]any)
	if len(values) != 2 {
		t.Errorf("expected 2 distinct values, got %d", len(values))
	}
}

func TestReporter_TimerFlushesAndBuffersNextBatch(t *testing.T) {
	var captured capturedBatch
	srv := httptest.NewServer(captured.handler())
	defer srv.Close()

	r := NewReporter(WithCollectorURL(srv.URL), WithFlushInterval(30*time.Millisecond))
	r.Record("f_param_a", 1, 12, "src/app.js", nil)

	deadline := time.Now().Add(2 * time.Second)
	for captured.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if captured.count() == 0 {
		t.Fatal("timer flush never fired")
	}
	if r.Pending() != 0 {
		t.Errorf("buffer not cleared after flush: %d keys", r.Pending())
	}

	// Observations after the flush accumulate into the next batch.
	r.Record("f_param_a", 2, 12, "src/app.js", nil)
	if r.Pending() != 1 {
		t.Errorf("expected 1 pending key, got %d", r.Pending())
	}
}

func TestReporter_NoTransportRetainsBuffer(t *testing.T) {
	r := NewReporter(WithCollectorURL(""), WithFlushInterval(10*time.Millisecond))
	r.Record("f_param_a", 1, 12, "src/app.js", nil)

	time.Sleep(50 * time.Millisecond)
	if r.Pending() != 1 {
		t.Errorf("buffer must be retained without transport, got %d keys", r.Pending())
	}
}

func TestReporter_BufferBound(t *testing.T) {
	r := NewReporter(WithCollectorURL(""), WithMaxBufferKeys(2))

	r.Record("a", 1, 1, "f.js", nil)
	r.Record("b", 1, 2, "f.js", nil)
	r.Record("c", 1, 3, "f.js", nil) // past the bound: dropped

	if r.Pending() != 2 {
		t.Errorf("expected bound of 2 keys, got %d", r.Pending())
	}
	// Existing keys still accept values.
	r.Record("a", 2, 1, "f.js", nil)
	batch := r.swap()
	if len(batch) != 2 {
		t.Errorf("expected 2 records, got %d", len(batch))
	}
}

func TestReporter_ProvenanceAttached(t *testing.T) {
	r := NewReporter(WithCollectorURL(""), WithFlushInterval(time.Hour))

	payload := map[string]any{"id": "a", "done": false}
	r.Track(payload, "src/factory.js", 99)
	r.Record("f_param_todo", payload, 12, "src/app.js", nil)

	batch := r.swap()
	values := batch[0].([]any)[2].([]any)
	pair := values[0].([]any)
	prov, ok := pair[1].([]any)
	if !ok {
		t.Fatalf("expected provenance pair, got %v", pair[1])
	}
	if prov[0] != "src/factory.js" || prov[1] != int64(99) {
		t.Errorf("unexpected provenance: %v", prov)
	}
}

func TestReporter_ResetClearsBuffer(t *testing.T) {
	r := NewReporter(WithCollectorURL(""))
	r.Record("a", 1, 1, "f.js", nil)
	r.Reset()
	if r.Pending() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", r.Pending())
	}
}

func TestDefaultReporter_LazyInit(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	Configure(WithCollectorURL(""), WithFlushInterval(time.Hour))
	Record("f_param_a", 1, 12, "src/app.js", nil)

	if Default().Pending() != 1 {
		t.Errorf("expected 1 pending key on default reporter, got %d", Default().Pending())
	}
}

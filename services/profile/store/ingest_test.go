package store

import (
	"context"
	"encoding/json"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func simpleRecord(filename string, offset int64, values ...any) Record {
	pairs := make([]ValuePair, 0, len(values))
	for _, v := range values {
		pairs = append(pairs, ValuePair{Value: v})
	}
	return Record{Filename: filename, Offset: offset, Values: pairs}
}

func TestApplyBatch_CreatesEntities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := simpleRecord("src/app.ts", 120, float64(1))
	rec.Metadata = Metadata{
		FunctionName:  strPtr("f"),
		ParameterName: strPtr("a"),
		Context:       strPtr("function_declaration_parameter"),
		LineNumber:    intPtr(3),
		ColumnNumber:  intPtr(11),
	}

	summary, err := s.ApplyBatch(ctx, []Record{rec})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if summary.NewEntities != 1 {
		t.Errorf("expected 1 new entity, got %d", summary.NewEntities)
	}

	rows, page, err := s.ListEntities(ctx, "", 0, 10)
	if err != nil {
		t.Fatalf("list entities: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 entity, got %d", page.Total)
	}
	e := rows[0]
	if e.Filename != "src/app.ts" || e.SourceOffset != 120 {
		t.Errorf("unexpected natural key: %s@%d", e.Filename, e.SourceOffset)
	}
	if e.EntityName != "f_param_a" {
		t.Errorf("expected entity_name 'f_param_a', got %q", e.EntityName)
	}
	if e.EntityType != "function_declaration_parameter" {
		t.Errorf("unexpected entity_type %q", e.EntityType)
	}
	if e.LineNumber != 3 || e.ColumnNumber != 11 {
		t.Errorf("unexpected position %d:%d", e.LineNumber, e.ColumnNumber)
	}
}

func TestApplyBatch_ReplayIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := []Record{simpleRecord("src/app.ts", 40, "success")}
	batch[0].Metadata = Metadata{
		FunctionName: strPtr("setStatus"),
		Context:      strPtr("parameter"),
	}

	for i := 0; i < 3; i++ {
		if _, err := s.ApplyBatch(ctx, batch); err != nil {
			t.Fatalf("apply batch %d: %v", i, err)
		}
	}

	rows, _, err := s.ListEntities(ctx, "", 0, 10)
	if err != nil {
		t.Fatalf("list entities: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 entity after replay, got %d", len(rows))
	}
	if rows[0].ObservationCount != 3 {
		t.Errorf("expected observation_count 3, got %d", rows[0].ObservationCount)
	}

	values, err := s.valuesForEntity(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("expected 1 value row after replay, got %d", len(values))
	}
	if values[0].ObservationCount != 3 {
		t.Errorf("expected value observation_count 3, got %d", values[0].ObservationCount)
	}
	if values[0].Context != "parameter_in_setStatus" {
		t.Errorf("expected enriched context, got %q", values[0].Context)
	}
}

func TestApplyBatch_StringLiteralScenario(t *testing.T) {
	// Four ingests of "success" at one entity: one string-literal row with
	// count 4 and one value-observation row with count 4.
	s := openTestStore(t)
	ctx := context.Background()

	rec := simpleRecord("src/status.ts", 77, "success")
	rec.Metadata = Metadata{FunctionName: strPtr("setStatus"), Context: strPtr("parameter")}

	for i := 0; i < 4; i++ {
		if _, err := s.ApplyBatch(ctx, []Record{rec}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	rows, err := s.AdHocQuery(ctx, "SELECT string_value, context, observation_count FROM string_literals", nil)
	if err != nil {
		t.Fatalf("query literals: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 string literal row, got %d", len(rows))
	}
	if rows[0]["string_value"] != "success" {
		t.Errorf("unexpected string_value %v", rows[0]["string_value"])
	}
	if rows[0]["observation_count"] != int64(4) {
		t.Errorf("expected count 4, got %v", rows[0]["observation_count"])
	}
	if rows[0]["context"] != "parameter_in_setStatus" {
		t.Errorf("unexpected context %v", rows[0]["context"])
	}
}

func TestApplyBatch_ObjectShapeScenario(t *testing.T) {
	// Three distinct objects with the same shape yield one shape row with
	// count 3 and the canonical key-sorted signature.
	s := openTestStore(t)
	ctx := context.Background()

	objects := []map[string]any{
		{"id": "a", "done": false},
		{"done": true, "id": "b"}, // key order must not matter
		{"id": "c", "done": false},
	}
	for _, obj := range objects {
		if _, err := s.ApplyBatch(ctx, []Record{simpleRecord("src/todo.ts", 9, obj)}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	rows, err := s.AdHocQuery(ctx, "SELECT shape_signature, observation_count, key_count FROM object_shapes", nil)
	if err != nil {
		t.Fatalf("query shapes: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 shape row, got %d", len(rows))
	}
	if rows[0]["shape_signature"] != "done:boolean,id:string" {
		t.Errorf("unexpected signature %v", rows[0]["shape_signature"])
	}
	if rows[0]["observation_count"] != int64(3) {
		t.Errorf("expected count 3, got %v", rows[0]["observation_count"])
	}
	if rows[0]["key_count"] != int64(2) {
		t.Errorf("expected key_count 2, got %v", rows[0]["key_count"])
	}
}

func TestApplyBatch_HOFRelationship(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := simpleRecord("src/routine.ts", 201, map[string]any{"x": float64(1)})
	rec.Metadata = Metadata{
		FunctionName:   strPtr("createRoutine_arg1"),
		ParameterName:  strPtr("payload"),
		Context:        strPtr("callback_argument_parameter"),
		CalleeName:     strPtr("createRoutine"),
		CalleeArgIndex: intPtr(1),
	}

	for i := 0; i < 2; i++ {
		if _, err := s.ApplyBatch(ctx, []Record{rec}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	rows, err := s.AdHocQuery(ctx, "SELECT callee_name, callee_arg_index, observation_count FROM hof_relationships", nil)
	if err != nil {
		t.Fatalf("query hof: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 hof row, got %d", len(rows))
	}
	if rows[0]["callee_name"] != "createRoutine" || rows[0]["callee_arg_index"] != int64(1) {
		t.Errorf("unexpected hof row %v", rows[0])
	}
	if rows[0]["observation_count"] != int64(2) {
		t.Errorf("expected count 2, got %v", rows[0]["observation_count"])
	}
}

func TestApplyBatch_MetadataNullLeavesPriorIntact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := simpleRecord("src/app.ts", 5, float64(1))
	first.Metadata = Metadata{
		FunctionName:  strPtr("f"),
		ParameterName: strPtr("a"),
		Context:       strPtr("function_declaration_parameter"),
		LineNumber:    intPtr(10),
		ColumnNumber:  intPtr(4),
	}
	if _, err := s.ApplyBatch(ctx, []Record{first}); err != nil {
		t.Fatalf("apply first: %v", err)
	}

	// Second record carries a function name but no position: the stored
	// position must survive.
	second := simpleRecord("src/app.ts", 5, float64(2))
	second.Metadata = Metadata{FunctionName: strPtr("f"), ParameterName: strPtr("a")}
	if _, err := s.ApplyBatch(ctx, []Record{second}); err != nil {
		t.Fatalf("apply second: %v", err)
	}

	rows, _, err := s.ListEntities(ctx, "", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rows[0].LineNumber != 10 || rows[0].ColumnNumber != 4 {
		t.Errorf("prior position lost: %d:%d", rows[0].LineNumber, rows[0].ColumnNumber)
	}
	if rows[0].EntityType != "function_declaration_parameter" {
		t.Errorf("prior entity_type lost: %q", rows[0].EntityType)
	}
}

func TestApplyBatch_EmptyBatchIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	summary, err := s.ApplyBatch(ctx, nil)
	if err != nil {
		t.Fatalf("apply empty batch: %v", err)
	}
	if summary.Records != 0 || summary.Values != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntities != 0 {
		t.Errorf("expected no entities, got %d", stats.TotalEntities)
	}
}

func TestRecord_UnmarshalBothWireShapes(t *testing.T) {
	tuple := `["src/app.ts", 42, [[1, null], ["x", ["src/app.ts", 7]]], {"functionName": "f", "unknownKey": true}]`
	var r Record
	if err := json.Unmarshal([]byte(tuple), &r); err != nil {
		t.Fatalf("unmarshal tuple form: %v", err)
	}
	if r.Filename != "src/app.ts" || r.Offset != 42 {
		t.Errorf("unexpected key %s@%d", r.Filename, r.Offset)
	}
	if len(r.Values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(r.Values))
	}
	if r.Values[1].Provenance == nil || r.Values[1].Provenance.Offset != 7 {
		t.Errorf("provenance not decoded: %+v", r.Values[1].Provenance)
	}
	if r.Metadata.FunctionName == nil || *r.Metadata.FunctionName != "f" {
		t.Errorf("metadata not decoded: %+v", r.Metadata)
	}

	keyed := `{"filename": "src/app.ts", "offset": 42, "values": [{"value": 1, "provenance": null}], "metadata": {"functionName": "f"}}`
	var k Record
	if err := json.Unmarshal([]byte(keyed), &k); err != nil {
		t.Fatalf("unmarshal keyed form: %v", err)
	}
	if k.Filename != r.Filename || k.Offset != r.Offset {
		t.Errorf("keyed form decoded differently: %+v", k)
	}

	var bad Record
	if err := json.Unmarshal([]byte(`["only", "two"]`), &bad); err == nil {
		t.Error("expected error for short tuple")
	}
}

func TestApplyBatch_ShapeFilterBounds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	big := make(map[string]any, 21)
	for i := 0; i < 21; i++ {
		big[string(rune('a'+i))] = float64(i)
	}
	batch := []Record{
		simpleRecord("src/x.ts", 1, map[string]any{}), // 0 keys: excluded
		simpleRecord("src/x.ts", 2, big),              // 21 keys: excluded
	}
	if _, err := s.ApplyBatch(ctx, batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	rows, err := s.AdHocQuery(ctx, "SELECT COUNT(*) AS n FROM object_shapes", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows[0]["n"] != int64(0) {
		t.Errorf("expected no shape rows, got %v", rows[0]["n"])
	}
}

package store

import (
	"strings"
	"testing"
)

func TestValueTypeOf(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{true, "boolean"},
		{float64(3.5), "number"},
		{"hello", "string"},
		{"undefined", "undefined"},
		{"[Date: 2026-01-02T03:04:05Z]", "date"},
		{"[RegExp: /ab+c/i]", "regexp"},
		{"[Function: addTodo]", "function"},
		{"[Function]", "function"},
		{"[HTMLElement<div>]", "HTMLElement<DIV>"},
		{"[Event<click>]", "Event<CLICK>"},
		{"[NodeList<>]", "NodeList"},
		{[]any{float64(1)}, "array"},
		{map[string]any{"a": float64(1)}, "object"},
	}
	for _, c := range cases {
		if got := ValueTypeOf(c.in); got != c.want {
			t.Errorf("ValueTypeOf(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLiteralValue_ArrayCap(t *testing.T) {
	arr := make([]any, 25)
	for i := range arr {
		arr[i] = float64(i)
	}
	literal := LiteralValue(arr)
	if strings.Count(literal, ",") != 9 {
		t.Errorf("expected 10 elements in capped array, got %q", literal)
	}
}

func TestLiteralValue_ByteCap(t *testing.T) {
	obj := map[string]any{"blob": strings.Repeat("x", 5000)}
	literal := LiteralValue(obj)
	if len(literal) > 1000 {
		t.Errorf("literal exceeds 1000 bytes: %d", len(literal))
	}
}

func TestLiteralValue_StableKeyOrder(t *testing.T) {
	a := map[string]any{"id": "a", "done": false, "description": "x"}
	b := map[string]any{"description": "x", "done": false, "id": "a"}
	if LiteralValue(a) != LiteralValue(b) {
		t.Errorf("literal differs by key order: %q vs %q", LiteralValue(a), LiteralValue(b))
	}
	if ValueHash(LiteralValue(a)) != ValueHash(LiteralValue(b)) {
		t.Error("hash differs by key order")
	}
}

func TestValueHash_Format(t *testing.T) {
	h := ValueHash(`"success"`)
	if len(h) != 8 {
		t.Errorf("expected 8 hex chars, got %q", h)
	}
	if h != ValueHash(`"success"`) {
		t.Error("hash not deterministic")
	}
}

func TestIsEnumCandidate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"success", true},
		{"a", true},
		{"in progress", true},
		{"one two three", true},
		{"one two three four", false}, // 4 tokens
		{"", false},
		{strings.Repeat("x", 51), false},
		{"path/to/file", false},
		{`back\slash`, false},
		{"http://example.com", false},
		{"https-ish", false}, // contains "http"
		{"12345", false},
		{"3.14", false},
		{"-42", false},
		{"v1.2", true}, // not purely numeric
	}
	for _, c := range cases {
		if got := IsEnumCandidate(c.in); got != c.want {
			t.Errorf("IsEnumCandidate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestShapeSignature(t *testing.T) {
	obj := map[string]any{
		"id":          "a1",
		"completed":   false,
		"description": "buy milk",
	}
	want := "completed:boolean,description:string,id:string"
	if got := ShapeSignature(obj); got != want {
		t.Errorf("ShapeSignature = %q, want %q", got, want)
	}

	if ShapeSignature(map[string]any{}) != "" {
		t.Error("empty object must be excluded")
	}

	big := make(map[string]any, 21)
	for i := 0; i < 21; i++ {
		big[strings.Repeat("k", i+1)] = float64(i)
	}
	if ShapeSignature(big) != "" {
		t.Error("21-key object must be excluded")
	}
}

func TestEnrichContext(t *testing.T) {
	if got := EnrichContext("parameter", "setStatus"); got != "parameter_in_setStatus" {
		t.Errorf("unexpected enriched context %q", got)
	}
	if got := EnrichContext("parameter", ""); got != "parameter" {
		t.Errorf("unexpected bare context %q", got)
	}
}

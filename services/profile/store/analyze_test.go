package store

import (
	"strings"
	"testing"
)

func TestSuggestEnumName(t *testing.T) {
	cases := []struct {
		filename string
		values   []string
		want     string
	}{
		{"src/status.ts", []string{"success", "error"}, "StatusStatus"},
		{"src/file-io.ts", []string{"read", "write"}, "FileIoMode"},
		{"src/codes.ts", []string{"ab", "cd", "ef"}, "CodesCode"},
		{"src/kind.ts", []string{"primary", "secondary"}, "KindType"},
		{"todo_store.ts", []string{"pending", "done"}, "TodoStoreStatus"},
	}
	for _, c := range cases {
		if got := SuggestEnumName(c.filename, c.values); got != c.want {
			t.Errorf("SuggestEnumName(%q, %v) = %q, want %q", c.filename, c.values, got, c.want)
		}
	}
}

func TestShapeDeclaration(t *testing.T) {
	decl := ShapeDeclaration("addTodo_param_todo", "completed:boolean,description:string,id:string")
	if !strings.HasPrefix(decl, "interface AddTodoParamTodo {") {
		t.Errorf("unexpected declaration header: %q", decl)
	}
	for _, want := range []string{"completed: boolean;", "description: string;", "id: string;"} {
		if !strings.Contains(decl, want) {
			t.Errorf("declaration missing %q:\n%s", want, decl)
		}
	}

	decl = ShapeDeclaration("", "items:array,meta:object")
	if !strings.Contains(decl, "interface ObservedShape") {
		t.Errorf("expected fallback name, got %q", decl)
	}
	if !strings.Contains(decl, "items: unknown[];") || !strings.Contains(decl, "meta: Record<string, unknown>;") {
		t.Errorf("unexpected composite field types:\n%s", decl)
	}
}

func TestClassifyAnnotations_Ranking(t *testing.T) {
	aggregates := []annotationAggregate{
		{entityID: 1, valueTypes: []string{"boolean"}, distinctValues: 1, observations: 100},
		{entityID: 2, valueTypes: []string{"string"}, distinctValues: 3, observations: 5},
		{entityID: 3, valueTypes: []string{"object"}, distinctValues: 2, observations: 50},
		{entityID: 4, valueTypes: []string{"number", "string"}, distinctValues: 4, observations: 80},
		{entityID: 5, valueTypes: []string{"string"}, distinctValues: 2, observations: 90},
	}

	out := ClassifyAnnotations(aggregates)

	var order []int64
	for _, c := range out {
		order = append(order, c.EntityID)
	}
	// enum (5 before 2 by observations), interface, union, then simple.
	want := []int64{5, 2, 3, 4, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", order, want)
		}
	}
}

func TestClassifyAnnotations_EdgeRules(t *testing.T) {
	cases := []struct {
		agg  annotationAggregate
		want string
	}{
		{annotationAggregate{valueTypes: []string{"string"}, distinctValues: 1}, AnnotationSimple},
		{annotationAggregate{valueTypes: []string{"string"}, distinctValues: 11}, AnnotationSimple},
		{annotationAggregate{valueTypes: []string{"number"}, distinctValues: 9}, AnnotationLiteralType},
		{annotationAggregate{valueTypes: []string{"number"}, distinctValues: 10}, AnnotationSimple},
		{annotationAggregate{valueTypes: []string{"boolean", "null"}}, AnnotationUnion},
	}
	for i, c := range cases {
		if got := classifyAnnotation(c.agg); got != c.want {
			t.Errorf("case %d: got %q, want %q", i, got, c.want)
		}
	}
}

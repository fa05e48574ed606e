// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// SuggestEnumName derives a synthetic enum name from the source filename
// and the observed string values.
//
// The suffix is picked from the vocabulary of the values: status-like
// values ("success", "error", ...) suggest Status, access-mode values
// ("read", "write") suggest Mode, otherwise short values suggest Code and
// longer values suggest Type. The prefix is the PascalCase filename stem.
func SuggestEnumName(filename string, values []string) string {
	prefix := pascalCase(stemOf(filename))
	return prefix + enumSuffix(values)
}

func stemOf(filename string) string {
	base := filepath.Base(filename)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func enumSuffix(values []string) string {
	lowered := make(map[string]bool, len(values))
	maxLen := 0
	for _, v := range values {
		lowered[strings.ToLower(v)] = true
		if len(v) > maxLen {
			maxLen = len(v)
		}
	}

	statusWords := []string{"success", "error", "pending", "failed", "done", "running", "active", "inactive"}
	for _, w := range statusWords {
		if lowered[w] {
			return "Status"
		}
	}
	modeWords := []string{"read", "write", "append", "readonly", "readwrite"}
	for _, w := range modeWords {
		if lowered[w] {
			return "Mode"
		}
	}
	if maxLen <= 4 {
		return "Code"
	}
	return "Type"
}

// pascalCase converts a file stem like "todo-store" or "set_status" into
// "TodoStore" / "SetStatus".
func pascalCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '-' || r == '_' || r == ' ' || r == '.' {
			upper = true
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ShapeDeclaration renders a shape signature as a TypeScript-style
// interface declaration, e.g.
//
//	interface AddTodoParamTodo {
//	  completed: boolean;
//	  description: string;
//	}
func ShapeDeclaration(entityName, signature string) string {
	name := pascalCase(entityName)
	if name == "" {
		name = "ObservedShape"
	}

	var b strings.Builder
	b.WriteString("interface ")
	b.WriteString(name)
	b.WriteString(" {\n")
	for _, field := range strings.Split(signature, ",") {
		key, typ, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(tsFieldType(typ))
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}

func tsFieldType(t string) string {
	switch t {
	case "string", "number", "boolean", "null", "undefined":
		return t
	case "array":
		return "unknown[]"
	case "date":
		return "Date"
	case "regexp":
		return "RegExp"
	case "function":
		return "Function"
	default:
		return "Record<string, unknown>"
	}
}

// Annotation kinds, in ranking order.
const (
	AnnotationEnum        = "enum"
	AnnotationInterface   = "interface"
	AnnotationUnion       = "union"
	AnnotationLiteralType = "literal-type"
	AnnotationSimple      = "simple"
)

var annotationRank = map[string]int{
	AnnotationEnum:        0,
	AnnotationInterface:   1,
	AnnotationUnion:       2,
	AnnotationLiteralType: 3,
	AnnotationSimple:      4,
}

// ClassifyAnnotations applies the annotation-kind rule to per-entity
// aggregates and returns them ranked by kind priority then observation
// count descending.
//
// Rule: string with 2-10 distinct values => enum; object => interface;
// number with fewer than 10 distinct values => literal-type; multiple
// distinct value types => union; else simple.
func ClassifyAnnotations(aggregates []annotationAggregate) []AnnotationCandidate {
	out := make([]AnnotationCandidate, 0, len(aggregates))
	for _, a := range aggregates {
		out = append(out, AnnotationCandidate{
			EntityID:          a.entityID,
			EntityName:        a.entityName,
			EntityType:        a.entityType,
			Filename:          a.filename,
			LineNumber:        a.lineNumber,
			Kind:              classifyAnnotation(a),
			ValueTypes:        a.valueTypes,
			DistinctValues:    a.distinctValues,
			TotalObservations: a.observations,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := annotationRank[out[i].Kind], annotationRank[out[j].Kind]
		if ri != rj {
			return ri < rj
		}
		return out[i].TotalObservations > out[j].TotalObservations
	})
	return out
}

func classifyAnnotation(a annotationAggregate) string {
	if len(a.valueTypes) > 1 {
		return AnnotationUnion
	}
	if len(a.valueTypes) != 1 {
		return AnnotationSimple
	}
	switch a.valueTypes[0] {
	case "string":
		if a.distinctValues >= 2 && a.distinctValues <= 10 {
			return AnnotationEnum
		}
	case "object":
		return AnnotationInterface
	case "number":
		if a.distinctValues < 10 {
			return AnnotationLiteralType
		}
	}
	return AnnotationSimple
}

// splitConcat splits a GROUP_CONCAT result into its distinct elements.
func splitConcat(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runtime is the in-process reporting side of the type-profile
// pipeline for server hosts: it serialises observed values into JSON-safe
// surrogates, deduplicates them per program point, and ships them to the
// collector in timed batches.
package runtime

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Sentinel surrogates.
const (
	circularRef  = "[Circular Reference]"
	undefinedTag = "undefined"
)

// Host-kind capabilities. A value advertising one of these interfaces is
// replaced by a tagged placeholder before serialisation, the way a browser
// runtime replaces DOM elements, events, and node collections. Server
// hosts that never construct such values simply never trigger these
// branches.
type (
	// ElementLike marks a DOM-element-like host object.
	ElementLike interface{ TagName() string }
	// EventLike marks an event-like host object.
	EventLike interface{ EventType() string }
	// NodeListLike marks a node-collection-like host object.
	NodeListLike interface{ NodeCount() int }
)

const (
	// maxSerializedBytes caps a single value's serialised footprint; a
	// larger value is replaced by its structural descriptor.
	maxSerializedBytes = 4096
	// maxDepth bounds recursion independently of cycle detection.
	maxDepth = 16
)

// Serialize produces a JSON-safe surrogate for any value without
// panicking.
//
// Rules, in order: primitives and nil pass through; known host kinds
// become tagged placeholder strings; composites serialise with cycle
// detection (a revisited reference becomes "[Circular Reference]"); any
// serialiser fault yields "[Serialization Error: <reason>]"; an oversized
// result is replaced by a shallow structural descriptor.
func Serialize(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("[Serialization Error: %v]", r)
		}
	}()

	out = serialize(v, make(map[uintptr]bool), 0)
	if tooLarge(out) {
		out = Describe(v)
	}
	return out
}

func serialize(v any, visited map[uintptr]bool, depth int) any {
	if v == nil {
		return nil
	}
	if depth > maxDepth {
		return circularRef
	}

	switch val := v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case time.Time:
		return "[Date: " + val.UTC().Format(time.RFC3339) + "]"
	case *regexp.Regexp:
		return "[RegExp: /" + val.String() + "/]"
	case ElementLike:
		return "[HTMLElement<" + strings.ToUpper(val.TagName()) + ">]"
	case EventLike:
		return "[Event<" + val.EventType() + ">]"
	case NodeListLike:
		return fmt.Sprintf("[NodeList<%d>]", val.NodeCount())
	case error:
		return val.Error()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return "[Function]"
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Ptr {
			addr := rv.Pointer()
			if visited[addr] {
				return circularRef
			}
			visited[addr] = true
			defer delete(visited, addr)
		}
		return serialize(rv.Elem().Interface(), visited, depth+1)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return nil
			}
			addr := rv.Pointer()
			if visited[addr] {
				return circularRef
			}
			visited[addr] = true
			defer delete(visited, addr)
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, serialize(rv.Index(i).Interface(), visited, depth+1))
		}
		return out

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		addr := rv.Pointer()
		if visited[addr] {
			return circularRef
		}
		visited[addr] = true
		defer delete(visited, addr)

		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = serialize(iter.Value().Interface(), visited, depth+1)
		}
		return out

	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			out[name] = serialize(rv.Field(i).Interface(), visited, depth+1)
		}
		return out

	case reflect.Chan, reflect.UnsafePointer:
		return "[" + rv.Kind().String() + "]"
	}

	return fmt.Sprint(v)
}

// Describe produces the shallow structural descriptor substituted for
// oversized values: the composite kind, its size, and the kinds of its
// top-level elements.
func Describe(v any) map[string]any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		kinds := make([]string, 0, 10)
		for i := 0; i < rv.Len() && i < 10; i++ {
			kinds = append(kinds, kindOf(rv.Index(i).Interface()))
		}
		return map[string]any{"kind": "array", "length": rv.Len(), "elements": kinds}
	case reflect.Map:
		kinds := make(map[string]string, 10)
		iter := rv.MapRange()
		for iter.Next() {
			if len(kinds) >= 10 {
				break
			}
			kinds[fmt.Sprint(iter.Key().Interface())] = kindOf(iter.Value().Interface())
		}
		return map[string]any{"kind": "object", "size": rv.Len(), "fields": kinds}
	default:
		return map[string]any{"kind": kindOf(v)}
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Func:
		return "function"
	default:
		return "object"
	}
}

func tooLarge(v any) bool {
	return approxSize(v, 0) > maxSerializedBytes
}

// approxSize estimates the serialised footprint without marshaling.
func approxSize(v any, depth int) int {
	if depth > maxDepth {
		return 0
	}
	switch val := v.(type) {
	case nil:
		return 4
	case bool:
		return 5
	case string:
		return len(val) + 2
	case []any:
		n := 2
		for _, e := range val {
			n += approxSize(e, depth+1) + 1
		}
		return n
	case map[string]any:
		n := 2
		for k, e := range val {
			n += len(k) + 3 + approxSize(e, depth+1) + 1
		}
		return n
	default:
		return 16
	}
}

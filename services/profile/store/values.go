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
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Literal caps applied before hashing. Values whose serialisation exceeds
// these bounds are truncated so the content hash stays stable and cheap.
const (
	maxLiteralBytes   = 1000
	maxArrayElements  = 10
	maxShapeKeys      = 20
	maxEnumStringLen  = 50
	maxEnumTokenCount = 3
)

// Surrogate markers produced by the runtime library. The collector reads
// them back into value types; see ValueTypeOf.
var (
	hostTagPattern = regexp.MustCompile(`^\[(HTMLElement|Event|NodeList)<([A-Za-z0-9_-]*)>\]$`)
	datePattern    = regexp.MustCompile(`^\[Date: .*\]$`)
	regexpPattern  = regexp.MustCompile(`^\[RegExp: .*\]$`)
	funcPattern    = regexp.MustCompile(`^\[Function(: [A-Za-z0-9_$]+)?\]$`)
)

// ValueTypeOf classifies a decoded surrogate value into the stored
// value_type vocabulary: string, number, boolean, null, undefined, array,
// object, date, regexp, function, or a derived host-type tag such as
// "HTMLElement<DIV>".
func ValueTypeOf(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64, json.Number:
		return "number"
	case string:
		switch {
		case val == "undefined":
			return "undefined"
		case datePattern.MatchString(val):
			return "date"
		case regexpPattern.MatchString(val):
			return "regexp"
		case funcPattern.MatchString(val):
			return "function"
		}
		if m := hostTagPattern.FindStringSubmatch(val); m != nil {
			if m[2] != "" {
				return m[1] + "<" + strings.ToUpper(m[2]) + ">"
			}
			return m[1]
		}
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "object"
	}
}

// LiteralValue produces the capped JSON serialisation stored as
// literal_value: arrays keep at most 10 elements, any serialisation is
// truncated at 1000 bytes. Plain strings are stored raw, without quotes.
func LiteralValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return capBytes(val)
	case []any:
		capped := val
		if len(capped) > maxArrayElements {
			capped = capped[:maxArrayElements]
		}
		return capBytes(marshalStable(capped))
	case map[string]any:
		return capBytes(marshalStable(val))
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return "[Serialization Error: " + err.Error() + "]"
		}
		return capBytes(string(out))
	}
}

// marshalStable serialises maps with lexicographically sorted keys so the
// literal, and therefore the content hash, is independent of map iteration
// order.
func marshalStable(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			b.WriteString(marshalStable(val[k]))
		}
		b.WriteByte('}')
		return b.String()
	case []any:
		var b strings.Builder
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(marshalStable(e))
		}
		b.WriteByte(']')
		return b.String()
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return `"[Serialization Error]"`
		}
		return string(out)
	}
}

func capBytes(s string) string {
	if len(s) > maxLiteralBytes {
		return s[:maxLiteralBytes]
	}
	return s
}

// ValueHash is the first 8 hex characters of MD5 over the literal value.
// It is a dedup key, not a security boundary.
func ValueHash(literal string) string {
	sum := md5.Sum([]byte(literal))
	return hex.EncodeToString(sum[:])[:8]
}

// EnrichContext combines the entity context with the enclosing function
// name when one is known: "parameter_in_setStatus".
func EnrichContext(entityContext, functionName string) string {
	if functionName == "" {
		return entityContext
	}
	return entityContext + "_in_" + functionName
}

// IsEnumCandidate reports whether a string observation is plausibly
// enum-like and should be recorded in the string-literal table: length
// 1-50, at most 3 whitespace-separated tokens, no path or URL markers,
// not purely numeric.
func IsEnumCandidate(s string) bool {
	if len(s) == 0 || len(s) > maxEnumStringLen {
		return false
	}
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	if strings.Contains(strings.ToLower(s), "http") {
		return false
	}
	if isNumericString(s) {
		return false
	}
	if len(strings.Fields(s)) > maxEnumTokenCount {
		return false
	}
	return true
}

func isNumericString(s string) bool {
	seen := false
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != '-' && r != '+' {
			return false
		}
		if unicode.IsDigit(r) {
			seen = true
		}
	}
	return seen
}

// ShapeSignature computes the canonical shape fingerprint of a non-array
// object: keys sorted lexicographically, each annotated with the value
// type, joined by commas. Returns "" when the object is outside the 1-20
// key bounds and should not be recorded.
func ShapeSignature(obj map[string]any) string {
	if len(obj) == 0 || len(obj) > maxShapeKeys {
		return ""
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+shapeFieldType(obj[k]))
	}
	return strings.Join(parts, ",")
}

// shapeFieldType is the primitive-or-composite annotation used inside
// shape signatures. Host tags collapse to their base kind so signatures
// stay comparable across hosts.
func shapeFieldType(v any) string {
	t := ValueTypeOf(v)
	switch t {
	case "string", "number", "boolean", "null", "undefined", "array", "object", "date", "regexp", "function":
		return t
	default:
		return "object"
	}
}

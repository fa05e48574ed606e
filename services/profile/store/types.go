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
	"encoding/json"
	"fmt"
)

// Entity is one instrumented program point, identified by the natural key
// (filename, source_offset). Rows are created on first observation and only
// ever mutated (observation_count, last_seen) afterwards.
type Entity struct {
	ID               int64  `json:"id"`
	Filename         string `json:"filename"`
	SourceOffset     int64  `json:"source_offset"`
	EntityName       string `json:"entity_name"`
	EntityType       string `json:"entity_type"`
	LineNumber       int    `json:"line_number"`
	ColumnNumber     int    `json:"column_number"`
	ObservationCount int64  `json:"observation_count"`
	FirstSeen        int64  `json:"first_seen"`
	LastSeen         int64  `json:"last_seen"`
}

// ValueObservation is one deduplicated runtime value seen at an entity.
// Uniqueness key: (entity_id, value_hash, context).
type ValueObservation struct {
	ID               int64  `json:"id"`
	EntityID         int64  `json:"entity_id"`
	ValueType        string `json:"value_type"`
	LiteralValue     string `json:"literal_value"`
	ValueHash        string `json:"value_hash"`
	Context          string `json:"context"`
	ObservationCount int64  `json:"observation_count"`
	FirstSeen        int64  `json:"first_seen"`
	LastSeen         int64  `json:"last_seen"`
}

// StringLiteral records an enum-candidate string against its entity.
// Uniqueness key: (entity_id, string_value, context).
type StringLiteral struct {
	ID               int64  `json:"id"`
	EntityID         int64  `json:"entity_id"`
	StringValue      string `json:"string_value"`
	Context          string `json:"context"`
	ObservationCount int64  `json:"observation_count"`
	FirstSeen        int64  `json:"first_seen"`
	LastSeen         int64  `json:"last_seen"`
}

// ObjectShape records a canonical key-sorted shape signature for a
// non-array object observed at an entity.
// Uniqueness key: (entity_id, shape_signature).
type ObjectShape struct {
	ID               int64  `json:"id"`
	EntityID         int64  `json:"entity_id"`
	ShapeSignature   string `json:"shape_signature"`
	KeyCount         int    `json:"key_count"`
	ObservationCount int64  `json:"observation_count"`
	FirstSeen        int64  `json:"first_seen"`
	LastSeen         int64  `json:"last_seen"`
}

// HOFRelationship links a callback-parameter entity to the call it was
// passed to. The callee name is the denormalised textual path captured at
// instrumentation time; it is never resolved to a live binding.
// Uniqueness key: (entity_id, callee_name, callee_arg_index).
type HOFRelationship struct {
	ID               int64  `json:"id"`
	EntityID         int64  `json:"entity_id"`
	CalleeName       string `json:"callee_name"`
	CalleeArgIndex   int    `json:"callee_arg_index"`
	ObservationCount int64  `json:"observation_count"`
	FirstSeen        int64  `json:"first_seen"`
	LastSeen         int64  `json:"last_seen"`
}

// Provenance is the instrumenter-injected origin attached to a tracked
// composite value: the program point that constructed it.
type Provenance struct {
	Filename string `json:"filename"`
	Offset   int64  `json:"offset"`
}

// UnmarshalJSON accepts both the positional pair form ["file.ts", 42] and
// the keyed form {"filename": "file.ts", "offset": 42}.
func (p *Provenance) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err == nil {
		if len(tuple) != 2 {
			return fmt.Errorf("provenance tuple has %d elements, want 2", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &p.Filename); err != nil {
			return fmt.Errorf("provenance filename: %w", err)
		}
		if err := json.Unmarshal(tuple[1], &p.Offset); err != nil {
			return fmt.Errorf("provenance offset: %w", err)
		}
		return nil
	}

	type keyed Provenance
	var k keyed
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("provenance: %w", err)
	}
	*p = Provenance(k)
	return nil
}

// ValuePair is one (value, provenance_or_null) element of a record's value
// list. The value is already in the runtime library's surrogate form.
type ValuePair struct {
	Value      any
	Provenance *Provenance
}

// UnmarshalJSON accepts both the positional pair [value, provenance] and
// the keyed form {"value": ..., "provenance": ...}.
func (v *ValuePair) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err == nil {
		if len(tuple) < 1 || len(tuple) > 2 {
			return fmt.Errorf("value pair has %d elements, want 1 or 2", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &v.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		if len(tuple) == 2 && string(tuple[1]) != "null" {
			v.Provenance = &Provenance{}
			if err := json.Unmarshal(tuple[1], v.Provenance); err != nil {
				return fmt.Errorf("value provenance: %w", err)
			}
		}
		return nil
	}

	var k struct {
		Value      any         `json:"value"`
		Provenance *Provenance `json:"provenance"`
	}
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("value pair: %w", err)
	}
	v.Value = k.Value
	v.Provenance = k.Provenance
	return nil
}

// MarshalJSON always emits the positional pair form.
func (v ValuePair) MarshalJSON() ([]byte, error) {
	if v.Provenance == nil {
		return json.Marshal([]any{v.Value, nil})
	}
	return json.Marshal([]any{v.Value, []any{v.Provenance.Filename, v.Provenance.Offset}})
}

// Metadata carries the optional per-record instrumentation metadata.
// Unknown keys on the wire are ignored. Pointer fields distinguish
// "absent" from zero values: absent fields leave prior store state intact.
type Metadata struct {
	FunctionName   *string `json:"functionName"`
	ParameterName  *string `json:"parameterName"`
	ParameterIndex *int    `json:"parameterIndex"`
	ParameterType  *string `json:"parameterType"`
	HasDefault     *bool   `json:"hasDefault"`
	IsDestructured *bool   `json:"isDestructured"`
	IsRest         *bool   `json:"isRest"`
	Accessibility  *string `json:"accessibility"`
	Context        *string `json:"context"`
	LineNumber     *int    `json:"lineNumber"`
	ColumnNumber   *int    `json:"columnNumber"`
	CalleeName     *string `json:"calleeName"`
	CalleeArgIndex *int    `json:"calleeArgIndex"`
}

// Record is one batch element: an observation set for a single entity.
type Record struct {
	Filename string
	Offset   int64
	Values   []ValuePair
	Metadata Metadata
}

// UnmarshalJSON accepts both wire shapes: the positional 4-tuple
// [filename, offset, values, metadata] and the equivalent keyed object.
func (r *Record) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err == nil {
		if len(tuple) != 4 {
			return fmt.Errorf("record tuple has %d elements, want 4", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &r.Filename); err != nil {
			return fmt.Errorf("record filename: %w", err)
		}
		if err := json.Unmarshal(tuple[1], &r.Offset); err != nil {
			return fmt.Errorf("record offset: %w", err)
		}
		if err := json.Unmarshal(tuple[2], &r.Values); err != nil {
			return fmt.Errorf("record values: %w", err)
		}
		if string(tuple[3]) != "null" {
			if err := json.Unmarshal(tuple[3], &r.Metadata); err != nil {
				return fmt.Errorf("record metadata: %w", err)
			}
		}
		return nil
	}

	var k struct {
		Filename string      `json:"filename"`
		Offset   int64       `json:"offset"`
		Values   []ValuePair `json:"values"`
		Metadata Metadata    `json:"metadata"`
	}
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if k.Filename == "" {
		return fmt.Errorf("record missing filename")
	}
	r.Filename = k.Filename
	r.Offset = k.Offset
	r.Values = k.Values
	r.Metadata = k.Metadata
	return nil
}

// MarshalJSON always emits the positional 4-tuple wire form.
func (r Record) MarshalJSON() ([]byte, error) {
	values := r.Values
	if values == nil {
		values = []ValuePair{}
	}
	return json.Marshal([]any{r.Filename, r.Offset, values, r.Metadata})
}

// IngestSummary reports what one batch changed, for metrics and the live
// observation feed.
type IngestSummary struct {
	Records      int `json:"records"`
	Values       int `json:"values"`
	NewEntities  int `json:"new_entities"`
	Files        int `json:"files"`
	HOFRelations int `json:"hof_relations"`
}

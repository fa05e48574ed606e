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
	"context"
	"database/sql"
	"fmt"
)

// Page carries the pagination envelope every list query returns.
type Page struct {
	Offset  int   `json:"offset"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

func pageOf(offset, limit int, total int64) Page {
	return Page{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		HasMore: int64(offset+limit) < total,
	}
}

// Stats are the aggregate store counts for the /stats endpoint.
type Stats struct {
	TotalEntities     int64            `json:"total_entities"`
	TotalObservations int64            `json:"total_observations"`
	DistinctFiles     int64            `json:"distinct_files"`
	ValueTypes        map[string]int64 `json:"value_types"`
}

// GetStats returns aggregate counts over the whole store.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ValueTypes: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entities),
			(SELECT COALESCE(SUM(observation_count), 0) FROM value_observations),
			(SELECT COUNT(DISTINCT filename) FROM entities)`,
	).Scan(&stats.TotalEntities, &stats.TotalObservations, &stats.DistinctFiles)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT value_type, SUM(observation_count)
		FROM value_observations
		GROUP BY value_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("query value type distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vt string
		var n int64
		if err := rows.Scan(&vt, &n); err != nil {
			return nil, fmt.Errorf("scan value type: %w", err)
		}
		stats.ValueTypes[vt] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate value types: %w", err)
	}
	return stats, nil
}

// EntityRow is one /entities result: the entity joined with its distinct
// value-observation count.
type EntityRow struct {
	Entity
	ValueCount int64 `json:"value_count"`
}

// ListEntities returns entities ordered by last_seen descending,
// optionally filtered by a filename substring.
func (s *Store) ListEntities(ctx context.Context, filenameFilter string, offset, limit int) ([]EntityRow, Page, error) {
	where := ""
	args := []any{}
	if filenameFilter != "" {
		where = "WHERE e.filename LIKE ?"
		args = append(args, "%"+filenameFilter+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities e "+where, args...,
	).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count entities: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.filename, e.source_offset, e.entity_name, e.entity_type,
		       e.line_number, e.column_number, e.observation_count, e.first_seen, e.last_seen,
		       (SELECT COUNT(*) FROM value_observations v WHERE v.entity_id = e.id)
		FROM entities e
		%s
		ORDER BY e.last_seen DESC, e.id DESC
		LIMIT ? OFFSET ?`, where)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Page{}, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	out := make([]EntityRow, 0, limit)
	for rows.Next() {
		var r EntityRow
		if err := rows.Scan(&r.ID, &r.Filename, &r.SourceOffset, &r.EntityName, &r.EntityType,
			&r.LineNumber, &r.ColumnNumber, &r.ObservationCount, &r.FirstSeen, &r.LastSeen,
			&r.ValueCount); err != nil {
			return nil, Page{}, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, fmt.Errorf("iterate entities: %w", err)
	}
	return out, pageOf(offset, limit, total), nil
}

// CallRow is one /calls result: a value observation joined with its entity.
type CallRow struct {
	EntityID         int64  `json:"entity_id"`
	EntityName       string `json:"entity_name"`
	EntityType       string `json:"entity_type"`
	Filename         string `json:"filename"`
	LineNumber       int    `json:"line_number"`
	ValueType        string `json:"value_type"`
	LiteralValue     string `json:"literal_value"`
	Context          string `json:"context"`
	ObservationCount int64  `json:"observation_count"`
	LastSeen         int64  `json:"last_seen"`
}

// ListCalls returns one row per (entity, value_type, literal_value),
// ordered by recency then call count, optionally filtered by filename
// substring and function-name substring.
func (s *Store) ListCalls(ctx context.Context, filepathFilter, functionFilter string, offset, limit int) ([]CallRow, Page, error) {
	where := "WHERE 1=1"
	args := []any{}
	if filepathFilter != "" {
		where += " AND e.filename LIKE ?"
		args = append(args, "%"+filepathFilter+"%")
	}
	if functionFilter != "" {
		where += " AND (e.entity_name LIKE ? OR v.context LIKE ?)"
		args = append(args, "%"+functionFilter+"%", "%"+functionFilter+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM value_observations v JOIN entities e ON e.id = v.entity_id `+where, args...,
	).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count calls: %w", err)
	}

	query := `
		SELECT e.id, e.entity_name, e.entity_type, e.filename, e.line_number,
		       v.value_type, v.literal_value, v.context, v.observation_count, v.last_seen
		FROM value_observations v JOIN entities e ON e.id = v.entity_id ` + where + `
		ORDER BY v.last_seen DESC, v.observation_count DESC, v.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Page{}, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	out := make([]CallRow, 0, limit)
	for rows.Next() {
		var r CallRow
		if err := rows.Scan(&r.EntityID, &r.EntityName, &r.EntityType, &r.Filename, &r.LineNumber,
			&r.ValueType, &r.LiteralValue, &r.Context, &r.ObservationCount, &r.LastSeen); err != nil {
			return nil, Page{}, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, fmt.Errorf("iterate calls: %w", err)
	}
	return out, pageOf(offset, limit, total), nil
}

// LocationEntity is one /location result: an entity at the requested
// coordinates together with all of its observed values.
type LocationEntity struct {
	Entity
	Values []ValueObservation `json:"values"`
}

// EntitiesAtLocation returns entities matching (filename, line_number) and
// optionally column_number, each with its observed values.
func (s *Store) EntitiesAtLocation(ctx context.Context, filename string, line int, column *int) ([]LocationEntity, error) {
	query := `
		SELECT id, filename, source_offset, entity_name, entity_type,
		       line_number, column_number, observation_count, first_seen, last_seen
		FROM entities
		WHERE filename = ? AND line_number = ?`
	args := []any{filename, line}
	if column != nil {
		query += " AND column_number = ?"
		args = append(args, *column)
	}
	query += " ORDER BY column_number ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities at location: %w", err)
	}
	defer rows.Close()

	out := make([]LocationEntity, 0, 4)
	for rows.Next() {
		var e LocationEntity
		if err := rows.Scan(&e.ID, &e.Filename, &e.SourceOffset, &e.EntityName, &e.EntityType,
			&e.LineNumber, &e.ColumnNumber, &e.ObservationCount, &e.FirstSeen, &e.LastSeen); err != nil {
			return nil, fmt.Errorf("scan location entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location entities: %w", err)
	}

	for i := range out {
		values, err := s.valuesForEntity(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Values = values
	}
	return out, nil
}

func (s *Store) valuesForEntity(ctx context.Context, entityID int64) ([]ValueObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, value_type, literal_value, value_hash, context,
		       observation_count, first_seen, last_seen
		FROM value_observations
		WHERE entity_id = ?
		ORDER BY observation_count DESC, id ASC`, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query values for entity: %w", err)
	}
	defer rows.Close()

	var values []ValueObservation
	for rows.Next() {
		var v ValueObservation
		if err := rows.Scan(&v.ID, &v.EntityID, &v.ValueType, &v.LiteralValue, &v.ValueHash,
			&v.Context, &v.ObservationCount, &v.FirstSeen, &v.LastSeen); err != nil {
			return nil, fmt.Errorf("scan value observation: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate value observations: %w", err)
	}
	return values, nil
}

// EnumCandidate is one /enums result: an entity whose string observations
// satisfy the enum thresholds, with the synthetic name suggestion.
type EnumCandidate struct {
	EntityID          int64    `json:"entity_id"`
	EntityName        string   `json:"entity_name"`
	Filename          string   `json:"filename"`
	LineNumber        int      `json:"line_number"`
	Values            []string `json:"values"`
	UniqueStrings     int      `json:"unique_strings"`
	TotalObservations int64    `json:"total_observations"`
	SuggestedEnumName string   `json:"suggested_enum_name"`
}

// EnumCandidates returns entities with at least minObservations string
// observations and between minUniqueStrings and 20 distinct strings.
func (s *Store) EnumCandidates(ctx context.Context, minObservations int64, minUniqueStrings, offset, limit int) ([]EnumCandidate, Page, error) {
	if minUniqueStrings < 2 {
		minUniqueStrings = 2
	}

	const filter = `
		FROM string_literals l JOIN entities e ON e.id = l.entity_id
		GROUP BY l.entity_id
		HAVING COUNT(DISTINCT l.string_value) BETWEEN ? AND 20
		   AND SUM(l.observation_count) >= ?`

	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM (SELECT l.entity_id "+filter+")",
		minUniqueStrings, minObservations,
	).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count enum candidates: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.entity_id, e.entity_name, e.filename, e.line_number,
		       COUNT(DISTINCT l.string_value), SUM(l.observation_count), MAX(l.last_seen)`+filter+`
		ORDER BY SUM(l.observation_count) DESC, l.entity_id ASC
		LIMIT ? OFFSET ?`,
		minUniqueStrings, minObservations, limit, offset,
	)
	if err != nil {
		return nil, Page{}, fmt.Errorf("query enum candidates: %w", err)
	}
	defer rows.Close()

	out := make([]EnumCandidate, 0, limit)
	for rows.Next() {
		var c EnumCandidate
		var lastSeen int64
		if err := rows.Scan(&c.EntityID, &c.EntityName, &c.Filename, &c.LineNumber,
			&c.UniqueStrings, &c.TotalObservations, &lastSeen); err != nil {
			return nil, Page{}, fmt.Errorf("scan enum candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, fmt.Errorf("iterate enum candidates: %w", err)
	}

	for i := range out {
		values, err := s.stringsForEntity(ctx, out[i].EntityID)
		if err != nil {
			return nil, Page{}, err
		}
		out[i].Values = values
		out[i].SuggestedEnumName = SuggestEnumName(out[i].Filename, values)
	}
	return out, pageOf(offset, limit, total), nil
}

func (s *Store) stringsForEntity(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT string_value
		FROM string_literals
		WHERE entity_id = ?
		ORDER BY string_value ASC`, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query strings for entity: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan string literal: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate string literals: %w", err)
	}
	return values, nil
}

// ShapeRow is one /shapes result: a recurring object shape with the
// synthetic composite-type declaration.
type ShapeRow struct {
	EntityID         int64  `json:"entity_id"`
	EntityName       string `json:"entity_name"`
	Filename         string `json:"filename"`
	LineNumber       int    `json:"line_number"`
	ShapeSignature   string `json:"shape_signature"`
	KeyCount         int    `json:"key_count"`
	ObservationCount int64  `json:"observation_count"`
	Declaration      string `json:"declaration"`
}

// ListShapes returns shape records with at least minObservations
// occurrences, most frequent first.
func (s *Store) ListShapes(ctx context.Context, minObservations int64, offset, limit int) ([]ShapeRow, Page, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM object_shapes WHERE observation_count >= ?`,
		minObservations,
	).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count shapes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.entity_id, e.entity_name, e.filename, e.line_number,
		       o.shape_signature, o.key_count, o.observation_count
		FROM object_shapes o JOIN entities e ON e.id = o.entity_id
		WHERE o.observation_count >= ?
		ORDER BY o.observation_count DESC, o.id ASC
		LIMIT ? OFFSET ?`,
		minObservations, limit, offset,
	)
	if err != nil {
		return nil, Page{}, fmt.Errorf("query shapes: %w", err)
	}
	defer rows.Close()

	out := make([]ShapeRow, 0, limit)
	for rows.Next() {
		var r ShapeRow
		if err := rows.Scan(&r.EntityID, &r.EntityName, &r.Filename, &r.LineNumber,
			&r.ShapeSignature, &r.KeyCount, &r.ObservationCount); err != nil {
			return nil, Page{}, fmt.Errorf("scan shape: %w", err)
		}
		r.Declaration = ShapeDeclaration(r.EntityName, r.ShapeSignature)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, fmt.Errorf("iterate shapes: %w", err)
	}
	return out, pageOf(offset, limit, total), nil
}

// AnnotationCandidate is one /annotations result: an entity classified
// into an annotation kind with supporting counts.
type AnnotationCandidate struct {
	EntityID          int64    `json:"entity_id"`
	EntityName        string   `json:"entity_name"`
	EntityType        string   `json:"entity_type"`
	Filename          string   `json:"filename"`
	LineNumber        int      `json:"line_number"`
	Kind              string   `json:"kind"`
	ValueTypes        []string `json:"value_types"`
	DistinctValues    int      `json:"distinct_values"`
	TotalObservations int64    `json:"total_observations"`
}

// annotationAggregate is the per-entity rollup the classifier consumes.
type annotationAggregate struct {
	entityID       int64
	entityName     string
	entityType     string
	filename       string
	lineNumber     int
	valueTypes     []string
	distinctValues int
	observations   int64
}

// AnnotationCandidates classifies entities into annotation kinds (enum,
// interface, union, literal-type, simple) and ranks them by kind priority
// then observation count.
func (s *Store) AnnotationCandidates(ctx context.Context, offset, limit int) ([]AnnotationCandidate, Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.entity_name, e.entity_type, e.filename, e.line_number,
		       GROUP_CONCAT(DISTINCT v.value_type),
		       COUNT(DISTINCT v.value_hash),
		       SUM(v.observation_count)
		FROM entities e JOIN value_observations v ON v.entity_id = e.id
		GROUP BY e.id
		ORDER BY e.id ASC`,
	)
	if err != nil {
		return nil, Page{}, fmt.Errorf("query annotation aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []annotationAggregate
	for rows.Next() {
		var a annotationAggregate
		var types sql.NullString
		if err := rows.Scan(&a.entityID, &a.entityName, &a.entityType, &a.filename, &a.lineNumber,
			&types, &a.distinctValues, &a.observations); err != nil {
			return nil, Page{}, fmt.Errorf("scan annotation aggregate: %w", err)
		}
		if types.Valid {
			a.valueTypes = splitConcat(types.String)
		}
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, fmt.Errorf("iterate annotation aggregates: %w", err)
	}

	candidates := ClassifyAnnotations(aggregates)
	total := int64(len(candidates))

	if offset >= len(candidates) {
		return []AnnotationCandidate{}, pageOf(offset, limit, total), nil
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end], pageOf(offset, limit, total), nil
}

// AdHocQuery executes a single statement with parameter binding and
// returns the rows as generic maps. Multi-statement inputs are rejected by
// the SQLite driver at prepare time; that rejection is the security
// boundary, no SQL parsing happens here.
func (s *Store) AdHocQuery(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	out := make([]map[string]any, 0, 16)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

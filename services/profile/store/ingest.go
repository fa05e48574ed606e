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
	"time"
)

// ApplyBatch applies one ingest batch under a single transaction.
//
// Description:
//
//	Per record: upsert the entity by (filename, source_offset), refresh
//	its metadata (null leaves prior values intact), upsert the HOF
//	relationship when the record carries a callee, then upsert every
//	value in the record's value list together with its derived
//	string-literal and object-shape rows.
//
//	Partial failure aborts and rolls back the whole batch. Replaying an
//	identical batch increments observation counters but introduces no
//	new rows.
//
// Thread Safety: safe for concurrent use; concurrent batches serialise
// through the store.
func (s *Store) ApplyBatch(ctx context.Context, records []Record) (*IngestSummary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	summary := &IngestSummary{Records: len(records)}
	files := make(map[string]struct{})

	for _, rec := range records {
		files[rec.Filename] = struct{}{}
		if err := s.applyRecord(ctx, tx, rec, now, summary); err != nil {
			return nil, fmt.Errorf("apply record %s@%d: %w", rec.Filename, rec.Offset, err)
		}
	}
	summary.Files = len(files)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch transaction: %w", err)
	}
	return summary, nil
}

func (s *Store) applyRecord(ctx context.Context, tx *sql.Tx, rec Record, now int64, summary *IngestSummary) error {
	entityID, created, err := upsertEntity(ctx, tx, rec.Filename, rec.Offset, now)
	if err != nil {
		return err
	}
	if created {
		summary.NewEntities++
	}

	if err := updateEntityMetadata(ctx, tx, entityID, rec.Metadata); err != nil {
		return err
	}

	md := rec.Metadata
	if md.CalleeName != nil && md.CalleeArgIndex != nil {
		if err := upsertHOF(ctx, tx, entityID, *md.CalleeName, *md.CalleeArgIndex, now); err != nil {
			return err
		}
		summary.HOFRelations++
	}

	entityContext := ""
	if md.Context != nil {
		entityContext = *md.Context
	}
	functionName := ""
	if md.FunctionName != nil {
		functionName = *md.FunctionName
	}
	enriched := EnrichContext(entityContext, functionName)

	for _, pair := range rec.Values {
		if err := upsertValue(ctx, tx, entityID, pair.Value, enriched, now); err != nil {
			return err
		}
		summary.Values++
	}
	return nil
}

// upsertEntity inserts the (filename, offset) natural key with count 1, or
// bumps the counter and last_seen on conflict. Returns the row id and
// whether the row was created by this call.
func upsertEntity(ctx context.Context, tx *sql.Tx, filename string, offset, now int64) (int64, bool, error) {
	var id, count int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO entities (filename, source_offset, observation_count, first_seen, last_seen)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (filename, source_offset) DO UPDATE SET
			observation_count = observation_count + 1,
			last_seen = excluded.last_seen
		RETURNING id, observation_count`,
		filename, offset, now, now,
	).Scan(&id, &count)
	if err != nil {
		return 0, false, fmt.Errorf("upsert entity: %w", err)
	}
	return id, count == 1, nil
}

// updateEntityMetadata refreshes the entity's descriptive columns from the
// record metadata. Absent fields (null) leave the prior value intact.
func updateEntityMetadata(ctx context.Context, tx *sql.Tx, entityID int64, md Metadata) error {
	if md.FunctionName == nil && md.ParameterName == nil && md.Context == nil &&
		md.LineNumber == nil && md.ColumnNumber == nil {
		return nil
	}

	entityName := nullString(entityLabel(md))
	_, err := tx.ExecContext(ctx, `
		UPDATE entities SET
			entity_name   = COALESCE(?, entity_name),
			entity_type   = COALESCE(?, entity_type),
			line_number   = COALESCE(?, line_number),
			column_number = COALESCE(?, column_number)
		WHERE id = ?`,
		entityName, nullStringPtr(md.Context), nullIntPtr(md.LineNumber), nullIntPtr(md.ColumnNumber), entityID,
	)
	if err != nil {
		return fmt.Errorf("update entity metadata: %w", err)
	}
	return nil
}

// entityLabel derives the stable entity name, e.g. "addTodo_param_todo".
func entityLabel(md Metadata) string {
	fn := ""
	if md.FunctionName != nil {
		fn = *md.FunctionName
	}
	if md.ParameterName != nil && *md.ParameterName != "" {
		if fn != "" {
			return fn + "_param_" + *md.ParameterName
		}
		return *md.ParameterName
	}
	return fn
}

func upsertHOF(ctx context.Context, tx *sql.Tx, entityID int64, callee string, argIndex int, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO hof_relationships (entity_id, callee_name, callee_arg_index, observation_count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (entity_id, callee_name, callee_arg_index) DO UPDATE SET
			observation_count = observation_count + 1,
			last_seen = excluded.last_seen`,
		entityID, callee, argIndex, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert hof relationship: %w", err)
	}
	return nil
}

// upsertValue records one surrogate value: the deduplicated observation
// row plus the derived string-literal and object-shape rows when the
// value passes the respective filters.
func upsertValue(ctx context.Context, tx *sql.Tx, entityID int64, value any, enrichedContext string, now int64) error {
	valueType := ValueTypeOf(value)
	literal := LiteralValue(value)
	hash := ValueHash(literal)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO value_observations (entity_id, value_type, literal_value, value_hash, context, observation_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (entity_id, value_hash, context) DO UPDATE SET
			observation_count = observation_count + 1,
			last_seen = excluded.last_seen`,
		entityID, valueType, literal, hash, enrichedContext, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert value observation: %w", err)
	}

	if valueType == "string" {
		if str, ok := value.(string); ok && IsEnumCandidate(str) {
			if err := upsertStringLiteral(ctx, tx, entityID, str, enrichedContext, now); err != nil {
				return err
			}
		}
	}

	if valueType == "object" {
		if obj, ok := value.(map[string]any); ok {
			if sig := ShapeSignature(obj); sig != "" {
				if err := upsertObjectShape(ctx, tx, entityID, sig, len(obj), now); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func upsertStringLiteral(ctx context.Context, tx *sql.Tx, entityID int64, value, context string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO string_literals (entity_id, string_value, context, observation_count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (entity_id, string_value, context) DO UPDATE SET
			observation_count = observation_count + 1,
			last_seen = excluded.last_seen`,
		entityID, value, context, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert string literal: %w", err)
	}
	return nil
}

func upsertObjectShape(ctx context.Context, tx *sql.Tx, entityID int64, signature string, keyCount int, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO object_shapes (entity_id, shape_signature, key_count, observation_count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (entity_id, shape_signature) DO UPDATE SET
			observation_count = observation_count + 1,
			last_seen = excluded.last_seen`,
		entityID, signature, keyCount, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert object shape: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullIntPtr(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

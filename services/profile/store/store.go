// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists runtime type-profile observations in SQLite and
// serves the derived query surface (entities, value observations, enum
// candidates, object shapes, annotation recommendations).
//
// All writes go through ApplyBatch, which applies one ingest batch in a
// single transaction. Every table keys on a natural uniqueness constraint
// and every upsert increments observation_count instead of inserting a
// duplicate row, so replaying a batch is idempotent up to counters and
// timestamps.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Schema for the type-profile store. Natural keys carry UNIQUE constraints;
// every upsert relies on them.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    filename          TEXT NOT NULL,
    source_offset     INTEGER NOT NULL,
    entity_name       TEXT NOT NULL DEFAULT '',
    entity_type       TEXT NOT NULL DEFAULT '',
    line_number       INTEGER NOT NULL DEFAULT 0,
    column_number     INTEGER NOT NULL DEFAULT 0,
    observation_count INTEGER NOT NULL DEFAULT 1,
    first_seen        INTEGER NOT NULL,
    last_seen         INTEGER NOT NULL,
    UNIQUE (filename, source_offset)
);

CREATE INDEX IF NOT EXISTS idx_entities_file_offset ON entities(filename, source_offset);
CREATE INDEX IF NOT EXISTS idx_entities_location ON entities(filename, line_number, column_number);
CREATE INDEX IF NOT EXISTS idx_entities_last_seen ON entities(last_seen);

CREATE TABLE IF NOT EXISTS value_observations (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id         INTEGER NOT NULL REFERENCES entities(id),
    value_type        TEXT NOT NULL,
    literal_value     TEXT NOT NULL DEFAULT '',
    value_hash        TEXT NOT NULL,
    context           TEXT NOT NULL DEFAULT '',
    observation_count INTEGER NOT NULL DEFAULT 1,
    first_seen        INTEGER NOT NULL,
    last_seen         INTEGER NOT NULL,
    UNIQUE (entity_id, value_hash, context)
);

CREATE INDEX IF NOT EXISTS idx_values_entity_type_hash ON value_observations(entity_id, value_type, value_hash);

CREATE TABLE IF NOT EXISTS string_literals (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id         INTEGER NOT NULL REFERENCES entities(id),
    string_value      TEXT NOT NULL,
    context           TEXT NOT NULL DEFAULT '',
    observation_count INTEGER NOT NULL DEFAULT 1,
    first_seen        INTEGER NOT NULL,
    last_seen         INTEGER NOT NULL,
    UNIQUE (entity_id, string_value, context)
);

CREATE TABLE IF NOT EXISTS object_shapes (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id         INTEGER NOT NULL REFERENCES entities(id),
    shape_signature   TEXT NOT NULL,
    key_count         INTEGER NOT NULL DEFAULT 0,
    observation_count INTEGER NOT NULL DEFAULT 1,
    first_seen        INTEGER NOT NULL,
    last_seen         INTEGER NOT NULL,
    UNIQUE (entity_id, shape_signature)
);

CREATE INDEX IF NOT EXISTS idx_shapes_entity_signature ON object_shapes(entity_id, shape_signature);

CREATE TABLE IF NOT EXISTS hof_relationships (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id         INTEGER NOT NULL REFERENCES entities(id),
    callee_name       TEXT NOT NULL,
    callee_arg_index  INTEGER NOT NULL,
    observation_count INTEGER NOT NULL DEFAULT 1,
    first_seen        INTEGER NOT NULL,
    last_seen         INTEGER NOT NULL,
    UNIQUE (entity_id, callee_name, callee_arg_index)
);
`

// Store is the SQLite-backed type-profile store.
//
// Thread Safety:
//
//	Store is safe for concurrent use. database/sql serialises access to
//	the underlying SQLite connection; each batch applies in its own
//	transaction and readers see only committed state.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and applies
// the schema. Use ":memory:" for an ephemeral store in tests.
//
// The ncruces driver refuses to prepare a query with more than one
// statement; the ad-hoc query channel depends on that rejection.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serialises writers; a single connection avoids SQLITE_BUSY
	// races between concurrent ingest transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for the ad-hoc query channel.
func (s *Store) DB() *sql.DB {
	return s.db
}

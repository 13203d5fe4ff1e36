// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package postgres is a concrete store.Store adapter backed by
// github.com/lib/pq, persisting each produced flow unit as a row. The
// relational schema for summaries described in spec §1 as out of scope is
// deliberately not re-implemented here; this adapter only needs a single
// wide table to satisfy the Store contract.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/logging"
	"github.com/rca-engine/scheduler/internal/rcaerrors"
)

// Store writes flow units into a Postgres table of the shape:
//
//	CREATE TABLE flow_units (
//	  vertex      text NOT NULL,
//	  produced_at timestamptz NOT NULL,
//	  fields      jsonb NOT NULL
//	);
type Store struct {
	db    *sql.DB
	table string
}

// Open connects to Postgres using a lib/pq DSN and returns a Store writing
// into the given table name.
func Open(dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, rcaerrors.IOError("postgres store", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, rcaerrors.IOError("postgres store", err)
	}
	return &Store{db: db, table: table}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write implements store.Store. It logs and returns a wrapped IOError on
// failure; per spec §4.5 the caller (the tasklet) is expected to log and
// suppress it rather than abort the tick.
func (s *Store) Write(ctx context.Context, unit flowunit.FlowUnit) error {
	logger := logging.HCLogger().Named("store.postgres")

	fields, err := json.Marshal(unit.Fields)
	if err != nil {
		logger.Warn("failed to marshal flow unit fields", "vertex", unit.Vertex, "error", err)
		return rcaerrors.IOError("postgres store", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (vertex, produced_at, fields) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, unit.Vertex, unit.ProducedAt, fields); err != nil {
		logger.Warn("failed to persist flow unit", "vertex", unit.Vertex, "error", err)
		return rcaerrors.IOError("postgres store", err)
	}
	return nil
}

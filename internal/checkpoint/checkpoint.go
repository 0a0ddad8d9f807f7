// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package checkpoint implements the optional persisted recovery
// checkpoint store: recovery state is, by design, kept in memory
// (spec.md §6, "the core is in-memory; only recovery checkpoints are
// optionally persisted as opaque key/value blobs keyed by partition_id").
// This package is that persistence layer, a single sqlite table behind
// sqlx/squirrel.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/hellblazer/luciferase/pkg/log"
)

var registerOnce sync.Once

const schemaDDL = `
CREATE TABLE IF NOT EXISTS recovery_checkpoint (
	partition_id  INTEGER PRIMARY KEY,
	phase         TEXT    NOT NULL,
	attempts      INTEGER NOT NULL,
	payload       BLOB,
	updated_at_ms INTEGER NOT NULL
);`

// Checkpoint is one partition's last persisted recovery state.
type Checkpoint struct {
	PartitionID uint32
	Phase       string
	Attempts    uint32
	Payload     []byte
	UpdatedAtMs int64
}

// Store persists Checkpoints to a single sqlite table. Like the
// teacher's repository package, sqlite is opened through a
// sqlhooks-wrapped driver for query/timing logging and capped at one
// open connection since sqlite does not multiplex writers.
type Store struct {
	db *sqlx.DB
}

// Open creates (if needed) the sqlite file at path and the checkpoint
// table within it.
func Open(path string) (*Store, error) {
	registerOnce.Do(func() {
		sql.Register("sqlite3WithCheckpointHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryLogHooks{}))
	})

	db, err := sqlx.Open("sqlite3WithCheckpointHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	// sqlite does not multithread; one connection avoids contending for
	// the same file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create schema: %w", err)
	}

	log.Infof("checkpoint: opened store at %s", path)
	return &Store{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts rank's checkpoint.
func (s *Store) Save(ctx context.Context, cp Checkpoint) error {
	_, err := sq.Insert("recovery_checkpoint").
		Columns("partition_id", "phase", "attempts", "payload", "updated_at_ms").
		Values(cp.PartitionID, cp.Phase, cp.Attempts, cp.Payload, cp.UpdatedAtMs).
		Suffix("ON CONFLICT(partition_id) DO UPDATE SET phase=excluded.phase, attempts=excluded.attempts, payload=excluded.payload, updated_at_ms=excluded.updated_at_ms").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint: save partition %d: %w", cp.PartitionID, err)
	}
	return nil
}

// Load returns rank's last saved checkpoint, or ok=false if none exists.
func (s *Store) Load(ctx context.Context, rank uint32) (cp Checkpoint, ok bool, err error) {
	row := sq.Select("partition_id", "phase", "attempts", "payload", "updated_at_ms").
		From("recovery_checkpoint").
		Where(sq.Eq{"partition_id": rank}).
		RunWith(s.db).QueryRowContext(ctx)

	if scanErr := row.Scan(&cp.PartitionID, &cp.Phase, &cp.Attempts, &cp.Payload, &cp.UpdatedAtMs); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("checkpoint: load partition %d: %w", rank, scanErr)
	}
	return cp, true, nil
}

// Delete removes rank's checkpoint, e.g. once recovery reaches COMPLETE.
func (s *Store) Delete(ctx context.Context, rank uint32) error {
	_, err := sq.Delete("recovery_checkpoint").
		Where(sq.Eq{"partition_id": rank}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint: delete partition %d: %w", rank, err)
	}
	return nil
}

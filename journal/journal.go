// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package journal records firmware upload attempts in a sqlite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Attempt is one recorded upload.
type Attempt struct {
	ID       string
	Device   string
	Firmware int
	Name     string
	Size     int
	State    string
	Error    string
	Started  time.Time
	Finished time.Time
}

// Journal is a sqlite backed record of upload attempts.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. Use ":memory:" for a throw away
// journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		device TEXT NOT NULL,
		firmware INTEGER NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_started ON attempts(started_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records the start of an upload and returns its attempt ID.
func (j *Journal) Begin(ctx context.Context, device string, id int, name string, size int) (string, error) {
	a := ulid.Make().String()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO attempts (id, device, firmware, name, size, state, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a, device, id, name, size, "started", time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("journal: begin: %w", err)
	}
	return a, nil
}

// Finish records the final state of an attempt.
func (j *Journal) Finish(ctx context.Context, attempt string, state string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE attempts SET state = ?, error = ?, finished_at = ? WHERE id = ?`,
		state, msg, time.Now().UTC(), attempt)
	if err != nil {
		return fmt.Errorf("journal: finish: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("journal: finish: %w", err)
	} else if n == 0 {
		return errors.New("journal: unknown attempt " + attempt)
	}
	return nil
}

// Recent returns up to limit attempts, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, device, firmware, name, size, state, error, started_at, finished_at
		FROM attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		var finished sql.NullTime
		if err := rows.Scan(&a.ID, &a.Device, &a.Firmware, &a.Name, &a.Size, &a.State, &a.Error, &a.Started, &finished); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		if finished.Valid {
			a.Finished = finished.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

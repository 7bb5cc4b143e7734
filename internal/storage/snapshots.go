/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(chapter, ts, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, text FROM snapshots WHERE chapter = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, text FROM snapshots WHERE chapter = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE chapter = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE chapter = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// snapshotTS is fixed width so the ts column sorts as text.
const snapshotTS = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is one saved state of a chapter translation.
type Snapshot struct {
	TS   time.Time `json:"ts"`
	Text string    `json:"text"`
}

// SaveSnapshot stores the serialized translation of a chapter.
func (ix *Index) SaveSnapshot(ctx context.Context, chapter, text string, ts time.Time) error {
	if _, err := ix.db.ExecContext(ctx, insertSnapshotSQL, chapter, ts.UTC().Format(snapshotTS), text); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of a chapter; ok is false when none exists.
func (ix *Index) LatestSnapshot(ctx context.Context, chapter string) (Snapshot, bool, error) {
	var tsStr string
	var s Snapshot
	err := ix.db.QueryRowContext(ctx, selectLatestSnapshotSQL, chapter).Scan(&tsStr, &s.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	s.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return s, true, nil
}

// ListSnapshots returns up to limit most recent snapshots of a chapter, newest first.
func (ix *Index) ListSnapshots(ctx context.Context, chapter string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx, listSnapshotsSQL, chapter, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var tsStr string
		var s Snapshot
		if err := rows.Scan(&tsStr, &s.Text); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots of the chapter and deletes older ones.
func (ix *Index) PruneSnapshots(ctx context.Context, chapter string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := ix.db.ExecContext(ctx, pruneOldSnapshotsSQL, chapter, chapter, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

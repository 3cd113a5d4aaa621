/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gosignprep/internal/undo"
)

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(page_id, label, ts, delta_blob) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT label, ts, delta_blob FROM snapshots WHERE page_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT label, ts, delta_blob FROM snapshots WHERE page_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE page_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE page_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// SaveSnapshot persists an undo snapshot of a page.
func SaveSnapshot(ctx context.Context, eh *EnvelopeHandle, s undo.Snapshot) error {
	if eh == nil {
		return errors.New("nil EnvelopeHandle")
	}
	db, err := InitOrOpenIndex(eh.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	ts := s.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.ExecContext(ctx, insertSnapshotSQL, s.Page, s.Label, ts.UTC().Format(tsLayout), s.Blob)
	return err
}

// GetLatestSnapshot returns the latest snapshot for a page. ok is false when
// none exists.
func GetLatestSnapshot(ctx context.Context, eh *EnvelopeHandle, page int) (s undo.Snapshot, ok bool, err error) {
	if eh == nil {
		return undo.Snapshot{}, false, errors.New("nil EnvelopeHandle")
	}
	db, err := InitOrOpenIndex(eh.Root)
	if err != nil {
		return undo.Snapshot{}, false, err
	}
	defer func() { _ = db.Close() }()
	var label sql.NullString
	var tsStr string
	var blob []byte
	err = db.QueryRowContext(ctx, selectLatestSnapshotSQL, page).Scan(&label, &tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return undo.Snapshot{}, false, nil
	}
	if err != nil {
		return undo.Snapshot{}, false, err
	}
	ts, _ := time.Parse(time.RFC3339Nano, tsStr) // keep the blob even if ts is unreadable
	return undo.Snapshot{Page: page, Label: label.String, Blob: blob, TS: ts}, true, nil
}

// ListSnapshots returns up to limit most recent snapshots for a page, newest first.
func ListSnapshots(ctx context.Context, eh *EnvelopeHandle, page int, limit int) ([]undo.Snapshot, error) {
	if eh == nil {
		return nil, errors.New("nil EnvelopeHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(eh.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, page, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []undo.Snapshot
	for rows.Next() {
		var label sql.NullString
		var tsStr string
		var blob []byte
		if err := rows.Scan(&label, &tsStr, &blob); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, undo.Snapshot{Page: page, Label: label.String, Blob: blob, TS: ts})
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots for the page and deletes older ones.
func PruneOldSnapshots(ctx context.Context, eh *EnvelopeHandle, page int, keepLast int) (int64, error) {
	if eh == nil {
		return 0, errors.New("nil EnvelopeHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(eh.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, page, page, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

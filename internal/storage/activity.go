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
	"errors"
	"time"
)

// Activity is one entry of the envelope's audit trail.
type Activity struct {
	TS      time.Time
	Action  string
	Subject string
	Detail  string
}

// LogActivity appends an entry to the activity log.
func LogActivity(ctx context.Context, eh *EnvelopeHandle, action, subject, detail string) error {
	if eh == nil {
		return errors.New("nil EnvelopeHandle")
	}
	db, err := InitOrOpenIndex(eh.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, `INSERT INTO activity(ts, action, subject, detail) VALUES(?, ?, ?, ?)`,
		time.Now().UTC().Format(tsLayout), action, subject, detail)
	return err
}

// ListActivity returns up to limit entries, newest first.
func ListActivity(ctx context.Context, eh *EnvelopeHandle, limit int) ([]Activity, error) {
	if eh == nil {
		return nil, errors.New("nil EnvelopeHandle")
	}
	if limit <= 0 {
		limit = 100
	}
	db, err := InitOrOpenIndex(eh.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, `SELECT ts, action, COALESCE(subject, ''), COALESCE(detail, '') FROM activity ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Activity
	for rows.Next() {
		var a Activity
		var ts string
		if err := rows.Scan(&ts, &a.Action, &a.Subject, &a.Detail); err != nil {
			return nil, err
		}
		a.TS, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

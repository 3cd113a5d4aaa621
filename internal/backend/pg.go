/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gosignprep/internal/domain"
	applog "gosignprep/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db *sql.DB
}

// OpenPG connects through the pgx stdlib driver, pings and migrates.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// language=PostgreSQL
const insertEnvelopeSQL = `INSERT INTO envelopes (id, title, status, sender, page_count, field_count, payload, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// language=PostgreSQL
const insertRecipientSQL = `INSERT INTO envelope_recipients (envelope_id, ordinal, name, email, role, field_count)
VALUES ($1, $2, $3, $4, $5, $6)`

func (s *PGStore) CreateEnvelope(ctx context.Context, env domain.Envelope, sender string) (Record, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return Record{}, err
	}
	sentAt := time.Now().UTC()
	if env.SentAt != nil {
		sentAt = env.SentAt.UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertEnvelopeSQL, env.ID, env.Title, string(env.Status), sender,
		env.Document.PageCount, len(env.Fields), payload, sentAt)
	if err != nil {
		return Record{}, fmt.Errorf("insert envelope: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Record{}, ErrConflict
	}
	owned := make(map[string]int, len(env.Recipients))
	for _, f := range env.Fields {
		owned[f.RecipientID]++
	}
	for i, r := range env.Recipients {
		if _, err := tx.ExecContext(ctx, insertRecipientSQL, env.ID, i, r.Name, r.Email, string(r.Role), owned[r.ID]); err != nil {
			return Record{}, fmt.Errorf("insert recipient: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	env.SentAt = &sentAt
	return Record{Summary: summarize(env, sender), Envelope: env}, nil
}

// language=PostgreSQL
const listEnvelopesSQL = `SELECT e.id, e.title, e.status, e.sender, e.page_count, e.field_count,
	(SELECT count(*) FROM envelope_recipients r WHERE r.envelope_id = e.id), e.sent_at
FROM envelopes e
WHERE $1::text = '' OR EXISTS (SELECT 1 FROM envelope_recipients r WHERE r.envelope_id = e.id AND lower(r.email) = lower($1::text))
ORDER BY e.sent_at DESC, e.id
LIMIT $2`

func (s *PGStore) ListEnvelopes(ctx context.Context, recipientEmail string, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, listEnvelopesSQL, strings.TrimSpace(recipientEmail), limit)
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Status, &sm.Sender, &sm.Pages, &sm.Fields, &sm.Recipients, &sm.SentAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *PGStore) GetEnvelope(ctx context.Context, id string) (Record, error) {
	var (
		sender  string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT sender, payload FROM envelopes WHERE id = $1`, id).Scan(&sender, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get envelope: %w", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Record{}, fmt.Errorf("decode payload: %w", err)
	}
	return Record{Summary: summarize(env, sender), Envelope: env}, nil
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each version in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithComponent("backend")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// language=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("select schema_migrations: %w", err)
	}
	defer rows.Close()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func parseVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

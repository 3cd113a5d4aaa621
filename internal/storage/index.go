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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gosignprep/internal/domain"
	applog "gosignprep/internal/log"
	"gosignprep/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-envelope index data under the envelope root.
	IndexDirName  = ".gsp"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the envelope's embedded index database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the SQLite index exists at .gsp/index.sqlite,
// opens it, enables WAL mode, and brings the schema up to date.
// Callers close the returned *sql.DB.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("envelope root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create .gsp dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .gsp dir: %w", err)
	}

	path := IndexPath(root)
	// Convert to forward slashes for the SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		var stmts []string
		switch next {
		case 2:
			// v2 labels snapshots so persisted history can coalesce like in memory
			has, err := hasColumn(ctx, tx, "snapshots", "label")
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", next, err)
			}
			if !has {
				stmts = append(stmts, `ALTER TABLE snapshots ADD COLUMN label TEXT;`)
			}
			stmts = append(stmts,
				`CREATE INDEX IF NOT EXISTS idx_fields_recipient ON fields(recipient_id);`,
				`CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity(ts);`,
			)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ensureIndexSchema creates the index tables if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS recipients (
			id      TEXT PRIMARY KEY,
			ordinal INTEGER NOT NULL,
			name    TEXT NOT NULL,
			email   TEXT NOT NULL,
			role    TEXT NOT NULL,
			color   INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fields (
			id           TEXT PRIMARY KEY,
			page         INTEGER NOT NULL,
			kind         TEXT    NOT NULL,
			recipient_id TEXT    NOT NULL,
			x            REAL    NOT NULL,
			y            REAL    NOT NULL,
			width        REAL    NOT NULL,
			height       REAL    NOT NULL,
			required     INTEGER NOT NULL,
			label        TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fields_page ON fields(page);`,
		`CREATE INDEX IF NOT EXISTS idx_fields_recipient ON fields(recipient_id);`,

		// Persisted undo history (per page)
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			page_id    INTEGER NOT NULL,
			label      TEXT,
			ts         TEXT    NOT NULL,
			delta_blob BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_page_ts ON snapshots(page_id, ts);`,

		`CREATE TABLE IF NOT EXISTS activity (
			id      INTEGER PRIMARY KEY,
			ts      TEXT NOT NULL,
			action  TEXT NOT NULL,
			subject TEXT,
			detail  TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, root string, env domain.Envelope) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, root, env); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM fields LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, root, env); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .gsp/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// BuildIndexIfEmpty populates the index from the manifest when it holds no
// fields or recipients yet.
func BuildIndexIfEmpty(ctx context.Context, root string, env domain.Envelope) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT (SELECT COUNT(*) FROM fields) + (SELECT COUNT(*) FROM recipients);").Scan(&cnt); err != nil {
		return fmt.Errorf("check index content: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return rebuildFromEnvelope(ctx, db, env)
}

// UpdateIndex replaces the denormalized rows from the given manifest.
func UpdateIndex(ctx context.Context, root string, env domain.Envelope) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildFromEnvelope(ctx, db, env)
}

// RebuildIndex drops and recreates the derived tables and refills them from
// the manifest. Snapshots and activity are dropped too; meta/version stay.
func RebuildIndex(ctx context.Context, root string, env domain.Envelope) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS fields;",
		"DROP TABLE IF EXISTS recipients;",
		"DROP TABLE IF EXISTS snapshots;",
		"DROP TABLE IF EXISTS activity;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildFromEnvelope(ctx, db, env)
}

func rebuildFromEnvelope(ctx context.Context, db *sql.DB, env domain.Envelope) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(err error) error {
		_ = tx.Rollback()
		return err
	}
	for _, q := range []string{"DELETE FROM fields;", "DELETE FROM recipients;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return rollback(fmt.Errorf("clear index: %w", err))
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('envelope_id', ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, env.ID); err != nil {
		return rollback(fmt.Errorf("write meta: %w", err))
	}
	insR, err := tx.PrepareContext(ctx, "INSERT INTO recipients(id, ordinal, name, email, role, color) VALUES(?,?,?,?,?,?);")
	if err != nil {
		return rollback(fmt.Errorf("prepare recipients: %w", err))
	}
	defer insR.Close()
	for i, r := range env.Recipients {
		if _, err := insR.ExecContext(ctx, r.ID, i, r.Name, r.Email, string(r.Role), r.Color); err != nil {
			return rollback(fmt.Errorf("insert recipient: %w", err))
		}
	}
	insF, err := tx.PrepareContext(ctx, "INSERT INTO fields(id, page, kind, recipient_id, x, y, width, height, required, label) VALUES(?,?,?,?,?,?,?,?,?,?);")
	if err != nil {
		return rollback(fmt.Errorf("prepare fields: %w", err))
	}
	defer insF.Close()
	for _, f := range env.Fields {
		req := 0
		if f.Required {
			req = 1
		}
		if _, err := insF.ExecContext(ctx, f.ID, f.Page, string(f.Kind), f.RecipientID,
			f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height, req, f.Label); err != nil {
			return rollback(fmt.Errorf("insert field: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecipientSummary is one row of the indexed per-recipient overview.
type RecipientSummary struct {
	RecipientID string
	Name        string
	Email       string
	Role        domain.Role
	Fields      int
	Required    int
}

// language=SQL
// dialect=SQLite
const recipientSummarySQL = `SELECT r.id, r.name, r.email, r.role,
	COUNT(f.id), COALESCE(SUM(f.required), 0)
FROM recipients r LEFT JOIN fields f ON f.recipient_id = r.id
GROUP BY r.id ORDER BY r.ordinal`

// RecipientSummaries reads the per-recipient field counts from the index.
func RecipientSummaries(ctx context.Context, root string) ([]RecipientSummary, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, recipientSummarySQL)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()
	var out []RecipientSummary
	for rows.Next() {
		var s RecipientSummary
		var role string
		if err := rows.Scan(&s.RecipientID, &s.Name, &s.Email, &role, &s.Fields, &s.Required); err != nil {
			return nil, err
		}
		s.Role = domain.Role(role)
		out = append(out, s)
	}
	return out, rows.Err()
}

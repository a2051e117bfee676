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

	"scriptbreakdown/internal/domain"
	applog "scriptbreakdown/internal/log"
	"scriptbreakdown/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = domain.ErrNotFound

const (
	// baseVersion is the schema a fresh database starts at before migrations.
	baseVersion = 1
	// schemaVersion tracks the local SQLite schema. Bump it together with a
	// new step in runMigrations.
	schemaVersion = 2
)

// Store is the SQLite implementation of breakdown.Store.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the database at path, enables WAL mode and brings
// the schema up to date. Callers close the Store when done.
func Open(path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create database dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	// Forward slashes for the SQLite URI.
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
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("database ready")
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path is the database file location.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

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
		// Fresh databases start at the base schema and migrate forward like old ones.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, baseVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
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
	if cur > schemaVersion {
		// Written by a newer build; never downgrade.
		applog.WithComponent("storage").Warn("database schema is newer than this build", slog.Int("schema", cur))
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_scenes_location ON scenes(script_id, location);`,
				`CREATE INDEX IF NOT EXISTS idx_elements_script_type ON elements(script_id, type);`,
				`CREATE INDEX IF NOT EXISTS idx_characters_script ON characters(script_id);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
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
		if next == 2 {
			// Best-effort; the index stays usable unoptimized.
			_, _ = db.ExecContext(ctx, `INSERT INTO fts_scenes(fts_scenes) VALUES('optimize')`)
		}
		cur = next
	}
	return nil
}

// ensureSchema creates the breakdown tables and the scene FTS index.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS scripts (
			id                TEXT PRIMARY KEY,
			production_id     TEXT    NOT NULL,
			title             TEXT    NOT NULL,
			version           TEXT,
			author            TEXT,
			format            TEXT    NOT NULL,
			original_filename TEXT    NOT NULL,
			file_path         TEXT    NOT NULL,
			content_hash      TEXT    NOT NULL,
			metadata          TEXT,
			is_parsed         INTEGER NOT NULL DEFAULT 0,
			uploaded_at       TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scripts_hash ON scripts(production_id, content_hash);`,

		`CREATE TABLE IF NOT EXISTS breakdowns (
			id                 TEXT PRIMARY KEY,
			script_id          TEXT    NOT NULL UNIQUE,
			production_id      TEXT    NOT NULL,
			created_at         TEXT    NOT NULL,
			updated_at         TEXT    NOT NULL,
			is_complete        INTEGER NOT NULL DEFAULT 0,
			progress           REAL    NOT NULL DEFAULT 0,
			scene_count        INTEGER NOT NULL DEFAULT 0,
			page_count         INTEGER NOT NULL DEFAULT 0,
			estimated_duration REAL    NOT NULL DEFAULT 0,
			elements_by_type   TEXT,
			summary            TEXT,
			FOREIGN KEY(script_id) REFERENCES scripts(id) ON DELETE CASCADE
		);`,

		`CREATE TABLE IF NOT EXISTS scenes (
			scene_id        INTEGER PRIMARY KEY,
			script_id       TEXT    NOT NULL,
			scene_number    TEXT    NOT NULL,
			slug_line       TEXT    NOT NULL,
			page_number     INTEGER NOT NULL,
			int_ext         TEXT,
			location        TEXT,
			time_of_day     TEXT,
			content         TEXT,
			characters_json TEXT,
			scene_json      TEXT    NOT NULL,
			analysis        TEXT,
			UNIQUE(script_id, scene_number),
			FOREIGN KEY(script_id) REFERENCES scripts(id) ON DELETE CASCADE
		);`,

		// External-content FTS5 over scene text so snippet() can read it back.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_scenes USING fts5(
			content,
			content='scenes',
			content_rowid='scene_id',
			tokenize = 'unicode61'
		);`,

		`CREATE TABLE IF NOT EXISTS characters (
			id             INTEGER PRIMARY KEY,
			script_id      TEXT NOT NULL,
			name           TEXT NOT NULL,
			character_json TEXT NOT NULL,
			analysis       TEXT,
			UNIQUE(script_id, name),
			FOREIGN KEY(script_id) REFERENCES scripts(id) ON DELETE CASCADE
		);`,

		`CREATE TABLE IF NOT EXISTS elements (
			id          INTEGER PRIMARY KEY,
			script_id   TEXT NOT NULL,
			type        TEXT NOT NULL,
			name        TEXT NOT NULL,
			occurrences TEXT NOT NULL,
			context     TEXT,
			importance  REAL,
			FOREIGN KEY(script_id) REFERENCES scripts(id) ON DELETE CASCADE
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS scenes_ai AFTER INSERT ON scenes BEGIN
			INSERT INTO fts_scenes(rowid, content) VALUES (new.scene_id, new.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS scenes_ad AFTER DELETE ON scenes BEGIN
			INSERT INTO fts_scenes(fts_scenes, rowid, content) VALUES ('delete', old.scene_id, old.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS scenes_au AFTER UPDATE OF content ON scenes BEGIN
			INSERT INTO fts_scenes(fts_scenes, rowid, content) VALUES ('delete', old.scene_id, old.content);
			INSERT INTO fts_scenes(rowid, content) VALUES (new.scene_id, new.content);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// OpenOrRecover opens the database and runs a quick integrity check. A file
// that cannot be opened or fails the check is copied to a timestamped backup
// next to it, removed and recreated empty. The bool reports a recovery.
func OpenOrRecover(ctx context.Context, path string) (*Store, bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "recover").With(slog.String("path", path))
	s, err := Open(path)
	if err == nil {
		if ok := s.QuickCheck(ctx); ok {
			return s, false, nil
		}
		_ = s.Close()
		err = errors.New("quick_check failed")
	}
	l.Warn("database unusable, rebuilding", slog.Any("err", err))
	backupFile(path)
	_ = os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	s, rerr := Open(path)
	if rerr != nil {
		return nil, false, fmt.Errorf("reopen after recovery: %w (open err: %v)", rerr, err)
	}
	return s, true, nil
}

// QuickCheck runs PRAGMA quick_check and probes the core tables.
func (s *Store) QuickCheck(ctx context.Context) bool {
	var chk string
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		return false
	}
	for _, t := range []string{"scripts", "breakdowns", "scenes"} {
		if _, err := s.db.ExecContext(ctx, `SELECT 1 FROM `+t+` LIMIT 1;`); err != nil {
			return false
		}
	}
	return true
}

// backupFile copies the database file into a timestamped backup in backups/.
func backupFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

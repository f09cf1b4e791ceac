// Package sqlite implements the persistence gateway on SQLite.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the binary as a single
// file. No separate server to install, configure, or manage. The original
// system persisted JSON files; SQLite keeps the same snapshot semantics
// while giving us transactions and a real schema.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure-Go translation of
// SQLite — works everywhere Go works.
//
// SNAPSHOT MODEL:
// The gateway interface hands us FULL collections: SaveUsers/SavePosts
// replace everything inside one transaction (delete-all + insert-all).
// That mirrors the in-memory-authoritative design — the database is a
// best-effort mirror of process state, not the source of truth while the
// process lives.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under the
	// name "sqlite" in its init function.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.Gateway.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection; a bad path surfaces here instead of on
	// the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets concurrent reads proceed while a snapshot write is running —
	// the task runner's workers save while handlers read.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer it next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent — safe on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			kind          TEXT NOT NULL DEFAULT 'student',
			student_id    TEXT NOT NULL UNIQUE,
			nickname      TEXT NOT NULL,
			avatar_path   TEXT NOT NULL DEFAULT '',
			salt          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			registered_at DATETIME NOT NULL,
			post_ids      TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			student_id TEXT NOT NULL REFERENCES users(student_id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			read       INTEGER NOT NULL DEFAULT 0,
			at         DATETIME NOT NULL,
			seq        INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_student_id ON notifications(student_id);

		CREATE TABLE IF NOT EXISTS posts (
			id           TEXT PRIMARY KEY,
			author_id    TEXT NOT NULL,
			title        TEXT NOT NULL,
			body         TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL,
			status       TEXT NOT NULL,
			created_at   DATETIME NOT NULL,
			published_at DATETIME,
			views        INTEGER NOT NULL DEFAULT 0,
			seq          INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS post_likers (
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			author_id  TEXT NOT NULL,
			parent_id  TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			seq        INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

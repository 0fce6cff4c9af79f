// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and the
// binary cross-compiles like any other Go program.
//
// TIMESTAMPS:
// Every time column is an INTEGER holding Unix microseconds (UTC). Integer
// keys compare and sort exactly, which the keyset pagination in feed.go
// depends on: a cursor's (created_at, id) must compare equal to the row it
// came from. Stored text timestamps would round-trip through string
// formatting and lose that guarantee.
//
// CONNECTIONS:
// File databases set foreign_keys, WAL and busy_timeout through the DSN so
// every pooled connection gets them. _txlock=immediate makes every BEGIN take
// the write lock up front: a deferred transaction that reads and then writes
// (toggle, GitHub upsert) fails with SQLITE_BUSY when another writer commits
// in between, and busy_timeout never retries that upgrade. An immediate BEGIN
// instead waits on busy_timeout like any other lock. ":memory:" creates a fresh database per
// connection, so in-memory pools are limited to one connection. Code that
// holds a transaction must only use that transaction, never db.conn, or it
// waits forever on the single connection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/postvault/internal/apperror"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (creating if needed) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/postvault.db"  file-based, persistent
//   - ":memory:"           in-memory, for tests
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	dsn := dbPath
	if !memory {
		dsn = "file:" + dbPath +
			"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
			"&_txlock=immediate"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if memory {
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// NewFromConn wraps an already-open pool without migrating. Tests use it
// with go-sqlmock to drive datastore failure paths.
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn, now: time.Now}
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start.
func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			img           TEXT NOT NULL DEFAULT '',
			auth_type     TEXT NOT NULL CHECK (auth_type IN ('credentials', 'github')),
			status        TEXT NOT NULL CHECK (status IN ('pending', 'active')),
			github_id     INTEGER UNIQUE,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id           TEXT PRIMARY KEY,
			author_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title        TEXT NOT NULL,
			paragraph    TEXT NOT NULL,
			img          TEXT NOT NULL DEFAULT '',
			tags         TEXT NOT NULL DEFAULT '[]',
			status       TEXT NOT NULL CHECK (status IN ('DRAFT', 'PUBLISHED')),
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL,
			published_at INTEGER,
			CHECK ((status = 'PUBLISHED') = (published_at IS NOT NULL))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts(status, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id, created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			parent_id  TEXT REFERENCES comments(id) ON DELETE CASCADE,
			text       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_id)`,
		`CREATE TABLE IF NOT EXISTS post_likes (
			author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (author_id, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_post_likes_post ON post_likes(post_id)`,
		`CREATE TABLE IF NOT EXISTS comment_likes (
			author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (author_id, comment_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comment_likes_comment ON comment_likes(comment_id)`,
		`CREATE TABLE IF NOT EXISTS saved_posts (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_posts_user ON saved_posts(user_id, created_at DESC, post_id DESC)`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			following_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at   INTEGER NOT NULL,
			PRIMARY KEY (follower_id, following_id),
			CHECK (follower_id <> following_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id)`,
	}

	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(s), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// withTx runs fn in a transaction, committing if fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// micros converts t to the stored representation.
func micros(t time.Time) int64 {
	return t.UnixMicro()
}

// fromMicros converts a stored value back to a UTC time.
func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: micros(*t), Valid: true}
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}

// stamp returns the current time truncated to what the database stores, so
// values set on structs match what a later read returns.
func (db *DB) stamp() time.Time {
	return db.now().UTC().Truncate(time.Microsecond)
}

// uniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint
// failure, and returns the "table.column" list from the driver message.
func uniqueViolation(err error) (string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
	default:
		return "", false
	}
	_, cols, _ := strings.Cut(se.Error(), "constraint failed: ")
	return cols, true
}

// conflictFor maps a unique violation on users to a Conflict naming the field.
func conflictFor(err error) error {
	cols, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch {
	case strings.Contains(cols, "users.email"):
		return apperror.Conflict("user", "email")
	case strings.Contains(cols, "users.username"):
		return apperror.Conflict("user", "username")
	case strings.Contains(cols, "users.github_id"):
		return apperror.Conflict("user", "GitHub account")
	}
	return nil
}

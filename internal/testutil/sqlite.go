// Package testutil opens throwaway SQLite databases laid out like the
// production schema, so store and engine tests exercise real SQL.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE pages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id   INTEGER REFERENCES pages (id) ON DELETE RESTRICT,
    title       TEXT NOT NULL DEFAULT '',
    body        TEXT NOT NULL DEFAULT '',
    position    INTEGER,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE galleries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id     INTEGER,
    title       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE uploads (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    kind         TEXT NOT NULL DEFAULT 'photo',
    gallery_id   INTEGER,
    title        TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    position     INTEGER,
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE mixins (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    pos         INTEGER,
    parent_id   INTEGER,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);
`

// OpenDB creates a SQLite database in the test's temp dir with the list
// tables created. It is closed when the test ends.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lists.db")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// SQLite has a single writer; one connection keeps transactions serial.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

// Positions returns id -> position for every row of table matching where,
// with NULL positions mapped to 0.
func Positions(t testing.TB, db *sql.DB, table, positionColumn, where string, args ...any) map[int64]int {
	t.Helper()

	rows, err := db.Query("SELECT id, COALESCE("+positionColumn+", 0) FROM "+table+" WHERE "+where, args...)
	if err != nil {
		t.Fatalf("failed to query positions: %v", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var pos int
		if err := rows.Scan(&id, &pos); err != nil {
			t.Fatalf("failed to scan position: %v", err)
		}
		out[id] = pos
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate positions: %v", err)
	}
	return out
}

// OrderedIDs returns the ids of the positioned rows matching where, ordered
// by position.
func OrderedIDs(t testing.TB, db *sql.DB, table, positionColumn, where string, args ...any) []int64 {
	t.Helper()

	rows, err := db.Query("SELECT id FROM "+table+" WHERE "+positionColumn+" IS NOT NULL AND ("+where+") ORDER BY "+positionColumn+", id", args...)
	if err != nil {
		t.Fatalf("failed to query ids: %v", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("failed to scan id: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate ids: %v", err)
	}
	return ids
}

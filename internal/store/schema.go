// Package store provides the SQLite-backed entity graph and the manifest of
// generated wiki files.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id         INTEGER PRIMARY KEY,
	date       TEXT NOT NULL UNIQUE,
	word_count INTEGER NOT NULL DEFAULT 0,
	summary    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS people (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE COLLATE NOCASE,
	full_name TEXT NOT NULL DEFAULT '',
	relation  TEXT NOT NULL DEFAULT 'other'
);

CREATE TABLE IF NOT EXISTS cities (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE COLLATE NOCASE,
	country TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS locations (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE COLLATE NOCASE,
	city_id INTEGER NOT NULL REFERENCES cities(id)
);

CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS themes (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS arcs (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chapters (
	id     INTEGER PRIMARY KEY,
	title  TEXT NOT NULL UNIQUE COLLATE NOCASE,
	number INTEGER NOT NULL DEFAULT 0,
	type   TEXT NOT NULL DEFAULT 'prose',
	status TEXT NOT NULL DEFAULT 'draft',
	part   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS characters (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	role        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scenes (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	chapter_id  INTEGER REFERENCES chapters(id) ON DELETE SET NULL,
	origin      TEXT NOT NULL DEFAULT 'journaled',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entry_people (
	entry_id  INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	person_id INTEGER NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	UNIQUE(entry_id, person_id)
);

CREATE TABLE IF NOT EXISTS entry_locations (
	entry_id    INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	UNIQUE(entry_id, location_id)
);

CREATE TABLE IF NOT EXISTS entry_tags (
	entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	tag_id   INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE(entry_id, tag_id)
);

CREATE TABLE IF NOT EXISTS entry_themes (
	entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	theme_id INTEGER NOT NULL REFERENCES themes(id) ON DELETE CASCADE,
	UNIQUE(entry_id, theme_id)
);

CREATE TABLE IF NOT EXISTS entry_arcs (
	entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	arc_id   INTEGER NOT NULL REFERENCES arcs(id) ON DELETE CASCADE,
	UNIQUE(entry_id, arc_id)
);

CREATE TABLE IF NOT EXISTS chapter_characters (
	chapter_id   INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
	character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
	UNIQUE(chapter_id, character_id)
);

CREATE TABLE IF NOT EXISTS chapter_references (
	chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
	entry_id   INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	mode       TEXT NOT NULL DEFAULT 'direct',
	quote      TEXT NOT NULL DEFAULT '',
	UNIQUE(chapter_id, entry_id, mode, quote)
);

CREATE TABLE IF NOT EXISTS character_people (
	character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
	person_id    INTEGER NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	contribution TEXT NOT NULL DEFAULT 'primary',
	UNIQUE(character_id, person_id)
);

CREATE TABLE IF NOT EXISTS scene_sources (
	scene_id INTEGER NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	UNIQUE(scene_id, entry_id)
);

CREATE TABLE IF NOT EXISTS generated_files (
	path         TEXT PRIMARY KEY,
	family       TEXT NOT NULL DEFAULT '',
	entity_id    INTEGER NOT NULL DEFAULT 0,
	checksum     TEXT NOT NULL DEFAULT '',
	generated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scenes_chapter ON scenes(chapter_id);
CREATE INDEX IF NOT EXISTS idx_locations_city ON locations(city_id);
CREATE INDEX IF NOT EXISTS idx_generated_family ON generated_files(family);
`

// DB wraps a sql.DB with graph and manifest operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

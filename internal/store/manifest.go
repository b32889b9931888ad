package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// ManifestRow records one file written by the generator.
type ManifestRow struct {
	Path        string
	Family      string
	EntityID    int64
	Checksum    string
	GeneratedAt time.Time
}

// RecordGenerated upserts manifest rows in one transaction.
func (db *DB) RecordGenerated(ctx context.Context, rows []ManifestRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO generated_files (path, family, entity_id, checksum, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			family       = excluded.family,
			entity_id    = excluded.entity_id,
			checksum     = excluded.checksum,
			generated_at = excluded.generated_at
	`)
	if err != nil {
		return fmt.Errorf("store: prepare manifest upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		at := r.GeneratedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.Path, r.Family, r.EntityID, r.Checksum, at); err != nil {
			return fmt.Errorf("store: record %s: %w", r.Path, err)
		}
	}
	return tx.Commit()
}

// Manifest returns every recorded file keyed by path.
func (db *DB) Manifest(ctx context.Context) (map[string]ManifestRow, error) {
	out := make(map[string]ManifestRow)
	err := db.scanRows(ctx, `SELECT path, family, entity_id, checksum, generated_at FROM generated_files`, func(rows *sql.Rows) error {
		var r ManifestRow
		if err := rows.Scan(&r.Path, &r.Family, &r.EntityID, &r.Checksum, &r.GeneratedAt); err != nil {
			return err
		}
		out[r.Path] = r
		return nil
	})
	return out, err
}

// ManifestChecksum returns the recorded checksum of one file, or "" when the
// file was never generated.
func (db *DB) ManifestChecksum(ctx context.Context, path string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM generated_files WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: manifest checksum: %w", err)
	}
	return cs, nil
}

// PruneManifest deletes every row whose path is not in keep and returns the
// number of rows removed.
func (db *DB) PruneManifest(ctx context.Context, keep map[string]struct{}) (int, error) {
	current, err := db.Manifest(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for p := range current {
		if _, ok := keep[p]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM generated_files WHERE path = ?`, p); err != nil {
			return 0, fmt.Errorf("store: prune %s: %w", p, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit prune: %w", err)
	}
	return n, nil
}

// Addresses maps the canonical addresses of a family's generated pages
// (path without the .md suffix) to entity ids.
func (db *DB) Addresses(ctx context.Context, f model.Family) (map[string]int64, error) {
	out := make(map[string]int64)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path, entity_id FROM generated_files WHERE family = ? AND entity_id != 0`, f.String())
	if err != nil {
		return nil, fmt.Errorf("store: addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		var id int64
		if err := rows.Scan(&p, &id); err != nil {
			return nil, err
		}
		out[strings.ToLower(strings.TrimSuffix(p, ".md"))] = id
	}
	return out, rows.Err()
}

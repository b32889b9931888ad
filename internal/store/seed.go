package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Insert creates one entity. The sync path never creates entities; Insert
// exists for import tooling and tests.
func (db *DB) Insert(ctx context.Context, f model.Family, fields Fields) (int64, error) {
	ft, err := tableFor(f)
	if err != nil {
		return 0, err
	}
	if _, ok := fields[ft.keyCol]; !ok {
		return 0, fmt.Errorf("store: insert %s: missing %s", f, ft.keyCol)
	}
	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !contains(ft.columns, c) {
			return 0, fmt.Errorf("store: insert %s: unknown column %q", f, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = ft.value(c, fields[c])
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, ft.table, strings.Join(cols, ", "), marks)
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("store: insert %s: %w", f, err)
	}
	return res.LastInsertId()
}

// Link inserts one link outside of a sync transaction.
func (db *DB) Link(ctx context.Context, rel Relation, ownerID, targetID int64, extra ...any) error {
	return addLink(ctx, db.conn, rel, ownerID, targetID, extra)
}

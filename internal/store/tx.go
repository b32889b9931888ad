package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Tx is the write surface the sync orchestrator applies update records
// through. All calls share one SQLite transaction.
type Tx interface {
	LookupID(ctx context.Context, f model.Family, key string) (int64, error)
	LookupKey(ctx context.Context, f model.Family, id int64) (string, error)
	UpdateFields(ctx context.Context, f model.Family, id int64, fields Fields) error
	ClearLinks(ctx context.Context, rel Relation, ownerID int64) error
	AddLink(ctx context.Context, rel Relation, ownerID, targetID int64, extra ...any) error
	SetOwner(ctx context.Context, child model.Family, childID, ownerID int64) error
	ClearOwned(ctx context.Context, child model.Family, ownerID int64) error
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

// Verify *sqlTx satisfies Tx at compile time.
var _ Tx = (*sqlTx)(nil)

type sqlTx struct {
	tx *sql.Tx
}

// Begin starts a write transaction.
func (db *DB) Begin(ctx context.Context) (Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

func (t *sqlTx) LookupID(ctx context.Context, f model.Family, key string) (int64, error) {
	ft, err := tableFor(f)
	if err != nil {
		return 0, err
	}
	var id int64
	q := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ? COLLATE NOCASE`, ft.table, ft.keyCol)
	err = t.tx.QueryRowContext(ctx, q, strings.TrimSpace(key)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: %s %q: %w", f, key, apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("store: lookup %s %q: %w", f, key, err)
	}
	return id, nil
}

func (t *sqlTx) LookupKey(ctx context.Context, f model.Family, id int64) (string, error) {
	ft, err := tableFor(f)
	if err != nil {
		return "", err
	}
	var key string
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, ft.keyCol, ft.table)
	err = t.tx.QueryRowContext(ctx, q, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store: %s #%d: %w", f, id, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: lookup %s #%d: %w", f, id, err)
	}
	return key, nil
}

// UpdateFields sets the given columns. Only the editable columns of the
// family are accepted.
func (t *sqlTx) UpdateFields(ctx context.Context, f model.Family, id int64, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	ft, err := tableFor(f)
	if err != nil {
		return err
	}
	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !contains(ft.updatable, c) {
			return fmt.Errorf("store: %s column %q is not updatable", f, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, ft.value(c, fields[c]))
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, ft.table, strings.Join(sets, ", "))
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("store: update %s #%d: %w", f, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: update %s #%d: %w", f, id, apperr.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) ClearLinks(ctx context.Context, rel Relation, ownerID int64) error {
	rt, err := relationFor(rel)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, rt.table, rt.ownerCol)
	if _, err := t.tx.ExecContext(ctx, q, ownerID); err != nil {
		return fmt.Errorf("store: clear %s: %w", rt.name, err)
	}
	return nil
}

// AddLink inserts one link. extra carries the qualifier columns of the
// relation (mode and quote for references, contribution for portrayals).
// Duplicate links are ignored.
func (t *sqlTx) AddLink(ctx context.Context, rel Relation, ownerID, targetID int64, extra ...any) error {
	return addLink(ctx, t.tx, rel, ownerID, targetID, extra)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addLink(ctx context.Context, ex execer, rel Relation, ownerID, targetID int64, extra []any) error {
	rt, err := relationFor(rel)
	if err != nil {
		return err
	}
	if len(extra) != len(rt.extra) {
		return fmt.Errorf("store: %s takes %d qualifiers, got %d", rt.name, len(rt.extra), len(extra))
	}
	cols := append([]string{rt.ownerCol, rt.targetCol}, rt.extra...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s) VALUES (%s)`, rt.table, strings.Join(cols, ", "), marks)
	args := []any{ownerID, targetID}
	for _, v := range extra {
		// Qualifiers render inside one list line.
		if s, ok := v.(string); ok {
			v = model.SingleLine(s)
		}
		args = append(args, v)
	}
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store: add %s: %w", rt.name, err)
	}
	return nil
}

// SetOwner points a child at its owner. ownerID 0 clears a nullable owner.
func (t *sqlTx) SetOwner(ctx context.Context, child model.Family, childID, ownerID int64) error {
	ft, err := tableFor(child)
	if err != nil {
		return err
	}
	if ft.ownerCol == "" {
		return fmt.Errorf("store: %s has no owner", child)
	}
	var owner any
	if ownerID != 0 {
		owner = ownerID
	}
	q := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, ft.table, ft.ownerCol)
	if _, err := t.tx.ExecContext(ctx, q, owner, childID); err != nil {
		return fmt.Errorf("store: set owner of %s #%d: %w", child, childID, err)
	}
	return nil
}

// ClearOwned detaches every child currently owned by ownerID.
func (t *sqlTx) ClearOwned(ctx context.Context, child model.Family, ownerID int64) error {
	ft, err := tableFor(child)
	if err != nil {
		return err
	}
	if ft.ownerCol == "" {
		return fmt.Errorf("store: %s has no owner", child)
	}
	q := fmt.Sprintf(`UPDATE %s SET %s = NULL WHERE %s = ?`, ft.table, ft.ownerCol, ft.ownerCol)
	if _, err := t.tx.ExecContext(ctx, q, ownerID); err != nil {
		return fmt.Errorf("store: clear owned %s: %w", child, err)
	}
	return nil
}

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (t *sqlTx) savepointExec(ctx context.Context, stmt, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("store: invalid savepoint name %q", name)
	}
	if _, err := t.tx.ExecContext(ctx, stmt+" "+name); err != nil {
		return fmt.Errorf("store: %s %s: %w", strings.ToLower(stmt), name, err)
	}
	return nil
}

func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "SAVEPOINT", name)
}

func (t *sqlTx) RollbackTo(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "ROLLBACK TO", name)
}

func (t *sqlTx) Release(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "RELEASE", name)
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("store: rollback: %w", err)
	}
	return nil
}

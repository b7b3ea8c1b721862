// Package migrate applies versioned SQL files to the database. Files are
// named NNNN_description.up.sql with an optional matching .down.sql.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const historyTable = "schema_history"

// Runner applies migrations from a directory in lexical order.
type Runner struct {
	db  *sql.DB
	dir string
}

// NewRunner constructs a Runner over the given directory.
func NewRunner(db *sql.DB, dir string) *Runner {
	return &Runner{db: db, dir: dir}
}

// Up applies every pending .up.sql file, each inside its own transaction.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return nil, err
	}
	done, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	files, err := listSQL(r.dir, ".up.sql")
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, name := range files {
		if done[name] {
			continue
		}
		if err := r.runFile(ctx, filepath.Join(r.dir, name)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx,
			`insert into `+historyTable+` (name) values ($1)`, name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// Down rolls back the most recently applied migration. It fails if the
// matching .down.sql file does not exist.
func (r *Runner) Down(ctx context.Context) (string, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return "", err
	}
	history, err := r.Applied(ctx)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errors.New("migrate: nothing to roll back")
	}
	last := history[len(history)-1]
	downName := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	downPath := filepath.Join(r.dir, downName)
	if _, err := os.Stat(downPath); err != nil {
		return "", fmt.Errorf("migrate: no down file for %s", last)
	}
	if err := r.runFile(ctx, downPath); err != nil {
		return "", fmt.Errorf("roll back %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx, `delete from `+historyTable+` where name = $1`, last)
	return last, err
}

// Applied returns migration names in application order.
func (r *Runner) Applied(ctx context.Context) ([]string, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`select name from `+historyTable+` order by applied_at asc, name asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		create table if not exists `+historyTable+` (
			name text primary key,
			applied_at timestamptz not null default now()
		)`)
	return err
}

func (r *Runner) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) appliedSet(ctx context.Context) (map[string]bool, error) {
	names, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements splits on semicolons outside single-quoted strings. Our
// migration files use no procedural bodies, so dollar quoting is not handled.
func splitStatements(src string) []string {
	var (
		out      []string
		cur      strings.Builder
		inString bool
	)
	for _, r := range src {
		switch {
		case r == '\'':
			inString = !inString
			cur.WriteRune(r)
		case r == ';' && !inString:
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

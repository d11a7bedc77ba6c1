// Package export writes pipeline tables to a standalone SQLite file.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/albapepper/fanplan/internal/table"
)

// indexed columns get an index when present in the exported table.
var indexed = []string{"Season", "AccountNumber", "Game"}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Result describes a completed export.
type Result struct {
	Path    string
	Table   string
	Rows    int
	Columns map[string]string
}

// Summary returns a human-readable summary of the export.
func (r *Result) Summary() string {
	return fmt.Sprintf("path=%s table=%s rows=%d columns=%d", r.Path, r.Table, r.Rows, len(r.Columns))
}

// WriteSQLite replaces path with a SQLite database holding t as tableName.
// Columns whose non-blank values are all integers become INTEGER, all
// numbers REAL, anything else TEXT. Blank cells are stored as NULL.
func WriteSQLite(ctx context.Context, path, tableName string, t *table.Table) (*Result, error) {
	name := unsafeName.ReplaceAllString(tableName, "_")
	if name == "" {
		return nil, fmt.Errorf("invalid table name %q", tableName)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	types := columnTypes(t)
	var defs, cols []string
	for _, h := range t.Headers {
		defs = append(defs, quoteIdent(h)+" "+types[h])
		cols = append(cols, quoteIdent(h))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(name), strings.Join(defs, ","))); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(name), strings.Join(cols, ","), ph))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Headers))
	for i, row := range t.Rows {
		for j, h := range t.Headers {
			args[j] = sqliteValue(row[h], types[h])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	for _, c := range indexed {
		if !t.Has(c) {
			continue
		}
		idx := fmt.Sprintf("idx_%s_%s", name, strings.ToLower(unsafeName.ReplaceAllString(c, "_")))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, quoteIdent(idx), quoteIdent(name), quoteIdent(c))); err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Result{Path: path, Table: name, Rows: t.Len(), Columns: types}, nil
}

// quoteIdent doubles embedded quotes, which is the only escape SQL
// identifiers have.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func columnTypes(t *table.Table) map[string]string {
	types := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		kind := "INTEGER"
		seen := false
		for _, row := range t.Rows {
			v := strings.TrimSpace(row[h])
			if v == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				kind = "REAL"
				continue
			}
			kind = "TEXT"
			break
		}
		if !seen {
			kind = "TEXT"
		}
		types[h] = kind
	}
	return types
}

func sqliteValue(v, kind string) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch kind {
	case "INTEGER":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

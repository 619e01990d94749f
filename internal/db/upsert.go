package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a staged bulk upsert: rows are COPYed into a temp table,
// then merged into the target with INSERT ... ON CONFLICT DO UPDATE. This
// keeps large target imports to two round trips regardless of row count.
type Upsert struct {
	Table       string
	Columns     []string
	ConflictKey string
}

// Run executes the upsert inside one transaction and reports affected rows.
func (u Upsert) Run(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 || u.ConflictKey == "" {
		return 0, eris.New("db: upsert: table, columns, and conflict key are required")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := "_staging_" + strings.ReplaceAll(u.Table, ".", "_")
	if _, err := tx.Exec(ctx,
		"CREATE TEMP TABLE "+ident(staging)+" (LIKE "+tableIdent(u.Table)+" INCLUDING DEFAULTS) ON COMMIT DROP",
	); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into staging for %s", u.Table)
	}

	tag, err := tx.Exec(ctx, u.mergeSQL(staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge %s", u.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit")
	}
	return tag.RowsAffected(), nil
}

func (u Upsert) mergeSQL(staging string) string {
	cols := make([]string, len(u.Columns))
	var sets []string
	for i, c := range u.Columns {
		cols[i] = ident(c)
		if c != u.ConflictKey {
			sets = append(sets, ident(c)+" = EXCLUDED."+ident(c))
		}
	}
	colList := strings.Join(cols, ", ")

	sql := "INSERT INTO " + tableIdent(u.Table) + " (" + colList + ") SELECT " + colList +
		" FROM " + ident(staging) + " ON CONFLICT (" + ident(u.ConflictKey) + ")"
	if len(sets) == 0 {
		return sql + " DO NOTHING"
	}
	return sql + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// tableIdent quotes a possibly schema-qualified table name.
func tableIdent(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// Package export copies recorded verdicts into a SQLite database for
// ad-hoc querying.
package export

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/advlattice/internal/results"
)

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	seq      INTEGER NOT NULL,
	subject  TEXT    NOT NULL,
	property TEXT    NOT NULL,
	model    TEXT    NOT NULL,
	verdict  INTEGER NOT NULL CHECK (verdict BETWEEN 0 AND 3),
	label    TEXT    NOT NULL,
	PRIMARY KEY (subject, property, model)
);
CREATE INDEX IF NOT EXISTS verdicts_pair ON verdicts (subject, property);
`

// SQLite writes entries into the verdicts table of the database at path,
// creating it if needed. Rows already present are kept, so exporting
// into an existing database follows the cache's first-write-wins rule.
// It returns the number of rows inserted.
func SQLite(ctx context.Context, path string, entries []results.Entry) (int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("export: create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("export: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM verdicts`).Scan(&next); err != nil {
		return 0, fmt.Errorf("export: read sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO verdicts (seq, subject, property, model, verdict, label) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("export: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, next, e.Subject, e.Property, e.Model, int(e.Verdict), e.Verdict.String())
		if err != nil {
			return 0, fmt.Errorf("export: insert %s/%s/%s: %w", e.Subject, e.Property, e.Model, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
			next++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("export: commit: %w", err)
	}
	return inserted, nil
}

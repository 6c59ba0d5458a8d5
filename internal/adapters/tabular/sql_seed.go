package tabular

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"strings"

	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
)

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

// Question is the SQLite placeholder style.
func Question(int) string { return "?" }

// Dollar is the postgres placeholder style.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// SeedTable creates table with one TEXT column per header (if missing) and
// copies every row of src into it in a single transaction.
func SeedTable(
	ctx context.Context,
	db *sql.DB,
	table string,
	headers []string,
	src ports.RowSource,
	ph Placeholder,
) (int, error) {
	if !identifier.MatchString(table) {
		return 0, errors.Errorf("seed table: invalid table name %q", table)
	}
	if len(headers) == 0 {
		return 0, errors.New("seed table: no columns")
	}

	cols := make([]string, len(headers))
	defs := make([]string, len(headers))
	params := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = `"` + strings.ReplaceAll(h, `"`, `""`) + `"`
		defs[i] = cols[i] + " TEXT"
		params[i] = ph(i + 1)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "seed table: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	create := "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, errors.Wrapf(err, "seed table: create %s", table)
	}

	insert := "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(params, ", ") + ")"
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, errors.Wrap(err, "seed table: prepare insert")
	}
	defer stmt.Close()

	n := 0
	for {
		row, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, errors.Wrap(err, "seed table: read row")
		}

		args := make([]any, len(headers))
		for i, h := range headers {
			if v, ok := row.Get(h); ok {
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, errors.Wrapf(err, "seed table: insert line %d", row.Line)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, errors.Wrap(err, "seed table: commit tx")
	}

	return n, nil
}

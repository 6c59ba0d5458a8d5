package tabular

import (
	"context"
	"database/sql"
	"io"
	"regexp"
	"strings"

	"distance-matrix-batch/internal/domain"

	"github.com/pkg/errors"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource iterates the rows of one table. Column names are the labels.
type SQLSource struct {
	db      *sql.DB
	rows    *sql.Rows
	headers []string
	line    int
}

// NewSQLSource queries every row of table. The source owns db and closes it.
func NewSQLSource(ctx context.Context, db *sql.DB, table string) (*SQLSource, error) {
	if !identifier.MatchString(table) {
		db.Close()
		return nil, errors.Errorf("invalid input table name %q", table)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "query input table %s", table)
	}

	headers, err := rows.Columns()
	if err != nil {
		rows.Close()
		db.Close()
		return nil, errors.Wrapf(err, "columns of input table %s", table)
	}

	return &SQLSource{db: db, rows: rows, headers: headers}, nil
}

func (s *SQLSource) Headers() []string { return s.headers }

func (s *SQLSource) Next(ctx context.Context) (domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return domain.Row{}, err
	}

	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return domain.Row{}, errors.Wrap(err, "read input table")
		}
		return domain.Row{}, io.EOF
	}

	cells := make([]sql.NullString, len(s.headers))
	dest := make([]any, len(cells))
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := s.rows.Scan(dest...); err != nil {
		return domain.Row{}, errors.Wrap(err, "scan input row")
	}
	s.line++

	record := make([]string, len(cells))
	for i, c := range cells {
		record[i] = c.String
	}

	return toRow(s.line, s.headers, record), nil
}

func (s *SQLSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close input database")
	}
	return errors.Wrap(rowsErr, "close input rows")
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

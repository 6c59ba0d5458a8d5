package tabular

import (
	"context"

	"distance-matrix-batch/internal/config"
	"distance-matrix-batch/internal/platform/db"
	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
)

// Open returns the row source for in, chosen by in.Kind().
func Open(ctx context.Context, in config.Input) (ports.RowSource, error) {
	switch in.Kind() {
	case config.KindXLSX:
		return OpenXLSX(in.Path, in.Sheet)
	case config.KindSQLite:
		if in.Table == "" {
			return nil, errors.New("sqlite input needs input.table")
		}
		conn, err := db.OpenSQLite(ctx, in.SQLitePath(), false)
		if err != nil {
			return nil, err
		}
		return NewSQLSource(ctx, conn, in.Table)
	case config.KindPostgres:
		if in.Table == "" {
			return nil, errors.New("postgres input needs input.table")
		}
		conn, err := db.Open(ctx, in.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLSource(ctx, conn, in.Table)
	default:
		return OpenCSV(in.Path, in.Delimiter)
	}
}

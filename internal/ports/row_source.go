package ports

import (
	"context"
	"distance-matrix-batch/internal/domain"
)

// Port: label-keyed, row-by-row access to the input table.
type RowSource interface {
	// Next returns the next row in input order, or io.EOF when exhausted.
	Next(ctx context.Context) (domain.Row, error)
	Close() error
}

// Port: append-only sink for delimited output records.
type RowWriter interface {
	Write(record []string) error
	Close() error
}

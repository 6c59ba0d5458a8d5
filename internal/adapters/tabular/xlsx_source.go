package tabular

import (
	"context"
	"io"
	"strings"

	"distance-matrix-batch/internal/domain"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// XLSXSource streams rows of one worksheet. The first row is the header.
type XLSXSource struct {
	file    *excelize.File
	rows    *excelize.Rows
	headers []string
	line    int
}

// OpenXLSX opens sheet of the workbook at path; an empty sheet selects the first one.
func OpenXLSX(path, sheet string) (*XLSXSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx input")
	}

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "xlsx input %s: sheet %q", path, sheet)
	}

	src := &XLSXSource{file: f, rows: rows}

	if !rows.Next() {
		err := rows.Error()
		src.Close()
		if err != nil {
			return nil, errors.Wrap(err, "read xlsx header")
		}
		return nil, errors.Errorf("xlsx input %s: sheet %q has no header row", path, sheet)
	}

	headers, err := rows.Columns()
	if err != nil {
		src.Close()
		return nil, errors.Wrap(err, "read xlsx header")
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	src.headers = headers

	return src, nil
}

func (s *XLSXSource) Headers() []string { return s.headers }

func (s *XLSXSource) Next(ctx context.Context) (domain.Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Row{}, err
		}

		if !s.rows.Next() {
			if err := s.rows.Error(); err != nil {
				return domain.Row{}, errors.Wrap(err, "read xlsx row")
			}
			return domain.Row{}, io.EOF
		}

		cols, err := s.rows.Columns()
		if err != nil {
			return domain.Row{}, errors.Wrap(err, "read xlsx row")
		}

		// Spreadsheets often carry formatted but empty rows at the end.
		if blank(cols) {
			continue
		}

		s.line++
		return toRow(s.line, s.headers, cols), nil
	}
}

func (s *XLSXSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "close xlsx input")
	}
	return errors.Wrap(rowsErr, "close xlsx rows")
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

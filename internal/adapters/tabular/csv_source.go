package tabular

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"distance-matrix-batch/internal/domain"

	"github.com/pkg/errors"
)

const utf8BOM = "\ufeff"

// CSVSource reads a delimited text file with a header row.
type CSVSource struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
	line    int
}

func OpenCSV(path, delimiter string) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv input")
	}

	src, err := newCSVSource(file, delimiter)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "csv input %s", path)
	}
	src.file = file

	return src, nil
}

func newCSVSource(r io.Reader, delimiter string) (*CSVSource, error) {
	reader := csv.NewReader(r)
	if delimiter != "" {
		d, _ := utf8.DecodeRuneInString(delimiter)
		reader.Comma = d
	}
	reader.LazyQuotes = true
	// Short rows are allowed; they lack the trailing labels.
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, errors.Wrap(err, "read header")
	}

	for i, h := range headers {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		headers[i] = strings.TrimSpace(h)
	}

	return &CSVSource{reader: reader, headers: headers}, nil
}

// Headers returns the trimmed header labels.
func (s *CSVSource) Headers() []string { return s.headers }

func (s *CSVSource) Next(ctx context.Context) (domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return domain.Row{}, err
	}

	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Row{}, io.EOF
		}
		return domain.Row{}, errors.Wrap(err, "read csv row")
	}
	s.line++

	return toRow(s.line, s.headers, record), nil
}

func (s *CSVSource) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// toRow pairs headers with values; values beyond the header are dropped.
// Values are kept verbatim, only header labels are trimmed.
func toRow(line int, headers, record []string) domain.Row {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(record) {
			values[h] = record[i]
		}
	}
	return domain.Row{Line: line, Values: values}
}

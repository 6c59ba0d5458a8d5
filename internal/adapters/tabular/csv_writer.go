package tabular

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// CSVWriter appends records to a newly created file. Every Write is flushed
// so an interrupted run leaves only complete rows behind.
type CSVWriter struct {
	file *os.File
	w    *csv.Writer
}

// CreateCSV creates path, failing if it already exists, and writes header.
func CreateCSV(path string, header []string) (*CSVWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create output")
	}

	cw := &CSVWriter{file: file, w: csv.NewWriter(file)}
	if err := cw.Write(header); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "write header to %s", path)
	}

	return cw, nil
}

func (c *CSVWriter) Write(record []string) error {
	if err := c.w.Write(record); err != nil {
		return errors.Wrap(err, "write record")
	}
	c.w.Flush()
	return errors.Wrap(c.w.Error(), "flush record")
}

func (c *CSVWriter) Close() error {
	c.w.Flush()
	flushErr := c.w.Error()
	if err := c.file.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	return errors.Wrap(flushErr, "flush output")
}

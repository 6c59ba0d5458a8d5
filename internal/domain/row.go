package domain

import (
	"github.com/pkg/errors"
)

// ErrMissingColumn is returned when a row has no value for a configured label.
var ErrMissingColumn = errors.New("missing column")

// Represents one record of the input table, keyed by column label.
// Line is the 1-based position of the record in the source, header excluded.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the value stored under label and whether the label was present.
func (r Row) Get(label string) (string, bool) {
	v, ok := r.Values[label]
	return v, ok
}

// Field returns the value stored under label, or ErrMissingColumn.
func (r Row) Field(label string) (string, error) {
	v, ok := r.Values[label]
	if !ok {
		return "", errors.Wrapf(ErrMissingColumn, "line %d: label %q", r.Line, label)
	}
	return v, nil
}

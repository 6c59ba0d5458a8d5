package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Log status texts written for every processed row.
const (
	StatusSuccess = "Success"
	StatusFailure = "An error has occured"
)

// Cause tags why a row failed.
type Cause string

const (
	CauseInput   Cause = "input"
	CauseNetwork Cause = "network"
	CauseParse   Cause = "parse"
	CauseService Cause = "service"
	CauseUnknown Cause = "unknown"
)

// Failure is a row-level error tagged with its cause.
type Failure struct {
	Cause Cause
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Cause, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail tags err with cause. A nil err yields nil; an already tagged err keeps its cause.
func Fail(cause Cause, err error) error {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return err
	}

	return &Failure{Cause: cause, Err: err}
}

// CauseOf returns the cause recorded on err, or CauseUnknown.
func CauseOf(err error) Cause {
	var f *Failure
	if errors.As(err, &f) {
		return f.Cause
	}
	return CauseUnknown
}

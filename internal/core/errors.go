package core

import (
	"errors"
	"fmt"
)

// ErrNotCSV is returned by boundaries that only accept files named *.csv.
var ErrNotCSV = errors.New("only .csv files are allowed")

// ErrEmptyUpload is returned when a request carries no file part.
var ErrEmptyUpload = errors.New("no file provided")

// ErrInvalidThreshold is returned for negative report thresholds.
var ErrInvalidThreshold = errors.New("invalid threshold: must be a non-negative integer")

// ErrorKind classifies a field validation failure.
type ErrorKind string

const (
	KindEmptyField      ErrorKind = "empty_field"
	KindInvalidFormat   ErrorKind = "invalid_format"
	KindFutureDate      ErrorKind = "future_date"
	KindYearOutOfRange  ErrorKind = "year_out_of_range"
	KindPatternMismatch ErrorKind = "pattern_mismatch"
	KindTooFewParts     ErrorKind = "too_few_parts"
	KindNotInteger      ErrorKind = "not_integer"
	KindOutOfRange      ErrorKind = "out_of_range"
)

// FieldError is returned by the field validators. Message is the
// user-facing detail reported for the row.
type FieldError struct {
	Field   string
	Kind    ErrorKind
	Value   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

func fieldError(field string, kind ErrorKind, value, format string, args ...any) *FieldError {
	return &FieldError{
		Field:   field,
		Kind:    kind,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

// StorageError wraps a failure of the transactional write or a report query.
// The whole ingestion is rolled back when one is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

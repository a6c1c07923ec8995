package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Lower layers wrap these so callers can classify failures
// with errors.Is.
var (
	// ErrDataSource marks an unreachable external adapter or a malformed
	// payload. Callers may retry.
	ErrDataSource = errors.New("data source error")

	// ErrStorage marks a connection or transaction failure. Nothing from the
	// failed operation was committed.
	ErrStorage = errors.New("storage error")

	// ErrDuplicateData marks a uniqueness violation on insert. It is
	// recoverable: the offending rows are skipped.
	ErrDuplicateData = errors.New("duplicate data")

	// ErrValidation marks malformed query or strategy parameters.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientData marks a bar series too short to produce signals.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateDataError lists the bar keys skipped because they already exist.
type DuplicateDataError struct {
	Keys []BarKey
}

func (e *DuplicateDataError) Error() string {
	switch len(e.Keys) {
	case 0:
		return "duplicate data"
	case 1:
		return fmt.Sprintf("duplicate data: %s already stored", e.Keys[0])
	}
	parts := make([]string, 0, 3)
	for i, k := range e.Keys {
		if i == 3 {
			break
		}
		parts = append(parts, k.String())
	}
	return fmt.Sprintf("duplicate data: %d rows already stored (%s, ...)", len(e.Keys), strings.Join(parts, ", "))
}

// Is reports whether target is ErrDuplicateData.
func (e *DuplicateDataError) Is(target error) bool { return target == ErrDuplicateData }

// InsufficientDataError reports a series shorter than the longest indicator
// window.
type InsufficientDataError struct {
	Bars     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d bars, need at least %d", e.Bars, e.Required)
}

// Is reports whether target is ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

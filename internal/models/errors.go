package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyID                = errors.New("ID cannot be empty")
	ErrInvalidGridCoordinates = errors.New("grid coordinates must be non-negative")
	ErrInvalidGridDimensions  = errors.New("grid dimensions must be positive and fit within 12-column system")
	ErrInvalidGridConstraints = errors.New("grid cell violates its min/max size constraints")
	ErrUnknownChartKind       = errors.New("chart type must be 'bar' or 'pie'")
	ErrInvalidLegendPosition  = errors.New("legend position must be 'top', 'bottom', 'left' or 'right'")
	ErrTopNOutOfRange         = errors.New("top-N count out of range")
	ErrEmptySeries            = errors.New("dataset has no series to rank by")
	ErrUnknownTemplate        = errors.New("unknown chart template")
	ErrDuplicateWidget        = errors.New("widget id already present")
)

// Error classes. Typed errors below report true for errors.Is against
// the matching class so callers never need the concrete type.
var (
	ErrMalformedDataset = errors.New("malformed dataset")
	ErrPersistence      = errors.New("persistence failure")
	ErrNotFound         = errors.New("not found")
	ErrLayoutMismatch   = errors.New("layout does not match widgets")
)

// MalformedDatasetError reports a violation of index alignment between
// labels and a per-label array.
type MalformedDatasetError struct {
	Series int    // index of the offending series, -1 when not series specific
	Field  string // values, backgroundColor, borderColor
	Got    int
	Want   int
	Err    error // optional cause
}

func (e *MalformedDatasetError) Error() string {
	if e.Err != nil && e.Field == "" {
		return fmt.Sprintf("malformed dataset: %v", e.Err)
	}
	return fmt.Sprintf("malformed dataset: series %d %s has %d entries, want %d", e.Series, e.Field, e.Got, e.Want)
}

func (e *MalformedDatasetError) Is(target error) bool { return target == ErrMalformedDataset }

func (e *MalformedDatasetError) Unwrap() error { return e.Err }

// PersistenceError wraps a record store or serialization failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports an absent dashboard, widget or template id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// LayoutMismatchError is returned when a reported layout's widget ids
// disagree with the current widget set.
type LayoutMismatchError struct {
	Missing    []string // widgets without a cell
	Unexpected []string // cells without a widget, or duplicated cells
}

func (e *LayoutMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("layout does not match widgets")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, ": unexpected %s", strings.Join(e.Unexpected, ","))
	}
	return b.String()
}

func (e *LayoutMismatchError) Is(target error) bool { return target == ErrLayoutMismatch }

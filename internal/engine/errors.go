package engine

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedYear  = errors.New("unsupported year")
	ErrGeneration       = errors.New("sales data generation failed")
	ErrSuperseded       = errors.New("fetch superseded by a newer request")
	ErrInvalidChartKind = errors.New("invalid chart kind")
)

// UnsupportedYearError reports a year missing from the catalog's base table.
type UnsupportedYearError struct {
	Year      int
	Supported []int
}

func (e *UnsupportedYearError) Error() string {
	return fmt.Sprintf("unsupported year %d (supported: %v)", e.Year, e.Supported)
}

func (e *UnsupportedYearError) Is(target error) bool { return target == ErrUnsupportedYear }

// GenerationError wraps any failure raised while fabricating a year's records.
type GenerationError struct {
	Year  int
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate sales data for %d: %v", e.Year, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

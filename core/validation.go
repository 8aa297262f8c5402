package core

import (
	"fmt"
	"math"
)

// ValidateRecord performs basic validation on a Record.
// Returns an error wrapping ErrInvalidRecord if validation fails.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	for key := range record.Properties {
		if key == "" {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyPropertyKey)
		}
	}

	if err := ValidateVector(record.Vector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return nil
}

// ValidateVector checks that every component of v is finite.
// An empty vector is valid.
func ValidateVector(v []float32) error {
	for i, val := range v {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d", ErrInvalidVector, i)
		}
	}
	return nil
}

// ValidateVectorDimension checks that a non-empty vector has exactly dim components.
// A dim <= 0 disables the check.
func ValidateVectorDimension(v []float32, dim int) error {
	if dim <= 0 || len(v) == 0 {
		return nil
	}
	if len(v) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrVectorDimension, dim, len(v))
	}
	return nil
}

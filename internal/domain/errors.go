package domain

import (
	"errors"
	"fmt"
	"math"
)

// Common domain errors.
var (
	// ErrUnknownEnum indicates a vote, source, or band outside the closed set.
	ErrUnknownEnum = errors.New("unknown enum value")

	// ErrNegativeWeight indicates a detector emitted a negative weight.
	ErrNegativeWeight = errors.New("negative weight")

	// ErrEmptyValue indicates that a required value is empty.
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// Validate checks the detector contract for a single record: a declared
// source and vote, and a finite, non-negative weight no greater than 1.
// Violations are detector defects and are meant to surface in tests.
func (e Evidence) Validate() error {
	verr := NewValidationError("evidence")
	if !e.Source.Valid() {
		verr.AddError(fmt.Sprintf("%v: source %d", ErrUnknownEnum, uint8(e.Source)))
	}
	if !e.Vote.Valid() {
		verr.AddError(fmt.Sprintf("%v: vote %d", ErrUnknownEnum, uint8(e.Vote)))
	}
	switch {
	case math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0):
		verr.AddError(fmt.Sprintf("weight is not finite: %v", e.Weight))
	case e.Weight < 0:
		verr.AddError(fmt.Sprintf("%v: %v", ErrNegativeWeight, e.Weight))
	case e.Weight > 1:
		verr.AddError(fmt.Sprintf("weight above 1: %v", e.Weight))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

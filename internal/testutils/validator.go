package testutils

import (
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-triage/infrastructure/detectors"
)

// NewTestValidator creates a validator with the detector tags registered.
// This provides a consistent validator configuration across all tests.
func NewTestValidator() *validator.Validate {
	v := validator.New()
	if err := detectors.RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

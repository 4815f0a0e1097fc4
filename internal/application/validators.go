package application

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-triage/infrastructure/detectors"
)

// RegisterEngineValidators registers the custom tags used by EngineConfig:
//   - detectortype: the value names a built-in detector type.
//   - regexp: the value compiles as a Go regular expression.
func RegisterEngineValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("detectortype", validateDetectorType); err != nil {
		return fmt.Errorf("failed to register detectortype validator: %w", err)
	}
	if err := detectors.RegisterValidations(v); err != nil {
		return err
	}
	return nil
}

func validateDetectorType(fl validator.FieldLevel) bool {
	return slices.Contains(BuiltinDetectorTypes(), fl.Field().String())
}

// ValidateEngineConfig runs struct validation followed by the semantic
// checks that struct tags cannot express.
func ValidateEngineConfig(v *validator.Validate, cfg *EngineConfig) error {
	if cfg == nil {
		return errors.New("engine configuration is nil")
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateSemantics(cfg); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics enforces unique instance names and one instance per
// detector type. Two instances of one type would count the same signal
// twice in the vote.
func validateSemantics(cfg *EngineConfig) error {
	names := make(map[string]int, len(cfg.Detectors))
	types := make(map[string]int, len(cfg.Detectors))

	for i, spec := range cfg.Detectors {
		name := spec.InstanceName()
		if prev, dup := names[name]; dup {
			return fmt.Errorf("detector %d: duplicate name %q (first used by detector %d)", i, name, prev)
		}
		names[name] = i

		if prev, dup := types[spec.Type]; dup {
			return fmt.Errorf("detector %d: type %q already configured by detector %d", i, spec.Type, prev)
		}
		types[spec.Type] = i
	}

	return nil
}

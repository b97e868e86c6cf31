package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if filepath.Clean(cfg.Verifier.Root) != cfg.Verifier.Root {
		return fmt.Errorf("verifier.root: %q is not a clean absolute path", cfg.Verifier.Root)
	}

	if cfg.Handles.Type == "badger" {
		tableCfg, err := decodeBadgerOptions(cfg.Handles.Badger)
		if err != nil {
			return fmt.Errorf("handles.badger: %w", err)
		}
		if tableCfg.Path == "" && !tableCfg.InMemory {
			return fmt.Errorf("handles.badger: path is required")
		}
	}

	if cfg.Scheduler.RepairsPerSecond > 0 && cfg.Scheduler.RepairBurst == 0 {
		return fmt.Errorf("scheduler: repair_burst must be positive when repairs_per_second is set")
	}

	if cfg.Scheduler.AutoRepair && !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler: auto_repair requires enabled to be true")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

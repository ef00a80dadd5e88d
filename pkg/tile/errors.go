package tile

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every configuration error
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError describes a parameter that violates a constraint
type ConfigError struct {
	Field      string
	Value      any
	Constraint string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v %s", e.Field, e.Value, e.Constraint)
}

// Is makes ConfigError match ErrInvalidConfig
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// configErrorf builds a ConfigError with a formatted constraint
func configErrorf(field string, value any, format string, args ...any) error {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Constraint: fmt.Sprintf(format, args...),
	}
}

// CheckRange validates that v lies within [lo, hi]
func CheckRange[T int | int64 | float64](field string, v, lo, hi T) error {
	if v < lo || v > hi {
		return configErrorf(field, v, "is outside the allowed range [%v, %v]", lo, hi)
	}
	return nil
}

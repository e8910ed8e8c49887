// Package apperr defines the error kinds shared by the query pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// ConfigError reports malformed or over/under-constrained query parameters.
// It is always returned before any data is read.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing resource such as a day with no data.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ComputationError reports an arithmetic impossibility.
type ComputationError struct {
	Op     string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func Config(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

func Computation(op, format string, args ...any) error {
	return &ComputationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err wraps a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsComputation reports whether err wraps a ComputationError.
func IsComputation(err error) bool {
	var target *ComputationError
	return errors.As(err, &target)
}

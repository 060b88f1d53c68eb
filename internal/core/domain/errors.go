package domain

import (
	"fmt"
	"strings"
)

// NormalizationError: a known vendor shape was missing or carried a malformed
// attribute. Names the attribute so the log line is actionable.
type NormalizationError struct {
	Vendor    string
	Attribute string
	Reason    string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: attribute %q: %s", e.Vendor, e.Attribute, e.Reason)
}

// UnsupportedSourceError: the configured vendor id has no normalizer.
type UnsupportedSourceError struct {
	Vendor string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported source vendor %q", e.Vendor)
}

// InsufficientDataError: an optimization cycle cannot start because a required
// input series is empty. Raised before any network IO.
type InsufficientDataError struct {
	Missing []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for optimization: missing %s", strings.Join(e.Missing, ", "))
}

// OptimizerUnavailableError: transport failure, timeout or non-2xx status from
// the optimization backend.
type OptimizerUnavailableError struct {
	Cause error
}

func (e *OptimizerUnavailableError) Error() string {
	return fmt.Sprintf("optimizer unavailable: %s", e.Cause)
}

func (e *OptimizerUnavailableError) Unwrap() error {
	return e.Cause
}

// InvalidResponseError: the backend answered but the document violates the
// response schema (missing arrays, values out of range).
type InvalidResponseError struct {
	Field  string
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid optimizer response: field %q: %s", e.Field, e.Reason)
}

// ConfigurationError: a caller-supplied parameter is out of range. Always
// rejected without touching current state.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

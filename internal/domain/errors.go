package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the evaluation pipeline. Most anomalies in this system
// are absorbed into the result shape (StatusUnknown, empty lists, warnings);
// these errors cover genuine contract violations and lookup misses.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidRange         = errors.New("reference minimum exceeds reference maximum")
	ErrNoMeasurements       = errors.New("no measurements supplied")
	ErrUnknownRiskCategory  = errors.New("unknown risk category")
	ErrReferenceUnavailable = errors.New("reference tables unavailable")
)

// ValidationError represents a field-level input contract violation.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Warning codes for anomalies that are surfaced to the caller without
// failing the evaluation.
const (
	WarnUnresolvedBiomarker = "UNRESOLVED_BIOMARKER"
	WarnUnresolvedUnit      = "UNRESOLVED_UNIT"
	WarnNoReferenceRange    = "NO_REFERENCE_RANGE"
)

// Warning records a non-fatal anomaly observed while normalizing a
// measurement, preserved so nothing is silently dropped.
type Warning struct {
	Code      string `json:"code"`
	Biomarker string `json:"biomarker"`
	Message   string `json:"message"`
}

// NewWarning creates a Warning for the given biomarker name.
func NewWarning(code, biomarker, format string, args ...interface{}) Warning {
	return Warning{
		Code:      code,
		Biomarker: biomarker,
		Message:   fmt.Sprintf(format, args...),
	}
}

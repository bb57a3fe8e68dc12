// Package domain contains the core business entities and types for biomarker
// interpretation: normalized measurements, status classification, detected
// clinical patterns, time-series analytics results, and composite risk scores.
//
// All derived entities are owned by the evaluation that produced them; the
// package holds no mutable state.
package domain

import "fmt"

// Status is the ordinal classification of a biomarker value relative to its
// reference range. Exactly one status is assigned per normalized biomarker;
// StatusUnknown is used only when no reference range could be resolved.
type Status string

const (
	StatusNormal         Status = "normal"
	StatusBorderlineLow  Status = "borderline_low"
	StatusBorderlineHigh Status = "borderline_high"
	StatusBelowRange     Status = "below_range"
	StatusAboveRange     Status = "above_range"
	StatusCriticalLow    Status = "critical_low"
	StatusCriticalHigh   Status = "critical_high"
	StatusUnknown        Status = "unknown"
)

// Severity grades how far a value deviates from its reference range.
type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityMinimal Severity = "minimal"
	SeverityLow     Severity = "low"
	SeverityHigh    Severity = "high"
)

// Confidence expresses how strongly the evidence supports a detected pattern.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// RiskLevel is the tiered interpretation of a category risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// TrendDirection describes the sign of a fitted trend slope.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// RiskCategory names an independently scored health-risk domain.
type RiskCategory string

const (
	RiskCardiovascular RiskCategory = "cardiovascular"
	RiskMetabolic      RiskCategory = "metabolic"
	RiskNutritional    RiskCategory = "nutritional"
)

// Sex is the biological sex used for demographic range adjustment.
type Sex string

const (
	SexFemale      Sex = "female"
	SexMale        Sex = "male"
	SexUnspecified Sex = ""
)

// IsValid reports whether the status is one of the defined ordinal values.
func (s Status) IsValid() bool {
	switch s {
	case StatusNormal, StatusBorderlineLow, StatusBorderlineHigh,
		StatusBelowRange, StatusAboveRange,
		StatusCriticalLow, StatusCriticalHigh, StatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// IsAbnormal reports whether the status indicates any deviation from the
// reference range, including the borderline bands.
func (s Status) IsAbnormal() bool {
	return s != StatusNormal && s != StatusUnknown
}

// IsOutOfRange reports whether the value lies strictly outside the reference
// range. Borderline statuses are in-range and return false.
func (s Status) IsOutOfRange() bool {
	switch s {
	case StatusBelowRange, StatusAboveRange, StatusCriticalLow, StatusCriticalHigh:
		return true
	default:
		return false
	}
}

// IsBelow reports whether the status is on the low side of the range.
func (s Status) IsBelow() bool {
	return s == StatusBelowRange || s == StatusCriticalLow
}

// IsAbove reports whether the status is on the high side of the range.
func (s Status) IsAbove() bool {
	return s == StatusAboveRange || s == StatusCriticalHigh
}

// IsValid reports whether the severity is a defined grade.
func (sv Severity) IsValid() bool {
	switch sv {
	case SeverityNone, SeverityMinimal, SeverityLow, SeverityHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (sv Severity) String() string { return string(sv) }

// IsValid reports whether the confidence is a defined level.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the confidence level.
func (c Confidence) String() string { return string(c) }

// Rank orders confidence levels for comparison; higher is stronger.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether the risk level is a defined tier.
func (rl RiskLevel) IsValid() bool {
	switch rl {
	case RiskLow, RiskModerate, RiskHigh, RiskVeryHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk level.
func (rl RiskLevel) String() string { return string(rl) }

// IsValid reports whether the direction is a defined value.
func (td TrendDirection) IsValid() bool {
	switch td {
	case TrendIncreasing, TrendDecreasing, TrendStable:
		return true
	default:
		return false
	}
}

// String returns the string representation of the trend direction.
func (td TrendDirection) String() string { return string(td) }

// IsValid reports whether the risk category is one scored by this system.
func (rc RiskCategory) IsValid() bool {
	switch rc {
	case RiskCardiovascular, RiskMetabolic, RiskNutritional:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk category.
func (rc RiskCategory) String() string { return string(rc) }

// ParseRiskCategory converts a string into a RiskCategory, rejecting
// categories this system does not score.
func ParseRiskCategory(s string) (RiskCategory, error) {
	rc := RiskCategory(s)
	if !rc.IsValid() {
		return "", fmt.Errorf("parse risk category %q: %w", s, ErrUnknownRiskCategory)
	}
	return rc, nil
}

// LogFields returns structured logging fields for evaluation audit trails.
func (s Status) LogFields() map[string]any {
	return map[string]any{
		"status":       string(s),
		"abnormal":     s.IsAbnormal(),
		"out_of_range": s.IsOutOfRange(),
	}
}
